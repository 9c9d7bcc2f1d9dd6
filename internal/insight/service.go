// Package insight orchestrates a property lookup: it joins tax records,
// parcel coordinates, and the neighbourhood comparison into one result.
package insight

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ronanmccormack-ca/areacheck-service/internal/adapter/opendata"
	"github.com/ronanmccormack-ca/areacheck-service/internal/domain"
	"github.com/ronanmccormack-ca/areacheck-service/internal/observability"
)

// ErrInvalidQuery reports missing or blank lookup inputs.
var ErrInvalidQuery = errors.New("civic number and street name are required")

// PropertySource is the open-data surface the service depends on. The
// opendata client (cached or not) satisfies it; tests substitute a stub.
type PropertySource interface {
	FetchTaxRecords(ctx context.Context, q opendata.TaxRecordQuery) ([]domain.PropertyRecord, error)
	FetchCoordinate(ctx context.Context, civicNumber, streetName string) (domain.Coordinate, bool, error)
	FetchStreets(ctx context.Context, civicNumber string) ([]string, error)
	UnitCount(ctx context.Context, civicNumber, streetName string) (int, error)
}

// LookupQuery identifies one property. Unit is required only for strata
// (multi-unit) addresses.
type LookupQuery struct {
	CivicNumber string
	StreetName  string
	Unit        string
}

// LookupResult is the complete plain-data bundle for one property lookup.
// Coordinate is nil when the address dataset has no match or was
// unavailable; Comparison is nil when the neighbourhood yielded no usable
// samples or every year's fetch failed.
type LookupResult struct {
	Summary              domain.PropertySummary          `json:"summary"`
	Change               domain.ValueChange              `json:"value_change"`
	History              []domain.YearValue              `json:"history"`
	AveragePercentChange *float64                        `json:"average_percent_change,omitempty"`
	Coordinate           *domain.Coordinate              `json:"coordinate,omitempty"`
	Comparison           *domain.NeighbourhoodComparison `json:"comparison,omitempty"`
	GeneratedAt          time.Time                       `json:"generated_at"`
}

// Service performs property lookups against an open-data source.
type Service struct {
	source  PropertySource
	years   []int
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a lookup service sampling the given neighbourhood comparison
// years.
func New(source PropertySource, years []int, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		source:  source,
		years:   years,
		metrics: metrics,
		logger:  logger,
	}
}

// CheckReadiness reports whether the service can serve lookups.
func (s *Service) CheckReadiness(_ context.Context) error {
	if s.source == nil {
		return errors.New("no open data source configured")
	}
	return nil
}

// Lookup fetches and derives everything known about one property. The
// coordinate and neighbourhood portions degrade independently: a failure
// there is logged and omitted without failing the property metrics.
func (s *Service) Lookup(ctx context.Context, q LookupQuery) (LookupResult, error) {
	civic := opendata.NormalizeCivicNumber(q.CivicNumber)
	street := opendata.NormalizeStreetName(q.StreetName)
	if civic == "" || street == "" {
		s.metrics.LookupsTotal.WithLabelValues("bad_input").Inc()
		return LookupResult{}, ErrInvalidQuery
	}

	// Strata buildings cannot be resolved to a single property without a
	// unit, so probe before fetching.
	if q.Unit == "" {
		units, err := s.source.UnitCount(ctx, civic, street)
		if err != nil {
			return LookupResult{}, s.countFailure(err)
		}
		if units > 0 {
			s.metrics.LookupsTotal.WithLabelValues("ambiguous").Inc()
			return LookupResult{}, &domain.AmbiguousError{Matches: units}
		}
	}

	records, err := s.source.FetchTaxRecords(ctx, opendata.TaxRecordQuery{
		CivicNumber: civic,
		StreetName:  street,
		Unit:        q.Unit,
	})
	if err != nil {
		return LookupResult{}, s.countFailure(err)
	}
	if len(records) == 0 {
		s.metrics.LookupsTotal.WithLabelValues("empty").Inc()
		return LookupResult{}, domain.ErrEmptyResult
	}

	m, err := domain.DeriveMetrics(records, q.Unit != "")
	if err != nil {
		return LookupResult{}, s.countFailure(err)
	}

	result := LookupResult{
		Summary:              m.Summary,
		Change:               m.Change,
		History:              m.History,
		AveragePercentChange: domain.AveragePercentChange(m.History),
		GeneratedAt:          clock.Now().UTC(),
	}

	// Coordinate and neighbourhood fetches are independent of each other
	// and of the records already in hand; issue them concurrently and join.
	g, gctx := errgroup.WithContext(ctx)

	var coord domain.Coordinate
	var coordFound bool
	g.Go(func() error {
		var err error
		coord, coordFound, err = s.source.FetchCoordinate(gctx, civic, street)
		if err != nil {
			s.logger.Warn("coordinate lookup degraded", "civic_number", civic, "street", street, "error", err)
			coordFound = false
		}
		return nil
	})

	samplesByYear := make([][]float64, len(s.years))
	yearFailures := make([]bool, len(s.years))
	if m.Summary.Neighbourhood != "" {
		for i, year := range s.years {
			g.Go(func() error {
				neighbours, err := s.source.FetchTaxRecords(gctx, opendata.TaxRecordQuery{
					Neighbourhood: m.Summary.Neighbourhood,
					Year:          year,
					ExcludeUnits:  true,
				})
				if err != nil {
					s.logger.Warn("neighbourhood year degraded",
						"neighbourhood_code", m.Summary.Neighbourhood,
						"report_year", year,
						"error", err,
					)
					yearFailures[i] = true
					return nil
				}
				samplesByYear[i] = domain.PercentChangeSamples(neighbours)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return LookupResult{}, s.countFailure(err)
	}

	if coordFound {
		result.Coordinate = &coord
	}
	result.Comparison = s.compare(samplesByYear, yearFailures, result)

	s.metrics.LookupsTotal.WithLabelValues("ok").Inc()
	return result, nil
}

// Streets returns street-name suggestions for a civic number.
func (s *Service) Streets(ctx context.Context, civicNumber string) ([]string, error) {
	civic := opendata.NormalizeCivicNumber(civicNumber)
	if civic == "" {
		return nil, ErrInvalidQuery
	}
	return s.source.FetchStreets(ctx, civic)
}

// compare assembles the neighbourhood comparison from the per-year samples,
// or nil when the sample is unusable.
func (s *Service) compare(samplesByYear [][]float64, yearFailures []bool, result LookupResult) *domain.NeighbourhoodComparison {
	byYear := make(map[int][]float64)
	total := 0
	allFailed := len(s.years) > 0
	for i, year := range s.years {
		if yearFailures[i] {
			continue
		}
		allFailed = false
		if len(samplesByYear[i]) > 0 {
			byYear[year] = samplesByYear[i]
			total += len(samplesByYear[i])
		}
	}
	s.metrics.ComparisonSampleSize.Observe(float64(total))
	if allFailed {
		s.logger.Warn("neighbourhood comparison unavailable, every year failed",
			"neighbourhood_code", result.Summary.Neighbourhood)
		return nil
	}

	subject := result.AveragePercentChange
	if subject == nil {
		subject = result.Change.PercentChange
	}

	cmp, err := domain.Compare(byYear, subject)
	if err != nil {
		// Zero usable samples: nothing to compare against.
		return nil
	}
	return &cmp
}

// countFailure classifies an error for the lookup outcome metric and
// returns it unchanged.
func (s *Service) countFailure(err error) error {
	var remote *domain.RemoteUnavailableError
	var ambiguous *domain.AmbiguousError
	switch {
	case errors.As(err, &remote):
		s.metrics.LookupsTotal.WithLabelValues("remote_unavailable").Inc()
	case errors.As(err, &ambiguous):
		s.metrics.LookupsTotal.WithLabelValues("ambiguous").Inc()
	case errors.Is(err, domain.ErrEmptyResult):
		s.metrics.LookupsTotal.WithLabelValues("empty").Inc()
	default:
		s.metrics.LookupsTotal.WithLabelValues("error").Inc()
	}
	return err
}
