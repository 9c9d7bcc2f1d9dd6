package opendata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ronanmccormack-ca/areacheck-service/internal/domain"
	"github.com/ronanmccormack-ca/areacheck-service/internal/observability"
)

// Client queries the City of Vancouver open-data catalog. One HTTP attempt
// per call; transport failures are converted to domain.RemoteUnavailableError
// and absence of data is reported as an empty result, never an error.
type Client struct {
	baseURL    string
	httpClient *http.Client
	pageSize   int
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an open-data catalog client.
func NewClient(baseURL string, timeout time.Duration, pageSize int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		pageSize: pageSize,
		metrics:  metrics,
		logger:   logger,
	}
}

// FetchTaxRecords returns all property-tax-report rows matching the query,
// ordered by report year ascending, following offset pagination until the
// provider's total count is exhausted.
func (c *Client) FetchTaxRecords(ctx context.Context, q TaxRecordQuery) ([]domain.PropertyRecord, error) {
	var records []domain.PropertyRecord
	offset := 0

	for {
		page, err := c.doGet(ctx, recordQuery{
			dataset: datasetTaxReport,
			where:   q.clauses(),
			orderBy: "report_year asc",
			limit:   c.pageSize,
			offset:  offset,
		})
		if err != nil {
			return nil, err
		}
		if len(page.Results) == 0 {
			break
		}

		rows, err := decodeTaxRows(page.Results)
		if err != nil {
			return nil, &domain.RemoteUnavailableError{
				Dataset: datasetTaxReport,
				Detail:  "schema mismatch",
				Err:     err,
			}
		}
		records = append(records, rows...)

		offset += len(page.Results)
		if offset >= page.TotalCount {
			break
		}
	}

	return records, nil
}

// FetchCoordinate resolves a civic address to a latitude/longitude pair via
// the property-addresses dataset. The second return value is false when the
// address has no match.
func (c *Client) FetchCoordinate(ctx context.Context, civicNumber, streetName string) (domain.Coordinate, bool, error) {
	page, err := c.doGet(ctx, recordQuery{
		dataset: datasetAddresses,
		where: []string{
			eq("civic_number", NormalizeCivicNumber(civicNumber)),
			eq("std_street", NormalizeStreetName(streetName)),
		},
		limit: 1,
	})
	if err != nil {
		return domain.Coordinate{}, false, err
	}
	if len(page.Results) == 0 {
		return domain.Coordinate{}, false, nil
	}

	var row addressRow
	if err := json.Unmarshal(page.Results[0], &row); err != nil {
		return domain.Coordinate{}, false, &domain.RemoteUnavailableError{
			Dataset: datasetAddresses,
			Detail:  "schema mismatch",
			Err:     err,
		}
	}

	// Provider geometry is GeoJSON [lon, lat].
	coords := row.Geom.Geometry.Coordinates
	if len(coords) != 2 {
		return domain.Coordinate{}, false, nil
	}
	return domain.Coordinate{Lat: coords[1], Lon: coords[0]}, true, nil
}

// FetchStreets returns the sorted unique street names carrying the given
// civic number, for address typeahead.
func (c *Client) FetchStreets(ctx context.Context, civicNumber string) ([]string, error) {
	page, err := c.doGet(ctx, recordQuery{
		dataset: datasetTaxReport,
		where:   []string{eq("to_civic_number", NormalizeCivicNumber(civicNumber))},
		groupBy: "street_name",
		limit:   c.pageSize,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(page.Results))
	for _, raw := range page.Results {
		var row struct {
			StreetName string `json:"street_name"`
		}
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		if row.StreetName != "" {
			seen[row.StreetName] = struct{}{}
		}
	}

	streets := make([]string, 0, len(seen))
	for s := range seen {
		streets = append(streets, s)
	}
	sort.Strings(streets)
	return streets, nil
}

// UnitCount returns how many strata unit rows the address has. A non-zero
// count means a unit number is required to identify a single property.
func (c *Client) UnitCount(ctx context.Context, civicNumber, streetName string) (int, error) {
	page, err := c.doGet(ctx, recordQuery{
		dataset: datasetTaxReport,
		where: []string{
			eq("to_civic_number", NormalizeCivicNumber(civicNumber)),
			eq("street_name", NormalizeStreetName(streetName)),
			"from_civic_number IS NOT NULL",
		},
		limit: 1,
	})
	if err != nil {
		return 0, err
	}
	return page.TotalCount, nil
}

// doGet performs one catalog request. A non-success status or zero rows is a
// normal empty result; only network-level failures become errors.
func (c *Client) doGet(ctx context.Context, q recordQuery) (recordsResponse, error) {
	dataset := q.dataset
	u := fmt.Sprintf("%s/%s/records?%s", c.baseURL, dataset, q.values().Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return recordsResponse{}, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RemoteRequestDuration.WithLabelValues(dataset).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.RemoteRequests.WithLabelValues(dataset, "error").Inc()
		return recordsResponse{}, &domain.RemoteUnavailableError{
			Dataset: dataset,
			Detail:  "request failed",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.RemoteRequests.WithLabelValues(dataset, "error").Inc()
		c.logger.Warn("open data request rejected",
			"dataset", dataset,
			"status", resp.StatusCode,
		)
		return recordsResponse{}, nil
	}

	var page recordsResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		c.metrics.RemoteRequests.WithLabelValues(dataset, "error").Inc()
		return recordsResponse{}, &domain.RemoteUnavailableError{
			Dataset: dataset,
			Detail:  "schema mismatch",
			Err:     fmt.Errorf("decode response: %w", err),
		}
	}

	if len(page.Results) == 0 {
		c.metrics.RemoteRequests.WithLabelValues(dataset, "empty").Inc()
	} else {
		c.metrics.RemoteRequests.WithLabelValues(dataset, "success").Inc()
	}
	return page, nil
}

// decodeTaxRows maps provider rows to domain records, verifying that the
// schema still looks like the one we were built against.
func decodeTaxRows(results []json.RawMessage) ([]domain.PropertyRecord, error) {
	records := make([]domain.PropertyRecord, 0, len(results))
	recognized := false

	for _, raw := range results {
		var row taxRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("decode tax row: %w", err)
		}
		if row.PID != "" || row.StreetName != "" || row.ReportYear.value > 0 {
			recognized = true
		}
		records = append(records, domain.PropertyRecord{
			PID:            row.PID,
			LegalType:      row.LegalType,
			CivicNumber:    row.ToCivicNumber.value,
			Unit:           row.FromCivicNumber.value,
			StreetName:     row.StreetName,
			ZoningDistrict: row.ZoningDistrict,
			YearBuilt:      int(row.YearBuilt.value),
			LandValue:      row.CurrentLandValue.value,
			ImprovementVal: row.CurrentImprovementValue.value,
			PrevLandValue:  row.PreviousLandValue.value,
			PrevImprovVal:  row.PreviousImprovementValue.value,
			TaxLevy:        row.TaxLevy.value,
			Neighbourhood:  row.NeighbourhoodCode,
			LandCoordinate: row.LandCoordinate.value,
			ReportYear:     int(row.ReportYear.value),
		})
	}

	if len(records) > 0 && !recognized {
		return nil, fmt.Errorf("no expected field present in %d rows", len(records))
	}
	return records, nil
}

// Provider response types.

type recordsResponse struct {
	TotalCount int               `json:"total_count"`
	Results    []json.RawMessage `json:"results"`
}

type taxRow struct {
	PID                      string     `json:"pid"`
	LegalType                string     `json:"legal_type"`
	ToCivicNumber            flexString `json:"to_civic_number"`
	FromCivicNumber          flexString `json:"from_civic_number"`
	StreetName               string     `json:"street_name"`
	ZoningDistrict           string     `json:"zoning_district"`
	YearBuilt                flexFloat  `json:"year_built"`
	CurrentLandValue         flexFloat  `json:"current_land_value"`
	CurrentImprovementValue  flexFloat  `json:"current_improvement_value"`
	PreviousLandValue        flexFloat  `json:"previous_land_value"`
	PreviousImprovementValue flexFloat  `json:"previous_improvement_value"`
	TaxLevy                  flexFloat  `json:"tax_levy"`
	NeighbourhoodCode        string     `json:"neighbourhood_code"`
	LandCoordinate           flexString `json:"land_coordinate"`
	ReportYear               flexFloat  `json:"report_year"`
}

type addressRow struct {
	Geom struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"geom"`
}

// flexFloat decodes a numeric field that the provider serializes as either
// a JSON number or a quoted string; null and empty decode to zero.
type flexFloat struct {
	value float64
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		f.value = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("numeric field %q: %w", s, err)
	}
	f.value = v
	return nil
}

// flexString decodes a field that may arrive as a string, a number, or null.
type flexString struct {
	value string
}

func (f *flexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		f.value = ""
		return nil
	}
	f.value = strings.Trim(s, `"`)
	return nil
}
