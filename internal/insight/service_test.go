package insight

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronanmccormack-ca/areacheck-service/internal/adapter/opendata"
	"github.com/ronanmccormack-ca/areacheck-service/internal/domain"
	"github.com/ronanmccormack-ca/areacheck-service/internal/observability"
)

// stubSource implements PropertySource with injectable behavior. The
// function fields must be safe for concurrent calls.
type stubSource struct {
	records   func(q opendata.TaxRecordQuery) ([]domain.PropertyRecord, error)
	coord     func() (domain.Coordinate, bool, error)
	streets   func() ([]string, error)
	unitCount func() (int, error)
}

func (s *stubSource) FetchTaxRecords(_ context.Context, q opendata.TaxRecordQuery) ([]domain.PropertyRecord, error) {
	return s.records(q)
}

func (s *stubSource) FetchCoordinate(_ context.Context, _, _ string) (domain.Coordinate, bool, error) {
	if s.coord == nil {
		return domain.Coordinate{}, false, nil
	}
	return s.coord()
}

func (s *stubSource) FetchStreets(_ context.Context, _ string) ([]string, error) {
	return s.streets()
}

func (s *stubSource) UnitCount(_ context.Context, _, _ string) (int, error) {
	if s.unitCount == nil {
		return 0, nil
	}
	return s.unitCount()
}

func subjectRecord(year int, land, improv, prevLand, prevImprov float64) domain.PropertyRecord {
	return domain.PropertyRecord{
		PID:            "029-123-456",
		CivicNumber:    "2725",
		StreetName:     "MAIN ST",
		ZoningDistrict: "RT-5",
		YearBuilt:      1978,
		LandValue:      land,
		ImprovementVal: improv,
		PrevLandValue:  prevLand,
		PrevImprovVal:  prevImprov,
		TaxLevy:        4321.5,
		Neighbourhood:  "013",
		ReportYear:     year,
	}
}

func neighbourRecord(current, previous float64) domain.PropertyRecord {
	return domain.PropertyRecord{
		CivicNumber:   "100",
		StreetName:    "OTHER ST",
		LandValue:     current,
		PrevLandValue: previous,
		Neighbourhood: "013",
	}
}

func testService(source PropertySource, years []int) *Service {
	return New(source, years,
		observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { SetClock(nil) })
}

func TestLookup_FullBundle(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	freezeClock(t, now)

	source := &stubSource{
		records: func(q opendata.TaxRecordQuery) ([]domain.PropertyRecord, error) {
			if q.Neighbourhood != "" {
				require.Equal(t, "013", q.Neighbourhood)
				require.True(t, q.ExcludeUnits)
				return []domain.PropertyRecord{
					neighbourRecord(105, 100),
					neighbourRecord(110, 100),
					neighbourRecord(95, 100),
				}, nil
			}
			return []domain.PropertyRecord{
				subjectRecord(2023, 600_000, 300_000, 550_000, 280_000),
				subjectRecord(2024, 700_000, 300_000, 600_000, 300_000),
			}, nil
		},
		coord: func() (domain.Coordinate, bool, error) {
			return domain.Coordinate{Lat: 49.2578, Lon: -123.1007}, true, nil
		},
	}

	svc := testService(source, []int{2023, 2024})
	result, err := svc.Lookup(context.Background(), LookupQuery{CivicNumber: "2725", StreetName: "Main St"})
	require.NoError(t, err)

	assert.Equal(t, "029-123-456", result.Summary.PID)
	assert.Equal(t, float64(1_000_000), result.Change.CurrentValue)
	require.NotNil(t, result.Change.PercentChange)
	assert.InDelta(t, 11.11, *result.Change.PercentChange, 0.001)
	assert.Len(t, result.History, 2)
	require.NotNil(t, result.AveragePercentChange)

	require.NotNil(t, result.Coordinate)
	assert.Equal(t, 49.2578, result.Coordinate.Lat)

	require.NotNil(t, result.Comparison)
	assert.InDelta(t, (5.0+10.0-5.0)/3, result.Comparison.Mean, 0.001)
	assert.NotNil(t, result.Comparison.SubjectPercentChange)

	assert.Equal(t, now, result.GeneratedAt)
}

func TestLookup_BlankInput(t *testing.T) {
	svc := testService(&stubSource{}, nil)

	_, err := svc.Lookup(context.Background(), LookupQuery{CivicNumber: "  ", StreetName: "MAIN ST"})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = svc.Lookup(context.Background(), LookupQuery{CivicNumber: "2725", StreetName: ""})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestLookup_StrataWithoutUnitIsAmbiguous(t *testing.T) {
	source := &stubSource{
		unitCount: func() (int, error) { return 38, nil },
		records: func(opendata.TaxRecordQuery) ([]domain.PropertyRecord, error) {
			t.Fatal("records must not be fetched for an ambiguous address")
			return nil, nil
		},
	}

	svc := testService(source, nil)
	_, err := svc.Lookup(context.Background(), LookupQuery{CivicNumber: "1033", StreetName: "MARINASIDE CR"})

	var ambiguous *domain.AmbiguousError
	require.True(t, errors.As(err, &ambiguous))
	assert.Equal(t, 38, ambiguous.Matches)
}

func TestLookup_UnitProvidedSkipsProbe(t *testing.T) {
	source := &stubSource{
		unitCount: func() (int, error) {
			t.Fatal("unit probe must be skipped when a unit is supplied")
			return 0, nil
		},
		records: func(q opendata.TaxRecordQuery) ([]domain.PropertyRecord, error) {
			if q.Neighbourhood != "" {
				return nil, nil
			}
			assert.Equal(t, "801", q.Unit)
			r := subjectRecord(2024, 500_000, 0, 0, 0)
			r.Unit = "801"
			return []domain.PropertyRecord{r}, nil
		},
	}

	svc := testService(source, nil)
	result, err := svc.Lookup(context.Background(), LookupQuery{
		CivicNumber: "1033", StreetName: "MARINASIDE CR", Unit: "801",
	})
	require.NoError(t, err)
	assert.Equal(t, float64(500_000), result.Change.CurrentValue)
	assert.Nil(t, result.Change.PercentChange)
}

func TestLookup_NoMatchIsEmptyResult(t *testing.T) {
	source := &stubSource{
		records: func(opendata.TaxRecordQuery) ([]domain.PropertyRecord, error) {
			return nil, nil
		},
	}

	svc := testService(source, nil)
	_, err := svc.Lookup(context.Background(), LookupQuery{CivicNumber: "1", StreetName: "NOWHERE ST"})
	assert.ErrorIs(t, err, domain.ErrEmptyResult)
}

func TestLookup_RemoteFailureSurfaces(t *testing.T) {
	source := &stubSource{
		records: func(opendata.TaxRecordQuery) ([]domain.PropertyRecord, error) {
			return nil, &domain.RemoteUnavailableError{Dataset: "property-tax-report", Detail: "request failed"}
		},
	}

	svc := testService(source, nil)
	_, err := svc.Lookup(context.Background(), LookupQuery{CivicNumber: "2725", StreetName: "MAIN ST"})

	var remote *domain.RemoteUnavailableError
	assert.True(t, errors.As(err, &remote))
}

func TestLookup_CoordinateFailureDegrades(t *testing.T) {
	source := &stubSource{
		records: func(q opendata.TaxRecordQuery) ([]domain.PropertyRecord, error) {
			if q.Neighbourhood != "" {
				return nil, nil
			}
			return []domain.PropertyRecord{subjectRecord(2024, 500_000, 0, 400_000, 0)}, nil
		},
		coord: func() (domain.Coordinate, bool, error) {
			return domain.Coordinate{}, false, &domain.RemoteUnavailableError{Dataset: "property-addresses", Detail: "request failed"}
		},
	}

	svc := testService(source, []int{2024})
	result, err := svc.Lookup(context.Background(), LookupQuery{CivicNumber: "2725", StreetName: "MAIN ST"})
	require.NoError(t, err, "a failed coordinate lookup must not fail the property metrics")
	assert.Nil(t, result.Coordinate)
}

func TestLookup_FailedYearDoesNotAbortSiblings(t *testing.T) {
	source := &stubSource{
		records: func(q opendata.TaxRecordQuery) ([]domain.PropertyRecord, error) {
			if q.Neighbourhood == "" {
				return []domain.PropertyRecord{subjectRecord(2024, 500_000, 0, 400_000, 0)}, nil
			}
			if q.Year == 2023 {
				return nil, &domain.RemoteUnavailableError{Dataset: "property-tax-report", Detail: "request failed"}
			}
			return []domain.PropertyRecord{
				neighbourRecord(104, 100),
				neighbourRecord(108, 100),
			}, nil
		},
	}

	svc := testService(source, []int{2023, 2024})
	result, err := svc.Lookup(context.Background(), LookupQuery{CivicNumber: "2725", StreetName: "MAIN ST"})
	require.NoError(t, err)

	require.NotNil(t, result.Comparison)
	assert.Equal(t, map[int]int{2024: 2}, result.Comparison.SamplesPerYear)
	assert.InDelta(t, 6.0, result.Comparison.Mean, 0.001)
}

func TestLookup_AllYearsFailedOmitsComparison(t *testing.T) {
	source := &stubSource{
		records: func(q opendata.TaxRecordQuery) ([]domain.PropertyRecord, error) {
			if q.Neighbourhood == "" {
				return []domain.PropertyRecord{subjectRecord(2024, 500_000, 0, 400_000, 0)}, nil
			}
			return nil, &domain.RemoteUnavailableError{Dataset: "property-tax-report", Detail: "request failed"}
		},
	}

	svc := testService(source, []int{2023, 2024})
	result, err := svc.Lookup(context.Background(), LookupQuery{CivicNumber: "2725", StreetName: "MAIN ST"})
	require.NoError(t, err)
	assert.Nil(t, result.Comparison)
}

func TestLookup_EmptyNeighbourhoodSampleOmitsComparison(t *testing.T) {
	source := &stubSource{
		records: func(q opendata.TaxRecordQuery) ([]domain.PropertyRecord, error) {
			if q.Neighbourhood == "" {
				return []domain.PropertyRecord{subjectRecord(2024, 500_000, 0, 400_000, 0)}, nil
			}
			// Rows exist but none has a usable previous value.
			return []domain.PropertyRecord{neighbourRecord(104, 0)}, nil
		},
	}

	svc := testService(source, []int{2024})
	result, err := svc.Lookup(context.Background(), LookupQuery{CivicNumber: "2725", StreetName: "MAIN ST"})
	require.NoError(t, err)
	assert.Nil(t, result.Comparison)
}

func TestLookup_SingleNeighbourSampleIsAverageOnly(t *testing.T) {
	source := &stubSource{
		records: func(q opendata.TaxRecordQuery) ([]domain.PropertyRecord, error) {
			if q.Neighbourhood == "" {
				return []domain.PropertyRecord{subjectRecord(2024, 500_000, 0, 400_000, 0)}, nil
			}
			return []domain.PropertyRecord{neighbourRecord(107, 100)}, nil
		},
	}

	svc := testService(source, []int{2024})
	result, err := svc.Lookup(context.Background(), LookupQuery{CivicNumber: "2725", StreetName: "MAIN ST"})
	require.NoError(t, err)

	require.NotNil(t, result.Comparison)
	assert.True(t, result.Comparison.InsufficientData)
	assert.Empty(t, result.Comparison.Curves)
	assert.InDelta(t, 7.0, result.Comparison.Mean, 0.001)
}

func TestStreets(t *testing.T) {
	source := &stubSource{
		streets: func() ([]string, error) { return []string{"ALBERTA ST", "MAIN ST"}, nil },
	}

	svc := testService(source, nil)
	streets, err := svc.Streets(context.Background(), "2725")
	require.NoError(t, err)
	assert.Equal(t, []string{"ALBERTA ST", "MAIN ST"}, streets)

	_, err = svc.Streets(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}
