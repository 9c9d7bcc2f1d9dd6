package domain

import "sort"

// Metrics is the derived view of one property's records: display fields,
// the latest year-over-year change, and the full assessment history.
type Metrics struct {
	Summary PropertySummary `json:"summary"`
	Change  ValueChange     `json:"value_change"`
	History []YearValue     `json:"history"`
}

// DeriveMetrics computes display fields and value-change metrics from the
// tax-report records of a single address across years.
//
// The latest report year is "current"; the immediately preceding year, when
// present, is "previous". With no prior-year record the previous value is
// zero and the percent change is not computable. When the caller did not
// supply a unit and the latest year matched more than one unit row, the
// result is an AmbiguousError rather than an arbitrary pick.
//
// The function is pure: it never mutates records and always returns the
// same output for the same input.
func DeriveMetrics(records []PropertyRecord, unitProvided bool) (Metrics, error) {
	if len(records) == 0 {
		return Metrics{}, ErrEmptyResult
	}

	sorted := make([]PropertyRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ReportYear < sorted[j].ReportYear
	})

	latestYear := sorted[len(sorted)-1].ReportYear
	if !unitProvided {
		if n := countUnits(sorted, latestYear); n > 1 {
			return Metrics{}, &AmbiguousError{Matches: n}
		}
	}

	current := sorted[len(sorted)-1]

	var previousTotal float64
	for _, r := range sorted {
		if r.ReportYear == latestYear-1 && r.AddressKey() == current.AddressKey() {
			previousTotal = r.CurrentTotal()
			break
		}
	}

	currentTotal := current.CurrentTotal()
	change := ValueChange{
		CurrentValue:   currentTotal,
		PreviousValue:  previousTotal,
		AbsoluteChange: currentTotal - previousTotal,
		PercentChange:  percentChange(currentTotal, previousTotal),
	}

	history := make([]YearValue, 0, len(sorted))
	for _, r := range sorted {
		if r.AddressKey() != current.AddressKey() {
			continue
		}
		history = append(history, YearValue{
			ReportYear:       r.ReportYear,
			LandValue:        r.LandValue,
			ImprovementValue: r.ImprovementVal,
			TotalValue:       r.CurrentTotal(),
			PercentChange:    percentChange(r.CurrentTotal(), r.PreviousTotal()),
		})
	}

	return Metrics{
		Summary: PropertySummary{
			PID:              current.PID,
			ZoningDistrict:   current.ZoningDistrict,
			YearBuilt:        current.YearBuilt,
			LatestReportYear: current.ReportYear,
			TaxLevy:          FormatTaxLevy(current.TaxLevy),
			Neighbourhood:    current.Neighbourhood,
		},
		Change:  change,
		History: history,
	}, nil
}

// AveragePercentChange returns the mean of the computable per-year changes
// in a property's history, or nil when none are computable. This is the
// figure positioned against the neighbourhood distribution.
func AveragePercentChange(history []YearValue) *float64 {
	var sum float64
	var n int
	for _, y := range history {
		if y.PercentChange != nil {
			sum += *y.PercentChange
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

// PercentChangeSamples extracts the computable year-over-year percent
// changes from a set of records, one per row (each provider row carries its
// own consecutive-year value pair). Non-computable rows are discarded.
func PercentChangeSamples(records []PropertyRecord) []float64 {
	samples := make([]float64, 0, len(records))
	for _, r := range records {
		if pct := percentChange(r.CurrentTotal(), r.PreviousTotal()); pct != nil {
			samples = append(samples, *pct)
		}
	}
	return samples
}

// countUnits counts distinct unit rows for the given report year.
func countUnits(records []PropertyRecord, year int) int {
	seen := make(map[string]struct{})
	for _, r := range records {
		if r.ReportYear != year {
			continue
		}
		seen[r.AddressKey()] = struct{}{}
	}
	return len(seen)
}
