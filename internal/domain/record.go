package domain

import (
	"fmt"
	"math"
	"strings"
)

// PropertyRecord is one property-tax-report row for a property and year.
// Field names follow the internal model; the provider schema is mapped in
// the opendata adapter.
type PropertyRecord struct {
	PID            string  `json:"pid"`
	LegalType      string  `json:"legal_type,omitempty"`
	CivicNumber    string  `json:"civic_number"`
	Unit           string  `json:"unit,omitempty"`
	StreetName     string  `json:"street_name"`
	ZoningDistrict string  `json:"zoning_district,omitempty"`
	YearBuilt      int     `json:"year_built,omitempty"`
	LandValue      float64 `json:"land_value"`
	ImprovementVal float64 `json:"improvement_value"`
	PrevLandValue  float64 `json:"previous_land_value"`
	PrevImprovVal  float64 `json:"previous_improvement_value"`
	TaxLevy        float64 `json:"tax_levy"`
	Neighbourhood  string  `json:"neighbourhood_code"`
	LandCoordinate string  `json:"land_coordinate,omitempty"`
	ReportYear     int     `json:"report_year"`
}

// CurrentTotal returns the combined land and improvement value for the
// record's report year.
func (r PropertyRecord) CurrentTotal() float64 {
	return r.LandValue + r.ImprovementVal
}

// PreviousTotal returns the combined prior-year land and improvement value
// carried on the same row.
func (r PropertyRecord) PreviousTotal() float64 {
	return r.PrevLandValue + r.PrevImprovVal
}

// AddressKey identifies a property within a report year:
// (civic number, street name, unit).
func (r PropertyRecord) AddressKey() string {
	return r.CivicNumber + "|" + r.StreetName + "|" + r.Unit
}

// Coordinate is a WGS-84 latitude/longitude pair for a civic address.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ValueChange holds the year-over-year assessment movement for a property.
// PercentChange is nil when the previous value is zero or absent; it is
// expressed in percent, rounded to two decimals.
type ValueChange struct {
	CurrentValue   float64  `json:"current_value"`
	PreviousValue  float64  `json:"previous_value"`
	AbsoluteChange float64  `json:"absolute_change"`
	PercentChange  *float64 `json:"percent_change,omitempty"`
}

// YearValue is one point of a property's assessment history, used for the
// value-over-time chart. PercentChange compares against the prior-year
// values carried on the same provider row.
type YearValue struct {
	ReportYear       int      `json:"report_year"`
	LandValue        float64  `json:"land_value"`
	ImprovementValue float64  `json:"improvement_value"`
	TotalValue       float64  `json:"total_value"`
	PercentChange    *float64 `json:"percent_change,omitempty"`
}

// PropertySummary carries the display fields passed through unchanged from
// the latest record.
type PropertySummary struct {
	PID              string `json:"pid"`
	ZoningDistrict   string `json:"zoning_district,omitempty"`
	YearBuilt        int    `json:"year_built,omitempty"`
	LatestReportYear int    `json:"latest_report_year"`
	TaxLevy          string `json:"tax_levy"`
	Neighbourhood    string `json:"neighbourhood_code,omitempty"`
}

// percentChange returns (current/previous - 1) * 100 rounded to two
// decimals, or nil when previous is not a positive value.
func percentChange(current, previous float64) *float64 {
	if previous <= 0 {
		return nil
	}
	pct := math.Round((current/previous-1)*100*100) / 100
	return &pct
}

// FormatTaxLevy renders a levy as a dollar amount with thousands separators,
// e.g. 12345.6 -> "$12,345.60". Zero means no levy on record and renders as
// "N/A".
func FormatTaxLevy(levy float64) string {
	if levy <= 0 {
		return "N/A"
	}
	s := fmt.Sprintf("%.2f", levy)
	dot := strings.IndexByte(s, '.')
	intPart, fracPart := s[:dot], s[dot:]

	var b strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return "$" + b.String() + fracPart
}
