// Package domain models City of Vancouver property tax report data.
//
// # Data Source
//
// Records originate from the City of Vancouver Open Data portal
// (https://opendata.vancouver.ca), explore API v2.1. Two datasets are used:
//
//	property-tax-report    one row per property (or strata unit) per report year
//	property-addresses     civic address to parcel geometry (point coordinates)
//
// # Provider Conventions
//
// Addresses:
//
//	"to_civic_number" holds the street number of a property. For strata
//	(multi-unit) buildings, "to_civic_number" is the building's street number
//	and "from_civic_number" carries the unit identifier; standalone
//	properties leave "from_civic_number" null. Street names are stored
//	uppercased ("W 41ST AV") and the filter API matches them case-sensitively.
//
// Values:
//
//	Each row carries both the current and the previous assessment split into
//	land and improvement components (current_land_value,
//	current_improvement_value, previous_land_value,
//	previous_improvement_value). A row is therefore a self-contained
//	consecutive-year pair: total = land + improvement for each side.
//	Monetary fields are occasionally serialized as strings rather than
//	numbers; missing components are treated as zero.
//
// Report years:
//
//	"report_year" is the assessment roll year. A property appears once per
//	year it was assessed; new builds have no prior-year row.
//
// Neighbourhoods:
//
//	"neighbourhood_code" groups properties into municipal assessment areas
//	and is the key for the comparison sample.
//
// # Derived Metrics
//
// Percent change is expressed in percent, rounded to two decimals:
//
//	change = (current_total/previous_total - 1) * 100
//
// and is undefined (not zero, not infinite) when the previous total is zero
// or absent — new builds and first-year records render as "N/A". See
// [DeriveMetrics] and [Compare].
package domain
