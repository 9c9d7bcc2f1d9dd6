package opendata

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Dataset identifiers on the explore v2.1 catalog.
const (
	datasetTaxReport = "property-tax-report"
	datasetAddresses = "property-addresses"
)

// recordQuery is an explicit parameter object for one catalog request.
// Every call builds its own query; nothing is shared or mutated between
// requests.
type recordQuery struct {
	dataset string
	where   []string // clauses, AND-joined
	groupBy string
	orderBy string
	limit   int
	offset  int
}

// values renders the query as explore-API URL parameters.
func (q recordQuery) values() url.Values {
	v := url.Values{}
	if len(q.where) > 0 {
		v.Set("where", strings.Join(q.where, " AND "))
	}
	if q.groupBy != "" {
		v.Set("group_by", q.groupBy)
	}
	if q.orderBy != "" {
		v.Set("order_by", q.orderBy)
	}
	if q.limit > 0 {
		v.Set("limit", strconv.Itoa(q.limit))
	}
	if q.offset > 0 {
		v.Set("offset", strconv.Itoa(q.offset))
	}
	return v
}

// eq renders a field='value' clause with the value quoted and escaped.
func eq(field, value string) string {
	return fmt.Sprintf("%s='%s'", field, strings.ReplaceAll(value, "'", "''"))
}

// TaxRecordQuery selects property-tax-report rows. Either an address
// (CivicNumber + StreetName, optionally Unit) or a Neighbourhood code must
// be set; Year and ExcludeUnits narrow both forms.
type TaxRecordQuery struct {
	CivicNumber   string
	StreetName    string
	Unit          string
	Neighbourhood string
	Year          int  // 0 means all years
	ExcludeUnits  bool // drop strata unit rows (from_civic_number IS NULL)
}

// clauses renders the filter, normalizing user-supplied strings. The
// provider stores street names uppercased and matches filters exactly, so
// normalization happens here rather than in callers.
func (q TaxRecordQuery) clauses() []string {
	var where []string
	if q.Neighbourhood != "" {
		where = append(where, eq("neighbourhood_code", strings.TrimSpace(q.Neighbourhood)))
	} else {
		where = append(where, eq("to_civic_number", NormalizeCivicNumber(q.CivicNumber)))
		where = append(where, eq("street_name", NormalizeStreetName(q.StreetName)))
		if q.Unit != "" {
			where = append(where, eq("from_civic_number", strings.TrimSpace(q.Unit)))
		}
	}
	if q.ExcludeUnits {
		where = append(where, "from_civic_number IS NULL")
	}
	if q.Year > 0 {
		where = append(where, eq("report_year", strconv.Itoa(q.Year)))
	}
	return where
}

// NormalizeCivicNumber trims surrounding whitespace from a street number.
func NormalizeCivicNumber(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeStreetName uppercases a street name and collapses interior
// whitespace to single spaces, matching the provider's storage format.
func NormalizeStreetName(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}
