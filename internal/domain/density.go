package domain

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// densityGridSize is the number of evaluation points for a density curve.
const densityGridSize = 512

// densityGridPad widens the evaluation grid beyond the sample extremes so
// the curve tails reach (visually) zero.
const densityGridPad = 2.0

// DensityCurve is a smoothed estimate of one year's percent-change
// distribution, evaluated on a shared x grid.
type DensityCurve struct {
	ReportYear int       `json:"report_year"`
	X          []float64 `json:"x"`
	Y          []float64 `json:"y"`
}

// NeighbourhoodComparison positions a property's percent change against the
// distribution of changes across its neighbourhood.
type NeighbourhoodComparison struct {
	SamplesPerYear map[int]int    `json:"samples_per_year"`
	Curves         []DensityCurve `json:"curves,omitempty"`
	Mean           float64        `json:"neighbourhood_average"`

	SubjectPercentChange *float64 `json:"subject_percent_change,omitempty"`
	SubjectDelta         *float64 `json:"subject_delta,omitempty"`
	SubjectPercentile    *float64 `json:"subject_percentile,omitempty"`

	// InsufficientData is set when no year had enough samples for a density
	// estimate; the average is still meaningful.
	InsufficientData bool `json:"insufficient_data"`
}

// Compare builds the neighbourhood comparison from per-year percent-change
// samples. Samples must already exclude non-computable changes.
//
// The density estimate is a Gaussian kernel with Scott's-rule bandwidth
// (sigma * n^(-1/5)), evaluated per year on a grid spanning the pooled
// sample range. Years with fewer than two samples, or with zero variance,
// get no curve. With zero samples overall the comparison is impossible and
// ErrInsufficientData is returned; with samples but no estimable year the
// comparison degrades to average-only.
func Compare(samplesByYear map[int][]float64, subject *float64) (NeighbourhoodComparison, error) {
	var pooled []float64
	counts := make(map[int]int, len(samplesByYear))
	for year, samples := range samplesByYear {
		counts[year] = len(samples)
		pooled = append(pooled, samples...)
	}
	if len(pooled) == 0 {
		return NeighbourhoodComparison{}, ErrInsufficientData
	}

	mean := stat.Mean(pooled, nil)
	cmp := NeighbourhoodComparison{
		SamplesPerYear:       counts,
		Mean:                 mean,
		SubjectPercentChange: subject,
	}

	if subject != nil {
		delta := *subject - mean
		cmp.SubjectDelta = &delta

		sorted := make([]float64, len(pooled))
		copy(sorted, pooled)
		sort.Float64s(sorted)
		pctile := stat.CDF(*subject, stat.Empirical, sorted, nil) * 100
		cmp.SubjectPercentile = &pctile
	}

	grid := densityGrid(pooled)

	years := make([]int, 0, len(samplesByYear))
	for year := range samplesByYear {
		years = append(years, year)
	}
	sort.Ints(years)

	for _, year := range years {
		samples := samplesByYear[year]
		if len(samples) < 2 {
			continue
		}
		y, ok := gaussianKDE(samples, grid)
		if !ok {
			continue
		}
		cmp.Curves = append(cmp.Curves, DensityCurve{ReportYear: year, X: grid, Y: y})
	}

	cmp.InsufficientData = len(cmp.Curves) == 0
	return cmp, nil
}

// densityGrid returns evenly spaced evaluation points covering the sample
// range plus padding on both sides.
func densityGrid(samples []float64) []float64 {
	lo, hi := samples[0], samples[0]
	for _, s := range samples {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	lo -= densityGridPad
	hi += densityGridPad

	grid := make([]float64, densityGridSize)
	step := (hi - lo) / float64(densityGridSize-1)
	for i := range grid {
		grid[i] = lo + float64(i)*step
	}
	return grid
}

// gaussianKDE evaluates a Gaussian kernel density estimate on the grid.
// Returns ok=false when the sample has zero variance (the bandwidth would
// be degenerate).
func gaussianKDE(samples, grid []float64) ([]float64, bool) {
	sigma := stat.StdDev(samples, nil)
	if sigma == 0 || math.IsNaN(sigma) {
		return nil, false
	}

	// Scott's rule, the scipy gaussian_kde default.
	bandwidth := sigma * math.Pow(float64(len(samples)), -1.0/5.0)

	y := make([]float64, len(grid))
	inv := 1.0 / float64(len(samples))
	for i, x := range grid {
		var sum float64
		for _, s := range samples {
			kernel := distuv.Normal{Mu: s, Sigma: bandwidth}
			sum += kernel.Prob(x)
		}
		y[i] = sum * inv
	}
	return y, true
}
