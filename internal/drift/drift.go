// Package drift detects distribution shift between the data a model was
// calibrated on and the live traffic it is scoring.
//
// The detector is Population Stability Index (PSI): bin the reference
// distribution into quantiles, measure how the live window redistributes
// across those bins, and sum the divergence. PSI below 0.1 is noise; 0.1 to
// 0.2 warrants a look; 0.2 and above means the model is scoring traffic it
// was not calibrated for.
package drift

import (
	"math"
	"sort"
)

// BinCount is the number of quantile bins used for PSI.
const BinCount = 10

// proportionFloor keeps empty bins from producing infinite PSI terms.
const proportionFloor = 1e-4

// Severity classifies a PSI value.
type Severity string

const (
	SeverityNone        Severity = "none"
	SeverityModerate    Severity = "moderate"
	SeveritySignificant Severity = "significant"
)

// PSI severity boundaries.
const (
	ModerateFloor    = 0.1
	SignificantFloor = 0.2
)

// Classify maps a PSI value to a severity band.
func Classify(psi float64) Severity {
	switch {
	case psi >= SignificantFloor:
		return SeveritySignificant
	case psi >= ModerateFloor:
		return SeverityModerate
	default:
		return SeverityNone
	}
}

// PSI computes the Population Stability Index of current against reference.
// Bin edges come from reference quantiles, so each reference bin holds
// roughly equal mass. Returns 0 when either sample is empty.
func PSI(reference, current []float64) float64 {
	if len(reference) == 0 || len(current) == 0 {
		return 0
	}

	edges := quantileEdges(reference, BinCount)

	refProps := binProportions(reference, edges)
	curProps := binProportions(current, edges)

	psi := 0.0
	for i := range refProps {
		r := math.Max(refProps[i], proportionFloor)
		c := math.Max(curProps[i], proportionFloor)
		psi += (c - r) * math.Log(c/r)
	}
	return psi
}

// quantileEdges returns the n-1 interior bin edges at reference quantiles.
func quantileEdges(reference []float64, n int) []float64 {
	sorted := make([]float64, len(reference))
	copy(sorted, reference)
	sort.Float64s(sorted)

	edges := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		pos := float64(i) / float64(n) * float64(len(sorted)-1)
		lo := int(math.Floor(pos))
		hi := int(math.Ceil(pos))
		frac := pos - float64(lo)
		edges = append(edges, sorted[lo]*(1-frac)+sorted[hi]*frac)
	}
	return edges
}

// binProportions buckets values by the interior edges and returns the mass
// fraction per bin.
func binProportions(values, edges []float64) []float64 {
	counts := make([]int, len(edges)+1)
	for _, v := range values {
		// Bins are closed on the upper edge; binary search for the bucket.
		counts[sort.SearchFloat64s(edges, v)]++
	}

	props := make([]float64, len(counts))
	for i, c := range counts {
		props[i] = float64(c) / float64(len(values))
	}
	return props
}
