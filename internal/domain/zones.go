package domain

import (
	"math"
	"slices"
	"sort"
)

// DefaultEventZones is the number of risk propensity zones a batch of sites
// is divided into.
const DefaultEventZones = 3

// AssignEventZones divides the sites that carry an event score into zones of
// roughly equal size by score quantile, so zone 0 holds the lowest risk
// propensity. Sites without an event score are left unzoned.
func AssignEventZones(sites []SiteAssessment, zones int) {
	var (
		idx    []int
		scores []float64
	)
	for i := range sites {
		if sites[i].Event != nil {
			idx = append(idx, i)
			scores = append(scores, sites[i].Event.Score)
		}
	}
	for k, zone := range QuantileZones(scores, zones) {
		z := zone
		sites[idx[k]].Event.Zone = &z
	}
}

// QuantileZones labels each value with the quantile bucket it falls in.
// Bucket edges are the linearly interpolated i/zones quantiles; equal edges
// collapse, so heavily tied inputs produce fewer buckets. Buckets are closed
// on the right and the first also includes the minimum.
func QuantileZones(values []float64, zones int) []int {
	if len(values) == 0 || zones < 1 {
		return nil
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	edges := make([]float64, 0, zones+1)
	for i := 0; i <= zones; i++ {
		e := quantile(sorted, float64(i)/float64(zones))
		if len(edges) == 0 || e != edges[len(edges)-1] {
			edges = append(edges, e)
		}
	}

	labels := make([]int, len(values))
	if len(edges) < 2 {
		return labels
	}
	upper := edges[1:]
	for i, v := range values {
		labels[i] = min(sort.SearchFloat64s(upper, v), len(upper)-1)
	}
	return labels
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[lo+1]-sorted[lo])
}
