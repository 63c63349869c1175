package ranking

import (
	"math"
	"sort"
)

// AgreementMetrics quantifies how much the secondary ranking agrees with
// the primary one. Diagnostic only: nothing in the serving path branches
// on these values.
type AgreementMetrics struct {
	TopKOverlap       float64
	RankCorrelation   float64
	AvgPositionChange float64
}

// ComputeAgreement compares two orderings of the same documents, both
// given as URL lists in rank order. Metrics are computed over the URLs
// common to both; K for the overlap is min(10, n).
//
// RankCorrelation is always Kendall's tau. The exact pair-counting form is
// cheap at expected list sizes (≤ a few hundred documents), so there is no
// approximation fallback.
func ComputeAgreement(primary, secondary []string) AgreementMetrics {
	metrics := AgreementMetrics{}

	n := len(primary)
	if n == 0 {
		return metrics
	}

	primaryRank := make(map[string]int, len(primary))
	for i, url := range primary {
		primaryRank[url] = i
	}
	secondaryRank := make(map[string]int, len(secondary))
	for i, url := range secondary {
		secondaryRank[url] = i
	}

	// Top-K overlap
	k := 10
	if n < k {
		k = n
	}
	if k > 0 {
		topPrimary := make(map[string]bool, k)
		for _, url := range primary[:k] {
			topPrimary[url] = true
		}
		overlap := 0
		limit := k
		if len(secondary) < limit {
			limit = len(secondary)
		}
		for _, url := range secondary[:limit] {
			if topPrimary[url] {
				overlap++
			}
		}
		metrics.TopKOverlap = float64(overlap) / float64(k)
	}

	// Common URLs, in primary order.
	var pRanks, sRanks []float64
	totalChange := 0.0
	common := 0
	for _, url := range primary {
		sPos, ok := secondaryRank[url]
		if !ok {
			continue
		}
		pPos := primaryRank[url]
		pRanks = append(pRanks, float64(pPos))
		sRanks = append(sRanks, float64(sPos))
		totalChange += math.Abs(float64(pPos - sPos))
		common++
	}

	if common > 0 {
		metrics.AvgPositionChange = totalChange / float64(common)
	}
	if common > 1 {
		metrics.RankCorrelation = kendallTau(pRanks, sRanks)
	}

	return metrics
}

// kendallTau computes the tau-b rank correlation between two equal-length
// sequences by counting concordant and discordant pairs, with tie
// corrections. Range [-1, 1]; identical orderings give exactly 1.
func kendallTau(x, y []float64) float64 {
	n := len(x)
	if n < 2 {
		return 0
	}

	var concordant, discordant float64
	var tiesX, tiesY float64

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := x[i] - x[j]
			dy := y[i] - y[j]

			switch {
			case dx == 0 && dy == 0:
				// tied in both, contributes to neither denominator term
			case dx == 0:
				tiesX++
			case dy == 0:
				tiesY++
			case dx*dy > 0:
				concordant++
			default:
				discordant++
			}
		}
	}

	denom := math.Sqrt((concordant + discordant + tiesX) * (concordant + discordant + tiesY))
	if denom == 0 {
		return 0
	}
	return (concordant - discordant) / denom
}

// rankDescending returns the 0-based rank order of indices when scores are
// sorted descending. Ties keep the earlier index first, matching the
// stable sort used in production re-ranking.
func rankDescending(scores []float64) []int {
	indices := make([]int, len(scores))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return scores[indices[a]] > scores[indices[b]]
	})
	return indices
}
