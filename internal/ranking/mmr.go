// Package ranking implements the post-ranking stage: diversity re-ranking
// via maximal marginal relevance, and a secondary statistical ranker that
// runs in shadow mode against the primary (LLM-derived) ordering.
package ranking

import (
	"fmt"
	"math"
	"strings"

	"github.com/arclight/postrank/internal/models"
	"github.com/sirupsen/logrus"
)

// Intent-adjusted trade-off weights. Specific queries favor relevance,
// exploratory queries favor diversity.
const (
	lambdaSpecific    = 0.8
	lambdaExploratory = 0.5
)

// specificCues and exploratoryCues are matched as substrings against the
// lowercased query. Bilingual on purpose: the corpus this serves mixes
// English and Chinese queries.
var specificCues = []string{
	"how to", "如何", "怎麼", "怎么",
	"what is", "什麼是", "什么是",
	"where", "哪裡", "哪里",
	"when", "什麼時候", "什么时候",
}

var exploratoryCues = []string{
	"best", "最好", "推薦", "推荐",
	"ideas", "點子", "想法",
	"options", "選項", "选项",
	"alternatives", "替代", "其他",
	"trends", "趨勢", "趋势",
	"popular", "熱門", "热门",
	"methods", "ways", "方法", "方式",
}

// DetectIntent classifies a query by counting cue matches. Ties and
// cue-free queries are BALANCED.
func DetectIntent(query string) models.QueryIntent {
	lower := strings.ToLower(query)

	specific := 0
	for _, cue := range specificCues {
		if strings.Contains(lower, cue) {
			specific++
		}
	}
	exploratory := 0
	for _, cue := range exploratoryCues {
		if strings.Contains(lower, cue) {
			exploratory++
		}
	}

	switch {
	case specific > exploratory:
		return models.IntentSpecific
	case exploratory > specific:
		return models.IntentExploratory
	default:
		return models.IntentBalanced
	}
}

// DiversityReranker re-orders a relevance-ranked list to balance relevance
// against redundancy using maximal marginal relevance:
//
//	MMR = λ·relevance − (1−λ)·max(similarity to already selected)
//
// It is pure and reentrant: no shared mutable state beyond the injected
// logger.
type DiversityReranker struct {
	defaultLambda float64
	// skipThreshold is the minimum embedded-candidate count; at or below
	// it the input order is returned unchanged.
	skipThreshold int
	logger        *logrus.Logger
}

func NewDiversityReranker(defaultLambda float64, skipThreshold int, logger *logrus.Logger) *DiversityReranker {
	return &DiversityReranker{
		defaultLambda: defaultLambda,
		skipThreshold: skipThreshold,
		logger:        logger,
	}
}

// DiversityDiagnostic reports average pairwise similarity among the
// original top-k versus the final selection. Observability only; it never
// influences which documents are returned.
type DiversityDiagnostic struct {
	Intent             models.QueryIntent
	Lambda             float64
	AvgOriginalSim     float64
	AvgSelectedSim     float64
	DiversityReduction float64
}

// Rerank returns a re-ordered subset of size ≤ topK plus a parallel list
// of selection scores. Documents without embeddings keep their original
// relative order and get a placeholder score of 0.
func (r *DiversityReranker) Rerank(docs []models.RankedDocument, query string, topK int) ([]models.RankedDocument, []float64, *DiversityDiagnostic, error) {
	if len(docs) == 0 {
		return []models.RankedDocument{}, []float64{}, nil, nil
	}
	if topK <= 0 || topK > len(docs) {
		topK = len(docs)
	}

	intent := DetectIntent(query)
	lambda := r.lambdaFor(intent)

	// Partition into embedded candidates and the rest.
	var candidates, withoutEmbedding []models.RankedDocument
	dims := 0
	for _, d := range docs {
		if d.HasEmbedding() {
			if dims == 0 {
				dims = len(d.Embedding)
			} else if len(d.Embedding) != dims {
				return nil, nil, nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d (url=%s)", len(d.Embedding), dims, d.URL)
			}
			candidates = append(candidates, d)
		} else {
			withoutEmbedding = append(withoutEmbedding, d)
		}
	}

	// Diversity optimization is not meaningful on tiny sets.
	if len(candidates) <= r.skipThreshold {
		r.logger.WithFields(logrus.Fields{
			"candidates": len(candidates),
			"threshold":  r.skipThreshold,
		}).Debug("Too few embedded candidates, skipping diversity re-ranking")

		n := topK
		if n > len(docs) {
			n = len(docs)
		}
		return append([]models.RankedDocument{}, docs[:n]...), make([]float64, n), nil, nil
	}

	// Min-max normalize relevance across candidates.
	minScore, maxScore := candidates[0].RelevanceScore, candidates[0].RelevanceScore
	for _, c := range candidates[1:] {
		if c.RelevanceScore < minScore {
			minScore = c.RelevanceScore
		}
		if c.RelevanceScore > maxScore {
			maxScore = c.RelevanceScore
		}
	}
	scoreRange := maxScore - minScore
	if scoreRange == 0 {
		scoreRange = 1.0
	}
	normalized := func(c *models.RankedDocument) float64 {
		return (c.RelevanceScore - minScore) / scoreRange
	}

	// Greedy selection, seeded with the highest-relevance candidate.
	firstIdx := 0
	for i := range candidates {
		if candidates[i].RelevanceScore > candidates[firstIdx].RelevanceScore {
			firstIdx = i
		}
	}

	selected := []models.RankedDocument{candidates[firstIdx]}
	scores := []float64{normalized(&candidates[firstIdx])}
	taken := map[int]bool{firstIdx: true}

	for len(selected) < topK && len(selected) < len(candidates) {
		bestScore := math.Inf(-1)
		bestIdx := -1

		for i := range candidates {
			if taken[i] {
				continue
			}

			maxSim := 0.0
			for j := range selected {
				sim := CosineSimilarity(candidates[i].Embedding, selected[j].Embedding)
				if sim > maxSim {
					maxSim = sim
				}
			}

			mmr := lambda*normalized(&candidates[i]) - (1-lambda)*maxSim
			// Strict > keeps first occurrence on ties, preserving
			// original relevance order.
			if mmr > bestScore {
				bestScore = mmr
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			break
		}
		selected = append(selected, candidates[bestIdx])
		scores = append(scores, bestScore)
		taken[bestIdx] = true
	}

	diag := r.diagnostic(candidates, selected, topK, intent, lambda)

	// Pad with non-embedding documents in original order.
	if remaining := topK - len(selected); remaining > 0 && len(withoutEmbedding) > 0 {
		if remaining > len(withoutEmbedding) {
			remaining = len(withoutEmbedding)
		}
		selected = append(selected, withoutEmbedding[:remaining]...)
		scores = append(scores, make([]float64, remaining)...)
	}

	for i := range selected {
		selected[i].DiversityScore = scores[i]
	}

	r.logger.WithFields(logrus.Fields{
		"intent":   intent,
		"lambda":   lambda,
		"selected": len(selected),
		"topK":     topK,
	}).Debug("Diversity re-ranking complete")

	return selected, scores, diag, nil
}

func (r *DiversityReranker) lambdaFor(intent models.QueryIntent) float64 {
	switch intent {
	case models.IntentSpecific:
		return lambdaSpecific
	case models.IntentExploratory:
		return lambdaExploratory
	default:
		return r.defaultLambda
	}
}

func (r *DiversityReranker) diagnostic(candidates, selected []models.RankedDocument, topK int, intent models.QueryIntent, lambda float64) *DiversityDiagnostic {
	if len(selected) < 2 {
		return nil
	}

	originalTopK := candidates
	if len(originalTopK) > topK {
		originalTopK = originalTopK[:topK]
	}

	diag := &DiversityDiagnostic{
		Intent:         intent,
		Lambda:         lambda,
		AvgOriginalSim: avgPairwiseSimilarity(originalTopK),
		AvgSelectedSim: avgPairwiseSimilarity(selected),
	}
	diag.DiversityReduction = diag.AvgOriginalSim - diag.AvgSelectedSim
	return diag
}

func avgPairwiseSimilarity(docs []models.RankedDocument) float64 {
	sum, pairs := 0.0, 0
	for i := 0; i < len(docs); i++ {
		for j := i + 1; j < len(docs); j++ {
			if !docs[i].HasEmbedding() || !docs[j].HasEmbedding() {
				continue
			}
			sum += CosineSimilarity(docs[i].Embedding, docs[j].Embedding)
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}

// CosineSimilarity computes cosine similarity clamped to [0,1]. A
// zero-norm vector yields 0, as does a dimension mismatch (callers are
// expected to have validated dimensions already).
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
