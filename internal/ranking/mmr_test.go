package ranking

import (
	"testing"

	"github.com/arclight/postrank/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReranker(lambda float64, threshold int) *DiversityReranker {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewDiversityReranker(lambda, threshold, logger)
}

func embeddedDoc(url string, score float64, embedding []float64) models.RankedDocument {
	return models.RankedDocument{
		URL:            url,
		Title:          url,
		RelevanceScore: score,
		Embedding:      embedding,
	}
}

func TestDetectIntent(t *testing.T) {
	cases := []struct {
		query string
		want  models.QueryIntent
	}{
		{"how to install postgres", models.IntentSpecific},
		{"what is a b-tree", models.IntentSpecific},
		{"如何安裝", models.IntentSpecific},
		{"best pizza places", models.IntentExploratory},
		{"alternatives to docker", models.IntentExploratory},
		{"熱門餐廳", models.IntentExploratory},
		{"postgres", models.IntentBalanced},
		{"", models.IntentBalanced},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectIntent(tc.query), "query %q", tc.query)
	}
}

func TestDiversityReranker_EmptyInput(t *testing.T) {
	r := newTestReranker(0.7, 3)

	selected, scores, diag, err := r.Rerank(nil, "query", 10)
	require.NoError(t, err)
	assert.Empty(t, selected)
	assert.Empty(t, scores)
	assert.Nil(t, diag)
}

func TestDiversityReranker_SkipsSmallSets(t *testing.T) {
	r := newTestReranker(0.7, 3)

	docs := []models.RankedDocument{
		embeddedDoc("a", 0.9, []float64{1, 0}),
		embeddedDoc("b", 0.8, []float64{0.9, 0.1}),
		embeddedDoc("c", 0.7, []float64{0.8, 0.2}),
	}

	selected, scores, diag, err := r.Rerank(docs, "query", 3)
	require.NoError(t, err)
	require.Len(t, selected, 3)
	assert.Nil(t, diag)

	// Original order preserved, placeholder scores.
	for i := range docs {
		assert.Equal(t, docs[i].URL, selected[i].URL)
		assert.Equal(t, 0.0, scores[i])
	}
}

func TestDiversityReranker_DimensionMismatch(t *testing.T) {
	r := newTestReranker(0.7, 0)

	docs := []models.RankedDocument{
		embeddedDoc("a", 0.9, []float64{1, 0, 0}),
		embeddedDoc("b", 0.8, []float64{1, 0}),
	}

	_, _, _, err := r.Rerank(docs, "query", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestDiversityReranker_HighestRelevanceFirst(t *testing.T) {
	r := newTestReranker(0.5, 0)

	docs := []models.RankedDocument{
		embeddedDoc("mid", 0.5, []float64{0, 1, 0}),
		embeddedDoc("top", 0.9, []float64{1, 0, 0}),
		embeddedDoc("low", 0.1, []float64{0, 0, 1}),
	}

	selected, _, _, err := r.Rerank(docs, "query", 3)
	require.NoError(t, err)
	require.NotEmpty(t, selected)
	assert.Equal(t, "top", selected[0].URL)
}

func TestDiversityReranker_PenalizesNearDuplicates(t *testing.T) {
	r := newTestReranker(0.7, 3)

	// "best" forces the exploratory lambda of 0.5, which makes the
	// near-duplicate of the top result lose to the dissimilar ones.
	docs := []models.RankedDocument{
		embeddedDoc("a", 1.0, []float64{1, 0, 0}),
		embeddedDoc("a-dup", 0.95, []float64{1, 0.01, 0}),
		embeddedDoc("c", 0.5, []float64{0, 1, 0}),
		embeddedDoc("d", 0.4, []float64{0, 0, 1}),
	}

	selected, scores, diag, err := r.Rerank(docs, "best options", 4)
	require.NoError(t, err)
	require.Len(t, selected, 4)
	require.Len(t, scores, 4)

	urls := []string{selected[0].URL, selected[1].URL, selected[2].URL, selected[3].URL}
	assert.Equal(t, []string{"a", "c", "d", "a-dup"}, urls)

	// Selection scores are attached to the returned documents.
	for i := range selected {
		assert.Equal(t, scores[i], selected[i].DiversityScore)
	}

	require.NotNil(t, diag)
	assert.Equal(t, models.IntentExploratory, diag.Intent)
	assert.Equal(t, 0.5, diag.Lambda)
	// The selection spread out, so average similarity must not increase.
	assert.GreaterOrEqual(t, diag.DiversityReduction, 0.0)
}

func TestDiversityReranker_SeparatesNearDuplicatePair(t *testing.T) {
	r := newTestReranker(0.7, 3)

	// d2 and d3 are near-duplicates (cosine ~0.98); every other pair sits
	// near 0.1. With the default lambda the pair must not land in adjacent
	// positions 2 and 3.
	docs := []models.RankedDocument{
		embeddedDoc("d1", 95, []float64{1, 0, 0, 0}),
		embeddedDoc("d2", 90, []float64{0.1, 0.995, 0, 0}),
		embeddedDoc("d3", 85, []float64{0.1, 0.9749, 0.199, 0}),
		embeddedDoc("d4", 80, []float64{0.1, 0, 0.995, 0}),
		embeddedDoc("d5", 75, []float64{0.1, 0, 0, 0.995}),
	}

	selected, _, _, err := r.Rerank(docs, "tokyo ramen", 5)
	require.NoError(t, err)
	require.Len(t, selected, 5)

	urls := make([]string, len(selected))
	for i := range selected {
		urls[i] = selected[i].URL
	}
	assert.Equal(t, []string{"d1", "d2", "d4", "d3", "d5"}, urls)
}

func TestDiversityReranker_PureRelevanceOrder(t *testing.T) {
	// Lambda 1.0 disables the diversity penalty entirely.
	r := newTestReranker(1.0, 0)

	docs := []models.RankedDocument{
		embeddedDoc("second", 0.8, []float64{1, 0}),
		embeddedDoc("first", 0.9, []float64{1, 0.001}),
		embeddedDoc("third", 0.2, []float64{0, 1}),
	}

	selected, _, _, err := r.Rerank(docs, "neutral query", 3)
	require.NoError(t, err)
	require.Len(t, selected, 3)

	assert.Equal(t, "first", selected[0].URL)
	assert.Equal(t, "second", selected[1].URL)
	assert.Equal(t, "third", selected[2].URL)
}

func TestDiversityReranker_PadsWithNonEmbedded(t *testing.T) {
	r := newTestReranker(0.7, 3)

	docs := []models.RankedDocument{
		embeddedDoc("a", 0.9, []float64{1, 0, 0}),
		embeddedDoc("b", 0.8, []float64{0, 1, 0}),
		embeddedDoc("c", 0.7, []float64{0, 0, 1}),
		embeddedDoc("d", 0.6, []float64{0.5, 0.5, 0}),
		{URL: "no-embedding", RelevanceScore: 0.5},
	}

	selected, scores, _, err := r.Rerank(docs, "query", 5)
	require.NoError(t, err)
	require.Len(t, selected, 5)

	assert.Equal(t, "no-embedding", selected[4].URL)
	assert.Equal(t, 0.0, scores[4])
}

func TestDiversityReranker_TopKLimitsOutput(t *testing.T) {
	r := newTestReranker(0.7, 0)

	docs := []models.RankedDocument{
		embeddedDoc("a", 0.9, []float64{1, 0}),
		embeddedDoc("b", 0.8, []float64{0, 1}),
		embeddedDoc("c", 0.7, []float64{1, 1}),
	}

	selected, scores, _, err := r.Rerank(docs, "query", 2)
	require.NoError(t, err)
	assert.Len(t, selected, 2)
	assert.Len(t, scores, 2)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{1, 0, 0}))
	// Opposed vectors clamp to 0 rather than going negative.
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{-1, 0}))
}
