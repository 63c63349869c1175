// Package pipeline composes the post-ranking stages: the shadow/secondary
// ranker observes (or, in production mode, replaces) the primary ordering,
// the diversity reranker re-orders the result, and the final list is
// cached per conversation for reuse by related requests.
package pipeline

import (
	"github.com/arclight/postrank/internal/analytics"
	"github.com/arclight/postrank/internal/cache"
	"github.com/arclight/postrank/internal/config"
	"github.com/arclight/postrank/internal/models"
	"github.com/arclight/postrank/internal/ranking"
	"github.com/sirupsen/logrus"
)

type Pipeline struct {
	shadow   *ranking.ShadowRanker
	mmr      *ranking.DiversityReranker
	cache    *cache.ResultsCache
	recorder analytics.Recorder
	cfg      *config.Config
	logger   *logrus.Logger
}

// Result is what one pipeline run hands back to the caller.
type Result struct {
	QueryID         string
	Documents       []models.RankedDocument
	SelectionScores []float64
	Metadata        models.RerankMetadata
}

func New(cfg *config.Config, shadow *ranking.ShadowRanker, mmr *ranking.DiversityReranker, resultsCache *cache.ResultsCache, recorder analytics.Recorder, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		shadow:   shadow,
		mmr:      mmr,
		cache:    resultsCache,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
	}
}

// Process runs one scored list through the full post-ranking stage.
// Failures inside any stage degrade to the stage's input; the caller
// always gets a usable ranking back.
func (p *Pipeline) Process(conversationID, queryID, query string, docs []models.RankedDocument, topK int) Result {
	if topK <= 0 || topK > len(docs) {
		topK = len(docs)
	}

	ranked, metadata := p.shadow.Rerank(docs, query, queryID)

	final := ranked
	scores := make([]float64, 0, topK)

	if p.cfg.MMR.Enabled {
		reranked, mmrScores, diag, err := p.mmr.Rerank(ranked, query, topK)
		if err != nil {
			// Dimension mismatch is an upstream contract violation;
			// report it, serve the un-diversified ranking.
			p.logger.WithError(err).Error("Diversity re-ranking failed, serving relevance order")
			final = truncate(ranked, topK)
			scores = make([]float64, len(final))
		} else {
			final = reranked
			scores = mmrScores
			if diag != nil {
				p.logger.WithFields(logrus.Fields{
					"query_id":            queryID,
					"intent":              diag.Intent,
					"lambda":              diag.Lambda,
					"avg_original_sim":    diag.AvgOriginalSim,
					"avg_selected_sim":    diag.AvgSelectedSim,
					"diversity_reduction": diag.DiversityReduction,
				}).Info("Diversity re-ranking diagnostic")
			}
			p.recordDiversityScores(queryID, final, scores)
		}
	} else {
		final = truncate(ranked, topK)
		scores = make([]float64, len(final))
	}

	if conversationID != "" {
		p.cache.Store(conversationID, final, query)
	}

	return Result{
		QueryID:         queryID,
		Documents:       final,
		SelectionScores: scores,
		Metadata:        metadata,
	}
}

// Cached returns the previously served list for a conversation, if any.
func (p *Pipeline) Cached(conversationID string) ([]models.RankedDocument, bool) {
	return p.cache.Retrieve(conversationID)
}

// CacheStats exposes cache counts for the ops API.
func (p *Pipeline) CacheStats() cache.Stats {
	return p.cache.GetStats()
}

func (p *Pipeline) recordDiversityScores(queryID string, docs []models.RankedDocument, scores []float64) {
	records := make([]models.DiversityScore, 0, len(docs))
	for i := range docs {
		score := 0.0
		if i < len(scores) {
			score = scores[i]
		}
		records = append(records, models.DiversityScore{
			QueryID:         queryID,
			DocURL:          docs[i].URL,
			Score:           score,
			RankingPosition: i,
		})
	}
	p.recorder.RecordDiversityScores(queryID, records)
}

func truncate(docs []models.RankedDocument, topK int) []models.RankedDocument {
	if topK >= len(docs) {
		return docs
	}
	return docs[:topK]
}
