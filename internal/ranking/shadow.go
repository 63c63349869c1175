package ranking

import (
	"sort"

	"github.com/arclight/postrank/internal/analytics"
	"github.com/arclight/postrank/internal/config"
	"github.com/arclight/postrank/internal/features"
	"github.com/arclight/postrank/internal/models"
	"github.com/sirupsen/logrus"
)

// fallbackConfidence is emitted for every document when no trained model
// is available and predictions are derived from the primary scores.
const fallbackConfidence = 0.5

// ShadowRanker runs the secondary statistical model against the primary
// ranking. Three operating modes:
//
//   - disabled: pass-through, no computation
//   - shadow: predict, log agreement metrics, return input unchanged
//   - production: predict and re-sort by predicted score
//
// Mode transitions (disabled → shadow → production) are operator
// configuration; the ranker itself is stateless across calls except for
// the injected model registry.
type ShadowRanker struct {
	cfg       config.RankingConfig
	registry  *ModelRegistry
	extractor *features.Extractor
	recorder  analytics.Recorder
	logger    *logrus.Logger
}

func NewShadowRanker(cfg config.RankingConfig, registry *ModelRegistry, recorder analytics.Recorder, logger *logrus.Logger) *ShadowRanker {
	if cfg.Enabled {
		logger.WithFields(logrus.Fields{
			"shadow_mode":          cfg.UseShadowMode,
			"model_path":           cfg.ModelPath,
			"confidence_threshold": cfg.ConfidenceThreshold,
		}).Info("Secondary ranker enabled")
	}
	return &ShadowRanker{
		cfg:       cfg,
		registry:  registry,
		extractor: features.NewExtractor(),
		recorder:  recorder,
		logger:    logger,
	}
}

// Rerank applies the secondary model to an already-ranked list. It never
// fails the request: every degraded path returns the input unchanged with
// used_ml=false. queryID keys the analytics rows written in shadow mode.
func (s *ShadowRanker) Rerank(docs []models.RankedDocument, query, queryID string) (result []models.RankedDocument, metadata models.RerankMetadata) {
	metadata = models.RerankMetadata{
		ShadowMode: s.cfg.UseShadowMode,
		NumResults: len(docs),
	}
	result = docs

	// Ranking must survive anything the ML path does; an unexpected
	// panic degrades to pass-through instead of failing the request.
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("Secondary ranking panicked, passing input through unchanged")
			result = docs
			metadata.UsedML = false
		}
	}()

	if !s.cfg.Enabled || len(docs) == 0 {
		return result, metadata
	}

	model, loaded := s.registry.Get(s.cfg.ModelPath)
	if !loaded && !s.cfg.UseShadowMode {
		// Production intent without a model demotes to pass-through;
		// the registry already warned about the missing artifact.
		return result, metadata
	}

	intent := DetectIntent(query)
	vectors := s.extractor.ExtractAll(query, docs, intent)

	// A width mismatch means the feature schema and the model disagree;
	// predicting over it would be silently wrong. Abort the ML path for
	// this request only.
	for _, v := range vectors {
		if len(v) != features.TotalFeatures {
			s.logger.WithFields(logrus.Fields{
				"got":  len(v),
				"want": features.TotalFeatures,
			}).Error("Feature vector width mismatch, skipping ML ranking for this request")
			return result, metadata
		}
	}

	scores, confidences, err := s.predict(model, vectors)
	if err != nil {
		s.logger.WithError(err).Error("Secondary model prediction failed, passing input through unchanged")
		return result, metadata
	}

	metadata.AvgModelScore = mean(scores)
	metadata.AvgConfidence = mean(confidences)

	if s.cfg.UseShadowMode {
		s.evaluateShadow(docs, scores, confidences, query, queryID, &metadata)
		return result, metadata
	}

	// Production mode: attach predictions and stable-sort descending.
	reranked := make([]models.RankedDocument, len(docs))
	copy(reranked, docs)
	for i := range reranked {
		reranked[i].ModelScore = scores[i]
		reranked[i].ModelConfidence = confidences[i]
	}
	sort.SliceStable(reranked, func(a, b int) bool {
		return reranked[a].ModelScore > reranked[b].ModelScore
	})

	metadata.UsedML = true
	s.logger.WithFields(logrus.Fields{
		"results":        len(reranked),
		"avg_confidence": metadata.AvgConfidence,
	}).Info("Re-ranked results with secondary model")

	return reranked, metadata
}

// predict runs the loaded model, or the deterministic fallback when no
// model exists yet: primary relevance scores normalized to [0,1] with a
// constant mid-level confidence. The fallback keeps the shadow pipeline
// producing agreement history before any model has been trained.
func (s *ShadowRanker) predict(model Model, vectors []features.Vector) ([]float64, []float64, error) {
	if model != nil {
		return model.Predict(vectors)
	}

	maxScore := 0.0
	for _, v := range vectors {
		if v[features.IdxFinalScore] > maxScore {
			maxScore = v[features.IdxFinalScore]
		}
	}

	scores := make([]float64, len(vectors))
	confidences := make([]float64, len(vectors))
	for i, v := range vectors {
		if maxScore > 0 {
			scores[i] = v[features.IdxFinalScore] / maxScore
		}
		confidences[i] = fallbackConfidence
	}
	return scores, confidences, nil
}

// evaluateShadow computes agreement between the primary order and the
// order the model would have produced, then records everything for
// offline analysis. The served ranking is never touched.
func (s *ShadowRanker) evaluateShadow(docs []models.RankedDocument, scores, confidences []float64, query, queryID string, metadata *models.RerankMetadata) {
	primaryURLs := make([]string, len(docs))
	for i := range docs {
		primaryURLs[i] = docs[i].URL
	}

	secondaryURLs := make([]string, len(docs))
	for rank, idx := range rankDescending(scores) {
		secondaryURLs[rank] = docs[idx].URL
	}

	agreement := ComputeAgreement(primaryURLs, secondaryURLs)
	metadata.TopKOverlap = &agreement.TopKOverlap
	metadata.RankCorrelation = &agreement.RankCorrelation
	metadata.AvgPositionChange = &agreement.AvgPositionChange

	s.logger.WithFields(logrus.Fields{
		"query_id":            queryID,
		"avg_model_score":     metadata.AvgModelScore,
		"avg_confidence":      metadata.AvgConfidence,
		"top_k_overlap":       agreement.TopKOverlap,
		"rank_correlation":    agreement.RankCorrelation,
		"avg_position_change": agreement.AvgPositionChange,
	}).Info("Shadow evaluation complete")

	predictions := make([]models.RankingPrediction, len(docs))
	for i := range docs {
		predictions[i] = models.RankingPrediction{
			QueryID:         queryID,
			DocURL:          docs[i].URL,
			ModelScore:      scores[i],
			ModelConfidence: confidences[i],
			RankingPosition: i,
		}
	}
	s.recorder.RecordPredictions(queryID, predictions)

	s.recorder.RecordShadowMetrics(models.ShadowMetricRecord{
		QueryID:           queryID,
		QueryText:         query,
		AvgModelScore:     metadata.AvgModelScore,
		AvgConfidence:     metadata.AvgConfidence,
		TopKOverlap:       agreement.TopKOverlap,
		RankCorrelation:   agreement.RankCorrelation,
		AvgPositionChange: agreement.AvgPositionChange,
		NumResults:        len(docs),
	})
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
