// Package analytics is the fire-and-forget observability boundary for the
// ranking pipeline. Recorder methods never return errors: a failed
// analytics write is logged and dropped, and must never abort or delay the
// ranking path that triggered it.
package analytics

import (
	"github.com/arclight/postrank/internal/models"
	"github.com/arclight/postrank/internal/repository"
	"github.com/sirupsen/logrus"
)

// Recorder receives ranking telemetry. Implementations must be safe for
// concurrent use and must not propagate failures to callers.
type Recorder interface {
	RecordPredictions(queryID string, predictions []models.RankingPrediction)
	RecordDiversityScores(queryID string, scores []models.DiversityScore)
	RecordShadowMetrics(record models.ShadowMetricRecord)
}

// DBRecorder persists telemetry through the gorm repositories.
type DBRecorder struct {
	repos  *repository.RepositoryManager
	logger *logrus.Logger
}

func NewDBRecorder(repos *repository.RepositoryManager, logger *logrus.Logger) *DBRecorder {
	return &DBRecorder{repos: repos, logger: logger}
}

func (r *DBRecorder) RecordPredictions(queryID string, predictions []models.RankingPrediction) {
	if len(predictions) == 0 {
		return
	}
	if err := r.repos.RankingPrediction.CreateBatch(predictions); err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"query_id": queryID,
			"count":    len(predictions),
		}).Warn("Failed to record shadow predictions")
	}
}

func (r *DBRecorder) RecordDiversityScores(queryID string, scores []models.DiversityScore) {
	if len(scores) == 0 {
		return
	}
	if err := r.repos.DiversityScore.CreateBatch(scores); err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"query_id": queryID,
			"count":    len(scores),
		}).Warn("Failed to record diversity scores")
	}
}

func (r *DBRecorder) RecordShadowMetrics(record models.ShadowMetricRecord) {
	if err := r.repos.ShadowMetric.Create(&record); err != nil {
		r.logger.WithError(err).WithField("query_id", record.QueryID).Warn("Failed to record shadow metrics")
	}
}

// NopRecorder discards everything. Used when no analytics database is
// configured and in tests.
type NopRecorder struct{}

func (NopRecorder) RecordPredictions(string, []models.RankingPrediction)  {}
func (NopRecorder) RecordDiversityScores(string, []models.DiversityScore) {}
func (NopRecorder) RecordShadowMetrics(models.ShadowMetricRecord)         {}
