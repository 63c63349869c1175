package repository

import (
	"github.com/arclight/postrank/internal/models"
	"gorm.io/gorm"
)

// RankingPredictionRepositoryImpl implements RankingPredictionRepository
type RankingPredictionRepositoryImpl struct {
	db *gorm.DB
}

func NewRankingPredictionRepository(db *gorm.DB) models.RankingPredictionRepository {
	return &RankingPredictionRepositoryImpl{db: db}
}

func (r *RankingPredictionRepositoryImpl) CreateBatch(predictions []models.RankingPrediction) error {
	return r.db.Create(&predictions).Error
}

func (r *RankingPredictionRepositoryImpl) GetByQueryID(queryID string) ([]models.RankingPrediction, error) {
	var predictions []models.RankingPrediction
	err := r.db.Where("query_id = ?", queryID).
		Order("ranking_position").
		Find(&predictions).Error
	return predictions, err
}

// DiversityScoreRepositoryImpl implements DiversityScoreRepository
type DiversityScoreRepositoryImpl struct {
	db *gorm.DB
}

func NewDiversityScoreRepository(db *gorm.DB) models.DiversityScoreRepository {
	return &DiversityScoreRepositoryImpl{db: db}
}

func (r *DiversityScoreRepositoryImpl) CreateBatch(scores []models.DiversityScore) error {
	return r.db.Create(&scores).Error
}

func (r *DiversityScoreRepositoryImpl) GetByQueryID(queryID string) ([]models.DiversityScore, error) {
	var scores []models.DiversityScore
	err := r.db.Where("query_id = ?", queryID).
		Order("ranking_position").
		Find(&scores).Error
	return scores, err
}

// ShadowMetricRepositoryImpl implements ShadowMetricRepository
type ShadowMetricRepositoryImpl struct {
	db *gorm.DB
}

func NewShadowMetricRepository(db *gorm.DB) models.ShadowMetricRepository {
	return &ShadowMetricRepositoryImpl{db: db}
}

func (r *ShadowMetricRepositoryImpl) Create(record *models.ShadowMetricRecord) error {
	return r.db.Create(record).Error
}

func (r *ShadowMetricRepositoryImpl) GetRecent(limit int) ([]models.ShadowMetricRecord, error) {
	var records []models.ShadowMetricRecord
	err := r.db.Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// RepositoryManager bundles all repositories
type RepositoryManager struct {
	RankingPrediction models.RankingPredictionRepository
	DiversityScore    models.DiversityScoreRepository
	ShadowMetric      models.ShadowMetricRepository
}

func NewRepositoryManager(db *gorm.DB) *RepositoryManager {
	return &RepositoryManager{
		RankingPrediction: NewRankingPredictionRepository(db),
		DiversityScore:    NewDiversityScoreRepository(db),
		ShadowMetric:      NewShadowMetricRepository(db),
	}
}
