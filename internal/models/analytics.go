package models

// GORM models for the ranking analytics sink. These rows are written
// fire-and-forget during serving and consumed by the offline training and
// evaluation jobs; nothing in the serving path ever reads them back.

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RankingPrediction is one secondary-model prediction for one document of
// one query, logged in shadow mode for offline comparison.
type RankingPrediction struct {
	BaseModel
	QueryID         string  `json:"query_id" gorm:"not null;index"`
	DocURL          string  `json:"doc_url" gorm:"not null"`
	ModelScore      float64 `json:"model_score"`
	ModelConfidence float64 `json:"model_confidence"`
	RankingPosition int     `json:"ranking_position"`
}

// DiversityScore is the MMR selection score of one document at one
// position after diversity re-ranking.
type DiversityScore struct {
	BaseModel
	QueryID         string  `json:"query_id" gorm:"not null;index"`
	DocURL          string  `json:"doc_url" gorm:"not null"`
	Score           float64 `json:"score"`
	RankingPosition int     `json:"ranking_position"`
}

// ShadowMetricRecord is the per-query agreement summary between the
// primary and secondary rankings.
type ShadowMetricRecord struct {
	BaseModel
	QueryID           string  `json:"query_id" gorm:"not null;uniqueIndex"`
	QueryText         string  `json:"query_text"`
	AvgModelScore     float64 `json:"avg_model_score"`
	AvgConfidence     float64 `json:"avg_confidence"`
	TopKOverlap       float64 `json:"top_k_overlap"`
	RankCorrelation   float64 `json:"rank_correlation"`
	AvgPositionChange float64 `json:"avg_position_change"`
	NumResults        int     `json:"num_results"`
}

// Repository interfaces

type RankingPredictionRepository interface {
	CreateBatch(predictions []RankingPrediction) error
	GetByQueryID(queryID string) ([]RankingPrediction, error)
}

type DiversityScoreRepository interface {
	CreateBatch(scores []DiversityScore) error
	GetByQueryID(queryID string) ([]DiversityScore, error)
}

type ShadowMetricRepository interface {
	Create(record *ShadowMetricRecord) error
	GetRecent(limit int) ([]ShadowMetricRecord, error)
}

// TableName methods for custom table names
func (RankingPrediction) TableName() string  { return "ranking_predictions" }
func (DiversityScore) TableName() string     { return "diversity_scores" }
func (ShadowMetricRecord) TableName() string { return "shadow_metrics" }

// Model validation methods
func (rp *RankingPrediction) Validate() error {
	if rp.QueryID == "" {
		return fmt.Errorf("query ID is required")
	}
	if rp.DocURL == "" {
		return fmt.Errorf("doc URL is required")
	}
	return nil
}

func (sm *ShadowMetricRecord) Validate() error {
	if sm.QueryID == "" {
		return fmt.Errorf("query ID is required")
	}
	if sm.RankCorrelation < -1 || sm.RankCorrelation > 1 {
		return fmt.Errorf("rank correlation out of range: %f", sm.RankCorrelation)
	}
	return nil
}

// GORM hooks
func (rp *RankingPrediction) BeforeCreate(tx *gorm.DB) error {
	return rp.Validate()
}

func (sm *ShadowMetricRecord) BeforeCreate(tx *gorm.DB) error {
	return sm.Validate()
}
