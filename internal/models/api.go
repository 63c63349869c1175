package models

type RerankRequest struct {
	ConversationID string                   `json:"conversation_id" binding:"required"`
	Query          string                   `json:"query" binding:"required"`
	TopK           int                      `json:"top_k"`
	Documents      []map[string]interface{} `json:"documents" binding:"required"`
}

type RerankResponse struct {
	QueryID         string           `json:"query_id"`
	Results         []RankedDocument `json:"results"`
	SelectionScores []float64        `json:"selection_scores"`
	Ranking         RerankMetadata   `json:"ranking"`
	ResponseTime    int              `json:"response_time_ms"`
}

// RerankMetadata describes what the secondary ranker did with one request.
// The agreement fields are populated only in shadow mode.
type RerankMetadata struct {
	UsedML        bool    `json:"used_ml"`
	ShadowMode    bool    `json:"shadow_mode"`
	AvgModelScore float64 `json:"avg_model_score"`
	AvgConfidence float64 `json:"avg_confidence"`
	NumResults    int     `json:"num_results"`

	TopKOverlap       *float64 `json:"top_k_overlap,omitempty"`
	RankCorrelation   *float64 `json:"rank_correlation,omitempty"`
	AvgPositionChange *float64 `json:"avg_position_change,omitempty"`
}

type CacheStatsResponse struct {
	TotalEntries   int `json:"total_entries"`
	TotalDocuments int `json:"total_documents"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}
