package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arclight/postrank/internal/database"
	"github.com/arclight/postrank/internal/health"
	"github.com/arclight/postrank/internal/models"
	"github.com/arclight/postrank/internal/pipeline"
	"github.com/arclight/postrank/internal/repository"
	"github.com/arclight/postrank/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxQueryLength = 2000

type RankingHandler struct {
	pipeline    *pipeline.Pipeline
	repoManager *repository.RepositoryManager
	cache       *database.Cache
	checker     *health.HealthChecker
	logger      *logrus.Logger
}

// NewRankingHandler wires the post-ranking pipeline into the HTTP API.
// repoManager, cache and checker may be nil when the analytics sink is
// unavailable; the affected endpoints degrade instead of failing startup.
func NewRankingHandler(
	p *pipeline.Pipeline,
	repoManager *repository.RepositoryManager,
	cache *database.Cache,
	checker *health.HealthChecker,
	logger *logrus.Logger,
) *RankingHandler {
	return &RankingHandler{
		pipeline:    p,
		repoManager: repoManager,
		cache:       cache,
		checker:     checker,
		logger:      logger,
	}
}

// HandleRerank processes re-ranking requests
func (h *RankingHandler) HandleRerank(c *gin.Context) {
	startTime := time.Now()

	var req models.RerankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Invalid rerank request")
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Query cannot be empty", nil)
		return
	}
	if len(query) > maxQueryLength {
		utils.ErrorResponse(c, http.StatusBadRequest, "Query too long (max 2000 characters)", nil)
		return
	}
	if !utils.ValidateConversationID(req.ConversationID) {
		utils.ErrorResponse(c, http.StatusBadRequest, "Conversation ID is required", nil)
		return
	}

	docs := make([]models.RankedDocument, 0, len(req.Documents))
	for _, raw := range req.Documents {
		docs = append(docs, models.NormalizeDocument(raw))
	}

	queryID := utils.NewQueryID()

	h.logger.WithFields(logrus.Fields{
		"query_id":        queryID,
		"conversation_id": req.ConversationID,
		"num_documents":   len(docs),
	}).Info("Processing rerank request")

	result := h.pipeline.Process(req.ConversationID, queryID, query, docs, req.TopK)

	response := models.RerankResponse{
		QueryID:         result.QueryID,
		Results:         result.Documents,
		SelectionScores: result.SelectionScores,
		Ranking:         result.Metadata,
		ResponseTime:    int(time.Since(startTime).Milliseconds()),
	}

	utils.SuccessResponse(c, http.StatusOK, "Rerank completed", response)
}

// HandleConversationResults returns the cached final ranking for a conversation.
func (h *RankingHandler) HandleConversationResults(c *gin.Context) {
	conversationID := c.Param("id")
	if !utils.ValidateConversationID(conversationID) {
		utils.ErrorResponse(c, http.StatusBadRequest, "Conversation ID is required", nil)
		return
	}

	results, ok := h.pipeline.Cached(conversationID)
	if !ok {
		utils.ErrorResponse(c, http.StatusNotFound, "No cached results for conversation", nil)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Cached results", gin.H{
		"conversation_id": conversationID,
		"results":         results,
	})
}

// HandleCacheStats returns results-cache counts.
func (h *RankingHandler) HandleCacheStats(c *gin.Context) {
	stats := h.pipeline.CacheStats()
	utils.SuccessResponse(c, http.StatusOK, "Cache statistics", models.CacheStatsResponse{
		TotalEntries:   stats.TotalEntries,
		TotalDocuments: stats.TotalDocuments,
	})
}

// ShadowSummary aggregates recent shadow-mode agreement metrics.
type ShadowSummary struct {
	NumQueries         int                         `json:"num_queries"`
	AvgTopKOverlap     float64                     `json:"avg_top_k_overlap"`
	AvgRankCorrelation float64                     `json:"avg_rank_correlation"`
	AvgPositionChange  float64                     `json:"avg_position_change"`
	Recent             []models.ShadowMetricRecord `json:"recent"`
}

// HandleShadowMetrics returns recent shadow-mode agreement metrics,
// served from Redis when a fresh summary is cached.
func (h *RankingHandler) HandleShadowMetrics(c *gin.Context) {
	if h.repoManager == nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Analytics store not configured", nil)
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if h.cache != nil {
		var cached ShadowSummary
		if err := h.cache.GetCachedShadowSummary(ctx, &cached); err == nil && cached.NumQueries > 0 {
			utils.SuccessResponse(c, http.StatusOK, "Shadow metrics (cached)", cached)
			return
		}
	}

	records, err := h.repoManager.ShadowMetric.GetRecent(limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load shadow metrics")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to load shadow metrics", err)
		return
	}

	summary := summarizeShadowMetrics(records)

	if h.cache != nil {
		if err := h.cache.CacheShadowSummary(ctx, summary, time.Minute); err != nil {
			h.logger.WithError(err).Warn("Failed to cache shadow summary")
		}
	}

	utils.SuccessResponse(c, http.StatusOK, "Shadow metrics", summary)
}

// HandleHealth returns overall service health.
func (h *RankingHandler) HandleHealth(c *gin.Context) {
	services := map[string]string{}
	status := "healthy"

	if h.checker != nil {
		overall := h.checker.CheckAll()
		status = overall.Status
		for _, svc := range overall.Services {
			services[svc.Name] = svc.Status
		}
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, models.HealthResponse{
		Status:    status,
		Service:   "postrank",
		Timestamp: time.Now().Format(time.RFC3339),
		Services:  services,
	})
}

func summarizeShadowMetrics(records []models.ShadowMetricRecord) ShadowSummary {
	summary := ShadowSummary{
		NumQueries: len(records),
		Recent:     records,
	}
	if len(records) == 0 {
		return summary
	}

	for _, r := range records {
		summary.AvgTopKOverlap += r.TopKOverlap
		summary.AvgRankCorrelation += r.RankCorrelation
		summary.AvgPositionChange += r.AvgPositionChange
	}
	n := float64(len(records))
	summary.AvgTopKOverlap /= n
	summary.AvgRankCorrelation /= n
	summary.AvgPositionChange /= n

	return summary
}
