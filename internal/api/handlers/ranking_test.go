package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arclight/postrank/internal/analytics"
	"github.com/arclight/postrank/internal/cache"
	"github.com/arclight/postrank/internal/config"
	"github.com/arclight/postrank/internal/pipeline"
	"github.com/arclight/postrank/internal/ranking"
	"github.com/arclight/postrank/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := &config.Config{}
	cfg.MMR.Enabled = true
	cfg.MMR.Lambda = 0.7
	cfg.MMR.Threshold = 3

	shadow := ranking.NewShadowRanker(cfg.Ranking, ranking.NewModelRegistry(logger), analytics.NopRecorder{}, logger)
	mmr := ranking.NewDiversityReranker(cfg.MMR.Lambda, cfg.MMR.Threshold, logger)
	resultsCache := cache.NewResultsCache(5*time.Minute, logger)
	pipe := pipeline.New(cfg, shadow, mmr, resultsCache, analytics.NopRecorder{}, logger)

	handler := NewRankingHandler(pipe, nil, nil, nil, logger)

	router := gin.New()
	router.GET("/health", handler.HandleHealth)
	v1 := router.Group("/api/v1")
	{
		v1.POST("/rerank", handler.HandleRerank)
		v1.GET("/conversations/:id/results", handler.HandleConversationResults)
		v1.GET("/cache/stats", handler.HandleCacheStats)
		v1.GET("/metrics/shadow", handler.HandleShadowMetrics)
	}
	return router
}

func rerankBody() []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"conversation_id": "conv-1",
		"query":           "coffee shops",
		"top_k":           2,
		"documents": []map[string]interface{}{
			{
				"url":     "https://example.com/a",
				"name":    "A",
				"ranking": map[string]interface{}{"score": 0.9},
			},
			{
				"url":     "https://example.com/b",
				"name":    "B",
				"ranking": map[string]interface{}{"score": 0.5},
			},
		},
	})
	return body
}

func TestRankingHandler_HandleRerank(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rerank", bytes.NewReader(rerankBody()))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, data["query_id"])

	results, ok := data["results"].([]interface{})
	require.True(t, ok)
	assert.Len(t, results, 2)
}

func TestRankingHandler_HandleRerankRejectsBadInput(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing query", map[string]interface{}{
			"conversation_id": "conv-1",
			"documents":       []map[string]interface{}{{"url": "x"}},
		}},
		{"missing conversation", map[string]interface{}{
			"query":     "coffee",
			"documents": []map[string]interface{}{{"url": "x"}},
		}},
		{"blank query", map[string]interface{}{
			"conversation_id": "conv-1",
			"query":           "   ",
			"documents":       []map[string]interface{}{{"url": "x"}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, _ := json.Marshal(tc.body)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/rerank", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRankingHandler_ConversationResults(t *testing.T) {
	router := newTestRouter(t)

	// Nothing cached yet.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/conv-1/results", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Rerank populates the conversation cache.
	rerank := httptest.NewRequest(http.MethodPost, "/api/v1/rerank", bytes.NewReader(rerankBody()))
	rerank.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(httptest.NewRecorder(), rerank)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/conversations/conv-1/results", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRankingHandler_CacheStats(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestRankingHandler_ShadowMetricsWithoutStore(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/shadow", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRankingHandler_HealthWithoutChecker(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
