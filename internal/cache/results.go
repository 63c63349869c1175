// Package cache holds ranked result lists per conversation so a follow-up
// request (e.g. "expand this into a report") can reuse the exact list the
// user already saw instead of re-querying.
package cache

import (
	"sync"
	"time"

	"github.com/arclight/postrank/internal/models"
	"github.com/sirupsen/logrus"
)

type entry struct {
	results   []models.RankedDocument
	query     string
	timestamp time.Time
}

// ResultsCache is a TTL cache keyed by an opaque conversation identifier.
// All access is serialized behind one lock; entries are immutable after
// store (a re-store replaces the whole entry). Memory-only: nothing is
// persisted across restarts.
//
// The cache is constructed once by the host process and injected where
// needed; there is no package-level singleton.
type ResultsCache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	logger  *logrus.Logger
	// now lets tests drive expiry without sleeping.
	now func() time.Time
}

// Stats is a point-in-time snapshot for observability.
type Stats struct {
	TotalEntries   int `json:"total_entries"`
	TotalDocuments int `json:"total_documents"`
}

func NewResultsCache(ttl time.Duration, logger *logrus.Logger) *ResultsCache {
	c := &ResultsCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
	logger.WithField("ttl", ttl).Info("Results cache initialized")
	return c
}

// Store saves the final ranked list for a conversation, replacing any
// previous entry. Expired entries are swept opportunistically on every
// store; the scan is O(live conversations), which stays small.
func (c *ResultsCache) Store(conversationID string, results []models.RankedDocument, query string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[conversationID] = entry{
		results:   results,
		query:     query,
		timestamp: c.now(),
	}
	c.logger.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"results":         len(results),
	}).Debug("Cached ranked results")

	c.sweepExpired()
}

// Retrieve returns the stored list if present and fresh. Expired entries
// are deleted on access; stale data is never returned.
func (c *ResultsCache) Retrieve(conversationID string) ([]models.RankedDocument, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[conversationID]
	if !ok {
		return nil, false
	}

	age := c.now().Sub(e.timestamp)
	if age > c.ttl {
		delete(c.entries, conversationID)
		c.logger.WithFields(logrus.Fields{
			"conversation_id": conversationID,
			"age":             age,
		}).Debug("Cached results expired")
		return nil, false
	}

	return e.results, true
}

// GetStats returns entry and document counts for monitoring.
func (c *ResultsCache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{TotalEntries: len(c.entries)}
	for _, e := range c.entries {
		stats.TotalDocuments += len(e.results)
	}
	return stats
}

// sweepExpired removes stale entries; callers must hold the lock.
func (c *ResultsCache) sweepExpired() {
	now := c.now()
	for id, e := range c.entries {
		if now.Sub(e.timestamp) > c.ttl {
			delete(c.entries, id)
		}
	}
}
