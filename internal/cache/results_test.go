package cache

import (
	"testing"
	"time"

	"github.com/arclight/postrank/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(ttl time.Duration) (*ResultsCache, *time.Time) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	c := NewResultsCache(ttl, logger)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func docsNamed(urls ...string) []models.RankedDocument {
	docs := make([]models.RankedDocument, len(urls))
	for i, u := range urls {
		docs[i] = models.RankedDocument{URL: u}
	}
	return docs
}

func TestResultsCache_StoreAndRetrieve(t *testing.T) {
	c, _ := newTestCache(5 * time.Minute)

	stored := docsNamed("a", "b")
	c.Store("conv-1", stored, "coffee shops")

	got, ok := c.Retrieve("conv-1")
	require.True(t, ok)
	assert.Equal(t, stored, got)

	_, ok = c.Retrieve("conv-unknown")
	assert.False(t, ok)
}

func TestResultsCache_Expiry(t *testing.T) {
	c, now := newTestCache(5 * time.Minute)

	c.Store("conv-1", docsNamed("a"), "query")

	// Still fresh just inside the TTL.
	*now = now.Add(5 * time.Minute)
	_, ok := c.Retrieve("conv-1")
	assert.True(t, ok)

	// One tick past the TTL the entry is gone for good.
	*now = now.Add(time.Nanosecond)
	_, ok = c.Retrieve("conv-1")
	assert.False(t, ok)

	assert.Equal(t, 0, c.GetStats().TotalEntries)
}

func TestResultsCache_OverwriteReplacesEntry(t *testing.T) {
	c, _ := newTestCache(5 * time.Minute)

	c.Store("conv-1", docsNamed("old"), "first query")
	c.Store("conv-1", docsNamed("new-1", "new-2"), "second query")

	got, ok := c.Retrieve("conv-1")
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "new-1", got[0].URL)

	stats := c.GetStats()
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, 2, stats.TotalDocuments)
}

func TestResultsCache_StoreSweepsExpired(t *testing.T) {
	c, now := newTestCache(time.Minute)

	c.Store("conv-old", docsNamed("a"), "query")

	*now = now.Add(2 * time.Minute)
	c.Store("conv-new", docsNamed("b"), "query")

	stats := c.GetStats()
	assert.Equal(t, 1, stats.TotalEntries)

	_, ok := c.Retrieve("conv-old")
	assert.False(t, ok)
	_, ok = c.Retrieve("conv-new")
	assert.True(t, ok)
}

func TestResultsCache_Stats(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	assert.Equal(t, Stats{}, c.GetStats())

	c.Store("conv-1", docsNamed("a", "b", "c"), "query one")
	c.Store("conv-2", docsNamed("d"), "query two")

	stats := c.GetStats()
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 4, stats.TotalDocuments)
}
