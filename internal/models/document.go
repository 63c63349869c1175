package models

import (
	"fmt"
	"strings"
)

// QueryIntent classifies what the user is after. It feeds both the MMR
// trade-off weight and the feature vector, so the numeric encoding is part
// of the model contract.
type QueryIntent string

const (
	IntentSpecific    QueryIntent = "SPECIFIC"
	IntentExploratory QueryIntent = "EXPLORATORY"
	IntentBalanced    QueryIntent = "BALANCED"
)

// Encode returns the numeric value used in feature vectors.
// SPECIFIC=0, EXPLORATORY=1, BALANCED=2. Unknown values encode as BALANCED.
func (qi QueryIntent) Encode() float64 {
	switch qi {
	case IntentSpecific:
		return 0
	case IntentExploratory:
		return 1
	default:
		return 2
	}
}

// RetrievalScores carries the per-stage scores attached by the retrieval
// backend. All default to 0 when the backend did not report them.
type RetrievalScores struct {
	VectorScore         float64 `json:"vector_score"`
	BM25Score           float64 `json:"bm25_score"`
	KeywordBoost        float64 `json:"keyword_boost"`
	TemporalBoost       float64 `json:"temporal_boost"`
	FinalRetrievalScore float64 `json:"final_retrieval_score"`
}

// RankedDocument is one retrieved item after primary (LLM) scoring.
// URL is the identity key: unique within a single ranked list, and the key
// used to join primary and secondary rankings during shadow evaluation.
type RankedDocument struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Site        string `json:"site"`

	// RelevanceScore is on whatever scale the primary ranker uses; it is
	// never normalized in place.
	RelevanceScore float64 `json:"relevance_score"`

	// Embedding is nil for documents that could not be embedded. Such
	// documents are tolerated everywhere and simply skipped by the
	// diversity optimizer.
	Embedding []float64 `json:"embedding,omitempty"`

	Retrieval RetrievalScores `json:"retrieval_scores"`

	PublishedDate string `json:"published_date,omitempty"`
	Author        string `json:"author,omitempty"`
	Address       string `json:"address,omitempty"`

	// RetrievalPosition is the 0-based position the document held in the
	// retrieval results, before primary ranking moved it.
	RetrievalPosition int `json:"retrieval_position"`

	// DiversityScore is the MMR selection score, set once diversity
	// re-ranking has run. Zero until then.
	DiversityScore float64 `json:"diversity_score"`

	// ModelScore and ModelConfidence are the secondary ranker's outputs,
	// attached only in production mode.
	ModelScore      float64 `json:"model_score,omitempty"`
	ModelConfidence float64 `json:"model_confidence,omitempty"`
}

// HasEmbedding reports whether the document carries a usable vector.
func (d *RankedDocument) HasEmbedding() bool {
	return len(d.Embedding) > 0
}

func (d *RankedDocument) Validate() error {
	if d.URL == "" {
		return fmt.Errorf("document url is required")
	}
	return nil
}

// NormalizeDocument converts an untyped schema.org-style payload into a
// RankedDocument. Source systems hand over loosely shaped maps with
// optional nested author and address objects; this is the one place that
// untangles them.
func NormalizeDocument(raw map[string]interface{}) RankedDocument {
	doc := RankedDocument{
		URL:         stringField(raw, "url"),
		Title:       stringField(raw, "name"),
		Site:        stringField(raw, "site"),
		Description: stringField(raw, "description"),
	}
	if doc.Title == "" {
		doc.Title = stringField(raw, "title")
	}

	if schema, ok := raw["schema_object"].(map[string]interface{}); ok {
		if doc.Description == "" {
			doc.Description = stringField(schema, "description")
		}
		doc.PublishedDate = stringField(schema, "datePublished")
		doc.Author = extractAuthor(schema["author"])
		doc.Address = extractAddress(schema)
	}

	if scores, ok := raw["retrieval_scores"].(map[string]interface{}); ok {
		doc.Retrieval = RetrievalScores{
			VectorScore:         floatField(scores, "vector_score"),
			BM25Score:           floatField(scores, "bm25_score"),
			KeywordBoost:        floatField(scores, "keyword_boost"),
			TemporalBoost:       floatField(scores, "temporal_boost"),
			FinalRetrievalScore: floatField(scores, "final_retrieval_score"),
		}
	}

	if ranking, ok := raw["ranking"].(map[string]interface{}); ok {
		doc.RelevanceScore = floatField(ranking, "score")
	}

	if vec, ok := raw["vector"].([]interface{}); ok {
		embedding := make([]float64, 0, len(vec))
		for _, v := range vec {
			if f, ok := toFloat(v); ok {
				embedding = append(embedding, f)
			}
		}
		if len(embedding) == len(vec) {
			doc.Embedding = embedding
		}
	}

	return doc
}

// extractAuthor handles the three shapes author arrives in: a plain string,
// a schema.org Person object, or a list of either.
func extractAuthor(v interface{}) string {
	switch author := v.(type) {
	case string:
		return author
	case map[string]interface{}:
		return stringField(author, "name")
	case []interface{}:
		var names []string
		for _, entry := range author {
			if name := extractAuthor(entry); name != "" {
				names = append(names, name)
			}
		}
		return strings.Join(names, ", ")
	}
	return ""
}

// extractAddress flattens the address variants seen in crawled schema
// objects into a single display string, or "" when none is usable.
func extractAddress(schema map[string]interface{}) string {
	var raw interface{}
	for _, key := range []string{"address", "location", "streetAddress", "postalAddress"} {
		if v, ok := schema[key]; ok && v != nil {
			raw = v
			break
		}
	}

	switch addr := raw.(type) {
	case string:
		// Some crawlers append a serialized dict after the display string.
		if idx := strings.Index(addr, ", {"); idx >= 0 {
			return addr[:idx]
		}
		return addr
	case map[string]interface{}:
		var parts []string
		for _, field := range []string{"streetAddress", "addressLocality", "addressRegion", "postalCode"} {
			if v, ok := addr[field]; ok {
				if s, ok := v.(string); ok && s != "" {
					parts = append(parts, s)
				}
			}
		}
		switch country := addr["addressCountry"].(type) {
		case string:
			if country != "" && !strings.HasPrefix(country, "{") {
				parts = append(parts, country)
			}
		case map[string]interface{}:
			if name := stringField(country, "name"); name != "" {
				parts = append(parts, name)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func floatField(m map[string]interface{}, key string) float64 {
	if f, ok := toFloat(m[key]); ok {
		return f
	}
	return 0
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
