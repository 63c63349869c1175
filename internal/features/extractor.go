// Package features builds the fixed-index feature vectors consumed by the
// secondary ranking model.
//
// Index position is part of the contract: externally trained models depend
// on stable ordering, so reordering or renumbering any feature is a
// breaking change. New features get appended, never inserted.
package features

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/arclight/postrank/internal/models"
)

// Feature index constants (0-based). Trained model artifacts depend on
// this layout; do not reorder.
const (
	// Query features (0-5)
	IdxQueryLength = iota
	IdxWordCount
	IdxHasQuotes
	IdxHasNumbers
	IdxHasQuestionWords
	IdxKeywordCount

	// Document features (6-13)
	IdxDocLength
	IdxRecencyDays
	IdxHasAuthor
	IdxHasPublicationDate
	IdxSchemaCompleteness
	IdxTitleLength
	IdxDescriptionLength
	IdxURLLength

	// Query-document features (14-20)
	IdxVectorSimilarity
	IdxBM25Score
	IdxKeywordBoost
	IdxTemporalBoost
	IdxFinalRetrievalScore
	IdxKeywordOverlapRatio
	IdxTitleExactMatch

	// Ranking features (21-26)
	IdxRetrievalPosition
	IdxRankingPosition
	IdxFinalScore
	IdxRelativeScoreToTop
	IdxScorePercentile
	IdxPositionChange

	// Diversity features (27-28)
	IdxDiversityScore
	IdxDetectedIntent

	// TotalFeatures is the contractual vector width.
	TotalFeatures
)

// MissingRecencyDays is the sentinel for documents with no parseable
// publication date.
const MissingRecencyDays = 999999

// questionWords is the bilingual interrogative list. Matching is a plain
// substring check against the lowercased query.
var questionWords = []string{
	"什麼", "為什麼", "如何", "怎麼", "哪裡", "哪些", "誰", "何時",
	"what", "why", "how", "where", "which", "who", "when",
}

// Vector is one fixed-width feature vector.
type Vector []float64

// Extractor converts a query/document pair into a feature vector. It is
// pure and stateless: identical inputs always produce identical output,
// which the training-data export relies on. Malformed input degrades to
// documented defaults and never produces an error.
type Extractor struct {
	// now lets tests pin the clock for recency features.
	now func() time.Time
}

func NewExtractor() *Extractor {
	return &Extractor{now: time.Now}
}

// Extract builds the feature vector for one document. allScores is the
// full relevance-score set for the query (needed for percentile and
// relative-score features), and rankingPosition is the document's 0-based
// position after primary ranking.
func (e *Extractor) Extract(query string, doc *models.RankedDocument, allScores []float64, rankingPosition int, intent models.QueryIntent) Vector {
	v := make(Vector, TotalFeatures)

	e.queryFeatures(v, query)
	e.documentFeatures(v, doc)
	e.queryDocFeatures(v, query, doc)
	e.rankingFeatures(v, doc, allScores, rankingPosition)

	v[IdxDiversityScore] = doc.DiversityScore
	v[IdxDetectedIntent] = intent.Encode()

	return v
}

// ExtractAll builds one vector per document, sharing the score context.
func (e *Extractor) ExtractAll(query string, docs []models.RankedDocument, intent models.QueryIntent) []Vector {
	allScores := make([]float64, len(docs))
	for i := range docs {
		allScores[i] = docs[i].RelevanceScore
	}

	vectors := make([]Vector, len(docs))
	for i := range docs {
		vectors[i] = e.Extract(query, &docs[i], allScores, i, intent)
	}
	return vectors
}

func (e *Extractor) queryFeatures(v Vector, query string) {
	v[IdxQueryLength] = float64(len(query))

	words := strings.Fields(query)
	v[IdxWordCount] = float64(len(words))

	if strings.ContainsAny(query, `"'`) {
		v[IdxHasQuotes] = 1
	}
	if strings.IndexFunc(query, unicode.IsDigit) >= 0 {
		v[IdxHasNumbers] = 1
	}

	lower := strings.ToLower(query)
	for _, qw := range questionWords {
		if strings.Contains(lower, qw) {
			v[IdxHasQuestionWords] = 1
			break
		}
	}

	keywords := 0
	for _, w := range words {
		if len(w) >= 2 {
			keywords++
		}
	}
	v[IdxKeywordCount] = float64(keywords)
}

func (e *Extractor) documentFeatures(v Vector, doc *models.RankedDocument) {
	v[IdxDocLength] = float64(len(strings.Fields(doc.Description)))
	v[IdxRecencyDays] = e.recencyDays(doc.PublishedDate)

	if doc.Author != "" {
		v[IdxHasAuthor] = 1
	}
	if doc.PublishedDate != "" {
		v[IdxHasPublicationDate] = 1
	}

	// Schema completeness: fraction of the five core fields present.
	fields := []string{doc.Title, doc.Description, doc.PublishedDate, doc.Author, doc.URL}
	populated := 0
	for _, f := range fields {
		if f != "" {
			populated++
		}
	}
	v[IdxSchemaCompleteness] = float64(populated) / float64(len(fields))

	v[IdxTitleLength] = float64(len(doc.Title))
	v[IdxDescriptionLength] = float64(len(doc.Description))
	v[IdxURLLength] = float64(len(doc.URL))
}

func (e *Extractor) queryDocFeatures(v Vector, query string, doc *models.RankedDocument) {
	v[IdxVectorSimilarity] = doc.Retrieval.VectorScore
	v[IdxBM25Score] = doc.Retrieval.BM25Score
	v[IdxKeywordBoost] = doc.Retrieval.KeywordBoost
	v[IdxTemporalBoost] = doc.Retrieval.TemporalBoost
	v[IdxFinalRetrievalScore] = doc.Retrieval.FinalRetrievalScore

	queryTokens := tokenSet(query)
	if len(queryTokens) > 0 {
		docTokens := tokenSet(doc.Title + " " + doc.Description)
		overlap := 0
		for token := range queryTokens {
			if docTokens[token] {
				overlap++
			}
		}
		v[IdxKeywordOverlapRatio] = float64(overlap) / float64(len(queryTokens))
	}

	if doc.Title != "" && strings.Contains(strings.ToLower(doc.Title), strings.ToLower(query)) {
		v[IdxTitleExactMatch] = 1
	}
}

func (e *Extractor) rankingFeatures(v Vector, doc *models.RankedDocument, allScores []float64, rankingPosition int) {
	v[IdxRetrievalPosition] = float64(doc.RetrievalPosition)
	v[IdxRankingPosition] = float64(rankingPosition)
	v[IdxFinalScore] = doc.RelevanceScore

	maxScore := 0.0
	for _, s := range allScores {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore > 0 {
		v[IdxRelativeScoreToTop] = doc.RelevanceScore / maxScore
	} else {
		v[IdxRelativeScoreToTop] = 1.0
	}

	v[IdxScorePercentile] = scorePercentile(doc.RelevanceScore, allScores)
	v[IdxPositionChange] = float64(doc.RetrievalPosition - rankingPosition)
}

// recencyDays returns the days since publication, or MissingRecencyDays
// when the date is absent or not ISO-8601.
func (e *Extractor) recencyDays(published string) float64 {
	if published == "" {
		return MissingRecencyDays
	}

	t, err := time.Parse(time.RFC3339, published)
	if err != nil {
		// Date-only values are common in crawled metadata.
		t, err = time.Parse("2006-01-02", published)
		if err != nil {
			return MissingRecencyDays
		}
	}

	days := e.now().Sub(t).Hours() / 24
	if days < 0 {
		days = 0
	}
	return float64(int(days))
}

// scorePercentile ranks score within allScores on a 0-100 scale.
// Fewer than 2 scores gives the neutral 50.
func scorePercentile(score float64, allScores []float64) float64 {
	if len(allScores) < 2 {
		return 50.0
	}

	sorted := make([]float64, len(allScores))
	copy(sorted, allScores)
	sort.Float64s(sorted)

	rank := 0
	for i, s := range sorted {
		if s == score {
			rank = i
			break
		}
	}
	return (float64(rank) / float64(len(sorted)-1)) * 100
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		set[token] = true
	}
	return set
}
