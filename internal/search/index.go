package search

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/hithere-devs/email-saas/internal/embedding"
)

// Document is one indexed email projection. The schema is fixed: these
// fields plus an optional embedding vector of embedding.Dimensions floats.
type Document struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	RawBody   string    `json:"rawBody"`
	From      string    `json:"from"`
	To        []string  `json:"to"`
	SentAt    string    `json:"sentAt"`
	ThreadID  string    `json:"threadId"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Hit is one ranked search result.
type Hit struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// Index is an in-memory hybrid text+vector index over email documents.
// Only the documents are serialized; the inverted index is rebuilt on
// restore, so the persisted blob stays small and format changes to the
// postings never invalidate stored indexes.
type Index struct {
	docs     []Document
	byID     map[string]int
	postings map[string]map[int]int // token -> doc ordinal -> term frequency
}

// New creates an empty index.
func New() *Index {
	return &Index{
		byID:     make(map[string]int),
		postings: make(map[string]map[int]int),
	}
}

// Restore deserializes an index from a blob produced by Serialize.
func Restore(blob []byte) (*Index, error) {
	var docs []Document
	if err := json.Unmarshal(blob, &docs); err != nil {
		return nil, fmt.Errorf("failed to restore search index: %w", err)
	}

	index := New()
	for _, doc := range docs {
		if err := index.Insert(doc); err != nil {
			return nil, err
		}
	}
	return index, nil
}

// Serialize returns the persistable form of the index.
func (ix *Index) Serialize() ([]byte, error) {
	docs := ix.docs
	if docs == nil {
		docs = []Document{}
	}
	blob, err := json.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize search index: %w", err)
	}
	return blob, nil
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	return len(ix.docs)
}

// Insert adds a document, replacing any existing document with the same id
// so re-syncing a message never duplicates its index entry.
func (ix *Index) Insert(doc Document) error {
	if len(doc.Embedding) != 0 && len(doc.Embedding) != embedding.Dimensions {
		return fmt.Errorf("embedding has %d dimensions, want %d", len(doc.Embedding), embedding.Dimensions)
	}

	if ordinal, exists := ix.byID[doc.ID]; doc.ID != "" && exists {
		ix.removeFromPostings(ordinal)
		ix.docs[ordinal] = doc
		ix.addToPostings(ordinal)
		return nil
	}

	ix.docs = append(ix.docs, doc)
	ordinal := len(ix.docs) - 1
	if doc.ID != "" {
		ix.byID[doc.ID] = ordinal
	}
	ix.addToPostings(ordinal)
	return nil
}

// Search runs a pure lexical query over all text fields, ranked by TF-IDF
// weight with subject matches counting double. No result cap.
func (ix *Index) Search(term string) []Hit {
	scores := ix.lexicalScores(term)

	hits := make([]Hit, 0, len(scores))
	for ordinal, score := range scores {
		hits = append(hits, Hit{Document: ix.docs[ordinal], Score: score})
	}
	sortHits(hits)
	return hits
}

// HybridSearch combines lexical matching with vector cosine similarity.
// Documents whose embedding falls below the similarity floor are excluded
// outright, even on a lexical match; documents without an embedding are
// kept only when they match lexically. The combined score is the mean of
// the normalized lexical score and the cosine similarity, and the result
// list is capped at limit.
func (ix *Index) HybridSearch(term string, vector []float32, similarity float64, limit int) []Hit {
	lexical := ix.lexicalScores(term)

	maxLexical := 0.0
	for _, score := range lexical {
		if score > maxLexical {
			maxLexical = score
		}
	}

	candidates := make(map[int]struct{}, len(lexical))
	for ordinal := range lexical {
		candidates[ordinal] = struct{}{}
	}
	for ordinal, doc := range ix.docs {
		if len(doc.Embedding) > 0 {
			candidates[ordinal] = struct{}{}
		}
	}

	var hits []Hit
	for ordinal := range candidates {
		doc := ix.docs[ordinal]

		cosine := 0.0
		if len(doc.Embedding) > 0 && len(vector) > 0 {
			cosine = cosineSimilarity(doc.Embedding, vector)
			if cosine < similarity {
				continue
			}
		} else if lexical[ordinal] == 0 {
			continue
		}

		normalizedLexical := 0.0
		if maxLexical > 0 {
			normalizedLexical = lexical[ordinal] / maxLexical
		}

		hits = append(hits, Hit{Document: doc, Score: (normalizedLexical + cosine) / 2})
	}

	sortHits(hits)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func (ix *Index) lexicalScores(term string) map[int]float64 {
	scores := make(map[int]float64)
	total := len(ix.docs)
	if total == 0 {
		return scores
	}

	for _, token := range tokenize(term) {
		docs, ok := ix.postings[token]
		if !ok {
			continue
		}
		idf := math.Log(1 + float64(total)/float64(len(docs)))
		for ordinal, tf := range docs {
			scores[ordinal] += float64(tf) * idf
		}
	}
	return scores
}

func (ix *Index) addToPostings(ordinal int) {
	for token, tf := range tokenFrequencies(ix.docs[ordinal]) {
		docs, ok := ix.postings[token]
		if !ok {
			docs = make(map[int]int)
			ix.postings[token] = docs
		}
		docs[ordinal] = tf
	}
}

func (ix *Index) removeFromPostings(ordinal int) {
	for token := range tokenFrequencies(ix.docs[ordinal]) {
		if docs, ok := ix.postings[token]; ok {
			delete(docs, ordinal)
			if len(docs) == 0 {
				delete(ix.postings, token)
			}
		}
	}
}

// tokenFrequencies counts tokens across all text fields. Subject tokens are
// counted twice so subject matches outrank body matches.
func tokenFrequencies(doc Document) map[string]int {
	frequencies := make(map[string]int)
	for _, token := range tokenize(doc.Subject) {
		frequencies[token] += 2
	}
	for _, text := range append([]string{doc.Body, doc.RawBody, doc.From}, doc.To...) {
		for _, token := range tokenize(text) {
			frequencies[token]++
		}
	}
	return frequencies
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '@' && r != '.'
	})
}

func cosineSimilarity(a []float32, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Document.ID < hits[j].Document.ID
	})
}
