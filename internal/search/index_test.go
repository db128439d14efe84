package search

import (
	"testing"

	"github.com/hithere-devs/email-saas/internal/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// basisVector returns a unit vector with a single lit dimension, so two
// vectors have cosine 1 when they share the dimension and 0 otherwise.
func basisVector(dimension int) []float32 {
	vector := make([]float32, embedding.Dimensions)
	vector[dimension] = 1
	return vector
}

func TestIndexSearchFindsDocumentByBody(t *testing.T) {
	index := New()

	require.NoError(t, index.Insert(Document{ID: "msg-1", Subject: "Lunch plans", Body: "Shall we get tacos on Friday?"}))
	require.NoError(t, index.Insert(Document{ID: "msg-2", Subject: "Quarterly report", Body: "The numbers are attached."}))

	hits := index.Search("tacos")

	require.Len(t, hits, 1)
	assert.Equal(t, "msg-1", hits[0].Document.ID)
	assert.Greater(t, hits[0].Score, 0.0)
}

func TestIndexSearchRanksSubjectMatchesHigher(t *testing.T) {
	index := New()

	require.NoError(t, index.Insert(Document{ID: "body-match", Subject: "Weekly update", Body: "invoice attached"}))
	require.NoError(t, index.Insert(Document{ID: "subject-match", Subject: "Invoice overdue", Body: "please see details"}))

	hits := index.Search("invoice")

	require.Len(t, hits, 2)
	assert.Equal(t, "subject-match", hits[0].Document.ID)
	assert.Equal(t, "body-match", hits[1].Document.ID)
}

func TestIndexSearchTokenizesAddresses(t *testing.T) {
	index := New()

	require.NoError(t, index.Insert(Document{ID: "msg-1", Subject: "Hello", From: "alice@example.com"}))

	hits := index.Search("alice@example.com")

	require.Len(t, hits, 1)
	assert.Equal(t, "msg-1", hits[0].Document.ID)
}

func TestIndexInsertReplacesExistingDocument(t *testing.T) {
	index := New()

	require.NoError(t, index.Insert(Document{ID: "msg-1", Subject: "Draft agenda", Body: "first version"}))
	require.NoError(t, index.Insert(Document{ID: "msg-1", Subject: "Final agenda", Body: "second version"}))

	assert.Equal(t, 1, index.Len())
	assert.Empty(t, index.Search("first"))

	hits := index.Search("second")
	require.Len(t, hits, 1)
	assert.Equal(t, "Final agenda", hits[0].Document.Subject)
}

func TestIndexInsertRejectsWrongEmbeddingSize(t *testing.T) {
	index := New()

	err := index.Insert(Document{ID: "msg-1", Embedding: []float32{0.1, 0.2}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions")
}

func TestIndexSerializeRestoreRoundTrip(t *testing.T) {
	index := New()

	require.NoError(t, index.Insert(Document{
		ID:        "msg-1",
		Subject:   "Travel itinerary",
		Body:      "Flight leaves at nine.",
		From:      "carol@example.com",
		To:        []string{"dave@example.com"},
		ThreadID:  "thread-1",
		Embedding: basisVector(3),
	}))
	require.NoError(t, index.Insert(Document{ID: "msg-2", Subject: "Reminder", Body: "Pay the rent."}))

	blob, err := index.Serialize()
	require.NoError(t, err)

	restored, err := Restore(blob)
	require.NoError(t, err)

	assert.Equal(t, 2, restored.Len())

	hits := restored.Search("itinerary")
	require.Len(t, hits, 1)
	assert.Equal(t, "msg-1", hits[0].Document.ID)
	assert.Equal(t, basisVector(3), hits[0].Document.Embedding)
}

func TestRestoreRejectsGarbage(t *testing.T) {
	_, err := Restore([]byte("not json"))
	require.Error(t, err)
}

func TestHybridSearchExcludesBelowSimilarityFloor(t *testing.T) {
	index := New()

	// Both documents match "meeting" lexically, but only one embedding is
	// close to the query vector.
	require.NoError(t, index.Insert(Document{ID: "close", Subject: "Team meeting", Embedding: basisVector(1)}))
	require.NoError(t, index.Insert(Document{ID: "far", Subject: "Board meeting", Embedding: basisVector(2)}))

	hits := index.HybridSearch("meeting", basisVector(1), 0.8, 10)

	require.Len(t, hits, 1)
	assert.Equal(t, "close", hits[0].Document.ID)
}

func TestHybridSearchKeepsLexicalMatchWithoutEmbedding(t *testing.T) {
	index := New()

	require.NoError(t, index.Insert(Document{ID: "plain", Subject: "Budget review"}))
	require.NoError(t, index.Insert(Document{ID: "vectored", Subject: "Something else", Embedding: basisVector(1)}))

	hits := index.HybridSearch("budget", basisVector(1), 0.8, 10)

	require.Len(t, hits, 2)

	ids := []string{hits[0].Document.ID, hits[1].Document.ID}
	assert.Contains(t, ids, "plain")
	assert.Contains(t, ids, "vectored")
}

func TestHybridSearchDropsNonMatchingDocumentWithoutEmbedding(t *testing.T) {
	index := New()

	require.NoError(t, index.Insert(Document{ID: "plain", Subject: "Budget review"}))

	hits := index.HybridSearch("vacation", basisVector(1), 0.8, 10)

	assert.Empty(t, hits)
}

func TestHybridSearchCapsResults(t *testing.T) {
	index := New()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, index.Insert(Document{ID: id, Subject: "release notes", Embedding: basisVector(5)}))
	}

	hits := index.HybridSearch("release", basisVector(5), 0.8, 2)

	assert.Len(t, hits, 2)
}

func TestHybridSearchScoreIsMeanOfComponents(t *testing.T) {
	index := New()

	require.NoError(t, index.Insert(Document{ID: "msg-1", Subject: "standup notes", Embedding: basisVector(7)}))

	hits := index.HybridSearch("standup", basisVector(7), 0.8, 10)

	require.Len(t, hits, 1)
	// Sole lexical match normalizes to 1.0 and the cosine is exactly 1.0.
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

func TestSearchEmptyIndex(t *testing.T) {
	index := New()

	assert.Empty(t, index.Search("anything"))
	assert.Empty(t, index.HybridSearch("anything", basisVector(0), 0.8, 10))
}
