package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/hithere-devs/email-saas/internal/db"
	"github.com/hithere-devs/email-saas/internal/embedding"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Hybrid query parameters: results below the similarity floor are dropped
// and at most HybridLimit hits are returned.
const (
	HybridSimilarity = 0.8
	HybridLimit      = 10
)

// Store binds one search index per account to the account row's blob column.
//
// Every operation re-reads the blob, mutates the live index and writes the
// whole blob back. That read-modify-write is only safe because all
// operations for an account go through the same per-account mutex; without
// it, concurrent inserts would silently drop each other's updates.
type Store struct {
	pool     *pgxpool.Pool
	embedder embedding.Provider
	locks    sync.Map // account id -> *sync.Mutex
}

// NewStore creates a search store over the given pool and embedder.
func NewStore(pool *pgxpool.Pool, embedder embedding.Provider) *Store {
	return &Store{pool: pool, embedder: embedder}
}

// Open ensures the account has a durable index blob, creating and persisting
// an empty index for accounts that have never synced.
func (s *Store) Open(ctx context.Context, accountID string) error {
	lock := s.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()

	_, err := s.open(ctx, accountID)
	return err
}

// Insert embeds and adds one document to the account's index, then persists.
func (s *Store) Insert(ctx context.Context, accountID string, doc Document) error {
	lock := s.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()

	index, err := s.open(ctx, accountID)
	if err != nil {
		return err
	}

	if len(doc.Embedding) == 0 {
		vector, err := s.embedder.Embed(ctx, doc.Subject+"\n"+doc.Body)
		if err != nil {
			return fmt.Errorf("failed to embed document: %w", err)
		}
		doc.Embedding = vector
	}

	if err := index.Insert(doc); err != nil {
		return err
	}

	return s.persist(ctx, accountID, index)
}

// HybridSearch embeds the term and queries the account's index in hybrid
// mode: lexical match blended with vector cosine similarity, floor 0.8,
// capped at 10 results.
func (s *Store) HybridSearch(ctx context.Context, accountID, term string) ([]Hit, error) {
	lock := s.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()

	index, err := s.open(ctx, accountID)
	if err != nil {
		return nil, err
	}

	vector, err := s.embedder.Embed(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("failed to embed search term: %w", err)
	}

	return index.HybridSearch(term, vector, HybridSimilarity, HybridLimit), nil
}

// TextSearch queries the account's index lexically, with no vector component
// and no result cap.
func (s *Store) TextSearch(ctx context.Context, accountID, term string) ([]Hit, error) {
	lock := s.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()

	index, err := s.open(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return index.Search(term), nil
}

// open loads the account's blob into a live index, creating an empty one for
// accounts without a blob, and always persists right away so even a
// never-synced account ends up with a durable index row. Callers must hold
// the account's lock.
func (s *Store) open(ctx context.Context, accountID string) (*Index, error) {
	account, err := db.GetAccountByID(ctx, s.pool, accountID)
	if err != nil {
		return nil, err
	}

	var index *Index
	if len(account.SearchIndex) > 0 {
		index, err = Restore(account.SearchIndex)
		if err != nil {
			return nil, err
		}
	} else {
		index = New()
	}

	if err := s.persist(ctx, accountID, index); err != nil {
		return nil, err
	}

	return index, nil
}

func (s *Store) persist(ctx context.Context, accountID string, index *Index) error {
	blob, err := index.Serialize()
	if err != nil {
		return err
	}
	return db.UpdateSearchIndex(ctx, s.pool, accountID, blob)
}

func (s *Store) lockFor(accountID string) *sync.Mutex {
	lock, _ := s.locks.LoadOrStore(accountID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
