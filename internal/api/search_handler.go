package api

import (
	"log"
	"net/http"

	"github.com/hithere-devs/email-saas/internal/search"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SearchHandler handles search-related API requests.
type SearchHandler struct {
	pool  *pgxpool.Pool
	store *search.Store
}

// NewSearchHandler creates a new SearchHandler instance.
func NewSearchHandler(pool *pgxpool.Pool, store *search.Store) *SearchHandler {
	return &SearchHandler{pool: pool, store: store}
}

// Search handles search requests. mode=hybrid blends lexical matching with
// vector similarity; anything else (including the default) is pure text.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	accountID, ok := GetAccountForUser(ctx, w, r, h.pool, userID)
	if !ok {
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "q is required", http.StatusBadRequest)
		return
	}

	var (
		hits []search.Hit
		err  error
	)
	if r.URL.Query().Get("mode") == "hybrid" {
		hits, err = h.store.HybridSearch(ctx, accountID, query)
	} else {
		hits, err = h.store.TextSearch(ctx, accountID, query)
	}

	if err != nil {
		log.Printf("SearchHandler: Failed to search: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if hits == nil {
		hits = []search.Hit{}
	}

	WriteJSONResponse(w, map[string]any{"hits": hits})
}
