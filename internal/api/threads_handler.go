package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/hithere-devs/email-saas/internal/db"
	"github.com/hithere-devs/email-saas/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ThreadsHandler handles thread-list and thread-detail API requests.
type ThreadsHandler struct {
	pool *pgxpool.Pool
}

// NewThreadsHandler creates a new ThreadsHandler instance.
func NewThreadsHandler(pool *pgxpool.Pool) *ThreadsHandler {
	return &ThreadsHandler{pool: pool}
}

// ThreadsResponse is the paginated thread list payload.
type ThreadsResponse struct {
	Threads    []*models.Thread `json:"threads"`
	Pagination PaginationInfo   `json:"pagination"`
}

// PaginationInfo describes the page window of a list response.
type PaginationInfo struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// GetThreads returns an account's threads for one folder view.
func (h *ThreadsHandler) GetThreads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	accountID, ok := GetAccountForUser(ctx, w, r, h.pool, userID)
	if !ok {
		return
	}

	folder := r.URL.Query().Get("folder")
	if folder == "" {
		folder = "inbox"
	}

	page, limit := ParsePaginationParams(r, 100)

	threads, err := db.GetThreadsForFolder(ctx, h.pool, accountID, folder, limit, (page-1)*limit)
	if err != nil {
		if strings.Contains(err.Error(), "unknown folder") {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("ThreadsHandler: Failed to get threads: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if threads == nil {
		threads = []*models.Thread{}
	}

	WriteJSONResponse(w, &ThreadsResponse{
		Threads:    threads,
		Pagination: PaginationInfo{Page: page, PerPage: limit},
	})
}

// GetThread returns one thread with its emails, oldest first.
func (h *ThreadsHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	threadID := strings.TrimPrefix(r.URL.Path, "/api/v1/thread/")
	if threadID == "" {
		http.Error(w, "thread_id is required", http.StatusBadRequest)
		return
	}

	thread, err := db.GetThreadByID(ctx, h.pool, threadID)
	if err != nil {
		if errors.Is(err, db.ErrThreadNotFound) {
			http.Error(w, "Thread not found", http.StatusNotFound)
			return
		}
		log.Printf("ThreadsHandler: Failed to get thread: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	account, err := db.GetAccountByID(ctx, h.pool, thread.AccountID)
	if err != nil || account.UserID != userID {
		http.Error(w, "Thread not found", http.StatusNotFound)
		return
	}

	emails, err := db.GetEmailsForThread(ctx, h.pool, thread.ID)
	if err != nil {
		log.Printf("ThreadsHandler: Failed to get emails: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	thread.Emails = emails

	WriteJSONResponse(w, thread)
}

type threadDoneRequest struct {
	Done bool `json:"done"`
}

// SetThreadDone updates the user-controlled done flag on a thread.
func (h *ThreadsHandler) SetThreadDone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	threadID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/v1/thread/"), "/done")
	if threadID == "" {
		http.Error(w, "thread_id is required", http.StatusBadRequest)
		return
	}

	thread, err := db.GetThreadByID(ctx, h.pool, threadID)
	if err != nil {
		http.Error(w, "Thread not found", http.StatusNotFound)
		return
	}

	account, err := db.GetAccountByID(ctx, h.pool, thread.AccountID)
	if err != nil || account.UserID != userID {
		http.Error(w, "Thread not found", http.StatusNotFound)
		return
	}

	var request threadDoneRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := db.SetThreadDone(ctx, h.pool, threadID, request.Done); err != nil {
		log.Printf("ThreadsHandler: Failed to update done flag: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSONResponse(w, map[string]string{"status": "ok"})
}
