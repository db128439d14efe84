package api

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/hithere-devs/email-saas/internal/db"
	syncsvc "github.com/hithere-devs/email-saas/internal/sync"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SyncHandler triggers sync runs for an account.
type SyncHandler struct {
	pool    *pgxpool.Pool
	service *syncsvc.Service
}

// NewSyncHandler creates a new SyncHandler instance.
func NewSyncHandler(pool *pgxpool.Pool, service *syncsvc.Service) *SyncHandler {
	return &SyncHandler{pool: pool, service: service}
}

// SyncInitial runs the initial sync for an account. The request blocks until
// the run completes; the provider-side ready poll can make this slow.
func (h *SyncHandler) SyncInitial(w http.ResponseWriter, r *http.Request) {
	h.runSync(w, r, h.service.SyncInitial)
}

// SyncIncremental runs an incremental sync for an account.
func (h *SyncHandler) SyncIncremental(w http.ResponseWriter, r *http.Request) {
	h.runSync(w, r, h.service.SyncIncremental)
}

func (h *SyncHandler) runSync(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, accountID string) error) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	accountID, ok := GetAccountForUser(ctx, w, r, h.pool, userID)
	if !ok {
		return
	}

	if err := run(ctx, accountID); err != nil {
		switch {
		case errors.Is(err, syncsvc.ErrSyncInProgress):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, syncsvc.ErrNotSynced):
			http.Error(w, err.Error(), http.StatusPreconditionFailed)
		case errors.Is(err, db.ErrAccountNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			log.Printf("SyncHandler: Sync failed for account %s: %v", accountID, err)
			http.Error(w, "Sync failed", http.StatusBadGateway)
		}
		return
	}

	WriteJSONResponse(w, map[string]string{"status": "ok"})
}
