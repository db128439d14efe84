package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hithere-devs/email-saas/internal/db"
	"github.com/hithere-devs/email-saas/internal/provider"
	"github.com/hithere-devs/email-saas/internal/reconcile"
	"github.com/hithere-devs/email-saas/internal/search"
	syncsvc "github.com/hithere-devs/email-saas/internal/sync"
	"github.com/hithere-devs/email-saas/internal/testutil"
)

// newProviderStub serves a minimal sync conversation: immediately ready, one
// page with one message.
func newProviderStub(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/email/sync":
			_ = json.NewEncoder(w).Encode(provider.SyncResponse{Ready: true, SyncUpdatedToken: "bookmark-1"})
		case "/email/sync/updated":
			_ = json.NewEncoder(w).Encode(provider.SyncUpdatedResponse{
				Records: []provider.Message{{
					ID:       "msg-1",
					ThreadID: "thread-1",
					Subject:  "Hello",
					From:     provider.Address{Name: "Alice", Address: "alice@example.com"},
					To:       []provider.Address{{Address: "bob@example.com"}},
					Body:     "<p>Hi</p>",
				}},
				NextDeltaToken: "delta-1",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSyncHandler(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	stub := newProviderStub(t)

	client := provider.NewClient(stub.URL)
	store := search.NewStore(pool, &testutil.FakeEmbedder{})
	reconciler := reconcile.New(pool, store)
	session := syncsvc.NewSession(client, 2)
	service := syncsvc.NewService(pool, session, reconciler, testutil.GetTestEncryptor(t), nil)
	handler := NewSyncHandler(pool, service)

	email := "user@example.com"
	userID := testutil.CreateTestUser(t, pool, email)
	account := testutil.CreateTestAccount(t, pool, userID, "acct-sync-api", email)

	t.Run("returns 404 for unknown account", func(t *testing.T) {
		req := createRequestWithUser("POST", "/api/v1/sync/initial?account_id=nope", email, nil)
		rr := httptest.NewRecorder()
		handler.SyncInitial(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", rr.Code)
		}
	})

	t.Run("incremental before initial returns 412", func(t *testing.T) {
		req := createRequestWithUser("POST", "/api/v1/sync/incremental?account_id=acct-sync-api", email, nil)
		rr := httptest.NewRecorder()
		handler.SyncIncremental(rr, req)

		if rr.Code != http.StatusPreconditionFailed {
			t.Errorf("Expected status 412, got %d", rr.Code)
		}
	})

	t.Run("initial sync lands messages and cursor", func(t *testing.T) {
		req := createRequestWithUser("POST", "/api/v1/sync/initial?account_id=acct-sync-api", email, nil)
		rr := httptest.NewRecorder()
		handler.SyncInitial(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		reloaded, err := db.GetAccountByID(ctx, pool, account.ID)
		if err != nil {
			t.Fatalf("GetAccountByID failed: %v", err)
		}
		if reloaded.NextDeltaToken == nil || *reloaded.NextDeltaToken != "delta-1" {
			t.Errorf("Expected delta-1 cursor, got %v", reloaded.NextDeltaToken)
		}

		emails, err := db.GetEmailsForThread(ctx, pool, "thread-1")
		if err != nil {
			t.Fatalf("GetEmailsForThread failed: %v", err)
		}
		if len(emails) != 1 || emails[0].ID != "msg-1" {
			t.Errorf("Expected msg-1 to be reconciled, got %v", emails)
		}
	})

	t.Run("incremental sync after initial succeeds", func(t *testing.T) {
		req := createRequestWithUser("POST", "/api/v1/sync/incremental?account_id=acct-sync-api", email, nil)
		rr := httptest.NewRecorder()
		handler.SyncIncremental(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
	})
}
