package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/hithere-devs/email-saas/internal/api"
	"github.com/hithere-devs/email-saas/internal/auth"
	"github.com/hithere-devs/email-saas/internal/config"
	"github.com/hithere-devs/email-saas/internal/crypto"
	"github.com/hithere-devs/email-saas/internal/db"
	"github.com/hithere-devs/email-saas/internal/embedding"
	"github.com/hithere-devs/email-saas/internal/provider"
	"github.com/hithere-devs/email-saas/internal/reconcile"
	"github.com/hithere-devs/email-saas/internal/search"
	syncsvc "github.com/hithere-devs/email-saas/internal/sync"
	ws "github.com/hithere-devs/email-saas/internal/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.CloseConnection(pool)

	log.Printf("Successfully connected to database")

	server, scheduler := NewServer(cfg, pool)

	go scheduler.Run(ctx)

	address := ":" + cfg.Port
	log.Printf("Mailsync backend server starting on %s (environment: %s)", address, cfg.Environment)

	if err := http.ListenAndServe(address, server); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// NewServer creates the HTTP handler for the mailsync API server along with
// the background sync scheduler. The scheduler is returned unstarted so tests
// can exercise the handler without a ticker loop running.
func NewServer(cfg *config.Config, dbPool *pgxpool.Pool) (http.Handler, *syncsvc.Scheduler) {
	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKeyBase64)
	if err != nil {
		log.Fatalf("Failed to create encryptor: %v", err)
	}

	providerClient := provider.NewClient(cfg.ProviderBaseURL)
	embedder := embedding.NewOpenAIProvider(cfg.OpenAIAPIKey)
	searchStore := search.NewStore(dbPool, embedder)
	reconciler := reconcile.New(dbPool, searchStore)
	session := syncsvc.NewSession(providerClient, cfg.SyncDaysWithin)
	wsHub := ws.NewHub(10)
	syncService := syncsvc.NewService(dbPool, session, reconciler, encryptor, wsHub)
	scheduler := syncsvc.NewScheduler(dbPool, syncService, cfg.SyncInterval)

	accountsHandler := api.NewAccountsHandler(dbPool, encryptor)
	syncHandler := api.NewSyncHandler(dbPool, syncService)
	searchHandler := api.NewSearchHandler(dbPool, searchStore)
	threadsHandler := api.NewThreadsHandler(dbPool)
	sendHandler := api.NewSendHandler(dbPool, encryptor, providerClient)
	wsHandler := api.NewWebSocketHandler(dbPool, wsHub)

	mux := http.NewServeMux()

	mux.HandleFunc("/", handleRoot)

	mux.Handle("/api/v1/accounts", auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			accountsHandler.ListAccounts(w, r)
		case http.MethodPost:
			accountsHandler.LinkAccount(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))
	mux.Handle("/api/v1/sync/initial", auth.RequireAuth(http.HandlerFunc(syncHandler.SyncInitial)))
	mux.Handle("/api/v1/sync/incremental", auth.RequireAuth(http.HandlerFunc(syncHandler.SyncIncremental)))
	mux.Handle("/api/v1/search", auth.RequireAuth(http.HandlerFunc(searchHandler.Search)))
	mux.Handle("/api/v1/threads", auth.RequireAuth(http.HandlerFunc(threadsHandler.GetThreads)))
	mux.Handle("/api/v1/send", auth.RequireAuth(http.HandlerFunc(sendHandler.Send)))
	// WebSocket handler handles its own authentication via query parameter
	// (since browsers can't set headers on WebSocket connections).
	mux.Handle("/api/v1/ws", http.HandlerFunc(wsHandler.Handle))

	// Handle /api/v1/thread/{thread_id} and /api/v1/thread/{thread_id}/done.
	mux.Handle("/api/v1/thread/", auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/thread/")
		if path == "" || path == r.URL.Path {
			http.Error(w, "thread_id is required", http.StatusBadRequest)
			return
		}
		if strings.HasSuffix(path, "/done") && r.Method == http.MethodPost {
			threadsHandler.SetThreadDone(w, r)
			return
		}
		threadsHandler.GetThread(w, r)
	})))

	return mux, scheduler
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Mailsync API is running")
}
