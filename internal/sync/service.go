package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/hithere-devs/email-saas/internal/crypto"
	"github.com/hithere-devs/email-saas/internal/db"
	"github.com/hithere-devs/email-saas/internal/models"
	"github.com/hithere-devs/email-saas/internal/provider"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSyncInProgress is returned when a sync run is requested for an account
// that already has one in flight.
var ErrSyncInProgress = errors.New("sync already running for this account")

// BatchReconciler folds a fetched batch into the mailbox mirror.
type BatchReconciler interface {
	ReconcileBatch(ctx context.Context, accountID string, messages []provider.Message)
}

// Notifier is told when a sync run lands new data, so connected clients can
// refresh.
type Notifier interface {
	NotifySyncCompleted(userID, accountID string, messageCount int)
}

// Service runs sync sessions for accounts. Accounts sync independently, but
// within one account runs are single-flight: the delta cursor and the search
// index blob are both last-writer-wins, so two overlapping runs on the same
// account could corrupt either.
type Service struct {
	pool       *pgxpool.Pool
	session    *Session
	reconciler BatchReconciler
	encryptor  *crypto.Encryptor
	notifier   Notifier
	locks      sync.Map // account id -> *sync.Mutex
}

// NewService creates a sync service. The notifier may be nil.
func NewService(pool *pgxpool.Pool, session *Session, reconciler BatchReconciler, encryptor *crypto.Encryptor, notifier Notifier) *Service {
	return &Service{
		pool:       pool,
		session:    session,
		reconciler: reconciler,
		encryptor:  encryptor,
		notifier:   notifier,
	}
}

// SyncInitial runs the initial sync for an account that has no delta token
// yet.
func (s *Service) SyncInitial(ctx context.Context, accountID string) error {
	return s.run(ctx, accountID, func(ctx context.Context, account *models.Account, token string) (*Result, error) {
		return s.session.PerformInitialSync(ctx, token)
	})
}

// SyncIncremental runs an incremental sync from the account's stored cursor.
// Returns ErrNotSynced if the account has never completed an initial sync.
func (s *Service) SyncIncremental(ctx context.Context, accountID string) error {
	return s.run(ctx, accountID, func(ctx context.Context, account *models.Account, token string) (*Result, error) {
		deltaToken := ""
		if account.NextDeltaToken != nil {
			deltaToken = *account.NextDeltaToken
		}
		return s.session.SyncIncremental(ctx, token, deltaToken)
	})
}

func (s *Service) run(ctx context.Context, accountID string, fetch func(context.Context, *models.Account, string) (*Result, error)) error {
	lock := s.lockFor(accountID)
	if !lock.TryLock() {
		return ErrSyncInProgress
	}
	defer lock.Unlock()

	account, err := db.GetAccountByID(ctx, s.pool, accountID)
	if err != nil {
		return err
	}

	token, err := s.encryptor.Decrypt(account.EncryptedToken)
	if err != nil {
		return fmt.Errorf("failed to decrypt access token: %w", err)
	}

	result, err := fetch(ctx, account, token)
	if err != nil {
		// Transport failures abort the run without touching the cursor; the
		// whole run is retryable later.
		return err
	}

	log.Printf("Sync fetched %d messages for account %s", len(result.Messages), accountID)

	// Reconcile the whole batch before persisting the cursor. A crash here
	// re-fetches from the old token next run, which the idempotent upserts
	// absorb; persisting first would silently drop the batch.
	s.reconciler.ReconcileBatch(ctx, accountID, result.Messages)

	if err := db.UpdateDeltaToken(ctx, s.pool, accountID, account.NextDeltaToken, result.DeltaToken); err != nil {
		if errors.Is(err, db.ErrStaleDeltaToken) {
			log.Printf("Warning: delta token for account %s moved during sync, keeping newer cursor", accountID)
			return nil
		}
		return err
	}

	if s.notifier != nil && len(result.Messages) > 0 {
		s.notifier.NotifySyncCompleted(account.UserID, accountID, len(result.Messages))
	}

	return nil
}

func (s *Service) lockFor(accountID string) *sync.Mutex {
	lock, _ := s.locks.LoadOrStore(accountID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
