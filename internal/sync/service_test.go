package sync

import (
	"context"
	"testing"
	"time"

	"github.com/hithere-devs/email-saas/internal/db"
	"github.com/hithere-devs/email-saas/internal/provider"
	"github.com/hithere-devs/email-saas/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReconciler records the batches it receives and optionally runs a hook
// while a batch is being processed.
type fakeReconciler struct {
	batches [][]provider.Message
	hook    func()
}

func (f *fakeReconciler) ReconcileBatch(_ context.Context, _ string, messages []provider.Message) {
	f.batches = append(f.batches, messages)
	if f.hook != nil {
		f.hook()
	}
}

type fakeNotifier struct {
	userIDs    []string
	accountIDs []string
	counts     []int
}

func (f *fakeNotifier) NotifySyncCompleted(userID, accountID string, messageCount int) {
	f.userIDs = append(f.userIDs, userID)
	f.accountIDs = append(f.accountIDs, accountID)
	f.counts = append(f.counts, messageCount)
}

func TestServiceSyncInitial(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	userID := testutil.CreateTestUser(t, pool, "sync@example.com")
	account := testutil.CreateTestAccount(t, pool, userID, "acct-svc-1", "sync@example.com")

	api := &fakeAPI{
		startResponses: []provider.SyncResponse{{Ready: true, SyncUpdatedToken: "bookmark-1"}},
		pages: []provider.SyncUpdatedResponse{
			{Records: messagesNamed("m1", "m2"), NextDeltaToken: "delta-1"},
		},
	}
	reconciler := &fakeReconciler{}
	notifier := &fakeNotifier{}
	service := NewService(pool, NewSession(api, 2), reconciler, testutil.GetTestEncryptor(t), notifier)

	require.NoError(t, service.SyncInitial(ctx, account.ID))

	require.Len(t, reconciler.batches, 1)
	assert.Len(t, reconciler.batches[0], 2)

	reloaded, err := db.GetAccountByID(ctx, pool, account.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.NextDeltaToken)
	assert.Equal(t, "delta-1", *reloaded.NextDeltaToken)

	require.Len(t, notifier.counts, 1)
	assert.Equal(t, userID, notifier.userIDs[0])
	assert.Equal(t, account.ID, notifier.accountIDs[0])
	assert.Equal(t, 2, notifier.counts[0])
}

func TestServiceSyncIncrementalUsesStoredCursor(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	userID := testutil.CreateTestUser(t, pool, "sync@example.com")
	account := testutil.CreateTestAccount(t, pool, userID, "acct-svc-2", "sync@example.com")
	require.NoError(t, db.UpdateDeltaToken(ctx, pool, account.ID, nil, "delta-1"))

	api := &fakeAPI{
		pages: []provider.SyncUpdatedResponse{
			{Records: messagesNamed("m1"), NextDeltaToken: "delta-2"},
		},
	}
	service := NewService(pool, NewSession(api, 2), &fakeReconciler{}, testutil.GetTestEncryptor(t), nil)

	require.NoError(t, service.SyncIncremental(ctx, account.ID))

	require.Len(t, api.pageCalls, 1)
	assert.Equal(t, "delta-1", api.pageCalls[0].deltaToken)

	reloaded, err := db.GetAccountByID(ctx, pool, account.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.NextDeltaToken)
	assert.Equal(t, "delta-2", *reloaded.NextDeltaToken)
}

func TestServiceSyncIncrementalWithoutInitialSync(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	userID := testutil.CreateTestUser(t, pool, "sync@example.com")
	account := testutil.CreateTestAccount(t, pool, userID, "acct-svc-3", "sync@example.com")

	service := NewService(pool, NewSession(&fakeAPI{}, 2), &fakeReconciler{}, testutil.GetTestEncryptor(t), nil)

	require.ErrorIs(t, service.SyncIncremental(ctx, account.ID), ErrNotSynced)
}

func TestServiceRejectsConcurrentRuns(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	userID := testutil.CreateTestUser(t, pool, "sync@example.com")
	account := testutil.CreateTestAccount(t, pool, userID, "acct-svc-4", "sync@example.com")

	api := &fakeAPI{
		startResponses: []provider.SyncResponse{{Ready: true, SyncUpdatedToken: "bookmark-1"}},
		pages: []provider.SyncUpdatedResponse{
			{Records: messagesNamed("m1"), NextDeltaToken: "delta-1"},
		},
	}

	firstInside := make(chan struct{})
	release := make(chan struct{})
	reconciler := &fakeReconciler{hook: func() {
		close(firstInside)
		<-release
	}}
	service := NewService(pool, NewSession(api, 2), reconciler, testutil.GetTestEncryptor(t), nil)

	done := make(chan error, 1)
	go func() { done <- service.SyncInitial(ctx, account.ID) }()

	<-firstInside
	assert.ErrorIs(t, service.SyncInitial(ctx, account.ID), ErrSyncInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestServiceToleratesStaleCursor(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	userID := testutil.CreateTestUser(t, pool, "sync@example.com")
	account := testutil.CreateTestAccount(t, pool, userID, "acct-svc-5", "sync@example.com")

	api := &fakeAPI{
		startResponses: []provider.SyncResponse{{Ready: true, SyncUpdatedToken: "bookmark-1"}},
		pages: []provider.SyncUpdatedResponse{
			{Records: messagesNamed("m1"), NextDeltaToken: "delta-old"},
		},
	}

	// While the batch reconciles, someone else moves the cursor.
	reconciler := &fakeReconciler{hook: func() {
		if err := db.UpdateDeltaToken(ctx, pool, account.ID, nil, "delta-concurrent"); err != nil {
			t.Errorf("concurrent UpdateDeltaToken failed: %v", err)
		}
	}}
	service := NewService(pool, NewSession(api, 2), reconciler, testutil.GetTestEncryptor(t), nil)

	// The lost compare-and-swap is absorbed, not surfaced.
	require.NoError(t, service.SyncInitial(ctx, account.ID))

	reloaded, err := db.GetAccountByID(ctx, pool, account.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.NextDeltaToken)
	assert.Equal(t, "delta-concurrent", *reloaded.NextDeltaToken)
}

func TestServiceSkipsNotifierOnEmptyBatch(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	userID := testutil.CreateTestUser(t, pool, "sync@example.com")
	account := testutil.CreateTestAccount(t, pool, userID, "acct-svc-6", "sync@example.com")
	require.NoError(t, db.UpdateDeltaToken(ctx, pool, account.ID, nil, "delta-1"))

	api := &fakeAPI{
		pages: []provider.SyncUpdatedResponse{{NextDeltaToken: "delta-2"}},
	}
	notifier := &fakeNotifier{}
	service := NewService(pool, NewSession(api, 2), &fakeReconciler{}, testutil.GetTestEncryptor(t), notifier)

	require.NoError(t, service.SyncIncremental(ctx, account.ID))
	assert.Empty(t, notifier.counts)
}

func TestSchedulerSweepSkipsUnsyncedAccounts(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	userID := testutil.CreateTestUser(t, pool, "sync@example.com")

	synced := testutil.CreateTestAccount(t, pool, userID, "acct-sched-1", "synced@example.com")
	require.NoError(t, db.UpdateDeltaToken(ctx, pool, synced.ID, nil, "delta-1"))
	testutil.CreateTestAccount(t, pool, userID, "acct-sched-2", "unsynced@example.com")

	api := &fakeAPI{
		pages: []provider.SyncUpdatedResponse{
			{Records: messagesNamed("m1"), NextDeltaToken: "delta-2"},
		},
	}
	reconciler := &fakeReconciler{}
	service := NewService(pool, NewSession(api, 2), reconciler, testutil.GetTestEncryptor(t), nil)
	scheduler := NewScheduler(pool, service, time.Minute)

	scheduler.sweep(ctx)

	// Only the synced account was fetched, once.
	require.Len(t, api.pageCalls, 1)
	assert.Equal(t, "delta-1", api.pageCalls[0].deltaToken)
	assert.Len(t, reconciler.batches, 1)
}
