package db_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/hithere-devs/email-saas/internal/db"
	"github.com/hithere-devs/email-saas/internal/models"
	"github.com/hithere-devs/email-saas/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

func createTestAddresses(t *testing.T, pool *pgxpool.Pool, accountID string, addresses ...string) []string {
	t.Helper()

	ctx := context.Background()
	ids := make([]string, 0, len(addresses))
	for _, address := range addresses {
		record, err := db.GetOrCreateEmailAddress(ctx, pool, accountID, &models.EmailAddress{
			AccountID: accountID,
			Address:   address,
		})
		if err != nil {
			t.Fatalf("GetOrCreateEmailAddress failed: %v", err)
		}
		ids = append(ids, record.ID)
	}
	return ids
}

func TestUpsertThread(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	userID := testutil.CreateTestUser(t, pool, "test@example.com")
	account := testutil.CreateTestAccount(t, pool, userID, "acct-thr-1", "test@example.com")
	addressIDs := createTestAddresses(t, pool, account.ID, "a@example.com", "b@example.com", "c@example.com")

	t.Run("creates thread with seeded flags", func(t *testing.T) {
		thread := &models.Thread{
			ID:              "thread-1",
			AccountID:       account.ID,
			Subject:         "First subject",
			LastMessageDate: time.Now(),
			ParticipantIDs:  addressIDs[:2],
			InboxStatus:     true,
		}
		if err := db.UpsertThread(ctx, pool, thread); err != nil {
			t.Fatalf("UpsertThread failed: %v", err)
		}

		if thread.Done {
			t.Error("Expected new thread to start not done")
		}
		if !thread.InboxStatus {
			t.Error("Expected inbox flag to be seeded on create")
		}
	})

	t.Run("update unions participants and keeps done", func(t *testing.T) {
		if err := db.SetThreadDone(ctx, pool, "thread-1", true); err != nil {
			t.Fatalf("SetThreadDone failed: %v", err)
		}

		update := &models.Thread{
			ID:              "thread-1",
			AccountID:       account.ID,
			Subject:         "Updated subject",
			LastMessageDate: time.Now(),
			ParticipantIDs:  addressIDs[1:], // overlaps with the stored set
			SentStatus:      true,
		}
		if err := db.UpsertThread(ctx, pool, update); err != nil {
			t.Fatalf("UpsertThread (update) failed: %v", err)
		}

		if !update.Done {
			t.Error("Expected done to survive the upsert")
		}
		if !update.InboxStatus || update.SentStatus {
			t.Error("Expected folder flags to be untouched by the upsert")
		}

		sort.Strings(update.ParticipantIDs)
		want := append([]string(nil), addressIDs...)
		sort.Strings(want)
		if len(update.ParticipantIDs) != len(want) {
			t.Fatalf("Expected %d participants, got %d", len(want), len(update.ParticipantIDs))
		}
		for i := range want {
			if update.ParticipantIDs[i] != want[i] {
				t.Errorf("Participant mismatch at %d: want %s, got %s", i, want[i], update.ParticipantIDs[i])
			}
		}

		retrieved, err := db.GetThreadByID(ctx, pool, "thread-1")
		if err != nil {
			t.Fatalf("GetThreadByID failed: %v", err)
		}
		if retrieved.Subject != "Updated subject" {
			t.Errorf("Expected updated subject, got %s", retrieved.Subject)
		}
	})

	t.Run("returns error for non-existent thread", func(t *testing.T) {
		_, err := db.GetThreadByID(ctx, pool, "no-such-thread")
		if !errors.Is(err, db.ErrThreadNotFound) {
			t.Errorf("Expected ErrThreadNotFound, got %v", err)
		}
	})
}

func TestUpdateThreadFolderFlags(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	userID := testutil.CreateTestUser(t, pool, "test@example.com")
	account := testutil.CreateTestAccount(t, pool, userID, "acct-thr-2", "test@example.com")

	thread := &models.Thread{
		ID:              "thread-1",
		AccountID:       account.ID,
		Subject:         "Subject",
		LastMessageDate: time.Now(),
		InboxStatus:     true,
	}
	if err := db.UpsertThread(ctx, pool, thread); err != nil {
		t.Fatalf("UpsertThread failed: %v", err)
	}

	if err := db.UpdateThreadFolderFlags(ctx, pool, "thread-1", false, true, false); err != nil {
		t.Fatalf("UpdateThreadFolderFlags failed: %v", err)
	}

	retrieved, err := db.GetThreadByID(ctx, pool, "thread-1")
	if err != nil {
		t.Fatalf("GetThreadByID failed: %v", err)
	}
	if retrieved.InboxStatus || !retrieved.DraftStatus || retrieved.SentStatus {
		t.Errorf("Expected draft-only flags, got inbox=%v draft=%v sent=%v",
			retrieved.InboxStatus, retrieved.DraftStatus, retrieved.SentStatus)
	}

	if err := db.UpdateThreadFolderFlags(ctx, pool, "no-such-thread", true, false, false); !errors.Is(err, db.ErrThreadNotFound) {
		t.Errorf("Expected ErrThreadNotFound, got %v", err)
	}
}

func TestGetThreadsForFolder(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	userID := testutil.CreateTestUser(t, pool, "test@example.com")
	account := testutil.CreateTestAccount(t, pool, userID, "acct-thr-3", "test@example.com")

	base := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	threads := []*models.Thread{
		{ID: "inbox-old", AccountID: account.ID, Subject: "a", LastMessageDate: base, InboxStatus: true},
		{ID: "inbox-new", AccountID: account.ID, Subject: "b", LastMessageDate: base.Add(time.Hour), InboxStatus: true},
		{ID: "sent-only", AccountID: account.ID, Subject: "c", LastMessageDate: base, SentStatus: true},
	}
	for _, thread := range threads {
		if err := db.UpsertThread(ctx, pool, thread); err != nil {
			t.Fatalf("UpsertThread failed: %v", err)
		}
	}

	t.Run("filters by folder and orders newest first", func(t *testing.T) {
		inbox, err := db.GetThreadsForFolder(ctx, pool, account.ID, "inbox", 50, 0)
		if err != nil {
			t.Fatalf("GetThreadsForFolder failed: %v", err)
		}
		if len(inbox) != 2 {
			t.Fatalf("Expected 2 inbox threads, got %d", len(inbox))
		}
		if inbox[0].ID != "inbox-new" || inbox[1].ID != "inbox-old" {
			t.Errorf("Expected newest-first order, got %s then %s", inbox[0].ID, inbox[1].ID)
		}

		sent, err := db.GetThreadsForFolder(ctx, pool, account.ID, "sent", 50, 0)
		if err != nil {
			t.Fatalf("GetThreadsForFolder failed: %v", err)
		}
		if len(sent) != 1 || sent[0].ID != "sent-only" {
			t.Errorf("Expected only the sent thread, got %v", sent)
		}
	})

	t.Run("respects limit and offset", func(t *testing.T) {
		page, err := db.GetThreadsForFolder(ctx, pool, account.ID, "inbox", 1, 1)
		if err != nil {
			t.Fatalf("GetThreadsForFolder failed: %v", err)
		}
		if len(page) != 1 || page[0].ID != "inbox-old" {
			t.Errorf("Expected second page to hold inbox-old, got %v", page)
		}
	})

	t.Run("rejects unknown folder", func(t *testing.T) {
		if _, err := db.GetThreadsForFolder(ctx, pool, account.ID, "archive", 50, 0); err == nil {
			t.Error("Expected error for unknown folder")
		}
	})
}
