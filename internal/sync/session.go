package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hithere-devs/email-saas/internal/provider"
)

// ErrNotSynced is returned when an incremental sync is requested for an
// account that has never completed an initial sync. The caller must run the
// initial sync first; retrying the incremental call cannot help.
var ErrNotSynced = errors.New("account has not been synced yet")

const (
	readyPollInterval = 2 * time.Second
	bodyTypeHTML      = "html"
)

// API is the slice of the provider client the session drives.
type API interface {
	StartSync(ctx context.Context, token string, daysWithin int, bodyType string) (*provider.SyncResponse, error)
	GetUpdated(ctx context.Context, token, deltaToken, pageToken string) (*provider.SyncUpdatedResponse, error)
}

// Result is the outcome of one sync run: the flat ordered message sequence
// and the cursor to resume from next time. The caller must persist the
// cursor only after the whole batch has been reconciled; persisting earlier
// would lose the batch on a crash, while persisting later merely re-fetches
// it (reconciliation is idempotent).
type Result struct {
	Messages   []provider.Message
	DeltaToken string
}

// Session owns one account's conversation with the remote sync API.
type Session struct {
	api        API
	daysWithin int
}

// NewSession creates a session fetching a window of the last daysWithin days
// on initial sync.
func NewSession(api API, daysWithin int) *Session {
	return &Session{api: api, daysWithin: daysWithin}
}

// PerformInitialSync starts a provider-side sync and polls until the
// provider reports ready, then fetches the full window. The poll is a fixed
// 2s interval with no retry bound: a permanently unready provider stalls the
// run until the caller's context cancels it.
func (s *Session) PerformInitialSync(ctx context.Context, token string) (*Result, error) {
	response, err := s.api.StartSync(ctx, token, s.daysWithin, bodyTypeHTML)
	if err != nil {
		return nil, fmt.Errorf("failed to start sync: %w", err)
	}

	for !response.Ready {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(readyPollInterval):
		}

		response, err = s.api.StartSync(ctx, token, s.daysWithin, bodyTypeHTML)
		if err != nil {
			return nil, fmt.Errorf("failed to start sync: %w", err)
		}
	}

	log.Printf("Initial sync ready, fetching from bookmark token")
	return s.fetchAll(ctx, token, response.SyncUpdatedToken)
}

// SyncIncremental fetches everything changed since the stored delta token.
func (s *Session) SyncIncremental(ctx context.Context, token, deltaToken string) (*Result, error) {
	if deltaToken == "" {
		return nil, ErrNotSynced
	}
	return s.fetchAll(ctx, token, deltaToken)
}

// fetchAll pages through the updated-records feed: the delta token opens the
// run, page tokens continue it, and the latest non-empty NextDeltaToken seen
// anywhere in the page sequence becomes the new cursor. The loop ends when a
// response carries no next page token.
func (s *Session) fetchAll(ctx context.Context, token, deltaToken string) (*Result, error) {
	response, err := s.api.GetUpdated(ctx, token, deltaToken, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch updated records: %w", err)
	}

	cursor := deltaToken
	if response.NextDeltaToken != "" {
		cursor = response.NextDeltaToken
	}

	messages := response.Records

	for response.NextPageToken != "" {
		response, err = s.api.GetUpdated(ctx, token, "", response.NextPageToken)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch updated records page: %w", err)
		}

		messages = append(messages, response.Records...)

		if response.NextDeltaToken != "" {
			cursor = response.NextDeltaToken
		}
	}

	return &Result{Messages: messages, DeltaToken: cursor}, nil
}
