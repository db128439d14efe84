package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"testing"

	"github.com/hithere-devs/email-saas/internal/db"
	"github.com/hithere-devs/email-saas/internal/embedding"
	"github.com/hithere-devs/email-saas/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TestMailbox bundles the rows most integration tests need: a pool, a user
// and one linked account.
type TestMailbox struct {
	Pool    *pgxpool.Pool
	UserID  string
	Account *models.Account
}

// CreateTestUser creates a user row and returns its id.
func CreateTestUser(t *testing.T, pool *pgxpool.Pool, email string) string {
	t.Helper()

	userID, err := db.GetOrCreateUser(context.Background(), pool, email)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return userID
}

// CreateTestAccount creates an account row for the given user and returns it.
// The access token is encrypted with the shared test encryptor.
func CreateTestAccount(t *testing.T, pool *pgxpool.Pool, userID, accountID, email string) *models.Account {
	t.Helper()

	encryptor := GetTestEncryptor(t)
	encryptedToken, err := encryptor.Encrypt("test-access-token")
	if err != nil {
		t.Fatalf("Failed to encrypt test token: %v", err)
	}

	account := &models.Account{
		ID:             accountID,
		UserID:         userID,
		EmailAddress:   email,
		Name:           "Test Account",
		EncryptedToken: encryptedToken,
	}

	if err := db.SaveAccount(context.Background(), pool, account); err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}
	return account
}

// FakeEmbedder is a deterministic embedding.Provider for tests. Each token
// lights up one dimension, so texts sharing words produce similar vectors and
// unrelated texts do not. No network access involved.
type FakeEmbedder struct {
	Calls int
}

var _ embedding.Provider = (*FakeEmbedder)(nil)

// Embed returns a unit-length vector derived from the text's tokens.
func (f *FakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.Calls++

	vector := make([]float32, embedding.Dimensions)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vector[h.Sum32()%embedding.Dimensions]++
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vector[0] = 1
		return vector, nil
	}

	scale := float32(1 / math.Sqrt(norm))
	for i := range vector {
		vector[i] *= scale
	}
	return vector, nil
}
