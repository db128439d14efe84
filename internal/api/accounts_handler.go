package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/hithere-devs/email-saas/internal/crypto"
	"github.com/hithere-devs/email-saas/internal/db"
	"github.com/hithere-devs/email-saas/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountsHandler handles account linking and listing.
type AccountsHandler struct {
	pool      *pgxpool.Pool
	encryptor *crypto.Encryptor
}

// NewAccountsHandler creates a new AccountsHandler instance.
func NewAccountsHandler(pool *pgxpool.Pool, encryptor *crypto.Encryptor) *AccountsHandler {
	return &AccountsHandler{pool: pool, encryptor: encryptor}
}

type linkAccountRequest struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
	Name         string `json:"name"`
	AccessToken  string `json:"access_token"`
}

// LinkAccount registers a remote mailbox for the requesting user. The
// provider access token is encrypted before it touches the database.
func (h *AccountsHandler) LinkAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	var request linkAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if request.EmailAddress == "" || request.AccessToken == "" {
		http.Error(w, "email_address and access_token are required", http.StatusBadRequest)
		return
	}

	encryptedToken, err := h.encryptor.Encrypt(request.AccessToken)
	if err != nil {
		log.Printf("AccountsHandler: Failed to encrypt token: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	account := &models.Account{
		ID:             request.ID,
		UserID:         userID,
		EmailAddress:   request.EmailAddress,
		Name:           request.Name,
		EncryptedToken: encryptedToken,
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}

	if err := db.SaveAccount(ctx, h.pool, account); err != nil {
		log.Printf("AccountsHandler: Failed to save account: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	WriteJSONResponse(w, account)
}

// ListAccounts returns the requesting user's linked accounts.
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	accounts, err := db.GetAccountsForUser(ctx, h.pool, userID)
	if err != nil {
		log.Printf("AccountsHandler: Failed to list accounts: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSONResponse(w, accounts)
}
