package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/hithere-devs/email-saas/internal/crypto"
	"github.com/hithere-devs/email-saas/internal/db"
	"github.com/hithere-devs/email-saas/internal/provider"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SendHandler sends messages through the remote provider.
type SendHandler struct {
	pool      *pgxpool.Pool
	encryptor *crypto.Encryptor
	client    *provider.Client
}

// NewSendHandler creates a new SendHandler instance.
func NewSendHandler(pool *pgxpool.Pool, encryptor *crypto.Encryptor, client *provider.Client) *SendHandler {
	return &SendHandler{pool: pool, encryptor: encryptor, client: client}
}

// Send submits a message to the provider on behalf of the account. The sent
// copy comes back through the next sync run, so nothing is written locally.
func (h *SendHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	accountID, ok := GetAccountForUser(ctx, w, r, h.pool, userID)
	if !ok {
		return
	}

	var request provider.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if request.From.Address == "" || len(request.To) == 0 {
		http.Error(w, "from and to are required", http.StatusBadRequest)
		return
	}

	account, err := db.GetAccountByID(ctx, h.pool, accountID)
	if err != nil {
		http.Error(w, "Account not found", http.StatusNotFound)
		return
	}

	token, err := h.encryptor.Decrypt(account.EncryptedToken)
	if err != nil {
		log.Printf("SendHandler: Failed to decrypt token: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response, err := h.client.SendMessage(ctx, token, &request)
	if err != nil {
		var apiErr *provider.APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			http.Error(w, apiErr.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("SendHandler: Failed to send message: %v", err)
		http.Error(w, "Failed to send message", http.StatusBadGateway)
		return
	}

	WriteJSONResponse(w, response)
}
