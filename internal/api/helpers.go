package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/hithere-devs/email-saas/internal/auth"
	"github.com/hithere-devs/email-saas/internal/db"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GetUserIDFromContext extracts the user's email from context, resolves/creates the DB user,
// and writes appropriate HTTP errors when it fails. Returns (userID, true) on success.
func GetUserIDFromContext(ctx context.Context, w http.ResponseWriter, pool *pgxpool.Pool) (string, bool) {
	email, ok := auth.GetUserEmailFromContext(ctx)
	if !ok {
		log.Println("API: No user email in context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", false
	}

	userID, err := db.GetOrCreateUser(ctx, pool, email)
	if err != nil {
		log.Printf("API: Failed to get/create user: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return "", false
	}

	return userID, true
}

// GetAccountForUser loads the account from the query string's account_id and
// verifies the requesting user owns it. Writes appropriate HTTP errors and
// returns ok=false when it fails.
func GetAccountForUser(ctx context.Context, w http.ResponseWriter, r *http.Request, pool *pgxpool.Pool, userID string) (string, bool) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return "", false
	}

	account, err := db.GetAccountByID(ctx, pool, accountID)
	if err != nil {
		log.Printf("API: Failed to get account %s: %v", accountID, err)
		http.Error(w, "Account not found", http.StatusNotFound)
		return "", false
	}

	if account.UserID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return "", false
	}

	return accountID, true
}

// ParsePaginationParams parses page and limit from query parameters.
// Returns default values (page=1, limit=defaultLimit) if parameters are missing or invalid.
func ParsePaginationParams(r *http.Request, defaultLimit int) (page, limit int) {
	page = 1
	limit = defaultLimit

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if parsed, err := strconv.Atoi(pageStr); err == nil && parsed > 0 {
			page = parsed
		}
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	return page, limit
}

// WriteJSONResponse writes the value as a JSON response body. Returns false
// if encoding fails (in which case an error response has been written).
func WriteJSONResponse(w http.ResponseWriter, value any) bool {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		log.Printf("API: Failed to encode response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return false
	}
	return true
}
