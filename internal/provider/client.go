package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// APIError is a non-2xx reply from the provider. Transport-level failures
// are returned as wrapped errors instead.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider API error: status %d: %s", e.Status, e.Body)
}

// Client talks to the remote mail-sync API. It holds no credentials: every
// call takes the account's bearer token explicitly, which keeps the client
// shareable across accounts and trivially fakeable in tests.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a provider client for the given API base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
	}
}

// StartSync asks the provider to begin preparing a sync window of the last
// daysWithin days, with bodies rendered in the given type ("html").
func (c *Client) StartSync(ctx context.Context, token string, daysWithin int, bodyType string) (*SyncResponse, error) {
	params := url.Values{}
	params.Set("daysWithin", strconv.Itoa(daysWithin))
	params.Set("bodyType", bodyType)

	var response SyncResponse
	if err := c.do(ctx, token, http.MethodPost, "/email/sync", params, nil, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// GetUpdated fetches one page of changed messages. Exactly one of deltaToken
// and pageToken should be set: the delta token opens a run, the page token
// continues it.
func (c *Client) GetUpdated(ctx context.Context, token, deltaToken, pageToken string) (*SyncUpdatedResponse, error) {
	params := url.Values{}
	if deltaToken != "" {
		params.Set("deltaToken", deltaToken)
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var response SyncUpdatedResponse
	if err := c.do(ctx, token, http.MethodGet, "/email/sync/updated", params, nil, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// SendMessage sends a message through the provider and returns the id it
// assigned.
func (c *Client) SendMessage(ctx context.Context, token string, req *SendMessageRequest) (*SendMessageResponse, error) {
	params := url.Values{}
	params.Set("returnIds", "true")

	var response SendMessageResponse
	if err := c.do(ctx, token, http.MethodPost, "/email/messages", params, req, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

func (c *Client) do(ctx context.Context, token, method, path string, params url.Values, body, out any) error {
	requestURL := c.baseURL + path
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	request.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		return &APIError{Status: response.StatusCode, Body: string(responseBody)}
	}

	if out != nil {
		if err := json.NewDecoder(response.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}

	return nil
}
