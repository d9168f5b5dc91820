// Package backend provides the HTTP client for the upstream API that issues
// tokens and produces the raw chat response stream.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	domainerrors "github.com/lumenapps/relay-service/internal/domain/errors"
)

const (
	loginPath   = "/token/"
	refreshPath = "/token/refresh/"
	queryPath   = "/chat/query/"
)

// errorBodyLimit bounds how much of a failed response body is read for
// classification.
const errorBodyLimit = 8 << 10

// TokenPair is the credential pair issued by the backend on login.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// QueryRequest describes one chat query forwarded to the backend.
type QueryRequest struct {
	// Message is the user's message text.
	Message string
	// ChatID continues an existing conversation when non-empty. When empty
	// the backend creates a new chat and encodes its identifier as the
	// prefix of the first streamed chunk.
	ChatID string
	// AccessToken authorizes the call.
	AccessToken string
}

// QueryStream is an open backend response stream. The caller owns Body and
// must close it on every exit path.
type QueryStream struct {
	Body   io.ReadCloser
	Header http.Header
}

// ClientConfig holds the configuration for the backend client.
type ClientConfig struct {
	BaseURL string
	// Timeout applies to non-streaming calls (login, refresh).
	Timeout time.Duration
	// StreamTimeout bounds a whole streamed response.
	StreamTimeout time.Duration
	// HTTPClient overrides the default client, for tests.
	HTTPClient *http.Client
}

// Client calls the backend API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
}

// NewClient creates a backend client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	streamTimeout := cfg.StreamTimeout
	if streamTimeout == 0 {
		streamTimeout = 5 * time.Minute
	}

	httpClient := cfg.HTTPClient
	streamClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
		// No overall timeout on the stream client: the read deadline is
		// enforced through the request context instead, so a slow but live
		// stream is not cut off mid-body.
		streamClient = &http.Client{Timeout: 0}
	}

	return &Client{
		baseURL:      cfg.BaseURL,
		httpClient:   httpClient,
		streamClient: streamClient,
	}, nil
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	payload := map[string]string{"username": username, "password": password}

	resp, err := c.postJSON(ctx, c.httpClient, loginPath, payload, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, domainerrors.ClassifyResponse(resp.StatusCode, body)
	}

	var pair TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	if pair.Access == "" || pair.Refresh == "" {
		return nil, fmt.Errorf("login response missing tokens")
	}

	return &pair, nil
}

// Refresh exchanges a refresh token for a new access token. Any non-2xx
// status, transport error, or malformed body is an error; the refresh token
// is never rotated by this call.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	payload := map[string]string{"refresh": refreshToken}

	resp, err := c.postJSON(ctx, c.httpClient, refreshPath, payload, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("refresh returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Access string `json:"access"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if parsed.Access == "" {
		return "", fmt.Errorf("refresh response missing access token")
	}

	return parsed.Access, nil
}

// StreamQuery forwards a chat query and returns the open response stream.
// A non-2xx response is classified and returned as an error without starting
// a stream.
func (c *Client) StreamQuery(ctx context.Context, req *QueryRequest) (*QueryStream, error) {
	payload := map[string]string{"message": req.Message}
	if req.ChatID != "" {
		payload["chat_id"] = req.ChatID
	}

	resp, err := c.postJSON(ctx, c.streamClient, queryPath, payload, req.AccessToken)
	if err != nil {
		return nil, domainerrors.NewBackendError(http.StatusInternalServerError, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		resp.Body.Close()
		return nil, domainerrors.ClassifyResponse(resp.StatusCode, body)
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, domainerrors.NewNoResponseBodyError()
	}

	return &QueryStream{Body: resp.Body, Header: resp.Header}, nil
}

// Ping reports whether the backend is reachable. Any HTTP response counts as
// reachable; only transport failures are errors.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}

// postJSON issues a POST with a JSON body and optional bearer token.
func (c *Client) postJSON(ctx context.Context, client *http.Client, path string, payload any, accessToken string) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	return resp, nil
}
