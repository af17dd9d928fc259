// Package client is the Go client for the TicketChain API server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Totals is the aggregate ticket state.
type Totals struct {
	Total     uint64  `json:"total"`
	LastOwner *string `json:"lastOwner"`
}

// MintParams are the inputs of a mint transaction.
type MintParams struct {
	PublicKey string `json:"publicKey"`
	Recipient string `json:"recipient"`
	Amount    uint32 `json:"amount"`
}

// SubmitResult is the outcome of an accepted submission.
type SubmitResult struct {
	Status string  `json:"status"`
	Hash   *string `json:"hash"`
}

// Submission is a recorded submission and its latest known status.
type Submission struct {
	Hash        string    `json:"hash"`
	Signer      string    `json:"signer"`
	Status      string    `json:"status"`
	Error       *string   `json:"error,omitempty"`
	Ledger      *int64    `json:"ledger,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Client is the HTTP client for the ticket API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	contractID string
	logger     *slog.Logger
}

// NewClient creates a new ticket API client.
// contractID is only reported back by ContractID; the server holds its own.
func NewClient(baseURL, contractID string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		contractID: contractID,
		logger:     logger,
	}
}

// ContractID returns the configured contract ID, or "" when unset.
func (c *Client) ContractID() string {
	return c.contractID
}

// GetTotals fetches the ticket totals. It returns nil on any failure.
func (c *Client) GetTotals(ctx context.Context) *Totals {
	var totals Totals
	if err := c.call(ctx, "getTotals", struct{}{}, &totals); err != nil {
		c.logger.Error("failed to get totals", "error", err)
		return nil
	}
	return &totals
}

// BuildMintTxXDR asks the server for an unsigned mint envelope.
// It returns "" on any failure.
func (c *Client) BuildMintTxXDR(ctx context.Context, params MintParams) string {
	var resp struct {
		XDR string `json:"xdr"`
	}
	if err := c.call(ctx, "buildMintTxXdr", params, &resp); err != nil {
		c.logger.Error("failed to build mint transaction", "error", err)
		return ""
	}
	return resp.XDR
}

// SubmitTx submits a signed envelope.
func (c *Client) SubmitTx(ctx context.Context, signedXDR string) (*SubmitResult, error) {
	params := map[string]string{"signedXdr": signedXDR}
	var result SubmitResult
	if err := c.call(ctx, "submitTx", params, &result); err != nil {
		c.logger.Error("failed to submit transaction", "error", err)
		return nil, err
	}
	c.logger.Debug("transaction submitted", "status", result.Status, "hash", result.Hash)
	return &result, nil
}

// ListSubmissions lists recorded submissions, newest first.
// An empty signer lists every signer; zero limit uses the server default.
func (c *Client) ListSubmissions(ctx context.Context, signer string, limit, offset int) ([]*Submission, error) {
	q := url.Values{}
	if signer != "" {
		q.Set("signer", signer)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	u := c.baseURL + "/api/submissions"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var response struct {
		Submissions []*Submission `json:"submissions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return response.Submissions, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// call performs one POST /api/soroban round trip.
func (c *Client) call(ctx context.Context, method string, params, out interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"method": method,
		"params": params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/soroban", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("api call succeeded", "method", method)
	return nil
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// parseErrorResponse turns an error response into an *APIError carrying the
// server's error field, or a generic message when there is none.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: "An API error occurred"}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
}
