package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config holds what the MCP server needs to reach a running review API.
type Config struct {
	APIURL   string
	TenantID string
	Timeout  time.Duration
}

// HarrierClient is a thin HTTP client for the harrier review API. All
// requests carry the configured tenant in the X-Tenant-ID header.
type HarrierClient struct {
	baseURL  string
	tenantID string
	http     *http.Client
}

// NewHarrierClient creates a client for the given API endpoint.
func NewHarrierClient(cfg Config) *HarrierClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HarrierClient{
		baseURL:  cfg.APIURL,
		tenantID: cfg.TenantID,
		http:     &http.Client{Timeout: timeout},
	}
}

// ReviewTransaction submits a transaction for a synchronous fraud review.
func (c *HarrierClient) ReviewTransaction(ctx context.Context, tx json.RawMessage) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/review", tx)
}

// GetDecision fetches a decision record by its decision ID.
func (c *HarrierClient) GetDecision(ctx context.Context, decisionID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/decisions/"+decisionID, nil)
}

// GetTransaction fetches a stored transaction by its transaction ID.
func (c *HarrierClient) GetTransaction(ctx context.Context, transactionID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/transactions/"+transactionID, nil)
}

// GetTransactionDecision fetches the latest decision for a transaction.
func (c *HarrierClient) GetTransactionDecision(ctx context.Context, transactionID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/transactions/"+transactionID+"/decision", nil)
}

func (c *HarrierClient) doRequest(ctx context.Context, method, path string, body json.RawMessage) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", c.tenantID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The API returns {"error": "..."} bodies; fall back to the raw
		// body when the payload is not JSON.
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(raw))
	}

	return raw, nil
}
