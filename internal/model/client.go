// Package model provides the client for the external legitimacy-scoring
// service. The scoring model is a black box: Harrier only consumes the score.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// ErrUnavailable indicates the scoring service could not be reached or
// answered with a server error. Callers surface this as service-unavailable
// rather than silently defaulting a score.
var ErrUnavailable = errors.New("model service unavailable")

// Scorer produces a legitimacy score for a transaction.
type Scorer interface {
	Predict(ctx context.Context, tx *domain.Transaction) (*domain.ModelPrediction, error)
}

// Client is an HTTP Scorer implementation.
type Client struct {
	baseURL string
	hc      *http.Client
}

// NewClient creates a scoring client for the given service URL.
func NewClient(cfg domain.ModelConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.URL,
		hc:      &http.Client{Timeout: timeout},
	}
}

// Predict posts the transaction to the scoring service and returns its
// prediction. Scores outside [0,1] are rejected as protocol violations.
func (c *Client) Predict(ctx context.Context, tx *domain.Transaction) (*domain.ModelPrediction, error) {
	body, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prediction request rejected: status %d", resp.StatusCode)
	}

	var pred domain.ModelPrediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, fmt.Errorf("%w: malformed prediction response: %v", ErrUnavailable, err)
	}
	if pred.LegitimacyScore < 0 || pred.LegitimacyScore > 1 {
		return nil, fmt.Errorf("%w: legitimacy score %v outside [0,1]", ErrUnavailable, pred.LegitimacyScore)
	}
	if pred.TransactionID == "" {
		pred.TransactionID = tx.ID
	}

	return &pred, nil
}
