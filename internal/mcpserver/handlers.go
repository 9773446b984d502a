package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/risk"
)

// Handlers implements the MCP tool handlers. Risk indicator analysis runs
// in-process against the evaluator; everything that records or reads
// decisions goes through the review API.
type Handlers struct {
	client    *HarrierClient
	evaluator *risk.Evaluator
}

// NewHandlers creates the tool handlers.
func NewHandlers(client *HarrierClient, evaluator *risk.Evaluator) *Handlers {
	return &Handlers{client: client, evaluator: evaluator}
}

// HandleAnalyzeFraudIndicators scores a transaction locally and explains
// the per-category breakdown.
func (h *Handlers) HandleAnalyzeFraudIndicators(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tx, _, err := transactionArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	assessment := h.evaluator.Evaluate(tx)
	return mcp.NewToolResultText(formatAssessment(tx.ID, assessment)), nil
}

// HandleReviewTransaction submits a transaction to the review API and
// reports the recorded decision.
func (h *Handlers) HandleReviewTransaction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, raw, err := transactionArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := h.client.ReviewTransaction(ctx, raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Review failed: %v", err)), nil
	}

	text, err := formatDecision(resp)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse decision: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleGetDecision looks up a decision record by decision ID.
func (h *Handlers) HandleGetDecision(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	decisionID := req.GetString("decision_id", "")
	if decisionID == "" {
		return mcp.NewToolResultError("decision_id is required"), nil
	}

	resp, err := h.client.GetDecision(ctx, decisionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get decision: %v", err)), nil
	}

	text, err := formatDecision(resp)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse decision: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleGetTransaction fetches a stored transaction as raw JSON.
func (h *Handlers) HandleGetTransaction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	transactionID := req.GetString("transaction_id", "")
	if transactionID == "" {
		return mcp.NewToolResultError("transaction_id is required"), nil
	}

	resp, err := h.client.GetTransaction(ctx, transactionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get transaction: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(resp)), nil
}

// HandleGetTransactionDecision looks up the latest decision for a
// transaction ID.
func (h *Handlers) HandleGetTransactionDecision(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	transactionID := req.GetString("transaction_id", "")
	if transactionID == "" {
		return mcp.NewToolResultError("transaction_id is required"), nil
	}

	resp, err := h.client.GetTransactionDecision(ctx, transactionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get decision: %v", err)), nil
	}

	text, err := formatDecision(resp)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse decision: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// transactionArg extracts the "transaction" object argument and returns
// both the typed transaction and its raw JSON form for forwarding.
func transactionArg(req mcp.CallToolRequest) (*domain.Transaction, json.RawMessage, error) {
	arg := req.GetArguments()["transaction"]
	if arg == nil {
		return nil, nil, fmt.Errorf("transaction is required")
	}

	raw, err := json.Marshal(arg)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid transaction: %v", err)
	}

	var tx domain.Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, nil, fmt.Errorf("invalid transaction: %v", err)
	}
	if tx.ID == "" {
		return nil, nil, fmt.Errorf("transaction.transaction_id is required")
	}
	return &tx, raw, nil
}

func formatAssessment(txID string, a *domain.RiskAssessment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fraud indicator analysis for transaction %s\n\n", txID)

	for _, cat := range a.Categories {
		fmt.Fprintf(&b, "  %-14s %5.1f/100", cat.Category, cat.Score)
		if len(cat.Signals) > 0 {
			fmt.Fprintf(&b, "  (%s)", strings.Join(cat.Signals, "; "))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nComposite risk score: %.1f/100\n", a.Composite)
	fmt.Fprintf(&b, "Recommendation: %s\n", a.Recommendation)
	return b.String()
}

func formatDecision(raw json.RawMessage) (string, error) {
	var rec domain.DecisionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", err
	}
	if rec.Decision == "" {
		return "", fmt.Errorf("response carries no decision")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Decision: %s\n", rec.Decision)
	fmt.Fprintf(&b, "Transaction: %s\n", rec.TransactionID)
	if rec.ID != "" {
		fmt.Fprintf(&b, "Decision ID: %s\n", rec.ID)
	}
	fmt.Fprintf(&b, "Decided by: %s\n", rec.DecisionMaker)
	fmt.Fprintf(&b, "Legitimacy score: %.3f\n", rec.LegitimacyScore)
	if rec.RiskAssessment != nil {
		fmt.Fprintf(&b, "Composite risk score: %.1f/100 (%s)\n",
			rec.RiskAssessment.Composite, rec.RiskAssessment.Recommendation)
	}
	if rec.Reasoning != "" {
		fmt.Fprintf(&b, "Reasoning: %s\n", rec.Reasoning)
	}
	return b.String(), nil
}

func formatJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
