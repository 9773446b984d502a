package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/opensource-finance/harrier/internal/risk"
)

// NewMCPServer creates a configured MCP server with all harrier tools
// registered. Indicator analysis uses the stock scoring policy; custom
// CEL signals are a property of the API deployment, not the MCP sidecar.
func NewMCPServer(cfg Config) (*server.MCPServer, error) {
	evaluator, err := risk.NewEvaluator(nil)
	if err != nil {
		return nil, err
	}

	s := server.NewMCPServer("harrier", "1.0.0")
	h := NewHandlers(NewHarrierClient(cfg), evaluator)

	s.AddTool(ToolAnalyzeFraudIndicators, h.HandleAnalyzeFraudIndicators)
	s.AddTool(ToolReviewTransaction, h.HandleReviewTransaction)
	s.AddTool(ToolGetDecision, h.HandleGetDecision)
	s.AddTool(ToolGetTransaction, h.HandleGetTransaction)
	s.AddTool(ToolGetTransactionDecision, h.HandleGetTransactionDecision)

	return s, nil
}
