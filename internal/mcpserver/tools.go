package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the harrier MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolAnalyzeFraudIndicators = mcp.NewTool("analyze_fraud_indicators",
	mcp.WithDescription(
		"Score a transaction against the five fraud risk categories "+
			"(account, authentication, payment, behavioral, network) without "+
			"recording a decision. Returns per-category scores, the signals "+
			"that fired, the weighted composite score, and an advisory "+
			"recommendation. Use this to understand WHY a transaction looks "+
			"risky before deciding."),
	mcp.WithObject("transaction",
		mcp.Required(),
		mcp.Description("Transaction fields as JSON, e.g. {\"transaction_id\": \"tx-1\", \"user_id\": \"u-1\", \"order_amount\": 250.0, \"currency\": \"USD\", \"account_age_days\": 2, \"vpn_proxy_detected\": true}")),
)

var ToolReviewTransaction = mcp.NewTool("review_transaction",
	mcp.WithDescription(
		"Submit a transaction for a full synchronous fraud review: model "+
			"scoring, threshold routing, and escalation when the score is "+
			"ambiguous. Records and returns an immutable decision "+
			"(approve/deny/review). Use analyze_fraud_indicators first if you "+
			"only want the risk breakdown."),
	mcp.WithObject("transaction",
		mcp.Required(),
		mcp.Description("Transaction fields as JSON. At minimum transaction_id, user_id, order_amount and currency are required.")),
)

var ToolGetDecision = mcp.NewTool("get_decision",
	mcp.WithDescription(
		"Look up a recorded fraud decision by its decision ID. "+
			"Shows the outcome, who decided (model, reasoning agent, or human "+
			"review queue), the legitimacy score, and the reasoning."),
	mcp.WithString("decision_id",
		mcp.Required(),
		mcp.Description("The decision ID returned by review_transaction")),
)

var ToolGetTransaction = mcp.NewTool("get_transaction",
	mcp.WithDescription(
		"Fetch a stored transaction by its transaction ID, as raw JSON."),
	mcp.WithString("transaction_id",
		mcp.Required(),
		mcp.Description("The transaction ID")),
)

var ToolGetTransactionDecision = mcp.NewTool("get_transaction_decision",
	mcp.WithDescription(
		"Look up the latest recorded decision for a transaction ID. "+
			"Use this when you have the transaction ID but not the decision ID."),
	mcp.WithString("transaction_id",
		mcp.Required(),
		mcp.Description("The transaction ID")),
)
