package domain

import (
	"time"
)

// Decision is the final outcome of a fraud review.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
	DecisionReview  Decision = "review"
)

// DecisionMaker records which component produced the decision.
type DecisionMaker string

const (
	// MakerModel means threshold routing on the model score decided directly.
	MakerModel DecisionMaker = "model"

	// MakerReasoningAgent means escalation ran and the reasoning engine
	// returned an unambiguous verdict.
	MakerReasoningAgent DecisionMaker = "reasoning_agent"

	// MakerReviewRequired means escalation ran but no confident verdict could
	// be extracted; a human reviewer is the recovery path.
	MakerReviewRequired DecisionMaker = "review_required"
)

// ModelPrediction is the legitimacy-scoring model's output, echoed back to
// the caller for auditability. The score is the probability that the
// transaction is legitimate, in [0,1].
type ModelPrediction struct {
	TransactionID   string  `json:"transaction_id"`
	LegitimacyScore float64 `json:"legitimacy_score"`
	Prediction      string  `json:"prediction"` // "legitimate" or "fraud"
	Confidence      float64 `json:"confidence"`
	ModelVersion    string  `json:"model_version"`
}

// DecisionRecord is the immutable result of one review request. It is
// created exactly once per request and never mutated afterwards; the sole
// external identity is the transaction ID.
type DecisionRecord struct {
	ID              string           `json:"decision_id"`
	TenantID        string           `json:"tenant_id,omitempty"`
	TransactionID   string           `json:"transaction_id"`
	Decision        Decision         `json:"decision"`
	LegitimacyScore float64          `json:"legitimacy_score"`
	DecisionMaker   DecisionMaker    `json:"decision_maker"`
	Reasoning       string           `json:"reasoning"`
	RiskAssessment  *RiskAssessment  `json:"risk_assessment,omitempty"`
	ModelPrediction *ModelPrediction `json:"model_prediction,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}
