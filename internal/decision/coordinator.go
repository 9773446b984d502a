package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/reason"
	"github.com/opensource-finance/harrier/internal/risk"
)

var tracer = otel.Tracer("harrier-decision")

// Coordinator resolves escalated transactions. The pipeline is a straight
// composition — assess, reason, parse — with exactly one suspension point
// (the reasoning engine call). Every failure mode on that path degrades to
// the review fallback; escalation never returns an error.
type Coordinator struct {
	evaluator *risk.Evaluator
	engine    reason.Engine
	timeout   time.Duration
}

// NewCoordinator creates an escalation coordinator. The timeout bounds the
// reasoning call and is mandatory; a non-positive value falls back to 30s.
func NewCoordinator(evaluator *risk.Evaluator, engine reason.Engine, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Coordinator{
		evaluator: evaluator,
		engine:    engine,
		timeout:   timeout,
	}
}

// Escalate runs the full escalation pipeline for a transaction whose score
// landed between the routing thresholds and returns the resolved record.
func (c *Coordinator) Escalate(ctx context.Context, tenantID string, tx *domain.Transaction, pred *domain.ModelPrediction) *domain.DecisionRecord {
	ctx, span := tracer.Start(ctx, "decision.escalate")
	defer span.End()
	span.SetAttributes(
		attribute.String("transaction.id", tx.ID),
		attribute.Float64("legitimacy.score", pred.LegitimacyScore),
	)

	// Assess: pure and local, cannot fail.
	assessment := c.evaluator.Evaluate(tx)
	span.SetAttributes(attribute.Float64("risk.composite", assessment.Composite))

	// Reason: the single external suspension point, bounded by the timeout.
	rc := &reason.ReviewContext{
		Transaction:     tx,
		LegitimacyScore: pred.LegitimacyScore,
		Assessment:      assessment,
	}

	reasonCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.engine.Review(reasonCtx, rc)
	if err != nil {
		// No automatic retry: a human reviewer is the designed recovery
		// path for reasoning failures.
		cause := "reasoning engine call failed"
		if errors.Is(err, context.DeadlineExceeded) {
			cause = fmt.Sprintf("reasoning engine timed out after %s", c.timeout)
		}
		slog.Warn("escalation degraded to review", "tx_id", tx.ID, "error", err)
		return c.resolve(tenantID, tx, pred, assessment, domain.DecisionReview, domain.MakerReviewRequired,
			fmt.Sprintf("Escalated for review: %s (%v). A human reviewer must decide.", cause, err))
	}

	// Parse: one well-tested boundary, never raises.
	verdict := ParseVerdict(text)
	if verdict.Ambiguous {
		return c.resolve(tenantID, tx, pred, assessment, domain.DecisionReview, domain.MakerReviewRequired,
			fmt.Sprintf("Escalated for review: %s.\n\nReasoning reply:\n%s", verdict.Reason, text))
	}

	return c.resolve(tenantID, tx, pred, assessment, verdict.Decision, domain.MakerReasoningAgent, text)
}

func (c *Coordinator) resolve(tenantID string, tx *domain.Transaction, pred *domain.ModelPrediction, assessment *domain.RiskAssessment, d domain.Decision, maker domain.DecisionMaker, reasoning string) *domain.DecisionRecord {
	return &domain.DecisionRecord{
		ID:              uuid.New().String(),
		TenantID:        tenantID,
		TransactionID:   tx.ID,
		Decision:        d,
		LegitimacyScore: pred.LegitimacyScore,
		DecisionMaker:   maker,
		Reasoning:       reasoning,
		RiskAssessment:  assessment,
		ModelPrediction: pred,
		CreatedAt:       time.Now().UTC(),
	}
}
