package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/metrics"
	"github.com/opensource-finance/harrier/internal/model"
)

// VelocityFiller backfills order-velocity counters on transactions whose
// caller did not supply them, and records each reviewed order so that later
// reviews in the same window see the updated velocity.
type VelocityFiller interface {
	Fill(ctx context.Context, tenantID string, tx *domain.Transaction) error
	RecordOrder(ctx context.Context, tenantID, userID string) error
}

// Service runs the complete review pipeline: score, route, optionally
// escalate, then persist and publish the resolved record. Repository, cache
// and bus are optional; a nil collaborator skips that side effect.
type Service struct {
	scorer      model.Scorer
	router      *Router
	coordinator *Coordinator
	velocity    VelocityFiller
	repo        domain.Repository
	cache       domain.Cache
	bus         domain.EventBus
}

// NewService wires the decision pipeline.
func NewService(scorer model.Scorer, router *Router, coordinator *Coordinator, velocity VelocityFiller, repo domain.Repository, cache domain.Cache, bus domain.EventBus) *Service {
	return &Service{
		scorer:      scorer,
		router:      router,
		coordinator: coordinator,
		velocity:    velocity,
		repo:        repo,
		cache:       cache,
		bus:         bus,
	}
}

// Review produces the decision record for one transaction. It returns an
// error only for caller mistakes (invalid transaction) or model
// unavailability; reasoning failures are absorbed into the review fallback.
func (s *Service) Review(ctx context.Context, tenantID string, tx *domain.Transaction) (*domain.DecisionRecord, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "decision.review")
	defer span.End()

	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}
	span.SetAttributes(attribute.String("transaction.id", tx.ID))

	if s.repo != nil {
		if err := s.repo.SaveTransaction(ctx, tenantID, tx); err != nil {
			slog.Error("failed to save transaction", "tx_id", tx.ID, "error", err)
		}
	}

	if s.velocity != nil && (tx.OrdersLast24h == nil || tx.OrdersLast7d == nil) {
		if err := s.velocity.Fill(ctx, tenantID, tx); err != nil {
			slog.Warn("velocity backfill failed, scoring without it", "tx_id", tx.ID, "error", err)
		}
	}

	pred, err := s.scorer.Predict(ctx, tx)
	if err != nil {
		metrics.ModelErrors.Inc()
		return nil, err
	}

	route := s.router.Route(pred.LegitimacyScore)
	span.SetAttributes(
		attribute.Float64("legitimacy.score", pred.LegitimacyScore),
		attribute.String("route", route.String()),
	)

	var rec *domain.DecisionRecord
	switch route {
	case RouteApprove:
		rec = s.terminal(tenantID, tx, pred, domain.DecisionApprove,
			fmt.Sprintf("Auto-approved: high legitimacy score (%.3f). The model indicates this transaction has low fraud risk.", pred.LegitimacyScore))
	case RouteDeny:
		rec = s.terminal(tenantID, tx, pred, domain.DecisionDeny,
			fmt.Sprintf("Auto-denied: low legitimacy score (%.3f). The model indicates this transaction has high fraud risk.", pred.LegitimacyScore))
	default:
		metrics.EscalationsTotal.Inc()
		s.publish(ctx, tenantID, domain.TopicReviewEscalated, map[string]any{
			"transaction_id":   tx.ID,
			"legitimacy_score": pred.LegitimacyScore,
		})
		rec = s.coordinator.Escalate(ctx, tenantID, tx, pred)
	}

	s.finish(ctx, tenantID, rec)

	if s.velocity != nil {
		if err := s.velocity.RecordOrder(ctx, tenantID, tx.UserID); err != nil {
			slog.Warn("failed to record order velocity", "tx_id", tx.ID, "error", err)
		}
	}

	metrics.DecisionsTotal.WithLabelValues(string(rec.Decision), string(rec.DecisionMaker)).Inc()
	metrics.ReviewDuration.WithLabelValues(route.String()).Observe(time.Since(start).Seconds())

	slog.Info("review resolved",
		"tx_id", tx.ID,
		"decision", rec.Decision,
		"maker", rec.DecisionMaker,
		"score", pred.LegitimacyScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return rec, nil
}

// terminal builds the record for a threshold-routed decision. No escalation
// occurred, so no risk assessment is attached and the maker is the model.
func (s *Service) terminal(tenantID string, tx *domain.Transaction, pred *domain.ModelPrediction, d domain.Decision, reasoning string) *domain.DecisionRecord {
	return &domain.DecisionRecord{
		ID:              uuid.New().String(),
		TenantID:        tenantID,
		TransactionID:   tx.ID,
		Decision:        d,
		LegitimacyScore: pred.LegitimacyScore,
		DecisionMaker:   domain.MakerModel,
		Reasoning:       reasoning,
		ModelPrediction: pred,
		CreatedAt:       time.Now().UTC(),
	}
}

// finish persists, caches and publishes the resolved record. Side-effect
// failures are logged but never fail the review: the record is already final.
func (s *Service) finish(ctx context.Context, tenantID string, rec *domain.DecisionRecord) {
	if s.repo != nil {
		if err := s.repo.SaveDecision(ctx, tenantID, rec); err != nil {
			slog.Error("failed to save decision", "decision_id", rec.ID, "error", err)
		}
	}
	if s.cache != nil {
		if err := s.cache.SetDecision(ctx, tenantID, rec, time.Hour); err != nil {
			slog.Warn("failed to cache decision", "decision_id", rec.ID, "error", err)
		}
	}

	s.publish(ctx, tenantID, domain.TopicDecisionResolved, rec)
	if rec.Decision == domain.DecisionDeny {
		s.publish(ctx, tenantID, domain.TopicDecisionDenied, rec)
	}
}

func (s *Service) publish(ctx context.Context, tenantID, topic string, payload any) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to encode event payload", "topic", topic, "error", err)
		return
	}
	if err := s.bus.Publish(ctx, tenantID, topic, data); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}
