// Package worker provides async review processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-finance/harrier/internal/decision"
	"github.com/opensource-finance/harrier/internal/domain"
)

// Worker consumes queued review requests from the EventBus and runs them
// through the decision service. Callers that do not need a synchronous
// verdict publish to the review topic instead of calling the API.
type Worker struct {
	bus     domain.EventBus
	service *decision.Service

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process.
	TenantIDs []string
}

// ReviewMessage is the payload published to the review request topic.
type ReviewMessage struct {
	TenantID    string              `json:"tenant_id"`
	TraceID     string              `json:"trace_id,omitempty"`
	Transaction *domain.Transaction `json:"transaction"`
}

// NewWorker creates a new async review worker.
func NewWorker(bus domain.EventBus, service *decision.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		service: service,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins consuming review requests for the given tenants.
func (w *Worker) Start(cfg Config) error {
	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicReviewRequested, func(ctx context.Context, msg *domain.Message) error {
		return w.processReview(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicReviewRequested,
	)

	return nil
}

// processReview runs a queued transaction through the full review pipeline.
func (w *Worker) processReview(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var reviewMsg ReviewMessage
	if err := json.Unmarshal(msg.Payload, &reviewMsg); err != nil {
		slog.Error("failed to parse review message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if reviewMsg.Transaction == nil {
		slog.Error("review message without transaction",
			"message_id", msg.ID,
		)
		return nil
	}

	// Use message tenant if provided
	if reviewMsg.TenantID != "" {
		tenantID = reviewMsg.TenantID
	}

	rec, err := w.service.Review(ctx, tenantID, reviewMsg.Transaction)
	if err != nil {
		slog.Error("async review failed",
			"tx_id", reviewMsg.Transaction.ID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	// A requester waiting synchronously gets the record on its reply topic.
	if replyTo := msg.Metadata[domain.MetaReplyTo]; replyTo != "" {
		data, err := json.Marshal(rec)
		if err != nil {
			slog.Error("failed to encode decision reply", "tx_id", reviewMsg.Transaction.ID, "error", err)
		} else if err := w.bus.Publish(ctx, tenantID, replyTo, data); err != nil {
			slog.Warn("failed to publish decision reply", "tx_id", reviewMsg.Transaction.ID, "error", err)
		}
	}

	slog.Info("async review processed",
		"tx_id", reviewMsg.Transaction.ID,
		"tenant_id", tenantID,
		"decision", rec.Decision,
		"decision_maker", rec.DecisionMaker,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stats holds worker runtime statistics.
type Stats struct {
	SubscriptionCount int
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	return Stats{
		SubscriptionCount: len(w.subscriptions),
	}
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("workers stopped")
	return nil
}
