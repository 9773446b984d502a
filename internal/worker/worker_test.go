package worker

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/decision"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/reason"
	"github.com/opensource-finance/harrier/internal/risk"
)

type stubScorer struct {
	score float64
}

func (s *stubScorer) Predict(ctx context.Context, tx *domain.Transaction) (*domain.ModelPrediction, error) {
	return &domain.ModelPrediction{
		TransactionID:   tx.ID,
		LegitimacyScore: s.score,
		Prediction:      "legitimate",
		Confidence:      s.score,
		ModelVersion:    "test",
	}, nil
}

type stubEngine struct{}

func (s *stubEngine) Review(ctx context.Context, rc *reason.ReviewContext) (string, error) {
	return "DECISION: APPROVE", nil
}

func newWorkerService(t *testing.T, eventBus domain.EventBus, score float64) *decision.Service {
	t.Helper()
	ev, err := risk.NewEvaluator(nil)
	if err != nil {
		t.Fatalf("failed to create evaluator: %v", err)
	}
	router, err := decision.NewRouter(domain.DecisionConfig{ApproveThreshold: 0.7, DenyThreshold: 0.4})
	if err != nil {
		t.Fatalf("failed to create router: %v", err)
	}
	coord := decision.NewCoordinator(ev, &stubEngine{}, time.Second)
	return decision.NewService(&stubScorer{score: score}, router, coord, nil, nil, nil, eventBus)
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	service := newWorkerService(t, eventBus, 0.9)
	worker := NewWorker(eventBus, service)

	t.Run("StartAndStop", func(t *testing.T) {
		cfg := Config{
			TenantIDs: []string{"tenant-001"},
		}

		err := worker.Start(cfg)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := worker.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}

		err = worker.Stop()
		if err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = worker.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("ProcessReview", func(t *testing.T) {
		w := NewWorker(eventBus, service)

		cfg := Config{
			TenantIDs: []string{"tenant-test"},
		}
		w.Start(cfg)
		defer w.Stop()

		// Track resolved decisions
		var resolved atomic.Bool
		var resolvedPayload []byte

		eventBus.Subscribe(context.Background(), "tenant-test", domain.TopicDecisionResolved, func(ctx context.Context, msg *domain.Message) error {
			resolvedPayload = msg.Payload
			resolved.Store(true)
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		reviewMsg := ReviewMessage{
			TenantID: "tenant-test",
			TraceID:  "trace-001",
			Transaction: &domain.Transaction{
				ID:          "tx-async-001",
				UserID:      "user-001",
				Timestamp:   time.Now().UTC(),
				OrderAmount: 75.50,
				Currency:    "USD",
			},
		}

		payload, _ := json.Marshal(reviewMsg)
		err := eventBus.Publish(context.Background(), "tenant-test", domain.TopicReviewRequested, payload)
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Wait for processing
		time.Sleep(100 * time.Millisecond)

		if !resolved.Load() {
			t.Fatal("expected resolved decision to be published")
		}

		var rec domain.DecisionRecord
		if err := json.Unmarshal(resolvedPayload, &rec); err != nil {
			t.Fatalf("failed to parse decision: %v", err)
		}
		if rec.TransactionID != "tx-async-001" {
			t.Errorf("expected transaction tx-async-001, got %s", rec.TransactionID)
		}
		if rec.Decision != domain.DecisionApprove {
			t.Errorf("expected approve for score 0.9, got %s", rec.Decision)
		}
	})

	t.Run("MalformedMessageIgnored", func(t *testing.T) {
		w := NewWorker(eventBus, service)

		cfg := Config{
			TenantIDs: []string{"tenant-bad"},
		}
		w.Start(cfg)
		defer w.Stop()

		time.Sleep(50 * time.Millisecond)

		// Not valid JSON; the worker logs and moves on without crashing.
		eventBus.Publish(context.Background(), "tenant-bad", domain.TopicReviewRequested, []byte("{not json"))
		time.Sleep(50 * time.Millisecond)

		if err := eventBus.Ping(context.Background()); err != nil {
			t.Errorf("bus should remain healthy: %v", err)
		}
	})

	t.Run("MultiTenant", func(t *testing.T) {
		w := NewWorker(eventBus, service)

		cfg := Config{
			TenantIDs: []string{"tenant-a", "tenant-b"},
		}
		w.Start(cfg)
		defer w.Stop()

		stats := w.GetStats()
		if stats.SubscriptionCount != 2 {
			t.Errorf("expected 2 subscriptions for 2 tenants, got %d", stats.SubscriptionCount)
		}
	})
}

func TestWorkerSynchronousRequest(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	service := newWorkerService(t, eventBus, 0.9)
	w := NewWorker(eventBus, service)
	if err := w.Start(Config{TenantIDs: []string{"tenant-sync"}}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	// Allow subscriptions to be active
	time.Sleep(50 * time.Millisecond)

	payload, _ := json.Marshal(ReviewMessage{
		TenantID: "tenant-sync",
		Transaction: &domain.Transaction{
			ID:          "tx-sync-001",
			UserID:      "user-001",
			Timestamp:   time.Now().UTC(),
			OrderAmount: 42,
			Currency:    "USD",
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	reply, err := eventBus.Request(ctx, "tenant-sync", domain.TopicReviewRequested, payload)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	var rec domain.DecisionRecord
	if err := json.Unmarshal(reply, &rec); err != nil {
		t.Fatalf("failed to decode decision reply: %v", err)
	}
	if rec.Decision != domain.DecisionApprove {
		t.Errorf("expected approve, got %s", rec.Decision)
	}
	if rec.TransactionID != "tx-sync-001" {
		t.Errorf("reply must carry the requested transaction, got %q", rec.TransactionID)
	}
}
