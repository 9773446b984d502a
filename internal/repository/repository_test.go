package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "harrier-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetTransaction", func(t *testing.T) {
		verified := true
		newDevice := true
		ageDays := 2
		tx := &domain.Transaction{
			ID:                    "tx-001",
			UserID:                "user-001",
			Timestamp:             time.Now().UTC(),
			OrderAmount:           149.99,
			Currency:              "USD",
			AccountAgeDays:        &ageDays,
			EmailVerified:         &verified,
			NewDevice:             &newDevice,
			FailedLoginAttempts24: 3,
			CVVCheckResult:        domain.CVVFail,
		}

		if err := repo.SaveTransaction(ctx, tenantID, tx); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}

		retrieved, err := repo.GetTransaction(ctx, tenantID, tx.ID)
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}

		if retrieved.ID != tx.ID {
			t.Errorf("expected ID %s, got %s", tx.ID, retrieved.ID)
		}
		if retrieved.OrderAmount != tx.OrderAmount {
			t.Errorf("expected OrderAmount %.2f, got %.2f", tx.OrderAmount, retrieved.OrderAmount)
		}
		if retrieved.TenantID != tenantID {
			t.Errorf("expected TenantID %s, got %s", tenantID, retrieved.TenantID)
		}
		if retrieved.AccountAgeDays == nil || *retrieved.AccountAgeDays != ageDays {
			t.Error("optional account_age_days must survive the round trip")
		}
		if retrieved.EmailVerified == nil || !*retrieved.EmailVerified {
			t.Error("optional email_verified must survive the round trip")
		}
		if retrieved.ProfileComplete != nil {
			t.Error("absent optional fields must stay absent, not become false")
		}
		if retrieved.CVVCheckResult != domain.CVVFail {
			t.Errorf("expected cvv_check_result %s, got %s", domain.CVVFail, retrieved.CVVCheckResult)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		if _, err := repo.GetTransaction(ctx, "tenant-002", "tx-001"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for other tenant, got %v", err)
		}
	})

	t.Run("CountTransactionsByUser", func(t *testing.T) {
		now := time.Now().UTC()
		for i, age := range []time.Duration{time.Hour, 3 * time.Hour, 48 * time.Hour} {
			tx := &domain.Transaction{
				ID:          "tx-count-" + string(rune('a'+i)),
				UserID:      "user-velocity",
				Timestamp:   now.Add(-age),
				OrderAmount: 50,
				Currency:    "USD",
			}
			if err := repo.SaveTransaction(ctx, tenantID, tx); err != nil {
				t.Fatalf("SaveTransaction failed: %v", err)
			}
		}

		count, err := repo.CountTransactionsByUser(ctx, tenantID, "user-velocity", now.Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("CountTransactionsByUser failed: %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 transactions in window, got %d", count)
		}

		count, err = repo.CountTransactionsByUser(ctx, tenantID, "user-velocity", now.Add(-7*24*time.Hour))
		if err != nil {
			t.Fatalf("CountTransactionsByUser failed: %v", err)
		}
		if count != 3 {
			t.Errorf("expected 3 transactions in window, got %d", count)
		}
	})

	t.Run("SaveAndGetDecision", func(t *testing.T) {
		rec := &domain.DecisionRecord{
			ID:              "dec-001",
			TenantID:        tenantID,
			TransactionID:   "tx-001",
			Decision:        domain.DecisionDeny,
			LegitimacyScore: 0.55,
			DecisionMaker:   domain.MakerReasoningAgent,
			Reasoning:       "Payment verification failed. DECISION: DENY",
			RiskAssessment: &domain.RiskAssessment{
				Composite:      62.5,
				Recommendation: domain.RecommendDeny,
				Categories: []domain.CategoryScore{
					{Category: domain.RiskPayment, Score: 75, Signals: []string{"CVV verification failed"}},
				},
			},
			ModelPrediction: &domain.ModelPrediction{
				TransactionID:   "tx-001",
				LegitimacyScore: 0.55,
				Prediction:      "legitimate",
				Confidence:      0.55,
				ModelVersion:    "1.0.0",
			},
			CreatedAt: time.Now().UTC(),
		}

		if err := repo.SaveDecision(ctx, tenantID, rec); err != nil {
			t.Fatalf("SaveDecision failed: %v", err)
		}

		retrieved, err := repo.GetDecision(ctx, tenantID, rec.ID)
		if err != nil {
			t.Fatalf("GetDecision failed: %v", err)
		}
		if retrieved.Decision != domain.DecisionDeny {
			t.Errorf("expected decision deny, got %s", retrieved.Decision)
		}
		if retrieved.DecisionMaker != domain.MakerReasoningAgent {
			t.Errorf("expected maker reasoning_agent, got %s", retrieved.DecisionMaker)
		}
		if retrieved.RiskAssessment == nil || retrieved.RiskAssessment.Composite != 62.5 {
			t.Error("risk assessment must survive the round trip")
		}
		if retrieved.ModelPrediction == nil || retrieved.ModelPrediction.ModelVersion != "1.0.0" {
			t.Error("model prediction must survive the round trip")
		}
	})

	t.Run("GetDecisionByTransactionReturnsLatest", func(t *testing.T) {
		older := &domain.DecisionRecord{
			ID:              "dec-older",
			TenantID:        tenantID,
			TransactionID:   "tx-repeat",
			Decision:        domain.DecisionReview,
			LegitimacyScore: 0.5,
			DecisionMaker:   domain.MakerReviewRequired,
			Reasoning:       "first pass",
			CreatedAt:       time.Now().UTC().Add(-time.Hour),
		}
		newer := &domain.DecisionRecord{
			ID:              "dec-newer",
			TenantID:        tenantID,
			TransactionID:   "tx-repeat",
			Decision:        domain.DecisionApprove,
			LegitimacyScore: 0.8,
			DecisionMaker:   domain.MakerModel,
			Reasoning:       "second pass",
			CreatedAt:       time.Now().UTC(),
		}
		if err := repo.SaveDecision(ctx, tenantID, older); err != nil {
			t.Fatalf("SaveDecision failed: %v", err)
		}
		if err := repo.SaveDecision(ctx, tenantID, newer); err != nil {
			t.Fatalf("SaveDecision failed: %v", err)
		}

		latest, err := repo.GetDecisionByTransaction(ctx, tenantID, "tx-repeat")
		if err != nil {
			t.Fatalf("GetDecisionByTransaction failed: %v", err)
		}
		if latest.ID != "dec-newer" {
			t.Errorf("expected latest decision dec-newer, got %s", latest.ID)
		}
	})

	t.Run("SignalConfigCRUD", func(t *testing.T) {
		sig := &domain.SignalConfig{
			ID:         "sig-001",
			Name:       "crypto-high-value",
			Version:    "1.0.0",
			Category:   domain.RiskBehavioral,
			Expression: `payment_method == "crypto" && order_amount > 1000.0`,
			Points:     25,
			Reason:     "High-value cryptocurrency order",
			Enabled:    true,
		}

		if err := repo.SaveSignalConfig(ctx, tenantID, sig); err != nil {
			t.Fatalf("SaveSignalConfig failed: %v", err)
		}

		retrieved, err := repo.GetSignalConfig(ctx, tenantID, sig.ID)
		if err != nil {
			t.Fatalf("GetSignalConfig failed: %v", err)
		}
		if retrieved.Expression != sig.Expression {
			t.Errorf("expected expression %q, got %q", sig.Expression, retrieved.Expression)
		}
		if !retrieved.Enabled {
			t.Error("expected signal to be enabled")
		}

		// Upsert updates in place
		sig.Points = 40
		if err := repo.SaveSignalConfig(ctx, tenantID, sig); err != nil {
			t.Fatalf("SaveSignalConfig upsert failed: %v", err)
		}
		retrieved, err = repo.GetSignalConfig(ctx, tenantID, sig.ID)
		if err != nil {
			t.Fatalf("GetSignalConfig failed: %v", err)
		}
		if retrieved.Points != 40 {
			t.Errorf("expected updated points 40, got %v", retrieved.Points)
		}

		configs, err := repo.ListSignalConfigs(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListSignalConfigs failed: %v", err)
		}
		if len(configs) != 1 {
			t.Errorf("expected 1 enabled signal, got %d", len(configs))
		}

		if err := repo.DeleteSignalConfig(ctx, tenantID, sig.ID); err != nil {
			t.Fatalf("DeleteSignalConfig failed: %v", err)
		}

		configs, err = repo.ListSignalConfigs(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListSignalConfigs failed: %v", err)
		}
		if len(configs) != 0 {
			t.Errorf("disabled signals must not be listed, got %d", len(configs))
		}

		if err := repo.DeleteSignalConfig(ctx, tenantID, "sig-missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for missing signal, got %v", err)
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		if err := repo.SaveTransaction(ctx, "", &domain.Transaction{ID: "tx-x"}); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for missing tenant, got %v", err)
		}
		if _, err := repo.GetTransaction(ctx, "", "tx-001"); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for missing tenant, got %v", err)
		}
	})
}
