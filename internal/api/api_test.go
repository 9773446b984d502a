package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/decision"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/model"
	"github.com/opensource-finance/harrier/internal/reason"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/risk"
)

type testScorer struct {
	score float64
	err   error
}

func (s *testScorer) Predict(ctx context.Context, tx *domain.Transaction) (*domain.ModelPrediction, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.ModelPrediction{
		TransactionID:   tx.ID,
		LegitimacyScore: s.score,
		Prediction:      "legitimate",
		Confidence:      s.score,
		ModelVersion:    "test",
	}, nil
}

type testEngine struct {
	reply string
}

func (e *testEngine) Review(ctx context.Context, rc *reason.ReviewContext) (string, error) {
	return e.reply, nil
}

// createTestServer wires a full server against a temp SQLite repository and
// scripted model/reasoning collaborators.
func createTestServer(t *testing.T, scorer model.Scorer) *Server {
	t.Helper()

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	tmpFile, err := os.CreateTemp("", "harrier-api-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	evaluator, err := risk.NewEvaluator(nil)
	if err != nil {
		t.Fatalf("failed to create evaluator: %v", err)
	}
	router, err := decision.NewRouter(domain.DecisionConfig{ApproveThreshold: 0.7, DenyThreshold: 0.4})
	if err != nil {
		t.Fatalf("failed to create router: %v", err)
	}
	coord := decision.NewCoordinator(evaluator, &testEngine{reply: "DECISION: APPROVE"}, time.Second)

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	service := decision.NewService(scorer, router, coord, nil, repo, nil, eventBus)

	return NewServer(cfg, service, evaluator, repo, nil, eventBus, "test-v1")
}

func reviewBody(t *testing.T, tx *domain.Transaction) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("failed to marshal transaction: %v", err)
	}
	return bytes.NewBuffer(body)
}

func apiTransaction() *domain.Transaction {
	return &domain.Transaction{
		ID:          "tx-api-001",
		UserID:      "user-001",
		Timestamp:   time.Now().UTC(),
		OrderAmount: 149.99,
		Currency:    "USD",
	}
}

func TestReviewEndpoint(t *testing.T) {
	server := createTestServer(t, &testScorer{score: 0.92})

	t.Run("SuccessfulReview", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/review", reviewBody(t, apiTransaction()))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp ReviewResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.Decision != domain.DecisionApprove {
			t.Errorf("expected approve for score 0.92, got %s", resp.Decision)
		}
		if resp.DecisionMaker != domain.MakerModel {
			t.Errorf("expected model maker, got %s", resp.DecisionMaker)
		}
		if resp.ID == "" {
			t.Error("expected decision id in response")
		}
		if resp.Metadata.Version != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp.Metadata.Version)
		}
		if resp.Metadata.TraceID == "" {
			t.Error("expected traceId in metadata")
		}
	})

	t.Run("MissingTenantID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/review", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")
		// No X-Tenant-ID header

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/review", bytes.NewBufferString("not-json"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingTransactionID", func(t *testing.T) {
		tx := apiTransaction()
		tx.ID = ""
		req := httptest.NewRequest(http.MethodPost, "/review", reviewBody(t, tx))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ModelUnavailable", func(t *testing.T) {
		downServer := createTestServer(t, &testScorer{err: model.ErrUnavailable})

		req := httptest.NewRequest(http.MethodPost, "/review", reviewBody(t, apiTransaction()))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		downServer.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503 when the model is down, got %d", rr.Code)
		}
	})
}

func TestDecisionRetrieval(t *testing.T) {
	server := createTestServer(t, &testScorer{score: 0.3})

	// Resolve a review first so there is a decision to fetch.
	req := httptest.NewRequest(http.MethodPost, "/review", reviewBody(t, apiTransaction()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "tenant-001")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("seed review failed: %d %s", rr.Code, rr.Body.String())
	}

	var seeded ReviewResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &seeded); err != nil {
		t.Fatalf("failed to parse seed response: %v", err)
	}
	if seeded.Decision != domain.DecisionDeny {
		t.Fatalf("expected deny for score 0.3, got %s", seeded.Decision)
	}

	t.Run("GetDecision", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/decisions/"+seeded.ID, nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var rec domain.DecisionRecord
		if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
			t.Fatalf("failed to parse decision: %v", err)
		}
		if rec.TransactionID != "tx-api-001" {
			t.Errorf("expected transaction tx-api-001, got %s", rec.TransactionID)
		}
	})

	t.Run("GetDecisionWrongTenant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/decisions/"+seeded.ID, nil)
		req.Header.Set("X-Tenant-ID", "tenant-other")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404 for other tenant, got %d", rr.Code)
		}
	})

	t.Run("GetDecisionNotFound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/decisions/no-such-id", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("GetTransaction", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/transactions/tx-api-001", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var tx domain.Transaction
		if err := json.Unmarshal(rr.Body.Bytes(), &tx); err != nil {
			t.Fatalf("failed to parse transaction: %v", err)
		}
		if tx.ID != "tx-api-001" {
			t.Errorf("expected tx-api-001, got %s", tx.ID)
		}
	})

	t.Run("GetTransactionDecision", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/transactions/tx-api-001/decision", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var rec domain.DecisionRecord
		if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
			t.Fatalf("failed to parse decision: %v", err)
		}
		if rec.ID != seeded.ID {
			t.Errorf("expected decision %s, got %s", seeded.ID, rec.ID)
		}
	})
}

func TestAsyncReviewEndpoint(t *testing.T) {
	server := createTestServer(t, &testScorer{score: 0.92})

	t.Run("Queued", func(t *testing.T) {
		body, _ := json.Marshal(AsyncReviewRequest{Transaction: apiTransaction()})
		req := httptest.NewRequest(http.MethodPost, "/review/async", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("MissingTransaction", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/review/async", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestSignalEndpoints(t *testing.T) {
	server := createTestServer(t, &testScorer{score: 0.92})

	createReq := CreateSignalRequest{
		ID:         "sig-crypto",
		Name:       "High value crypto",
		Category:   domain.RiskBehavioral,
		Expression: `payment_method == "crypto" && order_amount > 500.0`,
		Points:     25,
		Reason:     "High-value cryptocurrency order",
		Enabled:    true,
	}

	t.Run("CreateSignal", func(t *testing.T) {
		body, _ := json.Marshal(createReq)
		req := httptest.NewRequest(http.MethodPost, "/signals", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("CreateSignalInvalidExpression", func(t *testing.T) {
		bad := createReq
		bad.ID = "sig-bad"
		bad.Expression = "order_amount +"
		body, _ := json.Marshal(bad)

		req := httptest.NewRequest(http.MethodPost, "/signals", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for invalid expression, got %d", rr.Code)
		}
	})

	t.Run("ReloadSignals", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/signals/reload", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		if server.Handler().evaluator.SignalsCount() != 1 {
			t.Errorf("expected 1 loaded signal, got %d", server.Handler().evaluator.SignalsCount())
		}
	})

	t.Run("ListSignals", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/signals", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Count != 1 {
			t.Errorf("expected 1 signal, got %d", resp.Count)
		}
	})

	t.Run("GetSignal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/signals/sig-crypto", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("DeleteSignal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/signals/sig-crypto", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		if server.Handler().evaluator.SignalsCount() != 0 {
			t.Errorf("expected 0 loaded signals after delete, got %d", server.Handler().evaluator.SignalsCount())
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	server := createTestServer(t, &testScorer{score: 0.92})

	t.Run("Health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp["status"] != "healthy" {
			t.Errorf("expected healthy, got %s", resp["status"])
		}
	})

	t.Run("Ready", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}
