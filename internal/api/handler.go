package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/harrier/internal/decision"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/model"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/risk"
)

// GlobalTenantID is used for signals that apply to all tenants.
const GlobalTenantID = "*"

// Handler holds dependencies for API handlers.
type Handler struct {
	service   *decision.Service
	evaluator *risk.Evaluator
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(service *decision.Service, evaluator *risk.Evaluator, repo domain.Repository, cache domain.Cache, bus domain.EventBus, version string) *Handler {
	return &Handler{
		service:   service,
		evaluator: evaluator,
		repo:      repo,
		cache:     cache,
		bus:       bus,
		version:   version,
	}
}

// ReviewResponse is the response for POST /review.
type ReviewResponse struct {
	*domain.DecisionRecord
	Metadata struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Review handles POST /review requests: it runs the full fraud review
// pipeline synchronously and returns the resolved decision record.
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}

	if err := tx.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	rec, err := h.service.Review(ctx, tenantID, &tx)
	if err != nil {
		if errors.Is(err, model.ErrUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "fraud scoring model is unavailable",
			})
			return
		}
		slog.Error("review failed", "tx_id", tx.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "review failed",
		})
		return
	}

	resp := ReviewResponse{DecisionRecord: rec}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// AsyncReviewRequest is the request body for POST /review/async.
type AsyncReviewRequest struct {
	Transaction *domain.Transaction `json:"transaction"`
}

// asyncReviewMessage mirrors the payload the async worker consumes.
type asyncReviewMessage struct {
	TenantID    string              `json:"tenant_id"`
	TraceID     string              `json:"trace_id,omitempty"`
	Transaction *domain.Transaction `json:"transaction"`
}

// ReviewAsync queues a transaction for background review via the event bus.
func (h *Handler) ReviewAsync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	var req AsyncReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Transaction == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction is required",
		})
		return
	}
	if req.Transaction.Timestamp.IsZero() {
		req.Transaction.Timestamp = time.Now().UTC()
	}
	if err := req.Transaction.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	payload, err := json.Marshal(asyncReviewMessage{
		TenantID:    tenantID,
		TraceID:     traceID,
		Transaction: req.Transaction,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode review request",
		})
		return
	}

	if err := h.bus.Publish(ctx, tenantID, domain.TopicReviewRequested, payload); err != nil {
		slog.Error("failed to queue review", "tx_id", req.Transaction.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to queue review",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":         "queued",
		"transaction_id": req.Transaction.ID,
		"trace_id":       traceID,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetDecision retrieves a decision record by ID.
func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	decisionID := chi.URLParam(r, "id")

	if decisionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "decision id is required",
		})
		return
	}

	// Decision records are immutable, so a cache hit is always current.
	if h.cache != nil {
		if rec, err := h.cache.GetDecision(ctx, tenantID, decisionID); err == nil && rec != nil {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rec, err := h.repo.GetDecision(ctx, tenantID, decisionID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get decision", "id", decisionID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "decision not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	tx, err := h.repo.GetTransaction(ctx, tenantID, txID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get transaction", "id", txID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// GetTransactionDecision retrieves the latest decision for a transaction.
func (h *Handler) GetTransactionDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	txID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rec, err := h.repo.GetDecisionByTransaction(ctx, tenantID, txID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get decision for transaction", "tx_id", txID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no decision for transaction",
		})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// ListSignals returns all enabled custom risk signals.
// Signals are loaded from the database at startup and can be reloaded via
// POST /signals/reload.
func (h *Handler) ListSignals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	signals, err := h.repo.ListSignalConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list signals", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list signals",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"signals": signals,
		"count":   len(signals),
		"loaded":  h.evaluator.SignalsCount(),
		"source":  "database",
	})
}

// GetSignal retrieves a signal by ID.
func (h *Handler) GetSignal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sigID := chi.URLParam(r, "id")

	if sigID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "signal id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	sig, err := h.repo.GetSignalConfig(ctx, GlobalTenantID, sigID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "signal not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, sig)
}

// CreateSignalRequest is the request body for creating a custom risk signal.
type CreateSignalRequest struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Category    domain.RiskCategory `json:"category"`
	Expression  string              `json:"expression"`
	Points      float64             `json:"points"`
	Reason      string              `json:"reason,omitempty"`
	Enabled     bool                `json:"enabled"`
}

// CreateSignal creates a new custom risk signal and saves it to the database.
// Signals are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /signals/reload to hot-reload into the evaluator.
func (h *Handler) CreateSignal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateSignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate
	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	sig := &domain.SignalConfig{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Category:    req.Category,
		Expression:  req.Expression,
		Points:      req.Points,
		Reason:      req.Reason,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression before persisting
	if err := risk.ValidateSignal(sig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid signal: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveSignalConfig(ctx, GlobalTenantID, sig); err != nil {
			slog.Error("failed to save signal config", "id", sig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save signal",
			})
			return
		}
	}

	slog.Info("signal created", "id", sig.ID, "name", sig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"signal":  sig,
		"message": "Signal created. Call POST /signals/reload to apply changes.",
	})
}

// DeleteSignal disables a signal and auto-reloads the evaluator.
func (h *Handler) DeleteSignal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sigID := chi.URLParam(r, "id")

	if sigID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "signal id is required",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.DeleteSignalConfig(ctx, GlobalTenantID, sigID); err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "signal not found",
			})
			return
		}

		// Auto-reload evaluator after delete
		signals, err := h.repo.ListSignalConfigs(ctx, GlobalTenantID)
		if err != nil {
			slog.Error("failed to reload signals after delete", "error", err)
		} else if err := h.evaluator.ReloadSignals(signals); err != nil {
			slog.Error("failed to reload evaluator after delete", "error", err)
		} else {
			slog.Info("signals auto-reloaded after delete", "count", len(signals))
		}
	}

	slog.Info("signal deleted", "id", sigID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Signal deleted and evaluator reloaded.",
	})
}

// ReloadSignals reloads all signals from the database into the evaluator.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadSignals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	signals, err := h.repo.ListSignalConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list signals from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load signals from database",
		})
		return
	}

	if err := h.evaluator.ReloadSignals(signals); err != nil {
		slog.Error("failed to reload signals into evaluator", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload signals: " + err.Error(),
		})
		return
	}

	slog.Info("signals reloaded from database", "count", len(signals))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "signals reloaded successfully",
		"count":   len(signals),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
