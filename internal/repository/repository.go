// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a transaction with tenant isolation. The optional
// risk-signal fields are stored as a JSON payload alongside the query columns.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tenantID string, tx *domain.Transaction) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	payload, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to encode transaction: %w", err)
	}

	query := `
		INSERT INTO transactions (
			id, tenant_id, user_id, order_amount, currency, timestamp, created_at, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			payload = excluded.payload
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tenantID, tx.UserID,
		tx.OrderAmount, tx.Currency,
		tx.Timestamp, time.Now().UTC(),
		string(payload),
	)
	return err
}

// GetTransaction retrieves a transaction by ID with tenant isolation.
func (r *SQLRepository) GetTransaction(ctx context.Context, tenantID string, txID string) (*domain.Transaction, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT payload FROM transactions
		WHERE tenant_id = ? AND id = ?
	`

	var payload string
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, txID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var tx domain.Transaction
	if err := json.Unmarshal([]byte(payload), &tx); err != nil {
		return nil, fmt.Errorf("failed to parse transaction payload: %w", err)
	}
	tx.TenantID = tenantID
	return &tx, nil
}

// CountTransactionsByUser counts a user's transactions since a point in time,
// used by the velocity service to backfill order counters.
func (r *SQLRepository) CountTransactionsByUser(ctx context.Context, tenantID string, userID string, since time.Time) (int64, error) {
	if tenantID == "" || userID == "" {
		return 0, fmt.Errorf("%w: tenantID and userID are required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*) FROM transactions
		WHERE tenant_id = ? AND user_id = ? AND timestamp >= ?
	`

	var count int64
	if err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// SaveDecision stores a resolved decision record. Records are immutable;
// inserting the same decision ID twice is a programming error surfaced by the
// primary key.
func (r *SQLRepository) SaveDecision(ctx context.Context, tenantID string, rec *domain.DecisionRecord) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	var assessment, prediction []byte
	var err error
	if rec.RiskAssessment != nil {
		if assessment, err = json.Marshal(rec.RiskAssessment); err != nil {
			return fmt.Errorf("failed to encode risk assessment: %w", err)
		}
	}
	if rec.ModelPrediction != nil {
		if prediction, err = json.Marshal(rec.ModelPrediction); err != nil {
			return fmt.Errorf("failed to encode model prediction: %w", err)
		}
	}

	query := `
		INSERT INTO decisions (
			id, tenant_id, transaction_id, decision, legitimacy_score,
			decision_maker, reasoning, risk_assessment, model_prediction, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, tenantID, rec.TransactionID,
		string(rec.Decision), rec.LegitimacyScore,
		string(rec.DecisionMaker), rec.Reasoning,
		nullable(assessment), nullable(prediction),
		rec.CreatedAt,
	)
	return err
}

// GetDecision retrieves a decision record by its ID with tenant isolation.
func (r *SQLRepository) GetDecision(ctx context.Context, tenantID string, decisionID string) (*domain.DecisionRecord, error) {
	query := `
		SELECT id, tenant_id, transaction_id, decision, legitimacy_score,
			   decision_maker, reasoning, risk_assessment, model_prediction, created_at
		FROM decisions
		WHERE tenant_id = ? AND id = ?
	`
	return r.scanDecision(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, decisionID))
}

// GetDecisionByTransaction retrieves the latest decision for a transaction.
func (r *SQLRepository) GetDecisionByTransaction(ctx context.Context, tenantID string, txID string) (*domain.DecisionRecord, error) {
	query := `
		SELECT id, tenant_id, transaction_id, decision, legitimacy_score,
			   decision_maker, reasoning, risk_assessment, model_prediction, created_at
		FROM decisions
		WHERE tenant_id = ? AND transaction_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanDecision(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, txID))
}

func (r *SQLRepository) scanDecision(row *sql.Row) (*domain.DecisionRecord, error) {
	var rec domain.DecisionRecord
	var decision, maker string
	var assessment, prediction sql.NullString

	err := row.Scan(
		&rec.ID, &rec.TenantID, &rec.TransactionID,
		&decision, &rec.LegitimacyScore,
		&maker, &rec.Reasoning,
		&assessment, &prediction,
		&rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.Decision = domain.Decision(decision)
	rec.DecisionMaker = domain.DecisionMaker(maker)
	if assessment.Valid && assessment.String != "" {
		if err := json.Unmarshal([]byte(assessment.String), &rec.RiskAssessment); err != nil {
			return nil, fmt.Errorf("failed to parse risk assessment: %w", err)
		}
	}
	if prediction.Valid && prediction.String != "" {
		if err := json.Unmarshal([]byte(prediction.String), &rec.ModelPrediction); err != nil {
			return nil, fmt.Errorf("failed to parse model prediction: %w", err)
		}
	}
	return &rec, nil
}

// SaveSignalConfig stores a custom risk signal configuration.
func (r *SQLRepository) SaveSignalConfig(ctx context.Context, tenantID string, sig *domain.SignalConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if sig.Enabled {
		enabled = 1
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO signal_configs (
			id, tenant_id, name, description, version, category,
			expression, points, reason, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			version = excluded.version,
			category = excluded.category,
			expression = excluded.expression,
			points = excluded.points,
			reason = excluded.reason,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		sig.ID, tenantID, sig.Name, sig.Description, sig.Version,
		string(sig.Category), sig.Expression, sig.Points, sig.Reason,
		enabled, now, now,
	)
	return err
}

// GetSignalConfig retrieves a signal configuration with tenant isolation.
func (r *SQLRepository) GetSignalConfig(ctx context.Context, tenantID string, sigID string) (*domain.SignalConfig, error) {
	query := `
		SELECT id, tenant_id, name, description, version, category, expression, points, reason, enabled
		FROM signal_configs
		WHERE tenant_id = ? AND id = ?
	`

	var sig domain.SignalConfig
	var category string
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, sigID).Scan(
		&sig.ID, &sig.TenantID, &sig.Name, &sig.Description, &sig.Version,
		&category, &sig.Expression, &sig.Points, &sig.Reason, &enabled,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	sig.Category = domain.RiskCategory(category)
	sig.Enabled = enabled == 1
	return &sig, nil
}

// ListSignalConfigs retrieves all enabled signal configurations for a tenant.
func (r *SQLRepository) ListSignalConfigs(ctx context.Context, tenantID string) ([]*domain.SignalConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, category, expression, points, reason, enabled
		FROM signal_configs
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.SignalConfig
	for rows.Next() {
		var sig domain.SignalConfig
		var category string
		var enabled int

		if err := rows.Scan(
			&sig.ID, &sig.TenantID, &sig.Name, &sig.Description, &sig.Version,
			&category, &sig.Expression, &sig.Points, &sig.Reason, &enabled,
		); err != nil {
			return nil, err
		}
		sig.Category = domain.RiskCategory(category)
		sig.Enabled = enabled == 1
		configs = append(configs, &sig)
	}

	return configs, rows.Err()
}

// DeleteSignalConfig soft-deletes a signal by setting enabled = 0.
func (r *SQLRepository) DeleteSignalConfig(ctx context.Context, tenantID string, sigID string) error {
	query := `
		UPDATE signal_configs
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, sigID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
