// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Transaction operations
	SaveTransaction(ctx context.Context, tenantID string, tx *Transaction) error
	GetTransaction(ctx context.Context, tenantID string, txID string) (*Transaction, error)
	CountTransactionsByUser(ctx context.Context, tenantID string, userID string, since time.Time) (int64, error)

	// Decision records
	SaveDecision(ctx context.Context, tenantID string, rec *DecisionRecord) error
	GetDecision(ctx context.Context, tenantID string, decisionID string) (*DecisionRecord, error)
	GetDecisionByTransaction(ctx context.Context, tenantID string, txID string) (*DecisionRecord, error)

	// Custom risk signal configuration
	SaveSignalConfig(ctx context.Context, tenantID string, sig *SignalConfig) error
	GetSignalConfig(ctx context.Context, tenantID string, sigID string) (*SignalConfig, error)
	ListSignalConfigs(ctx context.Context, tenantID string) ([]*SignalConfig, error)
	DeleteSignalConfig(ctx context.Context, tenantID string, sigID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
