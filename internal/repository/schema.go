package repository

// Schema definitions for the Harrier database.
// Compatible with both SQLite and PostgreSQL.

// Transactions keep the identity and query columns relational; the long tail
// of optional risk-signal fields travels as a JSON payload.
const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    order_amount REAL NOT NULL,
    currency TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL,
    payload TEXT NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_transactions_tenant ON transactions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(tenant_id, user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(tenant_id, timestamp);
`

const schemaDecisions = `
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    transaction_id TEXT NOT NULL,
    decision TEXT NOT NULL,
    legitimacy_score REAL NOT NULL,
    decision_maker TEXT NOT NULL,
    reasoning TEXT NOT NULL,
    risk_assessment TEXT,
    model_prediction TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_tenant ON decisions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_decisions_tx ON decisions(tenant_id, transaction_id);
CREATE INDEX IF NOT EXISTS idx_decisions_maker ON decisions(tenant_id, decision_maker);
CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(tenant_id, created_at);
`

const schemaSignalConfigs = `
CREATE TABLE IF NOT EXISTS signal_configs (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT,
    category TEXT NOT NULL,
    expression TEXT NOT NULL,
    points REAL NOT NULL,
    reason TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_signal_configs_tenant ON signal_configs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_signal_configs_enabled ON signal_configs(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaDecisions,
		schemaSignalConfigs,
	}
}
