package repository

// Schema definitions for the churnguard prediction audit store.
// Compatible with both SQLite and PostgreSQL.

const schemaPredictions = `
CREATE TABLE IF NOT EXISTS predictions (
    id TEXT PRIMARY KEY,
    trace_id TEXT,
    tenure_months INTEGER NOT NULL,
    contract_type TEXT NOT NULL,
    monthly_charges REAL NOT NULL,
    payment_method TEXT NOT NULL,
    support_ticket_count INTEGER NOT NULL,
    avg_call_minutes REAL NOT NULL,
    avg_data_usage_gb REAL NOT NULL,
    probability REAL NOT NULL,
    risk_tier TEXT NOT NULL,
    action TEXT NOT NULL,
    decision INTEGER NOT NULL,
    threshold REAL NOT NULL,
    model_name TEXT NOT NULL,
    model_version TEXT NOT NULL,
    cached INTEGER NOT NULL DEFAULT 0,
    latency_ms INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_predictions_created ON predictions(created_at);
CREATE INDEX IF NOT EXISTS idx_predictions_tier ON predictions(risk_tier, created_at);
`

// AllSchemas returns all schema definitions in order.
func AllSchemas() []string {
	return []string{
		schemaPredictions,
	}
}
