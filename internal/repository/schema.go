package repository

// Schema definitions for the Harrier database.
// Compatible with both SQLite and PostgreSQL.

const schemaCustomers = `
CREATE TABLE IF NOT EXISTS customers (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    account_number TEXT NOT NULL,
    risk_level TEXT NOT NULL,
    country TEXT NOT NULL DEFAULT '',
    occupation TEXT NOT NULL DEFAULT '',
    account_opened TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_customers_customer_id ON customers(customer_id);
`

// Amount is stored as TEXT so exact decimal values survive the round trip.
const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    transaction_id TEXT NOT NULL,
    amount TEXT NOT NULL,
    currency TEXT NOT NULL,
    tx_type TEXT NOT NULL,
    direction TEXT NOT NULL,
    counterparty TEXT NOT NULL DEFAULT '',
    counterparty_country TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    timestamp TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_customer ON transactions(customer_id);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(customer_id, timestamp);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL,
    rule_name TEXT NOT NULL,
    rule_description TEXT NOT NULL DEFAULT '',
    risk_score INTEGER NOT NULL DEFAULT 0,
    triggered_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_transaction ON alerts(transaction_id);
`

const schemaSars = `
CREATE TABLE IF NOT EXISTS sars (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    title TEXT NOT NULL,
    status TEXT NOT NULL,
    version INTEGER NOT NULL DEFAULT 1,
    generated_by TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sars_customer ON sars(customer_id);
CREATE INDEX IF NOT EXISTS idx_sars_created ON sars(created_at);
`

const schemaSarSections = `
CREATE TABLE IF NOT EXISTS sar_sections (
    id TEXT PRIMARY KEY,
    sar_id TEXT NOT NULL,
    section_type TEXT NOT NULL,
    content TEXT NOT NULL,
    confidence_level TEXT NOT NULL,
    sequence INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sar_sections_sar ON sar_sections(sar_id);
`

// Evidence links are stored as JSON arrays.
const schemaSarSentences = `
CREATE TABLE IF NOT EXISTS sar_sentences (
    id TEXT PRIMARY KEY,
    section_id TEXT NOT NULL,
    sentence_text TEXT NOT NULL,
    confidence_level TEXT NOT NULL,
    supporting_transaction_ids TEXT NOT NULL DEFAULT '[]',
    supporting_rules TEXT NOT NULL DEFAULT '[]',
    sequence INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sar_sentences_section ON sar_sentences(section_id);
`

const schemaAuditLogs = `
CREATE TABLE IF NOT EXISTS audit_logs (
    id TEXT PRIMARY KEY,
    sar_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    action TEXT NOT NULL,
    field_changed TEXT NOT NULL DEFAULT '',
    old_value TEXT NOT NULL DEFAULT '',
    new_value TEXT NOT NULL DEFAULT '',
    reason TEXT NOT NULL DEFAULT '',
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_logs_sar ON audit_logs(sar_id, timestamp);
`

// One snapshot row per version, stored as a single JSON column. The unique
// constraint backs the append-only version counter.
const schemaSarVersions = `
CREATE TABLE IF NOT EXISTS sar_versions (
    id TEXT PRIMARY KEY,
    sar_id TEXT NOT NULL,
    version_number INTEGER NOT NULL,
    snapshot TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    UNIQUE (sar_id, version_number)
);

CREATE INDEX IF NOT EXISTS idx_sar_versions_sar ON sar_versions(sar_id, version_number);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaCustomers,
		schemaTransactions,
		schemaAlerts,
		schemaSars,
		schemaSarSections,
		schemaSarSentences,
		schemaAuditLogs,
		schemaSarVersions,
	}
}
