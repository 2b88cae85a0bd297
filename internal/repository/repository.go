// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/harrier/internal/domain"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// every query method works identically inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB // nil when this instance wraps an open transaction
	q      querier
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	if cfg.Driver == "memory" {
		return NewMemoryRepository(), nil
	}

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
		q:      db,
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

// RunInTx executes fn inside a single database transaction. Nested calls
// reuse the ambient transaction.
func (r *SQLRepository) RunInTx(ctx context.Context, fn func(domain.Repository) error) error {
	if r.db == nil {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txRepo := &SQLRepository{q: tx, driver: r.driver}
	if err := fn(txRepo); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateCustomer stores a customer record.
func (r *SQLRepository) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	query := `
		INSERT INTO customers (
			id, customer_id, name, account_number, risk_level,
			country, occupation, account_opened, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var accountOpened any
	if c.AccountOpened != nil {
		accountOpened = *c.AccountOpened
	}

	_, err := r.q.ExecContext(ctx, r.rebind(query),
		c.ID, c.CustomerID, c.Name, c.AccountNumber, c.RiskLevel,
		c.Country, c.Occupation, accountOpened, c.CreatedAt,
	)
	return err
}

// CreateCustomers stores a batch of customers.
func (r *SQLRepository) CreateCustomers(ctx context.Context, cs []*domain.Customer) error {
	for _, c := range cs {
		if err := r.CreateCustomer(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

const customerColumns = `id, customer_id, name, account_number, risk_level,
	country, occupation, account_opened, created_at`

func scanCustomer(row interface{ Scan(...any) error }) (*domain.Customer, error) {
	var c domain.Customer
	var accountOpened sql.NullTime

	err := row.Scan(
		&c.ID, &c.CustomerID, &c.Name, &c.AccountNumber, &c.RiskLevel,
		&c.Country, &c.Occupation, &accountOpened, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if accountOpened.Valid {
		t := accountOpened.Time
		c.AccountOpened = &t
	}
	return &c, nil
}

// GetCustomer retrieves a customer by ID.
func (r *SQLRepository) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = ?`

	c, err := scanCustomer(r.q.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListCustomers retrieves all customers, oldest first.
func (r *SQLRepository) ListCustomers(ctx context.Context) ([]*domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers ORDER BY created_at, id`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []*domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// CreateTransactions stores a batch of transactions.
func (r *SQLRepository) CreateTransactions(ctx context.Context, txs []*domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, customer_id, transaction_id, amount, currency, tx_type,
			direction, counterparty, counterparty_country, description,
			timestamp, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	query = r.rebind(query)

	for _, tx := range txs {
		_, err := r.q.ExecContext(ctx, query,
			tx.ID, tx.CustomerID, tx.TransactionID, tx.Amount.String(),
			tx.Currency, tx.Type, tx.Direction, tx.Counterparty,
			tx.CounterpartyCountry, tx.Description, tx.Timestamp, tx.CreatedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

const transactionColumns = `id, customer_id, transaction_id, amount, currency,
	tx_type, direction, counterparty, counterparty_country, description,
	timestamp, created_at`

func scanTransaction(row interface{ Scan(...any) error }) (*domain.Transaction, error) {
	var tx domain.Transaction
	var amount string

	err := row.Scan(
		&tx.ID, &tx.CustomerID, &tx.TransactionID, &amount, &tx.Currency,
		&tx.Type, &tx.Direction, &tx.Counterparty, &tx.CounterpartyCountry,
		&tx.Description, &tx.Timestamp, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}
	return &tx, nil
}

// GetTransaction retrieves a transaction by ID.
func (r *SQLRepository) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

	tx, err := scanTransaction(r.q.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// ListTransactions retrieves a customer's transactions ordered by timestamp.
func (r *SQLRepository) ListTransactions(ctx context.Context, customerID string) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE customer_id = ?
		ORDER BY timestamp, id
	`

	rows, err := r.q.QueryContext(ctx, r.rebind(query), customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// CreateAlerts stores a batch of alerts.
func (r *SQLRepository) CreateAlerts(ctx context.Context, alerts []*domain.Alert) error {
	query := `
		INSERT INTO alerts (
			id, transaction_id, rule_name, rule_description, risk_score, triggered_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`
	query = r.rebind(query)

	for _, a := range alerts {
		_, err := r.q.ExecContext(ctx, query,
			a.ID, a.TransactionID, a.RuleName, a.RuleDescription,
			a.RiskScore, a.TriggeredAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

const alertColumns = `a.id, a.transaction_id, a.rule_name, a.rule_description,
	a.risk_score, a.triggered_at`

// ListAlerts retrieves all alerts attached to a customer's transactions.
func (r *SQLRepository) ListAlerts(ctx context.Context, customerID string) ([]*domain.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts a
		JOIN transactions t ON t.id = a.transaction_id
		WHERE t.customer_id = ?
		ORDER BY a.triggered_at, a.id
	`

	return r.queryAlerts(ctx, r.rebind(query), customerID)
}

// ListAlertsByTransactions retrieves alerts for the given transaction IDs.
func (r *SQLRepository) ListAlertsByTransactions(ctx context.Context, txIDs []string) ([]*domain.Alert, error) {
	if len(txIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(txIDs))
	args := make([]any, len(txIDs))
	for i, id := range txIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `
		SELECT ` + alertColumns + `
		FROM alerts a
		WHERE a.transaction_id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY a.triggered_at, a.id
	`

	return r.queryAlerts(ctx, r.rebind(query), args...)
}

func (r *SQLRepository) queryAlerts(ctx context.Context, query string, args ...any) ([]*domain.Alert, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		var a domain.Alert
		if err := rows.Scan(
			&a.ID, &a.TransactionID, &a.RuleName, &a.RuleDescription,
			&a.RiskScore, &a.TriggeredAt,
		); err != nil {
			return nil, err
		}
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

// CreateSar stores a new SAR.
func (r *SQLRepository) CreateSar(ctx context.Context, sar *domain.Sar) error {
	query := `
		INSERT INTO sars (
			id, customer_id, title, status, version, generated_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.q.ExecContext(ctx, r.rebind(query),
		sar.ID, sar.CustomerID, sar.Title, sar.Status, sar.Version,
		sar.GeneratedBy, sar.CreatedAt, sar.UpdatedAt,
	)
	return err
}

const sarColumns = `id, customer_id, title, status, version, generated_by,
	created_at, updated_at`

func scanSar(row interface{ Scan(...any) error }) (*domain.Sar, error) {
	var s domain.Sar
	err := row.Scan(
		&s.ID, &s.CustomerID, &s.Title, &s.Status, &s.Version,
		&s.GeneratedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSar retrieves a SAR by ID.
func (r *SQLRepository) GetSar(ctx context.Context, id string) (*domain.Sar, error) {
	query := `SELECT ` + sarColumns + ` FROM sars WHERE id = ?`

	s, err := scanSar(r.q.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListSars retrieves all SARs, newest first.
func (r *SQLRepository) ListSars(ctx context.Context) ([]*domain.Sar, error) {
	query := `SELECT ` + sarColumns + ` FROM sars ORDER BY created_at DESC, id`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sars []*domain.Sar
	for rows.Next() {
		s, err := scanSar(rows)
		if err != nil {
			return nil, err
		}
		sars = append(sars, s)
	}
	return sars, rows.Err()
}

// UpdateSar updates a SAR's mutable fields.
func (r *SQLRepository) UpdateSar(ctx context.Context, sar *domain.Sar) error {
	query := `
		UPDATE sars
		SET title = ?, status = ?, version = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.q.ExecContext(ctx, r.rebind(query),
		sar.Title, sar.Status, sar.Version, sar.UpdatedAt, sar.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// CreateSarSection stores a narrative section.
func (r *SQLRepository) CreateSarSection(ctx context.Context, s *domain.SarSection) error {
	query := `
		INSERT INTO sar_sections (
			id, sar_id, section_type, content, confidence_level, sequence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.q.ExecContext(ctx, r.rebind(query),
		s.ID, s.SarID, s.SectionType, s.Content, s.ConfidenceLevel,
		s.Sequence, s.CreatedAt,
	)
	return err
}

const sectionColumns = `id, sar_id, section_type, content, confidence_level,
	sequence, created_at`

func scanSection(row interface{ Scan(...any) error }) (*domain.SarSection, error) {
	var s domain.SarSection
	err := row.Scan(
		&s.ID, &s.SarID, &s.SectionType, &s.Content, &s.ConfidenceLevel,
		&s.Sequence, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSarSection retrieves a section by ID.
func (r *SQLRepository) GetSarSection(ctx context.Context, id string) (*domain.SarSection, error) {
	query := `SELECT ` + sectionColumns + ` FROM sar_sections WHERE id = ?`

	s, err := scanSection(r.q.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListSarSections retrieves a SAR's sections in display order.
func (r *SQLRepository) ListSarSections(ctx context.Context, sarID string) ([]*domain.SarSection, error) {
	query := `
		SELECT ` + sectionColumns + `
		FROM sar_sections
		WHERE sar_id = ?
		ORDER BY sequence
	`

	rows, err := r.q.QueryContext(ctx, r.rebind(query), sarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []*domain.SarSection
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

// UpdateSarSection updates a section's content and confidence.
func (r *SQLRepository) UpdateSarSection(ctx context.Context, s *domain.SarSection) error {
	query := `
		UPDATE sar_sections
		SET content = ?, confidence_level = ?
		WHERE id = ?
	`

	result, err := r.q.ExecContext(ctx, r.rebind(query),
		s.Content, s.ConfidenceLevel, s.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// CreateSarSentence stores a sentence with its evidence links.
func (r *SQLRepository) CreateSarSentence(ctx context.Context, s *domain.SarSentence) error {
	txIDs, _ := json.Marshal(s.SupportingTransactionIDs)
	rules, _ := json.Marshal(s.SupportingRules)

	query := `
		INSERT INTO sar_sentences (
			id, section_id, sentence_text, confidence_level,
			supporting_transaction_ids, supporting_rules, sequence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.q.ExecContext(ctx, r.rebind(query),
		s.ID, s.SectionID, s.Text, s.ConfidenceLevel,
		string(txIDs), string(rules), s.Sequence, s.CreatedAt,
	)
	return err
}

const sentenceColumns = `id, section_id, sentence_text, confidence_level,
	supporting_transaction_ids, supporting_rules, sequence, created_at`

func scanSentence(row interface{ Scan(...any) error }) (*domain.SarSentence, error) {
	var s domain.SarSentence
	var txIDs, rules string

	err := row.Scan(
		&s.ID, &s.SectionID, &s.Text, &s.ConfidenceLevel,
		&txIDs, &rules, &s.Sequence, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(txIDs), &s.SupportingTransactionIDs); err != nil {
		return nil, fmt.Errorf("failed to parse supporting transaction ids: %w", err)
	}
	if err := json.Unmarshal([]byte(rules), &s.SupportingRules); err != nil {
		return nil, fmt.Errorf("failed to parse supporting rules: %w", err)
	}
	return &s, nil
}

// GetSarSentence retrieves a sentence by ID.
func (r *SQLRepository) GetSarSentence(ctx context.Context, id string) (*domain.SarSentence, error) {
	query := `SELECT ` + sentenceColumns + ` FROM sar_sentences WHERE id = ?`

	s, err := scanSentence(r.q.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListSarSentences retrieves a section's sentences in order.
func (r *SQLRepository) ListSarSentences(ctx context.Context, sectionID string) ([]*domain.SarSentence, error) {
	query := `
		SELECT ` + sentenceColumns + `
		FROM sar_sentences
		WHERE section_id = ?
		ORDER BY sequence
	`

	rows, err := r.q.QueryContext(ctx, r.rebind(query), sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sentences []*domain.SarSentence
	for rows.Next() {
		s, err := scanSentence(rows)
		if err != nil {
			return nil, err
		}
		sentences = append(sentences, s)
	}
	return sentences, rows.Err()
}

// CreateAuditLog appends an audit entry.
func (r *SQLRepository) CreateAuditLog(ctx context.Context, log *domain.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, sar_id, user_id, action, field_changed, old_value, new_value, reason, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.q.ExecContext(ctx, r.rebind(query),
		log.ID, log.SarID, log.UserID, log.Action, log.FieldChanged,
		log.OldValue, log.NewValue, log.Reason, log.Timestamp,
	)
	return err
}

// ListAuditLogs retrieves a SAR's audit entries, newest first.
func (r *SQLRepository) ListAuditLogs(ctx context.Context, sarID string) ([]*domain.AuditLog, error) {
	query := `
		SELECT id, sar_id, user_id, action, field_changed, old_value, new_value, reason, timestamp
		FROM audit_logs
		WHERE sar_id = ?
		ORDER BY timestamp DESC, id DESC
	`

	rows, err := r.q.QueryContext(ctx, r.rebind(query), sarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*domain.AuditLog
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(
			&l.ID, &l.SarID, &l.UserID, &l.Action, &l.FieldChanged,
			&l.OldValue, &l.NewValue, &l.Reason, &l.Timestamp,
		); err != nil {
			return nil, err
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

// CreateSarVersion appends a version snapshot.
func (r *SQLRepository) CreateSarVersion(ctx context.Context, v *domain.SarVersion) error {
	snapshot, err := json.Marshal(v.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	query := `
		INSERT INTO sar_versions (
			id, sar_id, version_number, snapshot, created_at
		) VALUES (?, ?, ?, ?, ?)
	`

	_, err = r.q.ExecContext(ctx, r.rebind(query),
		v.ID, v.SarID, v.VersionNumber, string(snapshot), v.CreatedAt,
	)
	return err
}

// ListSarVersions retrieves a SAR's version snapshots, newest first.
func (r *SQLRepository) ListSarVersions(ctx context.Context, sarID string) ([]*domain.SarVersion, error) {
	query := `
		SELECT id, sar_id, version_number, snapshot, created_at
		FROM sar_versions
		WHERE sar_id = ?
		ORDER BY version_number DESC
	`

	rows, err := r.q.QueryContext(ctx, r.rebind(query), sarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*domain.SarVersion
	for rows.Next() {
		var v domain.SarVersion
		var snapshot string

		if err := rows.Scan(&v.ID, &v.SarID, &v.VersionNumber, &snapshot, &v.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(snapshot), &v.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to parse snapshot for version %d: %w", v.VersionNumber, err)
		}
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
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
