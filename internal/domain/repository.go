// Package domain defines the core entities and interfaces for Harrier.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// Implementations return ErrNotFound when a referenced id does not resolve.
type Repository interface {
	// Customer operations
	CreateCustomer(ctx context.Context, c *Customer) error
	CreateCustomers(ctx context.Context, cs []*Customer) error
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	ListCustomers(ctx context.Context) ([]*Customer, error)

	// Transaction operations
	CreateTransactions(ctx context.Context, txs []*Transaction) error
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	ListTransactions(ctx context.Context, customerID string) ([]*Transaction, error)

	// Alert operations
	CreateAlerts(ctx context.Context, alerts []*Alert) error
	ListAlerts(ctx context.Context, customerID string) ([]*Alert, error)
	ListAlertsByTransactions(ctx context.Context, txIDs []string) ([]*Alert, error)

	// SAR operations
	CreateSar(ctx context.Context, sar *Sar) error
	GetSar(ctx context.Context, id string) (*Sar, error)
	ListSars(ctx context.Context) ([]*Sar, error)
	UpdateSar(ctx context.Context, sar *Sar) error

	// Section operations
	CreateSarSection(ctx context.Context, s *SarSection) error
	GetSarSection(ctx context.Context, id string) (*SarSection, error)
	ListSarSections(ctx context.Context, sarID string) ([]*SarSection, error)
	UpdateSarSection(ctx context.Context, s *SarSection) error

	// Sentence operations (immutable once created)
	CreateSarSentence(ctx context.Context, s *SarSentence) error
	GetSarSentence(ctx context.Context, id string) (*SarSentence, error)
	ListSarSentences(ctx context.Context, sectionID string) ([]*SarSentence, error)

	// Audit log operations (append-only, listed newest first)
	CreateAuditLog(ctx context.Context, log *AuditLog) error
	ListAuditLogs(ctx context.Context, sarID string) ([]*AuditLog, error)

	// Version snapshot operations (append-only, listed newest first)
	CreateSarVersion(ctx context.Context, v *SarVersion) error
	ListSarVersions(ctx context.Context, sarID string) ([]*SarVersion, error)

	// RunInTx executes fn against a transactional view of the repository.
	// All writes made through the passed Repository commit together or not
	// at all. The generate and edit flows depend on this guarantee.
	RunInTx(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite", "postgres" or "memory"
	Driver string `yaml:"driver"`

	// SQLite specific
	SQLitePath string `yaml:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `yaml:"postgresHost"`
	PostgresPort     int    `yaml:"postgresPort"`
	PostgresUser     string `yaml:"postgresUser"`
	PostgresPassword string `yaml:"postgresPassword"`
	PostgresDB       string `yaml:"postgresDb"`
	PostgresSSLMode  string `yaml:"postgresSslMode"`

	// Connection pool settings
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}
