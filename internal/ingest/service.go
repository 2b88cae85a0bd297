// Package ingest loads customer, transaction and alert data in bulk, from
// JSON payloads or CSV files, validating field by field before anything is
// written.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opensource-finance/harrier/internal/domain"
)

// UploadInput is the bulk upload payload. All three collections are
// optional; references between them may use either entity IDs or
// institution-assigned references, including records created in the same
// payload.
type UploadInput struct {
	Customers    []CustomerInput    `json:"customers"`
	Transactions []TransactionInput `json:"transactions"`
	Alerts       []AlertInput       `json:"alerts"`
}

// CustomerInput is one customer row of an upload.
type CustomerInput struct {
	CustomerID      string `json:"customerId"`
	Name            string `json:"name"`
	AccountNumber   string `json:"accountNumber"`
	RiskLevel       string `json:"riskLevel"`
	Country         string `json:"countryOfResidence"`
	Occupation      string `json:"occupation"`
	AccountOpenDate string `json:"accountOpenDate"`
}

// TransactionInput is one transaction row of an upload. CustomerID may be an
// entity ID or the institution reference ("CUST-001").
type TransactionInput struct {
	CustomerID          string      `json:"customerId"`
	TransactionID       string      `json:"transactionId"`
	Amount              json.Number `json:"amount"`
	Currency            string      `json:"currency"`
	TransactionType     string      `json:"transactionType"`
	Direction           string      `json:"direction"`
	Counterparty        string      `json:"counterparty"`
	CounterpartyCountry string      `json:"counterpartyCountry"`
	Description         string      `json:"description"`
	TransactionDate     string      `json:"transactionDate"`
}

// AlertInput is one alert row of an upload. TransactionID may be an entity
// ID or the institution reference ("TXN-001").
type AlertInput struct {
	TransactionID   string `json:"transactionId"`
	RuleName        string `json:"ruleName"`
	RuleDescription string `json:"ruleDescription"`
	RiskScore       int    `json:"riskScore"`
	TriggeredAt     string `json:"triggeredAt"`
}

// UploadResult reports how many rows each collection gained.
type UploadResult struct {
	CustomersCreated    int `json:"customersCreated"`
	TransactionsCreated int `json:"transactionsCreated"`
	AlertsCreated       int `json:"alertsCreated"`
}

// Service performs bulk ingestion. Cache is optional; when present, cached
// risk scores for customers receiving new data are invalidated after commit.
type Service struct {
	repo   domain.Repository
	cache  domain.Cache
	logger *slog.Logger
}

// NewService creates the ingestion service.
func NewService(repo domain.Repository, cache domain.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Upload validates and persists the payload in one repository transaction.
// Any field-level failure rejects the whole payload.
func (s *Service) Upload(ctx context.Context, input *UploadInput) (*UploadResult, error) {
	now := time.Now().UTC()

	customers := make([]*domain.Customer, 0, len(input.Customers))
	for i, in := range input.Customers {
		c, err := buildCustomer(in, i, now)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}

	// Reference index over this payload's customers; existing customers are
	// resolved lazily against the repository inside the transaction.
	customerRefs := make(map[string]string, len(customers)*2)
	for _, c := range customers {
		customerRefs[c.ID] = c.ID
		customerRefs[c.CustomerID] = c.ID
	}

	result := &UploadResult{}
	affected := make(map[string]bool)

	err := s.repo.RunInTx(ctx, func(tx domain.Repository) error {
		if len(customers) > 0 {
			if err := tx.CreateCustomers(ctx, customers); err != nil {
				return err
			}
			result.CustomersCreated = len(customers)
		}

		txRefs := make(map[string]string)
		transactions := make([]*domain.Transaction, 0, len(input.Transactions))
		for i, in := range input.Transactions {
			record, err := buildTransaction(in, i, now)
			if err != nil {
				return err
			}

			customerID, err := resolveCustomer(ctx, tx, customerRefs, in.CustomerID)
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NewValidationError(
					fmt.Sprintf("transactions[%d].customerId", i),
					fmt.Sprintf("unknown customer %q", in.CustomerID))
			}
			if err != nil {
				return err
			}
			record.CustomerID = customerID

			txRefs[record.ID] = record.ID
			txRefs[record.TransactionID] = record.ID
			affected[customerID] = true
			transactions = append(transactions, record)
		}
		if len(transactions) > 0 {
			if err := tx.CreateTransactions(ctx, transactions); err != nil {
				return err
			}
			result.TransactionsCreated = len(transactions)
		}

		alerts := make([]*domain.Alert, 0, len(input.Alerts))
		for i, in := range input.Alerts {
			record, err := buildAlert(in, i, now)
			if err != nil {
				return err
			}

			txID, customerID, err := resolveTransaction(ctx, tx, txRefs, in.TransactionID)
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NewValidationError(
					fmt.Sprintf("alerts[%d].transactionId", i),
					fmt.Sprintf("unknown transaction %q", in.TransactionID))
			}
			if err != nil {
				return err
			}
			record.TransactionID = txID
			if customerID != "" {
				affected[customerID] = true
			}
			alerts = append(alerts, record)
		}
		if len(alerts) > 0 {
			if err := tx.CreateAlerts(ctx, alerts); err != nil {
				return err
			}
			result.AlertsCreated = len(alerts)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, affected)

	s.logger.Info("data uploaded",
		"customers", result.CustomersCreated,
		"transactions", result.TransactionsCreated,
		"alerts", result.AlertsCreated)

	return result, nil
}

func (s *Service) invalidate(ctx context.Context, customerIDs map[string]bool) {
	if s.cache == nil {
		return
	}
	for id := range customerIDs {
		if err := s.cache.InvalidateRiskScore(ctx, id); err != nil {
			s.logger.Warn("risk score invalidation failed", "customerId", id, "error", err)
		}
	}
}

func buildCustomer(in CustomerInput, idx int, now time.Time) (*domain.Customer, error) {
	field := func(name string) string { return fmt.Sprintf("customers[%d].%s", idx, name) }

	if strings.TrimSpace(in.CustomerID) == "" {
		return nil, domain.NewValidationError(field("customerId"), "customerId is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, domain.NewValidationError(field("name"), "name is required")
	}
	if strings.TrimSpace(in.AccountNumber) == "" {
		return nil, domain.NewValidationError(field("accountNumber"), "accountNumber is required")
	}

	riskLevel := strings.ToLower(strings.TrimSpace(in.RiskLevel))
	switch riskLevel {
	case "":
		riskLevel = domain.RiskLevelLow
	case domain.RiskLevelHigh, domain.RiskLevelMedium, domain.RiskLevelLow:
	default:
		return nil, domain.NewValidationError(field("riskLevel"), "riskLevel must be high, medium or low")
	}

	c := &domain.Customer{
		ID:            uuid.New().String(),
		CustomerID:    in.CustomerID,
		Name:          in.Name,
		AccountNumber: in.AccountNumber,
		RiskLevel:     riskLevel,
		Country:       in.Country,
		Occupation:    in.Occupation,
		CreatedAt:     now,
	}

	if in.AccountOpenDate != "" {
		opened, err := parseTime(in.AccountOpenDate)
		if err != nil {
			return nil, domain.NewValidationError(field("accountOpenDate"), "invalid date")
		}
		c.AccountOpened = &opened
	}

	return c, nil
}

func buildTransaction(in TransactionInput, idx int, now time.Time) (*domain.Transaction, error) {
	field := func(name string) string { return fmt.Sprintf("transactions[%d].%s", idx, name) }

	if strings.TrimSpace(in.TransactionID) == "" {
		return nil, domain.NewValidationError(field("transactionId"), "transactionId is required")
	}
	if strings.TrimSpace(in.CustomerID) == "" {
		return nil, domain.NewValidationError(field("customerId"), "customerId is required")
	}
	if strings.TrimSpace(in.TransactionType) == "" {
		return nil, domain.NewValidationError(field("transactionType"), "transactionType is required")
	}

	direction := strings.ToLower(strings.TrimSpace(in.Direction))
	if direction != domain.DirectionInbound && direction != domain.DirectionOutbound {
		return nil, domain.NewValidationError(field("direction"), "direction must be inbound or outbound")
	}

	amount, err := decimal.NewFromString(in.Amount.String())
	if err != nil {
		return nil, domain.NewValidationError(field("amount"), "invalid amount")
	}
	if amount.IsNegative() {
		return nil, domain.NewValidationError(field("amount"), "amount must not be negative")
	}

	timestamp, err := parseTime(in.TransactionDate)
	if err != nil {
		return nil, domain.NewValidationError(field("transactionDate"), "invalid date")
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "USD"
	}

	return &domain.Transaction{
		ID:                  uuid.New().String(),
		TransactionID:       in.TransactionID,
		Amount:              amount,
		Currency:            currency,
		Type:                in.TransactionType,
		Direction:           direction,
		Counterparty:        in.Counterparty,
		CounterpartyCountry: in.CounterpartyCountry,
		Description:         in.Description,
		Timestamp:           timestamp,
		CreatedAt:           now,
	}, nil
}

func buildAlert(in AlertInput, idx int, now time.Time) (*domain.Alert, error) {
	field := func(name string) string { return fmt.Sprintf("alerts[%d].%s", idx, name) }

	if strings.TrimSpace(in.TransactionID) == "" {
		return nil, domain.NewValidationError(field("transactionId"), "transactionId is required")
	}
	if strings.TrimSpace(in.RuleName) == "" {
		return nil, domain.NewValidationError(field("ruleName"), "ruleName is required")
	}
	if in.RiskScore < 0 {
		return nil, domain.NewValidationError(field("riskScore"), "riskScore must not be negative")
	}

	triggeredAt := now
	if in.TriggeredAt != "" {
		parsed, err := parseTime(in.TriggeredAt)
		if err != nil {
			return nil, domain.NewValidationError(field("triggeredAt"), "invalid date")
		}
		triggeredAt = parsed
	}

	return &domain.Alert{
		ID:              uuid.New().String(),
		RuleName:        in.RuleName,
		RuleDescription: in.RuleDescription,
		RiskScore:       in.RiskScore,
		TriggeredAt:     triggeredAt,
	}, nil
}

// resolveCustomer maps an entity ID or institution reference to an entity
// ID, checking the payload first, then stored customers.
func resolveCustomer(ctx context.Context, repo domain.Repository, refs map[string]string, ref string) (string, error) {
	if id, ok := refs[ref]; ok {
		return id, nil
	}

	if c, err := repo.GetCustomer(ctx, ref); err == nil {
		refs[ref] = c.ID
		return c.ID, nil
	}

	// Fall back to the institution reference.
	customers, err := repo.ListCustomers(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range customers {
		if c.CustomerID == ref {
			refs[ref] = c.ID
			return c.ID, nil
		}
	}
	return "", domain.ErrNotFound
}

// resolveTransaction maps an entity ID or institution reference to the
// transaction's entity ID and owning customer.
func resolveTransaction(ctx context.Context, repo domain.Repository, refs map[string]string, ref string) (string, string, error) {
	if id, ok := refs[ref]; ok {
		if tx, err := repo.GetTransaction(ctx, id); err == nil {
			return tx.ID, tx.CustomerID, nil
		}
		return id, "", nil
	}

	if tx, err := repo.GetTransaction(ctx, ref); err == nil {
		refs[ref] = tx.ID
		return tx.ID, tx.CustomerID, nil
	}

	// Fall back to the institution reference across stored transactions.
	customers, err := repo.ListCustomers(ctx)
	if err != nil {
		return "", "", err
	}
	for _, c := range customers {
		transactions, err := repo.ListTransactions(ctx, c.ID)
		if err != nil {
			return "", "", err
		}
		for _, tx := range transactions {
			if tx.TransactionID == ref {
				refs[ref] = tx.ID
				return tx.ID, tx.CustomerID, nil
			}
		}
	}
	return "", "", domain.ErrNotFound
}

func parseTime(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}
