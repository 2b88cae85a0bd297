package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/repository"
)

func validUpload() *UploadInput {
	return &UploadInput{
		Customers: []CustomerInput{
			{
				CustomerID:      "CUST-001",
				Name:            "Viktor Petrov",
				AccountNumber:   "ACC-78234",
				RiskLevel:       "HIGH",
				Country:         "Russia",
				AccountOpenDate: "2022-03-01",
			},
		},
		Transactions: []TransactionInput{
			{
				CustomerID:          "CUST-001",
				TransactionID:       "TXN-001",
				Amount:              "11500.00",
				Currency:            "usd",
				TransactionType:     "wire",
				Direction:           "outbound",
				Counterparty:        "Global Trade LLC",
				CounterpartyCountry: "Iran",
				TransactionDate:     "2024-03-15T10:00:00Z",
			},
		},
		Alerts: []AlertInput{
			{
				TransactionID: "TXN-001",
				RuleName:      domain.RuleHighRiskJurisdiction,
				RiskScore:     25,
				TriggeredAt:   "2024-03-15T11:00:00Z",
			},
		},
	}
}

func TestUpload(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	result, err := svc.Upload(ctx, validUpload())
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if result.CustomersCreated != 1 || result.TransactionsCreated != 1 || result.AlertsCreated != 1 {
		t.Errorf("unexpected counts: %+v", result)
	}

	customers, err := repo.ListCustomers(ctx)
	if err != nil {
		t.Fatalf("ListCustomers failed: %v", err)
	}
	if len(customers) != 1 {
		t.Fatalf("expected 1 customer, got %d", len(customers))
	}
	customer := customers[0]
	if customer.RiskLevel != domain.RiskLevelHigh {
		t.Errorf("risk level not normalized: %s", customer.RiskLevel)
	}
	if customer.AccountOpened == nil {
		t.Error("account open date not parsed")
	}

	transactions, err := repo.ListTransactions(ctx, customer.ID)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(transactions))
	}
	tx := transactions[0]
	if !tx.Amount.Equal(decimal.RequireFromString("11500.00")) {
		t.Errorf("amount mismatch: %s", tx.Amount)
	}
	if tx.Currency != "USD" {
		t.Errorf("currency not normalized: %s", tx.Currency)
	}
	if tx.CustomerID != customer.ID {
		t.Errorf("institution reference not resolved to entity ID")
	}

	alerts, err := repo.ListAlerts(ctx, customer.ID)
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].TransactionID != tx.ID {
		t.Errorf("alert transaction reference not resolved")
	}
}

func TestUploadValidationFieldNames(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name      string
		mutate    func(*UploadInput)
		wantField string
	}{
		{"MissingCustomerName", func(u *UploadInput) { u.Customers[0].Name = "" }, "customers[0].name"},
		{"BadRiskLevel", func(u *UploadInput) { u.Customers[0].RiskLevel = "critical" }, "customers[0].riskLevel"},
		{"BadAmount", func(u *UploadInput) { u.Transactions[0].Amount = "12,5" }, "transactions[0].amount"},
		{"NegativeAmount", func(u *UploadInput) { u.Transactions[0].Amount = "-5" }, "transactions[0].amount"},
		{"BadDirection", func(u *UploadInput) { u.Transactions[0].Direction = "sideways" }, "transactions[0].direction"},
		{"BadDate", func(u *UploadInput) { u.Transactions[0].TransactionDate = "yesterday" }, "transactions[0].transactionDate"},
		{"UnknownCustomerRef", func(u *UploadInput) { u.Transactions[0].CustomerID = "CUST-999" }, "transactions[0].customerId"},
		{"UnknownTransactionRef", func(u *UploadInput) { u.Alerts[0].TransactionID = "TXN-999" }, "alerts[0].transactionId"},
		{"MissingRuleName", func(u *UploadInput) { u.Alerts[0].RuleName = "" }, "alerts[0].ruleName"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validUpload()
			tt.mutate(input)

			_, err := svc.Upload(ctx, input)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got: %v", err)
			}

			var vErr *domain.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got: %v", err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("expected field %s, got %s", tt.wantField, vErr.Field)
			}
		})
	}
}

func TestUploadRejectsWholePayload(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	input := validUpload()
	input.Alerts[0].TransactionID = "TXN-999"

	if _, err := svc.Upload(ctx, input); err == nil {
		t.Fatal("expected validation failure")
	}

	// The valid customer and transaction must not survive a failed upload.
	customers, err := repo.ListCustomers(ctx)
	if err != nil {
		t.Fatalf("ListCustomers failed: %v", err)
	}
	if len(customers) != 0 {
		t.Errorf("expected no customers after rejected upload, got %d", len(customers))
	}
}

func TestUploadResolvesStoredReferences(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	if _, err := svc.Upload(ctx, validUpload()); err != nil {
		t.Fatalf("first upload failed: %v", err)
	}

	// Second payload references the first upload's customer and transaction
	// by institution reference only.
	second := &UploadInput{
		Transactions: []TransactionInput{
			{
				CustomerID:      "CUST-001",
				TransactionID:   "TXN-002",
				Amount:          "200.00",
				TransactionType: "card",
				Direction:       "outbound",
				TransactionDate: "2024-03-16",
			},
		},
		Alerts: []AlertInput{
			{TransactionID: "TXN-001", RuleName: domain.RuleLargeTransaction, RiskScore: 10},
		},
	}
	if _, err := svc.Upload(ctx, second); err != nil {
		t.Fatalf("second upload failed: %v", err)
	}

	customers, _ := repo.ListCustomers(ctx)
	transactions, err := repo.ListTransactions(ctx, customers[0].ID)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(transactions) != 2 {
		t.Errorf("expected 2 transactions for customer, got %d", len(transactions))
	}

	alerts, _ := repo.ListAlerts(ctx, customers[0].ID)
	if len(alerts) != 2 {
		t.Errorf("expected 2 alerts for customer, got %d", len(alerts))
	}
}

func TestParseCustomersCSV(t *testing.T) {
	csvBody := `customerId,name,accountNumber,riskLevel,countryOfResidence,occupation,accountOpenDate
CUST-001,Viktor Petrov,ACC-78234,high,Russia,Business Owner,2022-03-01
CUST-002,Sarah Mitchell,ACC-10021,low,USA,Accountant,
`

	input, err := ParseCSV(strings.NewReader(csvBody), CSVKindCustomers)
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}

	if len(input.Customers) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(input.Customers))
	}
	if input.Customers[0].Name != "Viktor Petrov" {
		t.Errorf("unexpected name: %s", input.Customers[0].Name)
	}
	if input.Customers[1].AccountOpenDate != "" {
		t.Errorf("expected blank open date, got %q", input.Customers[1].AccountOpenDate)
	}
}

func TestParseTransactionsCSV(t *testing.T) {
	csvBody := `transactionId,customerId,amount,currency,transactionType,direction,counterpartyCountry,transactionDate
TXN-001,CUST-001,11500.00,USD,wire,outbound,Iran,2024-03-15
`

	input, err := ParseCSV(strings.NewReader(csvBody), CSVKindTransactions)
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}

	if len(input.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(input.Transactions))
	}
	tx := input.Transactions[0]
	if tx.Amount.String() != "11500.00" {
		t.Errorf("unexpected amount: %s", tx.Amount)
	}
	if tx.CounterpartyCountry != "Iran" {
		t.Errorf("unexpected counterparty country: %s", tx.CounterpartyCountry)
	}
}

func TestParseCSVUnknownKind(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("a,b\n1,2\n"), "alerts")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got: %v", err)
	}
}

func TestParseCSVEmpty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""), CSVKindCustomers)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty file, got: %v", err)
	}
}

func TestUploadInvalidatesRiskScores(t *testing.T) {
	repo := repository.NewMemoryRepository()
	cache := &recordingCache{}
	svc := NewService(repo, cache, nil)
	ctx := context.Background()

	if _, err := svc.Upload(ctx, validUpload()); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	customers, _ := repo.ListCustomers(ctx)
	if len(cache.invalidated) != 1 || cache.invalidated[0] != customers[0].ID {
		t.Errorf("expected invalidation for %s, got %v", customers[0].ID, cache.invalidated)
	}
}

type recordingCache struct {
	domain.Cache
	invalidated []string
}

func (c *recordingCache) InvalidateRiskScore(ctx context.Context, customerID string) error {
	c.invalidated = append(c.invalidated, customerID)
	return nil
}
