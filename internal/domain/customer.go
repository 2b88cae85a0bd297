package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a bank customer under review. Created once at ingestion and
// never mutated afterwards.
type Customer struct {
	ID            string     `json:"id"`
	CustomerID    string     `json:"customerId"` // institution-assigned reference, e.g. "CUST-001"
	Name          string     `json:"name"`
	AccountNumber string     `json:"accountNumber"`
	RiskLevel     string     `json:"riskLevel"` // "high", "medium", "low"
	Country       string     `json:"countryOfResidence,omitempty"`
	Occupation    string     `json:"occupation,omitempty"`
	AccountOpened *time.Time `json:"accountOpenDate,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Customer risk classification values.
const (
	RiskLevelHigh   = "high"
	RiskLevelMedium = "medium"
	RiskLevelLow    = "low"
)

// Transaction direction values.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Transaction is a single movement of funds belonging to one customer.
// Amounts are exact decimals; threshold comparisons must never go through
// floating point.
type Transaction struct {
	ID                  string          `json:"id"`
	CustomerID          string          `json:"customerId"`
	TransactionID       string          `json:"transactionId"` // institution-assigned reference, e.g. "TXN-001"
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency"`
	Type                string          `json:"transactionType"`
	Direction           string          `json:"direction"`
	Counterparty        string          `json:"counterparty,omitempty"`
	CounterpartyCountry string          `json:"counterpartyCountry,omitempty"`
	Description         string          `json:"description,omitempty"`
	Timestamp           time.Time       `json:"transactionDate"`
	CreatedAt           time.Time       `json:"createdAt"`
}

// Alert is a pre-computed risk hit attached to one transaction, uploaded at
// ingestion time. Rules the engine triggers at scoring time are transient
// results and are never reconciled against these rows.
type Alert struct {
	ID              string    `json:"id"`
	TransactionID   string    `json:"transactionId"`
	RuleName        string    `json:"ruleName"`
	RuleDescription string    `json:"ruleDescription,omitempty"`
	RiskScore       int       `json:"riskScore"`
	TriggeredAt     time.Time `json:"triggeredAt"`
}
