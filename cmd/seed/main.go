// Seed tool for loading the demo dataset into a running Harrier instance.
//
// Usage:
//   go run cmd/seed/main.go -url http://localhost:8080
//
// Posts two customers, nine transactions and nine alerts through
// POST /api/data/upload. Alerts reference transactions by their
// institution-assigned IDs, so the whole payload goes in one request.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/opensource-finance/harrier/internal/ingest"
)

func main() {
	url := flag.String("url", "http://localhost:8080", "Harrier base URL")
	flag.Parse()

	payload := demoDataset()

	data, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal payload: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(*url+"/api/data/upload", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Fprintf(os.Stderr, "upload failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		var errBody map[string]string
		json.NewDecoder(resp.Body).Decode(&errBody)
		fmt.Fprintf(os.Stderr, "upload rejected with status %d: %s\n", resp.StatusCode, errBody["message"])
		os.Exit(1)
	}

	var result ingest.UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Seeded %d customers, %d transactions, %d alerts\n",
		result.CustomersCreated, result.TransactionsCreated, result.AlertsCreated)
}

func demoDataset() *ingest.UploadInput {
	return &ingest.UploadInput{
		Customers: []ingest.CustomerInput{
			{
				CustomerID:      "CUST-001",
				Name:            "John Mitchell",
				AccountNumber:   "ACC-7821-9034",
				RiskLevel:       "high",
				Country:         "United States",
				Occupation:      "Import/Export Business Owner",
				AccountOpenDate: "2022-03-15",
			},
			{
				CustomerID:      "CUST-002",
				Name:            "Sarah Chen",
				AccountNumber:   "ACC-4562-1087",
				RiskLevel:       "medium",
				Country:         "Singapore",
				Occupation:      "Cryptocurrency Trader",
				AccountOpenDate: "2023-01-20",
			},
		},
		Transactions: []ingest.TransactionInput{
			{
				CustomerID:          "CUST-001",
				TransactionID:       "TXN-001",
				Amount:              "15000.00",
				Currency:            "USD",
				TransactionType:     "wire_transfer",
				Direction:           "outbound",
				Counterparty:        "ABC Trading Ltd",
				CounterpartyCountry: "Iran",
				Description:         "Payment for goods",
				TransactionDate:     "2025-01-15T10:30:00Z",
			},
			{
				CustomerID:          "CUST-001",
				TransactionID:       "TXN-002",
				Amount:              "9500.00",
				Currency:            "USD",
				TransactionType:     "wire_transfer",
				Direction:           "outbound",
				Counterparty:        "XYZ Corp",
				CounterpartyCountry: "Iran",
				Description:         "Trade settlement",
				TransactionDate:     "2025-01-15T14:20:00Z",
			},
			{
				CustomerID:          "CUST-001",
				TransactionID:       "TXN-003",
				Amount:              "8000.00",
				Currency:            "USD",
				TransactionType:     "wire_transfer",
				Direction:           "outbound",
				Counterparty:        "Global Exports Inc",
				CounterpartyCountry: "Iran",
				Description:         "Invoice payment",
				TransactionDate:     "2025-01-15T16:45:00Z",
			},
			{
				CustomerID:          "CUST-001",
				TransactionID:       "TXN-004",
				Amount:              "12000.00",
				Currency:            "USD",
				TransactionType:     "wire_transfer",
				Direction:           "outbound",
				Counterparty:        "Mideast Trading",
				CounterpartyCountry: "Iran",
				Description:         "Purchase order payment",
				TransactionDate:     "2025-01-16T09:15:00Z",
			},
			{
				CustomerID:          "CUST-001",
				TransactionID:       "TXN-005",
				Amount:              "10000.00",
				Currency:            "USD",
				TransactionType:     "wire_transfer",
				Direction:           "outbound",
				Counterparty:        "Tehran Commodities",
				CounterpartyCountry: "Iran",
				Description:         "Commodity purchase",
				TransactionDate:     "2025-01-16T11:30:00Z",
			},
			{
				CustomerID:          "CUST-001",
				TransactionID:       "TXN-006",
				Amount:              "11500.00",
				Currency:            "USD",
				TransactionType:     "wire_transfer",
				Direction:           "outbound",
				Counterparty:        "Eastern Supplies",
				CounterpartyCountry: "Iran",
				Description:         "Supply payment",
				TransactionDate:     "2025-01-16T15:00:00Z",
			},
			{
				CustomerID:          "CUST-002",
				TransactionID:       "TXN-101",
				Amount:              "25000.00",
				Currency:            "USD",
				TransactionType:     "crypto_exchange",
				Direction:           "inbound",
				Counterparty:        "Crypto Exchange A",
				CounterpartyCountry: "Malta",
				Description:         "Bitcoin sale",
				TransactionDate:     "2025-02-01T08:00:00Z",
			},
			{
				CustomerID:          "CUST-002",
				TransactionID:       "TXN-102",
				Amount:              "18000.00",
				Currency:            "USD",
				TransactionType:     "crypto_exchange",
				Direction:           "outbound",
				Counterparty:        "Crypto Exchange B",
				CounterpartyCountry: "Cayman Islands",
				Description:         "Ethereum purchase",
				TransactionDate:     "2025-02-01T10:30:00Z",
			},
			{
				CustomerID:          "CUST-002",
				TransactionID:       "TXN-103",
				Amount:              "22000.00",
				Currency:            "USD",
				TransactionType:     "crypto_exchange",
				Direction:           "inbound",
				Counterparty:        "Crypto Exchange A",
				CounterpartyCountry: "Malta",
				Description:         "Altcoin sale",
				TransactionDate:     "2025-02-01T13:45:00Z",
			},
		},
		Alerts: []ingest.AlertInput{
			{TransactionID: "TXN-001", RuleName: "LARGE_TRANSACTION", RuleDescription: "Transaction exceeds $10,000 threshold", RiskScore: 10},
			{TransactionID: "TXN-001", RuleName: "HIGH_RISK_JURISDICTION", RuleDescription: "Transaction with high-risk jurisdiction", RiskScore: 25},
			{TransactionID: "TXN-004", RuleName: "LARGE_TRANSACTION", RuleDescription: "Transaction exceeds $10,000 threshold", RiskScore: 10},
			{TransactionID: "TXN-004", RuleName: "HIGH_RISK_JURISDICTION", RuleDescription: "Transaction with high-risk jurisdiction", RiskScore: 25},
			{TransactionID: "TXN-005", RuleName: "ROUND_AMOUNT_PATTERN", RuleDescription: "Round amount transaction (possible structuring)", RiskScore: 20},
			{TransactionID: "TXN-005", RuleName: "HIGH_RISK_JURISDICTION", RuleDescription: "Transaction with high-risk jurisdiction", RiskScore: 25},
			{TransactionID: "TXN-101", RuleName: "LARGE_TRANSACTION", RuleDescription: "Transaction exceeds $10,000 threshold", RiskScore: 10},
			{TransactionID: "TXN-102", RuleName: "LARGE_TRANSACTION", RuleDescription: "Transaction exceeds $10,000 threshold", RiskScore: 10},
			{TransactionID: "TXN-103", RuleName: "LARGE_TRANSACTION", RuleDescription: "Transaction exceeds $10,000 threshold", RiskScore: 10},
		},
	}
}
