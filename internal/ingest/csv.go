package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// CSV dataset kinds accepted by ParseCSV.
const (
	CSVKindCustomers    = "customers"
	CSVKindTransactions = "transactions"
)

// ParseCSV reads a headed CSV stream into an upload payload. The first row
// names the columns using the same field names as the JSON payload
// (case-insensitive); unknown columns are ignored.
func ParseCSV(r io.Reader, kind string) (*UploadInput, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, domain.NewValidationError("file", "empty CSV file")
	}
	if err != nil {
		return nil, domain.NewValidationError("file", fmt.Sprintf("invalid CSV: %v", err))
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	input := &UploadInput{}
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, domain.NewValidationError("file", fmt.Sprintf("invalid CSV at row %d: %v", row+2, err))
		}

		get := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		switch kind {
		case CSVKindCustomers:
			input.Customers = append(input.Customers, CustomerInput{
				CustomerID:      get("customerid"),
				Name:            get("name"),
				AccountNumber:   get("accountnumber"),
				RiskLevel:       get("risklevel"),
				Country:         get("countryofresidence"),
				Occupation:      get("occupation"),
				AccountOpenDate: get("accountopendate"),
			})
		case CSVKindTransactions:
			input.Transactions = append(input.Transactions, TransactionInput{
				CustomerID:          get("customerid"),
				TransactionID:       get("transactionid"),
				Amount:              json.Number(get("amount")),
				Currency:            get("currency"),
				TransactionType:     get("transactiontype"),
				Direction:           get("direction"),
				Counterparty:        get("counterparty"),
				CounterpartyCountry: get("counterpartycountry"),
				Description:         get("description"),
				TransactionDate:     get("transactiondate"),
			})
		default:
			return nil, domain.NewValidationError("type", fmt.Sprintf("unsupported CSV kind %q", kind))
		}
		row++
	}

	return input, nil
}
