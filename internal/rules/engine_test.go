package rules

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/harrier/internal/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return engine
}

func tx(id string, amount string, ts time.Time) *domain.Transaction {
	return &domain.Transaction{
		ID:        id,
		Amount:    decimal.RequireFromString(amount),
		Currency:  "USD",
		Type:      "wire_transfer",
		Direction: domain.DirectionOutbound,
		Timestamp: ts,
	}
}

func TestEngineCreation(t *testing.T) {
	engine := newTestEngine(t)

	if engine.RulesCount() != 4 {
		t.Errorf("expected 4 rules, got %d", engine.RulesCount())
	}
}

func TestScoreEmptyInput(t *testing.T) {
	engine := newTestEngine(t)

	result, err := engine.Score(context.Background(), "cust-1", nil, nil)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	if result.TotalRiskScore != 0 {
		t.Errorf("expected zero score, got %d", result.TotalRiskScore)
	}
	if len(result.TriggeredRules) != 0 {
		t.Errorf("expected no triggered rules, got %v", result.TriggeredRules)
	}
	if len(result.FlaggedTransactions) != 0 {
		t.Errorf("expected no flagged transactions, got %v", result.FlaggedTransactions)
	}
}

func TestLargeTransaction(t *testing.T) {
	engine := newTestEngine(t)
	day := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	txs := []*domain.Transaction{
		tx("tx-1", "10000.00", day), // exactly at threshold, not over
		tx("tx-2", "10000.01", day),
		tx("tx-3", "25000.00", day),
	}

	result, err := engine.Score(context.Background(), "cust-1", txs, nil)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	if result.TotalRiskScore != 20 {
		t.Errorf("expected score 20 (10 x 2 matches), got %d", result.TotalRiskScore)
	}
	if len(result.TriggeredRules) != 1 || result.TriggeredRules[0] != domain.RuleLargeTransaction {
		t.Errorf("expected only LARGE_TRANSACTION, got %v", result.TriggeredRules)
	}
	if len(result.FlaggedTransactions) != 2 {
		t.Errorf("expected 2 flagged transactions, got %v", result.FlaggedTransactions)
	}
}

func TestHighVelocity(t *testing.T) {
	engine := newTestEngine(t)

	// 6 transactions on one UTC day, 1 on another. The rule must trigger
	// once with score 15 and flag only the 6 same-day transactions.
	busy := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	quiet := time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)

	var txs []*domain.Transaction
	for i := 0; i < 6; i++ {
		txs = append(txs, tx(fmt.Sprintf("busy-%d", i), "100.00", busy.Add(time.Duration(i)*time.Hour)))
	}
	txs = append(txs, tx("quiet-1", "100.00", quiet))

	result, err := engine.Score(context.Background(), "cust-1", txs, nil)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	if result.TotalRiskScore != 15 {
		t.Errorf("expected score 15 (one qualifying day), got %d", result.TotalRiskScore)
	}
	if len(result.FlaggedTransactions) != 6 {
		t.Fatalf("expected 6 flagged transactions, got %d", len(result.FlaggedTransactions))
	}
	for _, id := range result.FlaggedTransactions {
		if id == "quiet-1" {
			t.Error("transaction on the quiet day must not be flagged")
		}
	}
}

func TestHighVelocityCrossesUTCMidnight(t *testing.T) {
	engine := newTestEngine(t)

	// 23:00 and 01:00 the next day are different UTC dates; 5 + 2 split
	// across midnight must not trigger.
	evening := time.Date(2025, 1, 15, 23, 0, 0, 0, time.UTC)

	var txs []*domain.Transaction
	for i := 0; i < 5; i++ {
		txs = append(txs, tx(fmt.Sprintf("eve-%d", i), "100.00", evening.Add(-time.Duration(i)*time.Minute)))
	}
	txs = append(txs, tx("next-1", "100.00", evening.Add(2*time.Hour)))
	txs = append(txs, tx("next-2", "100.00", evening.Add(3*time.Hour)))

	result, err := engine.Score(context.Background(), "cust-1", txs, nil)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	for _, rule := range result.TriggeredRules {
		if rule == domain.RuleHighVelocity {
			t.Error("HIGH_VELOCITY must not trigger when no single UTC day exceeds 5 transactions")
		}
	}
}

func TestHighVelocityMultipleDays(t *testing.T) {
	engine := newTestEngine(t)

	var txs []*domain.Transaction
	for d := 0; d < 2; d++ {
		day := time.Date(2025, 3, 1+d, 9, 0, 0, 0, time.UTC)
		for i := 0; i < 6; i++ {
			txs = append(txs, tx(fmt.Sprintf("d%d-%d", d, i), "50.00", day.Add(time.Duration(i)*time.Minute)))
		}
	}

	result, err := engine.Score(context.Background(), "cust-1", txs, nil)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	if result.TotalRiskScore != 30 {
		t.Errorf("expected score 30 (15 x 2 qualifying days), got %d", result.TotalRiskScore)
	}
	if len(result.FlaggedTransactions) != 12 {
		t.Errorf("expected all 12 transactions flagged, got %d", len(result.FlaggedTransactions))
	}
}

func TestHighRiskJurisdiction(t *testing.T) {
	engine := newTestEngine(t)
	day := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	txs := []*domain.Transaction{
		tx("tx-1", "500.00", day),
		tx("tx-2", "500.00", day),
		tx("tx-3", "500.00", day),
	}
	txs[0].CounterpartyCountry = "Iran"        // case-insensitive match
	txs[1].CounterpartyCountry = "north korea" // ditto
	txs[2].CounterpartyCountry = "Germany"

	result, err := engine.Score(context.Background(), "cust-1", txs, nil)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	if result.TotalRiskScore != 50 {
		t.Errorf("expected score 50 (25 x 2 matches), got %d", result.TotalRiskScore)
	}
	if len(result.FlaggedTransactions) != 2 {
		t.Errorf("expected 2 flagged transactions, got %v", result.FlaggedTransactions)
	}
}

func TestRoundAmountPattern(t *testing.T) {
	engine := newTestEngine(t)
	day := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	t.Run("TwoMatchesDoNotTrigger", func(t *testing.T) {
		txs := []*domain.Transaction{
			tx("tx-1", "5000.00", day),
			tx("tx-2", "6000.00", day),
		}

		result, err := engine.Score(context.Background(), "cust-1", txs, nil)
		if err != nil {
			t.Fatalf("score failed: %v", err)
		}

		if result.TotalRiskScore != 0 {
			t.Errorf("expected score 0 with only 2 round amounts, got %d", result.TotalRiskScore)
		}
	})

	t.Run("ThreeMatchesTriggerFlat20", func(t *testing.T) {
		txs := []*domain.Transaction{
			tx("tx-1", "5000.00", day),
			tx("tx-2", "6000.00", day),
			tx("tx-3", "7000.00", day),
		}

		result, err := engine.Score(context.Background(), "cust-1", txs, nil)
		if err != nil {
			t.Fatalf("score failed: %v", err)
		}

		if result.TotalRiskScore != 20 {
			t.Errorf("expected flat score 20, got %d", result.TotalRiskScore)
		}
		if len(result.FlaggedTransactions) != 3 {
			t.Errorf("expected 3 flagged transactions, got %v", result.FlaggedTransactions)
		}
	})

	t.Run("FlatScoreDoesNotScale", func(t *testing.T) {
		var txs []*domain.Transaction
		for i := 0; i < 7; i++ {
			txs = append(txs, tx(fmt.Sprintf("tx-%d", i), "5000.00", day.AddDate(0, 0, i)))
		}

		result, err := engine.Score(context.Background(), "cust-1", txs, nil)
		if err != nil {
			t.Fatalf("score failed: %v", err)
		}

		if result.TotalRiskScore != 20 {
			t.Errorf("expected flat score 20 regardless of count, got %d", result.TotalRiskScore)
		}
	})

	t.Run("BoundaryAmounts", func(t *testing.T) {
		txs := []*domain.Transaction{
			tx("tx-1", "4000.00", day), // multiple of 1000 but below 5000
			tx("tx-2", "5000.00", day),
			tx("tx-3", "5500.00", day), // not a multiple of 1000
			tx("tx-4", "5000.01", day), // fractional cents break the multiple
			tx("tx-5", "8000.00", day),
		}

		result, err := engine.Score(context.Background(), "cust-1", txs, nil)
		if err != nil {
			t.Fatalf("score failed: %v", err)
		}

		// Only tx-2 and tx-5 qualify; two matches stay below the trigger.
		if result.TotalRiskScore != 0 {
			t.Errorf("expected score 0, got %d", result.TotalRiskScore)
		}
	})
}

func TestFlaggedTransactionsDeduplicated(t *testing.T) {
	engine := newTestEngine(t)
	day := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	// Matches both LARGE_TRANSACTION and HIGH_RISK_JURISDICTION but must
	// appear exactly once in the flagged set.
	both := tx("tx-both", "15000.00", day)
	both.CounterpartyCountry = "Syria"

	result, err := engine.Score(context.Background(), "cust-1", []*domain.Transaction{both}, nil)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	if result.TotalRiskScore != 35 {
		t.Errorf("expected score 35 (10 + 25), got %d", result.TotalRiskScore)
	}
	if len(result.TriggeredRules) != 2 {
		t.Errorf("expected 2 triggered rules, got %v", result.TriggeredRules)
	}
	if len(result.FlaggedTransactions) != 1 {
		t.Errorf("expected 1 flagged transaction, got %v", result.FlaggedTransactions)
	}
}

func TestCombinedScenario(t *testing.T) {
	engine := newTestEngine(t)

	// Six $11,500 same-day wires to an embargoed country:
	// LARGE 10x6 + VELOCITY 15x1 + JURISDICTION 25x6 = 225.
	day := time.Date(2025, 1, 16, 9, 0, 0, 0, time.UTC)
	var txs []*domain.Transaction
	for i := 0; i < 6; i++ {
		wire := tx(fmt.Sprintf("wire-%d", i), "11500.00", day.Add(time.Duration(i)*time.Hour))
		wire.CounterpartyCountry = "Iran"
		txs = append(txs, wire)
	}

	result, err := engine.Score(context.Background(), "cust-1", txs, nil)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	if result.TotalRiskScore != 225 {
		t.Errorf("expected score 225, got %d", result.TotalRiskScore)
	}
	if len(result.TriggeredRules) != 3 {
		t.Errorf("expected 3 triggered rules, got %v", result.TriggeredRules)
	}
	if len(result.FlaggedTransactions) != 6 {
		t.Errorf("expected 6 flagged transactions, got %d", len(result.FlaggedTransactions))
	}
}

func TestScoreDeterministic(t *testing.T) {
	engine := newTestEngine(t)
	day := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	txs := []*domain.Transaction{
		tx("tx-1", "15000.00", day),
		tx("tx-2", "5000.00", day),
		tx("tx-3", "300.00", day),
	}
	txs[1].CounterpartyCountry = "Cuba"

	first, err := engine.Score(context.Background(), "cust-1", txs, nil)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		again, err := engine.Score(context.Background(), "cust-1", txs, nil)
		if err != nil {
			t.Fatalf("score failed: %v", err)
		}
		if again.TotalRiskScore != first.TotalRiskScore {
			t.Fatalf("score not deterministic: %d vs %d", again.TotalRiskScore, first.TotalRiskScore)
		}
		if len(again.FlaggedTransactions) != len(first.FlaggedTransactions) {
			t.Fatalf("flagged set not deterministic")
		}
	}
}

func TestDescribe(t *testing.T) {
	if got := Describe(domain.RuleLargeTransaction); got != "Transaction exceeds $10,000 threshold" {
		t.Errorf("unexpected description: %q", got)
	}
	if got := Describe("MADE_UP_RULE"); got != "Unknown rule" {
		t.Errorf("expected sentinel description for unknown rule, got %q", got)
	}
}
