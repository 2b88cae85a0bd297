// Package rules provides the CEL-Go based risk scoring engine.
package rules

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/harrier/internal/domain"
)

// Rule is one fixed risk-detection rule. Expression is a per-transaction
// CEL predicate; the aggregation fields control how matches turn into a
// score contribution.
type Rule struct {
	Name        string
	Description string

	// Expression is the CEL match predicate evaluated per transaction.
	Expression string

	// ScorePerMatch is the contribution per matching transaction, or per
	// qualifying day when PerDay is set.
	ScorePerMatch int

	// FlatScore, when non-zero, is the whole contribution once the rule
	// triggers, regardless of how many transactions matched.
	FlatScore int

	// MinMatches is the number of matching transactions required for the
	// rule to trigger.
	MinMatches int

	// PerDay scales the score by the number of distinct UTC dates among
	// the matched transactions instead of the match count.
	PerDay bool
}

// BuiltinRules returns the fixed rule set. Amounts reach CEL as exact cents
// so the threshold and modulo checks never touch floating point.
//
// ROUND_AMOUNT_PATTERN intentionally triggers only at more than two matches
// and contributes a flat score; the other rules trigger from the first match
// and scale. The asymmetry is part of the rule definitions, not a bug.
func BuiltinRules() []Rule {
	return []Rule{
		{
			Name:          domain.RuleLargeTransaction,
			Description:   "Transaction exceeds $10,000 threshold",
			Expression:    "amount_cents > 1000000",
			ScorePerMatch: 10,
			MinMatches:    1,
		},
		{
			Name:          domain.RuleHighVelocity,
			Description:   "More than 5 transactions in a single day",
			Expression:    "day_count > 5",
			ScorePerMatch: 15,
			MinMatches:    1,
			PerDay:        true,
		},
		{
			Name:          domain.RuleHighRiskJurisdiction,
			Description:   "Transaction with high-risk jurisdiction",
			Expression:    `counterparty_country in ["IRAN", "NORTH KOREA", "SYRIA", "CUBA"]`,
			ScorePerMatch: 25,
			MinMatches:    1,
		},
		{
			Name:        domain.RuleRoundAmountPattern,
			Description: "Multiple transactions with round amounts (structuring indicator)",
			Expression:  "amount_cents % 100000 == 0 && amount_cents >= 500000",
			FlatScore:   20,
			MinMatches:  3,
		},
	}
}

// Describe resolves a rule name to its fixed description. Unknown names get
// a sentinel description instead of an error; sentence evidence may carry
// rule names this engine never defined.
func Describe(name string) string {
	for _, r := range BuiltinRules() {
		if r.Name == name {
			return r.Description
		}
	}
	return "Unknown rule"
}

// Engine scores a customer's transaction history against the fixed rule
// set. Stateless after construction, deterministic, no side effects.
type Engine struct {
	env   *cel.Env
	rules []compiledRule
}

type compiledRule struct {
	def     Rule
	program cel.Program
}

// NewEngine compiles the builtin rules into an engine.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("amount_cents", cel.IntType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("tx_type", cel.StringType),
		cel.Variable("direction", cel.StringType),
		cel.Variable("counterparty_country", cel.StringType),
		cel.Variable("day_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &Engine{env: env}
	for _, def := range BuiltinRules() {
		compiled, err := e.compileRule(def)
		if err != nil {
			return nil, err
		}
		e.rules = append(e.rules, compiled)
	}
	return e, nil
}

func (e *Engine) compileRule(def Rule) (compiledRule, error) {
	ast, issues := e.env.Compile(def.Expression)
	if issues != nil && issues.Err() != nil {
		return compiledRule{}, fmt.Errorf("failed to compile rule %s: %w", def.Name, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return compiledRule{}, fmt.Errorf("rule %s: expression must return bool, got %s", def.Name, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return compiledRule{}, fmt.Errorf("failed to create program for rule %s: %w", def.Name, err)
	}

	return compiledRule{def: def, program: program}, nil
}

// RulesCount returns the number of compiled rules.
func (e *Engine) RulesCount() int {
	return len(e.rules)
}

// Score evaluates every rule over the transaction set and sums the
// contributions of the rules that triggered. All rules run; there is no
// short-circuiting. Pre-computed alerts ride along for contract parity but
// are never merged with live rule hits.
//
// FlaggedTransactions is the deduplicated union of every transaction
// implicated by a triggered rule, in input order. Empty input yields a zero
// score and empty slices.
func (e *Engine) Score(ctx context.Context, customerID string, transactions []*domain.Transaction, alerts []*domain.Alert) (*domain.RiskScoreResult, error) {
	result := &domain.RiskScoreResult{
		CustomerID:          customerID,
		TriggeredRules:      []string{},
		FlaggedTransactions: []string{},
	}

	dayCounts := countByDay(transactions)

	activations := make([]map[string]any, len(transactions))
	for i, tx := range transactions {
		activations[i] = activationFor(tx, dayCounts)
	}

	flagged := make(map[string]bool)

	for _, rule := range e.rules {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var matched []*domain.Transaction
		for i, tx := range transactions {
			out, _, err := rule.program.Eval(activations[i])
			if err != nil {
				return nil, fmt.Errorf("rule %s: evaluation error: %w", rule.def.Name, err)
			}
			if out == types.True {
				matched = append(matched, tx)
			}
		}

		if len(matched) < rule.def.MinMatches {
			continue
		}

		result.TriggeredRules = append(result.TriggeredRules, rule.def.Name)
		result.TotalRiskScore += contribution(rule.def, matched)
		for _, tx := range matched {
			flagged[tx.ID] = true
		}
	}

	for _, tx := range transactions {
		if flagged[tx.ID] {
			result.FlaggedTransactions = append(result.FlaggedTransactions, tx.ID)
		}
	}

	return result, nil
}

func contribution(def Rule, matched []*domain.Transaction) int {
	if def.FlatScore != 0 {
		return def.FlatScore
	}
	if def.PerDay {
		days := make(map[string]bool)
		for _, tx := range matched {
			days[utcDate(tx.Timestamp)] = true
		}
		return def.ScorePerMatch * len(days)
	}
	return def.ScorePerMatch * len(matched)
}

func activationFor(tx *domain.Transaction, dayCounts map[string]int) map[string]any {
	amount, _ := tx.Amount.Float64()
	return map[string]any{
		"amount":               amount,
		"amount_cents":         tx.Amount.Shift(2).Round(0).IntPart(),
		"currency":             tx.Currency,
		"tx_type":              tx.Type,
		"direction":            tx.Direction,
		"counterparty_country": strings.ToUpper(tx.CounterpartyCountry),
		"day_count":            int64(dayCounts[utcDate(tx.Timestamp)]),
	}
}

// countByDay buckets transactions by the UTC date component of their
// timestamp.
func countByDay(transactions []*domain.Transaction) map[string]int {
	counts := make(map[string]int, len(transactions))
	for _, tx := range transactions {
		counts[utcDate(tx.Timestamp)]++
	}
	return counts
}

func utcDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

