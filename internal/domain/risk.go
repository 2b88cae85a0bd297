package domain

// Names of the fixed risk rules.
const (
	RuleLargeTransaction     = "LARGE_TRANSACTION"
	RuleHighVelocity         = "HIGH_VELOCITY"
	RuleHighRiskJurisdiction = "HIGH_RISK_JURISDICTION"
	RuleRoundAmountPattern   = "ROUND_AMOUNT_PATTERN"
)

// RiskScoreResult is the output of scoring a customer's transaction history.
// FlaggedTransactions is a deduplicated set: a transaction implicated by
// several rules appears once.
type RiskScoreResult struct {
	CustomerID          string   `json:"customerId"`
	TotalRiskScore      int      `json:"totalRiskScore"`
	TriggeredRules      []string `json:"triggeredRules"`
	FlaggedTransactions []string `json:"flaggedTransactions"`
}

// RuleReference resolves a rule name for evidence display.
type RuleReference struct {
	RuleName    string `json:"ruleName"`
	Description string `json:"description"`
}

// SentenceExplanation resolves a sentence's evidence links into full records.
type SentenceExplanation struct {
	Sentence               SarSentence     `json:"sentence"`
	SupportingTransactions []Transaction   `json:"supportingTransactions"`
	SupportingRules        []RuleReference `json:"supportingRules"`
}
