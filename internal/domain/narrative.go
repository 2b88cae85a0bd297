package domain

import "context"

// NarrativeSentence is one generated sentence with its author-assigned
// confidence and declared evidence links. The generator declares which
// transactions and rules support a claim; the system does not re-derive
// that linkage.
type NarrativeSentence struct {
	Text                     string   `json:"text"`
	Confidence               string   `json:"confidence"`
	SupportingTransactionIDs []string `json:"supportingTransactionIds"`
	SupportingRules          []string `json:"supportingRules"`
}

// NarrativeSection is one of the four fixed sections. Content is the
// space-joined concatenation of its sentences in order; Confidence is
// derived from the sentence confidences.
type NarrativeSection struct {
	Type       string              `json:"type"`
	Content    string              `json:"content"`
	Confidence string              `json:"confidence"`
	Sentences  []NarrativeSentence `json:"sentences"`
}

// Narrative is a complete generated SAR narrative: exactly four sections in
// the fixed order, regardless of which generation path produced them.
type Narrative struct {
	Sections []NarrativeSection `json:"sections"`
}

// NarrativeGenerator produces a SAR narrative for a customer given the risk
// scoring result. Implementations: the deterministic template generator and
// the chat-completions collaborator.
type NarrativeGenerator interface {
	Generate(ctx context.Context, customer *Customer, transactions []*Transaction, risk *RiskScoreResult) (*Narrative, error)
}
