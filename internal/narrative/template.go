package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// TemplateGenerator produces a deterministic narrative without any external
// collaborator. It is the default path when no API key is configured and
// yields the same 4-section shape as the external path, so downstream
// consumers never know which one ran.
type TemplateGenerator struct{}

// NewTemplateGenerator creates the fallback generator.
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

// Generate builds the four fixed sections from the customer profile and the
// risk scoring result.
func (g *TemplateGenerator) Generate(ctx context.Context, customer *domain.Customer, transactions []*domain.Transaction, risk *domain.RiskScoreResult) (*domain.Narrative, error) {
	flagged := risk.FlaggedTransactions
	rules := risk.TriggeredRules

	overview := []domain.NarrativeSentence{
		{
			Text:                     fmt.Sprintf("A review of customer %s (Account: %s) has identified suspicious financial activity requiring investigation.", customer.Name, customer.AccountNumber),
			Confidence:               domain.ConfidenceHigh,
			SupportingTransactionIDs: firstN(flagged, 3),
			SupportingRules:          firstN(rules, 2),
		},
		{
			Text:                     fmt.Sprintf("The customer, classified as %s risk, has demonstrated patterns consistent with potential money laundering or sanctions evasion.", customer.RiskLevel),
			Confidence:               domain.ConfidenceMedium,
			SupportingTransactionIDs: firstN(flagged, 2),
			SupportingRules:          firstN(rules, 1),
		},
	}

	pattern := []domain.NarrativeSentence{
		{
			Text:                     fmt.Sprintf("Total of %d transactions reviewed with %d flagged for further investigation.", len(transactions), len(flagged)),
			Confidence:               domain.ConfidenceHigh,
			SupportingTransactionIDs: flagged,
			SupportingRules:          rules,
		},
		{
			Text:                     "Transaction velocity and counterparty relationships show indicators inconsistent with the stated account purpose.",
			Confidence:               domain.ConfidenceMedium,
			SupportingTransactionIDs: firstN(flagged, 4),
			SupportingRules:          rules,
		},
	}

	rationale := []domain.NarrativeSentence{
		{
			Text:                     fmt.Sprintf("Risk scoring analysis produced a total score of %d based on triggered rules: %s.", risk.TotalRiskScore, joinOrNone(rules)),
			Confidence:               domain.ConfidenceHigh,
			SupportingTransactionIDs: flagged,
			SupportingRules:          rules,
		},
		{
			Text:                     "The identified activity is inconsistent with the customer profile and stated occupation.",
			Confidence:               domain.ConfidenceMedium,
			SupportingTransactionIDs: firstN(flagged, 3),
			SupportingRules:          firstN(rules, 2),
		},
	}

	conclusion := []domain.NarrativeSentence{
		{
			Text:                     "Recommend filing SAR and enhanced customer due diligence procedures.",
			Confidence:               domain.ConfidenceHigh,
			SupportingTransactionIDs: flagged,
			SupportingRules:          rules,
		},
	}

	return &domain.Narrative{
		Sections: []domain.NarrativeSection{
			buildSection(domain.SectionOverview, overview),
			buildSection(domain.SectionTransactionPattern, pattern),
			buildSection(domain.SectionSuspicionRationale, rationale),
			buildSection(domain.SectionConclusion, conclusion),
		},
	}, nil
}

func joinOrNone(rules []string) string {
	if len(rules) == 0 {
		return "none"
	}
	return strings.Join(rules, ", ")
}
