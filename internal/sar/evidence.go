package sar

import (
	"context"
	"errors"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/rules"
)

// Explain resolves a sentence's evidence links into full records. Transaction
// IDs that no longer resolve are dropped silently; rule names always resolve,
// with unknown names described as "Unknown rule".
func (s *Service) Explain(ctx context.Context, sentenceID string) (*domain.SentenceExplanation, error) {
	sentence, err := s.repo.GetSarSentence(ctx, sentenceID)
	if err != nil {
		return nil, err
	}

	transactions := []domain.Transaction{}
	for _, txID := range sentence.SupportingTransactionIDs {
		tx, err := s.repo.GetTransaction(ctx, txID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}

	references := []domain.RuleReference{}
	for _, name := range sentence.SupportingRules {
		references = append(references, domain.RuleReference{
			RuleName:    name,
			Description: rules.Describe(name),
		})
	}

	return &domain.SentenceExplanation{
		Sentence:               *sentence,
		SupportingTransactions: transactions,
		SupportingRules:        references,
	}, nil
}
