// Package narrative generates SAR narratives: four fixed sections of
// sentences carrying confidence levels and evidence links. Two generators
// exist behind the same interface: a deterministic template and an external
// chat-completions collaborator. Which one runs is decided at startup, never
// per request.
package narrative

import (
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// DeriveConfidence computes a section's confidence from its sentences:
// "high" if more than 60% of sentences are high, else "low" if more than
// 60% are low, else "medium". Empty sections are medium.
func DeriveConfidence(sentences []domain.NarrativeSentence) string {
	if len(sentences) == 0 {
		return domain.ConfidenceMedium
	}

	var high, low int
	for _, s := range sentences {
		switch s.Confidence {
		case domain.ConfidenceHigh:
			high++
		case domain.ConfidenceLow:
			low++
		}
	}

	total := float64(len(sentences))
	if float64(high)/total > 0.6 {
		return domain.ConfidenceHigh
	}
	if float64(low)/total > 0.6 {
		return domain.ConfidenceLow
	}
	return domain.ConfidenceMedium
}

// buildSection assembles a section from its sentences: content is the
// space-joined sentence texts in order, confidence is derived.
func buildSection(sectionType string, sentences []domain.NarrativeSentence) domain.NarrativeSection {
	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.Text
	}
	return domain.NarrativeSection{
		Type:       sectionType,
		Content:    strings.Join(texts, " "),
		Confidence: DeriveConfidence(sentences),
		Sentences:  sentences,
	}
}

// firstN returns at most n leading elements of ids without copying beyond
// the slice header.
func firstN(ids []string, n int) []string {
	if len(ids) < n {
		n = len(ids)
	}
	return ids[:n]
}
