package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

const defaultBaseURL = "https://api.openai.com/v1"

// LLMGenerator delegates narrative text production to an OpenAI-compatible
// chat-completions endpoint. The call is blocking and cancellable via ctx;
// there is no internal retry, and a parse failure is a hard generation
// failure for the request, never a silent switch to the template path.
type LLMGenerator struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewLLMGenerator creates a collaborator-backed generator.
func NewLLMGenerator(cfg domain.NarrativeConfig) *LLMGenerator {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LLMGenerator{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	MaxCompletionTokens int `json:"max_completion_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// narrativeResponse is the structured payload the collaborator must return.
type narrativeResponse struct {
	Sections []struct {
		Type      string `json:"type"`
		Sentences []struct {
			Text                     string   `json:"text"`
			Confidence               string   `json:"confidence"`
			SupportingTransactionIDs []string `json:"supportingTransactionIds"`
			SupportingRules          []string `json:"supportingRules"`
		} `json:"sentences"`
	} `json:"sections"`
}

// Generate sends the structured prompt and parses the structured response
// into a Narrative.
func (g *LLMGenerator) Generate(ctx context.Context, customer *domain.Customer, transactions []*domain.Transaction, risk *domain.RiskScoreResult) (*domain.Narrative, error) {
	req := chatRequest{
		Model:               g.model,
		Messages:            []chatMessage{{Role: "user", Content: buildPrompt(customer, transactions, risk)}},
		MaxCompletionTokens: 4096,
	}
	req.ResponseFormat.Type = "json_object"

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode request: %v", domain.ErrGeneration, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: collaborator call failed: %v", domain.ErrGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: collaborator returned status %d: %s", domain.ErrGeneration, resp.StatusCode, payload)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrGeneration, err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("%w: response contained no choices", domain.ErrGeneration)
	}

	return parseNarrative(chat.Choices[0].Message.Content)
}

// parseNarrative validates the collaborator output: all four section types
// must be present exactly once; sections are normalized into the fixed
// display order and sentence confidences into lowercase levels.
func parseNarrative(content string) (*domain.Narrative, error) {
	var parsed narrativeResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("%w: unparseable narrative payload: %v", domain.ErrGeneration, err)
	}

	byType := make(map[string][]domain.NarrativeSentence, len(parsed.Sections))
	for _, section := range parsed.Sections {
		sectionType := strings.ToUpper(strings.TrimSpace(section.Type))
		if _, dup := byType[sectionType]; dup {
			return nil, fmt.Errorf("%w: duplicate section %s", domain.ErrGeneration, sectionType)
		}

		sentences := make([]domain.NarrativeSentence, 0, len(section.Sentences))
		for _, s := range section.Sentences {
			if strings.TrimSpace(s.Text) == "" {
				continue
			}
			sentences = append(sentences, domain.NarrativeSentence{
				Text:                     s.Text,
				Confidence:               normalizeConfidence(s.Confidence),
				SupportingTransactionIDs: emptyIfNil(s.SupportingTransactionIDs),
				SupportingRules:          emptyIfNil(s.SupportingRules),
			})
		}
		byType[sectionType] = sentences
	}

	sections := make([]domain.NarrativeSection, 0, 4)
	for _, sectionType := range domain.SectionOrder() {
		sentences, ok := byType[sectionType]
		if !ok {
			return nil, fmt.Errorf("%w: missing section %s", domain.ErrGeneration, sectionType)
		}
		sections = append(sections, buildSection(sectionType, sentences))
	}
	if len(parsed.Sections) != len(sections) {
		return nil, fmt.Errorf("%w: expected exactly %d sections, got %d", domain.ErrGeneration, len(sections), len(parsed.Sections))
	}

	return &domain.Narrative{Sections: sections}, nil
}

func normalizeConfidence(confidence string) string {
	switch strings.ToLower(strings.TrimSpace(confidence)) {
	case domain.ConfidenceHigh:
		return domain.ConfidenceHigh
	case domain.ConfidenceLow:
		return domain.ConfidenceLow
	default:
		return domain.ConfidenceMedium
	}
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

const transactionSampleSize = 5

// buildPrompt renders the structured prompt: customer identity and risk
// fields, transaction counts, triggered rules, and a sample of up to five
// transactions.
func buildPrompt(customer *domain.Customer, transactions []*domain.Transaction, risk *domain.RiskScoreResult) string {
	var b strings.Builder

	b.WriteString("You are a financial compliance officer writing a Suspicious Activity Report (SAR). Generate a structured narrative based on the following information:\n\n")

	fmt.Fprintf(&b, "CUSTOMER INFORMATION:\n- Name: %s\n- Account Number: %s\n- Risk Level: %s\n- Country: %s\n- Occupation: %s\n\n",
		customer.Name, customer.AccountNumber, customer.RiskLevel,
		orUnknown(customer.Country), orUnknown(customer.Occupation))

	fmt.Fprintf(&b, "TRANSACTION SUMMARY:\n- Total Transactions: %d\n- Flagged Transactions: %d\n- Total Risk Score: %d\n\n",
		len(transactions), len(risk.FlaggedTransactions), risk.TotalRiskScore)

	b.WriteString("TRIGGERED RULES:\n")
	for _, rule := range risk.TriggeredRules {
		fmt.Fprintf(&b, "- %s\n", rule)
	}

	b.WriteString("\nSAMPLE TRANSACTIONS:\n")
	sample := transactions
	if len(sample) > transactionSampleSize {
		sample = sample[:transactionSampleSize]
	}
	for _, tx := range sample {
		fmt.Fprintf(&b, "- %s: %s %s %s %s to %s (%s)\n",
			tx.Timestamp.UTC().Format(time.RFC3339), tx.Direction, tx.Amount.StringFixed(2),
			tx.Currency, tx.Type, orUnknown(tx.Counterparty), orUnknown(tx.CounterpartyCountry))
	}

	fmt.Fprintf(&b, `
Generate a SAR narrative with EXACTLY 4 sections:
1. OVERVIEW: Brief summary of the suspicious activity (2-3 sentences)
2. TRANSACTION_PATTERN: Detailed analysis of transaction patterns (3-4 sentences)
3. SUSPICION_RATIONALE: Why this activity is suspicious (2-3 sentences)
4. CONCLUSION: Summary and recommendation (1-2 sentences)

For EACH sentence, indicate confidence level as HIGH, MEDIUM, or LOW.
For EACH sentence, list which transaction IDs (from flagged transactions: %s) and rules support it.

Respond in JSON format:
{
  "sections": [
    {
      "type": "OVERVIEW",
      "sentences": [
        {
          "text": "sentence text here",
          "confidence": "HIGH|MEDIUM|LOW",
          "supportingTransactionIds": ["..."],
          "supportingRules": ["RULE_NAME"]
        }
      ]
    }
  ]
}`, strings.Join(risk.FlaggedTransactions, ", "))

	return b.String()
}

func orUnknown(value string) string {
	if value == "" {
		return "Unknown"
	}
	return value
}
