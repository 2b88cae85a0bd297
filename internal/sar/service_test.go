package sar

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/narrative"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/rules"
)

func newTestService(t *testing.T) (*Service, *repository.MemoryRepository) {
	t.Helper()

	engine, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	repo := repository.NewMemoryRepository()
	svc := NewService(Config{
		Repo:          repo,
		Engine:        engine,
		Generator:     narrative.NewTemplateGenerator(),
		GeneratorName: GeneratedByTemplate,
	})
	return svc, repo
}

func seedCustomer(t *testing.T, repo domain.Repository) string {
	t.Helper()
	ctx := context.Background()

	customer := &domain.Customer{
		ID:            "cust-001",
		CustomerID:    "CUST-001",
		Name:          "Viktor Petrov",
		AccountNumber: "ACC-78234",
		RiskLevel:     domain.RiskLevelHigh,
		Country:       "Russia",
		CreatedAt:     time.Now().UTC(),
	}
	if err := repo.CreateCustomer(context.Background(), customer); err != nil {
		t.Fatalf("failed to seed customer: %v", err)
	}

	txs := []*domain.Transaction{
		{
			ID:                  "tx-001",
			CustomerID:          "cust-001",
			TransactionID:       "TXN-001",
			Amount:              decimal.RequireFromString("2500.00"),
			Currency:            "USD",
			Type:                "wire",
			Direction:           domain.DirectionOutbound,
			Counterparty:        "Global Trade LLC",
			CounterpartyCountry: "Iran",
			Timestamp:           time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:            "tx-002",
			CustomerID:    "cust-001",
			TransactionID: "TXN-002",
			Amount:        decimal.RequireFromString("120.00"),
			Currency:      "USD",
			Type:          "card",
			Direction:     domain.DirectionOutbound,
			Timestamp:     time.Date(2024, 3, 16, 10, 0, 0, 0, time.UTC),
		},
	}
	if err := repo.CreateTransactions(ctx, txs); err != nil {
		t.Fatalf("failed to seed transactions: %v", err)
	}

	return customer.ID
}

func TestCalculateRisk(t *testing.T) {
	svc, repo := newTestService(t)
	customerID := seedCustomer(t, repo)

	result, err := svc.CalculateRisk(context.Background(), customerID)
	if err != nil {
		t.Fatalf("CalculateRisk failed: %v", err)
	}

	if result.TotalRiskScore != 25 {
		t.Errorf("expected score 25, got %d", result.TotalRiskScore)
	}
	if len(result.TriggeredRules) != 1 || result.TriggeredRules[0] != domain.RuleHighRiskJurisdiction {
		t.Errorf("unexpected triggered rules: %v", result.TriggeredRules)
	}
	if len(result.FlaggedTransactions) != 1 || result.FlaggedTransactions[0] != "tx-001" {
		t.Errorf("unexpected flagged transactions: %v", result.FlaggedTransactions)
	}
}

func TestCalculateRiskUnknownCustomer(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CalculateRisk(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

// stubCache records calls and serves one stored result.
type stubCache struct {
	stored *domain.RiskScoreResult
	sets   int
}

func (c *stubCache) Get(ctx context.Context, key string) ([]byte, error)  { return nil, nil }
func (c *stubCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}
func (c *stubCache) Delete(ctx context.Context, key string) error { return nil }
func (c *stubCache) GetRiskScore(ctx context.Context, customerID string) (*domain.RiskScoreResult, error) {
	return c.stored, nil
}
func (c *stubCache) SetRiskScore(ctx context.Context, customerID string, result *domain.RiskScoreResult, ttl time.Duration) error {
	c.stored = result
	c.sets++
	return nil
}
func (c *stubCache) InvalidateRiskScore(ctx context.Context, customerID string) error {
	c.stored = nil
	return nil
}
func (c *stubCache) Ping(ctx context.Context) error { return nil }
func (c *stubCache) Close() error                   { return nil }

func TestCalculateRiskUsesCache(t *testing.T) {
	svc, repo := newTestService(t)
	customerID := seedCustomer(t, repo)

	cache := &stubCache{}
	svc.cache = cache

	first, err := svc.CalculateRisk(context.Background(), customerID)
	if err != nil {
		t.Fatalf("CalculateRisk failed: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("expected one cache write, got %d", cache.sets)
	}

	second, err := svc.CalculateRisk(context.Background(), customerID)
	if err != nil {
		t.Fatalf("CalculateRisk failed: %v", err)
	}
	if second != first {
		t.Error("second call should return the cached result")
	}
	if cache.sets != 1 {
		t.Errorf("cached hit should not rewrite the cache, got %d writes", cache.sets)
	}
}

func TestGenerate(t *testing.T) {
	svc, repo := newTestService(t)
	customerID := seedCustomer(t, repo)
	ctx := context.Background()

	details, err := svc.Generate(ctx, customerID)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if details.Version != 1 {
		t.Errorf("expected version 1, got %d", details.Version)
	}
	if details.Status != domain.SarStatusDraft {
		t.Errorf("expected draft status, got %s", details.Status)
	}
	if !strings.HasPrefix(details.Title, "SAR for Viktor Petrov - ") {
		t.Errorf("unexpected title: %s", details.Title)
	}
	if details.GeneratedBy != GeneratedByTemplate {
		t.Errorf("expected generatedBy template, got %s", details.GeneratedBy)
	}
	if details.Customer.ID != customerID {
		t.Errorf("hydrated customer mismatch: %s", details.Customer.ID)
	}

	if len(details.Sections) != 4 {
		t.Fatalf("expected 4 sections, got %d", len(details.Sections))
	}
	for i, wantType := range domain.SectionOrder() {
		section := details.Sections[i]
		if section.SectionType != wantType {
			t.Errorf("section %d: expected %s, got %s", i, wantType, section.SectionType)
		}
		if section.Sequence != i {
			t.Errorf("section %s: expected sequence %d, got %d", wantType, i, section.Sequence)
		}
		if len(section.Sentences) == 0 {
			t.Errorf("section %s has no sentences", wantType)
		}
		for j, sentence := range section.Sentences {
			if sentence.Sequence != j {
				t.Errorf("sentence %d in %s: expected sequence %d, got %d", j, wantType, j, sentence.Sequence)
			}
			if sentence.SectionID != section.ID {
				t.Errorf("sentence not linked to its section")
			}
		}
	}

	if len(details.AuditLogs) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(details.AuditLogs))
	}
	entry := details.AuditLogs[0]
	if entry.Action != domain.ActionSarGenerated {
		t.Errorf("expected action %s, got %s", domain.ActionSarGenerated, entry.Action)
	}
	if entry.UserID != domain.SystemActor {
		t.Errorf("expected system actor, got %s", entry.UserID)
	}
	if entry.Reason != "Initial AI generation" {
		t.Errorf("unexpected reason: %s", entry.Reason)
	}

	versions, err := repo.ListSarVersions(ctx, details.ID)
	if err != nil {
		t.Fatalf("ListSarVersions failed: %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected 1 version snapshot, got %d", len(versions))
	}
	snapshot := versions[0].Snapshot
	if snapshot.Sar.Version != 1 {
		t.Errorf("snapshot should capture version 1, got %d", snapshot.Sar.Version)
	}
	if len(snapshot.Sections) != 4 {
		t.Fatalf("snapshot should carry 4 sections, got %d", len(snapshot.Sections))
	}
	for i, section := range snapshot.Sections {
		if section.ID == "" {
			t.Errorf("snapshot section %d has no ID", i)
		}
	}
}

func TestGenerateUnknownCustomer(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Generate(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestEditSection(t *testing.T) {
	svc, repo := newTestService(t)
	customerID := seedCustomer(t, repo)
	ctx := context.Background()

	generated, err := svc.Generate(ctx, customerID)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	section := generated.Sections[0]
	oldContent := section.Content

	edited, err := svc.EditSection(ctx, generated.ID, section.ID, "Revised overview content.", "Corrected customer description", "analyst-7")
	if err != nil {
		t.Fatalf("EditSection failed: %v", err)
	}

	if edited.Version != 2 {
		t.Errorf("expected version 2 after edit, got %d", edited.Version)
	}
	if edited.Sections[0].Content != "Revised overview content." {
		t.Errorf("content not updated: %s", edited.Sections[0].Content)
	}

	// Audit trail is newest first; the edit entry leads.
	if len(edited.AuditLogs) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(edited.AuditLogs))
	}
	entry := edited.AuditLogs[0]
	if entry.Action != domain.ActionSectionEdited {
		t.Errorf("expected %s, got %s", domain.ActionSectionEdited, entry.Action)
	}
	if entry.FieldChanged != "section_"+section.ID {
		t.Errorf("unexpected fieldChanged: %s", entry.FieldChanged)
	}
	if entry.OldValue != oldContent || entry.NewValue != "Revised overview content." {
		t.Errorf("old/new values not captured: %q -> %q", entry.OldValue, entry.NewValue)
	}
	if entry.UserID != "analyst-7" {
		t.Errorf("expected actor analyst-7, got %s", entry.UserID)
	}
	if entry.Reason != "Corrected customer description" {
		t.Errorf("unexpected reason: %s", entry.Reason)
	}

	versions, err := repo.ListSarVersions(ctx, generated.ID)
	if err != nil {
		t.Fatalf("ListSarVersions failed: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(versions))
	}
	if versions[0].Snapshot.Sections[0].Content != "Revised overview content." {
		t.Errorf("latest snapshot should carry edited content")
	}
}

func TestEditSectionBlankReason(t *testing.T) {
	svc, repo := newTestService(t)
	customerID := seedCustomer(t, repo)
	ctx := context.Background()

	generated, err := svc.Generate(ctx, customerID)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	section := generated.Sections[0]

	_, err = svc.EditSection(ctx, generated.ID, section.ID, "New content", "   ", "analyst-7")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got: %v", err)
	}

	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "reason" {
		t.Errorf("expected field-level error on reason, got: %v", err)
	}

	// Nothing may have been mutated.
	after, err := svc.GetSar(ctx, generated.ID)
	if err != nil {
		t.Fatalf("GetSar failed: %v", err)
	}
	if after.Version != 1 {
		t.Errorf("version must not change on rejected edit, got %d", after.Version)
	}
	if after.Sections[0].Content != section.Content {
		t.Errorf("content must not change on rejected edit")
	}
	if len(after.AuditLogs) != 1 {
		t.Errorf("no audit entry may be appended on rejected edit, got %d", len(after.AuditLogs))
	}
	versions, _ := repo.ListSarVersions(ctx, generated.ID)
	if len(versions) != 1 {
		t.Errorf("no snapshot may be appended on rejected edit, got %d", len(versions))
	}
}

func TestEditSectionWrongSar(t *testing.T) {
	svc, repo := newTestService(t)
	customerID := seedCustomer(t, repo)
	ctx := context.Background()

	first, err := svc.Generate(ctx, customerID)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	second, err := svc.Generate(ctx, customerID)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// Section belongs to the second SAR, addressed through the first.
	_, err = svc.EditSection(ctx, first.ID, second.Sections[0].ID, "x", "mismatch", "analyst-7")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign section, got: %v", err)
	}
}

func TestRepeatedEditsIncrementVersion(t *testing.T) {
	svc, repo := newTestService(t)
	customerID := seedCustomer(t, repo)
	ctx := context.Background()

	generated, err := svc.Generate(ctx, customerID)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	section := generated.Sections[1]

	const edits = 3
	for i := 0; i < edits; i++ {
		if _, err := svc.EditSection(ctx, generated.ID, section.ID,
			"Revision "+string(rune('A'+i)), "routine revision", "analyst-7"); err != nil {
			t.Fatalf("edit %d failed: %v", i, err)
		}
	}

	after, err := svc.GetSar(ctx, generated.ID)
	if err != nil {
		t.Fatalf("GetSar failed: %v", err)
	}
	if after.Version != 1+edits {
		t.Errorf("expected version %d, got %d", 1+edits, after.Version)
	}

	versions, _ := repo.ListSarVersions(ctx, generated.ID)
	if len(versions) != 1+edits {
		t.Errorf("expected %d snapshots, got %d", 1+edits, len(versions))
	}
}

func TestGetAuditTrailUnknownSar(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetAuditTrail(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}
