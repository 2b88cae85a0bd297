// Package sar implements the SAR lifecycle: risk scoring, narrative
// generation, audited section edits, version snapshots, version comparison
// and sentence-level evidence resolution.
package sar

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/rules"
)

// Generator provenance labels recorded on each SAR.
const (
	GeneratedByLLM      = "llm"
	GeneratedByTemplate = "template"
)

// DefaultActor is the audit actor used when a request does not identify
// the user.
const DefaultActor = "user"

const riskScoreTTL = 15 * time.Minute

// Config wires the service's collaborators. Cache and Bus are optional;
// a nil Bus disables event publishing, a nil Cache disables score caching.
type Config struct {
	Repo          domain.Repository
	Engine        *rules.Engine
	Generator     domain.NarrativeGenerator
	GeneratorName string
	Cache         domain.Cache
	Bus           domain.EventBus
	Logger        *slog.Logger
}

// Service is the SAR lifecycle manager.
type Service struct {
	repo          domain.Repository
	engine        *rules.Engine
	generator     domain.NarrativeGenerator
	generatorName string
	cache         domain.Cache
	bus           domain.EventBus
	logger        *slog.Logger
}

// NewService creates the lifecycle manager.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	generatorName := cfg.GeneratorName
	if generatorName == "" {
		generatorName = GeneratedByTemplate
	}
	return &Service{
		repo:          cfg.Repo,
		engine:        cfg.Engine,
		generator:     cfg.Generator,
		generatorName: generatorName,
		cache:         cfg.Cache,
		bus:           cfg.Bus,
		logger:        logger,
	}
}

// CalculateRisk scores a customer's full transaction history. Results are
// cached per customer until new data is ingested for them.
func (s *Service) CalculateRisk(ctx context.Context, customerID string) (*domain.RiskScoreResult, error) {
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	if s.cache != nil {
		cached, err := s.cache.GetRiskScore(ctx, customerID)
		if err != nil {
			s.logger.Warn("risk score cache read failed", "customerId", customerID, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	transactions, err := s.repo.ListTransactions(ctx, customerID)
	if err != nil {
		return nil, err
	}
	alerts, err := s.repo.ListAlerts(ctx, customerID)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Score(ctx, customerID, transactions, alerts)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetRiskScore(ctx, customerID, result, riskScoreTTL); err != nil {
			s.logger.Warn("risk score cache write failed", "customerId", customerID, "error", err)
		}
	}

	return result, nil
}

// Generate scores the customer, produces a narrative, and persists the
// complete SAR (report, sections, sentences, audit entry, version 1
// snapshot) in a single repository transaction. Returns the hydrated SAR.
func (s *Service) Generate(ctx context.Context, customerID string) (*domain.SarWithDetails, error) {
	customer, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	risk, err := s.CalculateRisk(ctx, customerID)
	if err != nil {
		return nil, err
	}

	transactions, err := s.repo.ListTransactions(ctx, customerID)
	if err != nil {
		return nil, err
	}

	narrative, err := s.generator.Generate(ctx, customer, transactions, risk)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sar := &domain.Sar{
		ID:          uuid.New().String(),
		CustomerID:  customerID,
		Title:       fmt.Sprintf("SAR for %s - %s", customer.Name, now.Format("2006-01-02")),
		Status:      domain.SarStatusDraft,
		Version:     1,
		GeneratedBy: s.generatorName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.repo.RunInTx(ctx, func(tx domain.Repository) error {
		if err := tx.CreateSar(ctx, sar); err != nil {
			return err
		}

		for seq, section := range narrative.Sections {
			record := &domain.SarSection{
				ID:              uuid.New().String(),
				SarID:           sar.ID,
				SectionType:     section.Type,
				Content:         section.Content,
				ConfidenceLevel: section.Confidence,
				Sequence:        seq,
				CreatedAt:       now,
			}
			if err := tx.CreateSarSection(ctx, record); err != nil {
				return err
			}

			for i, sentence := range section.Sentences {
				if err := tx.CreateSarSentence(ctx, &domain.SarSentence{
					ID:                       uuid.New().String(),
					SectionID:                record.ID,
					Text:                     sentence.Text,
					ConfidenceLevel:          sentence.Confidence,
					SupportingTransactionIDs: sentence.SupportingTransactionIDs,
					SupportingRules:          sentence.SupportingRules,
					Sequence:                 i,
					CreatedAt:                now,
				}); err != nil {
					return err
				}
			}
		}

		if err := tx.CreateAuditLog(ctx, &domain.AuditLog{
			ID:        uuid.New().String(),
			SarID:     sar.ID,
			UserID:    domain.SystemActor,
			Action:    domain.ActionSarGenerated,
			Reason:    "Initial AI generation",
			Timestamp: now,
		}); err != nil {
			return err
		}

		return snapshotSar(ctx, tx, sar)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("sar generated",
		"sarId", sar.ID, "customerId", customerID,
		"totalRiskScore", risk.TotalRiskScore, "generatedBy", s.generatorName)

	s.publish(ctx, domain.TopicSarGenerated, map[string]any{
		"sarId":          sar.ID,
		"customerId":     customerID,
		"totalRiskScore": risk.TotalRiskScore,
	})

	return s.GetSar(ctx, sar.ID)
}

// EditSection replaces a section's content. Reason is mandatory; the edit,
// its audit entry, the version bump and the new snapshot commit together.
func (s *Service) EditSection(ctx context.Context, sarID, sectionID, content, reason, actor string) (*domain.SarWithDetails, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, domain.NewValidationError("reason", "edit reason is required")
	}
	if actor == "" {
		actor = DefaultActor
	}

	now := time.Now().UTC()

	err := s.repo.RunInTx(ctx, func(tx domain.Repository) error {
		sar, err := tx.GetSar(ctx, sarID)
		if err != nil {
			return err
		}
		section, err := tx.GetSarSection(ctx, sectionID)
		if err != nil {
			return err
		}
		if section.SarID != sarID {
			return domain.ErrNotFound
		}

		oldContent := section.Content
		section.Content = content
		if err := tx.UpdateSarSection(ctx, section); err != nil {
			return err
		}

		if err := tx.CreateAuditLog(ctx, &domain.AuditLog{
			ID:           uuid.New().String(),
			SarID:        sarID,
			UserID:       actor,
			Action:       domain.ActionSectionEdited,
			FieldChanged: "section_" + sectionID,
			OldValue:     oldContent,
			NewValue:     content,
			Reason:       reason,
			Timestamp:    now,
		}); err != nil {
			return err
		}

		sar.Version++
		sar.UpdatedAt = now
		if err := tx.UpdateSar(ctx, sar); err != nil {
			return err
		}

		return snapshotSar(ctx, tx, sar)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("sar section edited",
		"sarId", sarID, "sectionId", sectionID, "actor", actor)

	s.publish(ctx, domain.TopicSectionEdited, map[string]any{
		"sarId":     sarID,
		"sectionId": sectionID,
		"editedBy":  actor,
	})

	return s.GetSar(ctx, sarID)
}

// GetSar returns the fully hydrated SAR.
func (s *Service) GetSar(ctx context.Context, sarID string) (*domain.SarWithDetails, error) {
	return hydrate(ctx, s.repo, sarID)
}

// ListSars returns all SARs, newest first, without hydration.
func (s *Service) ListSars(ctx context.Context) ([]*domain.Sar, error) {
	return s.repo.ListSars(ctx)
}

// GetAuditTrail returns a SAR's audit entries, newest first.
func (s *Service) GetAuditTrail(ctx context.Context, sarID string) ([]*domain.AuditLog, error) {
	if _, err := s.repo.GetSar(ctx, sarID); err != nil {
		return nil, err
	}
	return s.repo.ListAuditLogs(ctx, sarID)
}

// snapshotSar appends a version row capturing the SAR and its sections as
// they stand inside the current transaction.
func snapshotSar(ctx context.Context, repo domain.Repository, sar *domain.Sar) error {
	sections, err := repo.ListSarSections(ctx, sar.ID)
	if err != nil {
		return err
	}

	snapshot := domain.SarSnapshot{Sar: *sar, Sections: make([]domain.SarSection, len(sections))}
	for i, section := range sections {
		snapshot.Sections[i] = *section
	}

	return repo.CreateSarVersion(ctx, &domain.SarVersion{
		ID:            uuid.New().String(),
		SarID:         sar.ID,
		VersionNumber: sar.Version,
		Snapshot:      snapshot,
		CreatedAt:     time.Now().UTC(),
	})
}

// hydrate assembles a SarWithDetails from its rows.
func hydrate(ctx context.Context, repo domain.Repository, sarID string) (*domain.SarWithDetails, error) {
	sar, err := repo.GetSar(ctx, sarID)
	if err != nil {
		return nil, err
	}
	customer, err := repo.GetCustomer(ctx, sar.CustomerID)
	if err != nil {
		return nil, err
	}
	sections, err := repo.ListSarSections(ctx, sarID)
	if err != nil {
		return nil, err
	}
	logs, err := repo.ListAuditLogs(ctx, sarID)
	if err != nil {
		return nil, err
	}

	details := &domain.SarWithDetails{
		Sar:       *sar,
		Customer:  *customer,
		Sections:  make([]domain.SectionWithSentences, 0, len(sections)),
		AuditLogs: make([]domain.AuditLog, 0, len(logs)),
	}

	for _, section := range sections {
		sentences, err := repo.ListSarSentences(ctx, section.ID)
		if err != nil {
			return nil, err
		}
		withSentences := domain.SectionWithSentences{
			SarSection: *section,
			Sentences:  make([]domain.SarSentence, 0, len(sentences)),
		}
		for _, sentence := range sentences {
			withSentences.Sentences = append(withSentences.Sentences, *sentence)
		}
		details.Sections = append(details.Sections, withSentences)
	}

	for _, log := range logs {
		details.AuditLogs = append(details.AuditLogs, *log)
	}

	return details, nil
}

// publish sends a JSON event, best effort. Publish failures are logged and
// never fail the operation that triggered them.
func (s *Service) publish(ctx context.Context, topic string, payload map[string]any) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("event payload encoding failed", "topic", topic, "error", err)
		return
	}
	if err := s.bus.Publish(ctx, topic, data); err != nil {
		s.logger.Warn("event publish failed", "topic", topic, "error", err)
	}
}
