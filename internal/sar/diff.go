package sar

import (
	"context"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Compare diffs the two most recent version snapshots of a SAR. With fewer
// than two snapshots there is nothing to compare: both version fields carry
// the SAR's current version and the change list is empty.
//
// Sections are matched by ID across snapshots. Added and modified entries
// come out in the current snapshot's section order, removed entries in the
// previous snapshot's order.
func (s *Service) Compare(ctx context.Context, sarID string) (*domain.SarComparison, error) {
	sar, err := s.repo.GetSar(ctx, sarID)
	if err != nil {
		return nil, err
	}

	versions, err := s.repo.ListSarVersions(ctx, sarID)
	if err != nil {
		return nil, err
	}

	if len(versions) < 2 {
		return &domain.SarComparison{
			CurrentVersion:  sar.Version,
			PreviousVersion: sar.Version,
			Changes:         []domain.SarChange{},
		}, nil
	}

	current := versions[0]
	previous := versions[1]

	previousByID := make(map[string]domain.SarSection, len(previous.Snapshot.Sections))
	for _, section := range previous.Snapshot.Sections {
		previousByID[section.ID] = section
	}

	changes := []domain.SarChange{}
	seen := make(map[string]bool, len(current.Snapshot.Sections))

	for _, section := range current.Snapshot.Sections {
		seen[section.ID] = true

		old, existed := previousByID[section.ID]
		if !existed {
			changes = append(changes, domain.SarChange{
				SectionType: section.SectionType,
				Type:        domain.ChangeAdded,
				NewContent:  section.Content,
			})
			continue
		}
		if old.Content != section.Content {
			changes = append(changes, domain.SarChange{
				SectionType: section.SectionType,
				Type:        domain.ChangeModified,
				OldContent:  old.Content,
				NewContent:  section.Content,
			})
		}
	}

	for _, section := range previous.Snapshot.Sections {
		if !seen[section.ID] {
			changes = append(changes, domain.SarChange{
				SectionType: section.SectionType,
				Type:        domain.ChangeRemoved,
				OldContent:  section.Content,
			})
		}
	}

	return &domain.SarComparison{
		CurrentVersion:  current.VersionNumber,
		PreviousVersion: previous.VersionNumber,
		Changes:         changes,
	}, nil
}
