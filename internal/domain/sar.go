package domain

import (
	"time"
)

// SAR status values. A draft can be edited; "published" is reserved for the
// filing step and is never set by the generation or edit paths.
const (
	SarStatusDraft     = "draft"
	SarStatusPublished = "published"
)

// The fixed narrative section order. Every generated SAR has exactly these
// four sections in this sequence.
const (
	SectionOverview           = "OVERVIEW"
	SectionTransactionPattern = "TRANSACTION_PATTERN"
	SectionSuspicionRationale = "SUSPICION_RATIONALE"
	SectionConclusion         = "CONCLUSION"
)

// SectionOrder returns the fixed section types in display order.
func SectionOrder() []string {
	return []string{
		SectionOverview,
		SectionTransactionPattern,
		SectionSuspicionRationale,
		SectionConclusion,
	}
}

// Confidence levels carried by sentences and derived for sections.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Audit log actions.
const (
	ActionSarGenerated  = "SAR_GENERATED"
	ActionSectionEdited = "SECTION_EDITED"
)

// SystemActor is the audit actor for machine-generated entries.
const SystemActor = "system"

// Sar is a Suspicious Activity Report for one customer. Version starts at 1
// and increments exactly once per successful section edit.
type Sar struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customerId"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	Version     int       `json:"version"`
	GeneratedBy string    `json:"generatedBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SarSection is one of the four narrative sections. Content is the only
// mutable field; every content change is paired with an AuditLog append and
// a SarVersion append in the same transaction.
type SarSection struct {
	ID              string    `json:"id"`
	SarID           string    `json:"sarId"`
	SectionType     string    `json:"sectionType"`
	Content         string    `json:"content"`
	ConfidenceLevel string    `json:"confidenceLevel"`
	Sequence        int       `json:"sequence"`
	CreatedAt       time.Time `json:"createdAt"`
}

// SarSentence is an immutable sentence record under a section, carrying the
// evidence links the generator declared for it. The transaction IDs are weak
// references; the evidence resolver looks them up and drops any that no
// longer resolve.
type SarSentence struct {
	ID                       string    `json:"id"`
	SectionID                string    `json:"sectionId"`
	Text                     string    `json:"sentenceText"`
	ConfidenceLevel          string    `json:"confidenceLevel"`
	SupportingTransactionIDs []string  `json:"supportingTransactionIds"`
	SupportingRules          []string  `json:"supportingRules"`
	Sequence                 int       `json:"sequence"`
	CreatedAt                time.Time `json:"createdAt"`
}

// AuditLog is an append-only provenance entry for a SAR. Reason is mandatory
// for user-initiated edits; system entries may omit it.
type AuditLog struct {
	ID           string    `json:"id"`
	SarID        string    `json:"sarId"`
	UserID       string    `json:"userId"`
	Action       string    `json:"action"`
	FieldChanged string    `json:"fieldChanged,omitempty"`
	OldValue     string    `json:"oldValue,omitempty"`
	NewValue     string    `json:"newValue,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// SarVersion is an append-only point-in-time snapshot of a SAR, one row per
// version number. The snapshot is a denormalized copy, not a diff.
type SarVersion struct {
	ID            string      `json:"id"`
	SarID         string      `json:"sarId"`
	VersionNumber int         `json:"versionNumber"`
	Snapshot      SarSnapshot `json:"snapshotData"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// SarSnapshot is the typed snapshot payload stored under each version.
// Sections keep their IDs so the differ can match by identity across
// versions.
type SarSnapshot struct {
	Sar      Sar          `json:"sar"`
	Sections []SarSection `json:"sections"`
}

// SectionWithSentences pairs a section with its ordered sentences.
type SectionWithSentences struct {
	SarSection
	Sentences []SarSentence `json:"sentences"`
}

// SarWithDetails is the fully hydrated report returned by the lifecycle
// manager: the SAR, its customer, ordered sections with sentences, and the
// audit trail (newest first).
type SarWithDetails struct {
	Sar
	Customer  Customer               `json:"customer"`
	Sections  []SectionWithSentences `json:"sections"`
	AuditLogs []AuditLog             `json:"auditLogs"`
}

// SarChange is a single entry in a version comparison.
type SarChange struct {
	SectionType string `json:"sectionType"`
	Type        string `json:"type"` // "added", "modified", "removed"
	OldContent  string `json:"oldContent,omitempty"`
	NewContent  string `json:"newContent,omitempty"`
}

// Change type values for SarChange.
const (
	ChangeAdded    = "added"
	ChangeModified = "modified"
	ChangeRemoved  = "removed"
)

// SarComparison is the result of diffing the two most recent versions.
type SarComparison struct {
	CurrentVersion  int         `json:"currentVersion"`
	PreviousVersion int         `json:"previousVersion"`
	Changes         []SarChange `json:"changes"`
}
