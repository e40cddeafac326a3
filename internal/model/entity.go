package model

import "time"

// EntityStatus is the lifecycle status of a staging record.
type EntityStatus string

const (
	EntityStatusDraft     EntityStatus = "draft"
	EntityStatusPublished EntityStatus = "published"
)

// EntityRecord is the mutable staging row for one entity: the reconciled
// content plus bookkeeping metadata. One row per entity, updated in place on
// every pipeline run.
type EntityRecord struct {
	ID                  string                 `json:"id"`
	EntityID            string                 `json:"entity_id"`
	Content             map[string]FieldRecord `json:"content"`
	LockedFields        map[string]bool        `json:"locked_fields"`
	CompletenessPercent int                    `json:"completeness_percent"`
	VersionNumber       int                    `json:"version_number"`
	Status              EntityStatus           `json:"status"`
	CreatedBy           string                 `json:"created_by,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

// Field returns the record for fieldID, or a zero FieldRecord if absent.
func (e *EntityRecord) Field(fieldID string) FieldRecord {
	if e.Content == nil {
		return FieldRecord{}
	}
	return e.Content[fieldID]
}

// Clone returns a deep copy. The pipeline mutates a clone and writes it back
// so a failed run never leaves a half-merged record behind.
func (e *EntityRecord) Clone() *EntityRecord {
	out := *e
	out.Content = make(map[string]FieldRecord, len(e.Content))
	for k, v := range e.Content {
		fr := v
		fr.Warnings = append([]string(nil), v.Warnings...)
		fr.OtherValues = append([]AltValue(nil), v.OtherValues...)
		out.Content[k] = fr
	}
	out.LockedFields = make(map[string]bool, len(e.LockedFields))
	for k, v := range e.LockedFields {
		out.LockedFields[k] = v
	}
	return &out
}

// ProductionSnapshot is an immutable published copy of an entity's reconciled
// content. Append-only; consumers read the row with the latest CreatedAt.
type ProductionSnapshot struct {
	ID                  string                 `json:"id"`
	EntityID            string                 `json:"entity_id"`
	Content             map[string]FieldRecord `json:"content"`
	CompletenessPercent int                    `json:"completeness_percent"`
	VersionNumber       int                    `json:"version_number"`
	CreatedBy           string                 `json:"created_by,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
}
