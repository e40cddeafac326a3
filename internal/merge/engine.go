// Package merge implements the forward sanity check: the lock-aware
// waterfall that folds freshly fetched source maps into the canonical record.
package merge

import (
	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/registry"
)

// SourceMap is one adapter's opinion: a flat field_id -> value map plus the
// origin name recorded into provenance.
type SourceMap struct {
	Name   string
	Values map[string]any
}

// Engine merges document and knowledge-base maps into an entity record.
type Engine struct {
	schema *registry.Schema
}

// NewEngine creates a merge engine bound to the schema.
func NewEngine(schema *registry.Schema) *Engine {
	return &Engine{schema: schema}
}

// Merge applies the waterfall to every schema field, in place on rec:
//
//   - locked fields are left untouched, whatever the sources say; a locked
//     field the record never held still gets the null placeholder
//   - document wins over knowledge base wins over the existing value
//   - fields no source supplies and the record never held are set to an
//     explicit {value: nil, source: user_input} so "not yet provided" is
//     distinguishable from "not yet processed"
//   - a displaced value is recorded into other_values, replacing any prior
//     alternate of the same source type
//
// Payload keys absent from the schema are dropped. rec.Content is allocated
// if nil, so Merge also bootstraps a first-run record.
func (e *Engine) Merge(rec *model.EntityRecord, doc, kb SourceMap) {
	if rec.Content == nil {
		rec.Content = make(map[string]model.FieldRecord, e.schema.Len())
	}

	e.dropUnknown(doc)
	e.dropUnknown(kb)

	for _, sf := range e.schema.Fields {
		if rec.LockedFields[sf.ID] {
			// Locked fields keep their value, but still get materialized if
			// the record never held them.
			if _, ok := rec.Content[sf.ID]; !ok {
				rec.Content[sf.ID] = model.FieldRecord{
					Value:  nil,
					Source: model.Source{Type: model.SourceUserInput},
				}
			}
			continue
		}

		existing, hasExisting := rec.Content[sf.ID]

		var incoming any
		var src model.Source
		if v, ok := doc.Values[sf.ID]; ok && !model.IsEmptyValue(v) {
			incoming = v
			src = model.Source{Type: model.SourceDocument, Name: doc.Name}
		} else if v, ok := kb.Values[sf.ID]; ok && !model.IsEmptyValue(v) {
			incoming = v
			src = model.Source{Type: model.SourceExternal, Name: kb.Name}
		} else {
			// Neither source has an opinion. Keep whatever the record holds;
			// materialize the field only if it was never processed.
			if !hasExisting {
				rec.Content[sf.ID] = model.FieldRecord{
					Value:  nil,
					Source: model.Source{Type: model.SourceUserInput},
				}
			}
			continue
		}

		updated := existing
		if hasExisting && !existing.IsEmpty() && !valuesEqual(existing.Value, incoming) {
			updated.RecordAlternate(existing.Value, existing.Source)
		}
		updated.Value = incoming
		updated.Source = src
		rec.Content[sf.ID] = updated
	}
}

// ApplyUserEdits sets explicit user-provided values onto the record,
// preserving existing warnings and alternates. Locks do not gate edits; they
// protect against source overwrite, not against the user.
func (e *Engine) ApplyUserEdits(rec *model.EntityRecord, edits map[string]any) {
	if rec.Content == nil {
		rec.Content = make(map[string]model.FieldRecord, len(edits))
	}
	for fieldID, value := range edits {
		if !e.schema.Has(fieldID) {
			zap.L().Debug("merge: dropping unknown field from user edit",
				zap.String("field", fieldID),
			)
			continue
		}
		existing, hasExisting := rec.Content[fieldID]
		updated := existing
		if hasExisting && !existing.IsEmpty() &&
			existing.Source.Type != model.SourceUserInput &&
			!valuesEqual(existing.Value, value) {
			updated.RecordAlternate(existing.Value, existing.Source)
		}
		updated.Value = value
		updated.Source = model.Source{Type: model.SourceUserInput}
		rec.Content[fieldID] = updated
	}
}

func (e *Engine) dropUnknown(sm SourceMap) {
	for fieldID := range sm.Values {
		if !e.schema.Has(fieldID) {
			zap.L().Debug("merge: dropping unknown field from source payload",
				zap.String("field", fieldID),
				zap.String("source", sm.Name),
			)
			delete(sm.Values, fieldID)
		}
	}
}
