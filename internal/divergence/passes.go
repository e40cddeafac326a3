package divergence

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/registry"
)

// Detector runs the forward and backward divergence passes over a schema.
type Detector struct {
	schema *registry.Schema
}

// NewDetector creates a Detector for the given schema.
func NewDetector(schema *registry.Schema) *Detector {
	return &Detector{schema: schema}
}

// Forward runs the merge-time pass: for every unlocked field where both the
// document and the knowledge base supplied a value, compare the two and
// append any warning to the field's record. Logic checks run against the
// merged content regardless of which sources contributed. Locked fields are
// skipped; the forward pass protects fresh merges, and a locked field took
// nothing from either source.
func (d *Detector) Forward(rec *model.EntityRecord, docVals, kbVals map[string]any) []model.Warning {
	var warnings []model.Warning

	for _, sf := range d.schema.Fields {
		if rec.LockedFields[sf.ID] {
			continue
		}
		docVal, hasDoc := docVals[sf.ID]
		kbVal, hasKB := kbVals[sf.ID]
		if hasDoc && hasKB && !model.IsEmptyValue(docVal) && !model.IsEmptyValue(kbVal) {
			msg, err := Compare(docVal, kbVal, sf.Rule)
			if err != nil {
				// Malformed rule or untyped value: skip this field's check.
				zap.L().Warn("divergence: skipping comparison",
					zap.String("field", sf.ID),
					zap.Error(err),
				)
			} else if msg != "" {
				msg = "document and knowledge base disagree: " + msg
				fr := rec.Content[sf.ID]
				fr.AddWarning(msg)
				rec.Content[sf.ID] = fr
				warnings = append(warnings, model.Warning{FieldID: sf.ID, Message: msg})
			}
		}

		for _, name := range sf.Rule.LogicChecks {
			check := LookupLogicCheck(name)
			if check == nil {
				zap.L().Warn("divergence: unknown logic check",
					zap.String("field", sf.ID),
					zap.String("check", name),
				)
				continue
			}
			if msg := check(rec.Content); msg != "" {
				fr := rec.Content[sf.ID]
				fr.AddWarning(msg)
				rec.Content[sf.ID] = fr
				warnings = append(warnings, model.Warning{FieldID: sf.ID, Message: msg})
			}
		}
	}

	return warnings
}

// Backward runs the read-time staleness pass: compare the record's current
// value (user-edited or not, locked or not) against the latest source values.
// It never mutates the record; locks are deliberately ignored because the
// pass only informs, it does not overwrite.
func (d *Detector) Backward(rec *model.EntityRecord, docVals, kbVals map[string]any) []model.Warning {
	var warnings []model.Warning

	for _, sf := range d.schema.Fields {
		fr := rec.Field(sf.ID)
		if fr.IsEmpty() {
			continue
		}

		for _, src := range []struct {
			label string
			vals  map[string]any
		}{
			{"document", docVals},
			{"knowledge base", kbVals},
		} {
			srcVal, ok := src.vals[sf.ID]
			if !ok || model.IsEmptyValue(srcVal) {
				continue
			}
			msg, err := Compare(fr.Value, srcVal, sf.Rule)
			if err != nil {
				zap.L().Warn("divergence: skipping backward comparison",
					zap.String("field", sf.ID),
					zap.String("source", src.label),
					zap.Error(err),
				)
				continue
			}
			if msg != "" {
				warnings = append(warnings, model.Warning{
					FieldID: sf.ID,
					Message: fmt.Sprintf("differs from %s: %v vs %v", src.label, fr.Value, srcVal),
				})
			}
		}
	}

	return warnings
}
