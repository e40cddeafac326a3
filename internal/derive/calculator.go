// Package derive fills computed fields from other fields. Derivation is
// lazy-once: a field holding any non-null value, whatever set it, is never
// recomputed.
package derive

import (
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// Derivation computes one field from the rest of the record. Compute returns
// (nil, false) when inputs are missing; incompleteness is expected, not an
// error.
type Derivation struct {
	FieldID string
	// Formula is the human-readable description stored into provenance.
	Formula string
	Compute func(content map[string]model.FieldRecord) (any, bool)
}

// Calculator applies an ordered derivation list. The order must be such that
// no derivation reads a field computed later in the list.
type Calculator struct {
	derivations []Derivation
}

// NewCalculator creates a Calculator over the given ordered derivations.
func NewCalculator(derivations []Derivation) *Calculator {
	return &Calculator{derivations: derivations}
}

// Apply runs every derivation against rec, in order. A field that already
// holds a non-null value is skipped. Failed computations are skipped
// silently. Returns the ids of fields it populated.
func (c *Calculator) Apply(rec *model.EntityRecord) []string {
	if rec.Content == nil {
		rec.Content = make(map[string]model.FieldRecord)
	}

	var derived []string
	for _, d := range c.derivations {
		if existing, ok := rec.Content[d.FieldID]; ok && !existing.IsEmpty() {
			continue
		}

		value, ok := d.Compute(rec.Content)
		if !ok || model.IsEmptyValue(value) {
			continue
		}

		existing := rec.Content[d.FieldID]
		updated := existing
		updated.Value = value
		updated.Source = model.Source{Type: model.SourceDerived, Derivation: d.Formula}
		rec.Content[d.FieldID] = updated
		derived = append(derived, d.FieldID)

		zap.L().Debug("derive: computed field",
			zap.String("field", d.FieldID),
			zap.String("formula", d.Formula),
		)
	}
	return derived
}

// DefaultDerivations returns the built-in deal metrics, ordered so that no
// entry depends on one computed after it.
func DefaultDerivations() []Derivation {
	return []Derivation{
		{
			FieldID: "debtYield",
			Formula: "noi / loanAmount * 100",
			Compute: ratio("noi", "loanAmount", 100),
		},
		{
			FieldID: "ltv",
			Formula: "loanAmount / purchasePrice * 100",
			Compute: ratio("loanAmount", "purchasePrice", 100),
		},
		{
			FieldID: "capRate",
			Formula: "noi / purchasePrice * 100",
			Compute: ratio("noi", "purchasePrice", 100),
		},
		{
			FieldID: "pricePerUnit",
			Formula: "purchasePrice / numberOfUnits",
			Compute: ratio("purchasePrice", "numberOfUnits", 1),
		},
	}
}

// ratio builds a Compute dividing numerator by denominator and scaling. A
// zero or missing denominator yields no value.
func ratio(numID, denID string, scale float64) func(map[string]model.FieldRecord) (any, bool) {
	return func(content map[string]model.FieldRecord) (any, bool) {
		num, ok := numericField(content, numID)
		if !ok {
			return nil, false
		}
		den, ok := numericField(content, denID)
		if !ok || den == 0 {
			return nil, false
		}
		return num / den * scale, true
	}
}

func numericField(content map[string]model.FieldRecord, fieldID string) (float64, bool) {
	fr, ok := content[fieldID]
	if !ok || fr.IsEmpty() {
		return 0, false
	}
	switch v := fr.Value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
