package derive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reconcile-cli/internal/model"
)

func record(values map[string]any) *model.EntityRecord {
	content := make(map[string]model.FieldRecord, len(values))
	for k, v := range values {
		content[k] = model.FieldRecord{Value: v, Source: model.Source{Type: model.SourceDocument}}
	}
	return &model.EntityRecord{EntityID: "deal-1", Content: content}
}

func TestApply_DebtYield(t *testing.T) {
	calc := NewCalculator(DefaultDerivations())
	rec := record(map[string]any{
		"noi":        250000.0,
		"loanAmount": 1500000.0,
	})

	derived := calc.Apply(rec)

	assert.Contains(t, derived, "debtYield")
	fr := rec.Content["debtYield"]
	assert.InDelta(t, 16.67, fr.Value.(float64), 0.01)
	assert.Equal(t, model.SourceDerived, fr.Source.Type)
	assert.Equal(t, "noi / loanAmount * 100", fr.Source.Derivation)
}

func TestApply_AllMetrics(t *testing.T) {
	calc := NewCalculator(DefaultDerivations())
	rec := record(map[string]any{
		"noi":           250000.0,
		"loanAmount":    1500000.0,
		"purchasePrice": 2000000.0,
		"numberOfUnits": 40.0,
	})

	derived := calc.Apply(rec)
	assert.ElementsMatch(t, []string{"debtYield", "ltv", "capRate", "pricePerUnit"}, derived)

	assert.InDelta(t, 75.0, rec.Content["ltv"].Value.(float64), 0.001)
	assert.InDelta(t, 12.5, rec.Content["capRate"].Value.(float64), 0.001)
	assert.InDelta(t, 50000.0, rec.Content["pricePerUnit"].Value.(float64), 0.001)
}

func TestApply_SkipsExistingValue(t *testing.T) {
	calc := NewCalculator(DefaultDerivations())
	rec := record(map[string]any{
		"noi":        250000.0,
		"loanAmount": 1500000.0,
	})
	// User already set debtYield by hand. Lazy-once: never recomputed.
	rec.Content["debtYield"] = model.FieldRecord{
		Value:  7.2,
		Source: model.Source{Type: model.SourceUserInput},
	}

	derived := calc.Apply(rec)

	assert.NotContains(t, derived, "debtYield")
	assert.Equal(t, 7.2, rec.Content["debtYield"].Value)
	assert.Equal(t, model.SourceUserInput, rec.Content["debtYield"].Source.Type)
}

func TestApply_MissingInputs(t *testing.T) {
	calc := NewCalculator(DefaultDerivations())
	rec := record(map[string]any{"noi": 250000.0})

	derived := calc.Apply(rec)

	assert.Empty(t, derived)
	// A skipped derivation leaves the field untouched, not nulled.
	_, exists := rec.Content["debtYield"]
	assert.False(t, exists)
}

func TestApply_ZeroDenominator(t *testing.T) {
	calc := NewCalculator(DefaultDerivations())
	rec := record(map[string]any{
		"noi":        250000.0,
		"loanAmount": 0.0,
	})

	derived := calc.Apply(rec)
	assert.Empty(t, derived)
}

func TestApply_NullDerivedFieldRecomputed(t *testing.T) {
	calc := NewCalculator(DefaultDerivations())
	rec := record(map[string]any{
		"noi":        300000.0,
		"loanAmount": 1500000.0,
	})
	// A null placeholder does not count as a held value.
	rec.Content["debtYield"] = model.FieldRecord{
		Value:  nil,
		Source: model.Source{Type: model.SourceUserInput},
	}

	derived := calc.Apply(rec)

	require.Contains(t, derived, "debtYield")
	assert.InDelta(t, 20.0, rec.Content["debtYield"].Value.(float64), 0.001)
}

func TestApply_NumericStrings(t *testing.T) {
	calc := NewCalculator(DefaultDerivations())
	rec := record(map[string]any{
		"noi":        "250000",
		"loanAmount": "1250000",
	})

	derived := calc.Apply(rec)
	require.Contains(t, derived, "debtYield")
	assert.InDelta(t, 20.0, rec.Content["debtYield"].Value.(float64), 0.001)
}

func TestApply_NilContent(t *testing.T) {
	calc := NewCalculator(DefaultDerivations())
	rec := &model.EntityRecord{EntityID: "deal-1"}

	derived := calc.Apply(rec)
	assert.Empty(t, derived)
	assert.NotNil(t, rec.Content)
}
