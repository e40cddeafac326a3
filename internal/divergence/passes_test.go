package divergence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/registry"
)

func testSchema() *registry.Schema {
	return registry.NewSchema([]registry.SchemaField{
		{ID: "noi", Section: "financials", Type: registry.TypeNumber,
			Rule: registry.Rule{Strategy: registry.StrategyPercentDiff, Threshold: 0.03, LogicChecks: []string{"noi_positive"}}},
		{ID: "loanAmount", Section: "loan", Type: registry.TypeNumber,
			Rule: registry.Rule{Strategy: registry.StrategyPercentDiff, Threshold: 0.03}},
		{ID: "lenderName", Section: "loan", Type: registry.TypeText,
			Rule: registry.Rule{Strategy: registry.StrategySemantic, Threshold: 0.8}},
	})
}

func TestForward_FlagsDisagreement(t *testing.T) {
	det := NewDetector(testSchema())
	rec := &model.EntityRecord{
		EntityID: "deal-1",
		Content:  content(map[string]any{"noi": 250000.0}),
	}

	warnings := det.Forward(rec,
		map[string]any{"noi": 250000.0},
		map[string]any{"noi": 200000.0},
	)

	require.Len(t, warnings, 1)
	assert.Equal(t, "noi", warnings[0].FieldID)
	assert.Contains(t, warnings[0].Message, "document and knowledge base disagree")

	// Warning also lands on the field record.
	assert.NotEmpty(t, rec.Content["noi"].Warnings)
}

func TestForward_AgreementWithinTolerance(t *testing.T) {
	det := NewDetector(testSchema())
	rec := &model.EntityRecord{
		EntityID: "deal-1",
		Content:  content(map[string]any{"noi": 250000.0}),
	}

	warnings := det.Forward(rec,
		map[string]any{"noi": 250000.0},
		map[string]any{"noi": 248000.0},
	)
	assert.Empty(t, warnings)
}

func TestForward_SkipsLockedFields(t *testing.T) {
	det := NewDetector(testSchema())
	rec := &model.EntityRecord{
		EntityID:     "deal-1",
		Content:      content(map[string]any{"noi": 250000.0}),
		LockedFields: map[string]bool{"noi": true},
	}

	warnings := det.Forward(rec,
		map[string]any{"noi": 250000.0},
		map[string]any{"noi": 100000.0},
	)
	assert.Empty(t, warnings)
}

func TestForward_SingleSourceNoComparison(t *testing.T) {
	det := NewDetector(testSchema())
	rec := &model.EntityRecord{
		EntityID: "deal-1",
		Content:  content(map[string]any{"loanAmount": 1000000.0}),
	}

	// Only the document has loanAmount; nothing to compare against.
	warnings := det.Forward(rec,
		map[string]any{"loanAmount": 1000000.0},
		map[string]any{},
	)
	assert.Empty(t, warnings)
}

func TestForward_LogicCheckRuns(t *testing.T) {
	det := NewDetector(testSchema())
	rec := &model.EntityRecord{
		EntityID: "deal-1",
		Content:  content(map[string]any{"noi": -5000.0}),
	}

	warnings := det.Forward(rec, map[string]any{}, map[string]any{})

	require.Len(t, warnings, 1)
	assert.Equal(t, "noi", warnings[0].FieldID)
	assert.Contains(t, warnings[0].Message, "not positive")
}

func TestForward_ComparisonErrorSkipsField(t *testing.T) {
	det := NewDetector(testSchema())
	rec := &model.EntityRecord{
		EntityID: "deal-1",
		Content:  content(map[string]any{"loanAmount": "a lot"}),
	}

	// Non-numeric value under percent_diff: check is skipped, run continues.
	warnings := det.Forward(rec,
		map[string]any{"loanAmount": "a lot"},
		map[string]any{"loanAmount": 1000000.0},
	)
	assert.Empty(t, warnings)
}

func TestBackward_FlagsStaleValue(t *testing.T) {
	det := NewDetector(testSchema())
	rec := &model.EntityRecord{
		EntityID: "deal-1",
		Content:  content(map[string]any{"noi": 250000.0}),
	}

	warnings := det.Backward(rec,
		map[string]any{"noi": 300000.0},
		map[string]any{},
	)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "differs from document")
}

func TestBackward_IgnoresLocks(t *testing.T) {
	det := NewDetector(testSchema())
	rec := &model.EntityRecord{
		EntityID:     "deal-1",
		Content:      content(map[string]any{"noi": 250000.0}),
		LockedFields: map[string]bool{"noi": true},
	}

	// Locked fields still get flagged; the pass informs, never overwrites.
	warnings := det.Backward(rec,
		map[string]any{"noi": 300000.0},
		map[string]any{},
	)
	assert.Len(t, warnings, 1)
}

func TestBackward_NeverMutates(t *testing.T) {
	det := NewDetector(testSchema())
	rec := &model.EntityRecord{
		EntityID: "deal-1",
		Content:  content(map[string]any{"noi": 250000.0}),
	}

	det.Backward(rec, map[string]any{"noi": 300000.0}, map[string]any{})

	assert.Empty(t, rec.Content["noi"].Warnings)
	assert.Equal(t, 250000.0, rec.Content["noi"].Value)
}

func TestBackward_SkipsEmptyCurrentValues(t *testing.T) {
	det := NewDetector(testSchema())
	rec := &model.EntityRecord{
		EntityID: "deal-1",
		Content:  map[string]model.FieldRecord{"noi": {Value: nil}},
	}

	warnings := det.Backward(rec, map[string]any{"noi": 300000.0}, map[string]any{})
	assert.Empty(t, warnings)
}

func TestBackward_BothSourcesCanFlag(t *testing.T) {
	det := NewDetector(testSchema())
	rec := &model.EntityRecord{
		EntityID: "deal-1",
		Content:  content(map[string]any{"lenderName": "Wells Fargo"}),
	}

	warnings := det.Backward(rec,
		map[string]any{"lenderName": "JPMorgan Chase"},
		map[string]any{"lenderName": "Goldman Sachs"},
	)
	assert.Len(t, warnings, 2)
}
