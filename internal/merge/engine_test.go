package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/registry"
)

func testSchema() *registry.Schema {
	return registry.NewSchema([]registry.SchemaField{
		{ID: "loanAmount", Section: "loan", Type: registry.TypeNumber},
		{ID: "noi", Section: "financials", Type: registry.TypeNumber},
		{ID: "lenderName", Section: "loan", Type: registry.TypeText},
		{ID: "debtYield", Section: "metrics", Type: registry.TypeNumber},
	})
}

func newRecord() *model.EntityRecord {
	return &model.EntityRecord{EntityID: "deal-1"}
}

func TestMerge_DocumentWinsOverKnowledgeBase(t *testing.T) {
	eng := NewEngine(testSchema())
	rec := newRecord()

	eng.Merge(rec,
		SourceMap{Name: "om.pdf", Values: map[string]any{"loanAmount": 1500000.0}},
		SourceMap{Name: "kb", Values: map[string]any{"loanAmount": 1484000.0}},
	)

	fr := rec.Content["loanAmount"]
	assert.Equal(t, 1500000.0, fr.Value)
	assert.Equal(t, model.SourceDocument, fr.Source.Type)
	assert.Equal(t, "om.pdf", fr.Source.Name)
}

func TestMerge_KnowledgeBaseFillsDocumentGaps(t *testing.T) {
	eng := NewEngine(testSchema())
	rec := newRecord()

	eng.Merge(rec,
		SourceMap{Name: "om.pdf", Values: map[string]any{"loanAmount": 1500000.0}},
		SourceMap{Name: "kb", Values: map[string]any{"lenderName": "Wells Fargo"}},
	)

	assert.Equal(t, model.SourceDocument, rec.Content["loanAmount"].Source.Type)
	assert.Equal(t, model.SourceExternal, rec.Content["lenderName"].Source.Type)
	assert.Equal(t, "Wells Fargo", rec.Content["lenderName"].Value)
}

func TestMerge_EmptySourceValueDoesNotWin(t *testing.T) {
	eng := NewEngine(testSchema())
	rec := newRecord()

	// Document supplies an empty string; knowledge base has the real value.
	eng.Merge(rec,
		SourceMap{Name: "om.pdf", Values: map[string]any{"lenderName": ""}},
		SourceMap{Name: "kb", Values: map[string]any{"lenderName": "Wells Fargo"}},
	)

	assert.Equal(t, "Wells Fargo", rec.Content["lenderName"].Value)
	assert.Equal(t, model.SourceExternal, rec.Content["lenderName"].Source.Type)
}

func TestMerge_LockedFieldUntouched(t *testing.T) {
	eng := NewEngine(testSchema())
	rec := newRecord()
	rec.Content = map[string]model.FieldRecord{
		"loanAmount": {Value: 1000000.0, Source: model.Source{Type: model.SourceUserInput}},
	}
	rec.LockedFields = map[string]bool{"loanAmount": true}

	eng.Merge(rec,
		SourceMap{Name: "om.pdf", Values: map[string]any{"loanAmount": 1500000.0}},
		SourceMap{Name: "kb", Values: map[string]any{"loanAmount": 1484000.0}},
	)

	fr := rec.Content["loanAmount"]
	assert.Equal(t, 1000000.0, fr.Value)
	assert.Equal(t, model.SourceUserInput, fr.Source.Type)
	assert.Empty(t, fr.OtherValues)
}

func TestMerge_LockedNeverPopulatedFieldMaterialized(t *testing.T) {
	eng := NewEngine(testSchema())
	rec := newRecord()
	rec.LockedFields = map[string]bool{"loanAmount": true}

	eng.Merge(rec,
		SourceMap{Name: "om.pdf", Values: map[string]any{"loanAmount": 1500000.0}},
		SourceMap{Name: "kb"},
	)

	// The lock keeps the sourced value out, but the field still exists as an
	// explicit null placeholder.
	fr, ok := rec.Content["loanAmount"]
	require.True(t, ok)
	assert.Nil(t, fr.Value)
	assert.Equal(t, model.SourceUserInput, fr.Source.Type)
}

func TestMerge_AbsentFieldsMaterialized(t *testing.T) {
	eng := NewEngine(testSchema())
	rec := newRecord()

	eng.Merge(rec, SourceMap{Name: "om.pdf"}, SourceMap{Name: "kb"})

	// Every schema field exists, explicitly null with user_input provenance.
	require.Len(t, rec.Content, 4)
	for id, fr := range rec.Content {
		assert.Nil(t, fr.Value, id)
		assert.Equal(t, model.SourceUserInput, fr.Source.Type, id)
	}
}

func TestMerge_ExistingValueSurvivesWhenSourcesSilent(t *testing.T) {
	eng := NewEngine(testSchema())
	rec := newRecord()
	rec.Content = map[string]model.FieldRecord{
		"debtYield": {Value: 7.2, Source: model.Source{Type: model.SourceUserInput}},
	}

	eng.Merge(rec, SourceMap{Name: "om.pdf"}, SourceMap{Name: "kb"})

	fr := rec.Content["debtYield"]
	assert.Equal(t, 7.2, fr.Value)
	assert.Equal(t, model.SourceUserInput, fr.Source.Type)
}

func TestMerge_DisplacedValueRecorded(t *testing.T) {
	eng := NewEngine(testSchema())
	rec := newRecord()
	rec.Content = map[string]model.FieldRecord{
		"loanAmount": {Value: 1484000.0, Source: model.Source{Type: model.SourceExternal, Name: "kb"}},
	}

	eng.Merge(rec,
		SourceMap{Name: "om.pdf", Values: map[string]any{"loanAmount": 1500000.0}},
		SourceMap{Name: "kb"},
	)

	fr := rec.Content["loanAmount"]
	assert.Equal(t, 1500000.0, fr.Value)
	require.Len(t, fr.OtherValues, 1)
	assert.Equal(t, 1484000.0, fr.OtherValues[0].Value)
	assert.Equal(t, model.SourceExternal, fr.OtherValues[0].Source.Type)
}

func TestMerge_EqualValueNotRecordedAsAlternate(t *testing.T) {
	eng := NewEngine(testSchema())
	rec := newRecord()
	rec.Content = map[string]model.FieldRecord{
		"loanAmount": {Value: 1500000, Source: model.Source{Type: model.SourceDocument, Name: "om.pdf"}},
	}

	// Same value, int vs float encoding: no alternate.
	eng.Merge(rec,
		SourceMap{Name: "om.pdf", Values: map[string]any{"loanAmount": 1500000.0}},
		SourceMap{Name: "kb"},
	)

	assert.Empty(t, rec.Content["loanAmount"].OtherValues)
}

func TestMerge_Idempotent(t *testing.T) {
	eng := NewEngine(testSchema())
	rec := newRecord()
	doc := SourceMap{Name: "om.pdf", Values: map[string]any{"loanAmount": 1500000.0, "noi": 250000.0}}
	kb := SourceMap{Name: "kb", Values: map[string]any{"lenderName": "Wells Fargo"}}

	eng.Merge(rec, doc, kb)
	first := rec.Clone()
	eng.Merge(rec, doc, kb)

	assert.Equal(t, first.Content, rec.Content)
}

func TestMerge_UnknownFieldsDropped(t *testing.T) {
	eng := NewEngine(testSchema())
	rec := newRecord()

	eng.Merge(rec,
		SourceMap{Name: "om.pdf", Values: map[string]any{"loanAmount": 1500000.0, "ebitda": 999.0}},
		SourceMap{Name: "kb"},
	)

	assert.NotContains(t, rec.Content, "ebitda")
}

func TestMerge_OnePerSourceTypeAcrossRuns(t *testing.T) {
	eng := NewEngine(testSchema())
	rec := newRecord()

	eng.Merge(rec,
		SourceMap{Name: "om.pdf"},
		SourceMap{Name: "kb", Values: map[string]any{"loanAmount": 1484000.0}},
	)
	eng.Merge(rec,
		SourceMap{Name: "om.pdf", Values: map[string]any{"loanAmount": 1500000.0}},
		SourceMap{Name: "kb", Values: map[string]any{"loanAmount": 1490000.0}},
	)
	eng.Merge(rec,
		SourceMap{Name: "om-v2.pdf", Values: map[string]any{"loanAmount": 1510000.0}},
		SourceMap{Name: "kb", Values: map[string]any{"loanAmount": 1495000.0}},
	)

	fr := rec.Content["loanAmount"]
	assert.Equal(t, 1510000.0, fr.Value)
	// Only one alternate per source type, however many runs displaced values.
	byType := map[model.SourceType]int{}
	for _, alt := range fr.OtherValues {
		byType[alt.Source.Type]++
	}
	for st, n := range byType {
		assert.Equal(t, 1, n, st)
	}
}

func TestApplyUserEdits_AlwaysWins(t *testing.T) {
	eng := NewEngine(testSchema())
	rec := newRecord()
	rec.Content = map[string]model.FieldRecord{
		"loanAmount": {Value: 1500000.0, Source: model.Source{Type: model.SourceDocument, Name: "om.pdf"}},
	}

	eng.ApplyUserEdits(rec, map[string]any{"loanAmount": 1475000.0})

	fr := rec.Content["loanAmount"]
	assert.Equal(t, 1475000.0, fr.Value)
	assert.Equal(t, model.SourceUserInput, fr.Source.Type)
	require.Len(t, fr.OtherValues, 1)
	assert.Equal(t, 1500000.0, fr.OtherValues[0].Value)
}

func TestApplyUserEdits_UnknownFieldDropped(t *testing.T) {
	eng := NewEngine(testSchema())
	rec := newRecord()

	eng.ApplyUserEdits(rec, map[string]any{"ebitda": 1.0})

	assert.NotContains(t, rec.Content, "ebitda")
}

func TestApplyUserEdits_EditsLockedField(t *testing.T) {
	eng := NewEngine(testSchema())
	rec := newRecord()
	rec.Content = map[string]model.FieldRecord{
		"noi": {Value: 250000.0, Source: model.Source{Type: model.SourceDocument}},
	}
	rec.LockedFields = map[string]bool{"noi": true}

	// Locks protect against sources, not against explicit user action.
	eng.ApplyUserEdits(rec, map[string]any{"noi": 260000.0})

	assert.Equal(t, 260000.0, rec.Content["noi"].Value)
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(1500000, 1500000.0))
	assert.True(t, valuesEqual("a", "a"))
	assert.False(t, valuesEqual("a", "b"))
	assert.True(t, valuesEqual([]any{"x"}, []any{"x"}))
	assert.False(t, valuesEqual(nil, 0))
}
