package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSource_Nil(t *testing.T) {
	got := NormalizeSource(nil)
	assert.Equal(t, Source{Type: SourceUserInput}, got)
}

func TestNormalizeSource_PassThrough(t *testing.T) {
	src := Source{Type: SourceDocument, Name: "deal-summary.pdf"}
	assert.Equal(t, src, NormalizeSource(src))
}

func TestNormalizeSource_EmptyTypedSource(t *testing.T) {
	got := NormalizeSource(Source{})
	assert.Equal(t, SourceUserInput, got.Type)
}

func TestNormalizeSource_NilPointer(t *testing.T) {
	var src *Source
	got := NormalizeSource(src)
	assert.Equal(t, SourceUserInput, got.Type)
}

func TestNormalizeSource_Map(t *testing.T) {
	got := NormalizeSource(map[string]any{
		"type": "derived",
		"name": "calc",
	})
	assert.Equal(t, SourceDerived, got.Type)
	assert.Equal(t, "calc", got.Name)
}

func TestNormalizeSource_MapWithDerivation(t *testing.T) {
	got := NormalizeSource(map[string]any{
		"type":       "derived",
		"derivation": "noi / loanAmount * 100",
	})
	assert.Equal(t, SourceDerived, got.Type)
	assert.Equal(t, "noi / loanAmount * 100", got.Derivation)
}

func TestNormalizeSource_MapWithoutType(t *testing.T) {
	got := NormalizeSource(map[string]any{"name": "orphan.pdf"})
	assert.Equal(t, SourceUserInput, got.Type)
	assert.Empty(t, got.Name)
}

func TestNormalizeSource_LegacyArray(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  Source
	}{
		{"user input array", []any{"user_input"}, Source{Type: SourceUserInput}},
		{"filename array", []any{"deal-summary.pdf"}, Source{Type: SourceDocument, Name: "deal-summary.pdf"}},
		{"string slice", []string{"om-2024.pdf"}, Source{Type: SourceDocument, Name: "om-2024.pdf"}},
		{"empty array", []any{}, Source{Type: SourceUserInput}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeSource(tc.input))
		})
	}
}

func TestNormalizeSource_LegacyString(t *testing.T) {
	assert.Equal(t, Source{Type: SourceUserInput}, NormalizeSource("user_input"))
	assert.Equal(t, Source{Type: SourceUserInput}, NormalizeSource("User Input"))
	assert.Equal(t, Source{Type: SourceUserInput}, NormalizeSource("  "))
	assert.Equal(t, Source{Type: SourceDocument, Name: "rent-roll.xlsx"}, NormalizeSource("rent-roll.xlsx"))
}

func TestNormalizeSource_UnknownShape(t *testing.T) {
	got := NormalizeSource(42)
	assert.Equal(t, SourceUserInput, got.Type)
}
