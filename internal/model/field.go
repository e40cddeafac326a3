package model

// AltValue is a displaced value kept alongside the winning one so that a
// reviewer can see what the other sources said.
type AltValue struct {
	Value  any    `json:"value"`
	Source Source `json:"source"`
}

// FieldRecord is a field's value plus provenance, divergence warnings, and
// alternates from losing sources.
type FieldRecord struct {
	Value       any        `json:"value"`
	Source      Source     `json:"source"`
	Warnings    []string   `json:"warnings,omitempty"`
	OtherValues []AltValue `json:"other_values,omitempty"`
}

// IsEmpty reports whether the record holds no usable value. Empty strings and
// empty slices count as empty; zero numbers do not.
func (f FieldRecord) IsEmpty() bool {
	return IsEmptyValue(f.Value)
}

// RecordAlternate stores a displaced value+source pair, replacing any prior
// alternate of the same source type. other_values holds at most one entry per
// source type.
func (f *FieldRecord) RecordAlternate(value any, src Source) {
	for i := range f.OtherValues {
		if f.OtherValues[i].Source.Type == src.Type {
			f.OtherValues[i] = AltValue{Value: value, Source: src}
			return
		}
	}
	f.OtherValues = append(f.OtherValues, AltValue{Value: value, Source: src})
}

// AddWarning appends a warning message, skipping exact duplicates.
func (f *FieldRecord) AddWarning(msg string) {
	for _, w := range f.Warnings {
		if w == msg {
			return
		}
	}
	f.Warnings = append(f.Warnings, msg)
}

// IsEmptyValue reports whether v should be treated as "no value" by the merge
// and derivation stages.
func IsEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
