package model

import (
	"strconv"
	"strings"
)

// CoerceContent normalizes a raw content map (as unmarshaled from a staging
// row, which may predate the rich field format) into map[field]FieldRecord.
// Flat values become user-input records; legacy "sources" arrays and string
// sources are folded into the single Source shape.
func CoerceContent(raw map[string]any) map[string]FieldRecord {
	out := make(map[string]FieldRecord, len(raw))
	for key, item := range raw {
		out[key] = CoerceField(item)
	}
	return out
}

// CoerceField converts one raw content entry into a FieldRecord.
func CoerceField(item any) FieldRecord {
	m, ok := item.(map[string]any)
	if !ok {
		// Flat legacy value.
		return FieldRecord{Value: item, Source: Source{Type: SourceUserInput}}
	}

	_, hasValue := m["value"]
	_, hasSource := m["source"]
	_, hasSources := m["sources"]
	if !hasValue && !hasSource && !hasSources {
		// A plain object value, not a rich record.
		return FieldRecord{Value: item, Source: Source{Type: SourceUserInput}}
	}

	srcInput := m["source"]
	if srcInput == nil {
		srcInput = m["sources"]
	}

	fr := FieldRecord{
		Value:  m["value"],
		Source: NormalizeSource(srcInput),
	}
	if ws, ok := m["warnings"].([]any); ok {
		for _, w := range ws {
			if s, ok := w.(string); ok {
				fr.Warnings = append(fr.Warnings, s)
			}
		}
	}
	if ovs, ok := m["other_values"].([]any); ok {
		for _, ov := range ovs {
			om, ok := ov.(map[string]any)
			if !ok {
				continue
			}
			fr.RecordAlternate(om["value"], NormalizeSource(om["source"]))
		}
	}
	return fr
}

// ParseCompleteness parses a completeness percentage from the loose encodings
// found in legacy records (number, numeric string, anything else -> 0).
func ParseCompleteness(value any) int {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v != v { // NaN
			return 0
		}
		return int(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || parsed != parsed {
			return 0
		}
		return int(parsed)
	case []byte:
		return ParseCompleteness(string(v))
	default:
		return 0
	}
}
