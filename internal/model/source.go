package model

import "strings"

// SourceType discriminates where a field value came from.
type SourceType string

const (
	SourceDocument  SourceType = "document"
	SourceExternal  SourceType = "external"
	SourceUserInput SourceType = "user_input"
	SourceDerived   SourceType = "derived"
)

// Source records the provenance of a single field value.
type Source struct {
	Type SourceType `json:"type"`
	// Name identifies the concrete origin, e.g. a document filename or the
	// knowledge-base name. Empty for user input.
	Name string `json:"name,omitempty"`
	// Derivation describes the formula for derived values.
	Derivation string `json:"derivation,omitempty"`
}

// NormalizeSource converts the legacy provenance encodings still present in
// persisted records into a single Source. Accepted shapes:
//
//	nil                          -> {type: user_input}
//	Source / map with "type"     -> pass through
//	["user_input"]               -> {type: user_input}
//	["deal-summary.pdf"]         -> {type: document, name: "deal-summary.pdf"}
//	"user_input" / "deal.pdf"    -> same as the array forms
//
// Everything deeper than the ingestion boundary works with Source only.
func NormalizeSource(input any) Source {
	switch v := input.(type) {
	case nil:
		return Source{Type: SourceUserInput}
	case Source:
		if v.Type == "" {
			return Source{Type: SourceUserInput}
		}
		return v
	case *Source:
		if v == nil {
			return Source{Type: SourceUserInput}
		}
		return NormalizeSource(*v)
	case map[string]any:
		if t, ok := v["type"].(string); ok && t != "" {
			s := Source{Type: SourceType(t)}
			if name, ok := v["name"].(string); ok {
				s.Name = name
			}
			if d, ok := v["derivation"].(string); ok {
				s.Derivation = d
			}
			return s
		}
		return Source{Type: SourceUserInput}
	case []any:
		if len(v) == 0 {
			return Source{Type: SourceUserInput}
		}
		return NormalizeSource(v[0])
	case []string:
		if len(v) == 0 {
			return Source{Type: SourceUserInput}
		}
		return NormalizeSource(v[0])
	case string:
		norm := strings.ToLower(strings.TrimSpace(v))
		if norm == "" || norm == "user_input" || norm == "user input" {
			return Source{Type: SourceUserInput}
		}
		return Source{Type: SourceDocument, Name: v}
	default:
		return Source{Type: SourceUserInput}
	}
}
