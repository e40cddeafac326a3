// Package registry holds the field schema: every field the reconciler knows
// about, its section and type, and the comparison rule the divergence
// detector applies to it. Loaded once at startup and read-only afterwards;
// no other package may hardcode field or section lists.
package registry

// Strategy selects how two values are compared for divergence.
type Strategy string

const (
	StrategyExact         Strategy = "exact"
	StrategyPercentDiff   Strategy = "percent_diff"
	StrategySemantic      Strategy = "semantic"
	StrategySetSimilarity Strategy = "set_similarity"
)

// FieldType is the declared value type of a schema field.
type FieldType string

const (
	TypeText    FieldType = "text"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeList    FieldType = "list"
)

// Rule is a per-field comparison rule: strategy, threshold, and optional
// named logic checks layered on top of the strategy comparison.
type Rule struct {
	Strategy Strategy `yaml:"strategy" json:"strategy"`
	// Threshold is the divergence tolerance. For percent_diff it is the
	// maximum relative difference; for semantic and set_similarity it is the
	// minimum similarity score. Unused by exact.
	Threshold float64 `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	// LogicChecks names predicates from the logic-check registry.
	LogicChecks []string `yaml:"logic_checks,omitempty" json:"logic_checks,omitempty"`
}

// SchemaField describes one field of the canonical record.
type SchemaField struct {
	ID      string    `yaml:"id" json:"id"`
	Section string    `yaml:"section" json:"section"`
	Type    FieldType `yaml:"type" json:"type"`
	Rule    Rule      `yaml:"rule" json:"rule"`
}

// Schema is an indexed, immutable collection of schema fields.
type Schema struct {
	Fields    []SchemaField
	byID      map[string]*SchemaField
	bySection map[string][]*SchemaField
}

// NewSchema builds an indexed Schema from a field list.
func NewSchema(fields []SchemaField) *Schema {
	s := &Schema{
		Fields:    fields,
		byID:      make(map[string]*SchemaField, len(fields)),
		bySection: make(map[string][]*SchemaField),
	}
	for i := range s.Fields {
		f := &s.Fields[i]
		s.byID[f.ID] = f
		s.bySection[f.Section] = append(s.bySection[f.Section], f)
	}
	return s
}

// ByID returns the schema field for the given id, or nil if not found.
func (s *Schema) ByID(id string) *SchemaField {
	return s.byID[id]
}

// BySection returns all fields in the given section.
func (s *Schema) BySection(section string) []*SchemaField {
	return s.bySection[section]
}

// Has reports whether the schema knows the given field id.
func (s *Schema) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Len returns the number of schema fields.
func (s *Schema) Len() int {
	return len(s.Fields)
}
