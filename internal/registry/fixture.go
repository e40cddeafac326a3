package registry

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadSchemaFromFile reads a YAML list of SchemaField from the given path and
// returns an indexed Schema.
func LoadSchemaFromFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read schema fixture")
	}
	return ParseSchema(data)
}

// ParseSchema parses YAML schema bytes into an indexed Schema.
func ParseSchema(data []byte) (*Schema, error) {
	var fields []SchemaField
	if err := yaml.Unmarshal(data, &fields); err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal schema fixture")
	}
	if len(fields) == 0 {
		return nil, eris.New("registry: schema fixture is empty")
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.ID == "" {
			return nil, eris.New("registry: schema field with empty id")
		}
		if seen[f.ID] {
			return nil, eris.Errorf("registry: duplicate schema field %s", f.ID)
		}
		seen[f.ID] = true
	}
	return NewSchema(fields), nil
}
