package personality

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk shape of an operator-supplied personality
// catalog. Example:
//
//	personalities:
//	  - id: budget-hawk
//	    name: BudgetHawk
//	    tags: ["Cost Control"]
//	    traits: |
//	      - You scrutinize every line item
type catalogFile struct {
	Personalities []Descriptor `yaml:"personalities"`
}

// loadCatalog reads and parses a YAML personality catalog.
// Entries without an id are rejected so a malformed file cannot silently
// register an unreachable personality.
func loadCatalog(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	for i, d := range file.Personalities {
		if d.ID == "" {
			return nil, fmt.Errorf("catalog entry %d is missing an id", i)
		}
		if d.Name == "" {
			file.Personalities[i].Name = d.ID
		}
	}

	return file.Personalities, nil
}
