package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseFile parses a collection definition from a YAML file.
func ParseFile(path string) (Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Collection{}, fmt.Errorf("read file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse parses a collection definition from YAML bytes.
func Parse(data []byte) (Collection, error) {
	var col Collection
	if err := yaml.Unmarshal(data, &col); err != nil {
		return Collection{}, fmt.Errorf("parse yaml: %w", err)
	}

	if err := col.Validate(); err != nil {
		return Collection{}, err
	}

	return col, nil
}

// ParseDir parses all collection definitions from a directory, including
// subdirectories.
func ParseDir(dir string) ([]Collection, error) {
	var cols []Collection

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			sub, err := ParseDir(path)
			if err != nil {
				return nil, err
			}
			cols = append(cols, sub...)
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		col, err := ParseFile(path)
		if err != nil {
			return nil, err
		}

		cols = append(cols, col)
	}

	return cols, nil
}
