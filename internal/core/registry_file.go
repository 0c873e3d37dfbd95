package core

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// registryFile is the on-disk layout of a table registry:
//
//	tables:
//	  - name: alpaca_stocks
//	    group: finance
//	    primary_key: id
//	    unique_constraint: symbol
//	  - name: kv_store
//	    primary_key: key
//	    json_columns: [value]
type registryFile struct {
	Tables []TableSpec `yaml:"tables"`
}

// LoadRegistryFile reads a YAML registry. Tables keep their file order.
func LoadRegistryFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	reg, err := ParseRegistry(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("registry file %s: %w", path, err)
	}
	return reg, nil
}

// ParseRegistry decodes a YAML registry from r. Unknown keys are rejected so
// typos such as "primarykey" fail loudly.
func ParseRegistry(r io.Reader) (*Registry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f registryFile
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: no tables defined", ErrInvalidRegistry)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidRegistry, err)
	}
	if len(f.Tables) == 0 {
		return nil, fmt.Errorf("%w: no tables defined", ErrInvalidRegistry)
	}
	return NewRegistry(f.Tables...)
}
