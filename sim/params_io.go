package sim

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// parameterFile is the on-disk layout of a parameter file.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type parameterFile struct {
	Parameters []*RandomParameterSet `yaml:"parameters"`
}

// ReadInto decodes a single parameter set from r into p, replacing every
// field present in the document. Unknown fields are errors.
func ReadInto(p *RandomParameterSet, r io.Reader) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(p); err != nil {
		return fmt.Errorf("parsing parameter set: %w", err)
	}
	return p.Validate()
}

// Write encodes a single parameter set as YAML.
func Write(p *RandomParameterSet, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("writing parameter set %q: %w", p.Name, err)
	}
	return enc.Close()
}

// ReadParameterSets decodes a parameter file holding a "parameters" list.
func ReadParameterSets(r io.Reader) ([]*RandomParameterSet, error) {
	var pf parameterFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&pf); err != nil {
		return nil, fmt.Errorf("parsing parameter file: %w", err)
	}
	for _, p := range pf.Parameters {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("parameter set %q: %w", p.Name, err)
		}
	}
	return pf.Parameters, nil
}

// WriteParameterSets encodes sets in the layout read by ReadParameterSets.
func WriteParameterSets(w io.Writer, sets []*RandomParameterSet) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(parameterFile{Parameters: sets}); err != nil {
		return fmt.Errorf("writing parameter file: %w", err)
	}
	return enc.Close()
}

// LoadParameterFile reads and validates a YAML parameter file.
func LoadParameterFile(path string) ([]*RandomParameterSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading parameter file: %w", err)
	}
	return ReadParameterSets(bytes.NewReader(data))
}

// SaveParameterFile writes sets to path.
func SaveParameterFile(path string, sets []*RandomParameterSet) error {
	var buf bytes.Buffer
	if err := WriteParameterSets(&buf, sets); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("saving parameter file: %w", err)
	}
	return nil
}
