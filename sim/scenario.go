package sim

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/organsim/organsim/sim/trace"
)

// timeEpsilon absorbs rounding when stepping onto an output time.
const timeEpsilon = 1e-12

// Scenario describes a simulation run, loadable from a YAML file.
// Parameter sets are given inline, through a parameter file, or both;
// inline sets are registered last and win.
type Scenario struct {
	Seed          int64                 `yaml:"seed"`
	Dt            float64               `yaml:"dt"`
	OutputTimes   []float64             `yaml:"output_times"`
	ParameterFile string                `yaml:"parameter_file,omitempty"`
	Parameters    []*RandomParameterSet `yaml:"parameters,omitempty"`
	Bases         []BaseConfig          `yaml:"bases"`
	Trace         string                `yaml:"trace,omitempty"`
}

// BaseConfig places one base organ.
type BaseConfig struct {
	OrganType OrganType  `yaml:"organ_type"`
	SubType   int        `yaml:"sub_type"`
	Origin    [3]float64 `yaml:"origin"`
	Heading   [3]float64 `yaml:"heading"`
}

// LoadScenario reads, strictly parses and validates a YAML scenario file.
// A relative parameter_file is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if s.ParameterFile != "" && !filepath.IsAbs(s.ParameterFile) {
		s.ParameterFile = filepath.Join(filepath.Dir(path), s.ParameterFile)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks step size, output times, bases and inline parameter sets.
func (s *Scenario) Validate() error {
	if s.Dt <= 0 || math.IsNaN(s.Dt) {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalidArgument, s.Dt)
	}
	if len(s.OutputTimes) == 0 {
		return fmt.Errorf("%w: no output times", ErrInvalidArgument)
	}
	if !sort.Float64sAreSorted(s.OutputTimes) || s.OutputTimes[0] <= 0 {
		return fmt.Errorf("%w: output times must be positive and ascending", ErrInvalidArgument)
	}
	if len(s.Bases) == 0 {
		return fmt.Errorf("%w: no base organs", ErrInvalidArgument)
	}
	if !trace.IsValidTraceLevel(s.Trace) {
		return fmt.Errorf("%w: unknown trace level %q", ErrInvalidArgument, s.Trace)
	}
	if s.ParameterFile == "" && len(s.Parameters) == 0 {
		return fmt.Errorf("%w: neither parameter_file nor parameters given", ErrInvalidArgument)
	}
	for _, p := range s.Parameters {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("parameter set %q: %w", p.Name, err)
		}
	}
	return nil
}

// Build creates the organism: registers the parameter sets and adds the
// base organs.
func (s *Scenario) Build() (*Organism, error) {
	org := NewOrganism(s.Seed)
	var sets []*RandomParameterSet
	if s.ParameterFile != "" {
		fromFile, err := LoadParameterFile(s.ParameterFile)
		if err != nil {
			return nil, err
		}
		sets = append(sets, fromFile...)
	}
	sets = append(sets, s.Parameters...)
	for _, p := range sets {
		if err := org.SetOrganRandomParameter(p); err != nil {
			return nil, fmt.Errorf("parameter set %q: %w", p.Name, err)
		}
	}
	if s.Trace != "" {
		org.EnableTrace(trace.TraceLevel(s.Trace))
	}
	for i, b := range s.Bases {
		origin := r3.Vec{X: b.Origin[0], Y: b.Origin[1], Z: b.Origin[2]}
		heading := r3.Vec{X: b.Heading[0], Y: b.Heading[1], Z: b.Heading[2]}
		if _, err := org.AddBase(b.OrganType, b.SubType, origin, heading); err != nil {
			return nil, fmt.Errorf("base %d: %w", i, err)
		}
	}
	return org, nil
}

// Run simulates org in steps of at most Dt and calls visit at every output
// time. Steps are shortened so that each output time is hit exactly.
func (s *Scenario) Run(org *Organism, visit func(org *Organism) error) error {
	for _, until := range s.OutputTimes {
		for until-org.SimTime() > timeEpsilon {
			dt := math.Min(s.Dt, until-org.SimTime())
			if err := org.Simulate(dt); err != nil {
				return err
			}
		}
		if err := visit(org); err != nil {
			return err
		}
	}
	return nil
}
