package trace

// TraceLevel controls the verbosity of branching tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelLaterals captures every processed lateral branching position.
	TraceLevelLaterals TraceLevel = "laterals"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:     true,
	TraceLevelLaterals: true,
	"":                 true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects branching records during a simulation.
type SimulationTrace struct {
	Config   TraceConfig
	Laterals []LateralRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:   config,
		Laterals: make([]LateralRecord, 0),
	}
}

// Enabled reports whether records should be collected. Safe on nil.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Config.Level == TraceLevelLaterals
}

// RecordLateral appends a lateral record.
func (st *SimulationTrace) RecordLateral(record LateralRecord) {
	st.Laterals = append(st.Laterals, record)
}

// Copy returns an independent trace with the same records. Safe on nil.
func (st *SimulationTrace) Copy() *SimulationTrace {
	if st == nil {
		return nil
	}
	c := NewSimulationTrace(st.Config)
	c.Laterals = append(c.Laterals, st.Laterals...)
	return c
}
