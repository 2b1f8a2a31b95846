// Package trace provides branching-event recording for organ tree analysis.
// This package has no dependencies on sim/; it stores plain data types.
package trace

// LateralRecord captures one processed lateral branching position.
type LateralRecord struct {
	ParentID     int
	ChildID      int     // -1 when no lateral emerged
	LateralIndex int     // index of the branching position along the parent axis
	Position     float64 // axial position on the parent [cm]
	Time         float64 // absolute emergence time [day]
	OrganType    string
	SubType      int
	Emerged      bool
	Reason       string // "emerged" or "no-successor"
}
