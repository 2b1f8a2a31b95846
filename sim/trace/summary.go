package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalPositions      int
	EmergedCount        int
	SkippedCount        int
	FirstEmergence      float64
	LastEmergence       float64
	MeanEmergence       float64
	SubTypeDistribution map[int]int // lateral subtype → count of emerged laterals
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		SubTypeDistribution: make(map[int]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalPositions = len(st.Laterals)
	total := 0.0
	for _, l := range st.Laterals {
		if !l.Emerged {
			summary.SkippedCount++
			continue
		}
		if summary.EmergedCount == 0 || l.Time < summary.FirstEmergence {
			summary.FirstEmergence = l.Time
		}
		if l.Time > summary.LastEmergence {
			summary.LastEmergence = l.Time
		}
		summary.EmergedCount++
		summary.SubTypeDistribution[l.SubType]++
		total += l.Time
	}
	if summary.EmergedCount > 0 {
		summary.MeanEmergence = total / float64(summary.EmergedCount)
	}
	return summary
}
