package trace

// BatchSummary aggregates statistics from a BatchTrace.
type BatchSummary struct {
	TotalVariants int
	ByStatus      map[Status]int
	TotalAttempts int
	MaxAttempts   int
	BestVariant   string  // lowest winning force across the batch (select only)
	BestForce     float64
}

// Summarize computes aggregate statistics from a BatchTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(bt *BatchTrace) *BatchSummary {
	summary := &BatchSummary{
		ByStatus: make(map[Status]int),
	}
	if bt == nil {
		return summary
	}

	summary.TotalVariants = len(bt.Records)
	for _, r := range bt.Records {
		summary.ByStatus[r.Status]++
		summary.TotalAttempts += r.Attempts
		if r.Attempts > summary.MaxAttempts {
			summary.MaxAttempts = r.Attempts
		}
		if r.Status == StatusCompleted && r.Winner != "" {
			if summary.BestVariant == "" || r.Force < summary.BestForce {
				summary.BestVariant = r.Variant
				summary.BestForce = r.Force
			}
		}
	}
	return summary
}

// Completed returns the number of variants that finished successfully.
func (s *BatchSummary) Completed() int {
	return s.ByStatus[StatusCompleted]
}
