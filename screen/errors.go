package screen

import (
	"errors"
	"fmt"
)

// Error taxonomy. Everything except ErrBatchRootMissing is variant-local:
// it is reported and processing moves on to the next attempt or variant.
var (
	ErrBatchRootMissing      = errors.New("batch root directory missing")
	ErrMissingInputFiles     = errors.New("missing input files")
	ErrUnreadableLog         = errors.New("unreadable log")
	ErrAmbiguousOutcome      = errors.New("ambiguous minimization outcome")
	ErrExternalToolFailure   = errors.New("external tool failure")
	ErrMissingExpectedOutput = errors.New("missing expected output")
	ErrNoMetricFound         = errors.New("no maximum force found")
)

// VariantError ties a taxonomy error to the variant (and retry index, when
// non-zero) it occurred in.
type VariantError struct {
	Variant string
	Attempt int
	Err     error
}

func (e *VariantError) Error() string {
	if e.Attempt > 0 {
		return fmt.Sprintf("variant %s attempt %d: %v", e.Variant, e.Attempt, e.Err)
	}
	return fmt.Sprintf("variant %s: %v", e.Variant, e.Err)
}

func (e *VariantError) Unwrap() error { return e.Err }
