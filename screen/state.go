package screen

// State is the lifecycle state of one variant's minimization.
//
//	pending --baseline converged--> converged
//	pending --baseline not converged--> running (or exhausted with a zero retry budget)
//	pending --baseline unknown--> pending (warned, no retry)
//	running --attempt converged--> converged
//	running --attempt not converged / log missing--> running, or exhausted on the last attempt
//	running --tool failed--> tool_failure
type State string

const (
	StatePending     State = "pending"
	StateRunning     State = "running"
	StateConverged   State = "converged"
	StateExhausted   State = "exhausted"
	StateToolFailure State = "tool_failure"
)

// Terminal reports whether no further transitions leave s.
func (s State) Terminal() bool {
	switch s {
	case StateConverged, StateExhausted, StateToolFailure:
		return true
	default:
		return false
	}
}

// Event is an observation fed to Transition.
type Event string

const (
	EventBaselineConverged    Event = "baseline_converged"
	EventBaselineNotConverged Event = "baseline_not_converged"
	EventBaselineUnknown      Event = "baseline_unknown"
	EventAttemptConverged     Event = "attempt_converged"
	EventAttemptNotConverged  Event = "attempt_not_converged" // also covers an uninterpretable retry log
	EventAttemptMissingLog    Event = "attempt_missing_log"
	EventToolFailed           Event = "tool_failed"
)

// Transition returns the state reached from s on ev. attempt is the retry
// index the event belongs to (0 for baseline events) and maxRetries the
// retry budget. Terminal states absorb every event; events that do not apply
// to s leave it unchanged.
func Transition(s State, ev Event, attempt, maxRetries int) State {
	switch s {
	case StatePending:
		switch ev {
		case EventBaselineConverged:
			return StateConverged
		case EventBaselineNotConverged:
			if maxRetries < 1 {
				return StateExhausted
			}
			return StateRunning
		}
	case StateRunning:
		switch ev {
		case EventAttemptConverged:
			return StateConverged
		case EventToolFailed:
			return StateToolFailure
		case EventAttemptNotConverged, EventAttemptMissingLog:
			if attempt >= maxRetries {
				return StateExhausted
			}
			return StateRunning
		}
	}
	return s
}
