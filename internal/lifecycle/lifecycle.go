package lifecycle

import "errors"

// Status enumerates the states a call moves through from scheduling to
// completion.
type Status string

const (
	// StatusScheduled marks a call that is planned but not yet underway.
	StatusScheduled Status = "scheduled"
	// StatusInProgress marks a call that has been started.
	StatusInProgress Status = "in_progress"
	// StatusCompleted marks a call that finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed marks a call that was attempted and did not succeed.
	StatusFailed Status = "failed"
	// StatusRescheduled is the transient state a call passes through while
	// its scheduled time is being replaced; it re-enters StatusScheduled.
	StatusRescheduled Status = "rescheduled"
	// StatusCancelled marks a call that was abandoned before starting.
	StatusCancelled Status = "cancelled"
)

// ErrInvalidTransition is returned when a requested status change is not a
// legal edge of the call state machine.
var ErrInvalidTransition = errors.New("lifecycle: invalid transition")

var transitions = map[Status][]Status{
	StatusScheduled:   {StatusInProgress, StatusRescheduled, StatusCancelled},
	StatusInProgress:  {StatusCompleted, StatusFailed},
	StatusRescheduled: {StatusScheduled},
}

// Valid reports whether the value is a known call status.
func Valid(status Status) bool {
	switch status {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusFailed, StatusRescheduled, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving from one status to another is a legal
// edge of the state machine.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates the requested edge and returns the resulting status.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, ErrInvalidTransition
	}
	return to, nil
}

// Terminal reports whether a status admits no further transitions.
func Terminal(status Status) bool {
	return len(transitions[status]) == 0 && Valid(status)
}

// Notifiable reports whether time-based reminder triggers may fire for a call
// in the given status. Only calls still waiting to start are eligible.
func Notifiable(status Status) bool {
	return status == StatusScheduled
}
