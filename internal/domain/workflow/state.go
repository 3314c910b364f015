package workflow

import "github.com/garyjia/e-approval/internal/domain/entity"

// State represents a document status in the approval lifecycle
type State string

const (
	StateDraft      State = entity.StatusDraft
	StatePending    State = entity.StatusPending
	StateInProgress State = entity.StatusInProgress
	StateApproved   State = entity.StatusApproved
	StateRejected   State = entity.StatusRejected
	StateWithdrawn  State = entity.StatusWithdrawn
)

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	switch s {
	case StateApproved, StateRejected, StateWithdrawn:
		return true
	}
	return false
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid document state
func (s State) IsValid() bool {
	switch s {
	case StateDraft, StatePending, StateInProgress, StateApproved, StateRejected, StateWithdrawn:
		return true
	}
	return false
}
