package provisioning

import "fmt"

// State is a stage of the provisioning state machine
type State string

const (
	StateNotStarted             State = "NotStarted"
	StateAllocatingDatabase     State = "AllocatingDatabase"
	StateApplyingMasterSchema   State = "ApplyingMasterSchema"
	StateCreatingTenantDatabase State = "CreatingTenantDatabase"
	StateApplyingTenantSchema   State = "ApplyingTenantSchema"
	StateRecordingMetadata      State = "RecordingMetadata"
	StateCommitted              State = "Committed"
	StateRollingBack            State = "RollingBack"
	StateFailed                 State = "Failed"
)

// forward holds the single successor of each happy-path state
var forward = map[State]State{
	StateNotStarted:             StateAllocatingDatabase,
	StateAllocatingDatabase:     StateApplyingMasterSchema,
	StateApplyingMasterSchema:   StateCreatingTenantDatabase,
	StateCreatingTenantDatabase: StateApplyingTenantSchema,
	StateApplyingTenantSchema:   StateRecordingMetadata,
	StateRecordingMetadata:      StateCommitted,
}

// IsTerminal reports whether no further transition is allowed
func (s State) IsTerminal() bool {
	return s == StateCommitted || s == StateFailed
}

// IsIntermediate reports whether s is one of the working states
func (s State) IsIntermediate() bool {
	switch s {
	case StateAllocatingDatabase, StateApplyingMasterSchema, StateCreatingTenantDatabase,
		StateApplyingTenantSchema, StateRecordingMetadata:
		return true
	}
	return false
}

// CanTransitionTo reports whether s -> next is a legal transition
func (s State) CanTransitionTo(next State) bool {
	if s.IsTerminal() {
		return false
	}
	if forward[s] == next {
		return true
	}
	switch next {
	case StateRollingBack:
		return s.IsIntermediate()
	case StateFailed:
		return s == StateRollingBack
	}
	return false
}

// Machine tracks the current state of one run
type Machine struct {
	current State
	history []State
}

// NewMachine returns a machine in NotStarted
func NewMachine() *Machine {
	return &Machine{current: StateNotStarted, history: []State{StateNotStarted}}
}

// Current returns the current state
func (m *Machine) Current() State {
	return m.current
}

// History returns every state visited so far, in order
func (m *Machine) History() []State {
	out := make([]State, len(m.history))
	copy(out, m.history)
	return out
}

// Transition moves to next or returns ErrInvalidTransition
func (m *Machine) Transition(next State) error {
	if !m.current.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.current, next)
	}
	m.current = next
	m.history = append(m.history, next)
	return nil
}
