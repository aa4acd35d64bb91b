package orchestrator

import "fmt"

// State is a lifecycle stage of a hybrid job
type State string

const (
	StateInit         State = "INIT"
	StateStaging      State = "STAGING"
	StatePass1Running State = "PASS1_RUNNING"
	StatePass1Done    State = "PASS1_DONE"
	StatePass2Running State = "PASS2_RUNNING"
	StatePass2Done    State = "PASS2_DONE"
	StateMerging      State = "MERGING"
	StateDone         State = "DONE"
	StateFailed       State = "FAILED"
)

// IsTerminal reports whether no further transition is possible
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

var next = map[State]State{
	StateInit:         StateStaging,
	StateStaging:      StatePass1Running,
	StatePass1Running: StatePass1Done,
	StatePass1Done:    StatePass2Running,
	StatePass2Running: StatePass2Done,
	StatePass2Done:    StateMerging,
	StateMerging:      StateDone,
}

func isAllowedTransition(from, to State) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return next[from] == to
}

// machine tracks the current state and the path taken to reach it
type machine struct {
	current State
	history []State
}

func newMachine() *machine {
	return &machine{current: StateInit, history: []State{StateInit}}
}

func (m *machine) transition(to State) error {
	if !isAllowedTransition(m.current, to) {
		return fmt.Errorf("disallowed transition: %s -> %s", m.current, to)
	}
	m.current = to
	m.history = append(m.history, to)
	return nil
}
