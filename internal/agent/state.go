package agent

import "fmt"

// State is a pipeline state. The orchestrator walks the transition
// table below; every move goes through machine.to, which panics on a
// transition the table does not allow.
type State string

const (
	StatePlanning          State = "planning"
	StateCacheCheck        State = "cache_check"
	StateSearching         State = "searching"
	StateSynthesizing      State = "synthesizing"
	StateValidating        State = "validating"
	StateDone              State = "done"
	StateDoneLowConfidence State = "done_low_confidence"
	StateFailed            State = "failed"
)

// transitions enumerates every legal state change. Terminal states have
// no outgoing edges. Validating may re-enter Searching exactly once,
// enforced by the orchestrator's retry budget rather than the table.
var transitions = map[State][]State{
	StatePlanning:          {StateCacheCheck, StateFailed},
	StateCacheCheck:        {StateDone, StateSearching, StateFailed},
	StateSearching:         {StateSynthesizing, StateDoneLowConfidence, StateFailed},
	StateSynthesizing:      {StateValidating, StateDoneLowConfidence, StateFailed},
	StateValidating:        {StateDone, StateSearching, StateDoneLowConfidence, StateFailed},
	StateDone:              nil,
	StateDoneLowConfidence: nil,
	StateFailed:            nil,
}

// CanTransition reports whether moving from s to next is legal.
func (s State) CanTransition(next State) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// machine tracks the current state of one pipeline run.
type machine struct {
	state State
}

func newMachine() *machine {
	return &machine{state: StatePlanning}
}

// to advances the machine. An illegal transition is a programming error
// in the orchestrator, not a runtime condition, so it panics.
func (m *machine) to(next State) {
	if !m.state.CanTransition(next) {
		panic(fmt.Sprintf("agent: illegal transition %s -> %s", m.state, next))
	}
	m.state = next
}
