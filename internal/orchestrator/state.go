package orchestrator

import (
	"fmt"
	"time"
)

// State is a phase of the turn state machine
type State string

const (
	StateClassify     State = "CLASSIFY"
	StatePlan         State = "PLAN"
	StateExecuteSteps State = "EXECUTE_STEPS"
	StateSynthesize   State = "SYNTHESIZE"
	StateDone         State = "DONE"
	StateFailed       State = "FAILED"
)

// allowed lists the legal successors of each state. DONE and FAILED are terminal.
var allowed = map[State][]State{
	StateClassify:     {StatePlan, StateFailed},
	StatePlan:         {StateExecuteSteps, StateFailed},
	StateExecuteSteps: {StateSynthesize},
	StateSynthesize:   {StateDone},
}

// Transition is one recorded state change
type Transition struct {
	From State
	To   State
	At   time.Time
	// Reason is set on transitions into FAILED.
	Reason string
}

type machine struct {
	state       State
	transitions []Transition
	now         func() time.Time
}

func newMachine(start State, now func() time.Time) *machine {
	return &machine{state: start, now: now}
}

func (m *machine) to(next State, reason string) error {
	for _, s := range allowed[m.state] {
		if s == next {
			m.transitions = append(m.transitions, Transition{From: m.state, To: next, At: m.now(), Reason: reason})
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("illegal transition %s -> %s", m.state, next)
}

// terminal reports whether the machine has stopped
func (m *machine) terminal() bool {
	return m.state == StateDone || m.state == StateFailed
}
