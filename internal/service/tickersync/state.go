package tickersync

import (
	"fmt"

	"github.com/wonny/tickersync/internal/domain/ticker"
)

// allowed transitions of a run
var transitions = map[ticker.RunState][]ticker.RunState{
	ticker.StateLoading:    {ticker.StateReconciled, ticker.StateAborted},
	ticker.StateReconciled: {ticker.StateValidating},
	ticker.StateValidating: {ticker.StatePlanned},
	ticker.StatePlanned:    {ticker.StateApplied},
}

// runMachine tracks the lifecycle of one run
type runMachine struct {
	state  ticker.RunState
	reason ticker.AbortReason
}

func newRunMachine() *runMachine {
	return &runMachine{state: ticker.StateLoading}
}

// State returns the current state
func (m *runMachine) State() ticker.RunState {
	return m.state
}

// To moves to next or returns an error if the transition is not allowed
func (m *runMachine) To(next ticker.RunState) error {
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid run transition %s -> %s", m.state, next)
}

// Abort moves to Aborted with reason; only possible while Loading
func (m *runMachine) Abort(reason ticker.AbortReason) error {
	if err := m.To(ticker.StateAborted); err != nil {
		return err
	}
	m.reason = reason
	return nil
}

// Reason returns the abort reason, empty unless Aborted
func (m *runMachine) Reason() ticker.AbortReason {
	return m.reason
}
