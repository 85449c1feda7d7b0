package entities

import (
	"fmt"

	dErrors "movetrack/pkg/domain-errors"
)

// Machine is a declarative transition table: event -> allowed source states -> target.
type Machine struct {
	name        string
	transitions map[string]map[string]string
}

// Transition declares that event moves any of from into to.
type Transition struct {
	Event string
	From  []string
	To    string
}

func NewMachine(name string, ts ...Transition) *Machine {
	m := &Machine{name: name, transitions: make(map[string]map[string]string, len(ts))}
	for _, t := range ts {
		if m.transitions[t.Event] == nil {
			m.transitions[t.Event] = make(map[string]string, len(t.From))
		}
		for _, from := range t.From {
			m.transitions[t.Event][from] = t.To
		}
	}
	return m
}

// Next returns the state reached by firing event from the given state, or an
// invalid_transition error when the table has no such edge.
func (m *Machine) Next(event, from string) (string, error) {
	edges, ok := m.transitions[event]
	if !ok {
		return "", dErrors.New(dErrors.CodeInvalidTransition,
			fmt.Sprintf("%s has no %q transition", m.name, event))
	}
	to, ok := edges[from]
	if !ok {
		return "", dErrors.New(dErrors.CodeInvalidTransition,
			fmt.Sprintf("cannot %s a %s that is %s", event, m.name, from))
	}
	return to, nil
}

// Can reports whether event is legal from the given state.
func (m *Machine) Can(event, from string) bool {
	_, err := m.Next(event, from)
	return err == nil
}
