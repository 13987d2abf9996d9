// Package fsm holds explicit status transition tables shared by ledger entities.
package fsm

// Machine is an immutable transition table over status values of type S.
type Machine[S comparable] struct {
	transitions map[S]map[S]struct{}
}

// New builds a machine from an adjacency list. States absent from the list are terminal.
func New[S comparable](table map[S][]S) *Machine[S] {
	m := &Machine[S]{transitions: make(map[S]map[S]struct{}, len(table))}
	for from, targets := range table {
		set := make(map[S]struct{}, len(targets))
		for _, to := range targets {
			set[to] = struct{}{}
		}
		m.transitions[from] = set
	}
	return m
}

// CanTransition reports whether moving from -> to is allowed.
func (m *Machine[S]) CanTransition(from, to S) bool {
	targets, ok := m.transitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (m *Machine[S]) IsTerminal(s S) bool {
	return len(m.transitions[s]) == 0
}

// Next lists the states reachable from s in one step.
func (m *Machine[S]) Next(s S) []S {
	targets := m.transitions[s]
	out := make([]S, 0, len(targets))
	for to := range targets {
		out = append(out, to)
	}
	return out
}
