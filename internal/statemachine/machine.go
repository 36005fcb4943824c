// Package statemachine validates state transitions against per-domain
// transition tables. One generic Machine serves every domain; domains differ
// only in the table they supply.
package statemachine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition matches every *InvalidTransitionError.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrUnknownState means a recorded state is outside the domain. It points
	// at corrupted or cross-domain data, not at a user mistake.
	ErrUnknownState = errors.New("unknown state")
	// ErrInvalidTable is returned when a transition table cannot be used.
	ErrInvalidTable = errors.New("invalid transition table")
)

// InvalidTransitionError names both endpoints of a rejected transition.
type InvalidTransitionError struct {
	Domain string `json:"domain"`
	From   string `json:"from"`
	To     string `json:"to"`
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// UnknownStateError reports a state absent from a domain's table.
type UnknownStateError struct {
	Domain string
	State  string
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("%s: state %q is not defined", e.Domain, e.State)
}

func (e *UnknownStateError) Is(target error) bool { return target == ErrUnknownState }

// Table maps every state of a domain to the states directly reachable from it.
// Terminal states map to an empty list.
type Table[S ~string] map[S][]S

// Decision is the full answer to a transition request.
type Decision[S ~string] struct {
	Legal      bool                    `json:"legal"`
	NextStates []S                     `json:"next_states"`
	Reason     *InvalidTransitionError `json:"reason,omitempty"`
}

// Machine answers legality questions for one domain. It is immutable and safe
// for concurrent use.
type Machine[S ~string] struct {
	domain  string
	order   []S
	next    map[S][]S
	allowed map[S]map[S]struct{}
}

// New copies and validates table. Every state used as a target must also be a
// key, and no state may list the same target twice.
func New[S ~string](domain string, order []S, table Table[S]) (*Machine[S], error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("%w: %s: empty table", ErrInvalidTable, domain)
	}
	if len(order) != len(table) {
		return nil, fmt.Errorf("%w: %s: order lists %d states, table has %d", ErrInvalidTable, domain, len(order), len(table))
	}
	m := &Machine[S]{
		domain:  domain,
		order:   append([]S(nil), order...),
		next:    make(map[S][]S, len(table)),
		allowed: make(map[S]map[S]struct{}, len(table)),
	}
	for _, s := range order {
		if _, ok := table[s]; !ok {
			return nil, fmt.Errorf("%w: %s: state %q is ordered but has no entry", ErrInvalidTable, domain, s)
		}
	}
	for from, targets := range table {
		set := make(map[S]struct{}, len(targets))
		for _, to := range targets {
			if _, ok := table[to]; !ok {
				return nil, fmt.Errorf("%w: %s: %s -> %s targets an undeclared state", ErrInvalidTable, domain, from, to)
			}
			if _, dup := set[to]; dup {
				return nil, fmt.Errorf("%w: %s: %s -> %s listed twice", ErrInvalidTable, domain, from, to)
			}
			set[to] = struct{}{}
		}
		m.allowed[from] = set
		m.next[from] = append(make([]S, 0, len(targets)), targets...)
	}
	return m, nil
}

// MustNew is New for package-level tables.
func MustNew[S ~string](domain string, order []S, table Table[S]) *Machine[S] {
	m, err := New(domain, order, table)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Machine[S]) Domain() string { return m.domain }

// States lists the domain's states in declaration order.
func (m *Machine[S]) States() []S { return append([]S(nil), m.order...) }

// Known reports whether s is a state of the domain.
func (m *Machine[S]) Known(s S) bool {
	_, ok := m.next[s]
	return ok
}

// IsTerminal reports whether s has no outbound transitions.
func (m *Machine[S]) IsTerminal(s S) (bool, error) {
	next, err := m.NextStates(s)
	if err != nil {
		return false, err
	}
	return len(next) == 0, nil
}

// IsLegal reports whether to is directly reachable from from. An unknown from
// is an error; an unknown to is simply not legal.
func (m *Machine[S]) IsLegal(from, to S) (bool, error) {
	set, ok := m.allowed[from]
	if !ok {
		return false, m.unknown(from)
	}
	_, legal := set[to]
	return legal, nil
}

// NextStates returns a copy of the states reachable from from, in table
// order. Terminal states yield an empty, non-nil slice.
func (m *Machine[S]) NextStates(from S) ([]S, error) {
	next, ok := m.next[from]
	if !ok {
		return nil, m.unknown(from)
	}
	return append(make([]S, 0, len(next)), next...), nil
}

// Validate returns nil for a legal transition, an *InvalidTransitionError for
// an illegal one and an *UnknownStateError when from is not in the domain.
func (m *Machine[S]) Validate(from, to S) error {
	legal, err := m.IsLegal(from, to)
	if err != nil {
		return err
	}
	if !legal {
		return &InvalidTransitionError{Domain: m.domain, From: string(from), To: string(to)}
	}
	return nil
}

// Decide combines Validate and NextStates. Only an unknown from state is
// returned as an error; an illegal transition is a regular decision.
func (m *Machine[S]) Decide(from, to S) (Decision[S], error) {
	next, err := m.NextStates(from)
	if err != nil {
		return Decision[S]{}, err
	}
	d := Decision[S]{Legal: true, NextStates: next}
	if verr := m.Validate(from, to); verr != nil {
		var ite *InvalidTransitionError
		if !errors.As(verr, &ite) {
			return Decision[S]{}, verr
		}
		d.Legal = false
		d.Reason = ite
	}
	return d, nil
}

// Edges lists every transition of the table, in declaration order.
func (m *Machine[S]) Edges() []Edge[S] {
	var out []Edge[S]
	for _, from := range m.order {
		for _, to := range m.next[from] {
			out = append(out, Edge[S]{From: from, To: to})
		}
	}
	return out
}

func (m *Machine[S]) unknown(s S) error {
	return &UnknownStateError{Domain: m.domain, State: string(s)}
}

// Edge is a single transition.
type Edge[S ~string] struct {
	From S `json:"from"`
	To   S `json:"to"`
}

func (e Edge[S]) String() string { return string(e.From) + "->" + string(e.To) }
