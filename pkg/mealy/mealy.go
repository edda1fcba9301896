// Package mealy implements the hypothesis automaton shared by both learners:
// a deterministic Mealy machine (Q, q0, δ, λ). States form a cyclic,
// shared-ownership graph reached through *State pointers, with no
// weak/back-reference distinction; ordinary garbage collection reclaims
// unreachable states once a Machine's initial state is dropped.
package mealy

import "fmt"

// edge bundles the two things reading a symbol a at a state produces: the
// output symbol and the next state.
type edge[A comparable, O comparable] struct {
	output O
	to     *State[A, O]
}

// State is one state of a Mealy machine: an identifier and its outgoing
// transition map δ_q: A -> (State, output).
type State[A comparable, O comparable] struct {
	id    string
	edges map[A]edge[A, O]
}

// NewState creates a state with no outgoing edges.
func NewState[A comparable, O comparable](id string) *State[A, O] {
	return &State[A, O]{id: id, edges: make(map[A]edge[A, O])}
}

// ID returns the state's identifier.
func (s *State[A, O]) ID() string {
	return s.id
}

// AddEdge inserts δ(s, a) = to, λ(s, a) = o. Re-adding an identical edge
// (same symbol, output and target) is a no-op. Adding a conflicting edge
// (same symbol, different output or target) is a programming error unless
// override is true, in which case the prior edge is replaced.
func (s *State[A, O]) AddEdge(a A, o O, to *State[A, O], override bool) error {
	if existing, ok := s.edges[a]; ok {
		if existing.output == o && existing.to == to {
			return nil
		}
		if !override {
			return &ConflictError{State: s.id, Symbol: fmt.Sprint(a)}
		}
	}
	s.edges[a] = edge[A, O]{output: o, to: to}
	return nil
}

// Edge returns the transition for a, if any.
func (s *State[A, O]) Edge(a A) (output O, to *State[A, O], ok bool) {
	e, ok := s.edges[a]
	if !ok {
		return output, nil, false
	}
	return e.output, e.to, true
}

// ConflictError reports an attempt to add a second, different edge for a
// symbol that already has one, without requesting an override. This is a
// fatal contract violation, not a recoverable condition.
type ConflictError struct {
	State  string
	Symbol string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("mealy: state %s already has a conflicting edge on %s", e.State, e.Symbol)
}

// Machine is a Mealy machine bound to an initial state, with an internal
// cursor for ProcessInput/Reset.
type Machine[A comparable, O comparable] struct {
	initial *State[A, O]
	current *State[A, O]
}

// New binds a Machine to the given initial state.
func New[A comparable, O comparable](initial *State[A, O]) *Machine[A, O] {
	return &Machine[A, O]{initial: initial, current: initial}
}

// Initial returns the initial state.
func (m *Machine[A, O]) Initial() *State[A, O] {
	return m.initial
}

// Reset returns the machine to its initial state.
func (m *Machine[A, O]) Reset() {
	m.current = m.initial
}

// Current returns the machine's current state.
func (m *Machine[A, O]) Current() *State[A, O] {
	return m.current
}

// ProcessInput runs w from the current state, advancing it, and returns the
// output word λ*(current, w). It is a fatal contract violation (missing
// transition) if the machine is not total over A: every state is expected
// to have exactly one outgoing edge per alphabet symbol.
func (m *Machine[A, O]) ProcessInput(w []A) ([]O, error) {
	out := make([]O, 0, len(w))
	for _, a := range w {
		o, to, ok := m.current.Edge(a)
		if !ok {
			return nil, &ContractViolationError{
				Kind:   "missing-transition",
				Detail: fmt.Sprintf("state %s has no transition on %v", m.current.id, a),
			}
		}
		out = append(out, o)
		m.current = to
	}
	return out, nil
}

// Run resets the machine, processes w, and returns the output word, without
// leaving the machine mid-word on error.
func (m *Machine[A, O]) Run(w []A) ([]O, error) {
	m.Reset()
	out, err := m.ProcessInput(w)
	if err != nil {
		m.Reset()
	}
	return out, err
}

// GetStates returns every state reachable from the initial state, in
// breadth-first discovery order, deduplicated by pointer identity. Cycles
// are expected and handled via a visited set.
func (m *Machine[A, O]) GetStates() []*State[A, O] {
	if m.initial == nil {
		return nil
	}
	seen := map[*State[A, O]]bool{m.initial: true}
	queue := []*State[A, O]{m.initial}
	var order []*State[A, O]
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		for _, e := range cur.edges {
			if !seen[e.to] {
				seen[e.to] = true
				queue = append(queue, e.to)
			}
		}
	}
	return order
}

// GetAlphabet returns the union of input symbols with an outgoing edge from
// any reachable state, in first-seen order across GetStates' BFS order.
func (m *Machine[A, O]) GetAlphabet() []A {
	seen := make(map[A]bool)
	var alphabet []A
	for _, s := range m.GetStates() {
		for a := range s.edges {
			if !seen[a] {
				seen[a] = true
				alphabet = append(alphabet, a)
			}
		}
	}
	return alphabet
}

// ContractViolationError reports a broken core invariant: a lookup outside
// its documented domain, a non-total machine, or a learner bug. These are
// fatal and are never retried internally.
type ContractViolationError struct {
	Kind   string
	Detail string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("mealy: contract violation (%s): %s", e.Kind, e.Detail)
}
