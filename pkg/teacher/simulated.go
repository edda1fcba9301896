package teacher

import (
	"context"

	"github.com/rfielding/mealylearn/pkg/mealy"
)

// Simulated is a teacher backed directly by a target Mealy machine: the
// SUL it "teaches" is simply what that machine computes. Membership queries
// run the target machine; equivalence queries perform a bounded breadth-
// first enumeration of input words (a simplified stand-in for a real
// W-method/distinguishing-set oracle) and return the shortest word, in
// alphabet order, on which the hypothesis and the target disagree.
//
// This exists purely to drive the learners in tests and in cmd/learn; it is
// a minimal stand-in for a full teacher implementation, not one itself.
type Simulated[A comparable, O comparable] struct {
	alphabet []A
	target   *mealy.Machine[A, O]

	// Depth bounds the length of words considered during EquivalenceQuery.
	// If zero, a default based on the state counts of the target and the
	// hypothesis is used (the classical argument for this bound being
	// sufficient needs a full distinguishing set, which is out of scope
	// here; Depth is a pragmatic, test-scenario-sized substitute).
	Depth int
}

// NewSimulated builds a Simulated teacher for the given target machine and
// alphabet (order is preserved, and becomes the deterministic iteration
// order used throughout).
func NewSimulated[A comparable, O comparable](alphabet []A, target *mealy.Machine[A, O]) *Simulated[A, O] {
	return &Simulated[A, O]{alphabet: alphabet, target: target}
}

func (s *Simulated[A, O]) Alphabet() []A {
	out := make([]A, len(s.alphabet))
	copy(out, s.alphabet)
	return out
}

func (s *Simulated[A, O]) MembershipQuery(_ context.Context, w []A) ([]O, error) {
	return s.target.Run(w)
}

func (s *Simulated[A, O]) EquivalenceQuery(_ context.Context, hyp *mealy.Machine[A, O]) (bool, []A, error) {
	depth := s.Depth
	if depth <= 0 {
		depth = len(s.target.GetStates()) + len(hyp.GetStates()) + 1
	}

	for _, w := range wordsUpTo(s.alphabet, depth) {
		wantOut, err := s.target.Run(w)
		if err != nil {
			return false, nil, err
		}
		gotOut, err := hyp.Run(w)
		if err != nil {
			return false, nil, err
		}
		if !equalWords(wantOut, gotOut) {
			return false, w, nil
		}
	}
	return true, nil, nil
}

// wordsUpTo enumerates every word over alphabet of length 0..depth, shorter
// words first, in alphabet order within each length.
func wordsUpTo[A comparable](alphabet []A, depth int) [][]A {
	words := [][]A{{}}
	frontier := [][]A{{}}
	for l := 0; l < depth; l++ {
		var next [][]A
		for _, w := range frontier {
			for _, a := range alphabet {
				nw := make([]A, len(w)+1)
				copy(nw, w)
				nw[len(w)] = a
				next = append(next, nw)
				words = append(words, nw)
			}
		}
		frontier = next
	}
	return words
}

func equalWords[O comparable](a, b []O) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
