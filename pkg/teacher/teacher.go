// Package teacher defines the external contract the learners consume and
// two reference implementations used for tests and the demo CLI: a
// direct-simulation teacher (Simulated) and a Prolog-fact-backed one
// (PrologTeacher). These exist so the learners in pkg/lstar and pkg/ttt
// have something concrete to learn from in tests and in cmd/learn.
package teacher

import (
	"context"

	"github.com/rfielding/mealylearn/pkg/mealy"
)

// Teacher is the abstract contract the learner drives.
// Implementations must be deterministic: repeated identical
// MembershipQuery calls for the same word must return identical outputs.
type Teacher[A comparable, O comparable] interface {
	// Alphabet returns the input alphabet. Invoked once at learner startup.
	Alphabet() []A

	// MembershipQuery returns the output word the SUL produces for w, of
	// length len(w).
	MembershipQuery(ctx context.Context, w []A) ([]O, error)

	// EquivalenceQuery checks hyp against the SUL. If equivalent is false,
	// counterexample is a non-empty word on which hyp and the SUL disagree
	// at at least one position.
	EquivalenceQuery(ctx context.Context, hyp *mealy.Machine[A, O]) (equivalent bool, counterexample []A, err error)
}
