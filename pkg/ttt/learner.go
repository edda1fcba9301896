package ttt

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/rfielding/mealylearn/internal/words"
	"github.com/rfielding/mealylearn/pkg/mealy"
	"github.com/rfielding/mealylearn/pkg/teacher"
)

// Learner drives a discrimination tree to a Mealy hypothesis via
// sift/construct/process-counterexample, the TTT adaptation for Mealy
// machines.
type Learner[A comparable, O comparable] struct {
	teach    teacher.Teacher[A, O]
	alphabet []words.Word[A]
	tree     *dtree[A, O]
	logger   *log.Logger

	// stateLeaf is rebuilt by ConstructHypothesis and gives every current
	// hypothesis state's owning leaf, which is how decompose/
	// ProcessCounterexample recover a state's access sequence.
	stateLeaf map[*mealy.State[A, O]]*node[A, O]
}

// NewLearner builds a learner with a single-leaf tree for ε; the first
// counterexample promotes that leaf into the tree's first inner node.
func NewLearner[A comparable, O comparable](t teacher.Teacher[A, O], logger *log.Logger) *Learner[A, O] {
	if logger == nil {
		logger = log.Default()
	}
	alphabet := t.Alphabet()
	singles := make([]words.Word[A], len(alphabet))
	for i, a := range alphabet {
		singles[i] = words.Word[A]{a}
	}
	return &Learner[A, O]{
		teach:    t,
		alphabet: singles,
		tree:     newDTree[A, O](),
		logger:   logger,
	}
}

// ConstructHypothesis builds a Mealy machine with one state per current
// tree leaf, discovering successor leaves (and, if Sift reveals a
// previously unseen equivalence class, new leaves) via breadth-first
// exploration from the ε leaf.
func (l *Learner[A, O]) ConstructHypothesis(ctx context.Context) (*mealy.Machine[A, O], error) {
	states := make(map[*node[A, O]]*mealy.State[A, O])
	var order []*node[A, O]

	stateFor := func(n *node[A, O]) *mealy.State[A, O] {
		if s, ok := states[n]; ok {
			return s
		}
		s := mealy.NewState[A, O](fmt.Sprintf("q%d", len(order)))
		states[n] = s
		order = append(order, n)
		return s
	}

	rootLeaf, err := l.tree.sift(ctx, l.teach, words.Word[A]{})
	if err != nil {
		return nil, err
	}
	initial := stateFor(rootLeaf)

	for i := 0; i < len(order); i++ {
		n := order[i]
		from := states[n]
		for _, a := range l.alphabet {
			out, err := lastOutput(ctx, l.teach, n.accessSeq, a)
			if err != nil {
				return nil, err
			}
			next, err := l.tree.sift(ctx, l.teach, words.Concat(n.accessSeq, a))
			if err != nil {
				return nil, err
			}
			to := stateFor(next)
			if err := from.AddEdge(a[0], out, to, false); err != nil {
				return nil, fmt.Errorf("ttt: building hypothesis: %w", err)
			}
		}
	}

	stateLeaf := make(map[*mealy.State[A, O]]*node[A, O], len(states))
	for n, s := range states {
		stateLeaf[s] = n
	}
	l.stateLeaf = stateLeaf

	return mealy.New[A, O](initial), nil
}

// hypothesisRun walks hyp on w from its initial state, returning the
// visited state sequence (length len(w)+1, states[0] is initial) alongside
// the output word, without disturbing hyp's own cursor.
func hypothesisRun[A comparable, O comparable](hyp *mealy.Machine[A, O], w []A) ([]*mealy.State[A, O], []O, error) {
	states := make([]*mealy.State[A, O], len(w)+1)
	states[0] = hyp.Initial()
	out := make([]O, 0, len(w))
	cur := states[0]
	for i, a := range w {
		o, to, ok := cur.Edge(a)
		if !ok {
			return nil, nil, &mealy.ContractViolationError{
				Kind:   "missing-transition",
				Detail: fmt.Sprintf("hypothesis state %s has no transition on %v", cur.ID(), a),
			}
		}
		out = append(out, o)
		cur = to
		states[i+1] = cur
	}
	return states, out, nil
}

// decompose finds an index i in (0, len(w)) at which the hypothesis's
// prediction for w[i:], run from the state reached after i steps, agrees
// with the teacher's actual behavior from that state's access sequence,
// while the same check at i-1 disagrees: the classical Rivest/Schapire
// binary search, relying on the two endpoints (always false at i=0, always
// true at i=len(w)) to bound the search. The index found is not
// necessarily the smallest one at which the check agrees.
func (l *Learner[A, O]) decompose(ctx context.Context, states []*mealy.State[A, O], hypOut []O, w []A) (int, error) {
	matches := func(i int) (bool, error) {
		suffix := w[i:]
		if len(suffix) == 0 {
			return true, nil
		}
		leaf, ok := l.stateLeaf[states[i]]
		if !ok {
			return false, &mealy.ContractViolationError{Kind: "state-without-leaf", Detail: states[i].ID()}
		}
		full := words.Concat(leaf.accessSeq, words.Word[A](suffix))
		out, err := l.teach.MembershipQuery(ctx, full)
		if err != nil {
			return false, fmt.Errorf("membership query %v: %w", full, err)
		}
		tail := out[len(out)-len(suffix):]
		want := hypOut[i:]
		for k := range tail {
			if tail[k] != want[k] {
				return false, nil
			}
		}
		return true, nil
	}

	lo, hi := 0, len(w)
	for lo+1 < hi {
		mid := (lo + hi) / 2
		ok, err := matches(mid)
		if err != nil {
			return 0, err
		}
		if ok {
			hi = mid
		} else {
			lo = mid
		}
	}
	if hi <= 0 || hi >= len(w) {
		return 0, &mealy.ContractViolationError{
			Kind:   "decompose-out-of-range",
			Detail: fmt.Sprintf("breakpoint %d out of (0, %d)", hi, len(w)),
		}
	}
	return hi, nil
}

// ProcessCounterexample decomposes w, identifies the pair of access
// sequences the hypothesis wrongly conflated, narrows the discriminating
// suffix down to the first symbol where their behavior actually diverges
// (so the tree's final-output-symbol convention keeps working even though
// the raw Rivest/Schapire suffix can be longer than one symbol), and splits
// the conflated leaf.
func (l *Learner[A, O]) ProcessCounterexample(ctx context.Context, hyp *mealy.Machine[A, O], w []A) error {
	states, hypOut, err := hypothesisRun(hyp, w)
	if err != nil {
		return err
	}
	i, err := l.decompose(ctx, states, hypOut, w)
	if err != nil {
		return err
	}

	aSym := w[i-1]
	gamma := words.Word[A](w[i:])

	oldLeaf, ok := l.stateLeaf[states[i]]
	if !ok {
		return &mealy.ContractViolationError{Kind: "state-without-leaf", Detail: states[i].ID()}
	}
	prevLeaf, ok := l.stateLeaf[states[i-1]]
	if !ok {
		return &mealy.ContractViolationError{Kind: "state-without-leaf", Detail: states[i-1].ID()}
	}
	newAccess := words.Concat(prevLeaf.accessSeq, words.Word[A]{aSym})
	oldAccess := oldLeaf.accessSeq

	fullOld := words.Concat(oldAccess, gamma)
	outOld, err := l.teach.MembershipQuery(ctx, fullOld)
	if err != nil {
		return fmt.Errorf("membership query %v: %w", fullOld, err)
	}
	fullNew := words.Concat(newAccess, gamma)
	outNew, err := l.teach.MembershipQuery(ctx, fullNew)
	if err != nil {
		return fmt.Errorf("membership query %v: %w", fullNew, err)
	}
	tailOld := outOld[len(outOld)-len(gamma):]
	tailNew := outNew[len(outNew)-len(gamma):]

	k := -1
	for idx := range gamma {
		if tailOld[idx] != tailNew[idx] {
			k = idx
			break
		}
	}
	if k < 0 {
		return &mealy.ContractViolationError{
			Kind:   "gamma-does-not-discriminate",
			Detail: fmt.Sprintf("suffix %v does not distinguish %v from %v", gamma, oldAccess, newAccess),
		}
	}
	gammaPrime := append(words.Word[A]{}, gamma[:k+1]...)

	return l.tree.splitLeaf(ctx, l.teach, oldLeaf, gammaPrime, newAccess)
}

// RunOptions mirrors pkg/lstar.RunOptions; see its doc comment for which
// fields are accepted-but-inert no-ops (rendering is out of scope) versus
// live hooks.
type RunOptions[A comparable, O comparable] struct {
	ShowIntermediate bool
	PrintObservationTable bool
	OnHypothesis     func(*mealy.Machine[A, O])
	RenderOptions    any
	Out              io.Writer
}

// Run drives the learner to a hypothesis equivalent to the teacher's SUL,
// alternating hypothesis construction, equivalence queries, and
// counterexample processing.
func Run[A comparable, O comparable](ctx context.Context, t teacher.Teacher[A, O], opts RunOptions[A, O]) (*mealy.Machine[A, O], *Learner[A, O], error) {
	l := NewLearner[A, O](t, log.Default())
	return run(ctx, l, opts)
}

func run[A comparable, O comparable](ctx context.Context, l *Learner[A, O], opts RunOptions[A, O]) (*mealy.Machine[A, O], *Learner[A, O], error) {
	for {
		hyp, err := l.ConstructHypothesis(ctx)
		if err != nil {
			return nil, l, err
		}
		if opts.PrintObservationTable {
			l.dumpTo(opts.Out)
		}
		if opts.OnHypothesis != nil {
			opts.OnHypothesis(hyp)
		}

		equivalent, ce, err := l.teach.EquivalenceQuery(ctx, hyp)
		if err != nil {
			return nil, l, fmt.Errorf("equivalence query: %w", err)
		}
		if equivalent {
			return hyp, l, nil
		}
		if len(ce) == 0 {
			return nil, l, &mealy.ContractViolationError{
				Kind:   "empty-counterexample",
				Detail: "EquivalenceQuery reported non-equivalent with an empty counterexample",
			}
		}
		if err := l.ProcessCounterexample(ctx, hyp, ce); err != nil {
			return nil, l, err
		}
	}
}

// Dump renders the tree's leaves and their access sequences, a coarser
// diagnostic than pkg/lstar's table Dump since the tree has no row grid.
func (l *Learner[A, O]) Dump() string {
	var sb strings.Builder
	l.dumpTo(&sb)
	return sb.String()
}

func (l *Learner[A, O]) dumpTo(w io.Writer) {
	if w == nil {
		w = log.Default().Writer()
	}
	for i, leaf := range l.tree.leaves() {
		fmt.Fprintf(w, "leaf[%d]: access=%v\n", i, leaf.accessSeq)
	}
}
