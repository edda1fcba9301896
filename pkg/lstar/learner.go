package lstar

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

// fixConsistency finds the witnessing (s1, s2, a, e) for the consistency
// invariant and extends E with a·e. It is a fatal contract violation to
// call this when the table is in fact consistent: IsConsistent having
// reported false is the only valid precondition.
func (tbl *Table[A, O]) fixConsistency(ctx context.Context) error {
	ss := tbl.S.Slice()
	for i := 0; i < len(ss); i++ {
		for j := i + 1; j < len(ss); j++ {
			s1, s2 := ss[i], ss[j]
			r1, err := tbl.row(ctx, s1)
			if err != nil {
				return err
			}
			r2, err := tbl.row(ctx, s2)
			if err != nil {
				return err
			}
			if !r1.Equal(r2) {
				continue
			}
			for _, a := range tbl.alphabet {
				for _, e := range tbl.E.Slice() {
					c1, err := tbl.cell(ctx, s1, words.Concat(a, e))
					if err != nil {
						return err
					}
					c2, err := tbl.cell(ctx, s2, words.Concat(a, e))
					if err != nil {
						return err
					}
					if !words.Equal(c1, c2) {
						tbl.E.Add(words.Concat(a, e))
						return nil
					}
				}
			}
		}
	}
	return &mealy.ContractViolationError{
		Kind:   "inconsistent-without-witness",
		Detail: "IsConsistent reported false but no witnessing pair was found",
	}
}

// fixClosure finds the witnessing t = s·a for the closure invariant and
// adds it to S.
func (tbl *Table[A, O]) fixClosure(ctx context.Context) error {
	sRows := make(map[string]bool)
	for _, s := range tbl.S.Slice() {
		r, err := tbl.row(ctx, s)
		if err != nil {
			return err
		}
		sRows[r.Key()] = true
	}

	for _, s := range tbl.S.Slice() {
		for _, a := range tbl.alphabet {
			t := words.Concat(s, a)
			r, err := tbl.row(ctx, t)
			if err != nil {
				return err
			}
			if !sRows[r.Key()] {
				tbl.S.Add(t)
				return nil
			}
		}
	}
	return &mealy.ContractViolationError{
		Kind:   "unclosed-without-witness",
		Detail: "IsClosed reported false but no witnessing row was found",
	}
}

// Step performs one refinement of the table: if it is inconsistent, extend
// E; if (still, or then) unclosed, extend S. Both are checked in sequence,
// so one call may do either, both or neither, matching stmlearn's
// per-iteration step().
func (tbl *Table[A, O]) Step(ctx context.Context) error {
	consistent, err := tbl.IsConsistent(ctx)
	if err != nil {
		return err
	}
	if !consistent {
		if err := tbl.fixConsistency(ctx); err != nil {
			return err
		}
	}

	closed, err := tbl.IsClosed(ctx)
	if err != nil {
		return err
	}
	if !closed {
		if err := tbl.fixClosure(ctx); err != nil {
			return err
		}
	}
	return nil
}

// BuildHypothesis constructs a Mealy machine from a closed and consistent
// table, one state per distinct row in S. Calling it on a table that is
// not both closed and consistent is a usage error.
func (tbl *Table[A, O]) BuildHypothesis(ctx context.Context) (*mealy.Machine[A, O], error) {
	closed, err := tbl.IsClosed(ctx)
	if err != nil {
		return nil, err
	}
	consistent, err := tbl.IsConsistent(ctx)
	if err != nil {
		return nil, err
	}
	if !closed || !consistent {
		return nil, fmt.Errorf("lstar: BuildHypothesis called on a table that is not closed (%v) and consistent (%v)", closed, consistent)
	}

	states := make(map[string]*mealy.State[A, O])
	order := make([]words.Word[A], 0, tbl.S.Len())

	stateFor := func(s words.Word[A]) (*mealy.State[A, O], error) {
		r, err := tbl.row(ctx, s)
		if err != nil {
			return nil, err
		}
		k := r.Key()
		if st, ok := states[k]; ok {
			return st, nil
		}
		st := mealy.NewState[A, O](fmt.Sprintf("q%d", len(order)))
		states[k] = st
		order = append(order, s)
		return st, nil
	}

	initialState, err := stateFor(words.Word[A]{})
	if err != nil {
		return nil, err
	}

	for _, s := range tbl.S.Slice() {
		from, err := stateFor(s)
		if err != nil {
			return nil, err
		}
		for _, a := range tbl.alphabet {
			t := words.Concat(s, a)
			out, err := tbl.cell(ctx, s, a)
			if err != nil {
				return nil, err
			}
			if len(out) != 1 {
				return nil, &mealy.ContractViolationError{
					Kind:   "singleton-cell-wrong-length",
					Detail: fmt.Sprintf("cell(%v, %v) has length %d, want 1", s, a, len(out)),
				}
			}
			to, err := stateFor(t)
			if err != nil {
				return nil, err
			}
			if err := from.AddEdge(a[0], out[0], to, false); err != nil {
				return nil, fmt.Errorf("lstar: building hypothesis: %w", err)
			}
		}
	}

	return mealy.New[A, O](initialState), nil
}

// RunOptions controls Run's behavior. ShowIntermediate and RenderOptions
// are accepted as documented no-ops here: rendering hypotheses is out of
// scope for this package, so there is nothing for them to drive.
// PrintObservationTable and OnHypothesis are the two hooks that do
// something.
type RunOptions[A comparable, O comparable] struct {
	// ShowIntermediate requests that intermediate hypotheses be surfaced as
	// they are built. No-op here; use OnHypothesis instead.
	ShowIntermediate bool
	// PrintObservationTable, if true, writes a Dump() of the table to Out
	// (or log.Default() if Out is nil) before every closure/consistency
	// Step.
	PrintObservationTable bool
	// OnHypothesis, if set, is called with every hypothesis built before it
	// is put to an equivalence query, successful or not.
	OnHypothesis func(*mealy.Machine[A, O])
	// RenderOptions is accepted for interface-shape parity with the other
	// learner's RunOptions and ignored.
	RenderOptions any
	// Out is where PrintObservationTable writes. Defaults to log.Default()
	// when nil.
	Out io.Writer
}

// Run drives the table to closure/consistency, builds a hypothesis, puts it
// to the teacher's equivalence query, and either returns it (equivalent) or
// integrates the counterexample's prefixes into S (the simple Angluin
// counterexample-processing strategy, as opposed to Rivest/Schapire's) and
// repeats.
func Run[A comparable, O comparable](ctx context.Context, t teacher.Teacher[A, O], opts RunOptions[A, O]) (*mealy.Machine[A, O], *Table[A, O], error) {
	tbl := NewTable[A, O](t, log.Default())
	return run(ctx, tbl, opts)
}

// RunTable is Run for a caller-constructed (e.g. Load-restored) table.
func RunTable[A comparable, O comparable](ctx context.Context, tbl *Table[A, O], t teacher.Teacher[A, O], opts RunOptions[A, O]) (*mealy.Machine[A, O], *Table[A, O], error) {
	tbl.teach = t
	return run(ctx, tbl, opts)
}

func run[A comparable, O comparable](ctx context.Context, tbl *Table[A, O], opts RunOptions[A, O]) (*mealy.Machine[A, O], *Table[A, O], error) {
	for {
		for {
			closed, err := tbl.IsClosed(ctx)
			if err != nil {
				return nil, tbl, err
			}
			consistent, err := tbl.IsConsistent(ctx)
			if err != nil {
				return nil, tbl, err
			}
			if closed && consistent {
				break
			}
			if opts.PrintObservationTable {
				tbl.dumpTo(ctx, opts.Out)
			}
			if err := tbl.Step(ctx); err != nil {
				return nil, tbl, err
			}
		}

		hyp, err := tbl.BuildHypothesis(ctx)
		if err != nil {
			return nil, tbl, err
		}
		if opts.OnHypothesis != nil {
			opts.OnHypothesis(hyp)
		}

		equivalent, ce, err := tbl.teach.EquivalenceQuery(ctx, hyp)
		if err != nil {
			return nil, tbl, fmt.Errorf("equivalence query: %w", err)
		}
		if equivalent {
			return hyp, tbl, nil
		}
		if len(ce) == 0 {
			return nil, tbl, &mealy.ContractViolationError{
				Kind:   "empty-counterexample",
				Detail: "EquivalenceQuery reported non-equivalent with an empty counterexample",
			}
		}
		for _, prefix := range words.Prefixes(words.Word[A](ce)) {
			tbl.S.Add(prefix)
		}
	}
}

// Dump renders the observation table as a human-readable grid: one row per
// word in S ∪ S·A, one column per word in E, matching stmlearn's table
// pretty-printer in spirit though not byte-for-byte.
func (tbl *Table[A, O]) Dump() string {
	var sb strings.Builder
	tbl.dumpTo(context.Background(), &sb)
	return sb.String()
}

func (tbl *Table[A, O]) dumpTo(ctx context.Context, w io.Writer) {
	if w == nil {
		w = log.Default().Writer()
	}
	es := tbl.E.Slice()
	fmt.Fprintf(w, "S \\ E")
	for _, e := range es {
		fmt.Fprintf(w, "\t%v", e)
	}
	fmt.Fprintln(w)

	printRow := func(x words.Word[A]) {
		fmt.Fprintf(w, "%v", x)
		for _, e := range es {
			c, err := tbl.cell(ctx, x, e)
			if err != nil {
				fmt.Fprintf(w, "\t<err:%v>", err)
				continue
			}
			fmt.Fprintf(w, "\t%v", []O(c))
		}
		fmt.Fprintln(w)
	}

	for _, s := range tbl.S.Slice() {
		printRow(s)
	}
	sa, err := tbl.sa(ctx)
	if err == nil {
		for _, t := range sa.Slice() {
			if tbl.S.Contains(t) {
				continue
			}
			printRow(t)
		}
	}
}
