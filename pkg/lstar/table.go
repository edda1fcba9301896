// Package lstar implements Angluin's L* algorithm adapted for Mealy
// machines: an observation table (S, E, T) refined by closure/consistency
// steps until a hypothesis can be built and checked against the teacher.
package lstar

import (
	"context"
	"fmt"
	"log"

	"github.com/rfielding/mealylearn/internal/oset"
	"github.com/rfielding/mealylearn/internal/words"
	"github.com/rfielding/mealylearn/pkg/mealy"
	"github.com/rfielding/mealylearn/pkg/teacher"
)

// tCell is one entry of T: the output word observed for the access
// sequence x concatenated with distinguishing suffix e, projected to the
// tail of length len(e). Storing x and e alongside the value (rather than
// only a derived string key) is what lets Save/Load round-trip the table
// without guessing back the original words from a key.
type tCell[A comparable, O comparable] struct {
	X, E words.Word[A]
	Val  words.Word[O]
}

func cellKey[A comparable](x, e words.Word[A]) string {
	return words.Key(x) + "||" + words.Key(e)
}

// Table is the observation table (S, E, T): a set of access sequences S, a
// set of distinguishing suffixes E, and the cache T of membership-query
// results over S ∪ S·A extended by E. S and E carry their own change
// counters (internal/words.Set, built on internal/oset); Table layers
// SA/closed/consistent memoization on top of those counters, the Go
// analogue of stmlearn's depends_on_S / depends_on_S_E decorators.
type Table[A comparable, O comparable] struct {
	teach    teacher.Teacher[A, O]
	alphabet []words.Word[A] // each a singleton word, in the teacher's order
	logger   *log.Logger

	S *words.Set[A]
	E *words.Set[A]
	T map[string]tCell[A, O]

	saMemo         oset.Memo[int, *words.Set[A]]
	susaMemo       oset.Memo[int, *words.Set[A]]
	closedMemo     oset.Memo[[2]int, bool]
	consistentMemo oset.Memo[[2]int, bool]
}

// NewTable builds the initial observation table: S = {ε}, E = the
// alphabet's singleton suffixes, T populated lazily on first access.
func NewTable[A comparable, O comparable](t teacher.Teacher[A, O], logger *log.Logger) *Table[A, O] {
	if logger == nil {
		logger = log.Default()
	}
	alphabet := t.Alphabet()
	singles := make([]words.Word[A], len(alphabet))
	for i, a := range alphabet {
		singles[i] = words.Word[A]{a}
	}

	tbl := &Table[A, O]{
		teach:    t,
		alphabet: singles,
		logger:   logger,
		S:        words.NewSet[A](),
		E:        words.NewSet[A](),
		T:        make(map[string]tCell[A, O]),
	}
	tbl.S.Add(words.Word[A]{})
	for _, a := range singles {
		tbl.E.Add(a)
	}
	return tbl
}

func (tbl *Table[A, O]) counters() [2]int {
	return [2]int{tbl.S.ChangeCounter(), tbl.E.ChangeCounter()}
}

// cell returns T(x, e), the SUL's output for x·e projected to the tail of
// length len(e), issuing and caching a membership query on first access.
func (tbl *Table[A, O]) cell(ctx context.Context, x, e words.Word[A]) (words.Word[O], error) {
	key := cellKey(x, e)
	if c, ok := tbl.T[key]; ok {
		return c.Val, nil
	}

	full := words.Concat(x, e)
	out, err := tbl.teach.MembershipQuery(ctx, full)
	if err != nil {
		return nil, fmt.Errorf("membership query %v: %w", full, err)
	}
	if len(out) != len(full) {
		return nil, &mealy.ContractViolationError{
			Kind:   "membership-query-wrong-length",
			Detail: fmt.Sprintf("query %v returned %d outputs, want %d", full, len(out), len(full)),
		}
	}
	tail := words.Word[O](out[len(x):])
	tbl.T[key] = tCell[A, O]{X: x, E: e, Val: tail}
	return tail, nil
}

// row returns row(x) for x in S ∪ S·A: the vector of membership-query
// results for x·e across every e in E, in E's iteration order. It is a
// fatal contract violation to request the row of a word outside that
// domain.
func (tbl *Table[A, O]) row(ctx context.Context, x words.Word[A]) (words.Row[O], error) {
	susa, err := tbl.susa(ctx)
	if err != nil {
		return nil, err
	}
	if !susa.Contains(x) {
		return nil, &mealy.ContractViolationError{
			Kind:   "row-out-of-range",
			Detail: fmt.Sprintf("%v is not in S ∪ S·A", x),
		}
	}

	es := tbl.E.Slice()
	row := make(words.Row[O], 0, len(es))
	for _, e := range es {
		c, err := tbl.cell(ctx, x, e)
		if err != nil {
			return nil, err
		}
		row = append(row, c)
	}
	return row, nil
}

// sa returns S·A, memoized on S's change counter (it does not depend on E).
func (tbl *Table[A, O]) sa(ctx context.Context) (*words.Set[A], error) {
	var computeErr error
	result := tbl.saMemo.Get(tbl.S.ChangeCounter(), func() *words.Set[A] {
		out := words.NewSet[A]()
		for _, s := range tbl.S.Slice() {
			for _, a := range tbl.alphabet {
				out.Add(words.Concat(s, a))
			}
		}
		return out
	})
	return result, computeErr
}

// susa returns S ∪ S·A, memoized on S's change counter.
func (tbl *Table[A, O]) susa(ctx context.Context) (*words.Set[A], error) {
	sa, err := tbl.sa(ctx)
	if err != nil {
		return nil, err
	}
	result := tbl.susaMemo.Get(tbl.S.ChangeCounter(), func() *words.Set[A] {
		out := words.NewSet[A]()
		for _, s := range tbl.S.Slice() {
			out.Add(s)
		}
		for _, t := range sa.Slice() {
			out.Add(t)
		}
		return out
	})
	return result, nil
}

// IsClosed reports the table's closure invariant: every row in S·A equals
// some row in S. Memoized on (S, E) change counters.
func (tbl *Table[A, O]) IsClosed(ctx context.Context) (bool, error) {
	var computeErr error
	result := tbl.closedMemo.Get(tbl.counters(), func() bool {
		ok, err := tbl.isClosedUncached(ctx)
		computeErr = err
		return ok
	})
	return result, computeErr
}

func (tbl *Table[A, O]) isClosedUncached(ctx context.Context) (bool, error) {
	sRows := make(map[string]bool)
	for _, s := range tbl.S.Slice() {
		r, err := tbl.row(ctx, s)
		if err != nil {
			return false, err
		}
		sRows[r.Key()] = true
	}

	sa, err := tbl.sa(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range sa.Slice() {
		r, err := tbl.row(ctx, t)
		if err != nil {
			return false, err
		}
		if !sRows[r.Key()] {
			return false, nil
		}
	}
	return true, nil
}

// IsConsistent reports the table's consistency invariant: rows equal in S
// remain equal after appending any single input symbol. Memoized on (S, E)
// change counters.
func (tbl *Table[A, O]) IsConsistent(ctx context.Context) (bool, error) {
	var computeErr error
	result := tbl.consistentMemo.Get(tbl.counters(), func() bool {
		ok, err := tbl.isConsistentUncached(ctx)
		computeErr = err
		return ok
	})
	return result, computeErr
}

func (tbl *Table[A, O]) isConsistentUncached(ctx context.Context) (bool, error) {
	ss := tbl.S.Slice()
	for i := 0; i < len(ss); i++ {
		for j := i + 1; j < len(ss); j++ {
			s1, s2 := ss[i], ss[j]
			r1, err := tbl.row(ctx, s1)
			if err != nil {
				return false, err
			}
			r2, err := tbl.row(ctx, s2)
			if err != nil {
				return false, err
			}
			if !r1.Equal(r2) {
				continue
			}
			for _, a := range tbl.alphabet {
				ra1, err := tbl.row(ctx, words.Concat(s1, a))
				if err != nil {
					return false, err
				}
				ra2, err := tbl.row(ctx, words.Concat(s2, a))
				if err != nil {
					return false, err
				}
				if !ra1.Equal(ra2) {
					return false, nil
				}
			}
		}
	}
	return true, nil
}
