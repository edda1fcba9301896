// Package words provides the Word/Row value types both learners build on,
// and an insertion-ordered Word set with a change counter (internal/oset's
// Set, specialized to words): the observation table's S and E sets are
// built on this. Go slices are not comparable, so unlike stmlearn's Python
// tuples they cannot be map keys or oset.Set elements directly; this
// package canonicalizes a Word to a string key for that purpose while
// keeping the original slice around for everything that needs the actual
// symbols.
package words

import (
	"fmt"
	"strings"

	"github.com/rfielding/mealylearn/internal/oset"
)

// sep is used to delimit elements when building a canonical string key for
// a Word or Row. It is chosen to be a control character unlikely to appear
// in ordinary symbol/output values (strings, ints, runes); this is a
// deliberate simplification noted in DESIGN.md rather than a full
// structural-hash scheme, which Go's type system gives no generic hook for.
const sep = "\x1f"

// Word is a finite ordered sequence of symbols (or, for output words, of
// output tokens). The empty word is ε, represented as a nil/empty slice.
type Word[T comparable] []T

// Concat returns a new word equal to a followed by b. Neither argument is
// mutated.
func Concat[T comparable](a, b Word[T]) Word[T] {
	out := make(Word[T], 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// Prefixes returns every non-empty prefix of w, shortest first, i.e.
// w[0:1], w[0:2], ..., w[0:len(w)].
func Prefixes[T comparable](w Word[T]) []Word[T] {
	out := make([]Word[T], 0, len(w))
	for i := 1; i <= len(w); i++ {
		out = append(out, append(Word[T]{}, w[:i]...))
	}
	return out
}

// Equal reports whether a and b contain the same elements in the same
// order.
func Equal[T comparable](a, b Word[T]) bool {
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

// Key returns a canonical string suitable for use as a map key or oset.Set
// element representing w.
func Key[T comparable](w Word[T]) string {
	var sb strings.Builder
	for _, t := range w {
		fmt.Fprintf(&sb, "%v%s", t, sep)
	}
	return sb.String()
}

// Row is the vector of output words observed for one access sequence
// across every distinguishing suffix, in a fixed ordering of E. Two rows
// are equal, for closure/consistency purposes, iff their Key()s match.
type Row[O comparable] []Word[O]

// Key returns a canonical string key for r, built the same way Word.Key
// does but nesting one level to keep cells distinguishable from each
// other.
func (r Row[O]) Key() string {
	var sb strings.Builder
	for _, cell := range r {
		sb.WriteString(Key(cell))
		sb.WriteString(sep)
	}
	return sb.String()
}

// Equal reports whether r and other have identical cells in the same
// order.
func (r Row[O]) Equal(other Row[O]) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if !Equal(r[i], other[i]) {
			return false
		}
	}
	return true
}

// Set is an insertion-ordered set of Words with a change counter, the Go
// analogue of stmlearn's NotifierSet specialized to words (the observation
// table's S and E are each one of these).
type Set[T comparable] struct {
	keys  *oset.Set[string]
	byKey map[string]Word[T]
}

// NewSet returns an empty Set.
func NewSet[T comparable]() *Set[T] {
	return &Set[T]{keys: oset.New[string](), byKey: make(map[string]Word[T])}
}

// Add inserts w if absent. Returns true if w was newly added.
func (s *Set[T]) Add(w Word[T]) bool {
	k := Key(w)
	if s.keys.Add(k) {
		s.byKey[k] = w
		return true
	}
	return false
}

// Contains reports whether w is a member.
func (s *Set[T]) Contains(w Word[T]) bool {
	return s.keys.Contains(Key(w))
}

// Slice returns the members in insertion order.
func (s *Set[T]) Slice() []Word[T] {
	out := make([]Word[T], 0, s.keys.Len())
	for _, k := range s.keys.Slice() {
		out = append(out, s.byKey[k])
	}
	return out
}

// Len returns the number of members.
func (s *Set[T]) Len() int {
	return s.keys.Len()
}

// ChangeCounter returns the set's change counter (see internal/oset).
func (s *Set[T]) ChangeCounter() int {
	return s.keys.ChangeCounter()
}
