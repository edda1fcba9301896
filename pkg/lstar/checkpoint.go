package lstar

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/rfielding/mealylearn/internal/words"
)

// Snapshot is a JSON-serializable copy of a Table's state: S, E, the
// alphabet, and every cached membership-query cell. It carries no teacher
// reference. Load needs one supplied separately, since a teacher is not in
// general serializable (pkg/teacher.PrologTeacher in particular holds a
// live interpreter).
type Snapshot[A comparable, O comparable] struct {
	Alphabet []words.Word[A]     `json:"alphabet"`
	S        []words.Word[A]     `json:"s"`
	E        []words.Word[A]     `json:"e"`
	Cells    []cellSnapshot[A, O] `json:"cells"`
}

type cellSnapshot[A comparable, O comparable] struct {
	X   words.Word[A] `json:"x"`
	E   words.Word[A] `json:"e"`
	Val words.Word[O] `json:"val"`
}

// Save captures tbl's current state as a Snapshot, ready for json.Marshal.
func (tbl *Table[A, O]) Save() Snapshot[A, O] {
	snap := Snapshot[A, O]{
		Alphabet: append([]words.Word[A]{}, tbl.alphabet...),
		S:        tbl.S.Slice(),
		E:        tbl.E.Slice(),
		Cells:    make([]cellSnapshot[A, O], 0, len(tbl.T)),
	}
	for _, c := range tbl.T {
		snap.Cells = append(snap.Cells, cellSnapshot[A, O]{X: c.X, E: c.E, Val: c.Val})
	}
	return snap
}

// MarshalJSON is a convenience wrapper around Save + json.Marshal.
func (tbl *Table[A, O]) MarshalJSON() ([]byte, error) {
	return json.Marshal(tbl.Save())
}

// Load rebuilds a Table from a Snapshot and a live teacher. The teacher's
// alphabet must match the snapshot's (same symbols, same order); this is
// checked, since a mismatched alphabet would silently corrupt S·A
// computations rather than fail loudly.
func Load[A comparable, O comparable](snap Snapshot[A, O], t interface {
	Alphabet() []A
}, logger *log.Logger) (*Table[A, O], error) {
	liveAlphabet := t.Alphabet()
	if len(liveAlphabet) != len(snap.Alphabet) {
		return nil, fmt.Errorf("lstar: Load: teacher alphabet has %d symbols, snapshot has %d", len(liveAlphabet), len(snap.Alphabet))
	}
	for i, a := range liveAlphabet {
		want := snap.Alphabet[i]
		if len(want) != 1 || want[0] != a {
			return nil, fmt.Errorf("lstar: Load: teacher alphabet symbol %d is %v, snapshot has %v", i, a, want)
		}
	}
	if logger == nil {
		logger = log.Default()
	}

	tbl := &Table[A, O]{
		alphabet: append([]words.Word[A]{}, snap.Alphabet...),
		logger:   logger,
		S:        words.NewSet[A](),
		E:        words.NewSet[A](),
		T:        make(map[string]tCell[A, O], len(snap.Cells)),
	}
	for _, s := range snap.S {
		tbl.S.Add(s)
	}
	for _, e := range snap.E {
		tbl.E.Add(e)
	}
	for _, c := range snap.Cells {
		tbl.T[cellKey(c.X, c.E)] = tCell[A, O]{X: c.X, E: c.E, Val: c.Val}
	}
	return tbl, nil
}
