// Package ttt implements a discrimination-tree based learner, the TTT
// family's classification structure adapted for Mealy machines: each inner
// node carries a distinguishing suffix, each leaf a representative access
// sequence, and the tree discriminates two words by the final output
// symbol of querying access·suffix, applied uniformly by Sift and by
// leaf-splitting.
package ttt

import (
	"context"
	"fmt"

	"github.com/rfielding/mealylearn/internal/words"
	"github.com/rfielding/mealylearn/pkg/mealy"
	"github.com/rfielding/mealylearn/pkg/teacher"
)

// node is one node of the discrimination tree. Inner nodes carry a
// non-empty distinguishing suffix and branch on the final output symbol of
// membership_query(word·suffix); leaves carry a representative access
// sequence.
type node[A comparable, O comparable] struct {
	isLeaf bool
	parent *node[A, O]

	// inner-node fields
	suffix   words.Word[A]
	children map[O]*node[A, O]

	// leaf-only field
	accessSeq words.Word[A]
}

// dtree is the discrimination tree plus the index from access-sequence key
// to the leaf that owns it.
type dtree[A comparable, O comparable] struct {
	root        *node[A, O]
	accessIndex map[string]*node[A, O]
}

func newDTree[A comparable, O comparable]() *dtree[A, O] {
	root := &node[A, O]{isLeaf: true, accessSeq: words.Word[A]{}}
	return &dtree[A, O]{
		root:        root,
		accessIndex: map[string]*node[A, O]{words.Key(words.Word[A]{}): root},
	}
}

// lastOutput queries teach for x·suffix and returns the final output
// symbol, the uniform unit of discrimination this tree uses. suffix must be
// non-empty.
func lastOutput[A comparable, O comparable](ctx context.Context, teach teacher.Teacher[A, O], x, suffix words.Word[A]) (O, error) {
	var zero O
	if len(suffix) == 0 {
		return zero, &mealy.ContractViolationError{
			Kind:   "empty-discriminating-suffix",
			Detail: "lastOutput requires a non-empty suffix",
		}
	}
	full := words.Concat(x, suffix)
	out, err := teach.MembershipQuery(ctx, full)
	if err != nil {
		return zero, fmt.Errorf("membership query %v: %w", full, err)
	}
	if len(out) != len(full) {
		return zero, &mealy.ContractViolationError{
			Kind:   "membership-query-wrong-length",
			Detail: fmt.Sprintf("query %v returned %d outputs, want %d", full, len(out), len(full)),
		}
	}
	return out[len(out)-1], nil
}

// sift classifies w, descending the tree by the final-output-symbol
// convention. If an inner node's computed output has no existing child
// (meaning w belongs to an equivalence class not yet represented), sift
// creates a new leaf for w on the spot (a natural generalization of binary
// TTT sifting to Mealy machines' non-binary output alphabets) and indexes
// it as w's own access sequence.
func (t *dtree[A, O]) sift(ctx context.Context, teach teacher.Teacher[A, O], w words.Word[A]) (*node[A, O], error) {
	n := t.root
	for !n.isLeaf {
		out, err := lastOutput(ctx, teach, w, n.suffix)
		if err != nil {
			return nil, err
		}
		child, ok := n.children[out]
		if !ok {
			newLeaf := &node[A, O]{isLeaf: true, accessSeq: append(words.Word[A]{}, w...), parent: n}
			n.children[out] = newLeaf
			t.accessIndex[words.Key(w)] = newLeaf
			return newLeaf, nil
		}
		n = child
	}
	return n, nil
}

// splitLeaf replaces leaf with a new inner node discriminating by suffix,
// keeping leaf as one child and creating a fresh leaf for newAccess as the
// other. suffix must actually discriminate leaf.accessSeq from newAccess
// (different final output symbols); callers are expected to have already
// found such a suffix as part of processing a counterexample. A failure to
// discriminate is a fatal contract violation, since it means the caller's
// decomposition was wrong.
func (t *dtree[A, O]) splitLeaf(ctx context.Context, teach teacher.Teacher[A, O], leaf *node[A, O], suffix, newAccess words.Word[A]) error {
	o1, err := lastOutput(ctx, teach, leaf.accessSeq, suffix)
	if err != nil {
		return err
	}
	o2, err := lastOutput(ctx, teach, newAccess, suffix)
	if err != nil {
		return err
	}
	if o1 == o2 {
		return &mealy.ContractViolationError{
			Kind:   "non-discriminating-split-suffix",
			Detail: fmt.Sprintf("suffix %v does not distinguish %v from %v", suffix, leaf.accessSeq, newAccess),
		}
	}

	inner := &node[A, O]{suffix: append(words.Word[A]{}, suffix...), children: make(map[O]*node[A, O], 2), parent: leaf.parent}
	newLeaf := &node[A, O]{isLeaf: true, accessSeq: append(words.Word[A]{}, newAccess...), parent: inner}
	inner.children[o1] = leaf
	inner.children[o2] = newLeaf

	oldParent := leaf.parent
	leaf.parent = inner
	if oldParent == nil {
		t.root = inner
	} else {
		for o, c := range oldParent.children {
			if c == leaf {
				oldParent.children[o] = inner
				break
			}
		}
	}
	t.accessIndex[words.Key(newAccess)] = newLeaf
	return nil
}

// leaves returns every leaf currently in the tree, depth-first (just the
// root if the root is itself a leaf). Siblings are visited in map
// iteration order, so the order of the result is not stable between calls.
func (t *dtree[A, O]) leaves() []*node[A, O] {
	var out []*node[A, O]
	var walk func(n *node[A, O])
	walk = func(n *node[A, O]) {
		if n.isLeaf {
			out = append(out, n)
			return
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(t.root)
	return out
}
