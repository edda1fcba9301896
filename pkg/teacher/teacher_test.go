package teacher

import (
	"context"
	"testing"

	"github.com/rfielding/mealylearn/pkg/mealy"
)

func identityMachine(alphabet []string) *mealy.Machine[string, string] {
	s0 := mealy.NewState[string, string]("s0")
	for _, a := range alphabet {
		s0.AddEdge(a, "x", s0, false)
	}
	return mealy.New[string, string](s0)
}

func toggleMachine() *mealy.Machine[string, string] {
	s0 := mealy.NewState[string, string]("s0")
	s1 := mealy.NewState[string, string]("s1")
	s0.AddEdge("a", "1", s1, false)
	s1.AddEdge("a", "0", s0, false)
	return mealy.New[string, string](s0)
}

func TestSimulatedMembershipQuery(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated[string, string]([]string{"a"}, toggleMachine())

	got, err := sim.MembershipQuery(ctx, []string{"a", "a", "a"})
	if err != nil {
		t.Fatalf("MembershipQuery() error: %v", err)
	}
	want := []string{"1", "0", "1"}
	if len(got) != len(want) {
		t.Fatalf("MembershipQuery() = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("MembershipQuery()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSimulatedEquivalenceQueryEqual(t *testing.T) {
	ctx := context.Background()
	alphabet := []string{"a"}
	sim := NewSimulated[string, string](alphabet, toggleMachine())

	// A separately built copy of the target should be judged equivalent.
	equivalent, ce, err := sim.EquivalenceQuery(ctx, toggleMachine())
	if err != nil {
		t.Fatalf("EquivalenceQuery() error: %v", err)
	}
	if !equivalent {
		t.Fatalf("EquivalenceQuery() = (false, %v), want equivalent", ce)
	}
	if ce != nil {
		t.Fatalf("EquivalenceQuery() counterexample = %v, want nil", ce)
	}
}

func TestSimulatedEquivalenceQueryFindsCounterexample(t *testing.T) {
	ctx := context.Background()
	alphabet := []string{"a"}
	sim := NewSimulated[string, string](alphabet, toggleMachine())

	wrong := identityMachine(alphabet)
	equivalent, ce, err := sim.EquivalenceQuery(ctx, wrong)
	if err != nil {
		t.Fatalf("EquivalenceQuery() error: %v", err)
	}
	if equivalent {
		t.Fatal("EquivalenceQuery() = true, want a counterexample")
	}
	if len(ce) == 0 {
		t.Fatal("EquivalenceQuery() counterexample is empty, want non-empty")
	}
}

const doorSpec = `
initial(closed).
transition(closed, open, open, ok).
transition(closed, close, closed, ok).
transition(closed, push, closed, ok).
transition(open, open, open, ok).
transition(open, close, closed, ok).
transition(open, push, broken, ok).
transition(broken, open, broken, ok).
transition(broken, close, broken, ok).
transition(broken, push, broken, ok).
`

func TestPrologTeacherMembershipQuery(t *testing.T) {
	ctx := context.Background()
	pt, err := NewPrologTeacher(ctx, doorSpec)
	if err != nil {
		t.Fatalf("NewPrologTeacher() error: %v", err)
	}

	wantAlphabet := []string{"close", "open", "push"}
	gotAlphabet := pt.Alphabet()
	if len(gotAlphabet) != len(wantAlphabet) {
		t.Fatalf("Alphabet() = %v, want %v", gotAlphabet, wantAlphabet)
	}
	for i := range gotAlphabet {
		if gotAlphabet[i] != wantAlphabet[i] {
			t.Fatalf("Alphabet() = %v, want %v", gotAlphabet, wantAlphabet)
		}
	}

	out, err := pt.MembershipQuery(ctx, []string{"open", "push"})
	if err != nil {
		t.Fatalf("MembershipQuery() error: %v", err)
	}
	if len(out) != 2 || out[0] != "ok" || out[1] != "ok" {
		t.Fatalf("MembershipQuery() = %v, want [ok ok]", out)
	}
}

func TestPrologTeacherEquivalenceQuery(t *testing.T) {
	ctx := context.Background()
	pt, err := NewPrologTeacher(ctx, doorSpec)
	if err != nil {
		t.Fatalf("NewPrologTeacher() error: %v", err)
	}

	target, err := pt.materialize(ctx)
	if err != nil {
		t.Fatalf("materialize() error: %v", err)
	}

	equivalent, ce, err := pt.EquivalenceQuery(ctx, target)
	if err != nil {
		t.Fatalf("EquivalenceQuery() error: %v", err)
	}
	if !equivalent {
		t.Fatalf("EquivalenceQuery() against its own materialization = (false, %v), want equivalent", ce)
	}
}
