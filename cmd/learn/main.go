// Command learn is a demo CLI driving either learner (pkg/lstar or pkg/ttt)
// against a built-in scenario or a Prolog fact-base file, printing the
// learned hypothesis's transition table. It is a flag-parsed diagnostic
// tool, not a wire protocol, kept deliberately close to the teacher repo's
// single-binary, flag-driven cmd/turducken.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/rfielding/mealylearn/pkg/lstar"
	"github.com/rfielding/mealylearn/pkg/mealy"
	"github.com/rfielding/mealylearn/pkg/teacher"
	"github.com/rfielding/mealylearn/pkg/ttt"
)

func main() {
	algo := flag.String("algo", "lstar", "learning algorithm: lstar or ttt")
	scenario := flag.String("scenario", "toggle", "built-in scenario: identity, toggle, mod3, door, five-state (ignored if -spec is set)")
	specFile := flag.String("spec", "", "Prolog fact-base file (initial/1, transition/4); overrides -scenario")
	printTable := flag.Bool("print-table", false, "print the observation table/tree before each refinement step")
	flag.Parse()

	ctx := context.Background()

	t, err := buildTeacher(ctx, *specFile, *scenario)
	if err != nil {
		log.Fatalf("learn: %v", err)
	}

	hyp, err := runLearner(ctx, *algo, t, *printTable)
	if err != nil {
		log.Fatalf("learn: %v", err)
	}

	printHypothesis(hyp)
}

func buildTeacher(ctx context.Context, specFile, scenario string) (teacher.Teacher[string, string], error) {
	if specFile != "" {
		data, err := os.ReadFile(specFile)
		if err != nil {
			return nil, fmt.Errorf("reading spec file: %w", err)
		}
		pt, err := teacher.NewPrologTeacher(ctx, string(data))
		if err != nil {
			return nil, fmt.Errorf("loading prolog spec: %w", err)
		}
		return pt, nil
	}

	target, alphabet, err := builtinScenario(scenario)
	if err != nil {
		return nil, err
	}
	return teacher.NewSimulated[string, string](alphabet, target), nil
}

func builtinScenario(name string) (*mealy.Machine[string, string], []string, error) {
	switch name {
	case "identity":
		alphabet := []string{"a", "b"}
		s0 := mealy.NewState[string, string]("s0")
		for _, a := range alphabet {
			s0.AddEdge(a, "x", s0, false)
		}
		return mealy.New[string, string](s0), alphabet, nil

	case "toggle":
		s0 := mealy.NewState[string, string]("s0")
		s1 := mealy.NewState[string, string]("s1")
		s0.AddEdge("a", "1", s1, false)
		s1.AddEdge("a", "0", s0, false)
		return mealy.New[string, string](s0), []string{"a"}, nil

	case "mod3":
		q0 := mealy.NewState[string, string]("q0")
		q1 := mealy.NewState[string, string]("q1")
		q2 := mealy.NewState[string, string]("q2")
		q0.AddEdge("tick", "1", q1, false)
		q1.AddEdge("tick", "2", q2, false)
		q2.AddEdge("tick", "0", q0, false)
		return mealy.New[string, string](q0), []string{"tick"}, nil

	case "door":
		closed := mealy.NewState[string, string]("closed")
		open := mealy.NewState[string, string]("open")
		broken := mealy.NewState[string, string]("broken")
		closed.AddEdge("open", "ok", open, false)
		closed.AddEdge("close", "ok", closed, false)
		closed.AddEdge("push", "ok", closed, false)
		open.AddEdge("open", "ok", open, false)
		open.AddEdge("close", "ok", closed, false)
		open.AddEdge("push", "ok", broken, false)
		broken.AddEdge("open", "ok", broken, false)
		broken.AddEdge("close", "ok", broken, false)
		broken.AddEdge("push", "ok", broken, false)
		return mealy.New[string, string](closed), []string{"open", "close", "push"}, nil

	case "five-state":
		names := []string{"q0", "q1", "q2", "q3", "q4"}
		states := make([]*mealy.State[string, string], 5)
		for i, name := range names {
			states[i] = mealy.NewState[string, string](name)
		}
		for i, s := range states {
			s.AddEdge("a", "0", states[(i+1)%5], false)
			s.AddEdge("b", names[i], states[(i+2)%5], false)
		}
		return mealy.New[string, string](states[0]), []string{"a", "b"}, nil

	default:
		return nil, nil, fmt.Errorf("unknown scenario %q (want one of identity, toggle, mod3, door, five-state)", name)
	}
}

func runLearner(ctx context.Context, algo string, t teacher.Teacher[string, string], printTable bool) (*mealy.Machine[string, string], error) {
	switch algo {
	case "lstar":
		hyp, _, err := lstar.Run[string, string](ctx, t, lstar.RunOptions[string, string]{
			PrintObservationTable: printTable,
			Out:                   os.Stderr,
		})
		return hyp, err

	case "ttt":
		hyp, _, err := ttt.Run[string, string](ctx, t, ttt.RunOptions[string, string]{
			PrintObservationTable: printTable,
			Out:                   os.Stderr,
		})
		return hyp, err

	default:
		return nil, fmt.Errorf("unknown algorithm %q (want lstar or ttt)", algo)
	}
}

func printHypothesis(hyp *mealy.Machine[string, string]) {
	states := hyp.GetStates()
	fmt.Printf("learned hypothesis: %d states, initial=%s\n", len(states), hyp.Initial().ID())
	for _, s := range states {
		for _, a := range hyp.GetAlphabet() {
			out, to, ok := s.Edge(a)
			if !ok {
				continue
			}
			fmt.Printf("  %s --%s/%s--> %s\n", s.ID(), a, out, to.ID())
		}
	}
}
