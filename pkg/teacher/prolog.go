package teacher

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/ichiban/prolog"

	"github.com/rfielding/mealylearn/pkg/mealy"
)

// PrologTeacher is a teacher backed by a Prolog fact base, adapted from
// pkg/prolog's Engine wrapper around github.com/ichiban/prolog. Where that
// engine's loadCore describes state machines for visualization with
// state/2, initial/1 and transition/3, PrologTeacher extends the same
// vocabulary with a 4th transition argument carrying the Mealy output:
//
//	initial(State).
//	transition(From, Input, To, Output).
//
// Input and Output atoms are read back as Go strings, so PrologTeacher is
// always teacher.Teacher[string, string].
type PrologTeacher struct {
	mu          sync.Mutex
	interpreter *prolog.Interpreter
	log         *log.Logger

	alphabet []string
	initial  string
}

// NewPrologTeacher loads a Prolog spec source (initial/1 and transition/4
// facts, in the vocabulary above) and derives the alphabet by collecting
// every distinct Input atom used in a transition/4 fact, sorted for
// deterministic iteration order.
func NewPrologTeacher(ctx context.Context, source string) (*PrologTeacher, error) {
	return NewPrologTeacherWithLogger(ctx, source, log.Default())
}

// NewPrologTeacherWithLogger is NewPrologTeacher with an explicit logger,
// matching the teacher repo's preference for constructor-injected loggers
// over global state.
func NewPrologTeacherWithLogger(ctx context.Context, source string, logger *log.Logger) (*PrologTeacher, error) {
	interp := prolog.New(nil, nil)
	if err := interp.Exec(source); err != nil {
		return nil, fmt.Errorf("loading prolog spec: %w", err)
	}

	t := &PrologTeacher{interpreter: interp, log: logger}

	initial, err := t.queryInitial(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying initial state: %w", err)
	}
	t.initial = initial

	alphabet, err := t.queryAlphabet(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying alphabet: %w", err)
	}
	t.alphabet = alphabet

	logger.Printf("prolog teacher: initial=%s alphabet=%v", t.initial, t.alphabet)

	return t, nil
}

func (t *PrologTeacher) queryInitial(ctx context.Context) (string, error) {
	sols, err := t.interpreter.QueryContext(ctx, "initial(S).")
	if err != nil {
		return "", err
	}
	defer sols.Close()

	if !sols.Next() {
		return "", fmt.Errorf("no initial/1 fact found")
	}
	var result struct{ S interface{} }
	if err := sols.Scan(&result); err != nil {
		return "", err
	}
	return termToString(result.S), nil
}

func (t *PrologTeacher) queryAlphabet(ctx context.Context) ([]string, error) {
	sols, err := t.interpreter.QueryContext(ctx, "transition(_, Input, _, _).")
	if err != nil {
		return nil, err
	}
	defer sols.Close()

	seen := make(map[string]bool)
	var alphabet []string
	for sols.Next() {
		var result struct{ Input interface{} }
		if err := sols.Scan(&result); err != nil {
			return nil, err
		}
		a := termToString(result.Input)
		if !seen[a] {
			seen[a] = true
			alphabet = append(alphabet, a)
		}
	}
	sort.Strings(alphabet)
	return alphabet, nil
}

// Alphabet implements teacher.Teacher.
func (t *PrologTeacher) Alphabet() []string {
	out := make([]string, len(t.alphabet))
	copy(out, t.alphabet)
	return out
}

// MembershipQuery implements teacher.Teacher by walking transition/4 facts
// one symbol at a time from the initial state, matching pkg/prolog's
// query-per-step idiom for extracting deterministic facts from the engine.
func (t *PrologTeacher) MembershipQuery(ctx context.Context, w []string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.initial
	out := make([]string, 0, len(w))
	for _, a := range w {
		next, output, err := t.step(ctx, state, a)
		if err != nil {
			return nil, fmt.Errorf("stepping on %q from %q: %w", a, state, err)
		}
		out = append(out, output)
		state = next
	}
	return out, nil
}

func (t *PrologTeacher) step(ctx context.Context, state, input string) (next, output string, err error) {
	query := fmt.Sprintf("transition(%s, %s, To, Output).", quoteAtom(state), quoteAtom(input))
	sols, err := t.interpreter.QueryContext(ctx, query)
	if err != nil {
		return "", "", err
	}
	defer sols.Close()

	if !sols.Next() {
		return "", "", fmt.Errorf("no transition/4 fact for state %q input %q", state, input)
	}
	var result struct {
		To     interface{}
		Output interface{}
	}
	if err := sols.Scan(&result); err != nil {
		return "", "", err
	}
	return termToString(result.To), termToString(result.Output), nil
}

// EquivalenceQuery implements teacher.Teacher by delegating to a Simulated
// teacher built from a hypothesis-sized walk of the Prolog fact base:
// building the full target machine once (it is finite by construction,
// being a closed fact base) and reusing Simulated's bounded enumeration
// rather than reimplementing it. A real distinguishing-set oracle would
// replace the bounded enumeration here; that remains out of scope.
func (t *PrologTeacher) EquivalenceQuery(ctx context.Context, hyp *mealy.Machine[string, string]) (bool, []string, error) {
	target, err := t.materialize(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("materializing prolog target: %w", err)
	}
	sim := NewSimulated[string, string](t.Alphabet(), target)
	return sim.EquivalenceQuery(ctx, hyp)
}

// materialize builds an in-memory mealy.Machine from every transition/4
// fact reachable from the initial state, so that bounded-enumeration
// equivalence checking (Simulated) never has to re-enter the Prolog engine
// per word.
func (t *PrologTeacher) materialize(ctx context.Context) (*mealy.Machine[string, string], error) {
	sols, err := t.interpreter.QueryContext(ctx, "transition(From, Input, To, Output).")
	if err != nil {
		return nil, err
	}
	defer sols.Close()

	states := make(map[string]*mealy.State[string, string])
	get := func(name string) *mealy.State[string, string] {
		if s, ok := states[name]; ok {
			return s
		}
		s := mealy.NewState[string, string](name)
		states[name] = s
		return s
	}

	for sols.Next() {
		var result struct {
			From, Input, To, Output interface{}
		}
		if err := sols.Scan(&result); err != nil {
			return nil, err
		}
		from := get(termToString(result.From))
		to := get(termToString(result.To))
		if err := from.AddEdge(termToString(result.Input), termToString(result.Output), to, false); err != nil {
			return nil, err
		}
	}

	initial, ok := states[t.initial]
	if !ok {
		return nil, fmt.Errorf("initial state %q has no outgoing transitions", t.initial)
	}
	return mealy.New[string, string](initial), nil
}

// quoteAtom renders a Go string as a lowercase Prolog atom literal, quoting
// it if it is not already a valid bare atom (mirrors how Prolog source
// written by hand would spell these facts).
func quoteAtom(s string) string {
	if s == "" {
		return "''"
	}
	bare := s[0] >= 'a' && s[0] <= 'z'
	for i := 1; bare && i < len(s); i++ {
		c := s[i]
		bare = c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
	}
	if bare {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", "\\'") + "'"
}

// termToString renders a Prolog solution binding as a plain Go string,
// adapted from pkg/prolog's termToString helper (trimmed to the atom/
// number cases PrologTeacher's vocabulary actually produces).
func termToString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}
