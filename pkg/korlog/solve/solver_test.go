package solve

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cognicore/korlog/pkg/korlog/internalerr"
	"github.com/cognicore/korlog/pkg/korlog/kb"
	"github.com/cognicore/korlog/pkg/korlog/logic"
)

var (
	comp = logic.NewCompound
	v    = logic.NewVar
)

func atom(s string) logic.Term { return logic.Atom(s) }

// familyKB holds a three-generation chain plus the grandparent rule.
func familyKB(t *testing.T) *kb.KnowledgeBase {
	t.Helper()
	k := kb.New(kb.Options{})
	facts := []*logic.Compound{
		comp("parent", atom("alice"), atom("bob")),
		comp("parent", atom("bob"), atom("carol")),
		comp("parent", atom("carol"), atom("dave")),
	}
	for _, f := range facts {
		if err := k.AssertFact(f); err != nil {
			t.Fatalf("AssertFact(%v) failed: %v", f, err)
		}
	}
	err := k.AssertRule(comp("grandparent", v("X"), v("Z")),
		comp("parent", v("X"), v("Y")),
		comp("parent", v("Y"), v("Z")),
	)
	if err != nil {
		t.Fatalf("AssertRule failed: %v", err)
	}
	return k
}

func solver(k *kb.KnowledgeBase, opts Options) *Solver {
	return New(k.Snapshot(), logic.NewGen(), opts)
}

func collect(t *testing.T, sols *Solutions) []Bindings {
	t.Helper()
	var out []Bindings
	for sols.Next() {
		out = append(out, sols.Bindings())
	}
	if err := sols.Err(); err != nil {
		t.Fatalf("Enumeration failed: %v", err)
	}
	return out
}

func TestFactRoundtrip(t *testing.T) {
	ctx := context.Background()
	sv := solver(familyKB(t), Options{})

	sols, err := sv.Query(ctx, comp("parent", atom("alice"), atom("bob")))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if !sols.Next() {
		t.Fatalf("Asserted fact not provable: %v", sols.Err())
	}
	if b := sols.Bindings(); len(b) != 0 {
		t.Errorf("Ground query produced bindings: %v", b)
	}
	if sols.Next() {
		t.Error("Ground fact should have exactly one solution")
	}
	if sols.Err() != nil {
		t.Errorf("Exhaustion is not an error, got %v", sols.Err())
	}

	// A fact that was never asserted fails without error.
	sols, err = sv.Query(ctx, comp("parent", atom("bob"), atom("alice")))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if sols.Next() {
		t.Error("Unasserted fact should not be provable")
	}
	if sols.Err() != nil {
		t.Errorf("Search failure is not an error, got %v", sols.Err())
	}
}

func TestEnumerationOrder(t *testing.T) {
	k := kb.New(kb.Options{})
	k.AssertFact(comp("parent", atom("alice"), atom("bob")))
	k.AssertFact(comp("parent", atom("alice"), atom("carol")))
	k.AssertFact(comp("parent", atom("alice"), atom("dave")))
	sv := solver(k, Options{})

	got := collect(t, mustQuery(t, sv, comp("parent", atom("alice"), v("C"))))
	want := []Bindings{
		{"C": logic.Atom("bob")},
		{"C": logic.Atom("carol")},
		{"C": logic.Atom("dave")},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Solutions out of assertion order (-want +got):\n%s", diff)
	}
}

func mustQuery(t *testing.T, sv *Solver, goals ...logic.Term) *Solutions {
	t.Helper()
	sols, err := sv.Query(context.Background(), goals...)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	return sols
}

func TestConjunctionGrandparent(t *testing.T) {
	k := kb.New(kb.Options{})
	k.AssertFact(comp("parent", atom("a"), atom("b")))
	k.AssertFact(comp("parent", atom("b"), atom("c")))
	k.AssertRule(comp("grandparent", v("X"), v("Z")),
		comp("parent", v("X"), v("Y")),
		comp("parent", v("Y"), v("Z")),
	)
	sv := solver(k, Options{})

	got := collect(t, mustQuery(t, sv, comp("grandparent", v("X"), v("Z"))))
	want := []Bindings{{"X": logic.Atom("a"), "Z": logic.Atom("c")}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Grandparent solutions (-want +got):\n%s", diff)
	}
}

func TestSharedVariableAcrossGoals(t *testing.T) {
	k := kb.New(kb.Options{})
	k.AssertFact(comp("parent", atom("alice"), atom("bob")))
	k.AssertFact(comp("parent", atom("alice"), atom("carol")))
	k.AssertFact(comp("parent", atom("erin"), atom("bob")))
	sv := solver(k, Options{})

	// X must denote the same individual in both goals.
	got := collect(t, mustQuery(t, sv,
		comp("parent", v("X"), atom("bob")),
		comp("parent", v("X"), atom("carol")),
	))
	want := []Bindings{{"X": logic.Atom("alice")}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Conjunction solutions (-want +got):\n%s", diff)
	}
}

func TestRecursiveAncestor(t *testing.T) {
	k := familyKB(t)
	k.AssertRule(comp("ancestor", v("X"), v("Z")),
		comp("parent", v("X"), v("Z")),
	)
	k.AssertRule(comp("ancestor", v("X"), v("Z")),
		comp("parent", v("X"), v("Y")),
		comp("ancestor", v("Y"), v("Z")),
	)
	sv := solver(k, Options{})

	got := collect(t, mustQuery(t, sv, comp("ancestor", atom("alice"), v("W"))))
	want := []Bindings{
		{"W": logic.Atom("bob")},
		{"W": logic.Atom("carol")},
		{"W": logic.Atom("dave")},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Ancestor solutions (-want +got):\n%s", diff)
	}
}

func cyclicKB(t *testing.T) *kb.KnowledgeBase {
	t.Helper()
	k := kb.New(kb.Options{})
	k.AssertFact(comp("parent", atom("a"), atom("b")))
	k.AssertFact(comp("parent", atom("b"), atom("c")))
	k.AssertFact(comp("parent", atom("c"), atom("a")))
	k.AssertRule(comp("ancestor", v("X"), v("Z")),
		comp("parent", v("X"), v("Z")),
	)
	k.AssertRule(comp("ancestor", v("X"), v("Z")),
		comp("parent", v("X"), v("Y")),
		comp("ancestor", v("Y"), v("Z")),
	)
	return k
}

func TestCyclicAncestorStepBudget(t *testing.T) {
	ctx := context.Background()
	sv := solver(cyclicKB(t), Options{Limits: Limits{MaxSteps: 500}})

	// A ground proof completes long before the limit.
	if _, ok, err := sv.First(ctx, comp("ancestor", atom("a"), atom("b"))); err != nil || !ok {
		t.Fatalf("Ground ancestor query = %v, %v; want success", ok, err)
	}

	// Full enumeration never terminates on the cycle; the budget stops it.
	sols := mustQuery(t, sv, comp("ancestor", atom("a"), v("W")))
	n := 0
	for sols.Next() {
		n++
	}
	if n == 0 {
		t.Error("Expected some solutions before the budget hit")
	}
	var bErr *BudgetError
	if !errors.As(sols.Err(), &bErr) {
		t.Fatalf("Expected BudgetError, got %v", sols.Err())
	}
	if bErr.Resource != ResourceSteps || bErr.Limit != 500 {
		t.Errorf("BudgetError = %+v, want steps limit 500", bErr)
	}
	if !errors.Is(sols.Err(), internalerr.ErrBudgetExhausted) {
		t.Error("BudgetError should match the budget sentinel")
	}
	if sols.Steps() < 500 {
		t.Errorf("Steps() = %d, want at least the limit", sols.Steps())
	}
}

func TestDepthBudget(t *testing.T) {
	k := kb.New(kb.Options{})
	k.AssertRule(comp("loop"), atom("loop"))
	sv := solver(k, Options{Limits: Limits{MaxDepth: 16}})

	sols := mustQuery(t, sv, comp("loop"))
	if sols.Next() {
		t.Fatal("loop must not prove")
	}
	var bErr *BudgetError
	if !errors.As(sols.Err(), &bErr) {
		t.Fatalf("Expected BudgetError, got %v", sols.Err())
	}
	if bErr.Resource != ResourceDepth || bErr.Limit != 16 {
		t.Errorf("BudgetError = %+v, want depth limit 16", bErr)
	}
}

// Budget aborts must stay distinguishable from exhaustion: "no solutions"
// answers the query, "budget" does not.
func TestBudgetDistinctFromExhaustion(t *testing.T) {
	sv := solver(cyclicKB(t), Options{Limits: Limits{MaxSteps: 200}})

	exhausted := mustQuery(t, sv, comp("parent", atom("a"), atom("z")))
	if exhausted.Next() || exhausted.Err() != nil {
		t.Errorf("Failed finite query: Next and Err must be false, nil; got %v", exhausted.Err())
	}

	aborted := mustQuery(t, sv, comp("ancestor", v("A"), v("B")))
	for aborted.Next() {
	}
	if aborted.Err() == nil {
		t.Error("Aborted infinite query must carry an error")
	}
}

func TestDeterministicOrder(t *testing.T) {
	runOnce := func() []Bindings {
		sv := solver(familyKB(t), Options{})
		var out []Bindings
		sols := mustQuery(t, sv, comp("grandparent", v("X"), v("Z")))
		for sols.Next() {
			out = append(out, sols.Bindings())
		}
		return out
	}

	first, second := runOnce(), runOnce()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Two identical runs diverged (-first +second):\n%s", diff)
	}
	want := []Bindings{
		{"X": logic.Atom("alice"), "Z": logic.Atom("carol")},
		{"X": logic.Atom("bob"), "Z": logic.Atom("dave")},
	}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Errorf("Grandparent order (-want +got):\n%s", diff)
	}
}

func TestRestartableEnumeration(t *testing.T) {
	sv := solver(familyKB(t), Options{})
	goal := comp("parent", v("P"), v("C"))

	partial := mustQuery(t, sv, goal)
	if !partial.Next() {
		t.Fatal("First solution missing")
	}

	// A second Query starts over; the advanced enumeration is unaffected.
	fresh := collect(t, mustQuery(t, sv, goal))
	if len(fresh) != 3 {
		t.Fatalf("Fresh enumeration found %d solutions, want 3", len(fresh))
	}

	rest := 0
	for partial.Next() {
		rest++
	}
	if rest != 2 {
		t.Errorf("Advanced enumeration finished %d more solutions, want 2", rest)
	}
}

func TestProjection(t *testing.T) {
	sv := solver(familyKB(t), Options{})

	// The rule's internal Y never leaks into bindings.
	sols := mustQuery(t, sv, comp("grandparent", v("X"), v("Z")))
	if !sols.Next() {
		t.Fatalf("No grandparent solution: %v", sols.Err())
	}
	b := sols.Bindings()
	if len(b) != 2 {
		t.Errorf("Bindings = %v, want exactly X and Z", b)
	}
	if _, ok := b["X"]; !ok {
		t.Error("X missing from bindings")
	}
	if _, ok := b["Y"]; ok {
		t.Error("Internal rule variable leaked into bindings")
	}

	// Anonymous query variables are never projected.
	got := collect(t, mustQuery(t, sv, comp("parent", v("_"), v("C"))))
	for _, b := range got {
		if len(b) != 1 {
			t.Errorf("Bindings = %v, want only C", b)
		}
	}
	if len(got) != 3 {
		t.Errorf("Anonymous pattern found %d solutions, want 3", len(got))
	}
}

func TestUnconstrainedVariableResolvesToItself(t *testing.T) {
	k := kb.New(kb.Options{})
	k.AssertFact(comp("likes", v("Anyone"), atom("icecream")))
	sv := solver(k, Options{})

	sols := mustQuery(t, sv, comp("likes", v("P"), v("Q")))
	if !sols.Next() {
		t.Fatalf("Query failed: %v", sols.Err())
	}
	b := sols.Bindings()
	if !logic.Equal(b["Q"], logic.Atom("icecream")) {
		t.Errorf("Q = %v, want icecream", b["Q"])
	}
	if _, ok := b["P"].(logic.Var); !ok {
		t.Errorf("Unconstrained P should stay a variable, got %v", b["P"])
	}
}

func TestComparisonBuiltins(t *testing.T) {
	ctx := context.Background()
	sv := solver(kb.New(kb.Options{}), Options{})

	cases := []struct {
		goal logic.Term
		ok   bool
	}{
		{comp("==", atom("a"), atom("a")), true},
		{comp("==", atom("a"), atom("b")), false},
		{comp("==", comp("f", logic.Int(1)), comp("f", logic.Int(1))), true},
		{comp("==", logic.Int(1), logic.Str("1")), false},
		{comp("==", v("X"), v("X")), false}, // not ground, not yet computable
		{comp("!=", atom("a"), atom("b")), true},
		{comp("!=", atom("a"), atom("a")), false},
		{comp("<", logic.Int(1), logic.Int(2)), true},
		{comp("<", logic.Int(2), logic.Int(2)), false},
		{comp("<", atom("a"), atom("b")), true},
		{comp("<", logic.Str("ant"), logic.Str("bee")), true},
		{comp("<", logic.Int(1), atom("b")), false}, // mixed kinds unordered
		{comp("<", v("X"), logic.Int(9)), false},
		{comp("=<", logic.Int(2), logic.Int(2)), true},
		{comp("<=", logic.Int(2), logic.Int(2)), true},
		{comp("<=", logic.Int(3), logic.Int(2)), false},
		{comp(">", logic.Int(3), logic.Int(2)), true},
		{comp(">", logic.Int(2), logic.Int(3)), false},
		{comp(">=", logic.Int(2), logic.Int(2)), true},
		{comp(">=", logic.Int(1), logic.Int(2)), false},
		{comp("<", logic.Bool(false), logic.Bool(true)), false}, // booleans unordered
	}

	for _, tc := range cases {
		_, ok, err := sv.First(ctx, tc.goal)
		if err != nil {
			t.Errorf("%v returned error %v", tc.goal, err)
			continue
		}
		if ok != tc.ok {
			t.Errorf("%v = %v, want %v", tc.goal, ok, tc.ok)
		}
	}
}

func TestTypeTestBuiltins(t *testing.T) {
	ctx := context.Background()
	sv := solver(kb.New(kb.Options{}), Options{})

	cases := []struct {
		goal logic.Term
		ok   bool
	}{
		{comp("var", v("X")), true},
		{comp("nonvar", v("X")), false},
		{comp("nonvar", atom("a")), true},
		{comp("atom", atom("a")), true},
		{comp("atom", logic.Int(1)), false},
		{comp("integer", logic.Int(42)), true},
		{comp("integer", logic.Str("42")), false},
		{comp("string", logic.Str("s")), true},
		{comp("bool", logic.Bool(true)), true},
		{comp("bool", atom("true")), false},
		{comp("compound", comp("f", atom("a"))), true},
		{comp("compound", atom("a")), false},
		{comp("ground", comp("f", atom("a"))), true},
		{comp("ground", comp("f", v("X"))), false},
	}
	for _, tc := range cases {
		_, ok, err := sv.First(ctx, tc.goal)
		if err != nil {
			t.Errorf("%v returned error %v", tc.goal, err)
			continue
		}
		if ok != tc.ok {
			t.Errorf("%v = %v, want %v", tc.goal, ok, tc.ok)
		}
	}

	// Type tests see bindings made earlier in the conjunction.
	famSv := solver(familyKB(t), Options{})
	if _, ok, err := famSv.First(ctx, comp("parent", atom("alice"), v("C")), comp("nonvar", v("C"))); err != nil || !ok {
		t.Errorf("nonvar after binding = %v, %v; want success", ok, err)
	}
	if _, ok, err := famSv.First(ctx, comp("parent", atom("alice"), v("C")), comp("var", v("C"))); err != nil || ok {
		t.Errorf("var after binding = %v, %v; want failure", ok, err)
	}
}

func TestNegationAsFailure(t *testing.T) {
	ctx := context.Background()
	k := kb.New(kb.Options{})
	k.AssertFact(comp("edge", atom("a"), atom("b")))
	k.AssertFact(comp("edge", atom("b"), atom("c")))
	k.AssertFact(comp("blocked", atom("b")))
	k.AssertRule(comp("safe", v("X")),
		comp("edge", v("_"), v("X")),
		comp("not", comp("blocked", v("X"))),
	)
	sv := solver(k, Options{})

	got := collect(t, mustQuery(t, sv, comp("safe", v("S"))))
	want := []Bindings{{"S": logic.Atom("c")}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Negation filtering (-want +got):\n%s", diff)
	}

	if _, ok, err := sv.First(ctx, comp("not", comp("blocked", atom("a")))); err != nil || !ok {
		t.Errorf("not(blocked(a)) = %v, %v; want success", ok, err)
	}
	if _, ok, err := sv.First(ctx, comp("not", comp("edge", atom("a"), atom("b")))); err != nil || ok {
		t.Errorf("not(edge(a, b)) = %v, %v; want failure", ok, err)
	}

	// Negating an unbound variable is not a failure but a malformed goal.
	_, _, err := sv.First(ctx, comp("not", v("Z")))
	if !errors.Is(err, internalerr.ErrMalformedTerm) {
		t.Errorf("not(Z) error = %v, want malformed term", err)
	}
}

func TestNegationSharesStepBudget(t *testing.T) {
	k := kb.New(kb.Options{})
	k.AssertRule(comp("loopy"), atom("loopy"))
	sv := solver(k, Options{Limits: Limits{MaxSteps: 50}})

	sols := mustQuery(t, sv, comp("not", atom("loopy")))
	if sols.Next() {
		t.Fatal("An aborted sub-search must not read as a successful negation")
	}
	if !errors.Is(sols.Err(), internalerr.ErrBudgetExhausted) {
		t.Errorf("Err = %v, want budget exhaustion from the sub-search", sols.Err())
	}
}

func TestContextCancellation(t *testing.T) {
	k := kb.New(kb.Options{})
	k.AssertRule(comp("loop"), atom("loop"))
	sv := solver(k, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sols, err := sv.Query(ctx, comp("loop"))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if sols.Next() {
		t.Fatal("Canceled search must not prove")
	}
	if !errors.Is(sols.Err(), context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", sols.Err())
	}
}

func TestQueryValidation(t *testing.T) {
	ctx := context.Background()
	sv := solver(kb.New(kb.Options{}), Options{})

	if _, err := sv.Query(ctx); !errors.Is(err, internalerr.ErrMalformedTerm) {
		t.Errorf("Empty conjunction error = %v, want malformed term", err)
	}
	if _, err := sv.Query(ctx, logic.Int(3)); !errors.Is(err, internalerr.ErrMalformedTerm) {
		t.Errorf("Literal goal error = %v, want malformed term", err)
	}
	if _, err := sv.Query(ctx, v("X")); !errors.Is(err, internalerr.ErrMalformedTerm) {
		t.Errorf("Variable goal error = %v, want malformed term", err)
	}
	if _, err := sv.Query(ctx, comp("f", nil)); !errors.Is(err, internalerr.ErrMalformedTerm) {
		t.Errorf("Nil argument error = %v, want malformed term", err)
	}
}

func TestOccursCheckOption(t *testing.T) {
	k := kb.New(kb.Options{})
	k.AssertFact(comp("eq", v("A"), v("A")))

	strict := solver(k, Options{OccursCheck: true})
	sols := mustQuery(t, strict, comp("eq", v("Y"), comp("f", v("Y"))))
	if sols.Next() {
		t.Error("Occurs check should reject Y = f(Y)")
	}
	if sols.Err() != nil {
		t.Errorf("Occurs-check rejection is a failure, not an error: %v", sols.Err())
	}

	loose := solver(k, Options{})
	sols = mustQuery(t, loose, comp("eq", v("Y"), comp("f", v("Y"))))
	// Satisfiable without the check; the cyclic binding is deliberately
	// left unresolved.
	if !sols.Next() {
		t.Errorf("Default unification should admit Y = f(Y): %v", sols.Err())
	}
}

func TestTraceEvents(t *testing.T) {
	k := kb.New(kb.Options{})
	k.AssertFact(comp("parent", atom("alice"), atom("bob")))
	k.AssertFact(comp("parent", atom("bob"), atom("carol")))

	var kinds []EventKind
	sv := solver(k, Options{Trace: func(ev Event) { kinds = append(kinds, ev.Kind) }})

	sols := mustQuery(t, sv, comp("parent", atom("alice"), atom("bob")))
	for sols.Next() {
	}
	want := []EventKind{EventCall, EventMatch, EventSolution, EventBacktrack, EventFail}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("Trace sequence (-want +got):\n%s", diff)
	}
}

func TestFirstAndAll(t *testing.T) {
	ctx := context.Background()
	sv := solver(familyKB(t), Options{})

	b, ok, err := sv.First(ctx, comp("grandparent", v("X"), v("Z")))
	if err != nil || !ok {
		t.Fatalf("First = %v, %v; want a solution", ok, err)
	}
	if !logic.Equal(b["X"], logic.Atom("alice")) {
		t.Errorf("First solution X = %v, want alice", b["X"])
	}

	all, err := sv.All(ctx, comp("grandparent", v("X"), v("Z")))
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("All found %d solutions, want 2", len(all))
	}

	// First on an unsatisfiable query reports no solution, no error.
	if _, ok, err := sv.First(ctx, comp("parent", atom("dave"), v("C"))); ok || err != nil {
		t.Errorf("First on failing query = %v, %v; want false, nil", ok, err)
	}
}

func TestBuiltinRegistry(t *testing.T) {
	if !IsBuiltin(kb.Signature{Functor: "not", Arity: 1}) {
		t.Error("not/1 should be builtin")
	}
	if IsBuiltin(kb.Signature{Functor: "not", Arity: 2}) {
		t.Error("not/2 is not a builtin; dispatch is by signature")
	}
	sigs := Builtins()
	if len(sigs) != len(builtins) {
		t.Errorf("Builtins returned %d signatures, want %d", len(sigs), len(builtins))
	}
	for i := 1; i < len(sigs); i++ {
		if sigs[i-1].Functor > sigs[i].Functor {
			t.Errorf("Builtins not sorted: %v before %v", sigs[i-1], sigs[i])
		}
	}
}
