package solve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cognicore/korlog/pkg/korlog/internalerr"
	"github.com/cognicore/korlog/pkg/korlog/kb"
	"github.com/cognicore/korlog/pkg/korlog/logic"
)

// builtinFunc answers a goal directly. It returns the substitution the
// goal succeeded under, or reports failure. Builtins are deterministic:
// at most one answer, never a choice point.
type builtinFunc func(m *machine, g *logic.Compound, depth int, s *logic.Subst) (*logic.Subst, bool, error)

var builtins map[kb.Signature]builtinFunc

// Populated in init rather than in the var initializer: builtinNot calls
// machine.run, which consults builtins, so a composite-literal initializer
// would form an initialization cycle.
func init() {
	builtins = map[kb.Signature]builtinFunc{
		{Functor: "==", Arity: 2}:       builtinEqual,
		{Functor: "!=", Arity: 2}:       builtinNotEqual,
		{Functor: "<", Arity: 2}:        builtinLess,
		{Functor: "=<", Arity: 2}:       builtinLessEqual,
		{Functor: "<=", Arity: 2}:       builtinLessEqual,
		{Functor: ">", Arity: 2}:        builtinGreater,
		{Functor: ">=", Arity: 2}:       builtinGreaterEqual,
		{Functor: "var", Arity: 1}:      builtinVar,
		{Functor: "nonvar", Arity: 1}:   builtinNonvar,
		{Functor: "atom", Arity: 1}:     builtinAtom,
		{Functor: "integer", Arity: 1}:  builtinInteger,
		{Functor: "string", Arity: 1}:   builtinString,
		{Functor: "bool", Arity: 1}:     builtinBool,
		{Functor: "compound", Arity: 1}: builtinCompound,
		{Functor: "ground", Arity: 1}:   builtinGround,
		{Functor: "not", Arity: 1}:      builtinNot,
	}
}

// IsBuiltin reports whether the engine answers sig itself rather than
// from stored clauses.
func IsBuiltin(sig kb.Signature) bool {
	_, ok := builtins[sig]
	return ok
}

// Builtins lists the built-in signatures in sorted order.
func Builtins() []kb.Signature {
	sigs := make([]kb.Signature, 0, len(builtins))
	for sig := range builtins {
		sigs = append(sigs, sig)
	}
	sort.Slice(sigs, func(i, j int) bool {
		if sigs[i].Functor != sigs[j].Functor {
			return sigs[i].Functor < sigs[j].Functor
		}
		return sigs[i].Arity < sigs[j].Arity
	})
	return sigs
}

// Comparisons are defined on ground operands only. A comparison over a
// term still containing variables is not yet computable and fails; it is
// never an error.

func builtinEqual(m *machine, g *logic.Compound, depth int, s *logic.Subst) (*logic.Subst, bool, error) {
	a, b := g.Args[0], g.Args[1]
	if !s.Ground(a) || !s.Ground(b) {
		return nil, false, nil
	}
	if logic.Equal(s.Resolve(a), s.Resolve(b)) {
		return s, true, nil
	}
	return nil, false, nil
}

func builtinNotEqual(m *machine, g *logic.Compound, depth int, s *logic.Subst) (*logic.Subst, bool, error) {
	a, b := g.Args[0], g.Args[1]
	if !s.Ground(a) || !s.Ground(b) {
		return nil, false, nil
	}
	if !logic.Equal(s.Resolve(a), s.Resolve(b)) {
		return s, true, nil
	}
	return nil, false, nil
}

func builtinLess(m *machine, g *logic.Compound, depth int, s *logic.Subst) (*logic.Subst, bool, error) {
	if c, ok := compare(s, g.Args[0], g.Args[1]); ok && c < 0 {
		return s, true, nil
	}
	return nil, false, nil
}

func builtinLessEqual(m *machine, g *logic.Compound, depth int, s *logic.Subst) (*logic.Subst, bool, error) {
	if c, ok := compare(s, g.Args[0], g.Args[1]); ok && c <= 0 {
		return s, true, nil
	}
	return nil, false, nil
}

func builtinGreater(m *machine, g *logic.Compound, depth int, s *logic.Subst) (*logic.Subst, bool, error) {
	if c, ok := compare(s, g.Args[0], g.Args[1]); ok && c > 0 {
		return s, true, nil
	}
	return nil, false, nil
}

func builtinGreaterEqual(m *machine, g *logic.Compound, depth int, s *logic.Subst) (*logic.Subst, bool, error) {
	if c, ok := compare(s, g.Args[0], g.Args[1]); ok && c >= 0 {
		return s, true, nil
	}
	return nil, false, nil
}

// compare orders two ground terms where an ordering exists: integers
// numerically, atoms and strings lexicographically. Mixed or unordered
// kinds are not comparable.
func compare(s *logic.Subst, a, b logic.Term) (int, bool) {
	if !s.Ground(a) || !s.Ground(b) {
		return 0, false
	}
	ra, rb := s.Resolve(a), s.Resolve(b)
	switch x := ra.(type) {
	case logic.Int:
		if y, ok := rb.(logic.Int); ok {
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			}
			return 0, true
		}
	case logic.Atom:
		if y, ok := rb.(logic.Atom); ok {
			return strings.Compare(string(x), string(y)), true
		}
	case logic.Str:
		if y, ok := rb.(logic.Str); ok {
			return strings.Compare(string(x), string(y)), true
		}
	}
	return 0, false
}

// Type tests inspect the operand after top-level dereferencing.

func builtinVar(m *machine, g *logic.Compound, depth int, s *logic.Subst) (*logic.Subst, bool, error) {
	if _, ok := s.Walk(g.Args[0]).(logic.Var); ok {
		return s, true, nil
	}
	return nil, false, nil
}

func builtinNonvar(m *machine, g *logic.Compound, depth int, s *logic.Subst) (*logic.Subst, bool, error) {
	if _, ok := s.Walk(g.Args[0]).(logic.Var); ok {
		return nil, false, nil
	}
	return s, true, nil
}

func builtinAtom(m *machine, g *logic.Compound, depth int, s *logic.Subst) (*logic.Subst, bool, error) {
	if _, ok := s.Walk(g.Args[0]).(logic.Atom); ok {
		return s, true, nil
	}
	return nil, false, nil
}

func builtinInteger(m *machine, g *logic.Compound, depth int, s *logic.Subst) (*logic.Subst, bool, error) {
	if _, ok := s.Walk(g.Args[0]).(logic.Int); ok {
		return s, true, nil
	}
	return nil, false, nil
}

func builtinString(m *machine, g *logic.Compound, depth int, s *logic.Subst) (*logic.Subst, bool, error) {
	if _, ok := s.Walk(g.Args[0]).(logic.Str); ok {
		return s, true, nil
	}
	return nil, false, nil
}

func builtinBool(m *machine, g *logic.Compound, depth int, s *logic.Subst) (*logic.Subst, bool, error) {
	if _, ok := s.Walk(g.Args[0]).(logic.Bool); ok {
		return s, true, nil
	}
	return nil, false, nil
}

func builtinCompound(m *machine, g *logic.Compound, depth int, s *logic.Subst) (*logic.Subst, bool, error) {
	if _, ok := s.Walk(g.Args[0]).(*logic.Compound); ok {
		return s, true, nil
	}
	return nil, false, nil
}

func builtinGround(m *machine, g *logic.Compound, depth int, s *logic.Subst) (*logic.Subst, bool, error) {
	if s.Ground(g.Args[0]) {
		return s, true, nil
	}
	return nil, false, nil
}

// builtinNot implements negation as failure: the goal succeeds, binding
// nothing, exactly when a sub-search for its argument is exhausted with
// zero solutions. The sub-search draws on the parent's step budget; if it
// aborts on a limit, the whole query aborts, since an unfinished search
// proves neither presence nor absence.
func builtinNot(m *machine, g *logic.Compound, depth int, s *logic.Subst) (*logic.Subst, bool, error) {
	inner, ok := kb.Goal(s.Walk(g.Args[0]))
	if !ok {
		return nil, false, fmt.Errorf("not: goal %s is not callable: %w", s.Resolve(g.Args[0]), internalerr.ErrMalformedTerm)
	}
	sub := &machine{
		snap:     m.snap,
		gen:      m.gen,
		unifier:  m.unifier,
		trace:    m.trace,
		ctx:      m.ctx,
		maxSteps: m.maxSteps,
		maxDepth: m.maxDepth,
		steps:    m.steps,
		goals:    &goalList{goal: inner, depth: depth + 1},
		subst:    s,
	}
	found, err := sub.run(false)
	if err != nil {
		return nil, false, err
	}
	if found {
		return nil, false, nil
	}
	return s, true, nil
}
