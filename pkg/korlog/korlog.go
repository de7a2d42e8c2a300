package korlog

import (
	"context"
	"fmt"
	"io"

	"github.com/cognicore/korlog/pkg/korlog/internalerr"
	"github.com/cognicore/korlog/pkg/korlog/kb"
	"github.com/cognicore/korlog/pkg/korlog/logic"
	"github.com/cognicore/korlog/pkg/korlog/rulefile"
	"github.com/cognicore/korlog/pkg/korlog/solve"
)

// Error sentinels of the engine, for errors.Is checks.
var (
	ErrMalformedTerm   = internalerr.ErrMalformedTerm
	ErrBudgetExhausted = internalerr.ErrBudgetExhausted
	ErrUndeclared      = internalerr.ErrUndeclared
	ErrNotFound        = internalerr.ErrNotFound
	ErrInvalidConfig   = internalerr.ErrInvalidConfig
)

// Korlog is the main resolution engine facade
type Korlog struct {
	kb     *kb.KnowledgeBase
	gen    *logic.Gen
	limits solve.Limits
	occurs bool
	trace  solve.TraceFunc
}

// Options configures a Korlog instance. A zero Limits selects
// DefaultLimits; set a field negative to run without that limit.
type Options struct {
	StrictDeclarations bool
	Limits             solve.Limits
	OccursCheck        bool
	Trace              solve.TraceFunc
}

// New creates a Korlog instance with the given options
func New(opts Options) *Korlog {
	limits := opts.Limits
	if limits == (solve.Limits{}) {
		limits = solve.DefaultLimits()
	}
	return &Korlog{
		kb: kb.New(kb.Options{
			StrictDeclarations: opts.StrictDeclarations,
			Builtin:            solve.IsBuiltin,
		}),
		gen:    logic.NewGen(),
		limits: limits,
		occurs: opts.OccursCheck,
		trace:  opts.Trace,
	}
}

// DeclareRelation registers a relation signature ahead of its clauses
func (k *Korlog) DeclareRelation(functor string, arity int) error {
	return k.kb.Declare(functor, arity)
}

// AssertFact adds a ground or open fact to the knowledge base
func (k *Korlog) AssertFact(head logic.Term) error {
	h, ok := kb.Goal(head)
	if !ok {
		return fmt.Errorf("assert fact %s: %w", head, internalerr.ErrMalformedTerm)
	}
	return k.kb.AssertFact(h)
}

// AssertRule adds a rule head :- body to the knowledge base
func (k *Korlog) AssertRule(head logic.Term, body ...logic.Term) error {
	h, ok := kb.Goal(head)
	if !ok {
		return fmt.Errorf("assert rule %s: %w", head, internalerr.ErrMalformedTerm)
	}
	return k.kb.AssertRule(h, body...)
}

// Retract removes the first stored clause whose head unifies with the
// pattern. It reports whether anything was removed.
func (k *Korlog) Retract(pattern logic.Term) (bool, error) {
	p, ok := kb.Goal(pattern)
	if !ok {
		return false, fmt.Errorf("retract %s: %w", pattern, internalerr.ErrMalformedTerm)
	}
	return k.kb.Retract(p)
}

// Query starts resolving a conjunction of goals against a snapshot of
// the current knowledge base. Later asserts and retracts do not affect
// the returned solution stream.
func (k *Korlog) Query(ctx context.Context, goals ...logic.Term) (*solve.Solutions, error) {
	return k.solver(k.limits).Query(ctx, goals...)
}

// QueryFirst resolves the conjunction and returns only the first
// solution, if any.
func (k *Korlog) QueryFirst(ctx context.Context, goals ...logic.Term) (solve.Bindings, bool, error) {
	return k.solver(k.limits).First(ctx, goals...)
}

// QueryAll collects every solution of the conjunction
func (k *Korlog) QueryAll(ctx context.Context, goals ...logic.Term) ([]solve.Bindings, error) {
	return k.solver(k.limits).All(ctx, goals...)
}

// QueryWithLimits runs one query under specific budget limits, leaving
// the engine defaults alone. A zero Limits falls back to the defaults.
func (k *Korlog) QueryWithLimits(ctx context.Context, limits solve.Limits, goals ...logic.Term) (*solve.Solutions, error) {
	if limits == (solve.Limits{}) {
		limits = k.limits
	}
	return k.solver(limits).Query(ctx, goals...)
}

func (k *Korlog) solver(limits solve.Limits) *solve.Solver {
	return solve.New(k.kb.Snapshot(), k.gen, solve.Options{
		Limits:      limits,
		OccursCheck: k.occurs,
		Trace:       k.trace,
	})
}

// Consult parses rule text and loads it into the knowledge base
func (k *Korlog) Consult(src string) error {
	rs, err := rulefile.Parse(src)
	if err != nil {
		return err
	}
	return k.LoadRuleset(rs)
}

// ConsultFile loads one rule file into the knowledge base
func (k *Korlog) ConsultFile(path string) error {
	rs, err := rulefile.Load(path)
	if err != nil {
		return fmt.Errorf("consult %s: %w", path, err)
	}
	if err := k.LoadRuleset(rs); err != nil {
		return fmt.Errorf("consult %s: %w", path, err)
	}
	return nil
}

// LoadRuleset applies parsed declarations and clauses in source order
func (k *Korlog) LoadRuleset(rs rulefile.Ruleset) error {
	for _, d := range rs.Decls {
		if err := k.kb.Declare(d.Functor, d.Arity); err != nil {
			return fmt.Errorf("relation %s/%d: %w", d.Functor, d.Arity, err)
		}
	}
	for _, c := range rs.Clauses {
		body := make([]logic.Term, len(c.Body))
		for i, g := range c.Body {
			body[i] = g
		}
		if err := k.kb.AssertRule(c.Head, body...); err != nil {
			return fmt.Errorf("%s: %w", rulefile.FormatClause(c.Head, c.Body), err)
		}
	}
	return nil
}

// ExportRules writes the declarations and clauses as rule text that
// Consult accepts back.
func (k *Korlog) ExportRules(w io.Writer) error {
	var rs rulefile.Ruleset
	for _, sig := range k.kb.Declarations() {
		rs.Decls = append(rs.Decls, rulefile.Decl{Functor: sig.Functor, Arity: sig.Arity})
	}
	for _, c := range k.kb.Rules() {
		rs.Clauses = append(rs.Clauses, rulefile.ParsedClause{Head: c.Head, Body: c.Body})
	}
	return rulefile.Write(w, rs)
}

// Rules returns every stored clause in deterministic order
func (k *Korlog) Rules() []kb.Clause { return k.kb.Rules() }

// Declarations returns the declared relation signatures
func (k *Korlog) Declarations() []kb.Signature { return k.kb.Declarations() }

// Stats reports knowledge base counts
func (k *Korlog) Stats() kb.Stats { return k.kb.Stats() }
