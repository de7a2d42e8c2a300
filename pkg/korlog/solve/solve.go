// Package solve implements resolution over knowledge-base snapshots:
// unification-driven clause selection with explicit choice points, lazy
// resumable solution enumeration, and step and depth budgets.
package solve

import (
	"context"
	"fmt"

	"github.com/cognicore/korlog/pkg/korlog/internalerr"
	"github.com/cognicore/korlog/pkg/korlog/kb"
	"github.com/cognicore/korlog/pkg/korlog/logic"
)

// Limits bounds a single search. Zero or negative values leave the
// corresponding dimension unlimited.
type Limits struct {
	// MaxSteps caps goal-stack pops across the whole search, including
	// sub-searches spawned by not/1.
	MaxSteps int
	// MaxDepth caps the derivation depth of any single goal.
	MaxDepth int
}

// DefaultLimits returns the budgets the facade applies when a caller
// configures none.
func DefaultLimits() Limits {
	return Limits{MaxSteps: 100_000, MaxDepth: 4_096}
}

// Resource names reported by BudgetError.
const (
	ResourceSteps = "steps"
	ResourceDepth = "depth"
)

// BudgetError reports a search aborted by a resource limit. It is not
// exhaustion: the search proved nothing either way, and callers must not
// read an aborted enumeration as "no".
type BudgetError struct {
	Resource string
	Limit    int
	Steps    int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("search exceeded %s limit %d after %d steps", e.Resource, e.Limit, e.Steps)
}

func (e *BudgetError) Unwrap() error { return internalerr.ErrBudgetExhausted }

// Options configures a Solver.
type Options struct {
	Limits      Limits
	OccursCheck bool
	Trace       TraceFunc
}

// Solver runs queries against one knowledge-base snapshot.
type Solver struct {
	snap *kb.Snapshot
	gen  *logic.Gen
	opts Options
}

// New creates a solver over snap. Queries draw fresh variables from gen;
// passing the engine's shared generator keeps renamed identities unique
// across concurrent searches. A nil gen gets a private one.
func New(snap *kb.Snapshot, gen *logic.Gen, opts Options) *Solver {
	if gen == nil {
		gen = logic.NewGen()
	}
	return &Solver{snap: snap, gen: gen, opts: opts}
}

// Bindings maps named query variables to their terms in one solution.
// Values are fully resolved; a variable left unconstrained by the proof
// maps to itself.
type Bindings map[string]logic.Term

// Query starts a lazy search for the conjunction of goals, proved left to
// right. No work happens before the first Next. Calling Query again
// builds an independent enumeration from the start.
func (sv *Solver) Query(ctx context.Context, goals ...logic.Term) (*Solutions, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(goals) == 0 {
		return nil, fmt.Errorf("query: empty conjunction: %w", internalerr.ErrMalformedTerm)
	}

	r := logic.NewRenamer(sv.gen)
	renamed := make([]*logic.Compound, len(goals))
	for i, goal := range goals {
		if err := logic.Validate(goal); err != nil {
			return nil, fmt.Errorf("query goal %d: %w", i+1, err)
		}
		g, ok := kb.Goal(goal)
		if !ok {
			return nil, fmt.Errorf("query goal %d is not callable: %w", i+1, internalerr.ErrMalformedTerm)
		}
		renamed[i] = r.Compound(g)
	}
	var stack *goalList
	for i := len(renamed) - 1; i >= 0; i-- {
		stack = &goalList{goal: renamed[i], next: stack}
	}

	// Project only the variables the caller named; anonymous and
	// engine-internal variables stay out of the bindings.
	vars := make(map[string]int64)
	for _, goal := range goals {
		logic.VisitVars(goal, func(v logic.Var) {
			if v.Anonymous() || v.Name == "" {
				return
			}
			if _, ok := vars[v.Name]; !ok {
				vars[v.Name] = r.Var(v).ID
			}
		})
	}

	steps := 0
	return &Solutions{
		m: &machine{
			snap:     sv.snap,
			gen:      sv.gen,
			unifier:  logic.Unifier{OccursCheck: sv.opts.OccursCheck},
			trace:    sv.opts.Trace,
			ctx:      ctx,
			maxSteps: sv.opts.Limits.MaxSteps,
			maxDepth: sv.opts.Limits.MaxDepth,
			steps:    &steps,
			goals:    stack,
		},
		vars: vars,
	}, nil
}

// First runs the query and returns its first solution, if any.
func (sv *Solver) First(ctx context.Context, goals ...logic.Term) (Bindings, bool, error) {
	sols, err := sv.Query(ctx, goals...)
	if err != nil {
		return nil, false, err
	}
	if !sols.Next() {
		return nil, false, sols.Err()
	}
	return sols.Bindings(), true, nil
}

// All runs the query to exhaustion and collects every solution. On a
// budget abort or cancellation it returns the solutions found so far
// together with the error.
func (sv *Solver) All(ctx context.Context, goals ...logic.Term) ([]Bindings, error) {
	sols, err := sv.Query(ctx, goals...)
	if err != nil {
		return nil, err
	}
	var out []Bindings
	for sols.Next() {
		out = append(out, sols.Bindings())
	}
	return out, sols.Err()
}

// Solutions enumerates the answers to one query lazily, in deterministic
// order: clauses in assertion order, conjunctions left to right. It is
// not safe for concurrent use.
type Solutions struct {
	m       *machine
	vars    map[string]int64
	started bool
	done    bool
	err     error
}

// Next advances to the next solution. It returns false when the search is
// exhausted or stopped; Err distinguishes the two.
func (s *Solutions) Next() bool {
	if s.done {
		return false
	}
	found, err := s.m.run(s.started)
	s.started = true
	if err != nil {
		s.err = err
		s.done = true
		return false
	}
	if !found {
		s.done = true
		return false
	}
	return true
}

// Bindings projects the current solution onto the named query variables.
// It returns nil unless the preceding Next returned true.
func (s *Solutions) Bindings() Bindings {
	if !s.started || s.done {
		return nil
	}
	out := make(Bindings, len(s.vars))
	for name, id := range s.vars {
		out[name] = s.m.subst.Resolve(logic.Var{Name: name, ID: id})
	}
	return out
}

// Err returns the error that stopped enumeration, if any. Running out of
// solutions is not an error; a budget abort or cancellation is.
func (s *Solutions) Err() error { return s.err }

// Steps reports the resolution steps consumed so far.
func (s *Solutions) Steps() int { return *s.m.steps }
