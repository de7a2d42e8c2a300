package solve

import (
	"context"
	"fmt"

	"github.com/cognicore/korlog/pkg/korlog/kb"
	"github.com/cognicore/korlog/pkg/korlog/logic"
)

// goalList is a persistent stack of pending goals. Tails are shared
// between choice points, so capturing the stack is one pointer copy.
type goalList struct {
	goal  *logic.Compound
	depth int
	next  *goalList
}

// choicePoint records everything needed to retry a goal against the
// candidate clauses not yet tried for it.
type choicePoint struct {
	goal    *logic.Compound
	depth   int
	rest    *goalList
	subst   *logic.Subst
	clauses []kb.Clause
	next    int
}

// machine is the iterative resolution state: a goal stack, the current
// substitution, and a stack of choice points. It never recurses on the
// host stack, so derivation depth is bounded only by the configured
// budget.
type machine struct {
	snap    *kb.Snapshot
	gen     *logic.Gen
	unifier logic.Unifier
	trace   TraceFunc
	ctx     context.Context

	maxSteps int
	maxDepth int
	steps    *int

	goals *goalList
	subst *logic.Subst
	cps   []*choicePoint
}

// run advances the search to its next solution. With resume set it first
// backtracks past the solution state left by the previous call. It
// reports whether a solution was found; an error ends the search for
// good.
func (m *machine) run(resume bool) (bool, error) {
	backtracking := resume
	for {
		if backtracking {
			n := len(m.cps)
			if n == 0 {
				return false, nil
			}
			cp := m.cps[n-1]
			m.cps = m.cps[:n-1]
			m.emit(EventBacktrack, cp.depth, cp.subst, cp.goal, "", "")
			backtracking = !m.tryClauses(cp.goal, cp.depth, cp.rest, cp.subst, cp.clauses, cp.next)
			continue
		}

		if m.goals == nil {
			m.emit(EventSolution, 0, m.subst, nil, "", "")
			return true, nil
		}

		g, depth, rest := m.goals.goal, m.goals.depth, m.goals.next
		if err := m.step(g, depth); err != nil {
			return false, err
		}

		sig := kb.Signature{Functor: g.Functor, Arity: len(g.Args)}
		if fn, ok := builtins[sig]; ok {
			m.emit(EventBuiltin, depth, m.subst, g, "", "")
			s2, proved, err := fn(m, g, depth, m.subst)
			if err != nil {
				return false, err
			}
			if proved {
				m.goals, m.subst = rest, s2
			} else {
				m.emit(EventFail, depth, m.subst, g, "", "builtin")
				backtracking = true
			}
			continue
		}

		m.emit(EventCall, depth, m.subst, g, "", "")
		backtracking = !m.tryClauses(g, depth, rest, m.subst, m.snap.ClausesFor(sig), 0)
	}
}

// tryClauses scans bucket from next for a clause whose renamed head
// unifies with the goal. On a match it pushes a choice point when untried
// candidates remain, stacks the clause body in order, and installs the
// extended substitution. It reports whether any clause matched.
func (m *machine) tryClauses(g *logic.Compound, depth int, rest *goalList, s *logic.Subst, bucket []kb.Clause, next int) bool {
	for i := next; i < len(bucket); i++ {
		c := bucket[i]
		r := logic.NewRenamer(m.gen)
		s2, ok := m.unifier.Unify(g, r.Compound(c.Head), s)
		if !ok {
			continue
		}
		if i+1 < len(bucket) {
			m.cps = append(m.cps, &choicePoint{goal: g, depth: depth, rest: rest, subst: s, clauses: bucket, next: i + 1})
		}
		goals := rest
		for j := len(c.Body) - 1; j >= 0; j-- {
			goals = &goalList{goal: r.Compound(c.Body[j]), depth: depth + 1, next: goals}
		}
		m.goals, m.subst = goals, s2
		m.emit(EventMatch, depth, s2, g, c.ID, "")
		return true
	}
	m.emit(EventFail, depth, s, g, "", "no matching clause")
	return false
}

// step charges one goal-stack pop against the budgets and periodically
// polls for cancellation.
func (m *machine) step(g *logic.Compound, depth int) error {
	*m.steps++
	if m.maxSteps > 0 && *m.steps > m.maxSteps {
		m.emit(EventBudget, depth, m.subst, g, "", fmt.Sprintf("step limit %d", m.maxSteps))
		return &BudgetError{Resource: ResourceSteps, Limit: m.maxSteps, Steps: *m.steps - 1}
	}
	if m.maxDepth > 0 && depth > m.maxDepth {
		m.emit(EventBudget, depth, m.subst, g, "", fmt.Sprintf("depth limit %d", m.maxDepth))
		return &BudgetError{Resource: ResourceDepth, Limit: m.maxDepth, Steps: *m.steps - 1}
	}
	if *m.steps%64 == 0 {
		select {
		case <-m.ctx.Done():
			return m.ctx.Err()
		default:
		}
	}
	return nil
}

func (m *machine) emit(kind EventKind, depth int, s *logic.Subst, goal logic.Term, clauseID, note string) {
	if m.trace == nil {
		return
	}
	ev := Event{Kind: kind, Step: *m.steps, Depth: depth, Clause: clauseID, Note: note}
	if goal != nil {
		ev.Goal = s.Resolve(goal).String()
	}
	m.trace(ev)
}
