// Package rulefile reads and writes the textual clause format: one
// item per line, terminated by '.', with '%' and '#' comments.
//
//	relation parent/2.
//	parent(alice, bob).
//	grandparent(X, Z) :- parent(X, Y), parent(Y, Z).
//	distinct(X, Y) :- not(X == Y).
//
// Atoms are lowercase symbols, variables start uppercase or with '_',
// and binary comparisons may be spelled infix. The package only parses
// and renders; loading clauses into an engine is the caller's job.
package rulefile

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/korlog/pkg/korlog/logic"
)

// Decl is an advisory relation declaration, name/arity.
type Decl struct {
	Functor string
	Arity   int
}

// ParsedClause is one fact or rule as written. A fact has a nil body.
type ParsedClause struct {
	Head *logic.Compound
	Body []*logic.Compound
}

// Ruleset holds the declarations and clauses of one source text, in
// file order.
type Ruleset struct {
	Decls   []Decl
	Clauses []ParsedClause
}

// Parse reads a complete rule text. Errors carry the 1-based line
// number of the offending item.
func Parse(src string) (Ruleset, error) {
	var rs Ruleset
	scanner := bufio.NewScanner(strings.NewReader(src))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "%") {
			continue
		}
		toks, err := lexLine(line)
		if err != nil {
			return Ruleset{}, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if len(toks) == 0 {
			continue
		}
		it, err := parseLine(toks)
		if err != nil {
			return Ruleset{}, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if it.decl != nil {
			rs.Decls = append(rs.Decls, *it.decl)
		} else {
			rs.Clauses = append(rs.Clauses, *it.clause)
		}
	}
	if err := scanner.Err(); err != nil {
		return Ruleset{}, err
	}
	return rs, nil
}

// ParseTerm parses a single term, with an optional trailing '.'.
func ParseTerm(src string) (logic.Term, error) {
	toks, err := lexLine(strings.TrimSpace(src))
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	t, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok, ok := p.peek(); ok && tok.kind == tokDot {
		p.pos++
	}
	if err := expectEnd(p); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseGoals parses a comma-separated conjunction of goals, with an
// optional trailing '.'.
func ParseGoals(src string) ([]logic.Term, error) {
	toks, err := lexLine(strings.TrimSpace(src))
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	var goals []logic.Term
	for {
		g, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
		sep, ok := p.next()
		if !ok {
			break
		}
		if sep.kind == tokComma {
			continue
		}
		if sep.kind == tokDot {
			if err := expectEnd(p); err != nil {
				return nil, err
			}
			break
		}
		return nil, fmt.Errorf("column %d: expected ',' or '.', got %q", sep.col+1, sep.text)
	}
	return goals, nil
}

// Load parses the rule file at path.
func Load(path string) (Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Ruleset{}, err
	}
	return Parse(string(data))
}

// LoadPaths loads several rule files concurrently, returning rulesets
// in path order.
func LoadPaths(ctx context.Context, paths ...string) ([]Ruleset, error) {
	sets := make([]Ruleset, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rs, err := Load(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			sets[i] = rs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sets, nil
}
