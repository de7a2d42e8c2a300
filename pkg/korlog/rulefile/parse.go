package rulefile

import (
	"fmt"
	"strconv"

	"github.com/cognicore/korlog/pkg/korlog/logic"
)

type tokenKind int

const (
	tokAtom tokenKind = iota
	tokVar
	tokInt
	tokStr
	tokOp
	tokRule
	tokLParen
	tokRParen
	tokComma
	tokDot
	tokSlash
)

type token struct {
	kind tokenKind
	text string
	col  int
}

func isLower(c byte) bool { return c >= 'a' && c <= 'z' }
func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Atoms may continue with '-' so vocabulary like neural-network stays a
// single symbol.
func isAtomChar(c byte) bool {
	return isLower(c) || isUpper(c) || isDigit(c) || c == '_' || c == '-'
}

func isVarChar(c byte) bool {
	return isLower(c) || isUpper(c) || isDigit(c) || c == '_'
}

// lexLine tokenizes one source line. A '%' outside a string ends the
// line.
func lexLine(line string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '%':
			return toks, nil
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", col: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", col: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", col: i})
			i++
		case c == '.':
			toks = append(toks, token{kind: tokDot, text: ".", col: i})
			i++
		case c == '/':
			toks = append(toks, token{kind: tokSlash, text: "/", col: i})
			i++
		case c == ':':
			if i+1 < len(line) && line[i+1] == '-' {
				toks = append(toks, token{kind: tokRule, text: ":-", col: i})
				i += 2
			} else {
				return nil, fmt.Errorf("column %d: unexpected ':'", i+1)
			}
		case c == '"':
			j := i + 1
			for j < len(line) && line[j] != '"' {
				if line[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(line) {
				return nil, fmt.Errorf("column %d: unterminated string", i+1)
			}
			toks = append(toks, token{kind: tokStr, text: line[i : j+1], col: i})
			i = j + 1
		case c == '=' || c == '!' || c == '<' || c == '>':
			if i+1 < len(line) {
				switch two := line[i : i+2]; two {
				case "==", "!=", "=<", "<=", ">=":
					toks = append(toks, token{kind: tokOp, text: two, col: i})
					i += 2
					continue
				}
			}
			if c == '<' || c == '>' {
				toks = append(toks, token{kind: tokOp, text: string(c), col: i})
				i++
				continue
			}
			return nil, fmt.Errorf("column %d: unexpected %q", i+1, string(c))
		case isDigit(c) || (c == '-' && i+1 < len(line) && isDigit(line[i+1])):
			j := i + 1
			for j < len(line) && isDigit(line[j]) {
				j++
			}
			toks = append(toks, token{kind: tokInt, text: line[i:j], col: i})
			i = j
		case isLower(c):
			j := i + 1
			for j < len(line) && isAtomChar(line[j]) {
				j++
			}
			toks = append(toks, token{kind: tokAtom, text: line[i:j], col: i})
			i = j
		case isUpper(c) || c == '_':
			j := i + 1
			for j < len(line) && isVarChar(line[j]) {
				j++
			}
			toks = append(toks, token{kind: tokVar, text: line[i:j], col: i})
			i = j
		default:
			return nil, fmt.Errorf("column %d: unexpected %q", i+1, string(c))
		}
	}
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) next() (token, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

// parseExpr parses a term, then folds one infix comparison if present,
// so goals read X == Y rather than ==(X, Y).
func (p *parser) parseExpr() (logic.Term, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	if t, ok := p.peek(); ok && t.kind == tokOp {
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return logic.NewCompound(t.text, left, right), nil
	}
	return left, nil
}

func (p *parser) parseTerm() (logic.Term, error) {
	t, ok := p.next()
	if !ok {
		return nil, fmt.Errorf("unexpected end of input")
	}
	switch t.kind {
	case tokInt:
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: bad integer %q", t.col+1, t.text)
		}
		return logic.Int(n), nil
	case tokStr:
		s, err := strconv.Unquote(t.text)
		if err != nil {
			return nil, fmt.Errorf("column %d: bad string %s", t.col+1, t.text)
		}
		return logic.Str(s), nil
	case tokVar:
		return logic.NewVar(t.text), nil
	case tokAtom:
		switch t.text {
		case "true":
			return logic.Bool(true), nil
		case "false":
			return logic.Bool(false), nil
		}
		nxt, ok := p.peek()
		if !ok || nxt.kind != tokLParen {
			return logic.Atom(t.text), nil
		}
		p.pos++
		var args []logic.Term
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			sep, ok := p.next()
			if !ok {
				return nil, fmt.Errorf("unterminated argument list for %s", t.text)
			}
			if sep.kind == tokComma {
				continue
			}
			if sep.kind == tokRParen {
				break
			}
			return nil, fmt.Errorf("column %d: expected ',' or ')' in %s(...)", sep.col+1, t.text)
		}
		return logic.NewCompound(t.text, args...), nil
	}
	return nil, fmt.Errorf("column %d: unexpected %q", t.col+1, t.text)
}

// asGoal normalizes a clause head or body goal into compound form.
func asGoal(t logic.Term, what string) (*logic.Compound, error) {
	switch g := t.(type) {
	case logic.Atom:
		return logic.NewCompound(string(g)), nil
	case *logic.Compound:
		return g, nil
	}
	return nil, fmt.Errorf("%s must be an atom or compound, got %s", what, t)
}

type item struct {
	decl   *Decl
	clause *ParsedClause
}

// parseLine parses one lexed line: a relation declaration, a fact, or a
// rule.
func parseLine(toks []token) (item, error) {
	if len(toks) >= 2 && toks[0].kind == tokAtom && toks[0].text == "relation" && toks[1].kind == tokAtom {
		return parseDecl(toks)
	}

	p := &parser{toks: toks}
	headTerm, err := p.parseExpr()
	if err != nil {
		return item{}, err
	}
	head, err := asGoal(headTerm, "clause head")
	if err != nil {
		return item{}, err
	}

	sep, ok := p.next()
	if !ok {
		return item{}, fmt.Errorf("missing '.' after %s", head.Functor)
	}

	switch sep.kind {
	case tokDot:
		if err := expectEnd(p); err != nil {
			return item{}, err
		}
		return item{clause: &ParsedClause{Head: head}}, nil
	case tokRule:
		var body []*logic.Compound
		for {
			goalTerm, err := p.parseExpr()
			if err != nil {
				return item{}, err
			}
			goal, err := asGoal(goalTerm, "body goal")
			if err != nil {
				return item{}, err
			}
			body = append(body, goal)
			sep, ok := p.next()
			if !ok {
				return item{}, fmt.Errorf("missing '.' after rule body")
			}
			if sep.kind == tokComma {
				continue
			}
			if sep.kind == tokDot {
				break
			}
			return item{}, fmt.Errorf("column %d: expected ',' or '.', got %q", sep.col+1, sep.text)
		}
		if err := expectEnd(p); err != nil {
			return item{}, err
		}
		return item{clause: &ParsedClause{Head: head, Body: body}}, nil
	}
	return item{}, fmt.Errorf("column %d: expected ':-' or '.', got %q", sep.col+1, sep.text)
}

func parseDecl(toks []token) (item, error) {
	p := &parser{toks: toks, pos: 1}
	name, _ := p.next()
	slash, ok := p.next()
	if !ok || slash.kind != tokSlash {
		return item{}, fmt.Errorf("declaration must read relation %s/arity.", name.text)
	}
	ar, ok := p.next()
	if !ok || ar.kind != tokInt {
		return item{}, fmt.Errorf("declaration of %s: missing arity", name.text)
	}
	n, err := strconv.Atoi(ar.text)
	if err != nil || n < 0 {
		return item{}, fmt.Errorf("declaration of %s: bad arity %q", name.text, ar.text)
	}
	dot, ok := p.next()
	if !ok || dot.kind != tokDot {
		return item{}, fmt.Errorf("declaration of %s: missing '.'", name.text)
	}
	if err := expectEnd(p); err != nil {
		return item{}, err
	}
	return item{decl: &Decl{Functor: name.text, Arity: n}}, nil
}

func expectEnd(p *parser) error {
	if t, ok := p.peek(); ok {
		return fmt.Errorf("column %d: unexpected trailing %q", t.col+1, t.text)
	}
	return nil
}
