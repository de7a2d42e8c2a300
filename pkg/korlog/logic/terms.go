// Package logic defines the term model shared by every layer of the engine:
// atoms, literals, variables, compounds, substitutions, and unification.
package logic

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cognicore/korlog/pkg/korlog/internalerr"
)

// Term is the universal data shape manipulated by the engine
type Term interface {
	fmt.Stringer

	// isTerm restricts implementations to this package's variants
	isTerm()
}

// Atom is a symbolic constant such as alice or neural-network
type Atom string

// Int is an integer literal
type Int int64

// Str is a string literal
type Str string

// Bool is a boolean literal
type Bool bool

// Var is a logic variable. ID == 0 marks a placeholder identified by name
// within a single clause or query; nonzero IDs are engine-issued and unique
// per engine instance, so bindings never collide across instantiations.
type Var struct {
	Name string
	ID   int64
}

// Compound is a functor applied to zero or more arguments
type Compound struct {
	Functor string
	Args    []Term
}

func (Atom) isTerm()      {}
func (Int) isTerm()       {}
func (Str) isTerm()       {}
func (Bool) isTerm()      {}
func (Var) isTerm()       {}
func (*Compound) isTerm() {}

func (a Atom) String() string { return string(a) }

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

func (s Str) String() string { return strconv.Quote(string(s)) }

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

func (v Var) String() string {
	if v.Name != "" && v.Name != "_" {
		return v.Name
	}
	if v.ID != 0 {
		return "_G" + strconv.FormatInt(v.ID, 10)
	}
	return "_"
}

func (c *Compound) String() string {
	if len(c.Args) == 0 {
		return c.Functor
	}
	var sb strings.Builder
	sb.WriteString(c.Functor)
	sb.WriteByte('(')
	for i, arg := range c.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(arg.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// NewCompound builds a compound term from a functor and its arguments
func NewCompound(functor string, args ...Term) *Compound {
	return &Compound{Functor: functor, Args: args}
}

// NewVar returns a placeholder variable identified by name
func NewVar(name string) Var { return Var{Name: name} }

// Anonymous reports whether v is the anonymous placeholder "_", which is
// fresh at every occurrence and never projected into query bindings
func (v Var) Anonymous() bool { return v.ID == 0 && (v.Name == "" || v.Name == "_") }

// Equal reports deep syntactic equality of two terms. Variables compare by
// identity: engine variables by ID, placeholders by name.
func Equal(a, b Term) bool {
	switch at := a.(type) {
	case Atom:
		bt, ok := b.(Atom)
		return ok && at == bt
	case Int:
		bt, ok := b.(Int)
		return ok && at == bt
	case Str:
		bt, ok := b.(Str)
		return ok && at == bt
	case Bool:
		bt, ok := b.(Bool)
		return ok && at == bt
	case Var:
		bt, ok := b.(Var)
		if !ok {
			return false
		}
		if at.ID != 0 || bt.ID != 0 {
			return at.ID == bt.ID
		}
		return at.Name == bt.Name
	case *Compound:
		bt, ok := b.(*Compound)
		if !ok || at.Functor != bt.Functor || len(at.Args) != len(bt.Args) {
			return false
		}
		for i := range at.Args {
			if !Equal(at.Args[i], bt.Args[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// VisitVars calls fn for every variable occurrence in t, left to right
func VisitVars(t Term, fn func(Var)) {
	switch tt := t.(type) {
	case Var:
		fn(tt)
	case *Compound:
		for _, arg := range tt.Args {
			VisitVars(arg, fn)
		}
	}
}

// Validate checks the structural well-formedness the engine assumes: no nil
// terms or arguments, no empty functors, no variables lacking both name and
// ID. Violations wrap internalerr.ErrMalformedTerm.
func Validate(t Term) error {
	if t == nil {
		return fmt.Errorf("%w: nil term", internalerr.ErrMalformedTerm)
	}
	switch tt := t.(type) {
	case Var:
		if tt.ID == 0 && tt.Name == "" {
			return fmt.Errorf("%w: variable with neither name nor id", internalerr.ErrMalformedTerm)
		}
	case *Compound:
		if tt == nil {
			return fmt.Errorf("%w: nil compound", internalerr.ErrMalformedTerm)
		}
		if tt.Functor == "" {
			return fmt.Errorf("%w: compound with empty functor", internalerr.ErrMalformedTerm)
		}
		for i, arg := range tt.Args {
			if arg == nil {
				return fmt.Errorf("%w: %s arg %d is nil", internalerr.ErrMalformedTerm, tt.Functor, i)
			}
			if err := Validate(arg); err != nil {
				return err
			}
		}
	}
	return nil
}
