package logic

import "sync/atomic"

// Gen issues fresh variable identities for one engine instance
type Gen struct {
	n atomic.Int64
}

// NewGen creates a fresh-variable source
func NewGen() *Gen { return &Gen{} }

// Fresh returns a new engine variable carrying the given display name
func (g *Gen) Fresh(name string) Var {
	return Var{Name: name, ID: g.n.Add(1)}
}

// Subst is an immutable set of variable bindings accumulated along one
// search path. The zero value (nil) is the empty substitution. Bind returns
// a child substitution, so a choice point snapshots the whole environment by
// keeping a pointer, and backtracking restores it by dropping one.
type Subst struct {
	parent *Subst
	id     int64
	term   Term
	depth  int
}

// Bind returns a substitution extending s with id ↦ t
func (s *Subst) Bind(id int64, t Term) *Subst {
	d := 1
	if s != nil {
		d = s.depth + 1
	}
	return &Subst{parent: s, id: id, term: t, depth: d}
}

// Lookup returns the binding for an engine variable id, if any
func (s *Subst) Lookup(id int64) (Term, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.id == id {
			return cur.term, true
		}
	}
	return nil, false
}

// Len reports the number of bindings in s
func (s *Subst) Len() int {
	if s == nil {
		return 0
	}
	return s.depth
}

// Walk dereferences t through s at the top level, following variable-to-term
// chains to a fixed point. Unbound variables and non-variables come back
// unchanged.
func (s *Subst) Walk(t Term) Term {
	for {
		v, ok := t.(Var)
		if !ok || v.ID == 0 {
			return t
		}
		bound, ok := s.Lookup(v.ID)
		if !ok {
			return t
		}
		t = bound
	}
}

// Resolve applies s deeply to t, rebuilding compounds whose arguments
// change. Applying Resolve to an already-resolved term returns it unchanged.
func (s *Subst) Resolve(t Term) Term {
	t = s.Walk(t)
	c, ok := t.(*Compound)
	if !ok {
		return t
	}
	var resolved []Term
	for i, arg := range c.Args {
		r := s.Resolve(arg)
		if resolved == nil {
			if r == arg {
				continue
			}
			resolved = make([]Term, len(c.Args))
			copy(resolved, c.Args[:i])
		}
		resolved[i] = r
	}
	if resolved == nil {
		return c
	}
	return &Compound{Functor: c.Functor, Args: resolved}
}

// Ground reports whether t contains no unbound variables under s
func (s *Subst) Ground(t Term) bool {
	t = s.Walk(t)
	switch tt := t.(type) {
	case Var:
		return false
	case *Compound:
		for _, arg := range tt.Args {
			if !s.Ground(arg) {
				return false
			}
		}
	}
	return true
}
