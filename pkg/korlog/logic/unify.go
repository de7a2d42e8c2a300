package logic

// Unifier controls unification behavior. The zero value matches the engine
// default: no occurs check, so simple recursive data unifies cheaply at the
// cost of admitting infinite terms.
type Unifier struct {
	OccursCheck bool
}

// Unify finds a substitution extending s that makes a and b identical,
// using the default Unifier.
func Unify(a, b Term, s *Subst) (*Subst, bool) {
	return Unifier{}.Unify(a, b, s)
}

// Unify finds a substitution extending s under which a and b are
// syntactically identical. It never mutates s; on failure the second result
// is false and the substitution result must be ignored.
func (u Unifier) Unify(a, b Term, s *Subst) (*Subst, bool) {
	a = s.Walk(a)
	b = s.Walk(b)

	if av, ok := a.(Var); ok && av.ID != 0 {
		if bv, ok := b.(Var); ok && bv.ID == av.ID {
			return s, true
		}
		if u.OccursCheck && occurs(av.ID, b, s) {
			return nil, false
		}
		return s.Bind(av.ID, b), true
	}
	if bv, ok := b.(Var); ok && bv.ID != 0 {
		if u.OccursCheck && occurs(bv.ID, a, s) {
			return nil, false
		}
		return s.Bind(bv.ID, a), true
	}

	switch at := a.(type) {
	case Atom:
		if bt, ok := b.(Atom); ok && at == bt {
			return s, true
		}
	case Int:
		if bt, ok := b.(Int); ok && at == bt {
			return s, true
		}
	case Str:
		if bt, ok := b.(Str); ok && at == bt {
			return s, true
		}
	case Bool:
		if bt, ok := b.(Bool); ok && at == bt {
			return s, true
		}
	case *Compound:
		bt, ok := b.(*Compound)
		if !ok || at.Functor != bt.Functor || len(at.Args) != len(bt.Args) {
			return nil, false
		}
		for i := range at.Args {
			s, ok = u.Unify(at.Args[i], bt.Args[i], s)
			if !ok {
				return nil, false
			}
		}
		return s, true
	}
	return nil, false
}

// occurs reports whether the engine variable id occurs in t under s
func occurs(id int64, t Term, s *Subst) bool {
	t = s.Walk(t)
	switch tt := t.(type) {
	case Var:
		return tt.ID == id
	case *Compound:
		for _, arg := range tt.Args {
			if occurs(id, arg, s) {
				return true
			}
		}
	}
	return false
}
