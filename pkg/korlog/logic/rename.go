package logic

// Renamer standardizes one clause or query instantiation apart from every
// other by giving each of its variables a fresh engine identity. The same
// placeholder name maps to the same fresh variable within one renamer;
// the anonymous "_" is fresh at every occurrence.
type Renamer struct {
	gen    *Gen
	byName map[string]Var
	byID   map[int64]Var
}

// NewRenamer creates a renamer drawing fresh identities from gen
func NewRenamer(gen *Gen) *Renamer {
	return &Renamer{gen: gen}
}

// Term returns t with every variable renamed, sharing structure where no
// variables occur.
func (r *Renamer) Term(t Term) Term {
	switch tt := t.(type) {
	case Var:
		return r.renameVar(tt)
	case *Compound:
		return r.Compound(tt)
	}
	return t
}

// Terms renames a slice of terms in order
func (r *Renamer) Terms(ts []Term) []Term {
	if len(ts) == 0 {
		return nil
	}
	out := make([]Term, len(ts))
	for i, t := range ts {
		out[i] = r.Term(t)
	}
	return out
}

// Compound renames every variable below c
func (r *Renamer) Compound(c *Compound) *Compound {
	var args []Term
	for i, arg := range c.Args {
		renamed := r.Term(arg)
		if args == nil {
			if renamed == arg {
				continue
			}
			args = make([]Term, len(c.Args))
			copy(args, c.Args[:i])
		}
		args[i] = renamed
	}
	if args == nil {
		return c
	}
	return &Compound{Functor: c.Functor, Args: args}
}

// Var returns the fresh identity this renamer assigned to v, renaming it
// first if needed. Useful for callers that must correlate original query
// variables with their renamed forms.
func (r *Renamer) Var(v Var) Var { return r.renameVar(v) }

func (r *Renamer) renameVar(v Var) Var {
	if v.Anonymous() {
		return r.gen.Fresh("")
	}
	if v.ID != 0 {
		if mapped, ok := r.byID[v.ID]; ok {
			return mapped
		}
		fresh := r.gen.Fresh(v.Name)
		if r.byID == nil {
			r.byID = make(map[int64]Var)
		}
		r.byID[v.ID] = fresh
		return fresh
	}
	if mapped, ok := r.byName[v.Name]; ok {
		return mapped
	}
	fresh := r.gen.Fresh(v.Name)
	if r.byName == nil {
		r.byName = make(map[string]Var)
	}
	r.byName[v.Name] = fresh
	return fresh
}
