// Package kb implements the clause store: relation signatures, fact and
// rule assertion, retraction, and consistent snapshots for readers.
package kb

import (
	"crypto/rand"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cognicore/korlog/pkg/korlog/internalerr"
	"github.com/cognicore/korlog/pkg/korlog/logic"
	"github.com/oklog/ulid/v2"
)

// Signature identifies a relation by functor and arity.
type Signature struct {
	Functor string
	Arity   int
}

func (s Signature) String() string {
	return fmt.Sprintf("%s/%d", s.Functor, s.Arity)
}

// SignatureOf extracts the signature of a callable goal term. Atoms are
// zero-argument relations; anything else is not callable.
func SignatureOf(t logic.Term) (Signature, bool) {
	switch g := t.(type) {
	case logic.Atom:
		return Signature{Functor: string(g)}, true
	case *logic.Compound:
		return Signature{Functor: g.Functor, Arity: len(g.Args)}, true
	}
	return Signature{}, false
}

// Goal normalizes a callable term into clause form. Atoms become
// zero-argument compounds; variables and literals are not callable.
func Goal(t logic.Term) (*logic.Compound, bool) {
	switch g := t.(type) {
	case logic.Atom:
		if g == "" {
			return nil, false
		}
		return logic.NewCompound(string(g)), true
	case *logic.Compound:
		return g, true
	}
	return nil, false
}

// Clause is a stored fact or rule. Body goals are kept in canonical
// compound form and run left to right during resolution; a fact has no
// body.
type Clause struct {
	ID   string
	Head *logic.Compound
	Body []*logic.Compound
}

// IsFact reports whether the clause has an empty body.
func (c Clause) IsFact() bool { return len(c.Body) == 0 }

// Signature returns the signature of the clause head.
func (c Clause) Signature() Signature {
	return Signature{Functor: c.Head.Functor, Arity: len(c.Head.Args)}
}

// DefinitionError reports a rule body goal that names a relation the
// knowledge base does not know about.
type DefinitionError struct {
	Goal  Signature
	Known []Signature
}

func (e *DefinitionError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("undeclared relation %s in rule body", e.Goal)
	}
	known := make([]string, len(e.Known))
	for i, sig := range e.Known {
		known[i] = sig.String()
	}
	return fmt.Sprintf("undeclared relation %s in rule body (known: %s)", e.Goal, strings.Join(known, ", "))
}

func (e *DefinitionError) Unwrap() error { return internalerr.ErrUndeclared }

// Options configures a knowledge base.
type Options struct {
	// StrictDeclarations rejects rules whose body goals name relations
	// that are neither declared, defined, built in, nor the rule's own
	// head relation. Off by default; undefined relations then simply
	// fail at query time.
	StrictDeclarations bool
	// Builtin reports whether the resolution engine answers a signature
	// itself rather than from stored clauses. Consulted only under
	// StrictDeclarations.
	Builtin func(Signature) bool
}

// KnowledgeBase holds declared signatures and asserted clauses. One
// writer mutates it at a time; readers run against point-in-time views
// taken with Snapshot.
type KnowledgeBase struct {
	opts Options

	mu       sync.RWMutex
	entropy  *ulid.MonotonicEntropy
	declared map[Signature]struct{}
	buckets  map[Signature][]Clause
}

// New creates an empty knowledge base.
func New(opts Options) *KnowledgeBase {
	return &KnowledgeBase{
		opts:     opts,
		entropy:  ulid.Monotonic(rand.Reader, 0),
		declared: make(map[Signature]struct{}),
		buckets:  make(map[Signature][]Clause),
	}
}

// Declare registers a relation signature ahead of use. Declarations feed
// strict-mode rule checking and tooling; asserting a clause registers its
// head relation without one.
func (k *KnowledgeBase) Declare(functor string, arity int) error {
	if functor == "" {
		return fmt.Errorf("declare: empty functor: %w", internalerr.ErrMalformedTerm)
	}
	if arity < 0 {
		return fmt.Errorf("declare %s: negative arity %d: %w", functor, arity, internalerr.ErrMalformedTerm)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.declared[Signature{Functor: functor, Arity: arity}] = struct{}{}
	return nil
}

// AssertFact appends a fact for the head's relation.
func (k *KnowledgeBase) AssertFact(head *logic.Compound) error {
	return k.assert(head, nil)
}

// AssertRule appends a rule. The head holds when every body goal holds,
// proved left to right.
func (k *KnowledgeBase) AssertRule(head *logic.Compound, body ...logic.Term) error {
	return k.assert(head, body)
}

func (k *KnowledgeBase) assert(head *logic.Compound, body []logic.Term) error {
	if head == nil {
		return fmt.Errorf("assert: nil head: %w", internalerr.ErrMalformedTerm)
	}
	if err := logic.Validate(head); err != nil {
		return fmt.Errorf("assert %s: %w", head.Functor, err)
	}
	goals := make([]*logic.Compound, len(body))
	for i, goal := range body {
		if err := logic.Validate(goal); err != nil {
			return fmt.Errorf("assert %s: body goal %d: %w", head.Functor, i+1, err)
		}
		g, ok := Goal(goal)
		if !ok {
			return fmt.Errorf("assert %s: body goal %d is not callable: %w", head.Functor, i+1, internalerr.ErrMalformedTerm)
		}
		goals[i] = g
	}
	if len(goals) == 0 {
		goals = nil
	}
	sig := Signature{Functor: head.Functor, Arity: len(head.Args)}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.opts.StrictDeclarations {
		for _, g := range goals {
			gsig := Signature{Functor: g.Functor, Arity: len(g.Args)}
			if gsig == sig {
				continue
			}
			if _, ok := k.declared[gsig]; ok {
				continue
			}
			if _, ok := k.buckets[gsig]; ok {
				continue
			}
			if k.opts.Builtin != nil && k.opts.Builtin(gsig) {
				continue
			}
			return &DefinitionError{Goal: gsig, Known: k.knownArities(gsig.Functor)}
		}
	}

	c := Clause{
		ID:   ulid.MustNew(ulid.Now(), k.entropy).String(),
		Head: head,
		Body: goals,
	}
	k.buckets[sig] = appendClause(k.buckets[sig], c)
	return nil
}

// Retract removes the first clause, in assertion order, whose head
// unifies with the pattern. It reports whether a clause was removed.
func (k *KnowledgeBase) Retract(pattern *logic.Compound) (bool, error) {
	if pattern == nil {
		return false, fmt.Errorf("retract: nil pattern: %w", internalerr.ErrMalformedTerm)
	}
	if err := logic.Validate(pattern); err != nil {
		return false, fmt.Errorf("retract %s: %w", pattern.Functor, err)
	}
	sig := Signature{Functor: pattern.Functor, Arity: len(pattern.Args)}

	k.mu.Lock()
	defer k.mu.Unlock()

	bucket := k.buckets[sig]
	if len(bucket) == 0 {
		return false, nil
	}

	gen := logic.NewGen()
	p := logic.NewRenamer(gen).Compound(pattern)
	for i, c := range bucket {
		head := logic.NewRenamer(gen).Compound(c.Head)
		if _, ok := logic.Unify(p, head, nil); !ok {
			continue
		}
		next := make([]Clause, 0, len(bucket)-1)
		next = append(next, bucket[:i]...)
		next = append(next, bucket[i+1:]...)
		k.buckets[sig] = next
		return true, nil
	}
	return false, nil
}

// Len returns the number of stored clauses.
func (k *KnowledgeBase) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()

	n := 0
	for _, bucket := range k.buckets {
		n += len(bucket)
	}
	return n
}

// Rules returns every stored clause grouped by sorted signature, in
// assertion order within each relation. The slice is a copy.
func (k *KnowledgeBase) Rules() []Clause {
	k.mu.RLock()
	defer k.mu.RUnlock()

	sigs := make([]Signature, 0, len(k.buckets))
	for sig := range k.buckets {
		sigs = append(sigs, sig)
	}
	sortSignatures(sigs)

	var out []Clause
	for _, sig := range sigs {
		out = append(out, k.buckets[sig]...)
	}
	return out
}

// Declarations returns the declared signatures in sorted order.
func (k *KnowledgeBase) Declarations() []Signature {
	k.mu.RLock()
	defer k.mu.RUnlock()

	sigs := make([]Signature, 0, len(k.declared))
	for sig := range k.declared {
		sigs = append(sigs, sig)
	}
	sortSignatures(sigs)
	return sigs
}

// Stats summarizes the knowledge base for tooling.
type Stats struct {
	Declared  int
	Relations int
	Facts     int
	Rules     int
}

// Stats returns clause and signature counts.
func (k *KnowledgeBase) Stats() Stats {
	k.mu.RLock()
	defer k.mu.RUnlock()

	st := Stats{Declared: len(k.declared), Relations: len(k.buckets)}
	for _, bucket := range k.buckets {
		for _, c := range bucket {
			if c.IsFact() {
				st.Facts++
			} else {
				st.Rules++
			}
		}
	}
	return st
}

// Snapshot is an immutable point-in-time view of the knowledge base.
// Searches run against snapshots, so an in-flight enumeration never
// observes later assertions or retractions.
type Snapshot struct {
	declared map[Signature]struct{}
	buckets  map[Signature][]Clause
	clauses  int
}

// Snapshot captures the current clauses and declarations. Bucket slices
// are never mutated in place, so the copy is shallow and cheap.
func (k *KnowledgeBase) Snapshot() *Snapshot {
	k.mu.RLock()
	defer k.mu.RUnlock()

	declared := make(map[Signature]struct{}, len(k.declared))
	for sig := range k.declared {
		declared[sig] = struct{}{}
	}
	buckets := make(map[Signature][]Clause, len(k.buckets))
	n := 0
	for sig, bucket := range k.buckets {
		buckets[sig] = bucket
		n += len(bucket)
	}
	return &Snapshot{declared: declared, buckets: buckets, clauses: n}
}

// ClausesFor returns the clauses stored for a signature in assertion
// order. Callers must not mutate the returned slice.
func (s *Snapshot) ClausesFor(sig Signature) []Clause {
	return s.buckets[sig]
}

// Defined reports whether the relation has (or had) asserted clauses.
func (s *Snapshot) Defined(sig Signature) bool {
	_, ok := s.buckets[sig]
	return ok
}

// Declared reports whether the signature was declared ahead of use.
func (s *Snapshot) Declared(sig Signature) bool {
	_, ok := s.declared[sig]
	return ok
}

// Signatures lists every declared or defined relation in sorted order.
func (s *Snapshot) Signatures() []Signature {
	seen := make(map[Signature]struct{}, len(s.buckets)+len(s.declared))
	for sig := range s.buckets {
		seen[sig] = struct{}{}
	}
	for sig := range s.declared {
		seen[sig] = struct{}{}
	}
	sigs := make([]Signature, 0, len(seen))
	for sig := range seen {
		sigs = append(sigs, sig)
	}
	sortSignatures(sigs)
	return sigs
}

// Len returns the clause count captured by the snapshot.
func (s *Snapshot) Len() int { return s.clauses }

func (k *KnowledgeBase) knownArities(functor string) []Signature {
	seen := make(map[Signature]struct{})
	for sig := range k.declared {
		if sig.Functor == functor {
			seen[sig] = struct{}{}
		}
	}
	for sig := range k.buckets {
		if sig.Functor == functor {
			seen[sig] = struct{}{}
		}
	}
	out := make([]Signature, 0, len(seen))
	for sig := range seen {
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Arity < out[j].Arity })
	return out
}

func appendClause(bucket []Clause, c Clause) []Clause {
	out := make([]Clause, len(bucket)+1)
	copy(out, bucket)
	out[len(bucket)] = c
	return out
}

func sortSignatures(sigs []Signature) {
	sort.Slice(sigs, func(i, j int) bool {
		if sigs[i].Functor != sigs[j].Functor {
			return sigs[i].Functor < sigs[j].Functor
		}
		return sigs[i].Arity < sigs[j].Arity
	})
}
