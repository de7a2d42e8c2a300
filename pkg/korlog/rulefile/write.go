package rulefile

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/cognicore/korlog/pkg/korlog/logic"
)

var infixOps = map[string]bool{
	"==": true,
	"!=": true,
	"<":  true,
	">":  true,
	"=<": true,
	"<=": true,
	">=": true,
}

// Write renders a ruleset in the textual clause format, declarations
// first. The output parses back to an equal ruleset.
func Write(w io.Writer, rs Ruleset) error {
	bw := bufio.NewWriter(w)
	for _, d := range rs.Decls {
		fmt.Fprintf(bw, "relation %s/%d.\n", d.Functor, d.Arity)
	}
	if len(rs.Decls) > 0 && len(rs.Clauses) > 0 {
		fmt.Fprintln(bw)
	}
	for _, c := range rs.Clauses {
		fmt.Fprintln(bw, FormatClause(c.Head, c.Body))
	}
	return bw.Flush()
}

// FormatClause renders one fact or rule with its terminating period.
func FormatClause(head *logic.Compound, body []*logic.Compound) string {
	var sb strings.Builder
	sb.WriteString(FormatGoal(head))
	if len(body) > 0 {
		sb.WriteString(" :- ")
		for i, g := range body {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(FormatGoal(g))
		}
	}
	sb.WriteByte('.')
	return sb.String()
}

// FormatGoal renders a term, spelling binary comparisons infix and
// zero-arity compounds bare so the output parses back.
func FormatGoal(t logic.Term) string {
	c, ok := t.(*logic.Compound)
	if !ok {
		return t.String()
	}
	if len(c.Args) == 2 && infixOps[c.Functor] {
		return fmt.Sprintf("%s %s %s", FormatGoal(c.Args[0]), c.Functor, FormatGoal(c.Args[1]))
	}
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
		sb.WriteString(FormatGoal(arg))
	}
	sb.WriteByte(')')
	return sb.String()
}
