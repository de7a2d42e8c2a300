package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cognicore/korlog/internal/logging"
	"github.com/cognicore/korlog/internal/session"
	"github.com/cognicore/korlog/internal/ui"
	"github.com/cognicore/korlog/pkg/korlog"
	"github.com/cognicore/korlog/pkg/korlog/config"
	"github.com/cognicore/korlog/pkg/korlog/rulefile"
	"github.com/cognicore/korlog/pkg/korlog/solve"
)

func main() {
	var (
		configPath = flag.String("config", "", "Engine configuration file (optional)")
		rulePaths  = flag.StringSlice("rules", nil, "Rule files to consult (repeatable)")
		query      = flag.String("query", "", "One-shot query (non-interactive mode)")
		topK       = flag.Int("topk", 10, "Maximum solutions to print per query, 0 for all")
		dbPath     = flag.String("db", "", "Session journal database (optional)")
		resume     = flag.Bool("resume", false, "Resume the latest journaled session")
		trace      = flag.Bool("trace", false, "Log resolution events")
		verbose    = flag.Bool("verbose", false, "Debug logging")
		noColor    = flag.Bool("no-color", false, "Disable colored output")
	)
	flag.Parse()

	ui.InitColors(*noColor)

	logger, err := logging.New(*verbose || *trace)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx := context.Background()

	var traceSink solve.TraceFunc
	if *trace {
		traceSink = logging.TraceSink(logger)
	}

	engine, err := buildEngine(ctx, *configPath, *rulePaths, traceSink)
	if err != nil {
		logger.Fatal("build engine", zap.Error(err))
	}
	stats := engine.Stats()
	logger.Info("engine ready",
		zap.Int("relations", stats.Relations),
		zap.Int("facts", stats.Facts),
		zap.Int("rules", stats.Rules),
	)

	journal, sessionID, err := openSession(ctx, *dbPath, *resume, engine, logger)
	if err != nil {
		logger.Fatal("open session", zap.Error(err))
	}
	if journal != nil {
		defer journal.Close()
	}

	// One-shot query mode
	if *query != "" {
		runQuery(ctx, engine, *query, *topK)
		return
	}

	// Interactive mode
	fmt.Println("===========================================")
	fmt.Println("  Korlog Shell")
	fmt.Println("  Logic programming workbench")
	fmt.Println("===========================================")
	fmt.Println()
	fmt.Println("Commands: relation, fact, rule, query, retract, list, stats, help, quit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("?- ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}

		runLine(ctx, engine, journal, sessionID, line, *topK)
	}

	fmt.Println("\nGoodbye!")
}

func runLine(ctx context.Context, engine *korlog.Korlog, journal *session.Journal, sessionID, line string, topK int) {
	verb := line
	rest := ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		verb, rest = line[:i], strings.TrimSpace(line[i:])
	}

	switch verb {
	case "help":
		printHelp()
	case "stats":
		printStats(engine)
	case "list":
		if err := engine.ExportRules(os.Stdout); err != nil {
			ui.Fail("list: %v", err)
		}
	case "relation":
		text := ensureDot(line)
		if err := engine.Consult(text); err != nil {
			ui.Fail("%v", err)
			return
		}
		ui.Success("declared")
		record(ctx, journal, sessionID, session.KindDeclare, text)
	case "fact":
		text := ensureDot(rest)
		if err := engine.Consult(text); err != nil {
			ui.Fail("%v", err)
			return
		}
		ui.Success("asserted")
		record(ctx, journal, sessionID, session.KindFact, text)
	case "rule":
		text := ensureDot(rest)
		if err := engine.Consult(text); err != nil {
			ui.Fail("%v", err)
			return
		}
		ui.Success("asserted")
		record(ctx, journal, sessionID, session.KindRule, text)
	case "retract":
		pattern, err := rulefile.ParseTerm(rest)
		if err != nil {
			ui.Fail("%v", err)
			return
		}
		removed, err := engine.Retract(pattern)
		if err != nil {
			ui.Fail("%v", err)
			return
		}
		if !removed {
			ui.Warn("nothing to retract")
			return
		}
		ui.Success("retracted")
		record(ctx, journal, sessionID, session.KindRetract, rest)
	case "query":
		runQuery(ctx, engine, rest, topK)
	default:
		ui.Warn("unknown command %q (try help)", verb)
	}
}

func runQuery(ctx context.Context, engine *korlog.Korlog, text string, topK int) {
	goals, err := rulefile.ParseGoals(text)
	if err != nil {
		ui.Fail("%v", err)
		return
	}

	sols, err := engine.Query(ctx, goals...)
	if err != nil {
		ui.Fail("%v", err)
		return
	}

	n := 0
	truncated := false
	for sols.Next() {
		n++
		fmt.Println(formatBindings(sols.Bindings()))
		if topK > 0 && n >= topK {
			truncated = true
			break
		}
	}

	if err := sols.Err(); err != nil {
		var budget *solve.BudgetError
		if errors.As(err, &budget) {
			ui.Warn("search aborted: %v", err)
		} else {
			ui.Fail("%v", err)
		}
		return
	}
	if n == 0 {
		ui.Fail("false")
		return
	}
	if truncated {
		ui.Dim.Printf("... stopped after %d solutions\n", n)
		return
	}
	ui.Dim.Printf("%d solution(s), %d steps\n", n, sols.Steps())
}

func formatBindings(b solve.Bindings) string {
	if len(b) == 0 {
		return "true"
	}
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s = %s", name, rulefile.FormatGoal(b[name]))
	}
	return strings.Join(parts, ", ")
}

func printStats(engine *korlog.Korlog) {
	st := engine.Stats()
	ui.Bold.Println("Knowledge base")
	fmt.Printf("  declared:  %d\n", st.Declared)
	fmt.Printf("  relations: %d\n", st.Relations)
	fmt.Printf("  facts:     %d\n", st.Facts)
	fmt.Printf("  rules:     %d\n", st.Rules)
}

func printHelp() {
	fmt.Print(`Commands:
  relation name/arity.        declare a relation
  fact head.                  assert a fact
  rule head :- goal, goal.    assert a rule
  query goal, goal.           enumerate solutions
  retract pattern             remove the first matching clause
  list                        dump the knowledge base as rule text
  stats                       show knowledge base counts
  help                        this text
  quit                        leave the shell
`)
}

func ensureDot(s string) string {
	if strings.HasSuffix(s, ".") {
		return s
	}
	return s + "."
}

func record(ctx context.Context, journal *session.Journal, sessionID, kind, text string) {
	if journal == nil {
		return
	}
	if err := journal.Append(ctx, sessionID, kind, text); err != nil {
		ui.Warn("journal: %v", err)
	}
}

func openSession(ctx context.Context, dbPath string, resume bool, engine *korlog.Korlog, logger *zap.Logger) (*session.Journal, string, error) {
	if dbPath == "" {
		return nil, "", nil
	}

	journal, err := session.Open(ctx, dbPath)
	if err != nil {
		return nil, "", err
	}

	if resume {
		id, found, err := journal.Latest(ctx)
		if err != nil {
			journal.Close()
			return nil, "", err
		}
		if found {
			if err := session.Replay(ctx, journal, id, engine); err != nil {
				journal.Close()
				return nil, "", fmt.Errorf("replay session %s: %w", id, err)
			}
			logger.Info("session resumed", zap.String("id", id))
			return journal, id, nil
		}
		ui.Warn("no session to resume, starting fresh")
	}

	id, err := journal.Begin(ctx)
	if err != nil {
		journal.Close()
		return nil, "", err
	}
	logger.Info("session started", zap.String("id", id))
	return journal, id, nil
}

func buildEngine(ctx context.Context, configPath string, rulePaths []string, trace solve.TraceFunc) (*korlog.Korlog, error) {
	loader := config.Loader{
		ConfigPath:    configPath,
		RulebasePaths: rulePaths,
	}
	components, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	opts := components.Options
	opts.Trace = trace
	engine := korlog.New(opts)

	for i, rs := range components.Rulesets {
		if err := engine.LoadRuleset(rs); err != nil {
			return nil, fmt.Errorf("load %s: %w", components.Sources[i], err)
		}
	}
	return engine, nil
}
