package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/cognicore/korlog/internal/ui"
	"github.com/cognicore/korlog/pkg/korlog"
	"github.com/cognicore/korlog/pkg/korlog/config"
	"github.com/cognicore/korlog/pkg/korlog/rulefile"
	"github.com/cognicore/korlog/pkg/korlog/solve"
)

func main() {
	var (
		suitePath = flag.String("suite", "", "Check suite file (required)")
		noColor   = flag.Bool("no-color", false, "Disable colored output")
	)
	flag.Parse()

	ui.InitColors(*noColor)

	if *suitePath == "" {
		log.Fatal("--suite required")
	}

	ctx := context.Background()

	suite, err := config.LoadSuite(*suitePath)
	if err != nil {
		log.Fatalf("load suite: %v", err)
	}

	engine, err := buildEngine(ctx, *suitePath, suite)
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}

	passed, failed := 0, 0
	for _, check := range suite.Checks {
		if runCheck(ctx, engine, check) {
			passed++
		} else {
			failed++
		}
	}

	fmt.Println()
	if failed > 0 {
		ui.Fail("%d of %d checks failed", failed, passed+failed)
		os.Exit(1)
	}
	ui.Success("%d checks passed", passed)
}

func runCheck(ctx context.Context, engine *korlog.Korlog, check config.Check) bool {
	goals, err := rulefile.ParseGoals(check.Query)
	if err != nil {
		ui.Fail("%s: parse query: %v", check.Name, err)
		return false
	}

	var limits solve.Limits
	if check.MaxSteps != 0 {
		limits = solve.Limits{MaxSteps: check.MaxSteps}
	}
	sols, err := engine.QueryWithLimits(ctx, limits, goals...)
	if err != nil {
		ui.Fail("%s: %v", check.Name, err)
		return false
	}

	// Satisfiability is settled by the first answer; counting drains
	// the stream.
	count := 0
	for sols.Next() {
		count++
		if check.Want != config.WantCount {
			break
		}
	}
	if err := sols.Err(); err != nil {
		if errors.Is(err, korlog.ErrBudgetExhausted) {
			ui.Warn("BUDGET %s: %v", check.Name, err)
		} else {
			ui.Fail("%s: %v", check.Name, err)
		}
		return false
	}

	switch check.Want {
	case config.WantSatisfiable:
		if count > 0 {
			ui.Success("%s", check.Name)
			return true
		}
		ui.Fail("%s: no solution", check.Name)
	case config.WantUnsatisfiable:
		if count == 0 {
			ui.Success("%s", check.Name)
			return true
		}
		ui.Fail("%s: unexpectedly satisfiable", check.Name)
	case config.WantCount:
		if count == check.Count {
			ui.Success("%s (%d solutions)", check.Name, count)
			return true
		}
		ui.Fail("%s: got %d solutions, want %d", check.Name, count, check.Count)
	}
	return false
}

func buildEngine(ctx context.Context, suitePath string, suite *config.Suite) (*korlog.Korlog, error) {
	engine := korlog.New(korlog.Options{
		Limits: solve.Limits{
			MaxSteps: suite.Limits.MaxSteps,
			MaxDepth: suite.Limits.MaxDepth,
		},
	})

	base := filepath.Dir(suitePath)
	paths := make([]string, len(suite.Rulebases))
	for i, p := range suite.Rulebases {
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		paths[i] = p
	}

	sets, err := rulefile.LoadPaths(ctx, paths...)
	if err != nil {
		return nil, err
	}
	for i, rs := range sets {
		if err := engine.LoadRuleset(rs); err != nil {
			return nil, fmt.Errorf("load %s: %w", paths[i], err)
		}
	}
	return engine, nil
}
