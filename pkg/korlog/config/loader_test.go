package config

import (
	"context"
	"strings"
	"testing"
)

func TestLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "family.korlog", "parent(alice, bob).\nparent(bob, carol).\n")
	writeFile(t, dir, "extra.korlog", "likes(alice, carol).\n")
	cfgPath := writeFile(t, dir, "korlog.yaml", `limits:
  max_steps: 1000
rulebases:
  - family.korlog
`)

	loader := &Loader{
		ConfigPath:    cfgPath,
		RulebasePaths: []string{dir + "/extra.korlog"},
	}
	comp, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Failed to load components: %v", err)
	}

	if comp.Options.Limits.MaxSteps != 1000 {
		t.Errorf("Expected max steps 1000, got %d", comp.Options.Limits.MaxSteps)
	}
	if len(comp.Rulesets) != 2 {
		t.Fatalf("Expected 2 rulesets, got %d", len(comp.Rulesets))
	}
	if len(comp.Rulesets[0].Clauses) != 2 || len(comp.Rulesets[1].Clauses) != 1 {
		t.Errorf("Unexpected clause counts: %d, %d",
			len(comp.Rulesets[0].Clauses), len(comp.Rulesets[1].Clauses))
	}
	if len(comp.Sources) != 2 || !strings.HasSuffix(comp.Sources[0], "family.korlog") {
		t.Errorf("Unexpected sources: %v", comp.Sources)
	}
}

func TestLoaderWithoutConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "base.korlog", "fact(one).\n")

	loader := &Loader{RulebasePaths: []string{path}}
	comp, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Failed to load components: %v", err)
	}
	if len(comp.Rulesets) != 1 {
		t.Fatalf("Expected 1 ruleset, got %d", len(comp.Rulesets))
	}
	if comp.Options.Limits.MaxSteps != 0 {
		t.Errorf("Expected zero options without a config, got %+v", comp.Options)
	}
}

func TestLoaderMissingRulebase(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "korlog.yaml", "rulebases:\n  - missing.korlog\n")

	loader := &Loader{ConfigPath: cfgPath}
	_, err := loader.Load(context.Background())
	if err == nil {
		t.Fatal("Expected error for missing rulebase")
	}
	if !strings.Contains(err.Error(), "missing.korlog") {
		t.Errorf("Error should name the failing path, got %v", err)
	}
}

func TestLoaderBadRulebaseSyntax(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.korlog", "parent(alice\n")
	cfgPath := writeFile(t, dir, "korlog.yaml", "rulebases:\n  - bad.korlog\n")

	loader := &Loader{ConfigPath: cfgPath}
	_, err := loader.Load(context.Background())
	if err == nil {
		t.Fatal("Expected parse error")
	}
	if !strings.Contains(err.Error(), "line 1") {
		t.Errorf("Error should carry the line number, got %v", err)
	}
}
