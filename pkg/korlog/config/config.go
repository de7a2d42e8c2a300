package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/korlog/pkg/korlog"
	"github.com/cognicore/korlog/pkg/korlog/internalerr"
	"github.com/cognicore/korlog/pkg/korlog/solve"
)

// Config represents the engine configuration file
type Config struct {
	Limits             LimitsConfig `yaml:"limits"`
	OccursCheck        bool         `yaml:"occurs_check"`
	StrictDeclarations bool         `yaml:"strict_declarations"`
	Rulebases          []string     `yaml:"rulebases"`
}

// LimitsConfig bounds the search budgets. Zero means the engine
// default; -1 disables the limit.
type LimitsConfig struct {
	MaxSteps int `yaml:"max_steps"`
	MaxDepth int `yaml:"max_depth"`
}

// LoadConfig loads engine settings from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Limits.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (l LimitsConfig) validate() error {
	if l.MaxSteps < -1 {
		return fmt.Errorf("limits.max_steps %d: %w", l.MaxSteps, internalerr.ErrInvalidConfig)
	}
	if l.MaxDepth < -1 {
		return fmt.Errorf("limits.max_depth %d: %w", l.MaxDepth, internalerr.ErrInvalidConfig)
	}
	return nil
}

// EngineOptions maps the configuration onto engine options
func (c *Config) EngineOptions() korlog.Options {
	return korlog.Options{
		StrictDeclarations: c.StrictDeclarations,
		OccursCheck:        c.OccursCheck,
		Limits: solve.Limits{
			MaxSteps: c.Limits.MaxSteps,
			MaxDepth: c.Limits.MaxDepth,
		},
	}
}

// Suite represents a check suite file: rulebases to load and queries
// with expected outcomes.
type Suite struct {
	Rulebases []string     `yaml:"rulebases"`
	Limits    LimitsConfig `yaml:"limits"`
	Checks    []Check      `yaml:"checks"`
}

// Check is one expectation over a query
type Check struct {
	Name     string `yaml:"name"`
	Query    string `yaml:"query"`
	Want     string `yaml:"want"`
	Count    int    `yaml:"count"`
	MaxSteps int    `yaml:"max_steps"`
}

// Expected outcomes of a check
const (
	WantSatisfiable   = "satisfiable"
	WantUnsatisfiable = "unsatisfiable"
	WantCount         = "count"
)

// LoadSuite loads a check suite from a YAML file. Checks are
// normalized: an empty want defaults to satisfiable and an empty name
// falls back to the query text.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, err
	}
	if err := suite.Limits.validate(); err != nil {
		return nil, err
	}
	if len(suite.Checks) == 0 {
		return nil, fmt.Errorf("suite has no checks: %w", internalerr.ErrInvalidConfig)
	}
	for i := range suite.Checks {
		if err := suite.Checks[i].validate(); err != nil {
			return nil, fmt.Errorf("check %d: %w", i+1, err)
		}
	}

	return &suite, nil
}

func (c *Check) validate() error {
	if c.Query == "" {
		return fmt.Errorf("missing query: %w", internalerr.ErrInvalidConfig)
	}
	if c.Name == "" {
		c.Name = c.Query
	}
	switch c.Want {
	case "":
		c.Want = WantSatisfiable
	case WantSatisfiable, WantUnsatisfiable, WantCount:
	default:
		return fmt.Errorf("want %q is not %s, %s, or %s: %w",
			c.Want, WantSatisfiable, WantUnsatisfiable, WantCount, internalerr.ErrInvalidConfig)
	}
	if c.Count < 0 {
		return fmt.Errorf("count %d: %w", c.Count, internalerr.ErrInvalidConfig)
	}
	if c.MaxSteps < -1 {
		return fmt.Errorf("max_steps %d: %w", c.MaxSteps, internalerr.ErrInvalidConfig)
	}
	return nil
}
