package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cognicore/korlog/pkg/korlog"
	"github.com/cognicore/korlog/pkg/korlog/rulefile"
)

// Loader loads the configuration file and every rulebase it references
type Loader struct {
	ConfigPath    string
	RulebasePaths []string
}

// Components holds the loaded engine options and rulesets
type Components struct {
	Options  korlog.Options
	Rulesets []rulefile.Ruleset
	Sources  []string
}

// Load reads the configuration and rulebases and returns initialized
// components. Rulebase paths inside the configuration file resolve
// relative to that file; explicit RulebasePaths are used as given.
func (l *Loader) Load(ctx context.Context) (*Components, error) {
	comp := &Components{}

	var paths []string
	if l.ConfigPath != "" {
		cfg, err := LoadConfig(l.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		comp.Options = cfg.EngineOptions()
		base := filepath.Dir(l.ConfigPath)
		for _, p := range cfg.Rulebases {
			if !filepath.IsAbs(p) {
				p = filepath.Join(base, p)
			}
			paths = append(paths, p)
		}
	}
	paths = append(paths, l.RulebasePaths...)

	if len(paths) > 0 {
		sets, err := rulefile.LoadPaths(ctx, paths...)
		if err != nil {
			return nil, fmt.Errorf("load rulebase: %w", err)
		}
		comp.Rulesets = sets
	}
	comp.Sources = paths

	return comp, nil
}
