// Package logging builds the zap loggers used by the korlog commands.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cognicore/korlog/pkg/korlog/solve"
)

// New builds a production logger, raised to debug level when verbose is
// set.
func New(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

// TraceSink adapts a logger into a resolution trace callback.
func TraceSink(logger *zap.Logger) solve.TraceFunc {
	return func(ev solve.Event) {
		logger.Debug("resolve",
			zap.String("kind", string(ev.Kind)),
			zap.Int("step", ev.Step),
			zap.Int("depth", ev.Depth),
			zap.String("goal", ev.Goal),
			zap.String("clause", ev.Clause),
			zap.String("note", ev.Note),
		)
	}
}
