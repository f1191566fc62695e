package cliassert

import (
	"go.uber.org/zap"

	"github.com/a2y-d5l/cliassert/engine"
	"github.com/a2y-d5l/cliassert/pool"
)

// Option configures the engine.Options used by a single
// Start/Execute/RunConcurrently invocation: which factory builds the
// Command, which pool runs its workers, and where lifecycle events are
// logged.
type Option func(*engine.Options)

// WithLogger sets the zap logger used for lifecycle and kill-failure logs
// (SPEC_FULL.md §2 "Logging"). Nil (the default) is equivalent to
// zap.NewNop().
func WithLogger(log *zap.Logger) Option {
	return func(o *engine.Options) { o.Logger = log }
}

// WithCommandFactory overrides how Command instances are created, e.g. to
// substitute a test double for os/exec.
func WithCommandFactory(f engine.CommandFactory) Option {
	return func(o *engine.Options) { o.Factory = f }
}

// WithPool overrides both the process-wide pool and any per-command
// LocalPool with a caller-supplied pool.Pool.
func WithPool(p pool.Pool) Option {
	return func(o *engine.Options) { o.Pool = p }
}

func applyOptions(opts []Option) engine.Options {
	var o engine.Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
