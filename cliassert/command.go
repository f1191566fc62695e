// Package cliassert is the fluent, out-of-scope-per-spec builder surface
// in front of package engine (spec §1: "the builder/fluent DSL itself
// (pure data construction)"). A Command accumulates an immutable
// engine.CommandConfig through chained With*-style methods and is
// consumed once, at Start/Execute, by the engine.
//
// Typical usage:
//
//	result, err := cliassert.Exec("echo", "Hello Joe").
//	    Stdout().HasLines("Hello Joe").HasLineCount(1).
//	    Done().
//	    Execute(ctx)
//	if err != nil {
//	    return err
//	}
//	if err := result.AssertSuccess(); err != nil {
//	    t.Fatal(err)
//	}
package cliassert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/a2y-d5l/cliassert/engine"
)

// Command is the fluent configuration builder for one child-process
// execution. Every chained method returns the same *Command, but the
// underlying engine.CommandConfig is rebuilt via copy-on-write With* calls
// underneath, mirroring the teacher's own "all builder methods return a
// new value" config idiom one layer down.
type Command struct {
	cfg      engine.CommandConfig
	err      error
	stdinSet bool
}

// New returns an empty Command with no executable set.
func New() *Command {
	return &Command{cfg: engine.NewCommandConfig()}
}

// Exec is shorthand for New().Executable(executable).Args(args...).
func Exec(executable string, args ...string) *Command {
	return New().Executable(executable).Args(args...)
}

// Clone returns an independent copy of c. engine.CommandConfig's With*
// methods never mutate in place, so copying the struct value is
// sufficient to branch into two variant executions from a shared base.
func (c *Command) Clone() *Command {
	clone := *c
	return &clone
}

// Executable sets a literal executable path (spec §6 "executable(path)").
func (c *Command) Executable(path string) *Command {
	c.cfg = c.cfg.WithExecutable(engine.LiteralExecutable(path))
	return c
}

// Runtime sets a late-binding executable resolver (spec §3: "a late-binding
// lookup of the host runtime"), e.g. resolving "node" or "python3" via PATH
// at Start time instead of at configuration time (spec §6 "host-runtime
// shorthand").
func (c *Command) Runtime(resolve engine.ExecutableResolver) *Command {
	c.cfg = c.cfg.WithExecutable(resolve)
	return c
}

// Args appends arguments to the command line (spec §6 "arg/args").
func (c *Command) Args(args ...string) *Command {
	c.cfg = c.cfg.WithArgs(args...)
	return c
}

// Env merges one environment overlay entry, overwriting any existing entry
// of the same name while preserving its original insertion position (spec
// §3, §6 "env(name,value,...)").
func (c *Command) Env(name, value string) *Command {
	c.cfg = c.cfg.WithEnv(name, value)
	return c
}

// EnvMap merges each entry of m (spec §6 "env(map)"). Prefer repeated Env
// calls when insertion order matters: Go map iteration order is
// unspecified, so entries sharing no prior position are merged in an
// arbitrary order.
func (c *Command) EnvMap(m map[string]string) *Command {
	for k, v := range m {
		c.cfg = c.cfg.WithEnv(k, v)
	}
	return c
}

// Cd sets the working directory (spec §6 "cd(path)").
func (c *Command) Cd(dir string) *Command {
	c.cfg = c.cfg.WithDir(dir)
	return c
}

// StderrToStdout merges stderr into stdout (spec §6 "stderr_to_stdout()").
// Configuring any stderr expectation afterward causes Start/Execute to
// fail with "cannot set stderr expectations while redirecting stderr to
// stdout" (engine.CommandConfig.Validate, spec §4.8 step 2).
func (c *Command) StderrToStdout() *Command {
	c.cfg = c.cfg.WithStderrToStdout()
	return c
}

// StdinString feeds s verbatim to the child's stdin (spec §6
// "stdin(string)").
func (c *Command) StdinString(s string) *Command {
	return c.setStdin(engine.StdinSource{Kind: engine.StdinString, String: s})
}

// StdinFile streams path's contents to the child's stdin (spec §6
// "stdin(file)").
func (c *Command) StdinFile(path string) *Command {
	return c.setStdin(engine.StdinSource{Kind: engine.StdinFile, File: path})
}

// StdinCallback hands a cancellable sink to fn on a dedicated worker (spec
// §4.4 C6 Input Producer; §6 "stdin(callback)").
func (c *Command) StdinCallback(fn func(engine.StdinSink) error) *Command {
	return c.setStdin(engine.StdinSource{Kind: engine.StdinCallback, Callback: fn})
}

// setStdin enforces "only one of stdin_string, stdin_file, stdin_callback
// may be configured; repeated configuration fails at configuration time"
// (spec §4.4). The failure surfaces from Start/Execute rather than
// immediately, since this builder's With*-style methods never return an
// error of their own; it is recorded here and checked once, at the
// terminal call.
func (c *Command) setStdin(src engine.StdinSource) *Command {
	if c.err == nil && c.stdinSet {
		c.err = errors.New("stdin already configured: only one of StdinString, StdinFile, or StdinCallback may be set")
		return c
	}
	c.stdinSet = true
	c.cfg = c.cfg.WithStdin(src)
	return c
}

// AutoCloseForcibly selects forced/immediate termination (SIGKILL) instead
// of the graceful default when the process is torn down at scope exit
// (spec §6 "auto_close_forcibly()", §9 open question (a)).
func (c *Command) AutoCloseForcibly() *Command {
	c.cfg.AutoClose.Forcibly = true
	return c
}

// AutoCloseWithoutDescendants undoes a prior request to kill descendant
// processes at scope exit, restoring the default of killing only the
// direct child (spec §6 "auto_close_without_descendants()").
func (c *Command) AutoCloseWithoutDescendants() *Command {
	c.cfg.AutoClose.WithDescendants = false
	return c
}

// AutoCloseWithDescendants requests descendant processes be killed too at
// scope exit, best effort (spec §4.6.8, §9).
func (c *Command) AutoCloseWithDescendants() *Command {
	c.cfg.AutoClose.WithDescendants = true
	return c
}

// AutoCloseTimeout bounds how long scope-exit Close waits for the process
// to exit after signalling it (spec §6 "auto_close_timeout(d)").
func (c *Command) AutoCloseTimeout(d time.Duration) *Command {
	c.cfg.AutoClose.Timeout = d
	return c
}

// LocalPool requests a fresh per-command worker pool instead of the
// process-wide one (spec §4.7 "per-command local pool").
func (c *Command) LocalPool(maxSize int, keepAlive time.Duration) *Command {
	c.cfg = c.cfg.WithLocalPool(engine.LocalPoolSpec{MaxSize: maxSize, KeepAlive: keepAlive})
	return c
}

// ExitCodeIs asserts the exit code equals n (spec §6 "exitCodeIs(n)").
func (c *Command) ExitCodeIs(n int) *Command {
	c.cfg = c.cfg.WithExitCodeAssertion(engine.NewExitCodeIs(n))
	return c
}

// ExitCodeIsAnyOf asserts the exit code is one of codes (spec §6
// "exitCodeIsAnyOf(...)").
func (c *Command) ExitCodeIsAnyOf(codes ...int) *Command {
	c.cfg = c.cfg.WithExitCodeAssertion(engine.NewExitCodeIsAnyOf(codes...))
	return c
}

// ExitCodeSatisfies asserts predicate(code) holds; message may reference
// ${actual} (spec §4.5, §6 "exitCodeSatisfies(pred, msg)").
func (c *Command) ExitCodeSatisfies(predicate func(int) bool, message string) *Command {
	c.cfg = c.cfg.WithExitCodeAssertion(engine.NewExitCodeSatisfies(predicate, message))
	return c
}

// Stdout returns the stream builder for standard output.
func (c *Command) Stdout() *StreamExpect { return &StreamExpect{parent: c, cfg: &c.cfg.Stdout} }

// Stderr returns the stream builder for standard error.
func (c *Command) Stderr() *StreamExpect { return &StreamExpect{parent: c, cfg: &c.cfg.Stderr} }

// String renders the canonical, deterministic command-line rendering used
// in display and error messages (spec §6), without starting the command.
func (c *Command) String() string { return engine.RenderCommandString(c.cfg) }

// Config returns the accumulated engine.CommandConfig, or any error
// recorded by an earlier builder call (spec §4.4 stdin exclusivity). This
// is an escape hatch for callers that need to hand the configuration to a
// lower-level engine API directly (e.g. wiring it into a custom runner),
// underscoring that the fluent surface really is "a thin projection over
// the configuration record consumed by the engine" (spec §1).
func (c *Command) Config() (engine.CommandConfig, error) {
	if c.err != nil {
		return engine.CommandConfig{}, c.err
	}
	return c.cfg, nil
}

// Start resolves the executable, spawns the child, and starts its I/O
// workers without waiting for it to exit (spec §4.8 C10 Expectation
// Engine, steps 1-3).
func (c *Command) Start(ctx context.Context, opts ...Option) (*Process, error) {
	if c.err != nil {
		return nil, c.err
	}
	exec, err := engine.Start(ctx, c.cfg, applyOptions(opts))
	if err != nil {
		return nil, err
	}
	return &Process{exec: exec}, nil
}

// Execute starts the command and blocks until it exits, returning the
// aggregated result. Equivalent to Start followed by Process.Wait.
func (c *Command) Execute(ctx context.Context, opts ...Option) (*CommandResult, error) {
	p, err := c.Start(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return p.Wait(), nil
}

// ExecuteWithTimeout is Execute bounded by timeout (spec §8 scenario 3:
// "execute_with_timeout").
func (c *Command) ExecuteWithTimeout(ctx context.Context, timeout time.Duration, opts ...Option) (*CommandResult, error) {
	p, err := c.Start(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return p.WaitWithTimeout(timeout), nil
}

// RunConcurrently starts every command concurrently and waits for all of
// them, returning one result per input in the same order (SPEC_FULL.md §4
// "batch concurrent execution helper"). It is additive: single-command
// semantics are unchanged, this simply fans Start+Wait out over goroutines
// and joins them.
func RunConcurrently(ctx context.Context, cmds []*Command, opts ...Option) ([]*CommandResult, error) {
	cfgs := make([]engine.CommandConfig, len(cmds))
	for i, c := range cmds {
		if c.err != nil {
			return nil, fmt.Errorf("command %d: %w", i, c.err)
		}
		cfgs[i] = c.cfg
	}
	return engine.RunConcurrently(ctx, cfgs, applyOptions(opts))
}
