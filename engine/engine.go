package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/a2y-d5l/cliassert/pool"
)

// CommandFactory builds a Command from a resolved configuration. Swapping
// this out is how remote execution, containerized execution, or tests
// substitute for os/exec, adapted from the teacher's identically named
// type.
type CommandFactory func(ctx context.Context, cfg CommandConfig) (Command, error)

// Options configures one Start/RunConcurrently call: which factory builds
// the Command, which pool runs its workers, and where lifecycle events are
// logged.
type Options struct {
	Factory CommandFactory
	Logger  *zap.Logger

	// Pool, if set, overrides both the process-wide pool and any
	// per-command LocalPool configured on the command. Mainly useful for
	// tests that want deterministic worker naming.
	Pool pool.Pool
}

func (o Options) factory() CommandFactory {
	if o.Factory != nil {
		return o.Factory
	}
	return DefaultCommandFactory
}

func (o Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

func (o Options) pool(cfg CommandConfig, log *zap.Logger) pool.Pool {
	if o.Pool != nil {
		return o.Pool
	}
	if cfg.LocalPool != nil {
		return pool.NewLocal(cfg.LocalPool.MaxSize, log)
	}
	return pool.ProcessWide(log)
}

// ProcessExecution is the handle returned by Start: the live child plus
// everything needed to wait on it, interrogate it, or tear it down (spec
// §4.8 step 4: "wait, wait_with_timeout, kill, pid, children, descendants,
// close"). Named distinctly from ProcessHandle, which is the lower-level
// os.Process abstraction this wraps.
type ProcessExecution struct {
	sup           *supervisor
	commandString string
}

// Wait blocks until the child exits and returns the final result.
func (p *ProcessExecution) Wait() *Result { return p.sup.Wait(p.commandString) }

// WaitWithTimeout blocks until the child exits or timeout elapses,
// whichever comes first.
func (p *ProcessExecution) WaitWithTimeout(timeout time.Duration) *Result {
	return p.sup.WaitWithTimeout(p.commandString, timeout)
}

// Kill cancels the workers and destroys the process. Idempotent.
func (p *ProcessExecution) Kill(forcibly, withDescendants bool) {
	p.sup.Kill(forcibly, withDescendants)
}

// Close implements scope-exit cleanup per the command's auto-close policy.
func (p *ProcessExecution) Close() *Result { return p.sup.Close(p.commandString) }

// Pid returns the process ID, or -1 if unavailable.
func (p *ProcessExecution) Pid() int { return p.sup.Pid() }

// Children returns the PIDs of the process's direct children, best
// effort.
func (p *ProcessExecution) Children() ([]int, error) {
	if p.sup.handle == nil {
		return nil, errors.New("process has not started or has already exited")
	}
	return p.sup.handle.Descendants()
}

// Descendants returns the same set as Children: the direct children of
// the process. Grandchildren and deeper descendants are not included.
func (p *ProcessExecution) Descendants() ([]int, error) { return p.Children() }

// CommandString returns the canonical rendering used in display and
// error messages (spec §6).
func (p *ProcessExecution) CommandString() string { return p.commandString }

// Start resolves the executable, builds the canonical command string,
// validates the configuration, spawns the child, and starts its workers
// (spec §4.8 C10 Expectation Engine, steps 1-3).
func Start(ctx context.Context, cfg CommandConfig, opts Options) (*ProcessExecution, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	commandString := renderCommandString(cfg)
	log := opts.logger()
	runID := uuid.NewString()

	cmd, err := opts.factory()(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: create command: %w", commandString, err)
	}

	exitAssertion := cfg.ExitCode
	if exitAssertion == nil {
		exitAssertion = NewExitCodeAny()
	}

	collector := newFailureCollector()
	workerPool := opts.pool(cfg, log)
	sup := newSupervisor(cmd, cfg, collector, exitAssertion, workerPool, runID, log)

	if err := sup.spawn(); err != nil {
		return nil, fmt.Errorf("%s: %w", commandString, err)
	}

	return &ProcessExecution{sup: sup, commandString: commandString}, nil
}

// RunConcurrently starts every configuration concurrently and waits for
// all of them, returning one result per input in the same order. This is
// the one-shot generalization of running a single command: it is built
// the way the teacher's own Engine.Run fans multiple specs out over
// goroutines, joined here with an errgroup so the first spawn failure is
// surfaced instead of silently discarded (SPEC_FULL.md §4 supplemented
// feature).
func RunConcurrently(ctx context.Context, cfgs []CommandConfig, opts Options) ([]*Result, error) {
	results := make([]*Result, len(cfgs))

	g, gctx := errgroup.WithContext(ctx)
	for i, cfg := range cfgs {
		i, cfg := i, cfg
		g.Go(func() error {
			exec, err := Start(gctx, cfg, opts)
			if err != nil {
				return fmt.Errorf("command %d: %w", i, err)
			}
			results[i] = exec.Wait()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// RenderCommandString exposes the canonical command-line rendering (spec
// §6) for callers that want to preview it before Start, e.g. the builder's
// Command.String().
func RenderCommandString(cfg CommandConfig) string { return renderCommandString(cfg) }

// renderCommandString builds the deterministic single-line rendering from
// spec §6: "cd <quoted-cwd> && <NAME>=<quoted-value> … <quoted-exe>
// <quoted-arg> … [2>&1] [> <stdout-redirect>] [2> <stderr-redirect>]".
func renderCommandString(cfg CommandConfig) string {
	var parts []string

	if cfg.Dir != "" {
		parts = append(parts, "cd", quoteToken(cfg.Dir), "&&")
	}
	for _, e := range cfg.Env {
		parts = append(parts, e.Name+"="+quoteToken(e.Value))
	}

	exe := ""
	if cfg.Executable != nil {
		if resolved, err := cfg.Executable(); err == nil {
			exe = resolved
		}
	}
	parts = append(parts, quoteToken(exe))
	for _, a := range cfg.Args {
		parts = append(parts, quoteToken(a))
	}

	if cfg.MergeStderrIntoStdout {
		parts = append(parts, "2>&1")
	}
	if cfg.Stdout.RedirectPath != "" {
		parts = append(parts, ">", quoteToken(cfg.Stdout.RedirectPath))
	}
	if !cfg.MergeStderrIntoStdout && cfg.Stderr.RedirectPath != "" {
		parts = append(parts, "2>", quoteToken(cfg.Stderr.RedirectPath))
	}

	return strings.Join(parts, " ")
}

// quoteToken double-quotes a token iff it contains whitespace, escaping
// embedded double quotes (spec §6 quoting rule).
func quoteToken(s string) string {
	if !strings.ContainsAny(s, " \t\n") {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' {
			b.WriteString(`\"`)
		} else {
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
