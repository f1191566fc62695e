package cliassert

import (
	"time"

	"github.com/a2y-d5l/cliassert/engine"
)

// CommandResult is the outcome of one command execution (spec §3 "Command
// result"). It is engine.Result directly: AssertSuccess/AssertTimeout
// already live on the engine type, and re-wrapping them here would only
// add indirection with no behavior of its own.
type CommandResult = engine.Result

// Process is the handle returned by Command.Start: the live child plus
// everything needed to wait on it, interrogate it, or tear it down (spec
// §4.8 step 4: "wait, wait_with_timeout, kill, pid, children, descendants,
// close").
type Process struct {
	exec *engine.ProcessExecution
}

// Wait blocks until the child exits and returns the final result.
func (p *Process) Wait() *CommandResult { return p.exec.Wait() }

// WaitWithTimeout blocks until the child exits or timeout elapses,
// whichever comes first (spec §4.6.7).
func (p *Process) WaitWithTimeout(timeout time.Duration) *CommandResult {
	return p.exec.WaitWithTimeout(timeout)
}

// Kill cancels the workers and destroys the process. Idempotent.
func (p *Process) Kill(forcibly, withDescendants bool) {
	p.exec.Kill(forcibly, withDescendants)
}

// Close implements scope-exit cleanup per the command's auto-close policy;
// typically invoked via defer immediately after Start.
func (p *Process) Close() *CommandResult { return p.exec.Close() }

// Pid returns the process ID, or -1 if unavailable.
func (p *Process) Pid() int { return p.exec.Pid() }

// Children returns the PIDs of the process's direct children, best
// effort.
func (p *Process) Children() ([]int, error) { return p.exec.Children() }

// Descendants is an alias for Children; see
// engine.ProcessExecution.Descendants for why the two coincide.
func (p *Process) Descendants() ([]int, error) { return p.exec.Descendants() }

// CommandString returns the canonical rendering used in display and error
// messages (spec §6).
func (p *Process) CommandString() string { return p.exec.CommandString() }
