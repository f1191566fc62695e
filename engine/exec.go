package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	gopsprocess "github.com/shirou/gopsutil/v3/process"
)

// DefaultCommandFactory creates real os/exec commands for process
// execution. This is the production implementation of CommandFactory,
// adapted from the teacher's identically named function: it builds argv
// from the resolved executable and config.Args, wires env/dir/stderr-merge,
// and wraps the result to implement Command/ProcessHandle.
func DefaultCommandFactory(ctx context.Context, cfg CommandConfig) (Command, error) {
	if cfg.Executable == nil {
		return nil, errors.New("executable not specified")
	}
	path, err := cfg.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	if path == "" {
		return nil, errors.New("executable not specified")
	}

	cmd := exec.CommandContext(ctx, path, cfg.Args...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		env := os.Environ()
		for _, e := range cfg.Env {
			env = append(env, e.Name+"="+e.Value)
		}
		cmd.Env = env
	}

	return &execCommand{cmd: cmd, mergeStderr: cfg.MergeStderrIntoStdout}, nil
}

// execCommand wraps exec.Cmd to implement the Command interface, adapted
// from the teacher's execCommand/execCmdWrapper.
type execCommand struct {
	cmd         *exec.Cmd
	mergeStderr bool
}

func (e *execCommand) StdinPipe() (io.WriteCloser, error) { return e.cmd.StdinPipe() }
func (e *execCommand) StdoutPipe() (io.ReadCloser, error) { return e.cmd.StdoutPipe() }

func (e *execCommand) StderrPipe() (io.ReadCloser, error) {
	if e.mergeStderr {
		return nil, errors.New("stderr is merged into stdout")
	}
	return e.cmd.StderrPipe()
}

// Start begins execution. When mergeStderr is set, stdout's pipe must
// already have been wired via StdoutPipe before calling Start; the same
// underlying *os.File write end is then reused for stderr, which os/exec
// supports natively (spec §4.8 step 2 / §6 "[2>&1]").
func (e *execCommand) Start() error {
	if e.mergeStderr {
		e.cmd.Stderr = e.cmd.Stdout
	}
	return e.cmd.Start()
}

func (e *execCommand) Wait() error {
	if e.cmd == nil {
		return errors.New("command not started")
	}
	return e.cmd.Wait()
}

func (e *execCommand) Process() ProcessHandle {
	if e.cmd.Process == nil {
		return nil
	}
	return &processWrapper{Process: e.cmd.Process}
}

// processWrapper wraps os.Process to implement ProcessHandle, adding
// descendant enumeration via gopsutil (spec §4.6.8, §9: "descendant kill is
// host-dependent... MUST log a warning and fall back to killing the direct
// child only").
type processWrapper struct {
	*os.Process
}

func (p *processWrapper) Pid() int {
	if p == nil || p.Process == nil {
		return -1
	}
	return p.Process.Pid
}

func (p *processWrapper) Signal(sig syscall.Signal) error {
	return p.Process.Signal(sig)
}

func (p *processWrapper) Kill() error {
	return p.Process.Kill()
}

func (p *processWrapper) Descendants() ([]int, error) {
	proc, err := gopsprocess.NewProcess(int32(p.Pid()))
	if err != nil {
		return nil, fmt.Errorf("gopsutil: open process %d: %w", p.Pid(), err)
	}
	children, err := proc.Children()
	if err != nil {
		return nil, fmt.Errorf("gopsutil: enumerate children of %d: %w", p.Pid(), err)
	}
	pids := make([]int, 0, len(children))
	for _, c := range children {
		pids = append(pids, int(c.Pid))
	}
	return pids, nil
}
