package engine

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/a2y-d5l/cliassert/pool"
)

// shutdownRegistry holds every live supervisor so the process-wide
// shutdown hook can kill them all on host termination (spec §4.6.5).
var (
	shutdownRegistry sync.Map // *supervisor -> struct{}
	shutdownHookOnce sync.Once
)

func registerShutdownHook(s *supervisor) {
	shutdownHookOnce.Do(func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-ch
			shutdownRegistry.Range(func(k, _ any) bool {
				sup := k.(*supervisor)
				sup.Kill(sup.cfg.AutoClose.Forcibly, sup.cfg.AutoClose.WithDescendants)
				return true
			})
		}()
	})
	shutdownRegistry.Store(s, struct{}{})
}

func unregisterShutdownHook(s *supervisor) {
	shutdownRegistry.Delete(s)
}

// supervisor is C8 Process Supervisor: spawns the child, wires the three
// pipes to the stream consumers and input producer, manages the shutdown
// hook, and implements Wait/WaitWithTimeout/Kill/Close.
//
// Invariant (spec §3): exactly one supervisor per spawn; Kill is
// idempotent; after termination the byte counts of both consumers are
// stable.
type supervisor struct {
	cmd Command
	cfg CommandConfig

	stdout *consumer
	stderr *consumer
	stdin  *inputProducer

	collector     *failureCollector
	exitAssertion *exitCodeAssertion

	pool  pool.Pool
	runID string
	log   *zap.Logger

	startedAt time.Time
	handle    ProcessHandle

	closed   atomic.Bool
	waitDone chan struct{}
	waitErr  error
	hookReg  atomic.Bool
}

func newSupervisor(cmd Command, cfg CommandConfig, collector *failureCollector, exitAssertion *exitCodeAssertion, p pool.Pool, runID string, log *zap.Logger) *supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	return &supervisor{
		cmd:           cmd,
		cfg:           cfg,
		collector:     collector,
		exitAssertion: exitAssertion,
		pool:          p,
		runID:         runID,
		log:           log,
		waitDone:      make(chan struct{}),
	}
}

// spawn wires pipes, starts consumers/producer, starts the child, and
// registers the shutdown hook (spec §4.6 steps 1-5).
func (s *supervisor) spawn() error {
	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	s.stdout = newConsumer(StreamStdout, stdout, s.cfg.Stdout, s.collector)

	if !s.cfg.MergeStderrIntoStdout {
		stderr, err := s.cmd.StderrPipe()
		if err != nil {
			return fmt.Errorf("stderr pipe: %w", err)
		}
		s.stderr = newConsumer(StreamStderr, stderr, s.cfg.Stderr, s.collector)
	}

	if s.cfg.Stdin.Kind != StdinNone {
		stdin, err := s.cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("stdin pipe: %w", err)
		}
		s.stdin = newInputProducer(stdin, s.cfg.Stdin, s.collector)
	}

	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	s.startedAt = time.Now()
	s.handle = s.cmd.Process()

	s.stdout.start(s.pool, s.runID)
	if s.stderr != nil {
		s.stderr.start(s.pool, s.runID)
	}
	if s.stdin != nil {
		s.stdin.start(s.pool, s.runID)
	}

	registerShutdownHook(s)
	s.hookReg.Store(true)

	go func() {
		s.waitErr = s.cmd.Wait()
		close(s.waitDone)
	}()

	return nil
}

// Pid returns the process ID, or -1 if unavailable (spec §4.6.4).
func (s *supervisor) Pid() int {
	if s.handle == nil {
		return -1
	}
	return s.handle.Pid()
}

// Wait blocks until the child exits and returns the final result.
func (s *supervisor) Wait(commandString string) *Result {
	<-s.waitDone
	return s.collect(commandString)
}

// WaitWithTimeout polls (via a one-shot background Wait already in flight)
// until exit or timeout elapses. On timeout, returns a result with exit
// code -1 and an attached timeout error; workers are not joined in the
// timeout branch (spec §4.6.7).
func (s *supervisor) WaitWithTimeout(commandString string, timeout time.Duration) *Result {
	select {
	case <-s.waitDone:
		return s.collect(commandString)
	case <-time.After(timeout):
		return &Result{
			CommandString: commandString,
			ExitCode:      -1,
			Duration:      time.Since(s.startedAt),
			TimeoutErr:    fmt.Errorf("command did not exit within %s", timeout),
		}
	}
}

// collect is reached only once the child has exited. It unregisters the
// shutdown hook, joins every worker, records the exit code, and returns
// the final Result (spec §4.6.7 success branch).
func (s *supervisor) collect(commandString string) *Result {
	if s.hookReg.CompareAndSwap(true, false) {
		unregisterShutdownHook(s)
	}

	s.stdout.join()
	if s.stderr != nil {
		s.stderr.join()
	}
	if s.stdin != nil {
		s.stdin.join()
	}

	exitCode := exitCodeFromErr(s.waitErr, s.collector)
	s.exitAssertion.record(exitCode)
	s.exitAssertion.evaluate(s.collector)

	return &Result{
		CommandString:   commandString,
		ExitCode:        exitCode,
		Duration:        time.Since(s.startedAt),
		ByteCountStdout: s.stdout.bytes.get(),
		ByteCountStderr: byteCountOrZero(s.stderr),
		collector:       s.collector,
	}
}

func byteCountOrZero(c *consumer) int {
	if c == nil {
		return 0
	}
	return c.bytes.get()
}

// exitCodeFromErr extracts an exit code from cmd.Wait()'s error, per
// Command.Wait's contract: nil → 0; *exec.ExitError → its code; anything
// else is an unexpected failure, recorded as an exception and reported as
// exit code -1.
func exitCodeFromErr(err error, c *failureCollector) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	c.addException(StreamNone, fmt.Errorf("wait: %w", err))
	return -1
}

// Kill cancels all workers in a fixed order (stdout, stderr, stdin), then
// destroys the process: gracefully (SIGTERM) or forcibly (SIGKILL)
// depending on forcibly; if withDescendants, destroys each PID that
// ProcessHandle.Descendants reports (for the os/exec implementation, the
// direct children only; grandchildren are not reached), best-effort (spec
// §4.6.8, §9 open question (a): forcibly=true → forced/immediate
// termination, forcibly=false → graceful/default termination). Idempotent.
func (s *supervisor) Kill(forcibly, withDescendants bool) {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	s.stdout.cancel()
	if s.stderr != nil {
		s.stderr.cancel()
	}
	if s.stdin != nil {
		s.stdin.cancel()
	}

	if s.handle == nil {
		return
	}

	var descendants []int
	if withDescendants {
		var err error
		descendants, err = s.handle.Descendants()
		if err != nil {
			s.log.Warn("failed to enumerate descendants; falling back to direct child only",
				zap.Int("pid", s.Pid()), zap.Error(err))
		}
	}

	destroy(s.handle, forcibly, s.log)

	for _, pid := range descendants {
		destroyPid(pid, forcibly, s.log)
	}
}

func destroy(h ProcessHandle, forcibly bool, log *zap.Logger) {
	var err error
	if forcibly {
		err = h.Kill()
	} else {
		err = h.Signal(syscall.SIGTERM)
	}
	if err != nil {
		log.Warn("failed to destroy process", zap.Int("pid", h.Pid()), zap.Bool("forcibly", forcibly), zap.Error(err))
	}
}

func destroyPid(pid int, forcibly bool, log *zap.Logger) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		log.Warn("failed to look up descendant process", zap.Int("pid", pid), zap.Error(err))
		return
	}
	sig := syscall.SIGTERM
	if forcibly {
		sig = syscall.SIGKILL
	}
	if err := proc.Signal(sig); err != nil {
		log.Warn("failed to destroy descendant process", zap.Int("pid", pid), zap.Error(err))
	}
}

// Close implements scope-exit cleanup: Kill using the configured
// auto-close policy, then Wait or WaitWithTimeout depending on whether a
// timeout was configured (spec §4.6.9).
func (s *supervisor) Close(commandString string) *Result {
	s.Kill(s.cfg.AutoClose.Forcibly, s.cfg.AutoClose.WithDescendants)
	if s.cfg.AutoClose.Timeout > 0 {
		return s.WaitWithTimeout(commandString, s.cfg.AutoClose.Timeout)
	}
	return s.Wait(commandString)
}
