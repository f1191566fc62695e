package engine_test

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"syscall"

	"github.com/a2y-d5l/cliassert/engine"
)

// capturingWriteCloser records everything written to it until Close, at
// which point further writes fail. Used as the stdin pipe double.
type capturingWriteCloser struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (c *capturingWriteCloser) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, errors.New("write on closed sink")
	}
	return c.buf.Write(p)
}

func (c *capturingWriteCloser) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *capturingWriteCloser) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// mockProcessHandle is a test double for engine.ProcessHandle.
type mockProcessHandle struct {
	pid int

	mu          sync.Mutex
	signalled   []syscall.Signal
	killed      bool
	descendants []int
	descendErr  error
}

func (p *mockProcessHandle) Pid() int { return p.pid }

func (p *mockProcessHandle) Signal(sig syscall.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signalled = append(p.signalled, sig)
	return nil
}

func (p *mockProcessHandle) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killed = true
	return nil
}

func (p *mockProcessHandle) Descendants() ([]int, error) { return p.descendants, p.descendErr }

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// mockCommand is a test double for engine.Command, built around io.Pipe
// so reads/writes behave like real pipes: closing the read end surfaces
// as an error to the writer, and vice versa.
type mockCommand struct {
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	mergeStderr bool
	stdin       *capturingWriteCloser

	startErr error
	waitErr  error
	waitGate chan struct{}

	process *mockProcessHandle

	mu      sync.Mutex
	started bool
}

func newMockCommand() *mockCommand {
	or, ow := io.Pipe()
	er, ew := io.Pipe()
	return &mockCommand{
		stdoutR:  or,
		stdoutW:  ow,
		stderrR:  er,
		stderrW:  ew,
		waitGate: closedChan(),
		process:  &mockProcessHandle{pid: 4242},
	}
}

func (m *mockCommand) StdinPipe() (io.WriteCloser, error) {
	m.stdin = &capturingWriteCloser{}
	return m.stdin, nil
}

func (m *mockCommand) StdoutPipe() (io.ReadCloser, error) { return m.stdoutR, nil }

func (m *mockCommand) StderrPipe() (io.ReadCloser, error) {
	if m.mergeStderr {
		return nil, errors.New("stderr is merged into stdout")
	}
	return m.stderrR, nil
}

func (m *mockCommand) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.started = true
	return nil
}

func (m *mockCommand) Wait() error {
	<-m.waitGate
	return m.waitErr
}

func (m *mockCommand) Process() engine.ProcessHandle { return m.process }

// writeLines writes each line followed by "\n" then closes the writer,
// simulating a process that emits fixed output and exits.
func writeLines(w *io.PipeWriter, lines []string) {
	go func() {
		for _, l := range lines {
			_, _ = w.Write([]byte(l + "\n"))
		}
		_ = w.Close()
	}()
}
