package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/a2y-d5l/cliassert/pool"
)

// ErrStdinCancelled is returned by a StdinSink's Write/Flush once the sink
// has been cancelled (spec §4.4: "any subsequent write/flush throws a
// cancellation error").
var ErrStdinCancelled = errors.New("stdin sink cancelled")

// cancellableSink wraps a pipe writer with an atomic cancelled flag, closed
// at most once (spec §9 "Cancellable sink").
type cancellableSink struct {
	w         io.WriteCloser
	cancelled atomic.Bool
	closeOnce sync.Once
}

func newCancellableSink(w io.WriteCloser) *cancellableSink {
	return &cancellableSink{w: w}
}

func (s *cancellableSink) Write(p []byte) (int, error) {
	if s.cancelled.Load() {
		return 0, ErrStdinCancelled
	}
	return s.w.Write(p)
}

func (s *cancellableSink) Flush() error {
	if s.cancelled.Load() {
		return ErrStdinCancelled
	}
	if f, ok := s.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func (s *cancellableSink) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.w.Close() })
	return err
}

// cancel marks the sink cancelled and closes the underlying pipe,
// best-effort (spec §4.4).
func (s *cancellableSink) cancel() {
	s.cancelled.Store(true)
	_ = s.Close()
}

// inputProducer is C6: runs the user callback on a worker, passing a
// cancellable byte sink that wraps the child's stdin pipe.
type inputProducer struct {
	sink      *cancellableSink
	src       StdinSource
	collector *failureCollector
	done      chan struct{}
}

func newInputProducer(w io.WriteCloser, src StdinSource, collector *failureCollector) *inputProducer {
	return &inputProducer{sink: newCancellableSink(w), src: src, collector: collector, done: make(chan struct{})}
}

// start submits the producer's callback to p, named runID-stdin so the
// process-wide pool's worker names still carry run correlation (spec
// §4.7: "this index must appear in the error messages to support
// debugging concurrent tests").
func (p *inputProducer) start(pl pool.Pool, runID string) pool.Handle {
	return pl.Submit(runID+"-stdin", func() {
		defer close(p.done)
		p.run()
	})
}

func (p *inputProducer) run() {
	defer p.sink.Close()

	switch p.src.Kind {
	case StdinNone:
		return
	case StdinString:
		if _, err := p.sink.Write([]byte(p.src.String)); err != nil && !errors.Is(err, ErrStdinCancelled) {
			p.collector.addException(StreamNone, fmt.Errorf("write stdin: %w", err))
		}
	case StdinFile:
		f, err := os.Open(p.src.File)
		if err != nil {
			p.collector.addException(StreamNone, fmt.Errorf("open stdin file: %w", err))
			return
		}
		defer f.Close()
		if _, err := io.Copy(p.sink, f); err != nil && !errors.Is(err, ErrStdinCancelled) {
			p.collector.addException(StreamNone, fmt.Errorf("stream stdin file: %w", err))
		}
	case StdinCallback:
		p.runCallback()
	}
}

func (p *inputProducer) runCallback() {
	defer func() {
		if r := recover(); r != nil {
			p.collector.addException(StreamNone, fmt.Errorf("stdin callback panic: %v", r))
		}
	}()
	if err := p.src.Callback(p.sink); err != nil && !errors.Is(err, ErrStdinCancelled) {
		// A cancellation error seen during shutdown is dropped, so it
		// never reaches the caller of wait; all other callback errors are
		// recorded as exceptions tagged StreamNone.
		p.collector.addException(StreamNone, fmt.Errorf("stdin callback: %w", err))
	}
}

// cancel cancels the producer's sink. Safe to call multiple times.
func (p *inputProducer) cancel() { p.sink.cancel() }

// join blocks until the producer's callback has returned.
func (p *inputProducer) join() { <-p.done }
