package engine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/a2y-d5l/cliassert/pool"
)

const (
	// scannerInitialBufferSize is the initial buffer size for the line
	// scanner, carried from the teacher's streamReader.
	scannerInitialBufferSize = 64 * 1024

	// scannerMaxBufferSize is the maximum buffer size for the line
	// scanner.
	scannerMaxBufferSize = 1024 * 1024
)

// countingReader wraps an io.Reader to track total bytes read, independent
// of downstream line decoding (spec §4.1: "Counts bytes read (post-decode
// byte count ≡ total bytes drained from the pipe, regardless of
// encoding)").
type countingReader struct {
	r       io.Reader
	counter *byteCounter
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.counter.add(n)
	}
	return n, err
}

// consumer is C5 Stream Consumer: reads a pipe as UTF-8, splits into
// lines, and fans out to capture, assertions, awaiters, an optional log
// sink, and an optional redirect sink.
type consumer struct {
	tag       StreamTag
	reader    io.ReadCloser
	cfg       StreamConfig
	cap       *capture
	bytes     *byteCounter
	collector *failureCollector

	cancelled    atomic.Bool
	done         chan struct{}
	redirectFile *os.File // opened internally for RedirectPath; closed at loop exit
}

func newConsumer(tag StreamTag, r io.ReadCloser, cfg StreamConfig, collector *failureCollector) *consumer {
	return &consumer{
		tag:       tag,
		reader:    r,
		cfg:       cfg,
		cap:       newCapture(cfg.Capture),
		bytes:     &byteCounter{},
		collector: collector,
		done:      make(chan struct{}),
	}
}

// start submits the consumer's read loop to p, named runID-<tag> so the
// process-wide pool's worker names still carry run correlation (spec
// §4.7: "this index must appear in the error messages to support
// debugging concurrent tests").
func (c *consumer) start(p pool.Pool, runID string) pool.Handle {
	c.collector.setCapturePrinter(c.tag, func() string { return c.cap.render(c.tag) })
	return p.Submit(runID+"-"+c.tag.String(), func() {
		defer close(c.done)
		c.run()
	})
}

// cancel marks the consumer cancelled and closes the underlying source,
// causing the read loop to return promptly (spec §4.1).
func (c *consumer) cancel() {
	c.cancelled.Store(true)
	_ = c.reader.Close()
}

// join blocks until the read loop exits.
func (c *consumer) join() { <-c.done }

func (c *consumer) run() {
	if c.cfg.RedirectPath != "" && c.cfg.Redirect == nil {
		f, err := os.Create(c.cfg.RedirectPath)
		if err != nil {
			c.collector.addException(c.tag, fmt.Errorf("open redirect %q: %w", c.cfg.RedirectPath, err))
		} else {
			c.redirectFile = f
			defer f.Close()
		}
	}

	wrapped := &countingReader{r: c.reader, counter: c.bytes}

	if c.cfg.Null {
		c.drainOnly(wrapped)
		return
	}

	scanner := bufio.NewScanner(wrapped)
	buf := make([]byte, 0, scannerInitialBufferSize)
	scanner.Buffer(buf, scannerMaxBufferSize)

	for scanner.Scan() {
		line := scanner.Text()
		c.dispatch(line)
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !c.cancelled.Load() {
		c.collector.addException(c.tag, fmt.Errorf("stream read: %w", err))
	}

	c.finalize()
}

func (c *consumer) drainOnly(r io.Reader) {
	_, err := io.Copy(io.Discard, r)
	if err != nil && !c.cancelled.Load() {
		c.collector.addException(c.tag, fmt.Errorf("stream drain: %w", err))
	}
}

// dispatch fans one line out to capture, assertions, awaiters, the log
// consumer, the redirect sink, and the live observer hook. Every
// assertion/awaiter is always reached even if an earlier one panics
// (spec §4.1: "MUST propagate every decoded line to assertions even if a
// later assertion throws; exceptions are captured and reported, never
// re-thrown from the loop").
func (c *consumer) dispatch(line string) {
	c.cap.add(line)

	for _, a := range c.cfg.Assertions {
		c.safeLine(a, line)
	}
	for _, a := range c.cfg.Awaiters {
		a.accept(line)
	}
	if c.cfg.OnLine != nil {
		c.cfg.OnLine(line)
	}
	if sink := c.redirectSink(); sink != nil {
		_, _ = sink.Write([]byte(line + "\n"))
	}
}

func (c *consumer) redirectSink() RedirectSink {
	if c.cfg.Redirect != nil {
		return c.cfg.Redirect
	}
	return c.redirectFile
}

func (c *consumer) safeLine(a LineAssertion, line string) {
	defer func() {
		if r := recover(); r != nil {
			c.collector.addException(c.tag, fmt.Errorf("assertion panic: %v", r))
		}
	}()
	a.line(line)
}

func (c *consumer) safeEvaluate(a LineAssertion) {
	defer func() {
		if r := recover(); r != nil {
			c.collector.addException(c.tag, fmt.Errorf("assertion panic: %v", r))
		}
	}()
	a.evaluate(c.tag, c.collector)
}

// finalize runs every assertion's evaluate and completes any awaiter that
// never matched, reflecting that the stream has ended.
func (c *consumer) finalize() {
	for _, a := range c.cfg.Assertions {
		c.safeEvaluate(a)
	}
	for _, a := range c.cfg.Awaiters {
		a.closeStream()
	}
	if c.cfg.ByteCount != nil {
		if got := c.bytes.get(); got != c.cfg.ByteCount.Expected {
			c.collector.addFailure(c.tag, fmt.Sprintf("expected %d bytes but observed %d", c.cfg.ByteCount.Expected, got))
		}
	}
}
