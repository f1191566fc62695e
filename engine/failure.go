package engine

import (
	"fmt"
	"strings"
	"sync"
)

// failureBucket holds the failures and exceptions attributed to one stream
// tag, plus an optional closure that renders that stream's capture block
// (spec §3 "Failure collector": map {null, stdout, stderr} → (failures,
// exceptions, capture_printer)).
type failureBucket struct {
	failures           []string
	exceptions         []string
	renderCaptureBlock func() string
}

// failureCollector is C1: an ordered multi-bucket container from which the
// aggregated error text is rendered (spec §6). Buckets are appended to
// from multiple goroutines only during the final evaluation phase, never
// during streaming (spec §5).
type failureCollector struct {
	mu      sync.Mutex
	buckets map[StreamTag]*failureBucket
}

func newFailureCollector() *failureCollector {
	return &failureCollector{buckets: make(map[StreamTag]*failureBucket)}
}

func (c *failureCollector) bucket(tag StreamTag) *failureBucket {
	b, ok := c.buckets[tag]
	if !ok {
		b = &failureBucket{}
		c.buckets[tag] = b
	}
	return b
}

// addFailure records an assertion failure under tag.
func (c *failureCollector) addFailure(tag StreamTag, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bucket(tag).failures = append(c.bucket(tag).failures, message)
}

// addException records a worker/spawn/stdin-callback exception under tag.
func (c *failureCollector) addException(tag StreamTag, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bucket(tag).exceptions = append(c.bucket(tag).exceptions, err.Error())
}

// setCapturePrinter registers the closure that renders tag's capture block,
// used only if that bucket ends up with at least one failure (spec §6:
// "The capture block is appended only if that bucket produced at least one
// failure").
func (c *failureCollector) setCapturePrinter(tag StreamTag, render func() string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bucket(tag).renderCaptureBlock = render
}

// empty reports whether no exceptions or failures were ever recorded.
func (c *failureCollector) empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.buckets {
		if len(b.failures) > 0 || len(b.exceptions) > 0 {
			return false
		}
	}
	return true
}

// render produces the aggregated failure message (spec §6), or nil if
// nothing failed. This method is idempotent and pure: it only reads
// already-collected state (spec §8).
func (c *failureCollector) render(commandString string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	totalExceptions, totalFailures := 0, 0
	for _, b := range c.buckets {
		totalExceptions += len(b.exceptions)
		totalFailures += len(b.failures)
	}
	if totalExceptions == 0 && totalFailures == 0 {
		return nil
	}

	var header []string
	if totalExceptions > 0 {
		header = append(header, fmt.Sprintf("%d exceptions", totalExceptions))
	}
	if totalFailures > 0 {
		header = append(header, fmt.Sprintf("%d assertion failures", totalFailures))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s occurred while executing\n\n    %s\n", strings.Join(header, " and "), commandString)

	exceptionIdx, failureIdx := 0, 0
	for _, tag := range []StreamTag{StreamNone, StreamStdout, StreamStderr} {
		bucket, ok := c.buckets[tag]
		if !ok {
			continue
		}
		for _, exc := range bucket.exceptions {
			exceptionIdx++
			fmt.Fprintf(&b, "\nException %d/%d: %s", exceptionIdx, totalExceptions, exc)
		}
		for _, fail := range bucket.failures {
			failureIdx++
			fmt.Fprintf(&b, "\nFailure %d/%d: %s", failureIdx, totalFailures, fail)
		}
		if len(bucket.failures) > 0 && bucket.renderCaptureBlock != nil {
			fmt.Fprintf(&b, "\n%s\n", bucket.renderCaptureBlock())
		}
	}

	return errAggregated{message: strings.TrimRight(b.String(), "\n")}
}

// errAggregated wraps the rendered §6 message as an error.
type errAggregated struct{ message string }

func (e errAggregated) Error() string { return e.message }
