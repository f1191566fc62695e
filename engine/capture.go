package engine

import (
	"fmt"
	"strings"
	"sync"
)

// capture is a bounded ring that keeps the first maxHead and last maxTail
// lines of a stream for failure reporting (spec §3/§4.2 C2 Output
// Capture). maxHead/maxTail of -1 means unbounded; 0 means none.
//
// Rendering is deterministic and includes an "N lines omitted" marker iff
// totalLines exceeds the number of lines actually stored.
type capture struct {
	mu       sync.Mutex
	maxHead  int
	maxTail  int
	head     []string
	tail     []string // ring buffer, oldest-first once full
	tailHead int       // index of the oldest entry in tail, when full
	total    int
}

func newCapture(policy CapturePolicy) *capture {
	return &capture{maxHead: policy.MaxHead, maxTail: policy.MaxTail}
}

// add records one more line. Safe for concurrent use, though in practice
// only the owning stream consumer goroutine calls it (spec §5 "Each
// consumer's Capture is mutated only by its own worker").
func (c *capture) add(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++

	if c.maxHead != 0 && (c.maxHead < 0 || len(c.head) < c.maxHead) {
		c.head = append(c.head, line)
		return
	}

	if c.maxTail == 0 {
		return
	}
	if c.maxTail < 0 {
		c.tail = append(c.tail, line)
		return
	}
	if len(c.tail) < c.maxTail {
		c.tail = append(c.tail, line)
		return
	}
	// Tail ring is full: overwrite the oldest slot.
	c.tail[c.tailHead] = line
	c.tailHead = (c.tailHead + 1) % c.maxTail
}

// lines returns the stored head and tail lines in stream order, along with
// the number of lines omitted between them.
func (c *capture) lines() (head, tail []string, omitted int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	head = append([]string{}, c.head...)

	if len(c.tail) == 0 {
		return head, nil, c.total - len(head)
	}
	if c.maxTail < 0 || len(c.tail) < c.maxTail {
		tail = append([]string{}, c.tail...)
	} else {
		tail = make([]string, 0, len(c.tail))
		for i := 0; i < len(c.tail); i++ {
			tail = append(tail, c.tail[(c.tailHead+i)%len(c.tail)])
		}
	}
	return head, tail, c.total - len(head) - len(tail)
}

// render produces the capture block used in the aggregated failure message
// (spec §6/§8):
//   - no lines at all:          "<stream>: <no output>"
//   - (0,0) policy, some lines: "<stream>: <no lines captured>"
//   - otherwise: head lines, an omitted-lines marker if any lines were
//     dropped, then tail lines.
//
// The omitted-lines marker reproduces the literal "capure" typo from the
// original tool's error text, per spec §6/§9 open question (b): treated
// here as a deliberate compatibility quirk, not a bug.
func (c *capture) render(tag StreamTag) string {
	head, tail, omitted := c.lines()
	streamName := tag.String()

	if c.total == 0 {
		return fmt.Sprintf("%s: <no output>", streamName)
	}
	if c.maxHead == 0 && c.maxTail == 0 {
		return fmt.Sprintf("%s: <no lines captured>", streamName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", streamName)
	for _, l := range head {
		fmt.Fprintf(&b, "    %s\n", l)
	}
	if omitted > 0 {
		fmt.Fprintf(&b, "    [%d lines omitted; set %s().capture(maxHeadLines, maxTailLines) or %s().captureAll() to capure more lines]\n",
			omitted, streamName, streamName)
	}
	for _, l := range tail {
		fmt.Fprintf(&b, "    %s\n", l)
	}
	return strings.TrimRight(b.String(), "\n")
}

// byteCounter tracks total bytes drained from a pipe independent of line
// decoding (spec §4.1: "post-decode byte count ≡ total bytes drained from
// the pipe, regardless of encoding").
type byteCounter struct {
	mu    sync.Mutex
	total int
}

func (b *byteCounter) add(n int) {
	b.mu.Lock()
	b.total += n
	b.mu.Unlock()
}

func (b *byteCounter) get() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}
