package engine

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaptureRendersNoOutputWhenEmpty(t *testing.T) {
	c := newCapture(DefaultCapturePolicy)
	assert.Equal(t, "stdout: <no output>", c.render(StreamStdout))
}

func TestCaptureZeroZeroRendersNoLinesCapturedOnceLinesExist(t *testing.T) {
	c := newCapture(CaptureNone)
	c.add("one")
	assert.Equal(t, "stderr: <no lines captured>", c.render(StreamStderr))
}

func TestCaptureUnboundedNeverOmits(t *testing.T) {
	c := newCapture(CaptureAll)
	for i := 0; i < 500; i++ {
		c.add("line")
	}
	rendered := c.render(StreamStdout)
	assert.NotContains(t, rendered, "omitted")
}

func TestCaptureHeadTailOmitsMiddleInOrder(t *testing.T) {
	c := newCapture(CapturePolicy{MaxHead: 3, MaxTail: 3})
	for i := 1; i <= 35; i++ {
		c.add("Foo" + strconv.Itoa(i))
	}
	rendered := c.render(StreamStdout)

	assert.Contains(t, rendered, "Foo1")
	assert.Contains(t, rendered, "Foo2")
	assert.Contains(t, rendered, "Foo3")
	assert.Contains(t, rendered, "29 lines omitted")
	assert.Contains(t, rendered, "capure more lines")
	assert.Contains(t, rendered, "Foo33")
	assert.Contains(t, rendered, "Foo34")
	assert.Contains(t, rendered, "Foo35")

	headIdx := strings.Index(rendered, "Foo3\n")
	tailIdx := strings.Index(rendered, "Foo33")
	assert.True(t, headIdx < tailIdx)
}

func TestByteCounterAccumulates(t *testing.T) {
	var bc byteCounter
	bc.add(3)
	bc.add(4)
	assert.Equal(t, 7, bc.get())
}

