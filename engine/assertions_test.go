package engine

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func evalAll(lines []string, a LineAssertion) *failureCollector {
	c := newFailureCollector()
	for _, l := range lines {
		a.line(l)
	}
	a.evaluate(StreamStdout, c)
	return c
}

func TestHasLinesPassesWhenEveryLiteralSeen(t *testing.T) {
	a := NewHasLines("a", "b")
	c := evalAll([]string{"a", "x", "b"}, a)
	assert.True(t, c.empty())
}

func TestHasLinesFailsWhenALiteralMissing(t *testing.T) {
	a := NewHasLines("a", "missing")
	c := evalAll([]string{"a"}, a)
	assert.False(t, c.empty())
}

func TestDoesNotHaveLinesHighlightsWholeLine(t *testing.T) {
	a := NewDoesNotHaveLines("bad")
	c := evalAll([]string{"bad"}, a)
	err := c.render("cmd")
	assert.Contains(t, err.Error(), ">>bad<<")
}

func TestContainingSubstring(t *testing.T) {
	a := NewContaining("ell")
	c := evalAll([]string{"hello"}, a)
	assert.True(t, c.empty())
}

func TestContainingIgnoringCase(t *testing.T) {
	a := NewContainingIgnoringCase("HELLO")
	c := evalAll([]string{"say hello there"}, a)
	assert.True(t, c.empty())
}

func TestDoesNotContainHighlightsSubstring(t *testing.T) {
	a := NewDoesNotContain("bad")
	c := evalAll([]string{"this is bad news"}, a)
	err := c.render("cmd")
	assert.Contains(t, err.Error(), ">>bad<<")
}

func TestMatchingRegex(t *testing.T) {
	a := NewMatching(regexp.MustCompile(`\d+`))
	c := evalAll([]string{"value=42"}, a)
	assert.True(t, c.empty())
}

func TestDoesNotMatchRegexFails(t *testing.T) {
	a := NewDoesNotMatch(regexp.MustCompile(`\d+`))
	c := evalAll([]string{"value=42"}, a)
	assert.False(t, c.empty())
}

func TestHasLineCount(t *testing.T) {
	a := NewHasLineCount(2)
	assert.True(t, evalAll([]string{"x", "y"}, a).empty())
	assert.False(t, evalAll([]string{"x"}, a).empty())
}

func TestIsEmpty(t *testing.T) {
	a := NewIsEmpty()
	assert.True(t, evalAll(nil, a).empty())
	assert.False(t, evalAll([]string{"x"}, a).empty())
}

func TestLineCountSatisfies(t *testing.T) {
	a := NewLineCountSatisfies(func(n int) bool { return n >= 2 }, "wanted >=2, got ${actual}")
	c := evalAll([]string{"x"}, a)
	err := c.render("cmd")
	assert.Contains(t, err.Error(), "wanted >=2, got 1")
}

func TestLogAssertionAlwaysSatisfiedAndForwardsLines(t *testing.T) {
	var seen []string
	a := NewLog(func(l string) { seen = append(seen, l) })
	c := evalAll([]string{"a", "b"}, a)
	assert.True(t, c.empty())
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestLinesSatisfy(t *testing.T) {
	a := NewLinesSatisfy(func(lines []string) error {
		if len(lines) != 2 {
			return errors.New("expected exactly 2 lines")
		}
		return nil
	})
	assert.True(t, evalAll([]string{"a", "b"}, a).empty())
	assert.False(t, evalAll([]string{"a"}, a).empty())
}

func TestExpandPlaceholders(t *testing.T) {
	got := expandPlaceholders("${stream} saw ${actual}", StreamStderr, 7)
	assert.Equal(t, "stderr saw 7", got)
}
