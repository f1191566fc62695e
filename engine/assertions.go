package engine

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// LineAssertion is a stateful per-line predicate (spec §4.2 C3 Line
// Assertions). line is called once per line during streaming; evaluate is
// called once after join to report failures into the collector.
//
// Both methods are unexported, so only this package's own assertion types
// implement it; types outside package engine cannot. Arbitrary logic over
// a stream's lines is available through NewLinesSatisfy and NewLog.
type LineAssertion interface {
	line(s string)
	evaluate(tag StreamTag, c *failureCollector)
}

// --- whole-line / substring / substring-ci / regex: positive and negative ---

type matchKind int

const (
	kindWholeLine matchKind = iota
	kindSubstring
	kindSubstringFold
	kindRegex
)

// literalMatchAssertion backs HasLines/DoesNotHaveLines, Containing,
// ContainingIgnoringCase, and Matching (spec §4.2 table rows 1-4).
type literalMatchAssertion struct {
	mu       sync.Mutex
	kind     matchKind
	negative bool
	patterns []string
	regexes  []*regexp.Regexp // parallel to patterns, only for kindRegex
	seenBy   []bool           // parallel to patterns: matched by >=1 line
	offenses []string         // negative mode: offending lines, highlighted
}

// NewHasLines returns an assertion requiring every literal in expected to
// appear as a whole line at least once.
func NewHasLines(expected ...string) LineAssertion {
	return newLiteralMatch(kindWholeLine, false, expected)
}

// NewDoesNotHaveLines returns an assertion requiring that no literal in
// expected ever appears as a whole line.
func NewDoesNotHaveLines(expected ...string) LineAssertion {
	return newLiteralMatch(kindWholeLine, true, expected)
}

// NewContaining returns an assertion requiring every substring in expected
// to appear in at least one line.
func NewContaining(expected ...string) LineAssertion {
	return newLiteralMatch(kindSubstring, false, expected)
}

// NewDoesNotContain returns an assertion requiring that no substring in
// expected ever appears in any line.
func NewDoesNotContain(expected ...string) LineAssertion {
	return newLiteralMatch(kindSubstring, true, expected)
}

// NewContainingIgnoringCase is case-folded NewContaining.
func NewContainingIgnoringCase(expected ...string) LineAssertion {
	return newLiteralMatch(kindSubstringFold, false, expected)
}

// NewDoesNotContainIgnoringCase is case-folded NewDoesNotContain.
func NewDoesNotContainIgnoringCase(expected ...string) LineAssertion {
	return newLiteralMatch(kindSubstringFold, true, expected)
}

// NewMatching returns an assertion requiring every pattern to Find
// (partial match, not anchored) in at least one line.
func NewMatching(patterns ...*regexp.Regexp) LineAssertion {
	a := newLiteralMatch(kindRegex, false, nil)
	a.regexes = patterns
	a.patterns = make([]string, len(patterns))
	for i, p := range patterns {
		a.patterns[i] = p.String()
	}
	a.seenBy = make([]bool, len(patterns))
	return a
}

// NewDoesNotMatch returns an assertion requiring that no pattern ever
// finds a match in any line.
func NewDoesNotMatch(patterns ...*regexp.Regexp) LineAssertion {
	a := newLiteralMatch(kindRegex, true, nil)
	a.regexes = patterns
	a.patterns = make([]string, len(patterns))
	for i, p := range patterns {
		a.patterns[i] = p.String()
	}
	a.seenBy = make([]bool, len(patterns))
	return a
}

func newLiteralMatch(kind matchKind, negative bool, expected []string) *literalMatchAssertion {
	return &literalMatchAssertion{
		kind:     kind,
		negative: negative,
		patterns: append([]string{}, expected...),
		seenBy:   make([]bool, len(expected)),
	}
}

func (a *literalMatchAssertion) matches(i int, line string) bool {
	switch a.kind {
	case kindWholeLine:
		return line == a.patterns[i]
	case kindSubstring:
		return strings.Contains(line, a.patterns[i])
	case kindSubstringFold:
		return strings.Contains(strings.ToLower(line), strings.ToLower(a.patterns[i]))
	case kindRegex:
		return a.regexes[i].FindStringIndex(line) != nil
	default:
		return false
	}
}

// highlight returns line with the offending substring wrapped in >>...<<
// (spec §4.2 "quote the specific offending lines with a >>match<< inline
// highlight"). Whole-line variants highlight the entire line.
func (a *literalMatchAssertion) highlight(i int, line string) string {
	switch a.kind {
	case kindWholeLine:
		return fmt.Sprintf(">>%s<<", line)
	case kindSubstring:
		idx := strings.Index(line, a.patterns[i])
		if idx < 0 {
			return line
		}
		return line[:idx] + ">>" + a.patterns[i] + "<<" + line[idx+len(a.patterns[i]):]
	case kindSubstringFold:
		idx := strings.Index(strings.ToLower(line), strings.ToLower(a.patterns[i]))
		if idx < 0 {
			return line
		}
		return line[:idx] + ">>" + line[idx:idx+len(a.patterns[i])] + "<<" + line[idx+len(a.patterns[i]):]
	case kindRegex:
		loc := a.regexes[i].FindStringIndex(line)
		if loc == nil {
			return line
		}
		return line[:loc[0]] + ">>" + line[loc[0]:loc[1]] + "<<" + line[loc[1]:]
	default:
		return line
	}
}

func (a *literalMatchAssertion) line(s string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.patterns {
		if a.matches(i, s) {
			if a.negative {
				a.offenses = append(a.offenses, a.highlight(i, s))
			} else {
				a.seenBy[i] = true
			}
		}
	}
}

func (a *literalMatchAssertion) evaluate(tag StreamTag, c *failureCollector) {
	a.mu.Lock()
	defer a.mu.Unlock()

	verb := a.verbPhrase()
	if a.negative {
		for _, offense := range a.offenses {
			c.addFailure(tag, fmt.Sprintf("expected no line to %s but found: %s", verb, offense))
		}
		return
	}
	for i, seen := range a.seenBy {
		if !seen {
			c.addFailure(tag, fmt.Sprintf("expected a line to %s %q but none did", verb, a.patterns[i]))
		}
	}
}

func (a *literalMatchAssertion) verbPhrase() string {
	switch a.kind {
	case kindWholeLine:
		return "equal"
	case kindSubstring:
		return "contain"
	case kindSubstringFold:
		return "contain (ignoring case)"
	case kindRegex:
		return "match"
	default:
		return "satisfy"
	}
}

// --- line count ---

// countAssertion backs HasLineCount and IsEmpty (count == 0).
type countAssertion struct {
	mu       sync.Mutex
	count    int
	expected int
}

// NewHasLineCount returns an assertion requiring exactly n lines observed.
func NewHasLineCount(n int) LineAssertion {
	return &countAssertion{expected: n}
}

// NewIsEmpty returns an assertion requiring zero lines observed.
func NewIsEmpty() LineAssertion {
	return &countAssertion{expected: 0}
}

func (a *countAssertion) line(string) {
	a.mu.Lock()
	a.count++
	a.mu.Unlock()
}

func (a *countAssertion) evaluate(tag StreamTag, c *failureCollector) {
	a.mu.Lock()
	count := a.count
	a.mu.Unlock()
	if count != a.expected {
		c.addFailure(tag, fmt.Sprintf("expected %d lines but observed %d", a.expected, count))
	}
}

// --- line count predicate ---

// countPredicateAssertion backs LineCountSatisfies.
type countPredicateAssertion struct {
	mu        sync.Mutex
	count     int
	predicate func(int) bool
	message   string
}

// NewLineCountSatisfies returns an assertion requiring predicate(count) to
// hold once the stream has closed. message is used verbatim in the
// failure, with "${actual}" replaced by the observed count.
func NewLineCountSatisfies(predicate func(int) bool, message string) LineAssertion {
	return &countPredicateAssertion{predicate: predicate, message: message}
}

func (a *countPredicateAssertion) line(string) {
	a.mu.Lock()
	a.count++
	a.mu.Unlock()
}

func (a *countPredicateAssertion) evaluate(tag StreamTag, c *failureCollector) {
	a.mu.Lock()
	count := a.count
	a.mu.Unlock()
	if !a.predicate(count) {
		msg := expandPlaceholders(a.message, tag, count)
		c.addFailure(tag, msg)
	}
}

// --- log (side-effect only, always satisfied) ---

// logAssertion calls a user callback per line; it never fails.
type logAssertion struct {
	callback func(line string)
}

// NewLog returns a LineAssertion that forwards every line to callback and
// is otherwise always satisfied.
func NewLog(callback func(line string)) LineAssertion {
	return &logAssertion{callback: callback}
}

func (a *logAssertion) line(s string) {
	if a.callback != nil {
		a.callback(s)
	}
}

func (*logAssertion) evaluate(StreamTag, *failureCollector) {}

// --- linesSatisfy: arbitrary predicate over the full accumulated slice ---

// satisfiesAssertion accumulates every line and, at evaluation time, checks
// an arbitrary predicate over the whole slice. Backs the "linesSatisfy"
// configuration option (spec §6).
type satisfiesAssertion struct {
	mu        sync.Mutex
	lines     []string
	predicate func([]string) error
}

// NewLinesSatisfy returns an assertion that, at evaluation time, passes the
// full ordered slice of observed lines to predicate; a non-nil return value
// is reported as a failure.
func NewLinesSatisfy(predicate func([]string) error) LineAssertion {
	return &satisfiesAssertion{predicate: predicate}
}

func (a *satisfiesAssertion) line(s string) {
	a.mu.Lock()
	a.lines = append(a.lines, s)
	a.mu.Unlock()
}

func (a *satisfiesAssertion) evaluate(tag StreamTag, c *failureCollector) {
	a.mu.Lock()
	lines := append([]string{}, a.lines...)
	a.mu.Unlock()
	if err := a.predicate(lines); err != nil {
		c.addFailure(tag, err.Error())
	}
}

// expandPlaceholders implements the §6 placeholder expansion rules:
// ${stream} → stdout/stderr, ${actual} → the actual value.
func expandPlaceholders(template string, tag StreamTag, actual int) string {
	r := strings.NewReplacer(
		"${stream}", tag.String(),
		"${actual}", fmt.Sprintf("%d", actual),
	)
	return r.Replace(template)
}
