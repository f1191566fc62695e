package cliassert

import (
	"io"
	"regexp"

	"github.com/a2y-d5l/cliassert/engine"
)

// StreamExpect is the fluent builder for one output stream's assertions,
// awaiters, capture policy, and side-channel observers (spec §3 "Stream
// configuration", §4.2 C3 Line Assertions, §4.3 C4 Line Awaiter). Every
// method mutates the owning Command's engine.StreamConfig in place and
// returns the same *StreamExpect, so calls chain directly off
// Command.Stdout()/Command.Stderr(); Done returns to the parent Command to
// continue configuring it.
type StreamExpect struct {
	parent *Command
	cfg    *engine.StreamConfig
}

// Done returns to the Command that produced this stream builder, so a
// chain can move on to configuring the other stream or calling Execute.
func (s *StreamExpect) Done() *Command { return s.parent }

// HasLines asserts every literal in expected appears as a whole line at
// least once, in any order (spec §4.2 "whole-line match").
func (s *StreamExpect) HasLines(expected ...string) *StreamExpect {
	return s.add(engine.NewHasLines(expected...))
}

// DoesNotHaveLines asserts no literal in expected ever appears as a whole
// line.
func (s *StreamExpect) DoesNotHaveLines(expected ...string) *StreamExpect {
	return s.add(engine.NewDoesNotHaveLines(expected...))
}

// Containing asserts every substring in expected appears in at least one
// line (spec §4.2 "substring").
func (s *StreamExpect) Containing(expected ...string) *StreamExpect {
	return s.add(engine.NewContaining(expected...))
}

// DoesNotContain asserts no substring in expected ever appears in any
// line.
func (s *StreamExpect) DoesNotContain(expected ...string) *StreamExpect {
	return s.add(engine.NewDoesNotContain(expected...))
}

// ContainingIgnoringCase is case-folded Containing (spec §4.2 "substring
// case-insensitive").
func (s *StreamExpect) ContainingIgnoringCase(expected ...string) *StreamExpect {
	return s.add(engine.NewContainingIgnoringCase(expected...))
}

// DoesNotContainIgnoringCase is case-folded DoesNotContain.
func (s *StreamExpect) DoesNotContainIgnoringCase(expected ...string) *StreamExpect {
	return s.add(engine.NewDoesNotContainIgnoringCase(expected...))
}

// Matching asserts every pattern finds (partial match, not anchored) in at
// least one line (spec §4.2 "regex").
func (s *StreamExpect) Matching(patterns ...*regexp.Regexp) *StreamExpect {
	return s.add(engine.NewMatching(patterns...))
}

// MatchingString compiles each pattern before delegating to Matching, the
// convenience for the common case of passing string patterns directly
// (spec §4.2 table: "regex (string or compiled pattern)").
func (s *StreamExpect) MatchingString(patterns ...string) *StreamExpect {
	return s.add(engine.NewMatching(compileAll(patterns)...))
}

// DoesNotMatch asserts no pattern ever finds a match in any line.
func (s *StreamExpect) DoesNotMatch(patterns ...*regexp.Regexp) *StreamExpect {
	return s.add(engine.NewDoesNotMatch(patterns...))
}

// DoesNotMatchString is the MatchingString convenience for DoesNotMatch.
func (s *StreamExpect) DoesNotMatchString(patterns ...string) *StreamExpect {
	return s.add(engine.NewDoesNotMatch(compileAll(patterns)...))
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// HasLineCount asserts exactly n lines were observed (spec §4.2 "line
// count equals N").
func (s *StreamExpect) HasLineCount(n int) *StreamExpect {
	return s.add(engine.NewHasLineCount(n))
}

// LineCountSatisfies asserts predicate(count) holds once the stream has
// closed; message may reference ${actual} (spec §4.2 "line count
// predicate").
func (s *StreamExpect) LineCountSatisfies(predicate func(int) bool, message string) *StreamExpect {
	return s.add(engine.NewLineCountSatisfies(predicate, message))
}

// IsEmpty asserts zero lines were observed (spec §4.2 "no lines"; §6
// "isEmpty()").
func (s *StreamExpect) IsEmpty() *StreamExpect {
	return s.add(engine.NewIsEmpty())
}

// LinesSatisfy asserts an arbitrary predicate over the full ordered slice
// of observed lines, evaluated once the stream closes (spec §6
// "linesSatisfy").
func (s *StreamExpect) LinesSatisfy(predicate func([]string) error) *StreamExpect {
	return s.add(engine.NewLinesSatisfy(predicate))
}

// Log forwards every line to callback as a side effect; it never fails the
// stream's assertions (spec §4.2 "line-callback (log)"; §6 "log").
func (s *StreamExpect) Log(callback func(line string)) *StreamExpect {
	return s.add(engine.NewLog(callback))
}

// Satisfies registers an engine.LineAssertion directly. LineAssertion's
// methods are unexported, so the value is always one built by a package
// engine constructor (e.g. engine.NewLinesSatisfy).
func (s *StreamExpect) Satisfies(assertion engine.LineAssertion) *StreamExpect {
	return s.add(assertion)
}

func (s *StreamExpect) add(a engine.LineAssertion) *StreamExpect {
	s.cfg.Assertions = append(s.cfg.Assertions, a)
	return s
}

// HasByteCount asserts the stream's total byte count equals n (spec §6
// "hasByteCount").
func (s *StreamExpect) HasByteCount(n int) *StreamExpect {
	s.cfg.ByteCount = &engine.ByteCountAssertion{Expected: n}
	return s
}

// Redirect writes every raw line plus a trailing "\n" to sink in addition
// to line-based processing. sink is never closed by the engine (spec
// §4.1; §6 "redirect").
func (s *StreamExpect) Redirect(sink io.Writer) *StreamExpect {
	s.cfg.Redirect = sink
	return s
}

// RedirectToFile opens path internally and writes every raw line to it,
// closing it at consumer loop exit (spec §4.1).
func (s *StreamExpect) RedirectToFile(path string) *StreamExpect {
	s.cfg.RedirectPath = path
	return s
}

// OnLine registers a pure side-channel observer called with every line as
// it arrives, distinct from Log in that it carries no pass/fail semantics
// (SPEC_FULL.md §4 "live observer hook").
func (s *StreamExpect) OnLine(fn func(line string)) *StreamExpect {
	s.cfg.OnLine = fn
	return s
}

// Capture bounds how many lines are retained for failure rendering:
// maxHead first lines and maxTail last lines. -1 means unbounded; 0 means
// none (spec §3; §6 "capture(h,t)").
func (s *StreamExpect) Capture(maxHead, maxTail int) *StreamExpect {
	s.cfg.Capture = engine.CapturePolicy{MaxHead: maxHead, MaxTail: maxTail}
	return s
}

// CaptureAll disables the capture bound entirely (spec §6 "captureAll()").
func (s *StreamExpect) CaptureAll() *StreamExpect {
	s.cfg.Capture = engine.CaptureAll
	return s
}

// Charset sets the character encoding used to decode the stream. Only
// "utf-8" is currently supported (spec §3 "character encoding (default
// UTF-8)"); the method exists so alternative decoders can be plugged in
// later without an API break (spec §6 "charset").
func (s *StreamExpect) Charset(name string) *StreamExpect {
	s.cfg.Encoding = name
	return s
}

// Null configures this stream as "/dev/null": bytes are drained and
// counted but never decoded into lines, and no assertions may be
// registered (spec §4.1).
func (s *StreamExpect) Null() *StreamExpect {
	s.cfg.Null = true
	return s
}

// Await registers a one-shot line awaiter completed by the first line for
// which predicate holds, mapped through mapper (spec §4.3 C4 Line
// Awaiter). The returned handle's Await method blocks the caller until a
// match arrives or its own timeout expires.
func (s *StreamExpect) Await(description string, predicate func(string) bool, mapper func(string) (any, error)) *engine.LineAwaiterHandle {
	h := engine.NewLineAwaiter(description, predicate, mapper)
	s.cfg.Awaiters = append(s.cfg.Awaiters, h)
	return h
}

// AwaitMatching is the pattern-with-groups convenience from spec §4.3: if
// pattern has at least one capturing group, the default mapper extracts
// the first group; otherwise it is identity.
func (s *StreamExpect) AwaitMatching(description string, pattern *regexp.Regexp) *engine.LineAwaiterHandle {
	h := engine.NewRegexAwaiter(description, pattern)
	s.cfg.Awaiters = append(s.cfg.Awaiters, h)
	return h
}
