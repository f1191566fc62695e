package engine

import (
	"errors"
	"time"
)

// errNotTimedOut is returned by Result.AssertTimeout when the run completed
// normally instead of timing out.
var errNotTimedOut = errors.New("command did not time out")

// ExecutableResolver yields the path of the executable to run. It is late
// binding: spec §3 allows either a literal path or a "late-binding lookup
// of the host runtime" (e.g. resolve "node" via PATH at Start time).
type ExecutableResolver func() (string, error)

// LiteralExecutable returns an ExecutableResolver that always yields path.
func LiteralExecutable(path string) ExecutableResolver {
	return func() (string, error) { return path, nil }
}

// EnvVar is one insertion-ordered environment overlay entry (spec §3:
// "insertion-ordered mapping of name→value").
type EnvVar struct {
	Name  string
	Value string
}

// CommandConfig is the immutable command configuration consumed once by the
// engine at Start (spec §3 "Command configuration"). All With* methods
// return a new value; the receiver is never mutated.
type CommandConfig struct {
	Executable ExecutableResolver
	Args       []string
	Env        []EnvVar
	Dir        string

	// MergeStderrIntoStdout routes the child's stderr into the stdout
	// pipe instead of a separate one.
	MergeStderrIntoStdout bool

	Stdin StdinSource

	Stdout StreamConfig
	Stderr StreamConfig

	ExitCode *exitCodeAssertion

	AutoClose AutoClosePolicy

	// LocalPool, if set, requests a fresh per-command worker pool instead
	// of the process-wide one (spec §4.7 "per-command local pool").
	LocalPool *LocalPoolSpec
}

// LocalPoolSpec configures a fresh, disposable worker pool for one
// command's I/O workers.
type LocalPoolSpec struct {
	MaxSize   int
	KeepAlive time.Duration
}

// StreamConfig configures how one output stream is consumed (spec §3
// "Stream configuration").
type StreamConfig struct {
	// Encoding names the character encoding used to decode the stream.
	// Only "utf-8" (the default) is currently supported; the field exists
	// so alternative decoders can be plugged in without an API break.
	Encoding string

	// Assertions are evaluated, in registration order, on every line.
	Assertions []LineAssertion

	// Awaiters are notified, in registration order, on every line.
	Awaiters []*LineAwaiterHandle

	// ByteCount, if non-nil, asserts the stream's total byte count.
	ByteCount *ByteCountAssertion

	// Redirect, if set, receives every raw line plus a trailing "\n".
	Redirect RedirectSink

	// RedirectPath, if non-empty and Redirect is nil, is opened
	// internally and closed at consumer loop exit (spec §4.1).
	RedirectPath string

	// OnLine, if set, is called with every line as a pure side-channel
	// observer (SPEC_FULL.md §4 "live observer hook"); it carries no
	// pass/fail semantics, unlike the log assertion variant.
	OnLine func(line string)

	// Capture bounds how many lines are retained for failure rendering.
	Capture CapturePolicy

	// Null, if true, configures this stream as "/dev/null": bytes are
	// drained and counted but never decoded into lines, and no
	// assertions may be registered (spec §4.1).
	Null bool

	// Tag identifies this stream for error messages ("stdout"/"stderr").
	Tag StreamTag
}

// NewStreamConfig returns a StreamConfig with UTF-8 encoding and the
// default capture policy.
func NewStreamConfig(tag StreamTag) StreamConfig {
	return StreamConfig{
		Encoding: "utf-8",
		Capture:  DefaultCapturePolicy,
		Tag:      tag,
	}
}

// ByteCountAssertion asserts a stream's total byte count.
type ByteCountAssertion struct {
	Expected int
}

// NewCommandConfig returns a CommandConfig with empty stdout/stderr stream
// configuration and no exit-code assertion (any exit code passes).
func NewCommandConfig() CommandConfig {
	return CommandConfig{
		Stdout: NewStreamConfig(StreamStdout),
		Stderr: NewStreamConfig(StreamStderr),
	}
}

// WithExecutable returns a copy with the executable resolver replaced.
func (c CommandConfig) WithExecutable(r ExecutableResolver) CommandConfig {
	c.Executable = r
	return c
}

// WithArgs returns a copy with args appended.
func (c CommandConfig) WithArgs(args ...string) CommandConfig {
	c.Args = append(append([]string{}, c.Args...), args...)
	return c
}

// WithEnv returns a copy with the given overlay entry merged in,
// overwriting any existing entry of the same name while preserving its
// original insertion position (spec §3).
func (c CommandConfig) WithEnv(name, value string) CommandConfig {
	env := append([]EnvVar{}, c.Env...)
	for i := range env {
		if env[i].Name == name {
			env[i].Value = value
			c.Env = env
			return c
		}
	}
	c.Env = append(env, EnvVar{Name: name, Value: value})
	return c
}

// WithDir returns a copy with the working directory replaced.
func (c CommandConfig) WithDir(dir string) CommandConfig {
	c.Dir = dir
	return c
}

// WithStderrToStdout returns a copy with stderr merged into stdout.
func (c CommandConfig) WithStderrToStdout() CommandConfig {
	c.MergeStderrIntoStdout = true
	return c
}

// WithStdin returns a copy with the given stdin source. The builder layer
// is responsible for rejecting repeated configuration (spec §4.4); the
// engine itself simply uses the last value set.
func (c CommandConfig) WithStdin(src StdinSource) CommandConfig {
	c.Stdin = src
	return c
}

// WithExitCodeAssertion returns a copy with the given exit-code assertion.
func (c CommandConfig) WithExitCodeAssertion(a *exitCodeAssertion) CommandConfig {
	c.ExitCode = a
	return c
}

// WithAutoClose returns a copy with the given auto-close policy.
func (c CommandConfig) WithAutoClose(p AutoClosePolicy) CommandConfig {
	c.AutoClose = p
	return c
}

// WithLocalPool returns a copy that starts against a fresh per-command
// worker pool instead of the process-wide one.
func (c CommandConfig) WithLocalPool(spec LocalPoolSpec) CommandConfig {
	c.LocalPool = &spec
	return c
}

// Validate checks config-time invariants that the engine must refuse to
// Start against, per spec §4.8 step 2: "If merge_stderr_into_stdout is set
// and any stderr assertion/log/redirect is configured, fail at config time
// with 'cannot set stderr expectations while redirecting stderr to
// stdout'."
func (c CommandConfig) Validate() error {
	if c.Executable == nil {
		return errors.New("executable not specified")
	}
	if c.MergeStderrIntoStdout {
		s := c.Stderr
		if len(s.Assertions) > 0 || len(s.Awaiters) > 0 || s.ByteCount != nil ||
			s.Redirect != nil || s.RedirectPath != "" || s.OnLine != nil {
			return errors.New("cannot set stderr expectations while redirecting stderr to stdout")
		}
	}
	return nil
}
