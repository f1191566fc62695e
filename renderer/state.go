// Package renderer provides output formatting and state management for a
// single command's live execution. It consumes the lines delivered through
// a stream's OnLine observer hook and produces formatted output for
// different environments.
//
// The renderer supports two modes:
//   - Full-screen TTY mode: Interactive display with screen clearing
//   - Incremental non-TTY mode: Line-by-line output for CI/logs
//
// Architecture:
//   - State: Maintains renderable state for the observed command
//   - Event system: LineEvent/DoneEvent fed by the OnLine hook and the
//     final *engine.Result
//   - ApplyEvent: Pure function for state updates
//   - Renderers: Format and display state
//
// Basic usage, wiring the observer hook into a channel of events:
//
//	state := renderer.State{Name: "build", MaxLines: 1000}
//	events := make(chan renderer.Event, 128)
//
//	cfg.Stdout.OnLine = func(line string) {
//	    events <- renderer.LineEvent{Stream: engine.StreamStdout, Line: line}
//	}
//
//	go func() {
//	    result := exec.Wait()
//	    events <- renderer.DoneEvent{Result: result}
//	    close(events)
//	}()
//
//	for ev := range events {
//	    renderer.ApplyEvent(&state, ev)
//	    renderer.RenderIncremental(ev, state.Name, false, "[%s]")
//	}
package renderer

import (
	"github.com/a2y-d5l/cliassert/engine"
)

// State holds renderable state for one observed command.
//
// The state is updated by ApplyEvent() as line/done events arrive, and
// consumed by renderers (RenderScreen, RenderIncremental) to produce
// formatted output.
//
// Memory management:
//   - Lines are stored in a slice (FIFO queue)
//   - Oldest lines are evicted when MaxLines or MaxBytes is exceeded
//   - ByteSize tracks total bytes to enforce byte limit
type State struct {
	// Result is the final command result, set once Done is true.
	Result *engine.Result

	// Name is the display name for the observed command (typically its
	// rendered command string, or a caller-chosen label).
	Name string

	// Lines contains the observed output (stdout + stderr merged, in
	// arrival order). Lines are appended as they arrive and evicted when
	// limits are exceeded. This is a FIFO queue: oldest lines are removed
	// first.
	Lines []string

	// ByteSize is the total number of bytes currently stored in Lines.
	// Used to enforce MaxBytes limit. Updated automatically by ApplyEvent.
	ByteSize int

	// MaxLines is the maximum number of lines to keep. When exceeded, the
	// oldest lines are evicted. 0 means no limit.
	MaxLines int

	// MaxBytes is the maximum number of bytes to keep. When exceeded, the
	// oldest lines are evicted. 0 means no limit. When both MaxLines and
	// MaxBytes are set, lines are evicted when EITHER limit is exceeded.
	MaxBytes int

	// Done is true once the command has exited and Result has been set.
	Done bool

	// Running is true from observation start until Done. Opposite of
	// Done, provided for convenience.
	Running bool

	// Dirty indicates whether this state has changed since last render.
	// Set to true by ApplyEvent, cleared by the renderer after displaying.
	Dirty bool
}

// Event is a marker interface for renderer events.
type Event interface{ isEvent() }

// LineEvent represents a single line of output from the observed command,
// sourced from a StreamConfig.OnLine callback.
type LineEvent struct {
	// Line contains the output text.
	Line string

	// Stream identifies which of the command's streams emitted the line.
	Stream engine.StreamTag
}

func (LineEvent) isEvent() {}

// DoneEvent signals that the observed command has exited.
type DoneEvent struct {
	// Result is the command's final result.
	Result *engine.Result
}

func (DoneEvent) isEvent() {}

// NewState returns a State ready to receive events for name, with the
// given retention limits for the merged Lines (0 means unlimited).
func NewState(name string, maxLines, maxBytes int) State {
	return State{
		Name:     name,
		Running:  true,
		Dirty:    true,
		MaxLines: maxLines,
		MaxBytes: maxBytes,
	}
}

// ApplyEvent updates state based on a renderer event. This is a pure
// function that mutates state in place.
//
// Behavior:
//   - LineEvent: Appends line to state, enforces memory limits, marks
//     dirty
//   - DoneEvent: Sets Done=true, Running=false, stores the result, marks
//     dirty
func ApplyEvent(state *State, ev Event) {
	switch e := ev.(type) {
	case LineEvent:
		state.Lines = append(state.Lines, e.Line)
		state.ByteSize += len(e.Line)

		// Evict oldest lines until both constraints are satisfied.
		for {
			exceedsLineLimit := state.MaxLines > 0 && len(state.Lines) > state.MaxLines
			exceedsByteLimit := state.MaxBytes > 0 && state.ByteSize > state.MaxBytes
			if !exceedsLineLimit && !exceedsByteLimit {
				break
			}
			if len(state.Lines) == 0 {
				break
			}
			oldest := state.Lines[0]
			state.Lines = state.Lines[1:]
			state.ByteSize -= len(oldest)
		}

		state.Dirty = true

	case DoneEvent:
		state.Done = true
		state.Running = false
		state.Result = e.Result
		state.Dirty = true
	}
}

// ExitCodeFromState determines the exit code suitable for os.Exit() based
// on the observed command's final result: 0 if it ran and AssertSuccess()
// passed, 1 otherwise (including when the command never completed).
func ExitCodeFromState(state State) int {
	if state.Result == nil || state.Result.AssertSuccess() != nil {
		return 1
	}
	return 0
}
