package renderer

import (
	"fmt"
	"os"
	"strings"

	"github.com/a2y-d5l/cliassert/engine"
)

// clearScreen clears the terminal screen and moves the cursor to the
// top-left using ANSI escape codes supported by most modern terminals.
func clearScreen() {
	fmt.Print("\x1b[H\x1b[2J")
}

// RenderScreen performs a full-screen re-render of the observed command's
// state. This is the primary renderer for interactive TTY mode.
//
// Behavior:
//  1. Skip entirely if state is not dirty (fast path)
//  2. Clear the entire screen with ANSI codes
//  3. Render a header ("Running <Name>... [<status>]")
//  4. Render each captured line, indented
//  5. Display a footer with instructions
//  6. Clear the dirty flag
func RenderScreen(state *State) {
	if !state.Dirty {
		return
	}

	clearScreen()

	status := "running"
	if state.Done {
		status = FormatResult(state.Result)
	}

	fmt.Printf("Running %s… [%s]\n", state.Name, status)

	for _, line := range state.Lines {
		if strings.TrimSpace(line) == "" {
			fmt.Println()
			continue
		}
		fmt.Printf("    %s\n", line)
	}

	fmt.Println()
	fmt.Println("Press Ctrl+C to cancel. Output updates in real time.")

	state.Dirty = false
}

// FormatResult formats a command's final result into a human-readable
// status string.
//
//   - nil: "running" (the command has not completed)
//   - success (AssertSuccess() == nil): "ok (exit N)"
//   - failure: "failed (exit N): <aggregated assertion error>"
//   - timed out: "timed out"
func FormatResult(r *engine.Result) string {
	if r == nil {
		return "running"
	}
	if r.TimeoutErr != nil {
		return "timed out"
	}
	if err := r.AssertSuccess(); err != nil {
		return fmt.Sprintf("failed (exit %d): %v", r.ExitCode, err)
	}
	return fmt.Sprintf("ok (exit %d)", r.ExitCode)
}

// WriteFinalSummary prints a concise one-line summary of the observed
// command's result to stderr. Useful after the real-time view completes,
// especially when scrollback is long or output was redirected to a file.
func WriteFinalSummary(state State) {
	fmt.Fprintf(os.Stderr, "\n%s: %s\n", state.Name, FormatResult(state.Result))
}

// IsTTY reports whether the current stdout is a TTY (interactive
// terminal), used to choose between full-screen and incremental
// renderers.
func IsTTY() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
