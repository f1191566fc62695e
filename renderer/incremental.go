package renderer

import (
	"fmt"
	"strings"
	"time"
)

// RenderIncremental renders events directly to standard output without
// clearing the screen or buffering. This is the primary renderer for
// non-TTY environments such as CI/CD pipelines, log files, and piped
// output.
//
// Output format (without timestamps):
//
//	[name] output line 1
//	[name] output line 2
//	[name] ok (exit 0)
//
// Output format (with timestamps):
//
//	[2024-11-20T15:30:45Z] [name] output line 1
//	...
//
// logPrefix is a format string containing exactly one "%s" placeholder
// (e.g. "[%s]", "%s:"); an empty string defaults to "[%s]".
func RenderIncremental(ev Event, name string, showTimestamps bool, logPrefix string) {
	if logPrefix == "" {
		logPrefix = "[%s]"
	}
	prefix := fmt.Sprintf(logPrefix, name)

	var text string
	switch e := ev.(type) {
	case LineEvent:
		text = strings.TrimRight(e.Line, "\r\n")
	case DoneEvent:
		text = FormatResult(e.Result)
	default:
		return
	}

	if showTimestamps {
		fmt.Printf("[%s] %s %s\n", time.Now().UTC().Format(time.RFC3339), prefix, text)
	} else {
		fmt.Printf("%s %s\n", prefix, text)
	}
}

// RenderRequest is a signal type used to trigger rendering in full-screen
// mode. This empty struct is sent through a channel to request a screen
// re-render; the buffered channel debounces bursts of line events into at
// most one pending render.
type RenderRequest struct{}
