// Package runner provides high-level orchestration for running a bundle of
// named demo scenarios concurrently with live rendering, wiring the
// engine's OnLine observer hook into the renderer package.
//
// This package ties together the engine (process execution) and renderer
// (output formatting) layers to provide a simple, batteries-included way
// to drive the scenarios the demonstration CLI ships with. It is not part
// of the library's assertion surface; it exists to exercise
// engine.RunConcurrently end to end with something runnable.
//
// Quick start:
//
//	cfg := runner.DefaultConfig()
//	cfg.Scenarios = []runner.Scenario{
//	    {Name: "build", Config: engine.NewCommandConfig().WithExecutable(...)},
//	}
//	exitCode := runner.Run(ctx, cfg)
//	os.Exit(exitCode)
package runner

import (
	"context"
	"fmt"

	"github.com/a2y-d5l/cliassert/engine"
	"github.com/a2y-d5l/cliassert/renderer"
)

const (
	// defaultMaxLinesPerProc is the default maximum number of output lines
	// to keep per scenario.
	defaultMaxLinesPerProc = 1000

	// eventChannelBuffer is the buffer size for the scenario event channel.
	eventChannelBuffer = 128
)

// Scenario names one command configuration to run as part of a bundled
// demonstration.
type Scenario struct {
	// Name labels the scenario in rendered output.
	Name string

	// Config is the command to run. Its Stdout/Stderr OnLine hooks are
	// overwritten by Run to wire live rendering; set everything else
	// (executable, args, assertions) before passing it in.
	Config engine.CommandConfig
}

// Config holds high-level configuration for running a bundle of scenarios.
// All fields are optional and populated with sensible defaults from
// DefaultConfig() if not specified.
type Config struct {
	// IsTTY indicates whether stdout is attached to a TTY. When nil, it is
	// auto-detected via renderer.IsTTY().
	IsTTY *bool

	// LogPrefix formats a scenario name in non-TTY incremental output.
	// Must contain exactly one "%s". Defaults to "[%s]".
	LogPrefix string

	// Scenarios defines the commands to run concurrently.
	Scenarios []Scenario

	// MaxLinesPerProc bounds retained output lines per scenario. 0 uses
	// the package default (1000).
	MaxLinesPerProc int

	// FullScreen enables full-screen terminal rendering. Only used when
	// IsTTY is true; forced off otherwise.
	FullScreen bool

	// ShowSummary prints a one-line-per-scenario summary to stderr after
	// all scenarios complete.
	ShowSummary bool

	// ShowTimestamps prefixes incremental output lines with an RFC3339
	// timestamp.
	ShowTimestamps bool
}

// DefaultConfig returns sensible defaults for Config.
func DefaultConfig() Config {
	return Config{
		MaxLinesPerProc: defaultMaxLinesPerProc,
		FullScreen:      true,
		ShowSummary:     true,
		ShowTimestamps:  false,
		LogPrefix:       "[%s]",
	}
}

// scenarioEvent tags a renderer.Event with the scenario index it belongs
// to, since all scenarios share one event channel.
type scenarioEvent struct {
	ev    renderer.Event
	index int
}

// Run executes the configured scenarios concurrently via
// engine.RunConcurrently and renders their output live.
//
// Rendering modes mirror the single-command renderer, one State per
// scenario:
//   - TTY + FullScreen: debounced full-screen re-render of every scenario
//   - otherwise: incremental per-line output, prefixed with scenario name
//
// Blocks until every scenario completes. Returns 0 if every scenario's
// Result.AssertSuccess() passed, 1 otherwise.
func Run(ctx context.Context, cfg Config) int {
	base := DefaultConfig()
	if cfg.MaxLinesPerProc <= 0 {
		cfg.MaxLinesPerProc = base.MaxLinesPerProc
	}
	if cfg.IsTTY == nil {
		val := renderer.IsTTY()
		cfg.IsTTY = &val
	}
	if cfg.LogPrefix == "" {
		cfg.LogPrefix = base.LogPrefix
	}
	if !*cfg.IsTTY {
		cfg.FullScreen = false
	}

	states := make([]renderer.State, len(cfg.Scenarios))
	configs := make([]engine.CommandConfig, len(cfg.Scenarios))
	events := make(chan scenarioEvent, eventChannelBuffer)

	for i, sc := range cfg.Scenarios {
		states[i] = renderer.NewState(sc.Name, cfg.MaxLinesPerProc, 0)

		idx := i
		c := sc.Config
		c.Stdout.OnLine = func(line string) {
			events <- scenarioEvent{index: idx, ev: renderer.LineEvent{Stream: engine.StreamStdout, Line: line}}
		}
		c.Stderr.OnLine = func(line string) {
			events <- scenarioEvent{index: idx, ev: renderer.LineEvent{Stream: engine.StreamStderr, Line: line}}
		}
		configs[i] = c
	}

	// RunConcurrently collects each Result with Wait, which joins every
	// consumer worker before returning, so every OnLine send above has
	// already landed in events by the time RunConcurrently returns; it is
	// then safe for this goroutine (the only writer) to close events.
	var results []*engine.Result
	var runErr error
	go func() {
		results, runErr = engine.RunConcurrently(ctx, configs, engine.Options{})
		close(events)
	}()

	var renderCh chan renderer.RenderRequest
	if cfg.FullScreen {
		renderCh = make(chan renderer.RenderRequest, 1)
		go func() {
			for range renderCh {
				renderAll(states)
			}
		}()
		renderCh <- renderer.RenderRequest{}
	} else {
		for _, s := range states {
			renderer.RenderIncremental(renderer.LineEvent{}, s.Name, cfg.ShowTimestamps, cfg.LogPrefix)
		}
	}

	for se := range events {
		renderer.ApplyEvent(&states[se.index], se.ev)
		if cfg.FullScreen {
			select {
			case renderCh <- renderer.RenderRequest{}:
			default:
			}
		} else {
			renderer.RenderIncremental(se.ev, states[se.index].Name, cfg.ShowTimestamps, cfg.LogPrefix)
		}
	}

	for i, r := range results {
		if r != nil {
			renderer.ApplyEvent(&states[i], renderer.DoneEvent{Result: r})
		}
	}
	if cfg.FullScreen {
		renderCh <- renderer.RenderRequest{}
		close(renderCh)
	}
	if cfg.ShowSummary {
		for _, s := range states {
			renderer.WriteFinalSummary(s)
		}
	}
	if runErr != nil {
		fmt.Println("scenario launch error:", runErr)
		return 1
	}

	exitCode := 0
	for _, s := range states {
		if renderer.ExitCodeFromState(s) != 0 {
			exitCode = 1
		}
	}
	return exitCode
}

// renderAll re-renders every scenario's state in sequence. Full-screen
// mode with multiple concurrent scenarios trades the teacher's single
// shared-screen layout for one screen clear per scenario; acceptable for
// a demo CLI, not meant for dense production dashboards.
func renderAll(states []renderer.State) {
	for i := range states {
		renderer.RenderScreen(&states[i])
	}
}
