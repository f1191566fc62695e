// Command cliassert-demo runs the bundled end-to-end scenarios that
// exercise cliassert's engine against real child processes, rendering
// their output live.
//
// Usage:
//
//	cliassert-demo [OPTIONS]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/a2y-d5l/cliassert"
	"github.com/a2y-d5l/cliassert/runner"
)

// asScenario builds a runner.Scenario from a cliassert.Command, the
// fluent surface's escape hatch for handing its accumulated
// engine.CommandConfig to a lower-level consumer (spec §1: "the fluent
// surface is a thin projection over the configuration record consumed by
// the engine").
func asScenario(name string, cmd *cliassert.Command) runner.Scenario {
	cfg, err := cmd.Config()
	if err != nil {
		fmt.Printf("[%s] configuration error: %v\n", name, err)
	}
	return runner.Scenario{Name: name, Config: cfg}
}

func scenarios() []runner.Scenario {
	return []runner.Scenario{
		echoHasLinesScenario(),
		exitCodePredicateScenario(),
		captureHeadTailScenario(),
	}
}

// echoHasLinesScenario mirrors end-to-end scenario 1: a single line of
// output checked against hasLines + hasLineCount.
func echoHasLinesScenario() runner.Scenario {
	cmd := cliassert.Exec("echo", "Hello Joe")
	cmd.Stdout().HasLines("Hello Joe").HasLineCount(1)
	return asScenario("echo-hasLines", cmd)
}

// runTimeoutDemo mirrors end-to-end scenario 3: a command that sleeps
// past a wait_with_timeout deadline. RunConcurrently/runner.Run always
// collect via a plain Wait, so this demo calls Command.Start +
// Process.WaitWithTimeout directly instead of joining the rendered
// bundle.
func runTimeoutDemo(ctx context.Context) {
	cmd := cliassert.Exec("sh", "-c", `echo "About to sleep for 500 ms"; sleep 0.5`)
	cmd.Stdout().HasLines("About to sleep for 500 ms")

	proc, err := cmd.Start(ctx)
	if err != nil {
		fmt.Println("[timeout] spawn error:", err)
		return
	}

	result := proc.WaitWithTimeout(200 * time.Millisecond)
	fmt.Printf("[timeout] duration=%s assert_timeout=%v\n", result.Duration, result.AssertTimeout())

	// The child is still sleeping past the timeout; reclaim it forcibly
	// rather than leaving it to finish on its own.
	proc.Kill(true, false)
}

// exitCodePredicateScenario mirrors end-to-end scenario 5: a predicate
// exit-code assertion with a templated failure message.
func exitCodePredicateScenario() runner.Scenario {
	cmd := cliassert.Exec("sh", "-c", "exit 1").
		ExitCodeSatisfies(func(code int) bool { return code == 42 }, "Expected 42 but got ${actual}")
	return asScenario("exit-code-predicate", cmd)
}

// captureHeadTailScenario mirrors end-to-end scenario 6: 35 lines of
// output with a (3,3) capture policy and a deliberately failing
// assertion, so the demo prints the head/omitted/tail rendering.
func captureHeadTailScenario() runner.Scenario {
	cmd := cliassert.Exec("sh", "-c", `for i in $(seq 1 35); do echo "line $i"; done`)
	cmd.Stdout().Capture(3, 3).HasLines("Foo")
	return asScenario("capture-head-tail", cmd)
}

func run(c *cli.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	runTimeoutDemo(ctx)

	cfg := runner.DefaultConfig()
	cfg.Scenarios = scenarios()
	cfg.FullScreen = c.Bool("fullscreen")
	cfg.ShowSummary = c.Bool("summary")
	cfg.ShowTimestamps = c.Bool("timestamps")
	cfg.LogPrefix = c.String("prefix")
	cfg.MaxLinesPerProc = c.Int("max-lines")

	if v := c.Bool("tty"); c.IsSet("tty") {
		cfg.IsTTY = &v
	}

	code := runner.Run(ctx, cfg)
	if code != 0 {
		return cli.Exit("", code)
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "cliassert-demo",
		Usage: "Run cliassert's bundled end-to-end scenarios against real processes",
		Description: `Runs a standalone timeout demo, then three rendered scenarios
concurrently, each a direct realization of one of cliassert's
end-to-end testable properties:

  timeout               wait_with_timeout expiring before the child exits
  echo-hasLines          single line checked with hasLines + hasLineCount
  exit-code-predicate    a predicate exit-code assertion with a templated message
  capture-head-tail      (3,3) capture policy rendering with an omitted-lines marker

The capture-head-tail and exit-code-predicate scenarios are expected to
fail their assertions; this is by design, to demonstrate the aggregated
failure rendering.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "fullscreen", Value: true, Usage: "enable full-screen terminal rendering (TTY mode only)"},
			&cli.BoolFlag{Name: "summary", Value: true, Usage: "print a summary after all scenarios complete"},
			&cli.BoolFlag{Name: "timestamps", Value: false, Usage: "prefix output lines with an RFC3339 timestamp"},
			&cli.StringFlag{Name: "prefix", Value: "[%s]", Usage: "format string for scenario name prefix"},
			&cli.IntFlag{Name: "max-lines", Value: 1000, Usage: "maximum output lines retained per scenario"},
			&cli.BoolFlag{Name: "tty", Usage: "force TTY/non-TTY rendering instead of auto-detecting"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
