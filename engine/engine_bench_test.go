package engine_test

import (
	"context"
	"testing"

	"github.com/a2y-d5l/cliassert/engine"
)

// BenchmarkRunConcurrentlyManyCommands measures throughput fanning many
// commands out concurrently, adapted from the teacher's many-process
// benchmark to the one-shot RunConcurrently shape.
func BenchmarkRunConcurrentlyManyCommands(b *testing.B) {
	const (
		numCommands = 50
		linesPerCmd = 100
	)

	lines := make([]string, linesPerCmd)
	for i := range lines {
		lines[i] = "benchmark output line"
	}

	for b.Loop() {
		cfgs := make([]engine.CommandConfig, numCommands)
		cmds := make([]*mockCommand, numCommands)
		for i := range cfgs {
			cfgs[i] = baseConfig("bench")
			cmds[i] = newMockCommand()
			writeLines(cmds[i].stdoutW, lines)
			cmds[i].stderrW.Close()
		}

		idx := 0
		factory := func(context.Context, engine.CommandConfig) (engine.Command, error) {
			c := cmds[idx]
			idx++
			return c, nil
		}

		if _, err := engine.RunConcurrently(context.Background(), cfgs, engine.Options{Factory: factory}); err != nil {
			b.Fatal(err)
		}
	}
}
