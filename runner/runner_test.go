package runner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2y-d5l/cliassert/engine"
	"github.com/a2y-d5l/cliassert/runner"
)

func TestDefaultConfigHasSensibleValues(t *testing.T) {
	cfg := runner.DefaultConfig()

	assert.Equal(t, 1000, cfg.MaxLinesPerProc)
	assert.True(t, cfg.FullScreen)
	assert.True(t, cfg.ShowSummary)
	assert.False(t, cfg.ShowTimestamps)
	assert.Equal(t, "[%s]", cfg.LogPrefix)
}

func TestZeroValueConfigDiffersFromDefaultConfig(t *testing.T) {
	cfg := runner.Config{}
	assert.Equal(t, 0, cfg.MaxLinesPerProc)
	assert.Equal(t, "", cfg.LogPrefix)

	base := runner.DefaultConfig()
	assert.NotZero(t, base.MaxLinesPerProc)
	assert.NotEmpty(t, base.LogPrefix)
}

func TestRunSucceedsWithPassingScenarios(t *testing.T) {
	isTTY := false
	cfg := runner.DefaultConfig()
	cfg.IsTTY = &isTTY
	cfg.ShowSummary = false
	cfg.Scenarios = []runner.Scenario{
		{
			Name: "hello",
			Config: engine.NewCommandConfig().
				WithExecutable(engine.LiteralExecutable("echo")).
				WithArgs("hello"),
		},
		{
			Name: "world",
			Config: engine.NewCommandConfig().
				WithExecutable(engine.LiteralExecutable("echo")).
				WithArgs("world"),
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exitCode := runner.Run(ctx, cfg)
	assert.Equal(t, 0, exitCode)
}

func TestRunReportsFailureWhenAScenarioFails(t *testing.T) {
	isTTY := false
	cfg := runner.DefaultConfig()
	cfg.IsTTY = &isTTY
	cfg.ShowSummary = false
	cfg.Scenarios = []runner.Scenario{
		{
			Name: "ok",
			Config: engine.NewCommandConfig().
				WithExecutable(engine.LiteralExecutable("true")),
		},
		{
			Name: "fails",
			Config: engine.NewCommandConfig().
				WithExecutable(engine.LiteralExecutable("false")).
				WithExitCodeAssertion(engine.NewExitCodeIs(0)),
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exitCode := runner.Run(ctx, cfg)
	assert.Equal(t, 1, exitCode)
}

func TestRunSurfacesSpawnFailure(t *testing.T) {
	isTTY := false
	cfg := runner.DefaultConfig()
	cfg.IsTTY = &isTTY
	cfg.ShowSummary = false
	cfg.Scenarios = []runner.Scenario{
		{
			Name: "missing",
			Config: engine.NewCommandConfig().
				WithExecutable(engine.LiteralExecutable("/no/such/executable-xyz")),
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exitCode := runner.Run(ctx, cfg)
	require.Equal(t, 1, exitCode)
}

func TestRunFullScreenModeDoesNotPanic(t *testing.T) {
	isTTY := true
	cfg := runner.DefaultConfig()
	cfg.IsTTY = &isTTY
	cfg.ShowSummary = false
	cfg.Scenarios = []runner.Scenario{
		{
			Name: "fullscreen",
			Config: engine.NewCommandConfig().
				WithExecutable(engine.LiteralExecutable("echo")).
				WithArgs("hi"),
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exitCode := runner.Run(ctx, cfg)
	assert.Equal(t, 0, exitCode)
}
