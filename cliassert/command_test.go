package cliassert_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2y-d5l/cliassert"
	"github.com/a2y-d5l/cliassert/engine"
)

func TestExecuteEchoHasLinesPasses(t *testing.T) {
	result, err := cliassert.Exec("echo", "Hello Joe").
		Stdout().HasLines("Hello Joe").HasLineCount(1).Done().
		Execute(context.Background())
	require.NoError(t, err)
	require.NoError(t, result.AssertSuccess())
	assert.Equal(t, 0, result.ExitCode)
	assert.True(t, result.ByteCountStdout > 0)
}

func TestExecuteAggregatesFailingAssertions(t *testing.T) {
	result, err := cliassert.Exec("echo", "Hello Joe").
		Stdout().HasLines("Goodbye").Done().
		Execute(context.Background())
	require.NoError(t, err)

	assertErr := result.AssertSuccess()
	require.Error(t, assertErr)
	assert.Contains(t, assertErr.Error(), "1 assertion failures")
}

func TestExecuteWithTimeoutReturnsTimeoutError(t *testing.T) {
	cmd := cliassert.Exec("sh", "-c", `echo "About to sleep for 500 ms"; sleep 0.5`)
	cmd.Stdout().HasLines("About to sleep for 500 ms")

	result, err := cmd.ExecuteWithTimeout(context.Background(), 200*time.Millisecond)
	require.NoError(t, err)
	assert.NoError(t, result.AssertTimeout())
	assert.Equal(t, -1, result.ExitCode)
	assert.GreaterOrEqual(t, result.Duration, 200*time.Millisecond)
}

func TestExitCodeSatisfiesTemplatedMessage(t *testing.T) {
	result, err := cliassert.Exec("sh", "-c", "exit 1").
		ExitCodeSatisfies(func(code int) bool { return code == 42 }, "Expected 42 but got ${actual}").
		Execute(context.Background())
	require.NoError(t, err)

	assertErr := result.AssertSuccess()
	require.Error(t, assertErr)
	assert.Contains(t, assertErr.Error(), "Failure 1/1: Expected 42 but got 1")
}

func TestCaptureHeadTailRendersOmittedMarker(t *testing.T) {
	cmd := cliassert.Exec("sh", "-c", `for i in $(seq 1 35); do echo "line $i"; done`)
	cmd.Stdout().Capture(3, 3).HasLines("Foo")

	result, err := cmd.Execute(context.Background())
	require.NoError(t, err)

	assertErr := result.AssertSuccess()
	require.Error(t, assertErr)
	assert.Contains(t, assertErr.Error(), "line 1\n")
	assert.Contains(t, assertErr.Error(), "29 lines omitted")
	assert.Contains(t, assertErr.Error(), "line 35")
}

func TestStdinStringIsDeliveredToChild(t *testing.T) {
	result, err := cliassert.Exec("cat").
		StdinString("hello from stdin").
		Stdout().HasLines("hello from stdin").Done().
		Execute(context.Background())
	require.NoError(t, err)
	require.NoError(t, result.AssertSuccess())
}

func TestStdinFileStreamsFileContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(path, []byte("from a file\n"), 0o644))

	result, err := cliassert.Exec("cat").
		StdinFile(path).
		Stdout().HasLines("from a file").Done().
		Execute(context.Background())
	require.NoError(t, err)
	require.NoError(t, result.AssertSuccess())
}

func TestRepeatedStdinConfigurationFailsAtStart(t *testing.T) {
	cmd := cliassert.Exec("cat").StdinString("a").StdinString("b")

	_, err := cmd.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdin already configured")
}

func TestAwaitMatchingExtractsCapturingGroup(t *testing.T) {
	cmd := cliassert.Exec("sh", "-c", "echo listening on port: 8080")
	awaiter := cmd.Stdout().AwaitMatching("port announcement", regexp.MustCompile(`listening on port: (\d+)`))

	result, err := cmd.Execute(context.Background())
	require.NoError(t, err)
	require.NoError(t, result.AssertSuccess())

	value, err := awaiter.Await(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "8080", value)
}

func TestCommandStringMatchesSpecRendering(t *testing.T) {
	cmd := cliassert.Exec("my tool", "arg one", "arg2").
		Env("GREETING", "hello world").
		Cd("/tmp/work dir").
		StderrToStdout()

	want := `cd "/tmp/work dir" && GREETING="hello world" "my tool" "arg one" arg2 2>&1`
	assert.Equal(t, want, cmd.String())
}

func TestRunConcurrentlyRunsAllAndPreservesOrder(t *testing.T) {
	cmds := []*cliassert.Command{
		cliassert.Exec("echo", "a"),
		cliassert.Exec("echo", "b"),
	}
	cmds[0].Stdout().HasLines("a")
	cmds[1].Stdout().HasLines("b")

	results, err := cliassert.RunConcurrently(context.Background(), cmds)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.AssertSuccess())
	}
}

func TestRunConcurrentlySurfacesStdinConfigError(t *testing.T) {
	bad := cliassert.Exec("cat").StdinString("a").StdinString("b")
	_, err := cliassert.RunConcurrently(context.Background(), []*cliassert.Command{bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdin already configured")
}

func TestStartPropagatesSpawnFailureFromCustomFactory(t *testing.T) {
	boom := errors.New("boom")
	cmd := cliassert.Exec("whatever")

	_, err := cmd.Start(context.Background(), cliassert.WithCommandFactory(
		func(context.Context, engine.CommandConfig) (engine.Command, error) { return nil, boom },
	))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
