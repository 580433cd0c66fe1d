package invoker

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunnerCapturesOutput(t *testing.T) {
	requireShell(t)
	r := &ExecRunner{}

	res, err := r.Run(context.Background(), "sh", "-c", "echo hello; echo oops >&2")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Output, "hello")
	assert.Contains(t, res.Output, "oops")
}

func TestExecRunnerReportsExitCode(t *testing.T) {
	requireShell(t)
	r := &ExecRunner{}

	res, err := r.Run(context.Background(), "sh", "-c", "exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
}

func TestExecRunnerMissingBinary(t *testing.T) {
	r := &ExecRunner{}

	_, err := r.Run(context.Background(), "definitely-not-a-real-binary-7f3a")
	assert.Error(t, err)
}

func TestExecRunnerKilledOnTimeout(t *testing.T) {
	requireShell(t)
	r := &ExecRunner{}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Run(ctx, "sh", "-c", "sleep 10")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFakeRunnerRecordsCalls(t *testing.T) {
	f := &FakeRunner{ExitCode: 2}

	res, err := f.Run(context.Background(), "python", "predict.py", "--source", "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, 2, res.ExitCode)

	calls := f.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "python", calls[0].Name)
	assert.Equal(t, []string{"predict.py", "--source", "a.jpg"}, calls[0].Args)
}

func TestFakeRunnerHookError(t *testing.T) {
	boom := errors.New("boom")
	f := &FakeRunner{OnRun: func(context.Context, Call) error { return boom }}

	_, err := f.Run(context.Background(), "python")
	assert.ErrorIs(t, err, boom)
}
