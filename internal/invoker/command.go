// Package invoker runs the external segmentation tool.
package invoker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Result describes a finished tool process.
type Result struct {
	ExitCode int
	Output   string
	Duration time.Duration
}

// Runner is an interface for executing a command and collecting its result.
// A non-zero exit is reported through Result.ExitCode, not as an error.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// ExecRunner runs commands as local subprocesses.
type ExecRunner struct {
	// Dir is the working directory of the subprocess; empty means inherit.
	Dir string
}

// waitDelay bounds how long output pipes may stay open after the process is
// killed, e.g. by a grandchild that inherited them.
const waitDelay = 2 * time.Second

var _ Runner = &ExecRunner{}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	log.Debugf("Running command: %s %s", name, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	cmd.WaitDelay = waitDelay
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Output:   out.String(),
		Duration: time.Since(start),
	}
	log.Debugf("Command output: %s", res.Output)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("run %s: %w", name, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("run %s: %w", name, err)
	}
	return res, nil
}

// Call records one invocation made through a FakeRunner.
type Call struct {
	Name string
	Args []string
}

// FakeRunner stands in for the segmentation tool in tests. OnRun, if set,
// runs in place of the process and may write output files.
type FakeRunner struct {
	ExitCode int
	Output   string
	Err      error
	OnRun    func(ctx context.Context, call Call) error

	mu    sync.Mutex
	calls []Call
}

var _ Runner = &FakeRunner{}

func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	call := Call{Name: name, Args: append([]string(nil), args...)}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.OnRun != nil {
		if err := f.OnRun(ctx, call); err != nil {
			return nil, err
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	return &Result{ExitCode: f.ExitCode, Output: f.Output}, nil
}

// Calls returns the invocations seen so far.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}
