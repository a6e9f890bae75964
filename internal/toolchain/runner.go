// Package toolchain runs the external programs the regression pipeline
// depends on: document compilers, the rasterizer and the diff tools.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/frherrer/texregress/internal/domain"
)

// Result is the outcome of one external process.
type Result struct {
	OK       bool
	ExitCode int
	TimedOut bool
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Runner executes a command inside a working directory.
type Runner interface {
	Run(ctx context.Context, workDir, command string) (Result, error)
}

// ShellRunner runs commands through a shell, e.g. `/bin/sh -c <command>`.
type ShellRunner struct {
	Shell     string
	ShellFlag string
	Timeout   time.Duration // zero disables the timeout
	Env       []string      // appended to the inherited environment
}

// NewShellRunner creates a ShellRunner.
func NewShellRunner(shell, shellFlag string, timeout time.Duration) *ShellRunner {
	return &ShellRunner{
		Shell:     shell,
		ShellFlag: shellFlag,
		Timeout:   timeout,
	}
}

// Run executes command in workDir and blocks until it exits. A non-zero exit
// status or a timeout is reported through Result, not as an error; err is set
// only when the shell cannot be started.
func (r *ShellRunner) Run(ctx context.Context, workDir, command string) (Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Shell, r.ShellFlag, command)
	cmd.Dir = workDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err == nil {
		res.OK = true
		return res, nil
	}

	if ctx.Err() != nil {
		res.TimedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
		res.ExitCode = -1
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}

	return res, domain.NewError("compile", workDir, 0, "failed to start "+r.Shell, err)
}
