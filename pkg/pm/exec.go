package pm

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"
)

// ExecResult is the raw outcome of one process run.
type ExecResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Executor runs a program. A non-zero exit is reported through ExitCode,
// not as an error; errors mean the program could not be run or was
// stopped by ctx.
type Executor interface {
	Run(ctx context.Context, dir, name string, args []string) (ExecResult, error)
}

// waitDelay bounds how long output pipes may stay open after the child
// is killed.
const waitDelay = 2 * time.Second

// CommandExecutor runs programs with os/exec.
type CommandExecutor struct {
	// Env is appended to the inherited environment.
	Env []string
}

// NewCommandExecutor returns an Executor that disables colors and
// interactive prompts in the child.
func NewCommandExecutor() *CommandExecutor {
	return &CommandExecutor{Env: []string{"CI=true", "NO_COLOR=1", "FORCE_COLOR=0"}}
}

func (e *CommandExecutor) Run(ctx context.Context, dir, name string, args []string) (ExecResult, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return ExecResult{ExitCode: -1}, err
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), e.Env...)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	res := ExecResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, nil
	}
	return res, err
}
