package cli

import (
	"context"
	stderrors "errors"
	"os"
)

// Exit codes beyond the generic failure (1).
const (
	ExitNotFound    = 3
	ExitUnavailable = 69
)

// ExitError carries a process exit code for main.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the exit code for err: 0 for nil, the code of an
// [ExitError] in its chain, and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if stderrors.As(err, &ee) {
		return ee.Code
	}
	return 1
}

// Execute runs the pkgintel CLI with os.Args and returns an error if the
// command fails. Logs go to stderr at info level until the config or
// --verbose says otherwise.
//
// Example:
//
//	func main() {
//	    ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	    defer cancel()
//	    if err := cli.Execute(ctx); err != nil {
//	        os.Exit(cli.ExitCode(err))
//	    }
//	}
func Execute(ctx context.Context) error {
	c := New(os.Stderr, LogInfo)
	return c.RootCommand().ExecuteContext(ctx)
}
