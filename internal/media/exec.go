// Package media wraps the external transcoder and downloader binaries.
package media

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner executes a binary and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the binary with exec.CommandContext.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ExecError is a failed subprocess invocation with its captured output.
type ExecError struct {
	Tool    string
	Err     error
	Output  string
	Timeout time.Duration
}

func (e *ExecError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("%s timed out after %s", e.Tool, e.Timeout)
	}
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Tail returns the last lines of the tool's output.
func (e *ExecError) Tail() string {
	return Tail(e.Output, 12)
}

// Tail keeps the last n non-empty lines of s.
func Tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return strings.Join(out, "\n")
}

// DiagnosticTail extracts the output tail from err if it came from a subprocess.
func DiagnosticTail(err error) string {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Tail()
	}
	return ""
}

func run(ctx context.Context, runner Runner, timeout time.Duration, tool string, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	out, err := runner(ctx, tool, args...)
	if err != nil {
		ee := &ExecError{Tool: tool, Err: err, Output: string(out)}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			ee.Timeout = timeout
		}
		return out, ee
	}
	return out, nil
}
