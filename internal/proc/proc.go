// Package proc runs external processes and reports their outcome as plain
// values. Commands are always argument lists, never shell strings.
package proc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/protocollar/stackup/internal/logger"
)

// DefaultCheckTimeout bounds read-only status checks.
const DefaultCheckTimeout = 15 * time.Second

// Cmd describes one process invocation.
type Cmd struct {
	Dir     string
	Name    string
	Args    []string
	Env     []string      // extra KEY=VALUE pairs appended to the inherited env
	Timeout time.Duration // checks only; zero means DefaultCheckTimeout
}

// String renders the command line for messages and logs.
func (c Cmd) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is the observed outcome of a process.
type Result struct {
	Cmd      string `json:"cmd"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"-"`
	Stderr   string `json:"-"`
	TimedOut bool   `json:"timed_out,omitempty"`
	NotFound bool   `json:"not_found,omitempty"`
	Err      error  `json:"-"`
}

// OK reports whether the process ran and exited 0.
func (r Result) OK() bool {
	return r.Err == nil && !r.TimedOut && !r.NotFound && r.ExitCode == 0
}

// Output returns trimmed stdout.
func (r Result) Output() string {
	return strings.TrimSpace(r.Stdout)
}

// Reason summarizes why a result is not OK.
func (r Result) Reason() string {
	switch {
	case r.NotFound:
		return "command not found"
	case r.TimedOut:
		return "timed out"
	case r.Err != nil:
		return r.Err.Error()
	case r.ExitCode != 0:
		msg := strings.TrimSpace(r.Stderr)
		if msg == "" {
			msg = strings.TrimSpace(r.Stdout)
		}
		if msg == "" {
			return "exited with code " + strconv.Itoa(r.ExitCode)
		}
		return "exited with code " + strconv.Itoa(r.ExitCode) + ": " + firstLine(msg)
	default:
		return ""
	}
}

// Runner is the process capability handed to every component that spawns
// children.
type Runner interface {
	// Capture runs a read-only command with captured output and a bounded timeout.
	Capture(ctx context.Context, c Cmd) Result
	// Interactive runs a command attached to the terminal and blocks until it
	// exits. No timeout is applied.
	Interactive(ctx context.Context, c Cmd) Result
}

// OS runs real processes.
type OS struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewOS returns a runner attached to the process's own stdio.
func NewOS() *OS {
	return &OS{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

func (o *OS) Capture(ctx context.Context, c Cmd) Result {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := Result{Cmd: c.String()}
	if _, err := exec.LookPath(c.Name); err != nil {
		res.NotFound = true
		res.ExitCode = -1
		logger.Event("capture", "cmd", res.Cmd, "not_found", true)
		return res
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	if ctx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitCode = -1
	} else {
		res.ExitCode, res.Err = exitStatus(err)
	}
	logger.Event("capture", "cmd", res.Cmd, "exit_code", res.ExitCode, "timed_out", res.TimedOut)
	return res
}

func (o *OS) Interactive(ctx context.Context, c Cmd) Result {
	res := Result{Cmd: c.String()}
	if _, err := exec.LookPath(c.Name); err != nil {
		res.NotFound = true
		res.ExitCode = -1
		return res
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdin = o.Stdin
	cmd.Stdout = o.Stdout
	cmd.Stderr = o.Stderr

	res.ExitCode, res.Err = exitStatus(cmd.Run())
	logger.Event("interactive", "cmd", res.Cmd, "exit_code", res.ExitCode)
	return res
}

// exitStatus maps a Run error to an exit code. A non-zero exit is not an
// error; failing to start is.
func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
