// Package proctest provides a scripted proc.Runner for tests.
package proctest

import (
	"context"
	"sync"

	"github.com/protocollar/stackup/internal/proc"
)

// Fake answers commands from a script keyed by command line
// ("gh auth status"). Results queued for the same key are returned in order;
// the last one repeats. Unscripted commands report NotFound.
type Fake struct {
	mu      sync.Mutex
	script  map[string][]proc.Result
	Calls   []proc.Cmd
	Handler func(proc.Cmd) (proc.Result, bool)
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{script: make(map[string][]proc.Result)}
}

// On queues a result for the given command line.
func (f *Fake) On(cmdline string, res proc.Result) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script[cmdline] = append(f.script[cmdline], res)
	return f
}

// OK queues a successful result with stdout.
func (f *Fake) OK(cmdline, stdout string) *Fake {
	return f.On(cmdline, proc.Result{Stdout: stdout})
}

// Fail queues a non-zero exit.
func (f *Fake) Fail(cmdline string, code int, stderr string) *Fake {
	return f.On(cmdline, proc.Result{ExitCode: code, Stderr: stderr})
}

// Called reports how many times cmdline was run.
func (f *Fake) Called(cmdline string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c.String() == cmdline {
			n++
		}
	}
	return n
}

func (f *Fake) Capture(_ context.Context, c proc.Cmd) proc.Result {
	return f.run(c)
}

func (f *Fake) Interactive(_ context.Context, c proc.Cmd) proc.Result {
	return f.run(c)
}

func (f *Fake) run(c proc.Cmd) proc.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, c)

	key := c.String()
	if f.Handler != nil {
		if res, ok := f.Handler(c); ok {
			res.Cmd = key
			return res
		}
	}
	queue := f.script[key]
	if len(queue) == 0 {
		return proc.Result{Cmd: key, NotFound: true, ExitCode: -1}
	}
	res := queue[0]
	if len(queue) > 1 {
		f.script[key] = queue[1:]
	}
	res.Cmd = key
	return res
}
