package source

import (
	"context"
	"errors"
	"os/exec"
	"sync"
)

// call records one Run invocation.
type call struct {
	name string
	args []string
}

// fakeRunner answers commands from a handler and records every call.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []call
	handler func(name string, args []string) ([]byte, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: args})
	f.mu.Unlock()
	return f.handler(name, args)
}

// argAfter returns the argument following flag, or "".
func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func notFound(name string) error {
	return &CommandError{Name: name, Err: &exec.Error{Name: name, Err: exec.ErrNotFound}}
}

func failed(name, stderr string) error {
	return &CommandError{Name: name, Stderr: stderr, Err: errExit}
}

var errExit = errors.New("exit status 1")
