package pve

import (
	"context"
	"strings"
	"sync"

	"github.com/jbweber/palforge/internal/shell"
)

// fakeRunner records command lines and answers them from a table keyed by
// command line prefix. Unmatched commands succeed with empty output.
type fakeRunner struct {
	mu        sync.Mutex
	calls     []string
	responses []fakeResponse
}

type fakeResponse struct {
	prefix string
	out    string
	err    error
}

func (f *fakeRunner) on(prefix, out string, err error) *fakeRunner {
	f.responses = append(f.responses, fakeResponse{prefix: prefix, out: out, err: err})
	return f
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	line := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, line)
	for _, r := range f.responses {
		if strings.HasPrefix(line, r.prefix) {
			return r.out, r.err
		}
	}
	return "", nil
}

func exitErr(cmd, stderr string) error {
	return &shell.ExitError{Command: cmd, Code: 2, Stderr: stderr}
}
