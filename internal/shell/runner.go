// Package shell runs the external command-line tools palforge drives (qm,
// pvesm, pvesh, docker). Every call goes through a Runner so callers can be
// tested without touching a real host.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExitError is returned when a command exits non-zero. It carries the
// tool's own error text.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Command, msg)
}

// ExecRunner runs commands on the local host.
type ExecRunner struct {
	// Env is appended to the inherited environment.
	Env []string
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // callers pass fixed tool names
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return stdout.String(), fmt.Errorf("%s interrupted: %w", name, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.String(), &ExitError{
			Command: Format(name, args...),
			Code:    exitErr.ExitCode(),
			Stderr:  stderr.String(),
		}
	}
	return stdout.String(), fmt.Errorf("failed to run %s: %w", name, err)
}

// Format renders a command line for display, quoting arguments that need it.
// The value following any flag whose name contains "password" is masked.
func Format(name string, args ...string) string {
	var b strings.Builder
	b.WriteString(name)
	for i, a := range args {
		b.WriteByte(' ')
		if i > 0 && isSecretFlag(args[i-1]) {
			b.WriteString("[redacted]")
			continue
		}
		if a == "" || strings.ContainsAny(a, " \t\"'$;&|") {
			fmt.Fprintf(&b, "%q", a)
		} else {
			b.WriteString(a)
		}
	}
	return b.String()
}

func isSecretFlag(arg string) bool {
	return strings.HasPrefix(arg, "-") && strings.Contains(strings.ToLower(arg), "password")
}

// Stderr extracts the tool's error output from err, if any.
func Stderr(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Stderr
	}
	return ""
}
