// Package log provides the labeled console output used by every palforge
// command. Output is colorized only when the destination is a terminal.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// ANSI escape codes.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	cyan   = "\033[36m"
	green  = "\033[32m"
	yellow = "\033[33m"
	red    = "\033[31m"
)

var (
	mu     sync.Mutex
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetOutput redirects informational and error output. It returns a function
// that restores the previous writers.
func SetOutput(out, errOut io.Writer) (restore func()) {
	mu.Lock()
	defer mu.Unlock()
	prevOut, prevErr := stdout, stderr
	stdout, stderr = out, errOut
	return func() {
		mu.Lock()
		defer mu.Unlock()
		stdout, stderr = prevOut, prevErr
	}
}

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func colorize(w io.Writer, color, msg string) string {
	if IsTerminal(w) {
		return color + bold + msg + reset
	}
	return msg
}

func emit(toErr bool, color, label, msg string) {
	mu.Lock()
	defer mu.Unlock()
	w := stdout
	if toErr {
		w = stderr
	}
	fmt.Fprintf(w, "%s %s\n", colorize(w, color, label), msg)
}

func Info(msg string)  { emit(false, cyan, "[+]", msg) }
func Ok(msg string)    { emit(false, green, "[✓]", msg) }
func Skip(msg string)  { emit(false, yellow, "[=]", msg) }
func Warn(msg string)  { emit(true, yellow, "[-]", msg) }
func Error(msg string) { emit(true, red, "[!]", msg) }

func Infof(format string, args ...any)  { Info(fmt.Sprintf(format, args...)) }
func Okf(format string, args ...any)    { Ok(fmt.Sprintf(format, args...)) }
func Skipf(format string, args ...any)  { Skip(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { Warn(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { Error(fmt.Sprintf(format, args...)) }
