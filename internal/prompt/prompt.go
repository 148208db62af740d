// Package prompt asks the operator for values on a terminal.
//
// Every question shows its default in brackets; an empty answer takes it.
// Answers are validated once: an invalid answer is returned as an error and
// the caller is expected to stop. There is no retry loop.
package prompt

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/jbweber/palforge/internal/config"
	"github.com/jbweber/palforge/internal/secret"
)

// ErrAborted is returned when the operator declines a confirmation or closes
// the input stream.
var ErrAborted = errors.New("aborted by operator")

// PasswordReader reads one line without echo.
type PasswordReader func() ([]byte, error)

// Prompter asks questions on out and reads answers from in.
type Prompter struct {
	in             *bufio.Reader
	out            io.Writer
	readPassword   PasswordReader
	assumeDefaults bool
}

// Option configures a Prompter.
type Option func(*Prompter)

// WithPasswordReader overrides how hidden input is read.
func WithPasswordReader(fn PasswordReader) Option {
	return func(p *Prompter) { p.readPassword = fn }
}

// WithAssumeDefaults answers every question with its default without reading
// input.
func WithAssumeDefaults(yes bool) Option {
	return func(p *Prompter) { p.assumeDefaults = yes }
}

// New creates a prompter. Hidden input falls back to plain line reads unless
// a PasswordReader is supplied.
func New(in io.Reader, out io.Writer, opts ...Option) *Prompter {
	p := &Prompter{
		in:  bufio.NewReader(in),
		out: out,
	}
	p.readPassword = func() ([]byte, error) {
		line, err := p.readLine()
		return []byte(line), err
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Terminal creates a prompter on stdin/stdout that reads passwords without
// echo when stdin is a terminal.
func Terminal(opts ...Option) *Prompter {
	var base []Option
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		base = append(base, WithPasswordReader(func() ([]byte, error) {
			return term.ReadPassword(fd)
		}))
	}
	return New(os.Stdin, os.Stdout, append(base, opts...)...)
}

// AssumeDefaults reports whether the prompter answers with defaults.
func (p *Prompter) AssumeDefaults() bool { return p.assumeDefaults }

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrAborted
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ask prints the question and returns the trimmed answer or def.
func (p *Prompter) ask(label, def string) (string, error) {
	if p.assumeDefaults {
		fmt.Fprintf(p.out, "%s: %s\n", label, def)
		return def, nil
	}
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	answer, err := p.readLine()
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// String asks for free text.
func (p *Prompter) String(label, def string) (string, error) {
	return p.ask(label, def)
}

// Validated asks for text and checks it with validate.
func (p *Prompter) Validated(label, def string, validate func(string) error) (string, error) {
	answer, err := p.ask(label, def)
	if err != nil {
		return "", err
	}
	if err := validate(answer); err != nil {
		return "", err
	}
	return answer, nil
}

// PositiveInt asks for an integer greater than zero.
func (p *Prompter) PositiveInt(field, label string, def int) (int, error) {
	d := ""
	if def > 0 {
		d = strconv.Itoa(def)
	}
	answer, err := p.ask(label, d)
	if err != nil {
		return 0, err
	}
	return config.ParsePositiveInt(field, answer)
}

// IPv4 asks for a dotted-quad IPv4 address.
func (p *Prompter) IPv4(field, label, def string) (string, error) {
	return p.Validated(label, def, func(s string) error { return config.ValidateIPv4(field, s) })
}

// Prefix asks for a CIDR prefix length between 0 and 32.
func (p *Prompter) Prefix(field, label string, def int) (int, error) {
	answer, err := p.ask(label, strconv.Itoa(def))
	if err != nil {
		return 0, err
	}
	return config.ParsePrefix(field, answer)
}

// Choice asks the operator to pick one of options by number or by value.
func (p *Prompter) Choice(field, label string, options []string, def string) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("no options available for %s", field)
	}
	if !p.assumeDefaults {
		for i, o := range options {
			fmt.Fprintf(p.out, "  %d) %s\n", i+1, o)
		}
	}
	answer, err := p.ask(label, def)
	if err != nil {
		return "", err
	}
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(options) {
		return options[n-1], nil
	}
	for _, o := range options {
		if o == answer {
			return o, nil
		}
	}
	return "", &config.FieldError{Field: field, Value: answer, Reason: "must be one of " + strings.Join(options, ", ")}
}

// Confirm asks a yes/no question.
func (p *Prompter) Confirm(label string, def bool) (bool, error) {
	d := "y/N"
	if def {
		d = "Y/n"
	}
	if p.assumeDefaults {
		fmt.Fprintf(p.out, "%s [%s]: yes\n", label, d)
		return true, nil
	}
	fmt.Fprintf(p.out, "%s [%s]: ", label, d)
	answer, err := p.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return false, &config.FieldError{Field: "confirmation", Value: answer, Reason: "answer yes or no"}
	}
}

// Password asks for a secret twice without echo. Empty input and a
// mismatched confirmation are errors.
func (p *Prompter) Password(field, label string) (secret.Value, error) {
	if p.assumeDefaults {
		return secret.Value{}, &config.FieldError{Field: field, Reason: "cannot be prompted for in non-interactive mode"}
	}

	fmt.Fprintf(p.out, "%s: ", label)
	one, err := p.readPassword()
	fmt.Fprintln(p.out)
	if err != nil {
		return secret.Value{}, err
	}
	if len(one) == 0 {
		return secret.Value{}, &config.FieldError{Field: field, Reason: "must not be empty"}
	}

	fmt.Fprintf(p.out, "Confirm %s: ", strings.ToLower(label))
	two, err := p.readPassword()
	fmt.Fprintln(p.out)
	if err != nil {
		return secret.Value{}, err
	}
	if !bytes.Equal(one, two) {
		return secret.Value{}, &config.FieldError{Field: field, Reason: "passwords do not match"}
	}
	return secret.New(string(one)), nil
}
