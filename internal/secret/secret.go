// Package secret holds credential material that must never reach logs or
// summaries. A Value formats as "[redacted]" under every fmt verb and every
// encoder except YAML decoding; the plaintext is only available via Reveal.
package secret

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"

	"gopkg.in/yaml.v3"
)

// Redacted is printed in place of a secret.
const Redacted = "[redacted]"

// alphabet used for generated passwords. Shell and YAML special characters are
// excluded so generated values survive copy/paste.
const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

// Value wraps a secret string.
type Value struct {
	v string
}

// New wraps s.
func New(s string) Value { return Value{v: s} }

// Reveal returns the plaintext.
func (s Value) Reveal() string { return s.v }

// IsZero reports whether no secret is set.
func (s Value) IsZero() bool { return s.v == "" }

// Equal compares two secrets.
func (s Value) Equal(o Value) bool { return s.v == o.v }

func (s Value) String() string   { return s.redacted() }
func (s Value) GoString() string { return s.redacted() }

// Format makes %v, %s, %q, %+v and friends all print the redacted form.
func (s Value) Format(f fmt.State, verb rune) {
	out := s.redacted()
	if verb == 'q' {
		out = fmt.Sprintf("%q", out)
	}
	_, _ = f.Write([]byte(out))
}

// MarshalJSON emits the redacted form.
func (s Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.redacted())
}

// MarshalYAML emits the redacted form. Files that need the plaintext must
// copy Reveal() into a plain string field.
func (s Value) MarshalYAML() (interface{}, error) {
	return s.redacted(), nil
}

// UnmarshalYAML reads a plaintext scalar.
func (s *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("secret must be a string: %w", err)
	}
	s.v = raw
	return nil
}

func (s Value) redacted() string {
	if s.v == "" {
		return ""
	}
	return Redacted
}

// Generate returns a random secret of n characters drawn from crypto/rand.
func Generate(n int) (Value, error) {
	if n <= 0 {
		return Value{}, fmt.Errorf("secret length must be > 0, got %d", n)
	}
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return Value{}, fmt.Errorf("failed to read random bytes: %w", err)
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return New(string(buf)), nil
}
