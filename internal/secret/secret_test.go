package secret

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestValueNeverPrintsPlaintext(t *testing.T) {
	s := New("hunter2")

	formats := []string{"%v", "%s", "%+v", "%#v", "%q"}
	for _, f := range formats {
		got := fmt.Sprintf(f, s)
		if strings.Contains(got, "hunter2") {
			t.Errorf("Sprintf(%q) leaked plaintext: %s", f, got)
		}
	}

	// Embedded in a struct too.
	type wrapper struct {
		User     string
		Password Value
	}
	got := fmt.Sprintf("%+v", wrapper{User: "admin", Password: s})
	if strings.Contains(got, "hunter2") {
		t.Errorf("struct formatting leaked plaintext: %s", got)
	}

	data, err := json.Marshal(struct{ P Value }{s})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Errorf("json leaked plaintext: %s", data)
	}

	out, err := yaml.Marshal(struct {
		P Value `yaml:"p"`
	}{s})
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	if strings.Contains(string(out), "hunter2") {
		t.Errorf("yaml leaked plaintext: %s", out)
	}

	if s.Reveal() != "hunter2" {
		t.Errorf("Reveal() = %q", s.Reveal())
	}
}

func TestValueZero(t *testing.T) {
	var s Value
	if !s.IsZero() {
		t.Error("zero Value should report IsZero")
	}
	if s.String() != "" {
		t.Errorf("zero Value String() = %q, want empty", s.String())
	}
}

func TestUnmarshalYAML(t *testing.T) {
	var cfg struct {
		Password Value `yaml:"password"`
	}
	if err := yaml.Unmarshal([]byte("password: s3cr3t!\n"), &cfg); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if cfg.Password.Reveal() != "s3cr3t!" {
		t.Errorf("Reveal() = %q, want s3cr3t!", cfg.Password.Reveal())
	}

	if err := yaml.Unmarshal([]byte("password: [a, b]\n"), &cfg); err == nil {
		t.Error("expected error for non-scalar secret")
	}
}

func TestGenerate(t *testing.T) {
	a, err := Generate(24)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	b, err := Generate(24)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(a.Reveal()) != 24 {
		t.Errorf("len = %d, want 24", len(a.Reveal()))
	}
	if a.Equal(b) {
		t.Error("two generated secrets are equal")
	}
	for _, c := range a.Reveal() {
		if !strings.ContainsRune(alphabet, c) {
			t.Errorf("unexpected character %q", c)
		}
	}

	if _, err := Generate(0); err == nil {
		t.Error("expected error for zero length")
	}
}
