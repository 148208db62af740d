package config

import (
	"errors"
	"strings"
	"testing"
)

func TestParsePositiveInt(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"2", 2, false},
		{" 16 ", 16, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"four", 0, true},
		{"2.5", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePositiveInt("cores", tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePositiveInt(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePositiveInt(%q) = %d, want %d", tt.in, got, tt.want)
		}
		if err != nil {
			var fe *FieldError
			if !errors.As(err, &fe) || fe.Field != "cores" {
				t.Errorf("error %v does not name the field", err)
			}
		}
	}
}

func TestValidateIPv4(t *testing.T) {
	valid := []string{"10.0.0.1", "192.168.100.254", "0.0.0.0", "255.255.255.255"}
	invalid := []string{"", "10.0.0", "10.0.0.1.1", "256.1.1.1", "a.b.c.d", "::1", "10.0.0.1/24", "010.0.0.1"}

	for _, s := range valid {
		if err := ValidateIPv4("gateway", s); err != nil {
			t.Errorf("ValidateIPv4(%q) unexpected error: %v", s, err)
		}
	}
	for _, s := range invalid {
		if err := ValidateIPv4("gateway", s); err == nil {
			t.Errorf("ValidateIPv4(%q) expected error", s)
		}
	}
}

func TestParsePrefix(t *testing.T) {
	for _, s := range []string{"0", "24", "/16", "32"} {
		if _, err := ParsePrefix("prefix", s); err != nil {
			t.Errorf("ParsePrefix(%q) unexpected error: %v", s, err)
		}
	}
	for _, s := range []string{"-1", "33", "x", ""} {
		if _, err := ParsePrefix("prefix", s); err == nil {
			t.Errorf("ParsePrefix(%q) expected error", s)
		}
	}
}

func TestValidateCIDR(t *testing.T) {
	if err := ValidateCIDR("address", "10.1.2.3/24"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, s := range []string{"10.1.2.3", "10.1.2/24", "10.1.2.3/40"} {
		if err := ValidateCIDR("address", s); err == nil {
			t.Errorf("ValidateCIDR(%q) expected error", s)
		}
	}
}

func TestParseAuthorizedKeys(t *testing.T) {
	data := []byte("# comment\n\n" + testSSHKey + "\n")
	keys, err := ParseAuthorizedKeys("keys", data)
	if err != nil {
		t.Fatalf("ParseAuthorizedKeys() error = %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("got %d keys, want 1", len(keys))
	}

	if _, err := ParseAuthorizedKeys("keys", []byte("# only comments\n")); err == nil {
		t.Error("expected error for file without keys")
	}

	_, err = ParseAuthorizedKeys("keys", []byte(testSSHKey+"\nnot-a-key\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected error naming line 2, got %v", err)
	}
}

func TestFieldError(t *testing.T) {
	err := &FieldError{Field: "cores", Value: "x", Reason: "must be a whole number"}
	if got := err.Error(); got != `invalid cores "x": must be a whole number` {
		t.Errorf("Error() = %q", got)
	}
	err = &FieldError{Field: "auth.password", Reason: "is required"}
	if got := err.Error(); got != "invalid auth.password: is required" {
		t.Errorf("Error() = %q", got)
	}
}
