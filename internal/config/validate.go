package config

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/crypto/ssh"
)

// FieldError reports an invalid value for a named configuration field.
type FieldError struct {
	Field  string
	Value  string
	Reason string
}

func (e *FieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func fieldErr(field, value, format string, args ...any) *FieldError {
	return &FieldError{Field: field, Value: value, Reason: fmt.Sprintf(format, args...)}
}

var (
	// namePattern matches Proxmox VM names (DNS label style).
	namePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

	sha256Pattern = regexp.MustCompile(`^[a-f0-9]{64}$`)
)

// ParsePositiveInt parses s as an integer greater than zero.
func ParsePositiveInt(field, s string) (int, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fieldErr(field, s, "must be a whole number")
	}
	if n <= 0 {
		return 0, fieldErr(field, s, "must be greater than 0")
	}
	return n, nil
}

// ValidateIPv4 checks that s is a dotted-quad IPv4 address.
func ValidateIPv4(field, s string) error {
	s = strings.TrimSpace(s)
	if strings.Count(s, ".") != 3 {
		return fieldErr(field, s, "must be a dotted-quad IPv4 address")
	}
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		return fieldErr(field, s, "must be a dotted-quad IPv4 address")
	}
	return nil
}

// ParsePrefix parses s as a CIDR prefix length between 0 and 32.
func ParsePrefix(field, s string) (int, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "/")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fieldErr(field, s, "must be a number between 0 and 32")
	}
	if n < 0 || n > 32 {
		return 0, fieldErr(field, s, "must be between 0 and 32")
	}
	return n, nil
}

// ValidateCIDR checks an "a.b.c.d/n" IPv4 address with prefix.
func ValidateCIDR(field, s string) error {
	addr, prefix, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return fieldErr(field, s, "must be an IPv4 address with prefix, e.g. 10.0.0.10/24")
	}
	if err := ValidateIPv4(field, addr); err != nil {
		return err
	}
	if _, err := ParsePrefix(field, prefix); err != nil {
		return err
	}
	return nil
}

// ValidateName checks a VM name.
func ValidateName(field, s string) error {
	if s == "" {
		return fieldErr(field, s, "is required")
	}
	if !namePattern.MatchString(s) {
		return fieldErr(field, s, "must start and end with a letter or digit and contain only lowercase letters, digits or hyphens (max 63)")
	}
	return nil
}

// ValidateSSHKey checks an authorized_keys style public key.
func ValidateSSHKey(field, key string) error {
	if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
		return fieldErr(field, truncate(key, 32), "not a valid SSH public key: %v", err)
	}
	return nil
}

// ParseAuthorizedKeys extracts the keys of an authorized_keys file, skipping
// blank lines and comments. Every remaining line must be a valid key.
func ParseAuthorizedKeys(field string, data []byte) ([]string, error) {
	var keys []string
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := ValidateSSHKey(fmt.Sprintf("%s line %d", field, i+1), line); err != nil {
			return nil, err
		}
		keys = append(keys, line)
	}
	if len(keys) == 0 {
		return nil, fieldErr(field, "", "no SSH public keys found")
	}
	return keys, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
