// Package preflight checks the host before palforge changes anything: the
// privilege level and the external commands each workflow drives.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/jbweber/palforge/internal/shell"
)

// ErrNotRoot is returned when a workflow needs root and the process lacks it.
var ErrNotRoot = errors.New("must be run as root")

// Commands required by each workflow.
var (
	HostCommands  = []string{"qm", "pvesm", "pvesh"}
	GuestCommands = []string{"docker"}
)

// MissingCommandError reports an executable that is not on PATH.
type MissingCommandError struct {
	Name string
	Hint string
}

func (e *MissingCommandError) Error() string {
	return fmt.Sprintf("required command %q not found in PATH (%s)", e.Name, e.Hint)
}

// CheckResult holds the outcome of a single doctor check.
type CheckResult struct {
	Name     string `json:"name" yaml:"name"`
	OK       bool   `json:"ok" yaml:"ok"`
	Message  string `json:"message" yaml:"message"`
	HowToFix string `json:"how_to_fix,omitempty" yaml:"how_to_fix,omitempty"`
}

// Checker runs preflight checks. The zero value is not usable; use New.
type Checker struct {
	runner   shell.Runner
	lookPath func(string) (string, error)
	euid     func() int
}

// New returns a checker that probes tools through r.
func New(r shell.Runner) *Checker {
	return &Checker{runner: r, lookPath: exec.LookPath, euid: os.Geteuid}
}

// RequireRoot fails unless the effective user is root.
func (c *Checker) RequireRoot() error {
	if c.euid() != 0 {
		return fmt.Errorf("%w (try: sudo palforge ...)", ErrNotRoot)
	}
	return nil
}

// RequireCommands fails on the first name not found on PATH.
func (c *Checker) RequireCommands(names ...string) error {
	for _, name := range names {
		if _, err := c.lookPath(name); err != nil {
			return &MissingCommandError{Name: name, Hint: installHint(name)}
		}
	}
	return nil
}

// HostChecks reports on a Proxmox host: privileges, the Proxmox tools, API
// reachability and a writable image cache.
func (c *Checker) HostChecks(ctx context.Context, cacheDir string) []CheckResult {
	results := []CheckResult{c.checkRoot()}
	for _, name := range HostCommands {
		results = append(results, c.checkCommand(name))
	}
	results = append(results,
		c.checkRun(ctx, "proxmox api", "pvesh get /version succeeded",
			"Ensure pve-cluster is running: systemctl status pve-cluster", "pvesh", "get", "/version", "--output-format", "json"),
		checkWritable("image cache", cacheDir),
	)
	return results
}

// GuestChecks reports on a VM about to run the application stack.
func (c *Checker) GuestChecks(ctx context.Context) []CheckResult {
	results := []CheckResult{c.checkRoot()}
	for _, name := range GuestCommands {
		results = append(results, c.checkCommand(name))
	}
	results = append(results,
		c.checkRun(ctx, "docker compose", "docker compose plugin available",
			"sudo apt install docker-compose-plugin", "docker", "compose", "version"),
		c.checkRun(ctx, "docker daemon", "docker daemon reachable",
			"Start the daemon: sudo systemctl enable --now docker", "docker", "info", "--format", "{{.ServerVersion}}"),
	)
	return results
}

// Failed reports whether any result failed.
func Failed(results []CheckResult) bool {
	for _, r := range results {
		if !r.OK {
			return true
		}
	}
	return false
}

func (c *Checker) checkRoot() CheckResult {
	const name = "root privileges"
	if err := c.RequireRoot(); err != nil {
		return CheckResult{
			Name:     name,
			Message:  fmt.Sprintf("running as uid %d", c.euid()),
			HowToFix: "Re-run with sudo or as root.",
		}
	}
	return CheckResult{Name: name, OK: true, Message: "running as root"}
}

func (c *Checker) checkCommand(name string) CheckResult {
	path, err := c.lookPath(name)
	if err != nil {
		return CheckResult{
			Name:     name,
			Message:  fmt.Sprintf("%s not found in PATH", name),
			HowToFix: installHint(name),
		}
	}
	return CheckResult{Name: name, OK: true, Message: fmt.Sprintf("%s found", path)}
}

func (c *Checker) checkRun(ctx context.Context, name, okMsg, fix, bin string, args ...string) CheckResult {
	if _, err := c.lookPath(bin); err != nil {
		return CheckResult{
			Name:     name,
			Message:  fmt.Sprintf("%s not found; cannot check %s", bin, name),
			HowToFix: installHint(bin),
		}
	}
	if _, err := c.runner.Run(ctx, bin, args...); err != nil {
		return CheckResult{Name: name, Message: err.Error(), HowToFix: fix}
	}
	return CheckResult{Name: name, OK: true, Message: okMsg}
}

// checkWritable verifies dir can be created and written to.
func checkWritable(name, dir string) CheckResult {
	fail := func(err error) CheckResult {
		return CheckResult{
			Name:     name,
			Message:  fmt.Sprintf("cannot write to %s: %v", dir, err),
			HowToFix: "Check permissions and free space, or set image.cache_dir in the config file.",
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(err)
	}
	f, err := os.CreateTemp(dir, ".palforge-doctor-*")
	if err != nil {
		return fail(err)
	}
	f.Close()
	os.Remove(f.Name())
	return CheckResult{Name: name, OK: true, Message: fmt.Sprintf("%s is writable", filepath.Clean(dir))}
}

// installHint returns a human-friendly install hint for a known binary.
func installHint(bin string) string {
	hints := map[string]string{
		"qm":     "run palforge on a Proxmox VE node (qemu-server package)",
		"pvesm":  "run palforge on a Proxmox VE node (pve-manager package)",
		"pvesh":  "run palforge on a Proxmox VE node (pve-manager package)",
		"docker": "curl -fsSL https://get.docker.com | sh",
	}
	if hint, ok := hints[bin]; ok {
		return hint
	}
	return fmt.Sprintf("install %q and ensure it is on your PATH", bin)
}
