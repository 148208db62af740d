package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jbweber/palforge/internal/compose"
	"github.com/jbweber/palforge/internal/config"
	"github.com/jbweber/palforge/internal/log"
	"github.com/jbweber/palforge/internal/secret"
	"github.com/jbweber/palforge/internal/shell"
)

// passwordLength is the length of generated database passwords.
const passwordLength = 32

// ErrNotInstalled is returned by Uninstall when no compose file exists.
var ErrNotInstalled = errors.New("no installation found")

// Result summarizes an installation.
type Result struct {
	InstallDir        string   `json:"install_dir" yaml:"install_dir"`
	ComposeFile       string   `json:"compose_file" yaml:"compose_file"`
	URL               string   `json:"url" yaml:"url"`
	Services          []string `json:"services" yaml:"services"`
	PasswordGenerated bool     `json:"password_generated" yaml:"password_generated"`
	Tunnel            bool     `json:"tunnel" yaml:"tunnel"`
}

// Installer writes the compose file and drives docker compose.
type Installer struct {
	runner   shell.Runner
	generate func(n int) (secret.Value, error)
	host     string
}

// NewInstaller returns an installer that runs docker through r. host is used
// in the reported URL when no domain is configured.
func NewInstaller(r shell.Runner, host string) *Installer {
	if host == "" {
		host = "localhost"
	}
	return &Installer{runner: r, generate: secret.Generate, host: host}
}

// ComposePath returns the compose file location for an install directory.
func ComposePath(installDir string) string {
	return filepath.Join(installDir, compose.FileName)
}

// Install writes the compose file and starts the stack. cfg is not modified;
// a generated database password is only written to the compose file.
func (i *Installer) Install(ctx context.Context, cfg *config.AppConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c := *cfg
	res := &Result{
		InstallDir:  c.InstallDir,
		ComposeFile: ComposePath(c.InstallDir),
		Tunnel:      !c.TunnelToken.IsZero(),
	}

	if c.DBPassword.IsZero() {
		pw, err := i.generate(passwordLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate database password: %w", err)
		}
		c.DBPassword = pw
		res.PasswordGenerated = true
	}

	project, err := BuildProject(&c)
	if err != nil {
		return nil, err
	}
	res.Services = project.ServiceNames()

	if err := compose.Write(res.ComposeFile, project); err != nil {
		return nil, err
	}
	log.Okf("Wrote %s", res.ComposeFile)

	log.Infof("Starting %d services", len(res.Services))
	if _, err := i.compose(ctx, res.ComposeFile, "up", "-d"); err != nil {
		return nil, fmt.Errorf("failed to start stack: %w", err)
	}

	res.URL = PublicURL(&c, i.host)
	log.Okf("NocoDB is starting at %s", res.URL)
	return res, nil
}

// Uninstall stops the stack in installDir. With volumes set, named volumes
// are removed as well, which deletes all data.
func (i *Installer) Uninstall(ctx context.Context, installDir string, volumes bool) error {
	path := ComposePath(installDir)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w in %s", ErrNotInstalled, installDir)
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	args := []string{"down", "--remove-orphans"}
	if volumes {
		args = append(args, "--volumes")
	}
	if _, err := i.compose(ctx, path, args...); err != nil {
		return fmt.Errorf("failed to stop stack: %w", err)
	}
	if volumes {
		log.Okf("Stack and volumes removed")
	} else {
		log.Okf("Stack stopped; volumes kept")
	}
	return nil
}

func (i *Installer) compose(ctx context.Context, file string, args ...string) (string, error) {
	full := append([]string{"compose", "-f", file, "-p", ProjectName}, args...)
	return i.runner.Run(ctx, "docker", full...)
}
