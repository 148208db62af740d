package wizard

import (
	"strings"

	"github.com/jbweber/palforge/internal/config"
	"github.com/jbweber/palforge/internal/prompt"
	"github.com/jbweber/palforge/internal/secret"
)

// CollectApp asks for the NocoDB stack parameters. A database password left
// unset here is generated by the installer.
func CollectApp(p *prompt.Prompter, defaults config.AppConfig) (*config.AppConfig, error) {
	cfg := defaults
	cfg.Normalize()

	var err error
	if cfg.InstallDir, err = p.String("Install directory", cfg.InstallDir); err != nil {
		return nil, err
	}
	if cfg.Domain, err = p.String("Public domain (empty to serve on a plain port)", cfg.Domain); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Domain) != "" {
		if cfg.ACMEEmail, err = p.String("Let's Encrypt email", cfg.ACMEEmail); err != nil {
			return nil, err
		}
	} else {
		if cfg.PublicPort, err = p.PositiveInt("app.public_port", "Public port", cfg.PublicPort); err != nil {
			return nil, err
		}
	}

	if cfg.DBName, err = p.String("Database name", cfg.DBName); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = p.String("Database user", cfg.DBUser); err != nil {
		return nil, err
	}

	if cfg.DBPassword.IsZero() && !p.AssumeDefaults() {
		generate, err := p.Confirm("Generate a database password?", true)
		if err != nil {
			return nil, err
		}
		if !generate {
			if cfg.DBPassword, err = p.Password("app.db_password", "Database password"); err != nil {
				return nil, err
			}
		}
	}

	if cfg.TunnelToken.IsZero() && !p.AssumeDefaults() {
		token, err := p.String("Cloudflare tunnel token (empty to skip)", "")
		if err != nil {
			return nil, err
		}
		cfg.TunnelToken = secret.New(token)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
