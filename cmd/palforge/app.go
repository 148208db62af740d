package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jbweber/palforge/internal/app"
	"github.com/jbweber/palforge/internal/config"
	"github.com/jbweber/palforge/internal/log"
	"github.com/jbweber/palforge/internal/preflight"
	"github.com/jbweber/palforge/internal/wizard"
)

var appCmd = &cobra.Command{
	Use:   "app",
	Short: "Install the NocoDB stack",
	Long: `Install or remove the NocoDB application stack inside a VM.

The stack is NocoDB with Postgres and Redis, Traefik with a Let's Encrypt
certificate when a domain is configured, and an optional Cloudflare Tunnel
connector. It is described by a compose file in the install directory.`,
}

var (
	uninstallDir     string
	uninstallVolumes bool
)

func init() {
	appUninstallCmd.Flags().StringVar(&uninstallDir, "dir", "", "install directory (default from config)")
	appUninstallCmd.Flags().BoolVar(&uninstallVolumes, "volumes", false, "also delete the database and NocoDB volumes")

	appCmd.AddCommand(appInstallCmd)
	appCmd.AddCommand(appUninstallCmd)
}

func requireGuest() error {
	checker := preflight.New(runner)
	if err := checker.RequireRoot(); err != nil {
		return err
	}
	return checker.RequireCommands(preflight.GuestCommands...)
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return ""
	}
	return h
}

var appInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install and start the stack",
	Long: `Install and start the NocoDB stack.

The compose file is written with mode 0600 because it holds the database
password in plain text. A password is generated unless one is supplied.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireGuest(); err != nil {
			return err
		}
		f, err := loadConfig()
		if err != nil {
			return err
		}

		p := newPrompter()
		cfg, err := wizard.CollectApp(p, f.App)
		if err != nil {
			return err
		}

		log.Infof("Installing into %s", cfg.InstallDir)
		if cfg.Domain != "" {
			log.Infof("  https://%s (certificate for %s)", cfg.Domain, cfg.ACMEEmail)
		} else {
			log.Infof("  plain HTTP on port %d", cfg.PublicPort)
		}
		if !cfg.TunnelToken.IsZero() {
			log.Info("  with Cloudflare Tunnel")
		}
		if err := confirm(p, "Install the stack?", true); err != nil {
			return err
		}

		res, err := app.NewInstaller(runner, hostname()).Install(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("failed to install: %w", err)
		}
		formatter, err := newFormatter()
		if err != nil {
			return err
		}
		return render(formatter.FormatInstall, res)
	},
}

var appUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop and remove the stack",
	Long: `Stop and remove the stack's containers.

Volumes are kept unless --volumes is given, in which case all data is lost.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireGuest(); err != nil {
			return err
		}
		dir := uninstallDir
		if dir == "" {
			f, err := loadConfig()
			if err != nil {
				return err
			}
			dir = f.App.InstallDir
		}
		if dir == "" {
			dir = config.DefaultInstallDir
		}

		question := fmt.Sprintf("Stop the stack in %s?", dir)
		if uninstallVolumes {
			question = fmt.Sprintf("Stop the stack in %s and DELETE all its data?", dir)
		}
		if err := confirm(newPrompter(), question, false); err != nil {
			return err
		}
		return app.NewInstaller(runner, "").Uninstall(cmd.Context(), dir, uninstallVolumes)
	},
}
