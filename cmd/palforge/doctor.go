package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jbweber/palforge/internal/config"
	"github.com/jbweber/palforge/internal/preflight"
)

var doctorGuest bool

func init() {
	doctorCmd.Flags().BoolVar(&doctorGuest, "guest", false, "check a VM for the app installer instead of the Proxmox host")
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check prerequisites",
	Long: `Check that this machine can run palforge.

On a Proxmox host: root privileges, qm/pvesm/pvesh, API reachability and a
writable image cache. With --guest: root privileges, docker, the compose
plugin and a reachable docker daemon.

Failed checks include a hint on how to fix them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		checker := preflight.New(runner)

		var results []preflight.CheckResult
		if doctorGuest {
			results = checker.GuestChecks(cmd.Context())
		} else {
			dir := config.DefaultCacheDir
			if f, err := loadConfig(); err == nil {
				dir = f.VM.Image.CacheDir
			}
			results = checker.HostChecks(cmd.Context(), dir)
		}

		formatter, err := newFormatter()
		if err != nil {
			return err
		}
		if err := render(formatter.FormatChecks, results); err != nil {
			return err
		}
		if preflight.Failed(results) {
			return errors.New("some checks failed")
		}
		return nil
	},
}
