package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jbweber/palforge/internal/config"
	"github.com/jbweber/palforge/internal/log"
	"github.com/jbweber/palforge/internal/output"
	"github.com/jbweber/palforge/internal/progress"
	"github.com/jbweber/palforge/internal/prompt"
	"github.com/jbweber/palforge/internal/shell"
)

var (
	version = "dev"
	commit  = "unknown"
)

// runner executes every external tool.
var runner shell.Runner = &shell.ExecRunner{}

// Global flags
var (
	configPath   string
	assumeYes    bool
	outputFormat string
	noHeaders    bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err, os.Stderr))
}

// exitCode maps a command error to the process exit status. An operator
// abort is a clean exit.
func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, prompt.ErrAborted):
		fmt.Fprintln(stderr, "Aborted.")
		return 0
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

var rootCmd = &cobra.Command{
	Use:   "palforge",
	Short: "palforge - Proxmox VM provisioning and NocoDB stack installer",
	Long: `palforge provisions virtual machines on a Proxmox VE host from cloud
images using cloud-init, and installs the NocoDB application stack
(Postgres, Redis, Traefik, optional Cloudflare Tunnel) with Docker Compose.

Parameters are collected interactively. Defaults come from the config file
(` + config.DefaultPath + ` unless --config is given).`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return output.ValidateFormat(outputFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "defaults file")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "accept every default and skip confirmations")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, yaml, json)")
	rootCmd.PersistentFlags().BoolVar(&noHeaders, "no-headers", false, "omit table headers")

	rootCmd.AddCommand(vmCmd)
	rootCmd.AddCommand(imageCmd)
	rootCmd.AddCommand(storageCmd)
	rootCmd.AddCommand(appCmd)
	rootCmd.AddCommand(doctorCmd)
}

func loadConfig() (*config.File, error) {
	f, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", configPath, err)
	}
	return f, nil
}

func newPrompter() *prompt.Prompter {
	return prompt.Terminal(prompt.WithAssumeDefaults(assumeYes))
}

// confirm asks before a change; a "no" aborts the command.
func confirm(p *prompt.Prompter, question string, def bool) error {
	ok, err := p.Confirm(question, def)
	if err != nil {
		return err
	}
	if !ok {
		return prompt.ErrAborted
	}
	return nil
}

func newFormatter() (output.Formatter, error) {
	return output.NewFormatter(output.Options{
		Format:    output.Format(outputFormat),
		NoHeaders: noHeaders,
	})
}

// render formats v with fn and writes it to stdout.
func render[T any](fn func(T) (string, error), v T) error {
	out, err := fn(v)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(out)
	return nil
}

// newProgress returns a progress callback drawing a bar on stderr, redrawn in
// place on a terminal, and a function that ends the bar. The bar also ends
// by itself once the transfer completes.
func newProgress(label string) (progress.Func, func()) {
	bar := progress.NewBar(os.Stderr, label, log.IsTerminal(os.Stderr))
	return func(written, total int64) {
		bar.Update(written, total)
		if total > 0 && written >= total {
			bar.Done()
		}
	}, bar.Done
}
