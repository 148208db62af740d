package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/palforge/internal/log"
	"github.com/jbweber/palforge/internal/preflight"
	"github.com/jbweber/palforge/internal/progress"
	"github.com/jbweber/palforge/internal/pve"
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect storage",
}

var storageContent string

func init() {
	storageStatusCmd.Flags().StringVar(&storageContent, "content", "", "only pools accepting this content type (images, iso, ...)")
	storageCmd.AddCommand(storageStatusCmd)
}

var storageStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show storage status overview",
	Long: `Display all storage pools with type, state and usage as reported by
pvesm, followed by a total for active pools in table output.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := preflight.New(runner).RequireCommands("pvesm"); err != nil {
			return err
		}
		pools, err := pve.New(runner).Storages(cmd.Context(), storageContent)
		if err != nil {
			return err
		}
		formatter, err := newFormatter()
		if err != nil {
			return err
		}
		if err := render(formatter.FormatStorage, pools); err != nil {
			return err
		}

		if outputFormat == "table" && len(pools) > 0 {
			var total, avail int64
			active := 0
			for _, p := range pools {
				if !p.Active() {
					continue
				}
				active++
				total += p.Total
				avail += p.Available
			}
			fmt.Println()
			log.Infof("%d of %d pools active, %s free of %s",
				active, len(pools), progress.FormatBytes(avail*1024), progress.FormatBytes(total*1024))
		}
		return nil
	},
}
