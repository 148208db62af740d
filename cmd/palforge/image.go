package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/palforge/internal/config"
	"github.com/jbweber/palforge/internal/imagecache"
	"github.com/jbweber/palforge/internal/log"
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Manage the cloud image cache",
	Long: `Manage cached cloud images.

Each image is stored under its URL file name next to a .stamp file holding
the download time. An image is reused while its stamp is no older than
image.max_age_days.`,
}

var (
	cacheDir   string
	maxAgeDays int
	pullSHA256 string
)

func init() {
	imageCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "cache directory (default from config)")
	imageCmd.PersistentFlags().IntVar(&maxAgeDays, "max-age", -1, "days a cached image stays valid (default from config)")
	imagePullCmd.Flags().StringVar(&pullSHA256, "sha256", "", "expected SHA-256 of the image")

	imageCmd.AddCommand(imagePullCmd)
	imageCmd.AddCommand(imageListCmd)
	imageCmd.AddCommand(imagePruneCmd)
}

// imageSettings merges the image flags over the config file.
func imageSettings() (config.ImageConfig, error) {
	f, err := loadConfig()
	if err != nil {
		return config.ImageConfig{}, err
	}
	img := f.VM.Image
	if cacheDir != "" {
		img.CacheDir = cacheDir
	}
	if maxAgeDays >= 0 {
		img.MaxAgeDays = &maxAgeDays
	}
	return img, nil
}

var imagePullCmd = &cobra.Command{
	Use:   "pull [url]",
	Short: "Download an image into the cache",
	Long: `Download a cloud image into the cache unless a fresh copy is present.

Without a URL, the configured image is pulled.

Example:
  palforge image pull https://cloud-images.ubuntu.com/noble/current/noble-server-cloudimg-amd64.img`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := imageSettings()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			img.URL = args[0]
			img.SHA256 = ""
		}
		if pullSHA256 != "" {
			img.SHA256 = pullSHA256
		}
		img.Cache = nil
		if err := img.Validate(); err != nil {
			return err
		}

		onProgress, done := newProgress("Downloading " + img.FileName())
		defer done()
		cache := imagecache.New(img.CacheDir, imagecache.NewHTTPDownloader(), imagecache.WithProgress(onProgress))
		res, err := cache.Resolve(cmd.Context(), imagecache.Request{
			URL:        img.URL,
			MaxAgeDays: img.MaxAge(),
			SHA256:     img.SHA256,
		})
		if err != nil {
			return fmt.Errorf("failed to pull image: %w", err)
		}
		if res.Downloaded {
			log.Okf("Downloaded %s", res.Path)
		} else {
			log.Skipf("Cached image is fresh: %s", res.Path)
		}
		return nil
	},
}

var imageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached images",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := imageSettings()
		if err != nil {
			return err
		}
		entries, err := imagecache.New(img.CacheDir, nil).List(img.MaxAge())
		if err != nil {
			return fmt.Errorf("failed to list images: %w", err)
		}
		formatter, err := newFormatter()
		if err != nil {
			return err
		}
		return render(formatter.FormatImages, entries)
	},
}

var imagePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove stale and unstamped images",
	Long: `Remove images whose stamp is older than the maximum age or missing,
along with orphaned stamps and leftover partial downloads.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := imageSettings()
		if err != nil {
			return err
		}
		removed, err := imagecache.New(img.CacheDir, nil).Prune(img.MaxAge())
		for _, name := range removed {
			log.Okf("Removed %s", name)
		}
		if err != nil {
			return fmt.Errorf("failed to prune cache: %w", err)
		}
		if len(removed) == 0 {
			log.Skip("Nothing to prune")
		}
		return nil
	},
}
