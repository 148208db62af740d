// Package imagecache keeps downloaded cloud images on local disk with a
// time-to-live.
//
// An entry is a pair of files: the image itself, named after the final path
// segment of its URL, and a sibling "<image>.stamp" holding the decimal unix
// time of the download. An entry is valid while its stamp is no older than the
// configured number of days. A missing or unreadable stamp makes the entry
// invalid, so an unstamped file is never trusted.
//
// Downloads stream into a temporary file in the cache directory and are
// renamed into place only once complete, so an interrupted or failed transfer
// never leaves a partial image under the cached name.
package imagecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"math"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jbweber/palforge/internal/progress"
)

const (
	// StampSuffix is appended to an image path to name its stamp file.
	StampSuffix = ".stamp"

	partPrefix    = ".part-"
	day           = 24 * time.Hour
	secondsPerDay = 86400
)

// Downloader fetches url and streams the body into dst.
type Downloader interface {
	Download(ctx context.Context, url string, dst io.Writer, fn progress.Func) error
}

// Request describes an image to resolve.
type Request struct {
	URL        string
	MaxAgeDays int
	SHA256     string // optional, lowercase hex
}

// Result is a resolved image.
type Result struct {
	Path       string
	Downloaded bool
}

// Cache manages the cache directory.
type Cache struct {
	dir        string
	downloader Downloader
	progress   progress.Func
	now        func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithProgress reports download progress to fn.
func WithProgress(fn progress.Func) Option {
	return func(c *Cache) { c.progress = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache rooted at dir.
func New(dir string, d Downloader, opts ...Option) *Cache {
	c := &Cache{
		dir:        dir,
		downloader: d,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Key derives the cache key (the file name) from an image URL.
func Key(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid image URL %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" || name == ".." || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("image URL %q does not end in a file name", rawURL)
	}
	return name, nil
}

// Resolve returns the local path for req.URL. A valid cached copy is
// returned without network access; otherwise any stale pair is deleted and
// the image is downloaded exactly once. A failed download leaves nothing
// behind under the cached name.
func (c *Cache) Resolve(ctx context.Context, req Request) (*Result, error) {
	if req.MaxAgeDays < 0 {
		return nil, fmt.Errorf("max age must be >= 0 days, got %d", req.MaxAgeDays)
	}
	key, err := Key(req.URL)
	if err != nil {
		return nil, err
	}
	imagePath := filepath.Join(c.dir, key)

	if c.valid(imagePath, req.MaxAgeDays) {
		return &Result{Path: imagePath}, nil
	}

	if err := c.remove(imagePath); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	if err := c.download(ctx, req, c.dir, imagePath); err != nil {
		return nil, err
	}

	stamp := strconv.FormatInt(c.now().Unix(), 10) + "\n"
	if err := os.WriteFile(imagePath+StampSuffix, []byte(stamp), 0o644); err != nil {
		_ = os.Remove(imagePath)
		return nil, fmt.Errorf("failed to write cache stamp: %w", err)
	}

	return &Result{Path: imagePath, Downloaded: true}, nil
}

// FetchTemp downloads req.URL into a fresh temporary directory, bypassing the
// cache. cleanup removes the directory and is safe to call more than once.
func (c *Cache) FetchTemp(ctx context.Context, req Request) (imagePath string, cleanup func(), err error) {
	key, err := Key(req.URL)
	if err != nil {
		return "", nil, err
	}
	dir, err := os.MkdirTemp("", "palforge-image-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	cleanup = func() { _ = os.RemoveAll(dir) }

	imagePath = filepath.Join(dir, key)
	if err := c.download(ctx, req, dir, imagePath); err != nil {
		cleanup()
		return "", nil, err
	}
	return imagePath, cleanup, nil
}

// valid reports whether imagePath exists with a stamp no older than maxAgeDays.
func (c *Cache) valid(imagePath string, maxAgeDays int) bool {
	info, err := os.Stat(imagePath)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	ts, err := readStamp(imagePath + StampSuffix)
	if err != nil {
		return false
	}
	return fresh(c.now(), ts, maxAgeDays)
}

// fresh reports whether a stamp taken at ts is at most maxAgeDays old at now.
// Ages are compared in whole seconds; a day count past the int64 second range
// never expires.
func fresh(now, ts time.Time, maxAgeDays int) bool {
	if int64(maxAgeDays) > math.MaxInt64/secondsPerDay {
		return true
	}
	return now.Unix()-ts.Unix() <= int64(maxAgeDays)*secondsPerDay
}

func (c *Cache) remove(imagePath string) error {
	for _, p := range []string{imagePath, imagePath + StampSuffix} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove stale cache entry: %w", err)
		}
	}
	return nil
}

// download streams req.URL into a temporary file in dir, verifies the
// checksum if one was requested and renames the result to dst.
func (c *Cache) download(ctx context.Context, req Request, dir, dst string) error {
	tmp, err := os.CreateTemp(dir, partPrefix+filepath.Base(dst)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create download file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	var h hash.Hash
	var w io.Writer = tmp
	if req.SHA256 != "" {
		h = sha256.New()
		w = io.MultiWriter(tmp, h)
	}

	if err := c.downloader.Download(ctx, req.URL, w, c.progress); err != nil {
		return fmt.Errorf("failed to download %s: %w", req.URL, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}

	if h != nil {
		actual := hex.EncodeToString(h.Sum(nil))
		if actual != strings.ToLower(req.SHA256) {
			return fmt.Errorf("checksum mismatch for %s: expected %s but got %s", req.URL, req.SHA256, actual)
		}
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	committed = true
	return nil
}

func readStamp(stampPath string) (time.Time, error) {
	data, err := os.ReadFile(stampPath)
	if err != nil {
		return time.Time{}, err
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stamp %s: %w", stampPath, err)
	}
	return time.Unix(secs, 0), nil
}
