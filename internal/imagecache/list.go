package imagecache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Entry describes one cached image.
type Entry struct {
	Name         string        `json:"name" yaml:"name"`
	Path         string        `json:"path" yaml:"path"`
	Size         int64         `json:"size_bytes" yaml:"size_bytes"`
	Stamped      bool          `json:"stamped" yaml:"stamped"`
	DownloadedAt time.Time     `json:"downloaded_at,omitzero" yaml:"downloaded_at,omitempty"`
	Age          time.Duration `json:"-" yaml:"-"`
	Valid        bool          `json:"valid" yaml:"valid"`
}

// List returns the images in the cache directory, judged against
// maxAgeDays. A missing directory yields an empty list.
func (c *Cache) List(maxAgeDays int) ([]Entry, error) {
	dirents, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	now := c.now()
	var entries []Entry
	for _, de := range dirents {
		name := de.Name()
		if !de.Type().IsRegular() || strings.HasSuffix(name, StampSuffix) || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		e := Entry{
			Name: name,
			Path: filepath.Join(c.dir, name),
			Size: info.Size(),
		}
		if ts, err := readStamp(e.Path + StampSuffix); err == nil {
			e.Stamped = true
			e.DownloadedAt = ts
			e.Age = now.Sub(ts)
			e.Valid = fresh(now, ts, maxAgeDays)
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// partialMaxAge is how long a partial download may sit untouched before Prune
// treats it as abandoned. Younger ones may belong to a running download.
const partialMaxAge = 24 * time.Hour

// Prune removes every invalid entry along with orphaned stamps and abandoned
// partial downloads. It returns the removed file names.
func (c *Cache) Prune(maxAgeDays int) ([]string, error) {
	entries, err := c.List(maxAgeDays)
	if err != nil {
		return nil, err
	}

	var removed []string
	images := make(map[string]bool, len(entries))
	for _, e := range entries {
		images[e.Name] = true
		if e.Valid {
			continue
		}
		if err := c.remove(e.Path); err != nil {
			return removed, err
		}
		delete(images, e.Name)
		removed = append(removed, e.Name)
	}

	dirents, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return removed, nil
		}
		return removed, fmt.Errorf("failed to read cache directory: %w", err)
	}
	now := c.now()
	for _, de := range dirents {
		name := de.Name()
		orphan := strings.HasSuffix(name, StampSuffix) && !images[strings.TrimSuffix(name, StampSuffix)]
		partial := strings.HasPrefix(name, partPrefix)
		if !orphan && !partial {
			continue
		}
		if partial {
			info, err := de.Info()
			if err != nil || now.Sub(info.ModTime()) < partialMaxAge {
				continue
			}
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("failed to remove %s: %w", name, err)
		}
		removed = append(removed, name)
	}
	return removed, nil
}
