package pve

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Storage is one row of `pvesm status`. Sizes are in KiB.
type Storage struct {
	Name        string  `json:"name" yaml:"name"`
	Type        string  `json:"type" yaml:"type"`
	Status      string  `json:"status" yaml:"status"`
	Total       int64   `json:"total_kib" yaml:"total_kib"`
	Used        int64   `json:"used_kib" yaml:"used_kib"`
	Available   int64   `json:"available_kib" yaml:"available_kib"`
	UsedPercent float64 `json:"used_percent" yaml:"used_percent"`
}

// Active reports whether the storage is usable.
func (s Storage) Active() bool { return s.Status == "active" }

// Storages lists storage pools. With content set (for example "images" or
// "iso") only pools accepting that content type are returned.
func (c *Client) Storages(ctx context.Context, content string) ([]Storage, error) {
	args := []string{"status"}
	if content != "" {
		args = append(args, "--content", content)
	}
	out, err := c.run(ctx, pvesm, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage: %w", err)
	}
	return parsePVESMStatus(out)
}

// StorageType returns the backing type (dir, lvmthin, zfspool, nfs, ...) of
// the named storage.
func (c *Client) StorageType(ctx context.Context, name string) (string, error) {
	storages, err := c.Storages(ctx, "")
	if err != nil {
		return "", err
	}
	for _, s := range storages {
		if s.Name == name {
			return s.Type, nil
		}
	}
	return "", fmt.Errorf("storage %q not found", name)
}

// parsePVESMStatus parses:
//
//	Name       Type     Status     Total      Used  Available       %
//	local       dir     active  98497780  12345678   80000000  12.53%
func parsePVESMStatus(out string) ([]Storage, error) {
	var storages []Storage
	for i, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] == "Name" {
			continue
		}
		if len(fields) < 3 {
			return nil, fmt.Errorf("unexpected pvesm status output on line %d: %q", i+1, line)
		}
		s := Storage{Name: fields[0], Type: fields[1], Status: fields[2]}
		if len(fields) >= 7 {
			s.Total, _ = strconv.ParseInt(fields[3], 10, 64)
			s.Used, _ = strconv.ParseInt(fields[4], 10, 64)
			s.Available, _ = strconv.ParseInt(fields[5], 10, 64)
			s.UsedPercent, _ = strconv.ParseFloat(strings.TrimSuffix(fields[6], "%"), 64)
		}
		storages = append(storages, s)
	}
	return storages, nil
}
