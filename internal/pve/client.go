package pve

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jbweber/palforge/internal/shell"
)

const (
	qm    = "qm"
	pvesm = "pvesm"
	pvesh = "pvesh"
)

// Client issues Proxmox CLI commands.
type Client struct {
	runner shell.Runner
}

// New returns a client that runs commands through r.
func New(r shell.Runner) *Client {
	return &Client{runner: r}
}

func (c *Client) run(ctx context.Context, name string, args ...string) (string, error) {
	return c.runner.Run(ctx, name, args...)
}

// Node is a cluster member as reported by pvesh.
type Node struct {
	Name   string `json:"node"`
	Status string `json:"status"`
}

// Nodes lists the cluster nodes, sorted by name.
func (c *Client) Nodes(ctx context.Context) ([]Node, error) {
	out, err := c.run(ctx, pvesh, "get", "/nodes", "--output-format", "json")
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	var nodes []Node
	if err := json.Unmarshal([]byte(out), &nodes); err != nil {
		return nil, fmt.Errorf("failed to parse node list: %w", err)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

// VMExists reports whether a VM record with vmid exists.
func (c *Client) VMExists(ctx context.Context, vmid int) (bool, error) {
	_, err := c.run(ctx, qm, "status", strconv.Itoa(vmid))
	if err == nil {
		return true, nil
	}
	if strings.Contains(shell.Stderr(err), "does not exist") {
		return false, nil
	}
	return false, fmt.Errorf("failed to query VM %d: %w", vmid, err)
}

// VMInfo is one row of `qm list`.
type VMInfo struct {
	VMID       int     `json:"vmid" yaml:"vmid"`
	Name       string  `json:"name" yaml:"name"`
	Status     string  `json:"status" yaml:"status"`
	MemoryMB   int     `json:"memory_mb" yaml:"memory_mb"`
	BootDiskGB float64 `json:"bootdisk_gb" yaml:"bootdisk_gb"`
	PID        int     `json:"pid" yaml:"pid"`
}

// ListVMs returns the VMs on the local node ordered by VMID.
func (c *Client) ListVMs(ctx context.Context) ([]VMInfo, error) {
	out, err := c.run(ctx, qm, "list")
	if err != nil {
		return nil, fmt.Errorf("failed to list VMs: %w", err)
	}
	vms, err := parseQMList(out)
	if err != nil {
		return nil, err
	}
	sort.Slice(vms, func(i, j int) bool { return vms[i].VMID < vms[j].VMID })
	return vms, nil
}

// parseQMList parses the fixed-width table printed by `qm list`:
//
//	VMID NAME    STATUS  MEM(MB) BOOTDISK(GB) PID
//	 100 web01   running 2048           32.00 1234
func parseQMList(out string) ([]VMInfo, error) {
	var vms []VMInfo
	for i, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] == "VMID" {
			continue
		}
		if len(fields) < 6 {
			return nil, fmt.Errorf("unexpected qm list output on line %d: %q", i+1, line)
		}
		vmid, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("unexpected VMID %q on line %d", fields[0], i+1)
		}
		mem, _ := strconv.Atoi(fields[3])
		disk, _ := strconv.ParseFloat(fields[4], 64)
		pid, _ := strconv.Atoi(fields[5])
		vms = append(vms, VMInfo{
			VMID:       vmid,
			Name:       fields[1],
			Status:     fields[2],
			MemoryMB:   mem,
			BootDiskGB: disk,
			PID:        pid,
		})
	}
	return vms, nil
}
