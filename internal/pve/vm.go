package pve

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jbweber/palforge/internal/cloudinit"
)

// ShellSpec describes a VM record with no disks.
type ShellSpec struct {
	VMID     int
	Name     string
	Cores    int
	MemoryMB int
	Bridge   string
	VLAN     int    // 0 for untagged
	MAC      string // empty lets Proxmox pick one
	UUID     string // SMBIOS uuid
	OnBoot   bool
}

// Args renders the `qm create` arguments for s.
func (s ShellSpec) Args() []string {
	net := "virtio"
	if s.MAC != "" {
		net += "=" + s.MAC
	}
	net += ",bridge=" + s.Bridge
	if s.VLAN > 0 {
		net += ",tag=" + strconv.Itoa(s.VLAN)
	}

	args := []string{
		"create", strconv.Itoa(s.VMID),
		"--name", s.Name,
		"--cores", strconv.Itoa(s.Cores),
		"--memory", strconv.Itoa(s.MemoryMB),
		"--net0", net,
		"--scsihw", "virtio-scsi-pci",
		"--ostype", "l26",
		"--agent", "enabled=1",
	}
	if s.UUID != "" {
		args = append(args, "--smbios1", "uuid="+s.UUID)
	}
	if s.OnBoot {
		args = append(args, "--onboot", "1")
	}
	return args
}

// CreateShell creates the VM record.
func (c *Client) CreateShell(ctx context.Context, spec ShellSpec) error {
	if _, err := c.run(ctx, qm, spec.Args()...); err != nil {
		return fmt.Errorf("failed to create VM %d: %w", spec.VMID, err)
	}
	return nil
}

// ImportDisk imports imagePath into storage as an unused disk of vmid.
// format is passed through when non-empty (qcow2 on directory storage).
func (c *Client) ImportDisk(ctx context.Context, vmid int, imagePath, storage, format string) error {
	args := []string{"importdisk", strconv.Itoa(vmid), imagePath, storage}
	if format != "" {
		args = append(args, "--format", format)
	}
	if _, err := c.run(ctx, qm, args...); err != nil {
		return fmt.Errorf("failed to import disk into VM %d: %w", vmid, err)
	}
	return nil
}

// Config returns the VM configuration as key/value pairs.
func (c *Client) Config(ctx context.Context, vmid int) (map[string]string, error) {
	out, err := c.run(ctx, qm, "config", strconv.Itoa(vmid))
	if err != nil {
		return nil, fmt.Errorf("failed to read config of VM %d: %w", vmid, err)
	}
	cfg := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		cfg[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return cfg, nil
}

// UnusedVolumes returns the volume references of the VM's unused disks
// (unused0, unused1, ...) in index order.
func (c *Client) UnusedVolumes(ctx context.Context, vmid int) ([]string, error) {
	cfg, err := c.Config(ctx, vmid)
	if err != nil {
		return nil, err
	}
	var keys []string
	for k := range cfg {
		if strings.HasPrefix(k, "unused") {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(strings.TrimPrefix(keys[i], "unused"))
		b, _ := strconv.Atoi(strings.TrimPrefix(keys[j], "unused"))
		return a < b
	})
	vols := make([]string, 0, len(keys))
	for _, k := range keys {
		vol, _, _ := strings.Cut(cfg[k], ",")
		vols = append(vols, vol)
	}
	return vols, nil
}

// Attach attaches volume to the VM as bus (for example "scsi0").
func (c *Client) Attach(ctx context.Context, vmid int, bus, volume string) error {
	if _, err := c.run(ctx, qm, "set", strconv.Itoa(vmid), "--"+bus, volume); err != nil {
		return fmt.Errorf("failed to attach %s as %s: %w", volume, bus, err)
	}
	return nil
}

// Resize sets the size of disk to size (for example "40G").
func (c *Client) Resize(ctx context.Context, vmid int, disk, size string) error {
	if _, err := c.run(ctx, qm, "resize", strconv.Itoa(vmid), disk, size); err != nil {
		return fmt.Errorf("failed to resize %s to %s: %w", disk, size, err)
	}
	return nil
}

// ConfigureCloudInit attaches the cloud-init drive, applies the cloud-init
// options and makes the VM boot from scsi0 with a serial console.
func (c *Client) ConfigureCloudInit(ctx context.Context, vmid int, opts cloudinit.Proxmox) error {
	args := []string{
		"set", strconv.Itoa(vmid),
		"--boot", "order=scsi0",
		"--serial0", "socket",
		"--vga", "serial0",
	}
	args = append(args, opts.Args()...)
	if _, err := c.run(ctx, qm, args...); err != nil {
		return fmt.Errorf("failed to configure cloud-init for VM %d: %w", vmid, err)
	}
	return nil
}

// Start boots the VM.
func (c *Client) Start(ctx context.Context, vmid int) error {
	if _, err := c.run(ctx, qm, "start", strconv.Itoa(vmid)); err != nil {
		return fmt.Errorf("failed to start VM %d: %w", vmid, err)
	}
	return nil
}

// Stop powers the VM off immediately.
func (c *Client) Stop(ctx context.Context, vmid int) error {
	if _, err := c.run(ctx, qm, "stop", strconv.Itoa(vmid)); err != nil {
		return fmt.Errorf("failed to stop VM %d: %w", vmid, err)
	}
	return nil
}

// Destroy stops the VM if it is running, then removes it together with its
// disks and any references to it in jobs and HA configuration.
func (c *Client) Destroy(ctx context.Context, vmid int) error {
	id := strconv.Itoa(vmid)
	// A VM that never started cannot be stopped; ignore.
	_, _ = c.run(ctx, qm, "stop", id)
	if _, err := c.run(ctx, qm, "destroy", id, "--purge", "1", "--destroy-unreferenced-disks", "1"); err != nil {
		return fmt.Errorf("failed to destroy VM %d: %w", vmid, err)
	}
	return nil
}

// Status returns the VM power state ("running", "stopped", ...).
func (c *Client) Status(ctx context.Context, vmid int) (string, error) {
	out, err := c.run(ctx, qm, "status", strconv.Itoa(vmid))
	if err != nil {
		return "", fmt.Errorf("failed to query VM %d: %w", vmid, err)
	}
	_, state, ok := strings.Cut(strings.TrimSpace(out), ":")
	if !ok {
		return "", fmt.Errorf("unexpected qm status output: %q", out)
	}
	return strings.TrimSpace(state), nil
}

// Shutdown asks the guest to power off and waits up to timeout seconds.
func (c *Client) Shutdown(ctx context.Context, vmid int, timeout int) error {
	if _, err := c.run(ctx, qm, "shutdown", strconv.Itoa(vmid), "--timeout", strconv.Itoa(timeout)); err != nil {
		return fmt.Errorf("failed to shut down VM %d: %w", vmid, err)
	}
	return nil
}
