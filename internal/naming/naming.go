// Package naming holds the naming conventions palforge applies to Proxmox
// resources: VM names composed from environment/role/site, disk volume
// references that depend on the backing storage type, and deterministic MAC
// addresses for statically addressed VMs.
package naming

import (
	"fmt"
	"net"
	"strings"
)

// directoryStorageTypes are the Proxmox storage types that keep VM disks as
// files under a per-VM directory. Every other type (lvm, lvmthin, zfspool,
// rbd, iscsi, ...) exposes volumes by opaque name.
var directoryStorageTypes = map[string]bool{
	"dir":  true,
	"nfs":  true,
	"cifs": true,
}

// IsDirectoryStorage reports whether storageType stores disks as files.
func IsDirectoryStorage(storageType string) bool {
	return directoryStorageTypes[strings.ToLower(strings.TrimSpace(storageType))]
}

// DiskFormat returns the format an imported disk gets on the given storage
// type: qcow2 for file-backed stores, raw for block stores.
func DiskFormat(storageType string) string {
	if IsDirectoryStorage(storageType) {
		return "qcow2"
	}
	return "raw"
}

// DiskVolumeRef builds the volume reference Proxmox assigns to disk index n of
// VM vmid on the given storage.
//
//	dir/nfs/cifs: local:5000/vm-5000-disk-0.qcow2
//	others:       local-lvm:vm-5000-disk-0
func DiskVolumeRef(storage, storageType string, vmid, n int) string {
	volume := fmt.Sprintf("vm-%d-disk-%d", vmid, n)
	if IsDirectoryStorage(storageType) {
		return fmt.Sprintf("%s:%d/%s.qcow2", storage, vmid, volume)
	}
	return fmt.Sprintf("%s:%s", storage, volume)
}

// CloudInitVolumeRef is the reference used for the Proxmox-managed cloud-init
// drive.
func CloudInitVolumeRef(storage string) string {
	return storage + ":cloudinit"
}

// SeedISOName returns the file name of a NoCloud seed ISO for a VM.
func SeedISOName(vmid int, vmName string) string {
	return fmt.Sprintf("palforge-%d-%s-seed.iso", vmid, vmName)
}

// ISOVolumeRef returns the reference of an ISO stored in an ISO-capable
// storage, e.g. local:iso/palforge-5000-web-seed.iso.
func ISOVolumeRef(storage, file string) string {
	return fmt.Sprintf("%s:iso/%s", storage, file)
}

// VMName composes a VM name from its parts, skipping empty ones.
//
// Example: ("prod", "web", "fra1") → prod-web-fra1
func VMName(environment, role, site string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{environment, role, site} {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-")
}

// MACFromIP calculates a deterministic MAC address from an IP address.
// Uses the locally administered prefix be:ef:.
//
// Example: IP 10.55.22.22 → MAC be:ef:0a:37:16:16
func MACFromIP(ip string) (string, error) {
	// Parse IP (handles both "10.1.2.3" and "10.1.2.3/24")
	ipStr := ip
	if strings.Contains(ip, "/") {
		ipAddr, _, err := net.ParseCIDR(ip)
		if err != nil {
			return "", fmt.Errorf("invalid IP/CIDR: %w", err)
		}
		ipStr = ipAddr.String()
	}

	parsedIP := net.ParseIP(ipStr)
	if parsedIP == nil {
		return "", fmt.Errorf("invalid IP address: %s", ipStr)
	}

	ipv4 := parsedIP.To4()
	if ipv4 == nil {
		return "", fmt.Errorf("not an IPv4 address: %s", ipStr)
	}

	return fmt.Sprintf("be:ef:%02x:%02x:%02x:%02x",
		ipv4[0], ipv4[1], ipv4[2], ipv4[3]), nil
}
