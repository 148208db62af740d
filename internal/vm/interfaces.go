package vm

import (
	"context"

	"github.com/jbweber/palforge/internal/cloudinit"
	"github.com/jbweber/palforge/internal/imagecache"
	"github.com/jbweber/palforge/internal/pve"
)

// VMLookup probes whether a VM id is taken.
//
// In production, this is satisfied by *pve.Client.
type VMLookup interface {
	VMExists(ctx context.Context, vmid int) (bool, error)
}

// Hypervisor is the set of Proxmox operations provisioning needs.
//
// In production, this is satisfied by *pve.Client.
// In tests, this is satisfied by mock implementations.
type Hypervisor interface {
	VMLookup

	// StorageType returns the backing type of a storage pool
	StorageType(ctx context.Context, storage string) (string, error)

	// CreateShell creates a VM record with no disks
	CreateShell(ctx context.Context, spec pve.ShellSpec) error

	// ImportDisk imports an image as an unused disk
	ImportDisk(ctx context.Context, vmid int, imagePath, storage, format string) error

	// UnusedVolumes lists the VM's unused disk volumes
	UnusedVolumes(ctx context.Context, vmid int) ([]string, error)

	// Attach attaches a volume on the given bus
	Attach(ctx context.Context, vmid int, bus, volume string) error

	// Resize sets a disk to an absolute size
	Resize(ctx context.Context, vmid int, disk, size string) error

	// ConfigureCloudInit applies boot, console and cloud-init options
	ConfigureCloudInit(ctx context.Context, vmid int, opts cloudinit.Proxmox) error

	// Start boots the VM
	Start(ctx context.Context, vmid int) error

	// Destroy stops and purges the VM
	Destroy(ctx context.Context, vmid int) error
}

// ImageSource resolves cloud images to local files.
//
// In production, this is satisfied by *imagecache.Cache.
type ImageSource interface {
	// Resolve returns a cached image, downloading it when missing or stale
	Resolve(ctx context.Context, req imagecache.Request) (*imagecache.Result, error)

	// FetchTemp downloads an image outside the cache
	FetchTemp(ctx context.Context, req imagecache.Request) (string, func(), error)
}

// PowerManager is used by Destroy to shut a VM down before removing it.
//
// In production, this is satisfied by *pve.Client.
type PowerManager interface {
	VMLookup
	Status(ctx context.Context, vmid int) (string, error)
	Shutdown(ctx context.Context, vmid int, timeout int) error
	Destroy(ctx context.Context, vmid int) error
}

// Lister lists VMs.
type Lister interface {
	ListVMs(ctx context.Context) ([]pve.VMInfo, error)
}
