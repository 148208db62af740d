package vm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jbweber/palforge/internal/cloudinit"
	"github.com/jbweber/palforge/internal/config"
	"github.com/jbweber/palforge/internal/imagecache"
	"github.com/jbweber/palforge/internal/log"
	"github.com/jbweber/palforge/internal/naming"
	"github.com/jbweber/palforge/internal/pve"
	"github.com/jbweber/palforge/internal/status"
)

const (
	// rollbackTimeout bounds the compensating destroy.
	rollbackTimeout = 2 * time.Minute

	bootDisk = "scsi0"
)

// Result summarizes a provisioned VM.
type Result struct {
	VMID            int                 `json:"vmid" yaml:"vmid"`
	Name            string              `json:"name" yaml:"name"`
	Node            string              `json:"node,omitempty" yaml:"node,omitempty"`
	Cores           int                 `json:"cores" yaml:"cores"`
	MemoryGB        int                 `json:"memory_gb" yaml:"memory_gb"`
	DiskGB          int                 `json:"disk_gb" yaml:"disk_gb"`
	Storage         string              `json:"storage" yaml:"storage"`
	StorageType     string              `json:"storage_type" yaml:"storage_type"`
	DiskVolume      string              `json:"disk_volume" yaml:"disk_volume"`
	Bridge          string              `json:"bridge" yaml:"bridge"`
	MAC             string              `json:"mac,omitempty" yaml:"mac,omitempty"`
	UUID            string              `json:"uuid" yaml:"uuid"`
	IPConfig        string              `json:"ipconfig" yaml:"ipconfig"`
	User            string              `json:"user" yaml:"user"`
	AuthMode        config.AuthMode     `json:"auth_mode" yaml:"auth_mode"`
	Image           string              `json:"image" yaml:"image"`
	ImageDownloaded bool                `json:"image_downloaded" yaml:"image_downloaded"`
	Delivery        string              `json:"cloud_init" yaml:"cloud_init"`
	SeedISO         string              `json:"seed_iso,omitempty" yaml:"seed_iso,omitempty"`
	Phase           status.Phase        `json:"phase" yaml:"phase"`
	History         []status.Transition `json:"-" yaml:"-"`
}

// Provisioner creates VMs.
type Provisioner struct {
	hv      Hypervisor
	images  ImageSource
	newUUID func() string
	tempDir string
}

// NewProvisioner returns a provisioner using hv for hypervisor calls and
// images to obtain cloud images.
func NewProvisioner(hv Hypervisor, images ImageSource) *Provisioner {
	return &Provisioner{
		hv:      hv,
		images:  images,
		newUUID: uuid.NewString,
	}
}

// run holds the per-invocation state read by the rollback handler.
type run struct {
	tracker         *status.Tracker
	vmid            int
	cleanups        []func()
	failureCleanups []func()
}

// Create provisions the VM described by cfg.
//
// The sequence is:
//  1. Validate configuration and credentials
//  2. Select or verify the VM id
//  3. Resolve the cloud image (cached or temporary)
//  4. Prepare cloud-init material (sshkeys file or seed ISO)
//  5. Create the VM shell
//  6. Import, attach and resize the boot disk
//  7. Configure cloud-init, boot order and serial console
//  8. Start the VM
//
// On any failure after step 5 the VM is destroyed once, best effort.
func (p *Provisioner) Create(ctx context.Context, cfg *config.VMConfig) (res *Result, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("VM configuration cannot be nil")
	}

	r := &run{tracker: status.NewTracker()}
	defer func() { p.finish(ctx, r, err) }()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Step 2: VM id
	vmid, err := p.vmid(ctx, cfg)
	if err != nil {
		return nil, err
	}
	r.vmid = vmid

	// Storage type decides the disk reference
	storageType, err := p.hv.StorageType(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	res = &Result{
		VMID:        vmid,
		Name:        cfg.Name,
		Node:        cfg.Node,
		Cores:       cfg.Cores,
		MemoryGB:    cfg.MemoryGB,
		DiskGB:      cfg.DiskGB,
		Storage:     cfg.Storage,
		StorageType: storageType,
		Bridge:      cfg.Bridge,
		UUID:        p.newUUID(),
		IPConfig:    cloudinit.IPConfig(cfg.Network),
		User:        cfg.Auth.User,
		AuthMode:    cfg.Auth.Mode,
		Delivery:    string(cfg.CloudInit.Delivery),
	}

	// Step 3: image
	if err := p.resolveImage(ctx, cfg, r, res); err != nil {
		return nil, err
	}

	if cfg.Network.Mode == config.NetworkStatic {
		if res.MAC, err = naming.MACFromIP(cfg.Network.Address); err != nil {
			return nil, fmt.Errorf("failed to derive MAC address: %w", err)
		}
	}

	// Step 4: cloud-init material
	ciOpts, err := p.prepareCloudInit(cfg, r, res)
	if err != nil {
		return nil, err
	}

	// Step 5: VM shell
	log.Infof("Creating VM %d (%s)...", vmid, cfg.Name)
	if err := p.hv.CreateShell(ctx, pve.ShellSpec{
		VMID:     vmid,
		Name:     cfg.Name,
		Cores:    cfg.Cores,
		MemoryMB: cfg.MemoryGB * 1024,
		Bridge:   cfg.Bridge,
		VLAN:     cfg.Network.VLAN,
		MAC:      res.MAC,
		UUID:     res.UUID,
		OnBoot:   cfg.OnBoot,
	}); err != nil {
		return nil, err
	}
	if err := r.tracker.Advance(status.PhaseShellCreated, fmt.Sprintf("VM %d created", vmid)); err != nil {
		return nil, err
	}

	// Step 6: disk
	log.Infof("Importing %s into %s...", filepath.Base(res.Image), cfg.Storage)
	format := ""
	if naming.IsDirectoryStorage(storageType) {
		format = naming.DiskFormat(storageType)
	}
	if err := p.hv.ImportDisk(ctx, vmid, res.Image, cfg.Storage, format); err != nil {
		return nil, err
	}
	if err := r.tracker.Advance(status.PhaseDiskImported, "disk imported"); err != nil {
		return nil, err
	}

	volume, err := p.importedVolume(ctx, vmid, cfg.Storage, storageType)
	if err != nil {
		return nil, err
	}
	res.DiskVolume = volume
	if err := p.hv.Attach(ctx, vmid, bootDisk, volume); err != nil {
		return nil, err
	}
	if err := r.tracker.Advance(status.PhaseDiskAttached, volume); err != nil {
		return nil, err
	}

	size := fmt.Sprintf("%dG", cfg.DiskGB)
	log.Infof("Resizing %s to %s...", bootDisk, size)
	if err := p.hv.Resize(ctx, vmid, bootDisk, size); err != nil {
		return nil, err
	}
	if err := r.tracker.Advance(status.PhaseDiskResized, size); err != nil {
		return nil, err
	}

	// Step 7: cloud-init
	log.Info("Configuring cloud-init...")
	if err := p.hv.ConfigureCloudInit(ctx, vmid, ciOpts); err != nil {
		return nil, err
	}
	if err := r.tracker.Advance(status.PhaseCloudInitConfigured, res.Delivery); err != nil {
		return nil, err
	}

	// Step 8: start
	log.Infof("Starting VM %d...", vmid)
	if err := p.hv.Start(ctx, vmid); err != nil {
		return nil, err
	}
	if err := r.tracker.Advance(status.PhaseStarted, "started"); err != nil {
		return nil, err
	}
	if err := r.tracker.Advance(status.PhaseDone, ""); err != nil {
		return nil, err
	}

	res.Phase = r.tracker.Phase()
	res.History = r.tracker.History()
	log.Okf("VM %d (%s) created successfully", vmid, cfg.Name)
	return res, nil
}

func (p *Provisioner) vmid(ctx context.Context, cfg *config.VMConfig) (int, error) {
	if cfg.VMID == 0 {
		id, err := SelectVMID(ctx, p.hv, cfg.IDRange.Start, cfg.IDRange.End)
		if err != nil {
			return 0, err
		}
		log.Infof("Selected VM id %d", id)
		return id, nil
	}
	exists, err := p.hv.VMExists(ctx, cfg.VMID)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, fmt.Errorf("VM %d already exists", cfg.VMID)
	}
	return cfg.VMID, nil
}

func (p *Provisioner) resolveImage(ctx context.Context, cfg *config.VMConfig, r *run, res *Result) error {
	req := imagecache.Request{
		URL:        cfg.Image.URL,
		MaxAgeDays: cfg.Image.MaxAge(),
		SHA256:     cfg.Image.SHA256,
	}

	if !cfg.Image.Cached() {
		log.Infof("Downloading %s (not cached)...", cfg.Image.FileName())
		path, cleanup, err := p.images.FetchTemp(ctx, req)
		if err != nil {
			return err
		}
		r.cleanups = append(r.cleanups, cleanup)
		res.Image = path
		res.ImageDownloaded = true
		return nil
	}

	out, err := p.images.Resolve(ctx, req)
	if err != nil {
		return err
	}
	if out.Downloaded {
		log.Okf("Downloaded %s", out.Path)
	} else {
		log.Skipf("Using cached image %s", out.Path)
	}
	res.Image = out.Path
	res.ImageDownloaded = out.Downloaded
	return nil
}

// prepareCloudInit writes the files cloud-init delivery needs and returns the
// options to apply once the disk is in place.
func (p *Provisioner) prepareCloudInit(cfg *config.VMConfig, r *run, res *Result) (cloudinit.Proxmox, error) {
	if cfg.CloudInit.Delivery == config.DeliveryNoCloud {
		iso, err := cloudinit.GenerateISO(cfg, res.UUID, res.MAC)
		if err != nil {
			return cloudinit.Proxmox{}, err
		}
		name := naming.SeedISOName(res.VMID, cfg.Name)
		path := filepath.Join(cfg.CloudInit.ISODir, name)
		if err := cloudinit.WriteISO(path, iso); err != nil {
			return cloudinit.Proxmox{}, err
		}
		r.failureCleanups = append(r.failureCleanups, func() { removeFile(path) })
		res.SeedISO = path
		return cloudinit.SeedOptions(cfg.CloudInit.ISOStorage, name), nil
	}

	keysFile := ""
	if cfg.Auth.Mode.UsesKeys() {
		f, err := os.CreateTemp(p.tempDir, "palforge-sshkeys-*")
		if err != nil {
			return cloudinit.Proxmox{}, fmt.Errorf("failed to create sshkeys file: %w", err)
		}
		keysFile = f.Name()
		r.cleanups = append(r.cleanups, func() { removeFile(keysFile) })
		_, werr := f.WriteString(cloudinit.AuthorizedKeys(cfg.Auth.SSHKeys))
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return cloudinit.Proxmox{}, fmt.Errorf("failed to write sshkeys file: %w", werr)
		}
	}
	return cloudinit.NativeOptions(cfg, keysFile), nil
}

// importedVolume returns the reference of the disk just imported. The
// reference expected for the storage type is used when `qm config` lists it
// as unused; otherwise the single unused volume on that storage is taken.
// A reference that cannot be confirmed is an error, never a guess.
func (p *Provisioner) importedVolume(ctx context.Context, vmid int, storage, storageType string) (string, error) {
	expected := naming.DiskVolumeRef(storage, storageType, vmid, 0)

	unused, err := p.hv.UnusedVolumes(ctx, vmid)
	if err != nil {
		return "", err
	}

	var onStorage []string
	for _, v := range unused {
		if v == expected {
			return v, nil
		}
		if strings.HasPrefix(v, storage+":") {
			onStorage = append(onStorage, v)
		}
	}
	if len(onStorage) == 1 {
		log.Warnf("Imported disk is %s, expected %s", onStorage[0], expected)
		return onStorage[0], nil
	}
	return "", fmt.Errorf("imported disk not found on VM %d: expected %s, unused volumes %v", vmid, expected, unused)
}

// finish is the rollback handler. It reads the tracker: a run that did not
// reach Done after the shell was created gets exactly one destroy call.
func (p *Provisioner) finish(ctx context.Context, r *run, err error) {
	defer func() {
		for i := len(r.cleanups) - 1; i >= 0; i-- {
			r.cleanups[i]()
		}
	}()

	if r.tracker.Phase() == status.PhaseDone {
		return
	}

	reason := "interrupted"
	if err != nil {
		reason = err.Error()
	}
	phase := r.tracker.Fail(reason)

	if phase == status.PhaseFailedAfterCreation {
		log.Warnf("Rolling back: destroying VM %d...", r.vmid)
		rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		defer cancel()
		if derr := p.hv.Destroy(rbCtx, r.vmid); derr != nil {
			log.Warnf("Rollback of VM %d failed (ignored): %v", r.vmid, derr)
		} else {
			log.Infof("VM %d destroyed", r.vmid)
		}
	}

	for i := len(r.failureCleanups) - 1; i >= 0; i-- {
		r.failureCleanups[i]()
	}
}

func removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("Failed to remove %s: %v", path, err)
	}
}
