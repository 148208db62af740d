package vm

import (
	"context"
	"fmt"
	"sync"

	"github.com/jbweber/palforge/internal/cloudinit"
	"github.com/jbweber/palforge/internal/imagecache"
	"github.com/jbweber/palforge/internal/pve"
)

// mockHypervisor is a mock implementation of Hypervisor for testing.
type mockHypervisor struct {
	mu sync.Mutex

	// Configurable behavior
	vmExistsFunc           func(vmid int) (bool, error)
	storageTypeFunc        func(storage string) (string, error)
	createShellFunc        func(spec pve.ShellSpec) error
	importDiskFunc         func(vmid int, imagePath, storage, format string) error
	unusedVolumesFunc      func(vmid int) ([]string, error)
	attachFunc             func(vmid int, bus, volume string) error
	resizeFunc             func(vmid int, disk, size string) error
	configureCloudInitFunc func(vmid int, opts cloudinit.Proxmox) error
	startFunc              func(vmid int) error
	destroyFunc            func(ctx context.Context, vmid int) error
	statusFunc             func(vmid int) (string, error)
	shutdownFunc           func(vmid int, timeout int) error
	listVMsFunc            func() ([]pve.VMInfo, error)

	// Call tracking
	ops                    []string
	vmExistsCalls          []int
	createShellCalls       []pve.ShellSpec
	importDiskCalls        []importDiskCall
	attachCalls            []attachCall
	resizeCalls            []string
	configureCloudInitCall []cloudinit.Proxmox
	startCalls             []int
	destroyCalls           []int
	shutdownCalls          []int
}

type importDiskCall struct {
	VMID      int
	ImagePath string
	Storage   string
	Format    string
}

type attachCall struct {
	VMID   int
	Bus    string
	Volume string
}

// newMockHypervisor returns a mock where no VM exists, storage is lvmthin and
// every mutation succeeds. The imported disk shows up as unused0.
func newMockHypervisor() *mockHypervisor {
	m := &mockHypervisor{}
	m.vmExistsFunc = func(int) (bool, error) { return false, nil }
	m.storageTypeFunc = func(string) (string, error) { return "lvmthin", nil }
	m.createShellFunc = func(pve.ShellSpec) error { return nil }
	m.importDiskFunc = func(int, string, string, string) error { return nil }
	m.unusedVolumesFunc = func(vmid int) ([]string, error) {
		call := m.importDiskCalls[len(m.importDiskCalls)-1]
		st, _ := m.storageTypeFunc(call.Storage)
		if st == "dir" {
			return []string{fmt.Sprintf("%s:%d/vm-%d-disk-0.qcow2", call.Storage, vmid, vmid)}, nil
		}
		return []string{fmt.Sprintf("%s:vm-%d-disk-0", call.Storage, vmid)}, nil
	}
	m.attachFunc = func(int, string, string) error { return nil }
	m.resizeFunc = func(int, string, string) error { return nil }
	m.configureCloudInitFunc = func(int, cloudinit.Proxmox) error { return nil }
	m.startFunc = func(int) error { return nil }
	m.destroyFunc = func(context.Context, int) error { return nil }
	m.statusFunc = func(int) (string, error) { return "stopped", nil }
	m.shutdownFunc = func(int, int) error { return nil }
	m.listVMsFunc = func() ([]pve.VMInfo, error) { return nil, nil }
	return m
}

func (m *mockHypervisor) record(op string) {
	m.ops = append(m.ops, op)
}

func (m *mockHypervisor) VMExists(_ context.Context, vmid int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vmExistsCalls = append(m.vmExistsCalls, vmid)
	return m.vmExistsFunc(vmid)
}

func (m *mockHypervisor) StorageType(_ context.Context, storage string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("StorageType")
	return m.storageTypeFunc(storage)
}

func (m *mockHypervisor) CreateShell(_ context.Context, spec pve.ShellSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CreateShell")
	m.createShellCalls = append(m.createShellCalls, spec)
	return m.createShellFunc(spec)
}

func (m *mockHypervisor) ImportDisk(_ context.Context, vmid int, imagePath, storage, format string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ImportDisk")
	m.importDiskCalls = append(m.importDiskCalls, importDiskCall{vmid, imagePath, storage, format})
	return m.importDiskFunc(vmid, imagePath, storage, format)
}

func (m *mockHypervisor) UnusedVolumes(_ context.Context, vmid int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UnusedVolumes")
	return m.unusedVolumesFunc(vmid)
}

func (m *mockHypervisor) Attach(_ context.Context, vmid int, bus, volume string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Attach")
	m.attachCalls = append(m.attachCalls, attachCall{vmid, bus, volume})
	return m.attachFunc(vmid, bus, volume)
}

func (m *mockHypervisor) Resize(_ context.Context, vmid int, disk, size string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Resize")
	m.resizeCalls = append(m.resizeCalls, disk+"="+size)
	return m.resizeFunc(vmid, disk, size)
}

func (m *mockHypervisor) ConfigureCloudInit(_ context.Context, vmid int, opts cloudinit.Proxmox) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ConfigureCloudInit")
	m.configureCloudInitCall = append(m.configureCloudInitCall, opts)
	return m.configureCloudInitFunc(vmid, opts)
}

func (m *mockHypervisor) Start(_ context.Context, vmid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Start")
	m.startCalls = append(m.startCalls, vmid)
	return m.startFunc(vmid)
}

func (m *mockHypervisor) Destroy(ctx context.Context, vmid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Destroy")
	m.destroyCalls = append(m.destroyCalls, vmid)
	return m.destroyFunc(ctx, vmid)
}

func (m *mockHypervisor) Status(_ context.Context, vmid int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusFunc(vmid)
}

func (m *mockHypervisor) Shutdown(_ context.Context, vmid int, timeout int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Shutdown")
	m.shutdownCalls = append(m.shutdownCalls, vmid)
	return m.shutdownFunc(vmid, timeout)
}

func (m *mockHypervisor) ListVMs(context.Context) ([]pve.VMInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listVMsFunc()
}

// mockImageSource is a mock implementation of ImageSource.
type mockImageSource struct {
	resolveFunc   func(req imagecache.Request) (*imagecache.Result, error)
	fetchTempFunc func(req imagecache.Request) (string, func(), error)

	resolveCalls   []imagecache.Request
	fetchTempCalls []imagecache.Request
	cleanupCalls   int
}

func newMockImageSource() *mockImageSource {
	m := &mockImageSource{}
	m.resolveFunc = func(req imagecache.Request) (*imagecache.Result, error) {
		return &imagecache.Result{Path: "/var/lib/palforge/images/noble-server-cloudimg-amd64.img"}, nil
	}
	m.fetchTempFunc = func(req imagecache.Request) (string, func(), error) {
		return "/tmp/palforge-image-1/noble-server-cloudimg-amd64.img", func() { m.cleanupCalls++ }, nil
	}
	return m
}

func (m *mockImageSource) Resolve(_ context.Context, req imagecache.Request) (*imagecache.Result, error) {
	m.resolveCalls = append(m.resolveCalls, req)
	return m.resolveFunc(req)
}

func (m *mockImageSource) FetchTemp(_ context.Context, req imagecache.Request) (string, func(), error) {
	m.fetchTempCalls = append(m.fetchTempCalls, req)
	return m.fetchTempFunc(req)
}
