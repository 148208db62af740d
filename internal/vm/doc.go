// Package vm provides high-level VM lifecycle operations on a Proxmox host.
//
// The main operations are:
//   - Create: provision a VM from a cloud image with cloud-init
//   - Destroy: stop and purge a VM
//   - List: list VMs, optionally only those in the managed id range
//   - SelectVMID: pick the first free id in a window
//
// Provisioning:
//
// Create walks a forward-only sequence of phases tracked by status.Tracker:
// shell created, disk imported, disk attached, disk resized, cloud-init
// configured, started. Nothing is persisted; an interrupted run is never
// resumed and the next run starts a brand-new VM.
//
// Rollback:
//
// A single deferred handler owned by Create inspects the tracker on exit. If
// the run did not reach Done and the VM shell had been created, it issues one
// best-effort destroy-and-purge for that VM and ignores its error. Temporary
// artifacts (a non-cached image download, the sshkeys file) are removed on
// every exit; a generated seed ISO is removed only on failure.
//
// Context Support:
//
// All operations accept a context.Context. Rollback runs on a context
// detached from cancellation so an interrupt still cleans up.
package vm
