// Package pve drives a Proxmox VE host through its command-line tools.
//
// The client shells out to qm, pvesm and pvesh on the local node. It never
// talks to the Proxmox HTTP API, so it must run on the hypervisor itself with
// enough privilege to manage VMs (normally root).
//
// Every command goes through a shell.Runner. Tests substitute a fake runner
// and assert on the exact command lines issued.
package pve
