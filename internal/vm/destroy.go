package vm

import (
	"context"
	"fmt"

	"github.com/jbweber/palforge/internal/log"
)

// shutdownTimeout is how many seconds the guest gets to power off before the
// VM is stopped hard.
const shutdownTimeout = 30

// Destroy removes a VM and its disks.
//
//  1. Check the VM exists
//  2. Ask a running guest to shut down (30s), falling back to a hard stop
//  3. Destroy and purge the VM
func Destroy(ctx context.Context, pm PowerManager, vmid int) error {
	log.Infof("Looking up VM %d...", vmid)
	exists, err := pm.VMExists(ctx, vmid)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("VM %d not found", vmid)
	}

	state, err := pm.Status(ctx, vmid)
	if err != nil {
		log.Warnf("Failed to read VM state: %v", err)
	}
	if state == "running" {
		log.Infof("VM is running, waiting up to %ds for graceful shutdown...", shutdownTimeout)
		if err := pm.Shutdown(ctx, vmid, shutdownTimeout); err != nil {
			log.Warnf("Graceful shutdown failed, forcing stop: %v", err)
		}
	}

	log.Infof("Destroying VM %d...", vmid)
	if err := pm.Destroy(ctx, vmid); err != nil {
		return err
	}
	log.Okf("VM %d destroyed", vmid)
	return nil
}
