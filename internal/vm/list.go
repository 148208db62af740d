package vm

import (
	"context"

	"github.com/jbweber/palforge/internal/pve"
)

// ListFilter narrows List results. A zero filter returns every VM.
type ListFilter struct {
	// Start and End restrict results to an inclusive id window.
	Start, End int
}

// List returns VMs ordered by id.
func List(ctx context.Context, l Lister, f ListFilter) ([]pve.VMInfo, error) {
	vms, err := l.ListVMs(ctx)
	if err != nil {
		return nil, err
	}
	if f.Start == 0 && f.End == 0 {
		return vms, nil
	}

	out := make([]pve.VMInfo, 0, len(vms))
	for _, v := range vms {
		if v.VMID >= f.Start && (f.End == 0 || v.VMID <= f.End) {
			out = append(out, v)
		}
	}
	return out, nil
}
