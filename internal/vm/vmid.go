package vm

import (
	"context"
	"errors"
	"fmt"
)

// ErrIDRangeExhausted is returned when every id in the window is taken.
var ErrIDRangeExhausted = errors.New("no free VM id in range")

// SelectVMID returns the first id in [start, end] with no VM record. The
// window is scanned linearly and never widened or wrapped.
func SelectVMID(ctx context.Context, lookup VMLookup, start, end int) (int, error) {
	if start <= 0 || end < start {
		return 0, fmt.Errorf("invalid VM id range %d-%d", start, end)
	}
	for id := start; id <= end; id++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		exists, err := lookup.VMExists(ctx, id)
		if err != nil {
			return 0, err
		}
		if !exists {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w %d-%d", ErrIDRangeExhausted, start, end)
}
