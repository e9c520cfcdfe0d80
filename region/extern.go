package region

import (
	"fmt"
)

func (a *Allocator) allocExtern(size int) (*Region, error) {
	ptr := a.extern.Alloc(size, a.extern.Data)
	if ptr == nil && size != 0 {
		a.fail(ModeExtern, stageAlloc)
		return nil, fmt.Errorf("%w: external allocator returned nil for %d bytes", ErrAllocation, size)
	}

	if err := a.fork.DontFork(uintptr(ptr), size); err != nil {
		a.extern.Free(ptr, a.extern.Data)
		a.fail(ModeExtern, stageRegister)
		a.logger().Warn("region: rolled back external allocation",
			"size", size, "addr", ptr, "err", err)
		return nil, fmt.Errorf("%w: %w", ErrRegistration, err)
	}

	return &Region{
		addr:   ptr,
		length: size,
		mode:   ModeExtern,
		live:   true,
		owner:  a,
	}, nil
}

// freeExtern always unregisters, even for zero-length regions, then hands the
// pointer back to the application.
func (a *Allocator) freeExtern(r *Region) {
	a.fork.DoFork(uintptr(r.addr), r.length)
	a.extern.Free(r.addr, a.extern.Data)
}
