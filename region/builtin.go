package region

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/verbsmem/internal/buf"
)

func (a *Allocator) allocBuiltin(size, pageSize int) (*Region, error) {
	length, ok := buf.AlignUp(size, pageSize)
	if !ok {
		a.fail(ModeBuiltin, stageAlloc)
		return nil, fmt.Errorf("%w: rounding %d to page size %d overflows", ErrBadArgument, size, pageSize)
	}
	if length == 0 {
		return &Region{mode: ModeBuiltin, live: true, owner: a}, nil
	}

	data, err := a.mapper.Map(length)
	if err != nil {
		a.fail(ModeBuiltin, stageAlloc)
		return nil, fmt.Errorf("%w: mmap %d bytes: %w", ErrAllocation, length, err)
	}
	addr := unsafe.Pointer(&data[0])

	// Only the requested bytes are registered; the rounding slack is not.
	if err := a.fork.DontFork(uintptr(addr), size); err != nil {
		if unmapErr := a.mapper.Unmap(data); unmapErr != nil {
			a.logger().Warn("region: unmap during rollback failed",
				"len", length, "err", unmapErr)
		}
		a.fail(ModeBuiltin, stageRegister)
		a.logger().Warn("region: rolled back mapping",
			"size", size, "len", length, "err", err)
		return nil, fmt.Errorf("%w: %w", ErrRegistration, err)
	}

	return &Region{
		addr:    addr,
		length:  length,
		mapping: data,
		mode:    ModeBuiltin,
		live:    true,
		owner:   a,
	}, nil
}

func (a *Allocator) freeBuiltin(r *Region) error {
	if r.length == 0 {
		return nil
	}
	a.fork.DoFork(uintptr(r.addr), r.length)
	if err := a.mapper.Unmap(r.mapping); err != nil {
		return fmt.Errorf("region: munmap %d bytes: %w", r.length, err)
	}
	return nil
}
