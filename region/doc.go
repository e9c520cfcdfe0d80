// Package region allocates memory regions that are handed to a network device
// for direct access and keeps them out of fork duplication while they live.
//
// # Overview
//
// An Allocator works in one of two modes, fixed when it is created:
//
//   - Extern: the embedding application supplies an ExternAlloc pair
//     (Alloc and Free). Every allocation and release goes through it.
//   - Builtin: regions are anonymous, private, zero-filled mappings taken
//     straight from the operating system and rounded up to the page size the
//     caller asks for.
//
// Extern mode is selected only when both ExternAlloc.Alloc and ExternAlloc.Free
// are set. Anything else selects builtin mode.
//
// # Fork Safety
//
// Every live region is registered with a ForkSafety service (by default the
// process-wide forksafe.Default table) before Alloc returns, and unregistered
// before Free hands the memory back. If registration fails, the memory just
// obtained is released again and Alloc returns an error wrapping
// ErrRegistration; the caller never sees a region for that call.
//
// In builtin mode only the requested bytes are registered, not the page
// rounding slack. Release unregisters the full mapped length. With the
// page-granular forksafe table both cover the same pages whenever the caller's
// page size equals the system page size.
//
// # Usage Example
//
//	a := region.New(region.Config{})
//
//	r, err := a.Alloc(64<<10, 4096)
//	if err != nil {
//	    return err
//	}
//	defer a.Free(r)
//
//	copy(r.Bytes(), payload)
//
// With an external allocator:
//
//	a := region.New(region.Config{
//	    Extern: region.ExternAlloc{
//	        Alloc: func(size int, data any) unsafe.Pointer { return pool(data).get(size) },
//	        Free:  func(p unsafe.Pointer, data any) { pool(data).put(p) },
//	        Data:  myPool,
//	    },
//	})
//
// # Zero-Length Regions
//
// Alloc(0, ps) succeeds in both modes. Builtin mode maps nothing and Free on
// the result does nothing. Extern mode accepts a nil pointer from
// ExternAlloc.Alloc for a zero-byte request and still passes it to
// ExternAlloc.Free on release.
//
// # Errors
//
// Failures wrap a sentinel together with the underlying cause, so both
// errors.Is(err, region.ErrAllocation) and errors.Is(err, unix.ENOMEM) work.
//
// # Thread Safety
//
// An Allocator may be shared between goroutines: its configuration is
// read-only and the fork-safety table synchronizes itself. A Region belongs to
// the caller that allocated it and must not be freed concurrently.
package region
