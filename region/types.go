package region

import (
	"log/slog"
	"unsafe"
)

// Mode identifies which allocation path produced a region.
type Mode uint8

const (
	ModeBuiltin Mode = iota
	ModeExtern
)

func (m Mode) String() string {
	switch m {
	case ModeBuiltin:
		return "builtin"
	case ModeExtern:
		return "extern"
	default:
		return "unknown"
	}
}

// ExternAlloc is an application-supplied memory source.
//
// Alloc returns size bytes or nil on failure; nil is accepted for size 0.
// Free releases a pointer returned by Alloc. Data is passed to both unchanged.
type ExternAlloc struct {
	Alloc func(size int, data any) unsafe.Pointer
	Free  func(ptr unsafe.Pointer, data any)
	Data  any
}

// Enabled reports whether both functions are set.
func (e ExternAlloc) Enabled() bool {
	return e.Alloc != nil && e.Free != nil
}

// ForkSafety marks address ranges as excluded from fork duplication.
// *forksafe.Tracker implements it.
type ForkSafety interface {
	// DontFork registers [addr, addr+length). Zero length must be a no-op.
	DontFork(addr uintptr, length int) error
	// DoFork drops a registration. Zero length must be a no-op.
	DoFork(addr uintptr, length int)
}

// Mapper obtains and releases anonymous private read/write memory.
// anonmap.OS implements it.
type Mapper interface {
	Map(length int) ([]byte, error)
	Unmap(data []byte) error
}

// Config is read once by New and never changes afterwards.
type Config struct {
	// Extern selects extern mode when both of its functions are set.
	Extern ExternAlloc

	// ForkSafety receives registrations. Default: forksafe.Default().
	ForkSafety ForkSafety

	// Mapper backs builtin mode. Default: anonmap.OS{}.
	Mapper Mapper

	// Logger receives allocation events. Default: logger.L at call time.
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *Metrics
}

// Region is a block of memory owned by the caller that allocated it.
type Region struct {
	addr    unsafe.Pointer
	length  int
	mapping []byte
	mode    Mode
	live    bool
	owner   *Allocator
}

// Addr returns the base address. It is nil for zero-length builtin regions and
// for zero-length extern regions whose allocator returned nil.
func (r *Region) Addr() unsafe.Pointer { return r.addr }

// Len returns the reserved length: page-rounded in builtin mode, the requested
// size in extern mode.
func (r *Region) Len() int { return r.length }

// Mode returns the path that produced the region.
func (r *Region) Mode() Mode { return r.mode }

// Live reports whether the region has not been released yet.
func (r *Region) Live() bool { return r != nil && r.live }

// Bytes returns the region as a byte slice, or nil when it is empty or released.
func (r *Region) Bytes() []byte {
	if !r.Live() || r.addr == nil || r.length == 0 {
		return nil
	}
	if r.mapping != nil {
		return r.mapping
	}
	return unsafe.Slice((*byte)(r.addr), r.length)
}
