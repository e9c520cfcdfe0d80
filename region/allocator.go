package region

import (
	"fmt"
	"log/slog"

	"go.uber.org/atomic"

	"github.com/joshuapare/verbsmem/forksafe"
	"github.com/joshuapare/verbsmem/internal/anonmap"
	"github.com/joshuapare/verbsmem/internal/logger"
)

// Allocator hands out fork-safe regions in the mode chosen by its Config.
type Allocator struct {
	extern  ExternAlloc
	fork    ForkSafety
	mapper  Mapper
	log     *slog.Logger
	metrics *Metrics

	liveRegions atomic.Int64
	liveBytes   atomic.Int64
	allocs      atomic.Uint64
	frees       atomic.Uint64
	failures    atomic.Uint64
}

// Stats is a point-in-time snapshot of allocator counters.
type Stats struct {
	LiveRegions int64
	LiveBytes   int64
	Allocs      uint64
	Frees       uint64
	Failures    uint64
}

// New creates an Allocator. Unset Config fields get their defaults.
func New(cfg Config) *Allocator {
	a := &Allocator{
		extern:  cfg.Extern,
		fork:    cfg.ForkSafety,
		mapper:  cfg.Mapper,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
	}
	if a.fork == nil {
		a.fork = forksafe.Default()
	}
	if a.mapper == nil {
		a.mapper = anonmap.OS{}
	}
	return a
}

// IsExtern reports whether allocations go through the external allocator.
func (a *Allocator) IsExtern() bool {
	return a.extern.Enabled()
}

// Mode returns the allocation path in use.
func (a *Allocator) Mode() Mode {
	if a.IsExtern() {
		return ModeExtern
	}
	return ModeBuiltin
}

// Alloc returns a live region of at least size bytes.
//
// In builtin mode the length is size rounded up to a multiple of pageSize. In
// extern mode the length is size and pageSize is only validated.
func (a *Allocator) Alloc(size, pageSize int) (*Region, error) {
	mode := a.Mode()
	if size < 0 || pageSize <= 0 {
		a.fail(mode, stageAlloc)
		return nil, fmt.Errorf("%w: size=%d pageSize=%d", ErrBadArgument, size, pageSize)
	}

	var (
		r   *Region
		err error
	)
	if mode == ModeExtern {
		r, err = a.allocExtern(size)
	} else {
		r, err = a.allocBuiltin(size, pageSize)
	}
	if err != nil {
		return nil, err
	}

	a.liveRegions.Inc()
	a.liveBytes.Add(int64(r.length))
	a.allocs.Inc()
	a.metrics.allocated(mode, r.length)
	a.logger().Debug("region allocated",
		"mode", mode, "size", size, "len", r.length, "addr", r.addr)
	return r, nil
}

// Free releases a region obtained from this allocator. After Free returns the
// region is no longer live, even if the final unmap reported an error.
func (a *Allocator) Free(r *Region) error {
	if !r.Live() {
		return ErrNotLive
	}
	mode := a.Mode()
	if r.owner != a {
		return fmt.Errorf("%w: %s region freed by a different %s allocator", ErrBadArgument, r.mode, mode)
	}

	length := r.length
	var err error
	if mode == ModeExtern {
		a.freeExtern(r)
	} else {
		err = a.freeBuiltin(r)
	}

	r.live = false
	r.addr = nil
	r.mapping = nil
	r.length = 0
	r.owner = nil

	a.liveRegions.Dec()
	a.liveBytes.Sub(int64(length))
	a.frees.Inc()
	a.metrics.released(mode, length)
	if err != nil {
		a.fail(mode, stageRelease)
		return err
	}
	a.logger().Debug("region released", "mode", mode, "len", length)
	return nil
}

// Stats returns the current counters.
func (a *Allocator) Stats() Stats {
	return Stats{
		LiveRegions: a.liveRegions.Load(),
		LiveBytes:   a.liveBytes.Load(),
		Allocs:      a.allocs.Load(),
		Frees:       a.frees.Load(),
		Failures:    a.failures.Load(),
	}
}

func (a *Allocator) fail(mode Mode, stage string) {
	a.failures.Inc()
	a.metrics.failed(mode, stage)
}

func (a *Allocator) logger() *slog.Logger {
	if a.log != nil {
		return a.log
	}
	return logger.L
}
