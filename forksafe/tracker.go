package forksafe

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/btree"

	"github.com/joshuapare/verbsmem/internal/buf"
	"github.com/joshuapare/verbsmem/internal/logger"
)

// ErrInUse is returned when turning a tracker off while ranges are registered.
var ErrInUse = errors.New("forksafe: cannot disable while ranges are registered")

// Span is a page-aligned half-open range [Start, End) registered Refs times.
type Span struct {
	Start uintptr
	End   uintptr
	Refs  int
}

// Len returns the span length in bytes.
func (s Span) Len() int { return int(s.End - s.Start) }

func spanLess(a, b Span) bool { return a.Start < b.Start }

// adviseFunc applies MADV_DONTFORK (dontFork == true) or MADV_DOFORK to a
// page-aligned range.
type adviseFunc func(addr uintptr, length int, dontFork bool) error

// Options configures a Tracker.
type Options struct {
	// Enabled turns registration on. A disabled tracker accepts every call and
	// records nothing.
	Enabled bool

	// PageSize is the granularity ranges are widened to. Must be a power of two.
	// Default: the system page size.
	PageSize int

	// Logger receives advise failures on DoFork. Default: logger.L at call time.
	Logger *slog.Logger
}

// Tracker is a reference-counted table of fork-unsafe pages.
type Tracker struct {
	mu       sync.Mutex
	enabled  bool
	pageSize int
	spans    *btree.BTreeG[Span]
	advise   adviseFunc
	log      *slog.Logger
}

// New creates a Tracker. It panics if opts.PageSize is set but is not a
// power of two.
func New(opts Options) *Tracker {
	ps := opts.PageSize
	if ps == 0 {
		ps = os.Getpagesize()
	}
	if ps < 0 || ps&(ps-1) != 0 {
		panic(fmt.Sprintf("forksafe: page size %d is not a power of two", ps))
	}
	return &Tracker{
		enabled:  opts.Enabled,
		pageSize: ps,
		spans:    btree.NewG(16, spanLess),
		advise:   madvise,
		log:      opts.Logger,
	}
}

// Enabled reports whether registrations are being recorded.
func (t *Tracker) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// SetEnabled turns registration on or off. Turning it off fails with
// ErrInUse while any range is still registered.
func (t *Tracker) SetEnabled(on bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !on && t.spans.Len() > 0 {
		return ErrInUse
	}
	t.enabled = on
	return nil
}

// PageSize returns the alignment granularity.
func (t *Tracker) PageSize() int { return t.pageSize }

// DontFork registers [addr, addr+length) as fork-unsafe.
//
// Pages that were not registered before are advised MADV_DONTFORK. If any
// advise call fails, pages advised during this call are reverted, the table is
// left unchanged and the error is returned. Zero length is a no-op.
func (t *Tracker) DontFork(addr uintptr, length int) error {
	if length == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.enabled {
		return nil
	}

	start, end, err := buf.PageSpan(addr, length, t.pageSize)
	if err != nil {
		return fmt.Errorf("forksafe: %w", err)
	}

	over := t.overlapping(start, end)
	pieces := cover(over, start, end)

	var advised []Span
	for _, p := range pieces {
		if p.Refs != 0 {
			continue
		}
		if err := t.advise(p.Start, p.Len(), true); err != nil {
			for _, a := range advised {
				_ = t.advise(a.Start, a.Len(), false)
			}
			return fmt.Errorf("forksafe: madvise dontfork [%#x,%#x): %w", p.Start, p.End, err)
		}
		advised = append(advised, p)
	}

	t.apply(over, pieces, start, end, 1)
	return nil
}

// DoFork drops one registration of [addr, addr+length).
//
// Pages whose count reaches zero are advised MADV_DOFORK. Pages that were never
// registered are ignored. Advise failures are logged. Zero length is a no-op.
func (t *Tracker) DoFork(addr uintptr, length int) {
	if length == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.enabled {
		return
	}

	start, end, err := buf.PageSpan(addr, length, t.pageSize)
	if err != nil {
		t.logger().Warn("forksafe: bad dofork range", "addr", addr, "len", length, "err", err)
		return
	}

	over := t.overlapping(start, end)
	pieces := cover(over, start, end)

	for _, p := range pieces {
		if p.Refs != 1 {
			continue
		}
		if err := t.advise(p.Start, p.Len(), false); err != nil {
			t.logger().Warn("forksafe: madvise dofork failed",
				"start", p.Start, "end", p.End, "err", err)
		}
	}

	t.apply(over, pieces, start, end, -1)
}

// Spans returns a snapshot of the table in address order.
func (t *Tracker) Spans() []Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Span, 0, t.spans.Len())
	t.spans.Ascend(func(s Span) bool {
		out = append(out, s)
		return true
	})
	return out
}

// Len returns the number of spans in the table. An empty table means no page
// is currently registered.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spans.Len()
}

// Refs returns how many registrations cover the page containing addr.
func (t *Tracker) Refs(addr uintptr) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	refs := 0
	t.spans.DescendLessOrEqual(Span{Start: addr}, func(s Span) bool {
		if addr < s.End {
			refs = s.Refs
		}
		return false
	})
	return refs
}

func (t *Tracker) logger() *slog.Logger {
	if t.log != nil {
		return t.log
	}
	return logger.L
}

// overlapping returns the spans intersecting [start, end) in address order.
func (t *Tracker) overlapping(start, end uintptr) []Span {
	var out []Span
	t.spans.DescendLessOrEqual(Span{Start: start}, func(s Span) bool {
		if s.Start < start && s.End > start {
			out = append(out, s)
		}
		return false
	})
	t.spans.AscendGreaterOrEqual(Span{Start: start}, func(s Span) bool {
		if s.Start >= end {
			return false
		}
		out = append(out, s)
		return true
	})
	return out
}

// cover splits [start, end) into consecutive pieces carrying the current count,
// with zero-count pieces for the gaps between spans.
func cover(over []Span, start, end uintptr) []Span {
	var out []Span
	cur := start
	for _, s := range over {
		if s.Start > cur {
			out = append(out, Span{Start: cur, End: s.Start})
		}
		lo, hi := max(s.Start, cur), min(s.End, end)
		out = append(out, Span{Start: lo, End: hi, Refs: s.Refs})
		cur = hi
	}
	if cur < end {
		out = append(out, Span{Start: cur, End: end})
	}
	return out
}

// apply replaces the spans in over with pieces shifted by delta, keeping the
// parts of boundary spans that fall outside [start, end). Counts never go
// below zero.
func (t *Tracker) apply(over, pieces []Span, start, end uintptr, delta int) {
	for _, s := range over {
		t.spans.Delete(s)
		if s.Start < start {
			t.spans.ReplaceOrInsert(Span{Start: s.Start, End: start, Refs: s.Refs})
		}
		if s.End > end {
			t.spans.ReplaceOrInsert(Span{Start: end, End: s.End, Refs: s.Refs})
		}
	}
	for _, p := range pieces {
		p.Refs += delta
		if p.Refs > 0 {
			t.spans.ReplaceOrInsert(p)
		}
	}
	t.coalesce(start, end)
}

// coalesce merges touching spans with equal counts around [start, end].
func (t *Tracker) coalesce(start, end uintptr) {
	var run []Span
	t.spans.DescendLessOrEqual(Span{Start: start}, func(s Span) bool {
		if s.Start < start {
			run = append(run, s)
			return false
		}
		return true
	})
	t.spans.AscendGreaterOrEqual(Span{Start: start}, func(s Span) bool {
		if s.Start > end {
			return false
		}
		run = append(run, s)
		return true
	})
	if len(run) < 2 {
		return
	}

	acc := run[0]
	for _, s := range run[1:] {
		if acc.End == s.Start && acc.Refs == s.Refs {
			t.spans.Delete(s)
			acc.End = s.End
			t.spans.ReplaceOrInsert(acc)
			continue
		}
		acc = s
	}
}
