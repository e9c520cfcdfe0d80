// Package forksafe keeps the process-wide table of address ranges that must not
// be duplicated into a child process on fork.
//
// # Overview
//
// Memory handed to a network device for DMA must stay at the same physical
// pages for as long as the device may touch it. A copy-on-write fork would let
// the parent end up on a fresh copy while the device keeps writing the old
// pages, so such ranges are marked with madvise(MADV_DONTFORK) while they are
// registered and restored with MADV_DOFORK when the last user goes away.
//
// # Reference Counting
//
// Ranges are widened to page boundaries and counted per page. Two buffers that
// share a page keep it fork-unsafe until both have been unregistered:
//
//	t := forksafe.New(forksafe.Options{Enabled: true})
//	if err := t.DontFork(addr, n); err != nil {
//	    return err
//	}
//	defer t.DoFork(addr, n)
//
// The table is stored as disjoint spans of equal count in a B-tree, so a
// multi-gigabyte registration costs one node rather than one entry per page.
//
// # Enabling
//
// Default returns the shared table used by the region allocator. It is enabled
// unless RDMAV_FORK_SAFE or IBV_FORK_SAFE is set to a false value ("0",
// "false", "no", "off"). InitFromEnv re-applies the environment and
// SetEnabled switches a tracker directly; neither will turn off a tracker
// that still has ranges registered.
//
// # Thread Safety
//
// All Tracker methods are safe for concurrent use.
package forksafe
