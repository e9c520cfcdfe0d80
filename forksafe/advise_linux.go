//go:build linux

package forksafe

import (
	"golang.org/x/sys/unix"
)

// madvise applies MADV_DONTFORK or MADV_DOFORK to a raw address range.
// Extern regions are not Go slices, so this goes through the raw syscall.
func madvise(addr uintptr, length int, dontFork bool) error {
	advice := unix.MADV_DOFORK
	if dontFork {
		advice = unix.MADV_DONTFORK
	}
	_, _, errno := unix.Syscall(unix.SYS_MADVISE, addr, uintptr(length), uintptr(advice))
	if errno != 0 {
		return errno
	}
	return nil
}
