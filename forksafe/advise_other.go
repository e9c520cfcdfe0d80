//go:build !linux

package forksafe

// madvise is a no-op: only Linux can exclude ranges from fork duplication.
func madvise(addr uintptr, length int, dontFork bool) error {
	return nil
}
