//go:build linux || darwin || freebsd

// Package anonmap provides anonymous, process-private memory mappings for
// buffers that are handed to hardware.
package anonmap

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Map returns a zero-filled, private, read/write anonymous mapping of length
// bytes. Errors are the raw errno reported by mmap.
func Map(length int) ([]byte, error) {
	if length <= 0 {
		return nil, unix.EINVAL
	}
	return unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
}

// Unmap releases a mapping obtained from Map.
func Unmap(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	err := unix.Munmap(data)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}

// PageSize returns the system page size.
func PageSize() int {
	return unix.Getpagesize()
}
