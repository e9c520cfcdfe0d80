//go:build !linux && !darwin && !freebsd

// Package anonmap provides anonymous, process-private memory mappings for
// buffers that are handed to hardware.
package anonmap

import (
	"errors"
	"os"
)

// ErrNotSupported is returned by Map on platforms without anonymous mmap support.
var ErrNotSupported = errors.New("anonmap: anonymous mappings not supported on this platform")

// Map always fails on this platform.
func Map(length int) ([]byte, error) {
	return nil, ErrNotSupported
}

// Unmap is a no-op on this platform.
func Unmap(data []byte) error {
	return nil
}

// PageSize returns the system page size.
func PageSize() int {
	return os.Getpagesize()
}
