package anonmap

// OS maps memory straight from the operating system. The zero value is ready to use.
type OS struct{}

// Map calls the package-level Map.
func (OS) Map(length int) ([]byte, error) { return Map(length) }

// Unmap calls the package-level Unmap.
func (OS) Unmap(data []byte) error { return Unmap(data) }
