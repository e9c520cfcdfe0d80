package main

import (
	"sync"
	"unsafe"

	"github.com/joshuapare/verbsmem/internal/anonmap"
	"github.com/joshuapare/verbsmem/region"
)

// mmapPool is a demo external allocator: every allocation is its own
// anonymous mapping, tracked so Free can find the slice again.
type mmapPool struct {
	mu   sync.Mutex
	live map[unsafe.Pointer][]byte
}

func newMmapPool() *mmapPool {
	return &mmapPool{live: make(map[unsafe.Pointer][]byte)}
}

func (p *mmapPool) externAlloc() region.ExternAlloc {
	return region.ExternAlloc{
		Alloc: func(size int, data any) unsafe.Pointer { return data.(*mmapPool).alloc(size) },
		Free:  func(ptr unsafe.Pointer, data any) { data.(*mmapPool).free(ptr) },
		Data:  p,
	}
}

func (p *mmapPool) alloc(size int) unsafe.Pointer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if size == 0 {
		return nil
	}
	b, err := anonmap.Map(size)
	if err != nil {
		return nil
	}
	ptr := unsafe.Pointer(&b[0])
	p.live[ptr] = b
	return ptr
}

func (p *mmapPool) free(ptr unsafe.Pointer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.live[ptr]; ok {
		delete(p.live, ptr)
		_ = anonmap.Unmap(b)
	}
}

// outstanding returns the number of mappings not yet freed.
func (p *mmapPool) outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}
