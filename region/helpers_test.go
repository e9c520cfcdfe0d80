package region

import (
	"sync"
	"unsafe"
)

type rangeCall struct {
	Addr uintptr
	Len  int
}

// fakeFork records registrations and keeps a (addr,len) multiset so tests can
// check that every DontFork has a matching DoFork.
type fakeFork struct {
	mu         sync.Mutex
	registers  []rangeCall
	unregister []rangeCall
	live       map[uintptr]int
	failWith   error
}

func newFakeFork() *fakeFork {
	return &fakeFork{live: make(map[uintptr]int)}
}

func (f *fakeFork) DontFork(addr uintptr, length int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers = append(f.registers, rangeCall{Addr: addr, Len: length})
	if f.failWith != nil {
		return f.failWith
	}
	if length > 0 {
		f.live[addr]++
	}
	return nil
}

func (f *fakeFork) DoFork(addr uintptr, length int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unregister = append(f.unregister, rangeCall{Addr: addr, Len: length})
	if length > 0 && f.live[addr] > 0 {
		f.live[addr]--
		if f.live[addr] == 0 {
			delete(f.live, addr)
		}
	}
}

func (f *fakeFork) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// fakeMapper hands out Go heap buffers and counts map/unmap calls.
type fakeMapper struct {
	mu       sync.Mutex
	maps     []int
	unmaps   []int
	live     map[*byte]int
	failWith error
}

func newFakeMapper() *fakeMapper {
	return &fakeMapper{live: make(map[*byte]int)}
}

func (m *fakeMapper) Map(length int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maps = append(m.maps, length)
	if m.failWith != nil {
		return nil, m.failWith
	}
	data := make([]byte, length)
	m.live[&data[0]] = length
	return data, nil
}

func (m *fakeMapper) Unmap(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unmaps = append(m.unmaps, len(data))
	if len(data) > 0 {
		delete(m.live, &data[0])
	}
	return nil
}

func (m *fakeMapper) liveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// fakeExtern is an application allocator backed by Go heap buffers.
type fakeExtern struct {
	mu        sync.Mutex
	allocs    []int
	frees     []unsafe.Pointer
	data      []any
	returnNil bool
	fixed     unsafe.Pointer
	keep      map[unsafe.Pointer][]byte
}

func newFakeExtern() *fakeExtern {
	return &fakeExtern{keep: make(map[unsafe.Pointer][]byte)}
}

func (e *fakeExtern) alloc(size int, data any) unsafe.Pointer {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.allocs = append(e.allocs, size)
	e.data = append(e.data, data)
	switch {
	case e.returnNil:
		return nil
	case e.fixed != nil:
		return e.fixed
	case size == 0:
		return nil
	}
	b := make([]byte, size)
	p := unsafe.Pointer(&b[0])
	e.keep[p] = b
	return p
}

func (e *fakeExtern) free(ptr unsafe.Pointer, data any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frees = append(e.frees, ptr)
	e.data = append(e.data, data)
	delete(e.keep, ptr)
}

func (e *fakeExtern) config(data any) ExternAlloc {
	return ExternAlloc{Alloc: e.alloc, Free: e.free, Data: data}
}

// testEnv bundles the fakes behind an allocator.
type testEnv struct {
	fork   *fakeFork
	mapper *fakeMapper
	extern *fakeExtern
}

func newTestEnv() *testEnv {
	return &testEnv{fork: newFakeFork(), mapper: newFakeMapper(), extern: newFakeExtern()}
}

func (te *testEnv) builtin() *Allocator {
	return New(Config{ForkSafety: te.fork, Mapper: te.mapper})
}

func (te *testEnv) externAlloc(data any) *Allocator {
	return New(Config{ForkSafety: te.fork, Mapper: te.mapper, Extern: te.extern.config(data)})
}
