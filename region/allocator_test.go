package region

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAllocator_ModeSelection checks that extern mode needs both functions and
// that exactly one path runs per call.
func TestAllocator_ModeSelection(t *testing.T) {
	noopAlloc := func(int, any) unsafe.Pointer { return nil }
	noopFree := func(unsafe.Pointer, any) {}

	tests := []struct {
		name   string
		extern ExternAlloc
		want   Mode
	}{
		{"none", ExternAlloc{}, ModeBuiltin},
		{"alloc only", ExternAlloc{Alloc: noopAlloc}, ModeBuiltin},
		{"free only", ExternAlloc{Free: noopFree}, ModeBuiltin},
		{"both", ExternAlloc{Alloc: noopAlloc, Free: noopFree}, ModeExtern},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(Config{Extern: tt.extern, ForkSafety: newFakeFork(), Mapper: newFakeMapper()})
			assert.Equal(t, tt.want, a.Mode())
			assert.Equal(t, tt.want == ModeExtern, a.IsExtern())
		})
	}
}

func TestAllocator_DispatchUsesOnePath(t *testing.T) {
	t.Run("builtin", func(t *testing.T) {
		te := newTestEnv()
		a := te.builtin()

		r, err := a.Alloc(100, 4096)
		require.NoError(t, err)
		require.NoError(t, a.Free(r))

		assert.Equal(t, []int{4096}, te.mapper.maps)
		assert.Equal(t, []int{4096}, te.mapper.unmaps)
		assert.Empty(t, te.extern.allocs)
		assert.Empty(t, te.extern.frees)
	})

	t.Run("extern", func(t *testing.T) {
		te := newTestEnv()
		a := te.externAlloc(nil)

		r, err := a.Alloc(100, 4096)
		require.NoError(t, err)
		require.NoError(t, a.Free(r))

		assert.Equal(t, []int{100}, te.extern.allocs)
		assert.Len(t, te.extern.frees, 1)
		assert.Empty(t, te.mapper.maps)
		assert.Empty(t, te.mapper.unmaps)
	})
}

func TestAllocator_BadArguments(t *testing.T) {
	for _, extern := range []bool{false, true} {
		te := newTestEnv()
		a := te.builtin()
		if extern {
			a = te.externAlloc(nil)
		}

		_, err := a.Alloc(-1, 4096)
		require.ErrorIs(t, err, ErrBadArgument)
		_, err = a.Alloc(10, 0)
		require.ErrorIs(t, err, ErrBadArgument)
		_, err = a.Alloc(10, -4096)
		require.ErrorIs(t, err, ErrBadArgument)

		assert.Empty(t, te.mapper.maps, "extern=%v", extern)
		assert.Empty(t, te.extern.allocs, "extern=%v", extern)
		assert.Empty(t, te.fork.registers, "extern=%v", extern)
		assert.Equal(t, uint64(3), a.Stats().Failures)
	}
}

func TestAllocator_DoubleFree(t *testing.T) {
	te := newTestEnv()
	a := te.builtin()

	r, err := a.Alloc(8192, 4096)
	require.NoError(t, err)
	require.True(t, r.Live())
	require.NoError(t, a.Free(r))
	require.False(t, r.Live())

	err = a.Free(r)
	require.ErrorIs(t, err, ErrNotLive)

	assert.Len(t, te.mapper.unmaps, 1, "second Free must not unmap again")
	assert.Len(t, te.fork.unregister, 1, "second Free must not unregister again")
	assert.Nil(t, r.Bytes())
	assert.Zero(t, r.Len())
}

func TestAllocator_DoubleFreeExtern(t *testing.T) {
	te := newTestEnv()
	a := te.externAlloc(nil)

	r, err := a.Alloc(32, 4096)
	require.NoError(t, err)
	require.NoError(t, a.Free(r))
	require.ErrorIs(t, a.Free(r), ErrNotLive)

	assert.Len(t, te.extern.frees, 1)
	assert.Len(t, te.fork.unregister, 1)
}

func TestAllocator_FreeNil(t *testing.T) {
	a := newTestEnv().builtin()
	require.ErrorIs(t, a.Free(nil), ErrNotLive)
	require.ErrorIs(t, a.Free(&Region{}), ErrNotLive)
}

func TestAllocator_ForeignRegion(t *testing.T) {
	te := newTestEnv()
	builtin := te.builtin()
	extern := te.externAlloc(nil)

	r, err := builtin.Alloc(10, 4096)
	require.NoError(t, err)

	err = extern.Free(r)
	require.ErrorIs(t, err, ErrBadArgument)
	assert.True(t, r.Live(), "rejected Free leaves the region live")
	assert.Empty(t, te.extern.frees)

	require.NoError(t, builtin.Free(r))
}

// TestAllocator_SameModeForeignRegion frees a builtin region through a second
// builtin allocator with its own mapper and fork table.
func TestAllocator_SameModeForeignRegion(t *testing.T) {
	te1, te2 := newTestEnv(), newTestEnv()
	a1, a2 := te1.builtin(), te2.builtin()

	r, err := a1.Alloc(100, 4096)
	require.NoError(t, err)

	err = a2.Free(r)
	require.ErrorIs(t, err, ErrBadArgument)
	assert.True(t, r.Live())
	assert.Empty(t, te2.mapper.unmaps, "other allocator must not unmap")
	assert.Empty(t, te2.fork.unregister, "other allocator must not unregister")
	assert.Zero(t, a2.Stats().LiveRegions)
	assert.Equal(t, int64(1), a1.Stats().LiveRegions)

	require.NoError(t, a1.Free(r))
	assert.Equal(t, []int{4096}, te1.mapper.unmaps)
	assert.Zero(t, a1.Stats().LiveRegions)
}

func TestAllocator_Stats(t *testing.T) {
	te := newTestEnv()
	a := te.builtin()

	r1, err := a.Alloc(1, 4096)
	require.NoError(t, err)
	r2, err := a.Alloc(5000, 4096)
	require.NoError(t, err)

	st := a.Stats()
	assert.Equal(t, int64(2), st.LiveRegions)
	assert.Equal(t, int64(4096+8192), st.LiveBytes)
	assert.Equal(t, uint64(2), st.Allocs)

	require.NoError(t, a.Free(r1))
	require.NoError(t, a.Free(r2))

	st = a.Stats()
	assert.Zero(t, st.LiveRegions)
	assert.Zero(t, st.LiveBytes)
	assert.Equal(t, uint64(2), st.Frees)
	assert.Zero(t, st.Failures)
}

func TestAllocator_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	te := newTestEnv()
	a := New(Config{ForkSafety: te.fork, Mapper: te.mapper, Metrics: m})

	r, err := a.Alloc(10, 4096)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.allocations.WithLabelValues("builtin")))
	assert.Equal(t, 4096.0, testutil.ToFloat64(m.liveBytes.WithLabelValues("builtin")))

	require.NoError(t, a.Free(r))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.releases.WithLabelValues("builtin")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.liveBytes.WithLabelValues("builtin")))

	te.fork.failWith = errors.New("no")
	_, err = a.Alloc(10, 4096)
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("builtin", stageRegister)))

	te.mapper.failWith = errors.New("no memory")
	_, err = a.Alloc(10, 4096)
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("builtin", stageAlloc)))
}

func TestAllocator_DefaultsAreFilled(t *testing.T) {
	a := New(Config{})
	assert.NotNil(t, a.fork)
	assert.NotNil(t, a.mapper)
	assert.Equal(t, ModeBuiltin, a.Mode())
	assert.Equal(t, "builtin", ModeBuiltin.String())
	assert.Equal(t, "extern", ModeExtern.String())
	assert.Equal(t, "unknown", Mode(9).String())
}
