package arena

import (
	"context"
	"fmt"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAllocator struct {
	calls  []string
	result unsafe.Pointer
	err    error
}

func (r *recordingAllocator) Allocate(size uintptr) (unsafe.Pointer, error) {
	r.calls = append(r.calls, fmt.Sprintf("allocate %d", size))
	return r.result, r.err
}

func (r *recordingAllocator) Deallocate(ptr unsafe.Pointer, size uintptr) {
	r.calls = append(r.calls, fmt.Sprintf("deallocate %d", size))
}

func (r *recordingAllocator) Reallocate(ptr unsafe.Pointer, oldSize uintptr, newSize uintptr) (unsafe.Pointer, error) {
	r.calls = append(r.calls, fmt.Sprintf("reallocate %d %d", oldSize, newSize))
	return r.result, r.err
}

func TestDispatchRouting(t *testing.T) {
	var block [8]byte
	ptr := unsafe.Pointer(&block[0])

	tests := []struct {
		name          string
		ptr           unsafe.Pointer
		osize, nsize  uintptr
		expectedCalls []string
		expectsResult bool
	}{
		{"free of nil is no-op", nil, 5, 0, nil, false},
		{"free", ptr, 8, 0, []string{"deallocate 8"}, false},
		{"allocation ignores osize", nil, 4, 16, []string{"allocate 16"}, true},
		{"reallocation", ptr, 8, 100, []string{"reallocate 8 100"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &recordingAllocator{result: ptr}
			result, dispatchErr := Dispatch(recorder, tt.ptr, tt.osize, tt.nsize)
			require.NoError(t, dispatchErr)
			assert.Equal(t, tt.expectedCalls, recorder.calls)
			if tt.expectsResult {
				assert.Equal(t, ptr, result)
			} else {
				assert.Nil(t, result)
			}
		})
	}
}

func TestHookServesInterpreterLifecycle(t *testing.T) {
	a := newScenarioArena(t, scenarioPoolSize)
	ud := a.UserState()

	state := Hook(ud, nil, 0, 376)
	require.NotNil(t, state)
	str := Hook(ud, nil, 4, 24)
	require.NotNil(t, str)
	copy(BlockBytes(str, 24), "local result = a*a + b*b")

	table := Hook(ud, nil, 5, 56)
	table = Hook(ud, table, 56, 112)
	require.True(t, a.Owns(table))

	str = Hook(ud, str, 24, 48)
	assert.Equal(t, "local result = a*a + b*b", string(BlockBytes(str, 24)))

	assert.Nil(t, Hook(ud, str, 48, 0))
	assert.Nil(t, Hook(ud, nil, 48, 0))
	assert.Equal(t, 2, a.EnhancedMetrics().FreeListLength)
}

func TestHookHandsFaultsToFatalHandler(t *testing.T) {
	var handled []error
	buffer := NewAlignedBuffer(8, 8)
	a := NewFixedAllocator(buffer[:4], FixedOptions{
		FatalHandler: func(err error) { handled = append(handled, err) },
	})

	assert.Nil(t, Hook(a.UserState(), nil, 0, 10))
	assert.Equal(t, []error{AlignmentFaultError}, handled)
}

func TestHookHandsBackingExhaustionToFatalHandler(t *testing.T) {
	var handled []error
	a := NewFixedAllocator(NewAlignedBuffer(64, 8), FixedOptions{
		Backing:      NewHeapAllocator(HeapOptions{LimitInBytes: 32}),
		FatalHandler: func(err error) { handled = append(handled, err) },
	})
	ud := a.UserState()

	require.NotNil(t, Hook(ud, nil, 0, 10))
	require.NotNil(t, Hook(ud, nil, 0, 32), "second block fits into the heap limit")
	assert.Nil(t, Hook(ud, nil, 0, 1))
	assert.Equal(t, []error{AllocationLimitError}, handled)
}

func TestHeapHook(t *testing.T) {
	var handled []error
	h := NewHeapAllocator(HeapOptions{
		LimitInBytes: 64,
		FatalHandler: func(err error) { handled = append(handled, err) },
	})
	ud := h.UserState()

	ptr := HeapHook(ud, nil, 0, 8)
	require.NotNil(t, ptr)
	copy(BlockBytes(ptr, 8), "lua_Num!")
	ptr = HeapHook(ud, ptr, 8, 16)
	assert.Equal(t, "lua_Num!", string(BlockBytes(ptr, 8)))

	assert.Nil(t, HeapHook(ud, nil, 0, 64))
	assert.Equal(t, []error{AllocationLimitError}, handled)

	assert.Nil(t, HeapHook(ud, ptr, 16, 0))
	assert.Zero(t, h.CountOfLiveBlocks())
}

func TestHookForContextBoundAllocator(t *testing.T) {
	ctx := context.Background()
	_, _, ok := HookFor(ctx)
	assert.False(t, ok)

	a := newScenarioArena(t, scenarioPoolSize)
	hook, ud, ok := HookFor(WithAllocator(ctx, a))
	require.True(t, ok)
	assert.Equal(t, a.UserState(), ud)
	assert.True(t, a.Owns(hook(ud, nil, 0, 1)))

	h := NewHeapAllocator(HeapOptions{})
	hook, ud, ok = HookFor(WithAllocator(ctx, h))
	require.True(t, ok)
	require.NotNil(t, hook(ud, nil, 0, 1))
	assert.Equal(t, 1, h.CountOfLiveBlocks())

	_, _, ok = HookFor(WithAllocator(ctx, &recordingAllocator{}))
	assert.False(t, ok)
}
