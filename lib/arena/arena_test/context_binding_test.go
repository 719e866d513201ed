package arena_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storozhukBM/hookarena/lib/arena"
)

func TestContextBinding(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	outOfContextArena := arena.NewHeapAllocator(arena.HeapOptions{})
	ctx = arena.WithAllocator(ctx, arena.NewFixedAllocator(newPool(16*1024), arena.FixedOptions{
		FatalHandler: failingFatalHandler(t),
	}))
	a, ok := arena.GetAllocator(ctx)
	require.True(t, ok)
	require.NotNil(t, a)

	fixed, ok := a.(*arena.FixedAllocator)
	require.True(t, ok, "fixed allocator expected: %T", a)
	growthStand := &hookWorkloadCheckingStand{
		seed:         3,
		operations:   1000,
		minBlockSize: fixed.MinBlockSize(),
		alignment:    fixed.Alignment(),
	}
	growthStand.check(t, fixed)

	hook, ud, ok := arena.HookFor(ctx)
	require.True(t, ok)
	require.Equal(t, fixed.UserState(), ud)
	require.True(t, fixed.Owns(hook(ud, nil, 0, 1)))

	ctx = arena.WithAllocator(context.Background(), arena.NewHeapAllocator(arena.HeapOptions{
		LimitInBytes: 1,
	}))
	a = arena.GetAllocatorOrDefault(ctx, outOfContextArena)
	require.NotSame(t, outOfContextArena, a)
	alloc, allocErr := a.Allocate(2)
	require.ErrorIs(t, allocErr, arena.AllocationLimitError)
	require.Nil(t, alloc)

	a = arena.GetAllocatorOrDefault(context.Background(), outOfContextArena)
	require.Same(t, outOfContextArena, a)
}
