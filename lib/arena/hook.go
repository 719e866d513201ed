package arena

import (
	"unsafe"

	"github.com/ethereum/go-ethereum/log"
)

// AllocFunc is the unified memory hook an embedded interpreter calls for every
// allocation, reallocation and deallocation.
//
// ud is the opaque user state bound once at interpreter state creation, ptr is the block
// being resized or freed, osize its size at allocation time and nsize the requested size.
type AllocFunc func(ud unsafe.Pointer, ptr unsafe.Pointer, osize uintptr, nsize uintptr) unsafe.Pointer

// FatalHandler decides what happens when the hook can't produce memory.
// The interpreter has no recovery path for a failed mandatory allocation,
// so a handler is expected to stop the process or unwind the host.
// If it returns, the hook returns nil.
type FatalHandler func(err error)

// CritFatalHandler logs the failure at critical level, which terminates the process
// with a non-zero exit status. Root logger is used if logger is nil.
func CritFatalHandler(logger log.Logger) FatalHandler {
	if logger == nil {
		logger = log.Root()
	}
	return func(err error) {
		logger.Crit("Unrecoverable allocation failure", "err", err)
	}
}

var (
	_ AllocFunc = Hook
	_ AllocFunc = HeapHook

	_ Allocator = (*FixedAllocator)(nil)
	_ Allocator = (*HeapAllocator)(nil)
)

// Dispatch routes one hook call to the allocator:
//   - nsize == 0 is a deallocation; a nil ptr is a no-op. The result is always nil.
//   - nsize != 0 with a nil ptr is a fresh allocation of nsize bytes.
//   - nsize != 0 with a non-nil ptr is a reallocation from osize to nsize bytes.
func Dispatch(a Allocator, ptr unsafe.Pointer, osize uintptr, nsize uintptr) (unsafe.Pointer, error) {
	if nsize == 0 {
		if ptr != nil {
			a.Deallocate(ptr, osize)
		}
		return nil, nil
	}
	if ptr == nil {
		return a.Allocate(nsize)
	}
	return a.Reallocate(ptr, osize, nsize)
}

// Hook is the AllocFunc over FixedAllocator.
// ud must be the value returned by FixedAllocator.UserState.
func Hook(ud unsafe.Pointer, ptr unsafe.Pointer, osize uintptr, nsize uintptr) unsafe.Pointer {
	pool := (*FixedAllocator)(ud)
	result, allocErr := Dispatch(pool, ptr, osize, nsize)
	if allocErr != nil {
		pool.fatal(allocErr)
		return nil
	}
	return result
}

// HeapHook is the AllocFunc over HeapAllocator alone.
// ud must be the value returned by HeapAllocator.UserState.
func HeapHook(ud unsafe.Pointer, ptr unsafe.Pointer, osize uintptr, nsize uintptr) unsafe.Pointer {
	heap := (*HeapAllocator)(ud)
	result, allocErr := Dispatch(heap, ptr, osize, nsize)
	if allocErr != nil {
		heap.fatal(allocErr)
		return nil
	}
	return result
}
