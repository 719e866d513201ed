package arena

import (
	"fmt"
	"unsafe"

	"github.com/ethereum/go-ethereum/log"
)

// HeapOptions configures HeapAllocator.
type HeapOptions struct {
	// Alignment of every returned block. DefaultAlignment is used if 0.
	Alignment uintptr
	// LimitInBytes bounds bytes held at once. Zero means no limit.
	LimitInBytes uint
	// Logger receives trace level allocation events. Tracing is disabled if nil.
	Logger log.Logger
	// FatalHandler is invoked by HeapHook on allocation failures. Defaults to CritFatalHandler.
	FatalHandler FatalHandler
}

// HeapAllocator is a pass-through adapter over the general heap.
//
// FixedAllocator uses it as the fallback for requests the pool can't serve,
// and it can be bound to an interpreter directly through HeapHook.
// Each block is an independent heap slice, aligned by over-allocation,
// and is referenced from the live table until Deallocate, so the GC can't collect it
// while only the interpreter holds the pointer.
type HeapAllocator struct {
	alignment    uintptr
	limitInBytes int

	live map[uintptr][]byte

	allocatedBytes    int
	onHeapAllocations int

	logger log.Logger
	fatal  FatalHandler
}

// NewHeapAllocator creates an instance of arena.HeapAllocator.
func NewHeapAllocator(opts HeapOptions) *HeapAllocator {
	alignment := opts.Alignment
	if alignment == 0 {
		alignment = DefaultAlignment
	}
	if !isPowerOfTwo(alignment) {
		panic(fmt.Errorf("alignment should be power of 2. actual value: %d", alignment))
	}
	result := &HeapAllocator{
		alignment:    alignment,
		limitInBytes: int(opts.LimitInBytes),
		live:         make(map[uintptr][]byte),
		logger:       opts.Logger,
		fatal:        opts.FatalHandler,
	}
	if result.fatal == nil {
		result.fatal = CritFatalHandler(opts.Logger)
	}
	return result
}

// Allocate obtains an aligned block of the requested size from the general heap.
// Returns AllocationLimitError if the configured limit can't afford the block.
func (h *HeapAllocator) Allocate(size uintptr) (unsafe.Pointer, error) {
	targetSize := int(size)
	if h.limitInBytes > 0 && h.allocatedBytes+targetSize > h.limitInBytes {
		return nil, AllocationLimitError
	}
	// zero sized blocks still need a distinct address
	block := NewAlignedBuffer(int(maxSize(size, 1)), h.alignment)[:targetSize]
	ptr := unsafe.Pointer(unsafe.SliceData(block))

	h.live[uintptr(ptr)] = block
	h.allocatedBytes += targetSize
	h.onHeapAllocations++
	if h.logger != nil {
		h.logger.Trace("Allocated block on heap", "size", size, "held", h.allocatedBytes)
	}
	return ptr, nil
}

// Deallocate releases a block previously returned by Allocate or Reallocate.
// Unknown pointers are ignored.
func (h *HeapAllocator) Deallocate(ptr unsafe.Pointer, size uintptr) {
	block, ok := h.live[uintptr(ptr)]
	if !ok {
		return
	}
	delete(h.live, uintptr(ptr))
	h.allocatedBytes -= len(block)
	if h.logger != nil {
		h.logger.Trace("Released heap block", "size", size, "held", h.allocatedBytes)
	}
}

// Reallocate allocates a fresh heap block, copies min(oldSize, newSize) bytes into it
// and releases the old one. The old block stays valid if the allocation fails.
func (h *HeapAllocator) Reallocate(ptr unsafe.Pointer, oldSize uintptr, newSize uintptr) (unsafe.Pointer, error) {
	result, allocErr := h.Allocate(newSize)
	if allocErr != nil {
		return nil, allocErr
	}
	copyBlock(result, ptr, oldSize, newSize)
	h.Deallocate(ptr, oldSize)
	return result, nil
}

// UserState returns the opaque handle HeapHook expects as its first argument.
func (h *HeapAllocator) UserState() unsafe.Pointer {
	return unsafe.Pointer(h)
}

// Alignment returns the alignment of every returned block.
func (h *HeapAllocator) Alignment() uintptr {
	return h.alignment
}

// CountOfLiveBlocks returns the number of blocks allocated and not yet released.
func (h *HeapAllocator) CountOfLiveBlocks() int {
	return len(h.live)
}

// Stats provides a snapshot of essential allocation statistics.
func (h *HeapAllocator) Stats() Stats {
	return Stats{
		AllocatedBytes:           h.allocatedBytes,
		CountOfOnHeapAllocations: h.onHeapAllocations,
	}
}

// String provides a string snapshot of the heap allocator state.
func (h *HeapAllocator) String() string {
	return fmt.Sprintf("heap{alignment: %v live: %v held: %v}", h.alignment, len(h.live), h.allocatedBytes)
}
