package arena

import (
	"fmt"
	"unsafe"

	"github.com/ethereum/go-ethereum/log"
)

// FixedOptions configures FixedAllocator.
type FixedOptions struct {
	// MinBlockSize is the size every request is rounded up to
	// and the only size class recycled through the free list. DefaultMinBlockSize is used if 0.
	MinBlockSize uintptr
	// Alignment of every served pointer. DefaultAlignment is used if 0.
	Alignment uintptr
	// Backing serves requests the pool can't afford.
	// If nil, a HeapAllocator with the same alignment and logger is created.
	Backing *HeapAllocator
	// Logger receives trace level allocation events. Tracing is disabled if nil.
	Logger log.Logger
	// FatalHandler is invoked by Hook on alignment faults and backing failures.
	// Defaults to CritFatalHandler.
	FatalHandler FatalHandler
}

// FixedAllocator is the fixed capacity bump pointer allocator with a single size class free list.
//
// It serves requests from a caller provided pool:
//   - requests are rounded up to MinBlockSize;
//   - a min size request is served from the free list if it is not empty;
//   - otherwise the cursor is aligned and bumped by the rounded size;
//   - if the pool can't afford the request, it is delegated to the backing heap allocator
//     with the original size and the cursor stays where it was.
//
// Deallocation routes by pointer provenance: addresses inside the pool belong to the arena,
// everything else belongs to the backing allocator. Only min size blocks are ever reclaimed,
// the space of bigger blocks is burned until Reset.
//
// FixedAllocator is not safe for concurrent use.
type FixedAllocator struct {
	buffer   []byte
	begin    uintptr
	end      uintptr
	poolSize uintptr

	offset         uintptr
	freeListHead   uintptr
	freeListLength int

	minBlockSize uintptr
	alignment    uintptr

	backing *HeapAllocator
	logger  log.Logger
	fatal   FatalHandler

	countOfAllocations         int
	countOfRecycledAllocations int
	countOfFallbackAllocations int
	dataBytes                  int
}

// NewFixedAllocator creates an instance of arena.FixedAllocator over the buffer.
//
// The allocator takes ownership of the buffer for its whole lifetime and never resizes it.
// Options are validated eagerly and violations panic:
//   - buffer can't be empty;
//   - alignment should be a power of 2 and can't be smaller than a machine word;
//   - min block size should be able to hold a free list link;
//   - backing allocator alignment can't be weaker than the arena one.
func NewFixedAllocator(buffer []byte, opts FixedOptions) *FixedAllocator {
	if len(buffer) == 0 {
		panic("pool buffer can't be empty")
	}
	minBlockSize := opts.MinBlockSize
	if minBlockSize == 0 {
		minBlockSize = DefaultMinBlockSize
	}
	alignment := opts.Alignment
	if alignment == 0 {
		alignment = DefaultAlignment
	}
	if !isPowerOfTwo(alignment) {
		panic(fmt.Errorf("alignment should be power of 2. actual value: %d", alignment))
	}
	if alignment < AlignmentFloor {
		panic(fmt.Errorf("alignment can't be smaller than %d. actual value: %d", AlignmentFloor, alignment))
	}
	if minBlockSize < MinBlockSizeFloor {
		panic(fmt.Errorf("min block size can't be smaller than %d. actual value: %d", MinBlockSizeFloor, minBlockSize))
	}

	backing := opts.Backing
	if backing == nil {
		backing = NewHeapAllocator(HeapOptions{Alignment: alignment, Logger: opts.Logger})
	}
	if backing.Alignment() < alignment {
		panic(fmt.Errorf(
			"backing alignment can't be weaker than arena alignment %d. actual value: %d",
			alignment, backing.Alignment(),
		))
	}
	fatal := opts.FatalHandler
	if fatal == nil {
		fatal = CritFatalHandler(opts.Logger)
	}

	begin := uintptr(unsafe.Pointer(&buffer[0]))
	end := uintptr(unsafe.Pointer(&buffer[len(buffer)-1]))
	result := &FixedAllocator{
		buffer:       buffer,
		begin:        begin,
		end:          end,
		poolSize:     end - begin + 1,
		minBlockSize: minBlockSize,
		alignment:    alignment,
		backing:      backing,
		logger:       opts.Logger,
		fatal:        fatal,
	}
	result.Reset()
	return result
}

// Allocate serves a block of at least max(size, MinBlockSize) bytes.
//
// Exhaustion of the pool is not an error: such requests are silently served by the backing allocator.
// Returned errors are fatal for the interpreter:
//   - AlignmentFaultError if the cursor can't be aligned inside the pool at all;
//   - errors of the backing allocator, like AllocationLimitError.
func (a *FixedAllocator) Allocate(size uintptr) (unsafe.Pointer, error) {
	allocSize := a.sizeToAllocate(size)
	if allocSize == a.minBlockSize {
		if offset, ok := a.popFreeBlock(); ok {
			a.countOfAllocations++
			a.countOfRecycledAllocations++
			a.trace("Allocated block from free list", "size", size, "offset", offset)
			return unsafe.Pointer(&a.buffer[offset]), nil
		}
	}

	alignedOffset, alignErr := a.alignCursor()
	if alignErr != nil {
		return nil, alignErr
	}
	if alignedOffset > a.poolSize || allocSize > a.poolSize-alignedOffset {
		result, fallbackErr := a.backing.Allocate(size)
		if fallbackErr != nil {
			return nil, fallbackErr
		}
		a.countOfAllocations++
		a.countOfFallbackAllocations++
		a.trace("Pool exhausted, allocated block on heap", "size", size, "offset", a.offset)
		return result, nil
	}

	a.offset = alignedOffset + allocSize
	a.countOfAllocations++
	a.dataBytes += int(size)
	a.trace("Allocated block from pool", "size", allocSize, "offset", alignedOffset)
	return unsafe.Pointer(&a.buffer[alignedOffset]), nil
}

// Deallocate returns the block to its owner.
//
// size should be the one passed to the corresponding allocation, not the rounded one.
// Pool blocks of the min size are pushed to the free list, bigger pool blocks are left burned,
// blocks outside the pool are released by the backing allocator.
func (a *FixedAllocator) Deallocate(ptr unsafe.Pointer, size uintptr) {
	if !a.Owns(ptr) {
		a.backing.Deallocate(ptr, size)
		return
	}
	offset := uintptr(ptr) - a.begin
	if a.sizeToAllocate(size) != a.minBlockSize {
		a.trace("Block space burned until reset", "size", size, "offset", offset)
		return
	}
	a.pushFreeBlock(offset)
	a.trace("Deallocated block to free list", "offset", offset, "length", a.freeListLength)
}

// Reallocate allocates newSize bytes, copies min(oldSize, newSize) bytes from the old block
// and deallocates it. There is no in-place growth, even for min size blocks.
//
// The old block stays untouched if the allocation fails.
func (a *FixedAllocator) Reallocate(ptr unsafe.Pointer, oldSize uintptr, newSize uintptr) (unsafe.Pointer, error) {
	result, allocErr := a.Allocate(newSize)
	if allocErr != nil {
		return nil, allocErr
	}
	copyBlock(result, ptr, oldSize, newSize)
	a.Deallocate(ptr, oldSize)
	return result, nil
}

// Owns reports whether ptr lies inside the pool.
func (a *FixedAllocator) Owns(ptr unsafe.Pointer) bool {
	address := uintptr(ptr)
	return address >= a.begin && address <= a.end
}

// Reset moves the cursor to the beginning of the pool and empties the free list.
//
// Every pointer served from the pool before Reset becomes invalid,
// there is no liveness tracking, so callers must guarantee no references survive.
// Heap blocks served by the backing allocator are not affected.
func (a *FixedAllocator) Reset() {
	a.offset = 0
	a.freeListHead = endOfFreeList
	a.freeListLength = 0
	a.dataBytes = 0
	a.trace("Pool reset", "size", a.poolSize)
}

// Clear fills the pool with zeros and resets it.
func (a *FixedAllocator) Clear() {
	clearBytes(a.buffer)
	a.Reset()
}

// UserState returns the opaque handle Hook expects as its first argument.
func (a *FixedAllocator) UserState() unsafe.Pointer {
	return unsafe.Pointer(a)
}

// Backing returns the allocator that serves requests the pool can't afford.
func (a *FixedAllocator) Backing() *HeapAllocator {
	return a.backing
}

// CurrentOffset returns the offset of the bump cursor from the beginning of the pool.
func (a *FixedAllocator) CurrentOffset() uintptr {
	return a.offset
}

// MinBlockSize returns the size every request is rounded up to.
func (a *FixedAllocator) MinBlockSize() uintptr {
	return a.minBlockSize
}

// Alignment returns the alignment of every served pointer.
func (a *FixedAllocator) Alignment() uintptr {
	return a.alignment
}

// Stats provides a snapshot of essential allocation statistics,
// that can be used by end-users or other allocators for introspection.
func (a *FixedAllocator) Stats() Stats {
	heapStats := a.backing.Stats()
	return Stats{
		UsedBytes:                int(a.offset),
		AllocatedBytes:           heapStats.AllocatedBytes,
		CountOfOnHeapAllocations: heapStats.CountOfOnHeapAllocations,
	}
}

// Metrics provides a snapshot of current allocation statistics,
// that can be used by end-users or other allocators for introspection.
func (a *FixedAllocator) Metrics() Metrics {
	return Metrics{
		Stats:          a.Stats(),
		AvailableBytes: int(a.poolSize - a.offset),
		MaxCapacity:    int(a.poolSize),
	}
}

// EnhancedMetrics provides Metrics together with counters of the allocation paths.
func (a *FixedAllocator) EnhancedMetrics() EnhancedMetrics {
	return EnhancedMetrics{
		Metrics:                    a.Metrics(),
		CountOfAllocations:         a.countOfAllocations,
		CountOfRecycledAllocations: a.countOfRecycledAllocations,
		CountOfFallbackAllocations: a.countOfFallbackAllocations,
		FreeListLength:             a.freeListLength,
		PaddingOverhead:            int(a.offset) - a.dataBytes,
		DataBytes:                  a.dataBytes,
	}
}

// String provides a string snapshot of the current pool state.
func (a *FixedAllocator) String() string {
	return fmt.Sprintf(
		"fixedarena{offset: %v size: %v freeList: %v}",
		a.offset, a.poolSize, a.freeListLength,
	)
}

func (a *FixedAllocator) sizeToAllocate(size uintptr) uintptr {
	return maxSize(size, a.minBlockSize)
}

// alignCursor aligns the cursor against the whole pool, not the space left behind it:
// it fails only if the pool can't hold a single aligned unit or the cursor left the pool.
// Running out of space is detected by the caller after alignment.
func (a *FixedAllocator) alignCursor() (uintptr, error) {
	if a.offset > a.poolSize {
		return 0, AlignmentFaultError
	}
	padding := calculatePadding(a.begin+a.offset, a.alignment)
	if padding+a.alignment > a.poolSize {
		return 0, AlignmentFaultError
	}
	return a.offset + padding, nil
}

func (a *FixedAllocator) trace(msg string, ctx ...interface{}) {
	if a.logger == nil {
		return
	}
	a.logger.Trace(msg, ctx...)
}
