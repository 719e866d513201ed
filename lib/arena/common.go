package arena

import (
	"fmt"
	"unsafe"
)

// Error type used by the library to declare error constants.
type Error string

// Error method that implements error interface.
func (e Error) Error() string {
	return string(e)
}

// AllocationLimitError typically returned if
// the backing heap allocator can't afford the requested allocation.
const AllocationLimitError = Error("allocation limit")

// AllocationInvalidArgumentError typically returned if
// you passed an invalid argument to the allocation method.
const AllocationInvalidArgumentError = Error("allocation argument is invalid")

// AlignmentFaultError is returned when the bump cursor can't be aligned inside the pool at all.
// It means the pool is smaller than a single aligned unit or the cursor left the pool,
// which is a configuration fault and not an exhaustion, so hosts should treat it as fatal.
const AlignmentFaultError = Error("alignment can't be satisfied within the pool")

const (
	// DefaultMinBlockSize is the smallest block the arena ever serves
	// and the only size class recycled through the free list.
	DefaultMinBlockSize uintptr = 64
	// DefaultAlignment is the alignment of every pointer served by the arena or the heap fallback.
	DefaultAlignment uintptr = 8
)

// Allocator is the allocate/deallocate/reallocate triple behind the unified allocation hook.
//
// Callers must pass the exact size used at allocation time to Deallocate and Reallocate.
type Allocator interface {
	Allocate(size uintptr) (unsafe.Pointer, error)
	Deallocate(ptr unsafe.Pointer, size uintptr)
	Reallocate(ptr unsafe.Pointer, oldSize uintptr, newSize uintptr) (unsafe.Pointer, error)
}

// Stats is a struct that represents a snapshot of essential allocation statistics,
// that can be used by end-users or other allocators for introspection.
type Stats struct {
	UsedBytes                int // count of bytes consumed from the arena pool, including padding
	AllocatedBytes           int // count of bytes currently held inside the general heap
	CountOfOnHeapAllocations int // count of allocations performed inside the general heap
}

// String provides a string snapshot of the Stats state.
func (s Stats) String() string {
	return fmt.Sprintf(
		"{UsedBytes: %v AllocatedBytes %v CountOfOnHeapAllocations %v}",
		s.UsedBytes, s.AllocatedBytes, s.CountOfOnHeapAllocations,
	)
}

// Metrics is a struct that represents a snapshot of current allocation statistics,
// that can be used by end-users or other allocators for introspection.
type Metrics struct {
	Stats
	AvailableBytes int // count of bytes left in the arena pool behind the cursor
	MaxCapacity    int // size of the arena pool
}

// String provides a string snapshot of the Metrics state.
func (p Metrics) String() string {
	return fmt.Sprintf(
		"{UsedBytes: %v AvailableBytes: %v AllocatedBytes %v MaxCapacity %v CountOfOnHeapAllocations %v}",
		p.UsedBytes, p.AvailableBytes, p.AllocatedBytes, p.MaxCapacity, p.CountOfOnHeapAllocations,
	)
}

// EnhancedMetrics extends Metrics with counters of the arena allocation paths.
type EnhancedMetrics struct {
	Metrics
	CountOfAllocations         int // every served allocation, including recycled and fallback ones
	CountOfRecycledAllocations int // allocations served from the free list
	CountOfFallbackAllocations int // allocations delegated to the heap because the pool was exhausted
	FreeListLength             int
	PaddingOverhead            int // alignment padding and min block rounding inside the pool
	DataBytes                  int // requested bytes served by bumping the cursor
}

func (p EnhancedMetrics) String() string {
	return fmt.Sprintf(
		"{UsedBytes: %v AvailableBytes: %v AllocatedBytes %v MaxCapacity %v CountOfOnHeapAllocations %v "+
			"CountOfAllocations: %v CountOfRecycledAllocations: %v CountOfFallbackAllocations: %v "+
			"FreeListLength: %v PaddingOverhead: %v DataBytes: %v}",
		p.UsedBytes, p.AvailableBytes, p.AllocatedBytes, p.MaxCapacity, p.CountOfOnHeapAllocations,
		p.CountOfAllocations, p.CountOfRecycledAllocations, p.CountOfFallbackAllocations,
		p.FreeListLength, p.PaddingOverhead, p.DataBytes,
	)
}

func isPowerOfTwo(x uintptr) bool {
	return x != 0 && (x&(x-1)) == 0
}

func calculatePadding(address uintptr, targetAlignment uintptr) uintptr {
	mask := targetAlignment - 1
	return (targetAlignment - (address & mask)) & mask
}

func clearBytes(buf []byte) {
	if len(buf) == 0 {
		return
	}
	// this pattern will be recognized by compiler and optimized
	for i := range buf {
		buf[i] = 0
	}
}

func maxSize(a uintptr, b uintptr) uintptr {
	if a > b {
		return a
	}
	return b
}

func minSize(a uintptr, b uintptr) uintptr {
	if a < b {
		return a
	}
	return b
}
