package arena

import (
	"unsafe"
)

// BlockBytes converts a block served by one of the allocators to []byte of the given size.
//
// The result aliases arena or heap memory, so it is valid only until the block is deallocated
// or the arena is reset. We'd suggest calling it right before use to eliminate its visibility scope.
// If you want to move the block content out of the arena you can use CopyBlockToHeap.
func BlockBytes(ptr unsafe.Pointer, size uintptr) []byte {
	if ptr == nil || size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), size)
}

// CopyBlockToHeap copies the block content to the general heap.
// Can be used if you want to reset the arena and left this content accessible.
func CopyBlockToHeap(ptr unsafe.Pointer, size uintptr) []byte {
	blockFromArena := BlockBytes(ptr, size)
	copyOnHeap := make([]byte, len(blockFromArena))
	copy(copyOnHeap, blockFromArena)
	return copyOnHeap
}

// copyBlock moves the first min(oldSize, newSize) bytes of src to dst,
// so a shrinking reallocation never writes past the new block
// and a growing one never reads past the old block.
func copyBlock(dst unsafe.Pointer, src unsafe.Pointer, oldSize uintptr, newSize uintptr) {
	n := minSize(oldSize, newSize)
	if n == 0 || dst == src {
		return
	}
	copy(BlockBytes(dst, n), BlockBytes(src, n))
}
