package arena

import "unsafe"

// freeNode is the view of a min size block while it sits on the free list.
// It is written only after the block is deallocated and read only before the block is reused,
// so it never aliases live interpreter data. Callers can keep state in the block,
// but the first word is smashed by deallocation.
//
// next is stored as an offset inside the pool plus one, zero terminates the list,
// so the pool never holds Go pointers.
type freeNode struct {
	next uintptr
}

const freeNodeSize = unsafe.Sizeof(freeNode{})

// MinBlockSizeFloor is the smallest min block size, a freed block should hold a free list link.
const MinBlockSizeFloor = freeNodeSize

// AlignmentFloor is the smallest arena alignment, free list links are read as machine words.
const AlignmentFloor = unsafe.Alignof(freeNode{})

const endOfFreeList uintptr = 0

func (a *FixedAllocator) nodeAt(offset uintptr) *freeNode {
	return (*freeNode)(unsafe.Pointer(&a.buffer[offset]))
}

func (a *FixedAllocator) pushFreeBlock(offset uintptr) {
	node := a.nodeAt(offset)
	node.next = a.freeListHead
	a.freeListHead = offset + 1
	a.freeListLength++
}

func (a *FixedAllocator) popFreeBlock() (uintptr, bool) {
	if a.freeListHead == endOfFreeList {
		return 0, false
	}
	offset := a.freeListHead - 1
	a.freeListHead = a.nodeAt(offset).next
	a.freeListLength--
	return offset, true
}
