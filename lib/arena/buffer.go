package arena

import (
	"fmt"
	"unsafe"
)

// NewAlignedBuffer allocates a byte slice of the given size inside the general heap
// whose first byte is aligned to the target alignment.
//
// It over-allocates by alignment-1 bytes and shifts the slice start,
// so it can be used to prepare a pool for NewFixedAllocator with no leading padding.
// alignment - should be a power of 2 number and can't be 0.
func NewAlignedBuffer(size int, alignment uintptr) []byte {
	if !isPowerOfTwo(alignment) {
		panic(fmt.Errorf("alignment should be power of 2. actual value: %d", alignment))
	}
	if size < 0 {
		panic(fmt.Errorf("buffer size can't be negative. actual value: %d", size))
	}
	buf := make([]byte, size+int(alignment)-1)
	if len(buf) == 0 {
		return buf
	}
	shift := int(calculatePadding(uintptr(unsafe.Pointer(&buf[0])), alignment))
	return buf[shift : shift+size : shift+size]
}
