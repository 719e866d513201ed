package main

import (
	"context"
	"fmt"
	"os"
	"unsafe"

	"github.com/ethereum/go-ethereum/log"

	"github.com/storozhukBM/hookarena/lib/arena"
)

// stringHeader mimics the header an interpreter puts in front of string bytes.
// It holds no Go pointers, so it can live in arena memory.
type stringHeader struct {
	hash   uint32
	length uint32
}

func main() {
	log.Root().SetHandler(log.LvlFilterHandler(log.LvlTrace, log.StreamHandler(os.Stderr, log.TerminalFormat(true))))

	pool := arena.NewFixedAllocator(arena.NewAlignedBuffer(1024, arena.DefaultAlignment), arena.FixedOptions{
		Logger: log.Root().New("module", "arena"),
	})
	ctx := arena.WithAllocator(context.Background(), pool)

	// the interpreter only ever sees the hook and its user state
	hook, ud, ok := arena.HookFor(ctx)
	if !ok {
		panic("no allocator bound to ctx")
	}

	str := newString(hook, ud, "hello from the arena")
	fmt.Printf("%+v %q\n", *(*stringHeader)(str), stringBytes(str))

	// table array part growing while values are appended
	size := uintptr(4 * 8)
	array := hook(ud, nil, 0, size)
	for i := 0; i < 5; i++ {
		array = hook(ud, array, size, size*2)
		size *= 2
	}
	fmt.Printf("array of %d bytes, in pool: %v\n", size, pool.Owns(array))

	hook(ud, array, size, 0)
	hook(ud, str, unsafe.Sizeof(stringHeader{})+uintptr(len("hello from the arena")), 0)
	fmt.Println(pool.EnhancedMetrics())
}

func newString(hook arena.AllocFunc, ud unsafe.Pointer, value string) unsafe.Pointer {
	headerSize := unsafe.Sizeof(stringHeader{})
	ptr := hook(ud, nil, 0, headerSize+uintptr(len(value)))
	header := (*stringHeader)(ptr)
	header.length = uint32(len(value))
	for i := 0; i < len(value); i++ {
		header.hash = header.hash*31 + uint32(value[i])
	}
	copy(arena.BlockBytes(unsafe.Add(ptr, headerSize), uintptr(len(value))), value)
	return ptr
}

func stringBytes(ptr unsafe.Pointer) string {
	header := (*stringHeader)(ptr)
	return string(arena.BlockBytes(unsafe.Add(ptr, unsafe.Sizeof(stringHeader{})), uintptr(header.length)))
}
