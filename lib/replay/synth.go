package replay

import (
	"math/rand"
)

// SynthOptions configures Synthesize.
type SynthOptions struct {
	// Events is the number of events before the closing frees.
	Events int
	Seed   int64
	// MinBlockSize is the size most synthetic objects fit into. Defaults to 64.
	MinBlockSize uintptr
	// ResetEvery emits an x event after every ResetEvery events. Zero disables resets.
	ResetEvery int
	// KeepAlive leaves live blocks allocated at the end instead of freeing them like lua_close does.
	KeepAlive bool
}

// Synthesize generates an interpreter-like trace: mostly strings, tables and closures
// that fit into the min block, occasional large buffers and growing reallocations
// of table parts. The same options always produce the same trace.
func Synthesize(opts SynthOptions) Trace {
	minBlockSize := opts.MinBlockSize
	if minBlockSize == 0 {
		minBlockSize = 64
	}
	g := &synthesizer{
		rnd:          rand.New(rand.NewSource(opts.Seed)),
		minBlockSize: minBlockSize,
		sizes:        make(map[uint64]uintptr),
	}

	result := make(Trace, 0, opts.Events)
	for i := 0; i < opts.Events; i++ {
		if opts.ResetEvery > 0 && i > 0 && i%opts.ResetEvery == 0 {
			result = append(result, Event{Kind: KindReset})
			g.forgetAll()
			continue
		}
		result = append(result, g.next())
	}
	if !opts.KeepAlive {
		for len(g.live) > 0 {
			result = append(result, g.free(len(g.live)-1))
		}
	}
	return result
}

type synthesizer struct {
	rnd          *rand.Rand
	minBlockSize uintptr
	nextID       uint64
	live         []uint64
	sizes        map[uint64]uintptr
}

func (g *synthesizer) next() Event {
	switch op := g.rnd.Intn(100); {
	case op < 55 || len(g.live) == 0:
		return g.allocate()
	case op < 75:
		return g.reallocate(g.rnd.Intn(len(g.live)))
	default:
		return g.free(g.rnd.Intn(len(g.live)))
	}
}

func (g *synthesizer) allocate() Event {
	g.nextID++
	id := g.nextID
	size := g.objectSize()
	g.live = append(g.live, id)
	g.sizes[id] = size
	return Event{Kind: KindAllocate, ID: id, NewSize: size}
}

func (g *synthesizer) reallocate(idx int) Event {
	id := g.live[idx]
	oldSize := g.sizes[id]
	var newSize uintptr
	if g.rnd.Intn(4) == 0 || oldSize >= g.minBlockSize*256 {
		// shrinking table part
		newSize = oldSize/2 + 1
	} else {
		newSize = oldSize * 2
	}
	g.sizes[id] = newSize
	return Event{Kind: KindReallocate, ID: id, OldSize: oldSize, NewSize: newSize}
}

func (g *synthesizer) free(idx int) Event {
	id := g.live[idx]
	size := g.sizes[id]
	g.live[idx] = g.live[len(g.live)-1]
	g.live = g.live[:len(g.live)-1]
	delete(g.sizes, id)
	return Event{Kind: KindFree, ID: id, OldSize: size}
}

func (g *synthesizer) forgetAll() {
	g.live = g.live[:0]
	g.sizes = make(map[uint64]uintptr)
}

func (g *synthesizer) objectSize() uintptr {
	switch bucket := g.rnd.Intn(100); {
	case bucket < 80:
		return uintptr(g.rnd.Intn(int(g.minBlockSize))) + 1
	case bucket < 96:
		return g.minBlockSize + uintptr(g.rnd.Intn(int(g.minBlockSize)*7)) + 1
	default:
		return g.minBlockSize*8 + uintptr(g.rnd.Intn(int(g.minBlockSize)*56)) + 1
	}
}
