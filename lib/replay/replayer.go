package replay

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/storozhukBM/hookarena/lib/arena"
)

// Replayer plays a trace against a hook the way an interpreter would call it.
type Replayer struct {
	// Hook and UserState are the pair the interpreter state would be created with.
	Hook      arena.AllocFunc
	UserState unsafe.Pointer
	// Reset is invoked for x events after every live block is freed through the hook.
	// Traces with x events are rejected if nil.
	Reset func()
	// Verify fills every block with a pattern derived from its id
	// and checks the pattern survives reallocation and lives until free.
	Verify bool
	// Logger receives replay progress. Nothing is logged if nil.
	Logger log.Logger
}

// Report summarizes a replay.
type Report struct {
	Allocations   int
	Reallocations int
	Frees         int
	Resets        int
	// Failures counts allocations and reallocations the hook answered with nil.
	// Later events of a failed block are skipped.
	Failures      int
	Skipped       int
	LiveBlocks    int
	LiveBytes     uintptr
	PeakLiveBytes uintptr
}

func (r Report) String() string {
	return fmt.Sprintf(
		"{Allocations: %v Reallocations: %v Frees: %v Resets: %v Failures: %v Skipped: %v "+
			"LiveBlocks: %v LiveBytes: %v PeakLiveBytes: %v}",
		r.Allocations, r.Reallocations, r.Frees, r.Resets, r.Failures, r.Skipped,
		r.LiveBlocks, r.LiveBytes, r.PeakLiveBytes,
	)
}

type liveBlock struct {
	ptr  unsafe.Pointer
	size uintptr
}

type replayState struct {
	*Replayer
	live   map[uint64]liveBlock
	failed map[uint64]struct{}
	report Report
}

// Run replays the trace. Blocks still alive at the end stay allocated, like in an interpreter
// that was never closed. Run stops with an error on the first malformed event, corrupted block
// or context cancellation and returns the report of events played so far.
func (r *Replayer) Run(ctx context.Context, trace Trace) (Report, error) {
	if r.Hook == nil {
		return Report{}, errors.New("replayer has no hook")
	}
	state := &replayState{
		Replayer: r,
		live:     make(map[uint64]liveBlock),
		failed:   make(map[uint64]struct{}),
	}
	for i, event := range trace {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return state.report, errors.Wrapf(ctxErr, "replay interrupted at event %d", i)
		}
		if eventErr := state.play(event); eventErr != nil {
			return state.report, errors.Wrapf(eventErr, "event %d", i)
		}
	}
	r.debug("Trace replayed", "events", len(trace), "report", state.report)
	return state.report, nil
}

func (s *replayState) play(event Event) error {
	if _, failed := s.failed[event.ID]; failed && event.Kind != KindReset {
		if event.Kind != KindAllocate {
			s.report.Skipped++
			return nil
		}
		delete(s.failed, event.ID)
	}
	switch event.Kind {
	case KindAllocate:
		return s.allocate(event)
	case KindReallocate:
		return s.reallocate(event)
	case KindFree:
		return s.free(event)
	case KindReset:
		return s.reset()
	default:
		return errors.Errorf("unknown event kind %v", event.Kind)
	}
}

func (s *replayState) allocate(event Event) error {
	if _, exists := s.live[event.ID]; exists {
		return errors.Errorf("block %d is already allocated", event.ID)
	}
	s.report.Allocations++
	ptr := s.Hook(s.UserState, nil, 0, event.NewSize)
	if ptr == nil {
		s.report.Failures++
		s.failed[event.ID] = struct{}{}
		s.warn("Hook failed to allocate", "id", event.ID, "size", event.NewSize)
		return nil
	}
	s.track(event.ID, liveBlock{ptr: ptr, size: event.NewSize})
	return nil
}

func (s *replayState) reallocate(event Event) error {
	block, checkErr := s.lookup(event)
	if checkErr != nil {
		return checkErr
	}
	s.report.Reallocations++
	ptr := s.Hook(s.UserState, block.ptr, block.size, event.NewSize)
	if ptr == nil {
		// the old block is still valid, release it like a collected object
		s.report.Failures++
		s.failed[event.ID] = struct{}{}
		s.warn("Hook failed to reallocate", "id", event.ID, "osize", block.size, "nsize", event.NewSize)
		s.Hook(s.UserState, block.ptr, block.size, 0)
		s.untrack(event.ID)
		return nil
	}
	if s.Verify {
		preserved := block.size
		if event.NewSize < preserved {
			preserved = event.NewSize
		}
		if corruptionErr := checkPattern(event.ID, ptr, preserved); corruptionErr != nil {
			return errors.Wrap(corruptionErr, "content lost by reallocation")
		}
	}
	s.untrack(event.ID)
	s.track(event.ID, liveBlock{ptr: ptr, size: event.NewSize})
	return nil
}

func (s *replayState) free(event Event) error {
	block, checkErr := s.lookup(event)
	if checkErr != nil {
		return checkErr
	}
	if s.Verify {
		if corruptionErr := checkPattern(event.ID, block.ptr, block.size); corruptionErr != nil {
			return errors.Wrap(corruptionErr, "content corrupted before free")
		}
	}
	s.report.Frees++
	s.Hook(s.UserState, block.ptr, block.size, 0)
	s.untrack(event.ID)
	return nil
}

func (s *replayState) reset() error {
	if s.Reset == nil {
		return errors.New("trace resets the arena, but replayer has no reset")
	}
	for id, block := range s.live {
		s.Hook(s.UserState, block.ptr, block.size, 0)
		s.untrack(id)
	}
	s.failed = make(map[uint64]struct{})
	s.Reset()
	s.report.Resets++
	s.debug("Arena reset", "peak", s.report.PeakLiveBytes)
	return nil
}

func (s *replayState) lookup(event Event) (liveBlock, error) {
	block, ok := s.live[event.ID]
	if !ok {
		return liveBlock{}, errors.Errorf("%v of unknown block %d", event.Kind, event.ID)
	}
	if block.size != event.OldSize {
		return liveBlock{}, errors.Errorf(
			"%v of block %d with size %d, but it was allocated with %d",
			event.Kind, event.ID, event.OldSize, block.size,
		)
	}
	return block, nil
}

func (s *replayState) track(id uint64, block liveBlock) {
	s.live[id] = block
	if s.Verify {
		fillPattern(id, block.ptr, block.size)
	}
	s.report.LiveBlocks++
	s.report.LiveBytes += block.size
	if s.report.LiveBytes > s.report.PeakLiveBytes {
		s.report.PeakLiveBytes = s.report.LiveBytes
	}
}

func (s *replayState) untrack(id uint64) {
	block := s.live[id]
	delete(s.live, id)
	s.report.LiveBlocks--
	s.report.LiveBytes -= block.size
}

func (r *Replayer) debug(msg string, ctx ...interface{}) {
	if r.Logger != nil {
		r.Logger.Debug(msg, ctx...)
	}
}

func (r *Replayer) warn(msg string, ctx ...interface{}) {
	if r.Logger != nil {
		r.Logger.Warn(msg, ctx...)
	}
}

// patternOf never returns 0, so zeroed memory is never mistaken for a valid block.
func patternOf(id uint64) byte {
	return byte(id%251) + 1
}

func fillPattern(id uint64, ptr unsafe.Pointer, size uintptr) {
	pattern := patternOf(id)
	block := arena.BlockBytes(ptr, size)
	for i := range block {
		block[i] = pattern
	}
}

func checkPattern(id uint64, ptr unsafe.Pointer, size uintptr) error {
	pattern := patternOf(id)
	for i, actual := range arena.BlockBytes(ptr, size) {
		if actual != pattern {
			return errors.Errorf("block %d at %p: byte %d is %#x, expected %#x", id, ptr, i, actual, pattern)
		}
	}
	return nil
}
