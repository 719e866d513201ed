package arena_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/storozhukBM/hookarena/lib/arena"
)

type liveBlock struct {
	ptr     unsafe.Pointer
	size    uintptr
	pattern byte
}

func (b liveBlock) fill() {
	block := arena.BlockBytes(b.ptr, b.size)
	for i := range block {
		block[i] = b.pattern
	}
}

func (b liveBlock) checkPrefix(t *testing.T, size uintptr) {
	block := arena.BlockBytes(b.ptr, size)
	for i, actual := range block {
		if actual != b.pattern {
			t.Fatalf("block %p corrupted at %d: exp %x act %x", b.ptr, i, b.pattern, actual)
		}
	}
}

type commonStandState struct {
	metricsStringsSet stringsSetWithOrder
}

func (s *commonStandState) checkMetricsAreUnique(t *testing.T, target *arena.FixedAllocator) {
	metricsStr := target.EnhancedMetrics().String()
	require.NotEmpty(t, metricsStr)
	require.True(t, s.metricsStringsSet.addIfUnique(metricsStr), "metrics should be unique. target: %v", metricsStr)
}

func (s *commonStandState) printStandState(t *testing.T) {
	for _, key := range s.metricsStringsSet.list {
		t.Logf("metrics: %v\n", key)
	}
}

func newPool(size int) []byte {
	return arena.NewAlignedBuffer(size, arena.DefaultAlignment)
}

func failingFatalHandler(t *testing.T) arena.FatalHandler {
	return func(err error) {
		t.Errorf("unexpected fatal allocation failure: %v", err)
	}
}

type stringsSetWithOrder struct {
	set  map[string]struct{}
	list []string
}

func (s *stringsSetWithOrder) addIfUnique(key string) bool {
	if s.set == nil {
		s.set = map[string]struct{}{}
	}
	_, notUnique := s.set[key]
	if notUnique {
		return false
	}
	s.set[key] = struct{}{}
	s.list = append(s.list, key)
	return true
}
