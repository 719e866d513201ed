package alignment_bench_test

import (
	"fmt"
	"math/rand"
	"testing"
)

func calculatePaddingMod(address uintptr, alignment uintptr) uintptr {
	return (alignment - (address % alignment)) % alignment
}

func calculatePaddingMask(address uintptr, alignment uintptr) uintptr {
	mask := alignment - 1
	return (alignment - (address & mask)) & mask
}

func calculatePaddingRoundUp(address uintptr, alignment uintptr) uintptr {
	mask := alignment - 1
	return ((address + mask) &^ mask) - address
}

func calculatePaddingWithShort(address uintptr, alignment uintptr) uintptr {
	if address&(alignment-1) == 0 {
		return 0
	}
	mask := alignment - 1
	return (alignment - (address & mask)) & mask
}

func benchmarkAlignment(b *testing.B, alignmentFunc func(address, alignment uintptr) uintptr) {
	b.StopTimer()

	tableSize := 64
	idxMask := tableSize - 1
	addresses := make([]uintptr, tableSize)
	aligns := make([]uintptr, tableSize)
	for i := 0; i < tableSize; i++ {
		addresses[i] = uintptr(rand.Intn(1 << 30))
		aligns[i] = uintptr(1) << uint(3+rand.Intn(4))
	}

	b.StartTimer()
	count := uintptr(0)
	for i := 0; i < b.N; i++ {
		idx := i & idxMask
		count += alignmentFunc(addresses[idx], aligns[idx])
	}
	b.StopTimer()
	if rand.Float64() < 0.00001 {
		fmt.Printf("%d\n", count)
	}
}

func BenchmarkAlignMod(b *testing.B) {
	benchmarkAlignment(b, calculatePaddingMod)
}

func BenchmarkAlignMask(b *testing.B) {
	benchmarkAlignment(b, calculatePaddingMask)
}

func BenchmarkAlignRoundUp(b *testing.B) {
	benchmarkAlignment(b, calculatePaddingRoundUp)
}

func BenchmarkAlignWithShort(b *testing.B) {
	benchmarkAlignment(b, calculatePaddingWithShort)
}

func TestAlternatives(t *testing.T) {
	n := 100000
	for i := 0; i < n; i++ {
		address := uintptr(rand.Intn(1 << 30))
		align := uintptr(1) << uint(rand.Intn(16))
		mod := calculatePaddingMod(address, align)
		mask := calculatePaddingMask(address, align)
		roundUp := calculatePaddingRoundUp(address, align)
		withShort := calculatePaddingWithShort(address, align)
		if mod != mask || mask != roundUp || roundUp != withShort {
			t.Fatalf(
				"address: %v; align: %v; mod: %v; mask: %v; roundUp: %v; withShort: %v",
				address, align, mod, mask, roundUp, withShort,
			)
		}
	}
}
