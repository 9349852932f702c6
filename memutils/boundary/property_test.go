package boundary_test

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/tagheap/memutils"
	"github.com/vkngwrapper/tagheap/memutils/boundary"
)

type liveAllocation struct {
	ptr  int
	size int
	fill byte
}

func requireDisjoint(t *testing.T, heap *boundary.Heap, live []liveAllocation) {
	sorted := make([]liveAllocation, len(live))
	copy(sorted, live)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ptr < sorted[j].ptr
	})

	for i, alloc := range sorted {
		require.True(t, memutils.IsAligned(alloc.ptr, boundary.Alignment))
		require.GreaterOrEqual(t, heap.UsableSize(alloc.ptr), alloc.size)
		require.LessOrEqual(t, alloc.ptr+alloc.size, heap.High()-boundary.WordSize)

		if i > 0 {
			prev := sorted[i-1]
			require.LessOrEqual(t, prev.ptr+prev.size, alloc.ptr-boundary.WordSize, "allocations at %d and %d overlap", prev.ptr, alloc.ptr)
		}
	}
}

func TestRandomWorkload(t *testing.T) {
	heap, _ := readyHeap(t, 4*1024*1024)
	rng := rand.New(rand.NewSource(351))

	var live []liveAllocation
	for op := 0; op < 2000; op++ {
		if len(live) == 0 || rng.Intn(3) > 0 {
			size := 1 + rng.Intn(600)
			if rng.Intn(20) == 0 {
				size = 4096 + rng.Intn(8192)
			}

			ptr := allocate(t, heap, size)
			fill := byte(op)
			payload := heap.Payload(ptr)[:size]
			for i := range payload {
				payload[i] = fill
			}

			live = append(live, liveAllocation{ptr: ptr, size: size, fill: fill})
		} else {
			index := rng.Intn(len(live))
			alloc := live[index]

			for _, b := range heap.Payload(alloc.ptr)[:alloc.size] {
				require.Equal(t, alloc.fill, b)
			}

			heap.Release(alloc.ptr)
			require.NoError(t, heap.Validate())

			live[index] = live[len(live)-1]
			live = live[:len(live)-1]
		}

		if op%50 == 0 {
			requireDisjoint(t, heap, live)
		}
	}

	requireDisjoint(t, heap, live)
	require.Equal(t, len(live), heap.AllocationCount())

	for _, alloc := range live {
		heap.Release(alloc.ptr)
	}
	require.NoError(t, heap.Validate())
	require.True(t, heap.IsEmpty())

	// Everything has coalesced back into one free block spanning the heap
	require.Equal(t, 1, heap.FreeBlockCount())
	require.Equal(t, heap.High()-2*boundary.WordSize, heap.SumFreeSize())
}
