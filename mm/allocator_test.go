package mm_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/tagheap/memutils"
	mock_arena "github.com/vkngwrapper/tagheap/memutils/arena/mocks"
	"github.com/vkngwrapper/tagheap/mm"
	"go.uber.org/mock/gomock"
)

func readyAllocator(t *testing.T, options mm.CreateOptions) *mm.Allocator {
	if options.PageSize == 0 {
		options.PageSize = 4096
	}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	allocator, err := mm.New(logger, options)
	require.NoError(t, err)
	require.NoError(t, allocator.CheckConsistency())

	return allocator
}

func TestAllocatorReuse(t *testing.T) {
	allocator := readyAllocator(t, mm.CreateOptions{})

	ptrA, err := allocator.Allocate(16)
	require.NoError(t, err)
	ptrB, err := allocator.Allocate(16)
	require.NoError(t, err)
	ptrC, err := allocator.Allocate(16)
	require.NoError(t, err)

	require.Equal(t, mm.Pointer(16), ptrA)
	require.Equal(t, mm.Pointer(48), ptrB)
	require.Equal(t, mm.Pointer(80), ptrC)
	require.Equal(t, 4144, allocator.HeapSize())

	allocator.Release(ptrB)
	require.NoError(t, allocator.CheckConsistency())

	ptrD, err := allocator.Allocate(8)
	require.NoError(t, err)
	require.Equal(t, ptrB, ptrD)
	require.Equal(t, 4144, allocator.HeapSize())

	allocator.Release(ptrA)
	allocator.Release(ptrC)
	allocator.Release(ptrD)
	allocator.Release(mm.Null)
	require.NoError(t, allocator.CheckConsistency())

	require.NoError(t, allocator.Destroy())
}

func TestAllocatorZeroSize(t *testing.T) {
	allocator := readyAllocator(t, mm.CreateOptions{})

	ptr, err := allocator.Allocate(0)
	require.NoError(t, err)
	require.Equal(t, mm.Null, ptr)
	require.Nil(t, allocator.Payload(mm.Null))
	require.Equal(t, 0, allocator.UsableSize(mm.Null))
	require.Equal(t, 0, allocator.Counters().AllocateCalls)

	_, err = allocator.Allocate(-5)
	require.True(t, errors.Is(err, memutils.ErrInvalidSize))

	require.NoError(t, allocator.Destroy())
}

func TestAllocatorReallocate(t *testing.T) {
	allocator := readyAllocator(t, mm.CreateOptions{})

	ptr, err := allocator.Reallocate(mm.Null, 10)
	require.NoError(t, err)
	require.Equal(t, 24, allocator.UsableSize(ptr))
	copy(allocator.Payload(ptr), "0123456789")

	// Fits in the existing block
	same, err := allocator.Reallocate(ptr, 24)
	require.NoError(t, err)
	require.Equal(t, ptr, same)

	// Pin the block after ptr so growing must move
	pin, err := allocator.Allocate(8)
	require.NoError(t, err)

	moved, err := allocator.Reallocate(ptr, 200)
	require.NoError(t, err)
	require.NotEqual(t, ptr, moved)
	require.GreaterOrEqual(t, allocator.UsableSize(moved), 200)
	require.Equal(t, []byte("0123456789"), allocator.Payload(moved)[:10])
	require.NoError(t, allocator.CheckConsistency())

	var stats memutils.DetailedStatistics
	require.NoError(t, allocator.CalculateStatistics(&stats))
	require.Equal(t, 2, stats.AllocationCount)

	_, err = allocator.Reallocate(moved, -1)
	require.True(t, errors.Is(err, memutils.ErrInvalidSize))

	released, err := allocator.Reallocate(moved, 0)
	require.NoError(t, err)
	require.Equal(t, mm.Null, released)

	allocator.Release(pin)
	require.NoError(t, allocator.CalculateStatistics(&stats))
	require.Equal(t, 0, stats.AllocationCount)
	require.Equal(t, 1, stats.FreeBlockCount)

	require.NoError(t, allocator.Destroy())
}

func TestAllocatorReallocateOutOfMemory(t *testing.T) {
	allocator := readyAllocator(t, mm.CreateOptions{MaxHeapSize: 8192})

	ptr, err := allocator.Allocate(100)
	require.NoError(t, err)
	copy(allocator.Payload(ptr), "payload")

	_, err = allocator.Reallocate(ptr, 16384)
	require.True(t, errors.Is(err, memutils.ErrOutOfMemory))

	// The original allocation survives the failure
	require.Equal(t, []byte("payload"), allocator.Payload(ptr)[:7])
	require.NoError(t, allocator.CheckConsistency())

	_, err = allocator.Allocate(1 << 20)
	require.True(t, errors.Is(err, memutils.ErrOutOfMemory))

	_, err = allocator.Reallocate(ptr, math.MaxInt)
	require.True(t, errors.Is(err, memutils.ErrOutOfMemory))
	require.Equal(t, []byte("payload"), allocator.Payload(ptr)[:7])

	allocator.Release(ptr)
	require.NoError(t, allocator.Destroy())
}

func TestAllocatorConcurrentUse(t *testing.T) {
	allocator := readyAllocator(t, mm.CreateOptions{MaxHeapSize: 16 * 1024 * 1024})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			var ptrs []mm.Pointer
			for i := 0; i < 200; i++ {
				ptr, err := allocator.Allocate(1 + (worker*37+i*13)%500)
				if err != nil {
					errs <- err
					return
				}
				ptrs = append(ptrs, ptr)

				if i%3 == 0 {
					allocator.Release(ptrs[0])
					ptrs = ptrs[1:]
				}
			}

			for _, ptr := range ptrs {
				allocator.Release(ptr)
			}
		}(worker)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	require.NoError(t, allocator.CheckConsistency())

	var stats memutils.DetailedStatistics
	require.NoError(t, allocator.CalculateStatistics(&stats))
	require.Equal(t, 0, stats.AllocationCount)
	require.Equal(t, 1, stats.FreeBlockCount)

	require.NoError(t, allocator.Destroy())
}

func TestAllocatorDestroyReportsLeaks(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	allocator, err := mm.New(logger, mm.CreateOptions{PageSize: 4096})
	require.NoError(t, err)

	ptr, err := allocator.Allocate(16)
	require.NoError(t, err)

	err = allocator.Destroy()
	require.Error(t, err)
	require.Contains(t, err.Error(), "1 allocations were not freed")
	require.Contains(t, logs.String(), "[UNRELEASED MEMORY] unfreed allocation")
	require.Contains(t, logs.String(), `"offset":16`)
	require.Contains(t, logs.String(), `"size":24`)

	// Everything is refused once destroyed
	require.Error(t, allocator.Destroy())
	require.Error(t, allocator.CheckConsistency())
	_, err = allocator.Allocate(8)
	require.Error(t, err)
	require.Nil(t, allocator.Payload(ptr))
	require.Equal(t, 0, allocator.HeapSize())
	allocator.Release(ptr)
}

func TestAllocatorExternallySynchronized(t *testing.T) {
	allocator := readyAllocator(t, mm.CreateOptions{Flags: mm.AllocatorCreateExternallySynchronized})

	ptr, err := allocator.Allocate(64)
	require.NoError(t, err)
	allocator.Release(ptr)
	require.NoError(t, allocator.CheckConsistency())

	require.Equal(t, "AllocatorCreateExternallySynchronized", mm.AllocatorCreateExternallySynchronized.String())
	require.Equal(t, "None", mm.CreateFlags(0).String())

	require.NoError(t, allocator.Destroy())
}

func TestAllocatorArenaFailure(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockArena := mock_arena.NewMockArena(ctrl)
	mockArena.EXPECT().Low().Return(0).AnyTimes()
	mockArena.EXPECT().High().Return(0).AnyTimes()
	mockArena.EXPECT().PageSize().Return(4096).AnyTimes()
	mockArena.EXPECT().Sbrk(48).Return(0, errors.New("no memory available"))

	_, err := mm.New(nil, mm.CreateOptions{Arena: mockArena})
	require.True(t, errors.Is(err, memutils.ErrOutOfMemory))
}

func TestAllocatorInvalidOptions(t *testing.T) {
	_, err := mm.New(nil, mm.CreateOptions{PageSize: 1000})
	require.True(t, errors.Is(err, memutils.PowerOfTwoError))

	_, err = mm.New(nil, mm.CreateOptions{Backend: mm.ArenaBackend(7)})
	require.Error(t, err)

	backend, err := mm.ParseArenaBackend("MMAP")
	require.NoError(t, err)
	require.Equal(t, mm.ArenaBackendMmap, backend)
	require.Equal(t, "mmap", backend.String())

	_, err = mm.ParseArenaBackend("brk")
	require.Error(t, err)
}

func TestAllocatorBuildStatsString(t *testing.T) {
	allocator := readyAllocator(t, mm.CreateOptions{})

	ptrA, err := allocator.Allocate(16)
	require.NoError(t, err)
	ptrB, err := allocator.Allocate(16)
	require.NoError(t, err)
	allocator.Release(ptrA)

	var document struct {
		Flags string
		Error string
		Total struct {
			BlockCount      int
			AllocationCount int
			FreeBlockCount  int
			ArenaBytes      int
			AllocationBytes int
		}
		Counters struct {
			AllocateCalls  int
			ReleaseCalls   int
			GrowCalls      int
			FirstFitMisses int
		}
		DetailedMap *struct {
			Blocks []struct {
				Offset int
				Type   string
			}
		}
	}

	require.NoError(t, json.Unmarshal([]byte(allocator.BuildStatsString(false)), &document))
	require.Equal(t, "None", document.Flags)
	require.Empty(t, document.Error)
	require.Equal(t, 4144, document.Total.ArenaBytes)
	require.Equal(t, 1, document.Total.AllocationCount)
	require.Equal(t, 2, document.Total.FreeBlockCount)
	require.Equal(t, 32, document.Total.AllocationBytes)
	require.Equal(t, 2, document.Counters.AllocateCalls)
	require.Equal(t, 1, document.Counters.ReleaseCalls)
	require.Equal(t, 1, document.Counters.GrowCalls)
	require.Equal(t, 1, document.Counters.FirstFitMisses)
	require.Nil(t, document.DetailedMap)

	require.NoError(t, json.Unmarshal([]byte(allocator.BuildStatsString(true)), &document))
	require.NotNil(t, document.DetailedMap)
	require.Len(t, document.DetailedMap.Blocks, 3)
	require.Equal(t, "FREE", document.DetailedMap.Blocks[0].Type)
	require.Equal(t, "USED", document.DetailedMap.Blocks[1].Type)

	allocator.Release(ptrB)
	require.NoError(t, allocator.Destroy())
}
