// Package mm is a general-purpose dynamic memory allocator. An Allocator owns one contiguous,
// growable arena and hands out variable-size blocks from it, addressed by arena offset.
package mm

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/tagheap/internal/utils"
	"github.com/vkngwrapper/tagheap/memutils"
	"github.com/vkngwrapper/tagheap/memutils/arena"
	"github.com/vkngwrapper/tagheap/memutils/boundary"
)

// Pointer is the arena offset of an allocation's payload. Payload bytes are reached through
// Allocator.Payload.
type Pointer int

// Null is never returned for a successful non-empty allocation, and releasing it does nothing
const Null Pointer = 0

// Allocator hands out blocks of a single growable arena. Unless it was created with
// AllocatorCreateExternallySynchronized, every method is safe for concurrent use; all methods
// share one coarse lock.
type Allocator struct {
	mutex       utils.OptionalRWMutex
	logger      *slog.Logger
	createFlags CreateFlags

	arena arena.Arena
	heap  *boundary.Heap
}

var errDestroyed = errors.New("the allocator has been destroyed")

// Allocate returns a Pointer to at least size bytes of 8-byte aligned, uninitialized memory.
// Allocating zero bytes returns Null. If the arena cannot grow far enough the returned error
// wraps memutils.ErrOutOfMemory and the allocator is unchanged.
func (a *Allocator) Allocate(size int) (Pointer, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.heap == nil {
		return Null, errDestroyed
	}

	ptr, err := a.heap.Allocate(size)
	if err != nil {
		a.logger.Debug("Allocator::Allocate FAILED", slog.Int("Size", size), slog.Any("error", err))
		return Null, err
	}

	return Pointer(ptr), nil
}

// Release returns an allocation to the allocator. Releasing Null does nothing. ptr must have come
// from this allocator and not been released since.
func (a *Allocator) Release(ptr Pointer) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.heap == nil || ptr == Null {
		return
	}

	a.heap.Release(int(ptr))
}

// Reallocate resizes an allocation. The allocation stays where it is when its block already has
// room for size bytes; otherwise a new block is allocated, the old payload copied into it, and the
// old block released. Reallocating Null behaves like Allocate, and reallocating to zero bytes
// behaves like Release and returns Null.
//
// On failure the original allocation is untouched and remains valid.
func (a *Allocator) Reallocate(ptr Pointer, size int) (Pointer, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.heap == nil {
		return Null, errDestroyed
	}

	if size < 0 {
		return Null, errors.Wrapf(memutils.ErrInvalidSize, "cannot reallocate to %d bytes", size)
	}

	if ptr == Null {
		newPtr, err := a.heap.Allocate(size)
		return Pointer(newPtr), err
	}

	if size == 0 {
		a.heap.Release(int(ptr))
		return Null, nil
	}

	if a.heap.UsableSize(int(ptr)) >= size {
		return ptr, nil
	}

	newPtr, err := a.heap.Allocate(size)
	if err != nil {
		a.logger.Debug("Allocator::Reallocate FAILED", slog.Int("Size", size), slog.Any("error", err))
		return Null, err
	}

	copy(a.heap.Payload(newPtr), a.heap.Payload(int(ptr)))
	a.heap.Release(int(ptr))

	return Pointer(newPtr), nil
}

// Payload returns the memory of an allocation, UsableSize bytes long. The slice aliases the
// arena: it remains valid while the allocation is live, including across heap growth.
func (a *Allocator) Payload(ptr Pointer) []byte {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if a.heap == nil {
		return nil
	}

	return a.heap.Payload(int(ptr))
}

// UsableSize returns how many bytes the allocation can hold, which may exceed the size requested
func (a *Allocator) UsableSize(ptr Pointer) int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if a.heap == nil {
		return 0
	}

	return a.heap.UsableSize(int(ptr))
}

// HeapSize returns how many bytes of arena the heap currently occupies
func (a *Allocator) HeapSize() int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if a.heap == nil {
		return 0
	}

	return a.heap.High() - a.heap.Low()
}

// CheckConsistency walks the entire heap and its free list and returns an error wrapping
// memutils.ErrHeapCorrupted if any structural invariant is broken. It is expensive.
func (a *Allocator) CheckConsistency() error {
	var err error
	a.mutex.RLocked(func() {
		if a.heap == nil {
			err = errDestroyed
			return
		}

		err = a.heap.Validate()
	})

	return err
}

// Counters returns how often the allocator has taken each of its slower paths
func (a *Allocator) Counters() boundary.Counters {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if a.heap == nil {
		return boundary.Counters{}
	}

	return a.heap.Counters()
}

// Destroy releases the arena. Any allocations still live are logged at error level, and an error
// is returned, but the arena is released regardless.
func (a *Allocator) Destroy() error {
	return a.mutex.Locked(func() error {
		if a.heap == nil {
			return errDestroyed
		}

		a.logger.Debug("Allocator::Destroy")

		var leakErr error
		if !a.heap.IsEmpty() {
			// Log all remaining allocations
			err := a.heap.VisitAllBlocks(func(offset int, size int, free bool) error {
				if free {
					return nil
				}

				a.logUnreleasedMemory(offset+boundary.WordSize, size-boundary.WordSize)
				return nil
			})
			if err != nil {
				a.logger.LogAttrs(context.Background(),
					slog.LevelError,
					"[UNRELEASED MEMORY] error while iterating unreleased memory",
					slog.Any("error", err))
			}

			leakErr = errors.Newf("%d allocations were not freed before the destruction of this allocator!", a.heap.AllocationCount())
		}

		releaseErr := a.arena.Release()
		a.heap = nil
		a.arena = nil

		return errors.CombineErrors(leakErr, releaseErr)
	})
}

func (a *Allocator) logUnreleasedMemory(ptr, size int) {
	a.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed allocation",
		slog.Int("offset", ptr),
		slog.Int("size", size),
	)
}
