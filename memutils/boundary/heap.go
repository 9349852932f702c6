// Package boundary implements a boundary-tag heap: an explicit, LIFO, doubly linked free list
// searched first-fit, with block splitting and immediate coalescing, laid out directly inside
// the bytes of a growable arena.
package boundary

import (
	"context"
	"io"
	"log/slog"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/tagheap/memutils"
	"github.com/vkngwrapper/tagheap/memutils/arena"
)

// Counters track how often the heap has taken each of its slower paths
type Counters struct {
	AllocateCalls    int
	ReleaseCalls     int
	FirstFitHits     int
	FirstFitMisses   int
	GrowCalls        int
	GrowBytes        int
	SplitCount       int
	CoalesceForward  int
	CoalesceBackward int
}

// Heap manages every byte of an arena as a sequence of boundary-tagged blocks. It is not safe for
// concurrent use.
type Heap struct {
	arena  arena.Arena
	logger *slog.Logger
	mem    []byte

	freeHead   int
	freeCount  int
	freeBytes  int
	allocCount int
	allocBytes int

	counters Counters
}

var _ memutils.Validatable = &Heap{}

// New lays out an empty heap at the start of arena, which must not have grown yet. The heap
// starts with one minimum-size free block; everything else is acquired from the arena on demand.
func New(a arena.Arena, logger *slog.Logger) (*Heap, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if a.High() != a.Low() {
		return nil, errors.Newf("a heap requires an empty arena, but this one already holds %d bytes", a.High()-a.Low())
	}

	err := memutils.CheckPow2(a.PageSize(), "arena page size")
	if err != nil {
		return nil, err
	}
	if a.PageSize() < MinBlockSize {
		return nil, errors.Wrapf(memutils.ErrInvalidSize, "arena page size %d is smaller than the minimum block size %d", a.PageSize(), MinBlockSize)
	}

	_, err = a.Sbrk(initialHeapSize)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "could not reserve the initial heap"), memutils.ErrOutOfMemory)
	}

	h := &Heap{
		arena:  a,
		logger: logger,
		mem:    a.Bytes(),
	}

	h.setWord(prologueOffset, 0)

	first := NewTag(MinBlockSize, TagPrecedingUsed)
	h.setHeader(firstBlockOffset, first)
	h.setFooter(firstBlockOffset, first)
	h.setHeader(h.sentinelOffset(), NewTag(0, TagUsed))
	h.insertFree(firstBlockOffset)

	memutils.DebugValidate(h)
	return h, nil
}

// BlockSizeFor returns the size of the block that will hold a payload of size bytes
func BlockSizeFor(size int) int {
	blockSize := memutils.AlignUp(size+WordSize, Alignment)
	if blockSize < MinBlockSize {
		return MinBlockSize
	}
	return blockSize
}

// Allocate carves a block with room for size payload bytes out of the heap and returns the arena
// offset of its payload. The payload is 8-byte aligned and its contents are undefined. Allocating
// zero bytes returns the null offset 0 without touching the heap.
//
// If no free block is large enough the arena is grown by whole pages. If the arena cannot grow,
// the returned error wraps memutils.ErrOutOfMemory and the heap is unchanged.
func (h *Heap) Allocate(size int) (int, error) {
	if size < 0 {
		return 0, errors.Wrapf(memutils.ErrInvalidSize, "cannot allocate %d bytes", size)
	}
	if size > math.MaxInt-2*Alignment {
		// No block size can be computed for this request, let alone found
		return 0, errors.Wrapf(memutils.ErrOutOfMemory, "cannot allocate %d bytes", size)
	}
	if size == 0 {
		return 0, nil
	}

	h.counters.AllocateCalls++
	blockSize := BlockSizeFor(size)

	block := h.searchFirstFit(blockSize)
	if block != 0 {
		h.counters.FirstFitHits++
	} else {
		h.counters.FirstFitMisses++

		var err error
		block, err = h.Extend(blockSize)
		if err != nil {
			return 0, err
		}

		if h.header(block).Size() < blockSize {
			return 0, errors.AssertionFailedf("heap grew for a %d byte block but the new free block at %d only holds %d bytes", blockSize, block, h.header(block).Size())
		}
	}

	h.removeFree(block)
	tag := h.header(block)
	leftover := tag.Size() - blockSize

	if leftover < MinBlockSize {
		h.setHeader(block, tag.With(TagUsed))

		next := block + tag.Size()
		h.setHeader(next, h.header(next).With(TagPrecedingUsed))

		h.allocCount++
		h.allocBytes += tag.Size()
	} else {
		h.setHeader(block, NewTag(blockSize, TagUsed|tag.Flags()&TagPrecedingUsed))

		remainder := block + blockSize
		remainderTag := NewTag(leftover, TagPrecedingUsed)
		h.setHeader(remainder, remainderTag)
		h.setFooter(remainder, remainderTag)
		h.insertFree(remainder)

		h.counters.SplitCount++
		h.allocCount++
		h.allocBytes += blockSize
	}

	memutils.DebugValidate(h)
	return block + WordSize, nil
}

// Release returns the block holding the payload at ptr to the heap and merges it with any free
// neighbors. Releasing the null offset 0 does nothing. ptr must have been returned by Allocate on
// this heap and not released since; anything else corrupts the heap and is not detected here.
func (h *Heap) Release(ptr int) {
	if ptr == 0 {
		return
	}

	h.counters.ReleaseCalls++

	block := ptr - WordSize
	tag := h.header(block).Without(TagUsed)

	next := block + tag.Size()
	nextTag := h.header(next).Without(TagPrecedingUsed)
	h.setHeader(next, nextTag)
	if !nextTag.Used() {
		h.setFooter(next, nextTag)
	}

	h.setHeader(block, tag)
	h.setFooter(block, tag)

	h.allocCount--
	h.allocBytes -= tag.Size()

	h.insertFree(block)
	h.coalesce(block)

	memutils.DebugValidate(h)
}

// Extend grows the arena by at least minBytes, rounded up to whole pages, and adds the new space
// to the heap as a free block, merged with the heap's last block if that was free. It returns the
// offset of the free block containing the new space.
//
// If the arena cannot grow, the returned error wraps memutils.ErrOutOfMemory and the heap is
// unchanged.
func (h *Heap) Extend(minBytes int) (int, error) {
	if minBytes <= 0 {
		return 0, errors.Wrapf(memutils.ErrInvalidSize, "cannot extend the heap by %d bytes", minBytes)
	}

	pageSize := h.arena.PageSize()
	if minBytes > math.MaxInt-pageSize {
		return 0, errors.Wrapf(memutils.ErrOutOfMemory, "cannot extend the heap by %d bytes", minBytes)
	}
	memutils.DebugCheckPow2(pageSize, "arena page size")
	growBytes := memutils.AlignUp(minBytes, pageSize)

	oldHigh, err := h.arena.Sbrk(growBytes)
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "heap could not grow by %d bytes", growBytes), memutils.ErrOutOfMemory)
	}
	h.mem = h.arena.Bytes()

	// The old sentinel becomes the header of the new block, and it already knows whether the
	// block before it is in use
	block := oldHigh - WordSize
	sentinel := h.header(block)

	tag := NewTag(growBytes, sentinel.Flags()&TagPrecedingUsed)
	h.setHeader(block, tag)
	h.setFooter(block, tag)
	h.setHeader(h.sentinelOffset(), NewTag(0, TagUsed))

	h.counters.GrowCalls++
	h.counters.GrowBytes += growBytes

	h.insertFree(block)
	block = h.coalesce(block)

	h.logger.LogAttrs(context.Background(), slog.LevelDebug, "heap grew",
		slog.Int("minBytes", minBytes),
		slog.Int("grownBytes", growBytes),
		slog.Int("high", len(h.mem)),
	)

	memutils.DebugValidate(h)
	return block, nil
}

// Payload returns the payload bytes of the block at ptr. The slice aliases heap memory and is
// capped at the end of the block.
func (h *Heap) Payload(ptr int) []byte {
	if ptr == 0 {
		return nil
	}

	end := ptr - WordSize + h.header(ptr-WordSize).Size()
	return h.mem[ptr:end:end]
}

// UsableSize returns how many payload bytes the block at ptr can hold. This is at least the size
// originally requested, and may be more.
func (h *Heap) UsableSize(ptr int) int {
	if ptr == 0 {
		return 0
	}

	return h.header(ptr-WordSize).Size() - WordSize
}

// Low is the arena offset of the first heap byte
func (h *Heap) Low() int {
	return h.arena.Low()
}

// High is the arena offset one past the last heap byte, the end-of-heap sentinel included
func (h *Heap) High() int {
	return len(h.mem)
}

func (h *Heap) Counters() Counters {
	return h.counters
}

func (h *Heap) AllocationCount() int {
	return h.allocCount
}

func (h *Heap) FreeBlockCount() int {
	return h.freeCount
}

// SumFreeSize is the total size of all free blocks, headers and footers included
func (h *Heap) SumFreeSize() int {
	return h.freeBytes
}

func (h *Heap) IsEmpty() bool {
	return h.allocCount == 0
}
