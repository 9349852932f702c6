package boundary

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/tagheap/memutils"
)

func corrupted(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), memutils.ErrHeapCorrupted)
}

// Validate walks every block in memory order and then the whole free list, and returns an error
// wrapping memutils.ErrHeapCorrupted describing the first broken invariant it finds. It is
// expensive and intended for tests and diagnostics.
func (h *Heap) Validate() error {
	if len(h.mem) != h.arena.High() {
		return corrupted("heap believes the arena ends at %d, but it ends at %d", len(h.mem), h.arena.High())
	}

	if len(h.mem) < initialHeapSize || len(h.mem)%Alignment != 0 {
		return corrupted("heap size %d is not a multiple of %d at least %d bytes long", len(h.mem), Alignment, initialHeapSize)
	}

	freeBlocks := swiss.NewMap[int, struct{}](uint32(h.freeCount + 1))
	var allocCount, allocBytes, freeBytes int

	sentinel := h.sentinelOffset()
	precedingUsed := true
	block := firstBlockOffset

	for block != sentinel {
		tag := h.header(block)
		size := tag.Size()

		if tag&tagReserved != 0 {
			return corrupted("block at offset %d has reserved tag bits set: %s", block, tag)
		}

		if size < MinBlockSize {
			return corrupted("block at offset %d has size %d, below the minimum block size of %d", block, size, MinBlockSize)
		}

		if block+size > sentinel {
			return corrupted("block at offset %d with size %d runs past the end-of-heap sentinel at %d", block, size, sentinel)
		}

		if tag.PrecedingUsed() != precedingUsed {
			return corrupted("block at offset %d has preceding-used %t, but the preceding block's used bit is %t", block, tag.PrecedingUsed(), precedingUsed)
		}

		if tag.Used() {
			allocCount++
			allocBytes += size
		} else {
			if !precedingUsed {
				return corrupted("block at offset %d is free and so is the block before it", block)
			}

			footer := h.footer(block)
			if footer != tag {
				return corrupted("free block at offset %d has header %s but footer %s", block, tag, footer)
			}

			freeBlocks.Put(block, struct{}{})
			freeBytes += size
		}

		precedingUsed = tag.Used()
		block += size
	}

	sentinelTag := h.header(sentinel)
	if sentinelTag.Size() != 0 || !sentinelTag.Used() {
		return corrupted("end-of-heap sentinel at offset %d is %s, expected a used zero-size tag", sentinel, sentinelTag)
	}

	if sentinelTag.PrecedingUsed() != precedingUsed {
		return corrupted("end-of-heap sentinel has preceding-used %t, but the last block's used bit is %t", sentinelTag.PrecedingUsed(), precedingUsed)
	}

	// Check integrity of the free list
	visited := swiss.NewMap[int, struct{}](uint32(h.freeCount + 1))
	prev := 0
	for block := h.freeHead; block != 0; block = h.nextFree(block) {
		if _, seen := visited.Get(block); seen {
			return corrupted("free list revisits the block at offset %d", block)
		}
		visited.Put(block, struct{}{})

		if _, free := freeBlocks.Get(block); !free {
			return corrupted("block at offset %d is in the free list but it is not a free block", block)
		}

		if h.prevFree(block) != prev {
			return corrupted("block at offset %d lists the block at offset %d as its previous free block, but the reverse reference is broken", block, h.prevFree(block))
		}

		prev = block
	}

	if visited.Count() != freeBlocks.Count() {
		return corrupted("the number of free blocks in memory and the number of blocks in the free list do not match! free list size: %d, free blocks in memory: %d", visited.Count(), freeBlocks.Count())
	}

	if freeBlocks.Count() != h.freeCount {
		return corrupted("the free block count of the heap is %d, but there were %d free blocks", h.freeCount, freeBlocks.Count())
	}

	if freeBytes != h.freeBytes {
		return corrupted("the free size of the heap is %d, but the free blocks added up to %d", h.freeBytes, freeBytes)
	}

	if allocCount != h.allocCount {
		return corrupted("the allocation count of the heap is %d, but the used blocks added up to %d", h.allocCount, allocCount)
	}

	if allocBytes != h.allocBytes {
		return corrupted("the allocated size of the heap is %d, but the used blocks added up to %d", h.allocBytes, allocBytes)
	}

	return nil
}
