package boundary

// coalesce merges a free block, already on the free list, with whichever of its memory neighbors
// are also free. It returns the offset of the resulting block, which is on the free list.
//
// Coalescing happens on every release and every extension, so no two free blocks are ever
// adjacent. Each neighbor is therefore the edge of its own run and one merge per direction is
// enough: the merged block's other neighbors are all in use.
func (h *Heap) coalesce(block int) int {
	tag := h.header(block)
	start := block
	size := tag.Size()

	if !tag.PrecedingUsed() {
		prevSize := h.precedingFooter(block).Size()
		start = block - prevSize
		size += prevSize

		h.removeFree(start)
		h.counters.CoalesceBackward++
	}

	next := block + tag.Size()
	nextTag := h.header(next)
	if !nextTag.Used() {
		size += nextTag.Size()

		h.removeFree(next)
		h.counters.CoalesceForward++
	}

	if size == tag.Size() {
		return block
	}

	h.removeFree(block)

	// Whatever precedes the merged block is in use, or it would have been merged too
	merged := NewTag(size, TagPrecedingUsed)
	h.setHeader(start, merged)
	h.setFooter(start, merged)
	h.insertFree(start)

	return start
}
