package boundary

// insertFree pushes a block onto the head of the free list. The block's header must already be
// written.
func (h *Heap) insertFree(block int) {
	h.setPrevFree(block, 0)
	h.setNextFree(block, h.freeHead)
	if h.freeHead != 0 {
		h.setPrevFree(h.freeHead, block)
	}
	h.freeHead = block

	h.freeCount++
	h.freeBytes += h.header(block).Size()
}

func (h *Heap) removeFree(block int) {
	next := h.nextFree(block)
	prev := h.prevFree(block)

	if prev != 0 {
		h.setNextFree(prev, next)
	} else {
		if h.freeHead != block {
			panic("block has no previous free block but is not the head of the free list")
		}
		h.freeHead = next
	}

	if next != 0 {
		h.setPrevFree(next, prev)
	}

	h.freeCount--
	h.freeBytes -= h.header(block).Size()
}

// searchFirstFit returns the first free block, in list order, with room for size bytes, or 0
func (h *Heap) searchFirstFit(size int) int {
	for block := h.freeHead; block != 0; block = h.nextFree(block) {
		if h.header(block).Size() >= size {
			return block
		}
	}

	return 0
}
