package boundary

import "encoding/binary"

// Heap layout, in bytes:
//
//	[prologue word][block][block]...[end-of-heap sentinel]
//
// A used block is a header word followed by its payload. A free block reuses the first two
// payload words as next/prev free-list links and repeats its header in its final word. Block
// and link references are arena offsets; since no block header can live at offset 0, 0 doubles
// as the null reference.
const (
	WordSize     = 8
	Alignment    = 8
	MinBlockSize = 4 * WordSize

	prologueOffset   = 0
	firstBlockOffset = prologueOffset + WordSize
	// prologue, one minimum-size free block, sentinel
	initialHeapSize = WordSize + MinBlockSize + WordSize

	nextLinkOffset = WordSize
	prevLinkOffset = 2 * WordSize
)

var byteOrder = binary.LittleEndian

func (h *Heap) word(offset int) uint64 {
	return byteOrder.Uint64(h.mem[offset : offset+WordSize])
}

func (h *Heap) setWord(offset int, value uint64) {
	byteOrder.PutUint64(h.mem[offset:offset+WordSize], value)
}

func (h *Heap) header(block int) Tag {
	return Tag(h.word(block))
}

func (h *Heap) setHeader(block int, tag Tag) {
	h.setWord(block, uint64(tag))
}

// footer reads the last word of the block, as sized by its header
func (h *Heap) footer(block int) Tag {
	return Tag(h.word(block + h.header(block).Size() - WordSize))
}

// setFooter writes tag into the last word of a block of tag.Size() bytes
func (h *Heap) setFooter(block int, tag Tag) {
	h.setWord(block+tag.Size()-WordSize, uint64(tag))
}

// precedingFooter reads the word just before the block: the footer of its predecessor, if that
// predecessor is free
func (h *Heap) precedingFooter(block int) Tag {
	return Tag(h.word(block - WordSize))
}

func (h *Heap) nextFree(block int) int {
	return int(h.word(block + nextLinkOffset))
}

func (h *Heap) setNextFree(block int, next int) {
	h.setWord(block+nextLinkOffset, uint64(next))
}

func (h *Heap) prevFree(block int) int {
	return int(h.word(block + prevLinkOffset))
}

func (h *Heap) setPrevFree(block int, prev int) {
	h.setWord(block+prevLinkOffset, uint64(prev))
}

func (h *Heap) sentinelOffset() int {
	return len(h.mem) - WordSize
}
