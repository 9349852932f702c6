package boundary

import (
	"fmt"
	"strings"
)

// Tag is the word stored at the start of every block, and at the end of every free block. The
// block size occupies the high bits; since sizes are always multiples of Alignment, the low three
// bits are free to carry flags.
type Tag uint64

const (
	// TagUsed is set when the block is handed out to a caller
	TagUsed Tag = 1 << 0
	// TagPrecedingUsed is set when the block immediately before this one in memory is in use. The
	// first block in the heap always carries it.
	TagPrecedingUsed Tag = 1 << 1
	// tagReserved must always be clear
	tagReserved Tag = 1 << 2

	tagFlagMask = TagUsed | TagPrecedingUsed | tagReserved
)

// NewTag packs a block size and a set of flags. It panics if size is negative or not a multiple of
// Alignment, or if flags contains anything other than TagUsed and TagPrecedingUsed.
func NewTag(size int, flags Tag) Tag {
	if size < 0 || size%Alignment != 0 {
		panic(fmt.Sprintf("block size %d is not a non-negative multiple of %d", size, Alignment))
	}
	if flags&^(TagUsed|TagPrecedingUsed) != 0 {
		panic(fmt.Sprintf("invalid block flags %#x", uint64(flags)))
	}

	return Tag(size) | flags
}

func (t Tag) Size() int {
	return int(t &^ tagFlagMask)
}

func (t Tag) Used() bool {
	return t&TagUsed != 0
}

func (t Tag) PrecedingUsed() bool {
	return t&TagPrecedingUsed != 0
}

// Flags returns only the flag bits of the tag
func (t Tag) Flags() Tag {
	return t & tagFlagMask
}

// With returns a copy of the tag with flags set
func (t Tag) With(flags Tag) Tag {
	return t | (flags & (TagUsed | TagPrecedingUsed))
}

// Without returns a copy of the tag with flags cleared
func (t Tag) Without(flags Tag) Tag {
	return t &^ flags
}

func (t Tag) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d", t.Size()))
	if t.Used() {
		sb.WriteString("|USED")
	}
	if t.PrecedingUsed() {
		sb.WriteString("|PRECEDING_USED")
	}
	if t&tagReserved != 0 {
		sb.WriteString("|RESERVED")
	}
	return sb.String()
}
