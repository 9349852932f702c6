// Package arena provides the growable byte regions that heaps are carved out of. An arena is a
// single contiguous range [Low, High) that only ever grows at the high end, one Sbrk at a time.
// Both backends reserve their full capacity up front, so bytes never move once handed out.
package arena

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/tagheap/memutils"
)

const (
	// DefaultMaxSize is the capacity reserved when Options.MaxSize is left at zero. It is equal to 20Mb.
	DefaultMaxSize int = 20 * 1024 * 1024
	// MinPageSize is the smallest page size an arena will accept
	MinPageSize int = 64
)

//go:generate mockgen -source arena.go -destination ./mocks/mock_arena.go -package mock_arena

// Arena is the growth primitive underneath a heap
type Arena interface {
	// Sbrk extends the arena by increment bytes and returns the previous High. On failure the
	// arena is unchanged and the error wraps memutils.ErrOutOfMemory.
	Sbrk(increment int) (int, error)
	// Bytes returns the arena's contents, Low through High. The returned slice aliases the arena
	// and remains valid after subsequent growth.
	Bytes() []byte
	// Low is the offset of the first arena byte. It is always 0.
	Low() int
	// High is the offset one past the last arena byte
	High() int
	// PageSize is the granularity heaps use when growing this arena
	PageSize() int
	// Release returns the arena's memory. The arena may not be used afterward.
	Release() error
}

// Options contains optional settings when creating an arena
type Options struct {
	// PageSize is the growth granularity. It must be a power of two no smaller than MinPageSize.
	// Zero selects the platform page size.
	PageSize int
	// MaxSize is the most bytes the arena will ever grow to. It is rounded up to a whole number
	// of pages. Zero selects DefaultMaxSize.
	MaxSize int
}

func (o Options) resolve(platformPageSize int) (Options, error) {
	if o.PageSize == 0 {
		o.PageSize = platformPageSize
	}
	if o.MaxSize == 0 {
		o.MaxSize = DefaultMaxSize
	}

	err := memutils.CheckPow2(o.PageSize, "arena page size")
	if err != nil {
		return o, err
	}

	if o.PageSize < MinPageSize {
		return o, errors.Wrapf(memutils.ErrInvalidSize, "arena page size %d is smaller than the minimum of %d", o.PageSize, MinPageSize)
	}

	if o.MaxSize < 0 {
		return o, errors.Wrapf(memutils.ErrInvalidSize, "arena max size %d is negative", o.MaxSize)
	}

	o.MaxSize = memutils.AlignUp(o.MaxSize, o.PageSize)
	return o, nil
}

// region holds the bookkeeping shared by every backend: data's length is the arena's High and its
// capacity is the reserved maximum
type region struct {
	data     []byte
	pageSize int
	released bool
}

func (r *region) Sbrk(increment int) (int, error) {
	if r.released {
		return 0, errors.New("arena has already been released")
	}

	if increment < 0 {
		return 0, errors.Wrapf(memutils.ErrInvalidSize, "arena cannot shrink by %d bytes", -increment)
	}

	oldHigh := len(r.data)
	if increment > cap(r.data)-oldHigh {
		return 0, errors.Wrapf(memutils.ErrOutOfMemory, "arena cannot grow by %d bytes: %d of %d bytes in use", increment, oldHigh, cap(r.data))
	}

	r.data = r.data[:oldHigh+increment]
	return oldHigh, nil
}

func (r *region) Bytes() []byte {
	return r.data
}

func (r *region) Low() int {
	return 0
}

func (r *region) High() int {
	return len(r.data)
}

func (r *region) PageSize() int {
	return r.pageSize
}

// Capacity is the number of bytes reserved for this arena
func (r *region) Capacity() int {
	return cap(r.data)
}

// SliceArena is an Arena backed by memory from the Go heap
type SliceArena struct {
	region
}

var _ Arena = &SliceArena{}

// NewSliceArena reserves options.MaxSize bytes from the Go heap and returns an empty arena over them
func NewSliceArena(options Options) (*SliceArena, error) {
	resolved, err := options.resolve(os.Getpagesize())
	if err != nil {
		return nil, err
	}

	return &SliceArena{
		region: region{
			data:     make([]byte, 0, resolved.MaxSize),
			pageSize: resolved.PageSize,
		},
	}, nil
}

func (a *SliceArena) Release() error {
	if a.released {
		return errors.New("arena has already been released")
	}

	a.data = nil
	a.released = true
	return nil
}
