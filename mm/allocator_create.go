package mm

import (
	"io"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/tagheap/memutils/arena"
	"github.com/vkngwrapper/tagheap/memutils/boundary"
)

// CreateFlags indicate specific allocator behaviors to activate or deactivate
type CreateFlags int32

const (
	// AllocatorCreateExternallySynchronized ensures that this allocator will not be synchronized
	// internally. The consumer must guarantee it is used from only one goroutine at a time or is
	// synchronized by some other mechanism, but performance may improve because internal mutexes
	// are not used.
	AllocatorCreateExternallySynchronized CreateFlags = 1 << iota
)

var createFlagNames = []struct {
	flag CreateFlags
	name string
}{
	{AllocatorCreateExternallySynchronized, "AllocatorCreateExternallySynchronized"},
}

func (f CreateFlags) String() string {
	if f == 0 {
		return "None"
	}

	var names []string
	for _, entry := range createFlagNames {
		if f&entry.flag != 0 {
			names = append(names, entry.name)
			f &^= entry.flag
		}
	}
	if f != 0 {
		names = append(names, "Unknown")
	}

	return strings.Join(names, "|")
}

// ArenaBackend selects where an allocator's arena memory comes from
type ArenaBackend int

const (
	// ArenaBackendSlice reserves the arena from the Go heap
	ArenaBackendSlice ArenaBackend = iota
	// ArenaBackendMmap reserves the arena as an anonymous memory mapping. It is only available on
	// linux and darwin.
	ArenaBackendMmap
)

func (b ArenaBackend) String() string {
	switch b {
	case ArenaBackendSlice:
		return "slice"
	case ArenaBackendMmap:
		return "mmap"
	}

	return "unknown"
}

// ParseArenaBackend converts the result of ArenaBackend.String back into an ArenaBackend
func ParseArenaBackend(name string) (ArenaBackend, error) {
	switch strings.ToLower(name) {
	case "", "slice":
		return ArenaBackendSlice, nil
	case "mmap":
		return ArenaBackendMmap, nil
	}

	return ArenaBackendSlice, errors.Newf("unknown arena backend %q", name)
}

// CreateOptions contains optional settings when creating an allocator
type CreateOptions struct {
	// Flags indicates specific allocator behaviors to activate or deactivate
	Flags CreateFlags

	// Backend selects where arena memory comes from. It is ignored when Arena is provided.
	Backend ArenaBackend
	// PageSize is the granularity in which the heap grows. It must be a power of two. Zero selects
	// the platform page size. It is ignored when Arena is provided.
	PageSize int
	// MaxHeapSize is the most memory, in bytes, the heap will ever occupy. Zero selects
	// arena.DefaultMaxSize. It is ignored when Arena is provided.
	MaxHeapSize int

	// Arena is an optional, empty arena to build the heap in. The allocator takes ownership of it
	// and releases it in Destroy.
	Arena arena.Arena
}

// New creates a new Allocator
//
// logger - Receives debug output and reports of unreleased memory. It may be nil.
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, options CreateOptions) (*Allocator, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	useMutex := options.Flags&AllocatorCreateExternallySynchronized == 0

	heapArena := options.Arena
	if heapArena == nil {
		var err error
		heapArena, err = createArena(options)
		if err != nil {
			return nil, err
		}
	}

	heap, err := boundary.New(heapArena, logger)
	if err != nil {
		if options.Arena == nil {
			_ = heapArena.Release()
		}
		return nil, err
	}

	allocator := &Allocator{
		logger:      logger,
		createFlags: options.Flags,
		arena:       heapArena,
		heap:        heap,
	}
	allocator.mutex.UseMutex = useMutex

	logger.Debug("Allocator::New",
		slog.String("Flags", options.Flags.String()),
		slog.Int("PageSize", heapArena.PageSize()),
	)

	return allocator, nil
}

func createArena(options CreateOptions) (arena.Arena, error) {
	arenaOptions := arena.Options{
		PageSize: options.PageSize,
		MaxSize:  options.MaxHeapSize,
	}

	switch options.Backend {
	case ArenaBackendSlice:
		sliceArena, err := arena.NewSliceArena(arenaOptions)
		if err != nil {
			return nil, err
		}
		return sliceArena, nil
	case ArenaBackendMmap:
		mmapArena, err := arena.NewMmapArena(arenaOptions)
		if err != nil {
			return nil, err
		}
		return mmapArena, nil
	}

	return nil, errors.Newf("unknown arena backend %d", options.Backend)
}
