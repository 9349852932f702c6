//go:build linux || darwin

package arena

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// MmapArena is an Arena backed by an anonymous private memory mapping. The whole of MaxSize is
// mapped at creation; the kernel commits pages as the heap first touches them.
type MmapArena struct {
	region
	mapping []byte
}

var _ Arena = &MmapArena{}

// NewMmapArena maps options.MaxSize bytes of anonymous memory and returns an empty arena over them
func NewMmapArena(options Options) (*MmapArena, error) {
	resolved, err := options.resolve(unix.Getpagesize())
	if err != nil {
		return nil, err
	}

	mapping, err := unix.Mmap(-1, 0, resolved.MaxSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to map %d bytes for arena", resolved.MaxSize)
	}

	return &MmapArena{
		region: region{
			data:     mapping[:0:resolved.MaxSize],
			pageSize: resolved.PageSize,
		},
		mapping: mapping,
	}, nil
}

func (a *MmapArena) Release() error {
	if a.released {
		return errors.New("arena has already been released")
	}

	a.data = nil
	a.released = true

	mapping := a.mapping
	a.mapping = nil
	return errors.Wrap(unix.Munmap(mapping), "failed to unmap arena")
}
