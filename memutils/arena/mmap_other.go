//go:build !(linux || darwin)

package arena

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/tagheap/memutils"
)

// MmapArena is an Arena backed by an anonymous private memory mapping. It is only available on
// linux and darwin.
type MmapArena struct {
	region
}

var _ Arena = &MmapArena{}

// NewMmapArena always fails on this platform
func NewMmapArena(options Options) (*MmapArena, error) {
	return nil, errors.Wrap(memutils.ErrUnsupported, "mmap arenas require linux or darwin")
}

func (a *MmapArena) Release() error {
	return errors.Wrap(memutils.ErrUnsupported, "mmap arenas require linux or darwin")
}
