package arena_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/tagheap/memutils"
	"github.com/vkngwrapper/tagheap/memutils/arena"
)

func TestSliceArenaSbrk(t *testing.T) {
	a, err := arena.NewSliceArena(arena.Options{PageSize: 4096, MaxSize: 3 * 4096})
	require.NoError(t, err)
	require.Equal(t, 0, a.Low())
	require.Equal(t, 0, a.High())
	require.Equal(t, 4096, a.PageSize())
	require.Equal(t, 3*4096, a.Capacity())

	old, err := a.Sbrk(48)
	require.NoError(t, err)
	require.Equal(t, 0, old)
	require.Equal(t, 48, a.High())
	require.Len(t, a.Bytes(), 48)

	a.Bytes()[47] = 0xAB
	before := a.Bytes()

	old, err = a.Sbrk(4096)
	require.NoError(t, err)
	require.Equal(t, 48, old)
	require.Equal(t, 4144, a.High())

	// Earlier views keep pointing at the same memory
	require.Equal(t, byte(0xAB), before[47])
	require.Same(t, &before[0], &a.Bytes()[0])

	require.NoError(t, a.Release())
	require.Error(t, a.Release())
	_, err = a.Sbrk(8)
	require.Error(t, err)
}

func TestSliceArenaExhaustion(t *testing.T) {
	a, err := arena.NewSliceArena(arena.Options{PageSize: 64, MaxSize: 100})
	require.NoError(t, err)
	require.Equal(t, 128, a.Capacity())

	_, err = a.Sbrk(128)
	require.NoError(t, err)

	_, err = a.Sbrk(64)
	require.True(t, errors.Is(err, memutils.ErrOutOfMemory))
	require.Equal(t, 128, a.High())

	_, err = a.Sbrk(-8)
	require.True(t, errors.Is(err, memutils.ErrInvalidSize))
}

func TestArenaOptionsValidation(t *testing.T) {
	_, err := arena.NewSliceArena(arena.Options{PageSize: 3000})
	require.True(t, errors.Is(err, memutils.PowerOfTwoError))

	_, err = arena.NewSliceArena(arena.Options{PageSize: 32})
	require.True(t, errors.Is(err, memutils.ErrInvalidSize))

	_, err = arena.NewSliceArena(arena.Options{PageSize: 4096, MaxSize: -1})
	require.True(t, errors.Is(err, memutils.ErrInvalidSize))

	a, err := arena.NewSliceArena(arena.Options{})
	require.NoError(t, err)
	require.Equal(t, arena.DefaultMaxSize, a.Capacity())
	require.NoError(t, memutils.CheckPow2(a.PageSize(), "page size"))
}
