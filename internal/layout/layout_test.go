package layout

import (
	"testing"

	"github.com/23skdu/catdist/internal/dataset"
	"github.com/23skdu/catdist/internal/memory"
	"github.com/23skdu/catdist/internal/pack"
	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newArena(t *testing.T) *memory.SlabArena {
	t.Helper()
	mem := arrowmem.NewCheckedAllocator(arrowmem.NewGoAllocator())
	arena, err := memory.NewSlabArena(mem, 64, 1024)
	require.NoError(t, err)
	t.Cleanup(func() {
		arena.Release()
		mem.AssertSize(t, 0)
	})
	return arena
}

// grid returns n samples of m features where feature k of sample i is i*m+k+1.
func grid(n, m int) *dataset.Dataset[uint8] {
	rows := make([][]uint8, n)
	for i := range rows {
		rows[i] = make([]uint8, m)
		for k := range rows[i] {
			rows[i][k] = uint8(i*m + k + 1)
		}
	}
	return dataset.FromValues(rows)
}

func TestBuild_ChunkMajor(t *testing.T) {
	arena := newArena(t)
	w := pack.MustWidth[uint8](4)
	l, err := Build(arena, grid(3, 10), w, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, l.Chunks())
	assert.Equal(t, 3, l.Samples())
	assert.Equal(t, 10, l.Features())
	assert.Equal(t, ChunkMajor, l.Order())
	assert.Equal(t, []int{4, 4, 2}, []int{l.Take(0), l.Take(1), l.Take(2)})

	// Sample 1 holds 11..20; its last chunk is padded.
	assert.Equal(t, []uint8{11, 12, 13, 14}, l.Block(0, 1).Values())
	assert.Equal(t, []uint8{15, 16, 17, 18}, l.Block(1, 1).Values())
	assert.Equal(t, []uint8{19, 20, 0, 0}, l.Block(2, 1).Values())

	// All samples of one chunk are adjacent in memory.
	for kk := 0; kk < l.Chunks(); kk++ {
		for i := 1; i < l.Samples(); i++ {
			assert.Equal(t, l.Block(kk, i-1).Addr()+uintptr(w.Bytes()), l.Block(kk, i).Addr())
		}
	}
	// Chunk kk+1 follows the last sample of chunk kk.
	assert.Equal(t, l.Block(0, 2).Addr()+uintptr(w.Bytes()), l.Block(1, 0).Addr())
}

func TestBuild_RowMajorMatchesChunkMajor(t *testing.T) {
	arena := newArena(t)
	w := pack.MustWidth[uint8](8)
	d := grid(5, 19)

	cm, err := Build(arena, d, w, Options{Order: ChunkMajor})
	require.NoError(t, err)
	rm, err := Build(arena, d, w, Options{Order: RowMajor})
	require.NoError(t, err)

	require.Equal(t, cm.Chunks(), rm.Chunks())
	for kk := 0; kk < cm.Chunks(); kk++ {
		for i := 0; i < d.N(); i++ {
			assert.True(t, cm.Block(kk, i).Equal(rm.Block(kk, i)), "(%d,%d)", kk, i)
		}
	}

	// Row-major keeps one sample's chunks adjacent.
	assert.Equal(t, rm.Block(0, 2).Addr()+8, rm.Block(1, 2).Addr())
	assert.Equal(t, "row-major", rm.Order().String())
}

func TestBuild_DivisibleFeatureCount(t *testing.T) {
	arena := newArena(t)
	l, err := Build(arena, grid(2, 8), pack.MustWidth[uint8](4), Options{})
	require.NoError(t, err)

	// No empty trailing chunk when C divides m.
	assert.Equal(t, 2, l.Chunks())
	assert.Equal(t, 4, l.Take(1))
	assert.Panics(t, func() { l.Block(2, 0) })
}

func TestBuild_AllBlocksAligned(t *testing.T) {
	arena := newArena(t)
	w := pack.MustWidth[uint16](64)
	l, err := Build(arena, grid(7, 70), pack.MustWidth[uint8](64), Options{})
	require.NoError(t, err)
	for kk := 0; kk < l.Chunks(); kk++ {
		for _, b := range l.Chunk(kk) {
			assert.Zero(t, b.Addr()%64)
		}
	}

	l16, err := Build(arena, dataset.FromValues([][]uint16{{1, 2, 3}, {4}}), w, Options{})
	require.NoError(t, err)
	assert.Equal(t, 32, l16.Block(0, 0).Len())
	assert.Zero(t, l16.Block(0, 1).Addr()%64)
}

func TestBuild_RaggedAndMissing(t *testing.T) {
	arena := newArena(t)
	d := dataset.New([][]pack.Opt[uint8]{
		{pack.Some[uint8](1), pack.None[uint8](), pack.Some[uint8](3), pack.Some[uint8](4), pack.Some[uint8](5)},
		{pack.Some[uint8](9)},
	})
	l, err := Build(arena, d, pack.MustWidth[uint8](4), Options{Presence: true})
	require.NoError(t, err)

	assert.Equal(t, []uint8{1, 0, 3, 4}, l.Block(0, 0).Values())
	assert.Equal(t, []uint8{5, 0, 0, 0}, l.Block(1, 0).Values())
	assert.Equal(t, []uint8{9, 0, 0, 0}, l.Block(0, 1).Values())
	assert.Equal(t, []uint8{0, 0, 0, 0}, l.Block(1, 1).Values())

	require.True(t, l.HasPresence())
	m := l.Mask(0, 0)
	assert.Equal(t, []bool{true, false, true, true}, []bool{m.Has(0), m.Has(1), m.Has(2), m.Has(3)})
	assert.True(t, l.Mask(1, 0).Has(0))
	assert.False(t, l.Mask(1, 1).Has(0))
}

func TestBuild_PresenceKeepsZeroCodes(t *testing.T) {
	arena := newArena(t)
	d := dataset.New([][]pack.Opt[uint8]{{pack.Some[uint8](0), pack.None[uint8]()}})
	l, err := Build(arena, d, pack.MustWidth[uint8](2), Options{Presence: true})
	require.NoError(t, err)

	// Both lanes hold the sentinel; only the mask tells them apart.
	assert.Equal(t, []uint8{0, 0}, l.Block(0, 0).Values())
	assert.True(t, l.Mask(0, 0).Has(0))
	assert.False(t, l.Mask(0, 0).Has(1))
}

func TestBuild_PresenceMatchesColumns(t *testing.T) {
	d := dataset.New([][]pack.Opt[uint8]{
		{pack.Some[uint8](0), pack.None[uint8](), pack.Some[uint8](2), pack.None[uint8](), pack.Some[uint8](4)},
		{pack.None[uint8](), pack.Some[uint8](1)},
		{pack.Some[uint8](3), pack.Some[uint8](0), pack.None[uint8](), pack.Some[uint8](7), pack.None[uint8]()},
	})
	for _, order := range []Order{ChunkMajor, RowMajor} {
		t.Run(order.String(), func(t *testing.T) {
			l, err := Build(newArena(t), d, pack.MustWidth[uint8](2), Options{Order: order, Presence: true})
			require.NoError(t, err)
			for i := 0; i < d.N(); i++ {
				for k := 0; k < d.M(); k++ {
					assert.Equal(t, d.At(i, k).Valid, l.Mask(k/2, i).Has(k%2), "sample %d feature %d", i, k)
				}
			}
		})
	}
}

func TestBuild_NoPresence(t *testing.T) {
	arena := newArena(t)
	l, err := Build(arena, grid(1, 3), pack.MustWidth[uint8](4), Options{})
	require.NoError(t, err)
	assert.False(t, l.HasPresence())
	assert.False(t, l.Mask(0, 0).Has(0))
}

func TestBuild_Empty(t *testing.T) {
	arena := newArena(t)
	l, err := Build(arena, dataset.FromValues[uint8](nil), pack.MustWidth[uint8](4), Options{})
	require.NoError(t, err)
	assert.Zero(t, l.Chunks())
	assert.Zero(t, l.Samples())
}

func TestBuild_UnknownOrder(t *testing.T) {
	arena := newArena(t)
	_, err := Build(arena, grid(1, 1), pack.MustWidth[uint8](4), Options{Order: Order(9)})
	assert.Error(t, err)
}
