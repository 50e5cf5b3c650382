package zarr

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewShapeValidation(t *testing.T) {
	_, err := NewShape([]int{10, 20}, []int{4})
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, err = NewShape([]int{0}, []int{4})
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, err = NewShape([]int{10}, []int{0})
	require.ErrorIs(t, err, ErrShapeMismatch)

	s, err := NewShape([]int{10, 20}, []int{4, 5})
	require.NoError(t, err)
	require.Equal(t, 2, s.Rank())
	require.Equal(t, 200, s.NumElements())
}

func TestRaggedEdgeChunks(t *testing.T) {
	// Size 10 with chunk size 4 splits into chunks of [4, 4, 2].
	d := Dimension{Size: 10, ChunkSize: 4}
	require.Equal(t, 3, d.NumChunks())
	require.Equal(t, 4, d.ChunkShape(0))
	require.Equal(t, 4, d.ChunkShape(1))
	require.Equal(t, 2, d.ChunkShape(2))

	s, err := NewShape([]int{10, 7}, []int{4, 7})
	require.NoError(t, err)
	require.Equal(t, []int{3, 1}, s.GridShape())
	require.Equal(t, 3, s.NumChunksTotal())
	require.Equal(t, []int{2, 7}, s.ChunkShape([]int{2, 0}))
}

func TestLocate(t *testing.T) {
	s, err := NewShape([]int{10}, []int{4})
	require.NoError(t, err)

	coord, offset, err := s.Locate([]int64{7})
	require.NoError(t, err)
	require.Equal(t, []int{1}, coord)
	require.Equal(t, []int{3}, offset)

	// coordinate*chunkSize + offset == idx for every valid index, with the
	// offset inside the chunk's actual shape.
	for idx := int64(0); idx < 10; idx++ {
		coord, offset, err := s.Locate([]int64{idx})
		require.NoError(t, err)
		require.Equal(t, idx, int64(coord[0]*4+offset[0]))
		require.Less(t, offset[0], s[0].ChunkShape(coord[0]))
	}
}

func TestLocateOutOfBounds(t *testing.T) {
	s, err := NewShape([]int{10}, []int{4})
	require.NoError(t, err)

	_, _, err = s.Locate([]int64{10})
	require.ErrorIs(t, err, ErrIndexOutOfBounds)

	_, _, err = s.Locate([]int64{-1})
	require.ErrorIs(t, err, ErrIndexOutOfBounds)

	_, _, err = s.Locate([]int64{1, 2})
	require.ErrorIs(t, err, ErrIndexOutOfBounds)

	// Bounds are validated first: a wildly out-of-range index is an
	// out-of-bounds failure, not a coordinate overflow.
	_, _, err = s.Locate([]int64{int64(1) << 40})
	require.ErrorIs(t, err, ErrIndexOutOfBounds)
}

func TestLocateCoordinateOverflow(t *testing.T) {
	if strconv.IntSize < 64 {
		t.Skip("needs 64-bit int sizes")
	}

	size := int(int64(1) << 40)
	s, err := NewShape([]int{size}, []int{1})
	require.NoError(t, err)

	// The chunk coordinate for this index exceeds the grid coordinate range
	// even though the index itself is inside the array.
	_, _, err = s.Locate([]int64{int64(1) << 39})
	require.ErrorIs(t, err, ErrCoordinateOverflow)
}
