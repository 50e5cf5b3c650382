package zarr

import (
	"fmt"
	"math"
)

// Dimension pairs one axis's total extent with its chunk extent.
type Dimension struct {
	Size      int
	ChunkSize int
}

// NumChunks is the number of chunks along this axis: ceil(Size / ChunkSize).
func (d Dimension) NumChunks() int {
	return (d.Size + d.ChunkSize - 1) / d.ChunkSize
}

// ChunkShape returns the actual extent of the chunk at grid coordinate c.
// Every chunk spans ChunkSize elements except the last one of the axis when
// Size is not a multiple of ChunkSize.
func (d Dimension) ChunkShape(c int) int {
	n := d.Size - c*d.ChunkSize
	if n > d.ChunkSize {
		n = d.ChunkSize
	}
	return n
}

// Shape is an ordered sequence of dimensions, one per axis. A zero-length
// shape describes a 0-d scalar array.
type Shape []Dimension

// NewShape builds a Shape from parallel size and chunk-size slices.
func NewShape(sizes, chunks []int) (Shape, error) {
	if len(sizes) != len(chunks) {
		return nil, fmt.Errorf("%w: %d sizes vs %d chunk sizes", ErrShapeMismatch, len(sizes), len(chunks))
	}
	s := make(Shape, len(sizes))
	for i := range sizes {
		if sizes[i] <= 0 {
			return nil, fmt.Errorf("%w: axis %d has size %d, must be positive", ErrShapeMismatch, i, sizes[i])
		}
		if chunks[i] <= 0 {
			return nil, fmt.Errorf("%w: axis %d has chunk size %d, must be positive", ErrShapeMismatch, i, chunks[i])
		}
		s[i] = Dimension{Size: sizes[i], ChunkSize: chunks[i]}
	}
	return s, nil
}

// Rank returns the number of axes.
func (s Shape) Rank() int { return len(s) }

// Sizes returns the per-axis sizes.
func (s Shape) Sizes() []int {
	out := make([]int, len(s))
	for i, d := range s {
		out[i] = d.Size
	}
	return out
}

// ChunkSizes returns the per-axis chunk sizes.
func (s Shape) ChunkSizes() []int {
	out := make([]int, len(s))
	for i, d := range s {
		out[i] = d.ChunkSize
	}
	return out
}

// NumElements is the total element count. A 0-d shape holds one element.
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d.Size
	}
	return n
}

// GridShape calculates the number of chunks in each dimension.
// For each dimension i, the number of chunks is ceil(shape[i] / chunks[i]).
func (s Shape) GridShape() []int {
	grid := make([]int, len(s))
	for i, d := range s {
		grid[i] = d.NumChunks()
	}
	return grid
}

// NumChunksTotal is the chunk-grid cardinality. A 0-d shape has one chunk.
func (s Shape) NumChunksTotal() int {
	n := 1
	for _, d := range s {
		n *= d.NumChunks()
	}
	return n
}

// ChunkShape returns the actual per-axis extent of the chunk at the given
// grid coordinate, accounting for ragged trailing chunks.
func (s Shape) ChunkShape(coord []int) []int {
	out := make([]int, len(s))
	for i, d := range s {
		out[i] = d.ChunkShape(coord[i])
	}
	return out
}

// maxGridCoord bounds chunk-grid coordinates to the 32-bit range so chunk
// keys stay portable across platforms.
const maxGridCoord = math.MaxInt32

// Locate resolves a logical element index into its chunk grid coordinate and
// the element offset within that chunk. An index outside the array extent
// fails with ErrIndexOutOfBounds; an in-bounds index whose grid coordinate
// cannot be represented fails with ErrCoordinateOverflow.
func (s Shape) Locate(idx []int64) (coord, offset []int, err error) {
	if len(idx) != len(s) {
		return nil, nil, fmt.Errorf("%w: got %d indices for rank %d", ErrIndexOutOfBounds, len(idx), len(s))
	}
	coord = make([]int, len(s))
	offset = make([]int, len(s))
	for i, d := range s {
		if idx[i] < 0 || idx[i] >= int64(d.Size) {
			return nil, nil, fmt.Errorf("%w: axis %d index %d, size %d", ErrIndexOutOfBounds, i, idx[i], d.Size)
		}
		c := idx[i] / int64(d.ChunkSize)
		if c > maxGridCoord {
			return nil, nil, fmt.Errorf("%w: axis %d index %d", ErrCoordinateOverflow, i, idx[i])
		}
		coord[i] = int(c)
		offset[i] = int(idx[i] % int64(d.ChunkSize))
	}
	return coord, offset, nil
}
