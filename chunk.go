package zarr

import (
	"strconv"
	"strings"
)

// ChunkKey generates the storage key for a chunk given its grid coordinate
// and a separator. For Zarr V2, the separator is typically ".".
// Example: coord=[1, 4], separator="." -> "1.4"
// For 0-d arrays (empty coordinate), it returns "0" per the Zarr spec.
func ChunkKey(coord []int, separator string) string {
	if len(coord) == 0 {
		return "0"
	}

	if len(coord) == 1 {
		return strconv.Itoa(coord[0])
	}

	var sb strings.Builder
	for i, c := range coord {
		if i > 0 {
			sb.WriteString(separator)
		}
		sb.WriteString(strconv.Itoa(c))
	}
	return sb.String()
}

// Chunk is one rectangular sub-block of an array. It owns the uncompressed
// little-endian element buffer for its (possibly ragged) shape.
type Chunk struct {
	Coord []int
	Shape []int
	data  []byte
}

// NumElements is the element count of the chunk's actual shape.
func (c *Chunk) NumElements() int {
	n := 1
	for _, s := range c.Shape {
		n *= s
	}
	return n
}

// Bytes exposes the chunk's raw element buffer.
func (c *Chunk) Bytes() []byte { return c.data }

// strides computes the C-order strides for a given shape.
func strides(shape []int) []int {
	if len(shape) == 0 {
		return []int{}
	}
	s := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = stride
		stride *= shape[i]
	}
	return s
}

// iterateGrid calls fn for every coordinate in [0, end) per axis, in
// row-major order. A zero-rank grid visits the single empty coordinate once.
func iterateGrid(end []int, fn func(coord []int) error) error {
	if len(end) == 0 {
		return fn([]int{})
	}
	coord := make([]int, len(end))
	for {
		if err := fn(coord); err != nil {
			return err
		}

		// Increment
		i := len(end) - 1
		for ; i >= 0; i-- {
			coord[i]++
			if coord[i] < end[i] {
				break
			}
			coord[i] = 0
		}
		if i < 0 {
			break
		}
	}
	return nil
}

// iterateSubGrid iterates from start (inclusive) to end (exclusive) in each
// dimension.
func iterateSubGrid(start, end []int, fn func(coord []int) error) error {
	if len(start) == 0 {
		return fn([]int{})
	}
	coord := make([]int, len(start))
	copy(coord, start)

	for {
		if err := fn(coord); err != nil {
			return err
		}

		// Increment
		i := len(start) - 1
		for ; i >= 0; i-- {
			coord[i]++
			if coord[i] < end[i] {
				break
			}
			coord[i] = start[i] // Reset to start, not 0
		}
		if i < 0 {
			break
		}
	}
	return nil
}

// copyND recursively copies an n-dimensional block between two row-major
// byte buffers. Offsets and strides are in elements; itemSize in bytes.
func copyND(
	dst []byte, dstStrides, dstOffset []int,
	src []byte, srcStrides, srcOffset []int,
	copyShape []int, itemSize int,
) {
	if len(copyShape) == 0 {
		// 0D scalar array: exactly one element
		copy(dst[:itemSize], src[:itemSize])
		return
	}

	startSrcIdx := 0
	startDstIdx := 0
	for i := range copyShape {
		startSrcIdx += srcOffset[i] * srcStrides[i]
		startDstIdx += dstOffset[i] * dstStrides[i]
	}

	var iterate func(dim int, currentSrcIdx, currentDstIdx int)
	iterate = func(dim int, currentSrcIdx, currentDstIdx int) {
		// Bulk copy for the innermost contiguous dimension
		if dim == len(copyShape)-1 {
			n := copyShape[dim]
			if srcStrides[dim] == 1 && dstStrides[dim] == 1 {
				byteLen := n * itemSize
				srcStart := currentSrcIdx * itemSize
				dstStart := currentDstIdx * itemSize
				copy(dst[dstStart:dstStart+byteLen], src[srcStart:srcStart+byteLen])
				return
			}
			// Fallback for non-contiguous last dimension
			for i := 0; i < n; i++ {
				srcStart := (currentSrcIdx + i*srcStrides[dim]) * itemSize
				dstStart := (currentDstIdx + i*dstStrides[dim]) * itemSize
				copy(dst[dstStart:dstStart+itemSize], src[srcStart:srcStart+itemSize])
			}
			return
		}

		for i := 0; i < copyShape[dim]; i++ {
			iterate(dim+1, currentSrcIdx+i*srcStrides[dim], currentDstIdx+i*dstStrides[dim])
		}
	}
	iterate(0, startSrcIdx, startDstIdx)
}
