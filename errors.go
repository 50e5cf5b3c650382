// Package zarr implements the Zarr v2 chunked N-dimensional array storage
// format on top of a pluggable byte store. Arrays are partitioned into
// rectangular chunks, each independently compressed and stored as one object,
// with a JSON .zarray document declaring shape, chunking, element type, fill
// value and compression codec.
package zarr

import "errors"

// Common errors
var (
	ErrMetadataParse      = errors.New("invalid array metadata")
	ErrShapeMismatch      = errors.New("shape mismatch")
	ErrIndexOutOfBounds   = errors.New("index out of bounds")
	ErrCoordinateOverflow = errors.New("index overflows chunk grid coordinate")
	ErrChunkIO            = errors.New("chunk I/O failed")
	ErrDerivation         = errors.New("cannot derive storage layout")
	ErrNotFound           = errors.New("object not found")
	ErrUnsupported        = errors.New("unsupported feature")
)
