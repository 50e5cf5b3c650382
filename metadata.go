package zarr

import (
	"encoding/json"
	"fmt"
)

// Well-known document names inside an array or group prefix.
const (
	// MetadataKey stores the array metadata document.
	MetadataKey = ".zarray"
	// AttrsKey stores the optional user attributes document.
	AttrsKey = ".zattrs"
	// GroupKey marks a prefix as a group.
	GroupKey = ".zgroup"
)

// FormatVersion is the Zarr storage format version this package implements.
const FormatVersion = 2

const (
	orderRowMajor    = "C"
	orderColMajor    = "F"
	defaultSeparator = "."
)

// CompressorConfig is the compressor section of the metadata document.
type CompressorConfig struct {
	ID      string `json:"id"`
	Cname   string `json:"cname,omitempty"`
	Clevel  int    `json:"clevel,omitempty"`
	Shuffle int    `json:"shuffle,omitempty"`
}

// Metadata is the .zarray document. It is the single source of truth for
// interpreting chunk bytes and must be read before anything else.
type Metadata struct {
	ZarrFormat int               `json:"zarr_format"`
	Shape      []int             `json:"shape"`
	Chunks     []int             `json:"chunks"`
	DType      string            `json:"dtype"`
	Compressor *CompressorConfig `json:"compressor"`
	FillValue  any               `json:"fill_value"`
	Order      string            `json:"order"`
	Separator  string            `json:"dimension_separator,omitempty"`
}

// resolved holds the validated, lookup-resolved form of a Metadata document.
type resolved struct {
	shape Shape
	dtype *DataType
	comp  Compressor
	fill  any
	sep   string
}

// ParseMetadata decodes and validates a .zarray document. Unknown dtype tags
// and compressor ids fail here, before any chunk is touched.
func ParseMetadata(data []byte) (*Metadata, error) {
	meta := &Metadata{}
	if err := json.Unmarshal(data, meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataParse, err)
	}
	if _, err := meta.resolve(); err != nil {
		return nil, err
	}
	return meta, nil
}

// resolve validates the document and resolves registry references.
func (m *Metadata) resolve() (*resolved, error) {
	if m.ZarrFormat != FormatVersion {
		return nil, fmt.Errorf("%w: zarr_format %d, expected %d", ErrMetadataParse, m.ZarrFormat, FormatVersion)
	}
	// Absent shape/chunks fields decode as nil; an explicit [] (a 0-d
	// scalar) decodes as a non-nil empty slice.
	if m.Shape == nil {
		return nil, fmt.Errorf("%w: missing shape", ErrMetadataParse)
	}
	if m.Chunks == nil {
		return nil, fmt.Errorf("%w: missing chunks", ErrMetadataParse)
	}
	shape, err := NewShape(m.Shape, m.Chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataParse, err)
	}
	if m.DType == "" {
		return nil, fmt.Errorf("%w: missing dtype", ErrMetadataParse)
	}
	dtype, err := LookupDType(m.DType)
	if err != nil {
		return nil, err
	}
	comp, err := newCompressor(m.Compressor)
	if err != nil {
		return nil, err
	}
	fill, err := dtype.ParseFill(m.FillValue)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataParse, err)
	}
	switch m.Order {
	case orderRowMajor:
	case orderColMajor:
		return nil, fmt.Errorf("%w: column-major (F) order", ErrUnsupported)
	default:
		return nil, fmt.Errorf("%w: invalid order %q", ErrMetadataParse, m.Order)
	}
	sep := m.Separator
	switch sep {
	case "":
		sep = defaultSeparator
	case ".", "/":
	default:
		return nil, fmt.Errorf("%w: invalid dimension_separator %q", ErrMetadataParse, m.Separator)
	}
	return &resolved{shape: shape, dtype: dtype, comp: comp, fill: fill, sep: sep}, nil
}

// Encode serializes the metadata document.
func (m *Metadata) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}
	return data, nil
}

// Attrs is the optional user attributes sidecar, an opaque JSON object with
// no schema enforced here.
type Attrs map[string]any
