package zarr

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DataType describes one element type of the registry: its NumPy-style
// typestr tag, fixed byte width, and the byte-level codec for single
// elements. Chunk buffers are always little-endian, matching the "<" and "|"
// tag families; big-endian tags are rejected.
type DataType struct {
	// Tag is the NumPy typestr recorded in metadata, e.g. "<f4".
	Tag string
	// Name is the Go-facing type name, e.g. "float32".
	Name string
	// Width is the fixed element width in bytes.
	Width int

	encode    func(dst []byte, v any) error
	decode    func(src []byte) any
	parseFill func(v any) (any, error)
}

// Encode writes one element value into dst, which must hold Width bytes.
func (dt *DataType) Encode(dst []byte, v any) error { return dt.encode(dst, v) }

// Decode reads one element value from src.
func (dt *DataType) Decode(src []byte) any { return dt.decode(src) }

// ParseFill converts a fill value as decoded from JSON into the element
// type's native representation. nil stays nil (no fill value).
func (dt *DataType) ParseFill(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return dt.parseFill(v)
}

// Zero returns the zero element of the type.
func (dt *DataType) Zero() any { return dt.decode(make([]byte, dt.Width)) }

var dtypes = map[string]*DataType{}

// RegisterDType adds a data type to the registry, replacing any existing
// entry with the same tag.
func RegisterDType(dt *DataType) {
	dtypes[dt.Tag] = dt
}

// LookupDType resolves a metadata dtype tag like "<f4", "|b1", "<i8".
// Big-endian (>) tags are unsupported.
func LookupDType(tag string) (*DataType, error) {
	if len(tag) < 3 {
		return nil, fmt.Errorf("%w: invalid dtype %q", ErrMetadataParse, tag)
	}
	if tag[0] == '>' {
		return nil, fmt.Errorf("%w: big-endian dtype %q", ErrUnsupported, tag)
	}
	dt, ok := dtypes[tag]
	if !ok {
		return nil, fmt.Errorf("%w: unknown dtype %q", ErrMetadataParse, tag)
	}
	return dt, nil
}

func init() {
	RegisterDType(&DataType{
		Tag: "|b1", Name: "bool", Width: 1,
		encode: func(dst []byte, v any) error {
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("encode bool: got %T", v)
			}
			if b {
				dst[0] = 1
			} else {
				dst[0] = 0
			}
			return nil
		},
		decode: func(src []byte) any { return src[0] != 0 },
		parseFill: func(v any) (any, error) {
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("bool fill value: got %T", v)
			}
			return b, nil
		},
	})

	RegisterDType(&DataType{
		Tag: "<i1", Name: "int8", Width: 1,
		encode: func(dst []byte, v any) error {
			n, ok := v.(int8)
			if !ok {
				return fmt.Errorf("encode int8: got %T", v)
			}
			dst[0] = byte(n)
			return nil
		},
		decode:    func(src []byte) any { return int8(src[0]) },
		parseFill: intFill(math.MinInt8, math.MaxInt8, func(n int64) any { return int8(n) }),
	})
	RegisterDType(&DataType{
		Tag: "<i2", Name: "int16", Width: 2,
		encode: func(dst []byte, v any) error {
			n, ok := v.(int16)
			if !ok {
				return fmt.Errorf("encode int16: got %T", v)
			}
			binary.LittleEndian.PutUint16(dst, uint16(n))
			return nil
		},
		decode:    func(src []byte) any { return int16(binary.LittleEndian.Uint16(src)) },
		parseFill: intFill(math.MinInt16, math.MaxInt16, func(n int64) any { return int16(n) }),
	})
	RegisterDType(&DataType{
		Tag: "<i4", Name: "int32", Width: 4,
		encode: func(dst []byte, v any) error {
			n, ok := v.(int32)
			if !ok {
				return fmt.Errorf("encode int32: got %T", v)
			}
			binary.LittleEndian.PutUint32(dst, uint32(n))
			return nil
		},
		decode:    func(src []byte) any { return int32(binary.LittleEndian.Uint32(src)) },
		parseFill: intFill(math.MinInt32, math.MaxInt32, func(n int64) any { return int32(n) }),
	})
	RegisterDType(&DataType{
		Tag: "<i8", Name: "int64", Width: 8,
		encode: func(dst []byte, v any) error {
			n, ok := v.(int64)
			if !ok {
				return fmt.Errorf("encode int64: got %T", v)
			}
			binary.LittleEndian.PutUint64(dst, uint64(n))
			return nil
		},
		decode:    func(src []byte) any { return int64(binary.LittleEndian.Uint64(src)) },
		parseFill: intFill(math.MinInt64, math.MaxInt64, func(n int64) any { return n }),
	})

	RegisterDType(&DataType{
		Tag: "<u1", Name: "uint8", Width: 1,
		encode: func(dst []byte, v any) error {
			n, ok := v.(uint8)
			if !ok {
				return fmt.Errorf("encode uint8: got %T", v)
			}
			dst[0] = n
			return nil
		},
		decode:    func(src []byte) any { return src[0] },
		parseFill: intFill(0, math.MaxUint8, func(n int64) any { return uint8(n) }),
	})
	RegisterDType(&DataType{
		Tag: "<u2", Name: "uint16", Width: 2,
		encode: func(dst []byte, v any) error {
			n, ok := v.(uint16)
			if !ok {
				return fmt.Errorf("encode uint16: got %T", v)
			}
			binary.LittleEndian.PutUint16(dst, n)
			return nil
		},
		decode:    func(src []byte) any { return binary.LittleEndian.Uint16(src) },
		parseFill: intFill(0, math.MaxUint16, func(n int64) any { return uint16(n) }),
	})
	RegisterDType(&DataType{
		Tag: "<u4", Name: "uint32", Width: 4,
		encode: func(dst []byte, v any) error {
			n, ok := v.(uint32)
			if !ok {
				return fmt.Errorf("encode uint32: got %T", v)
			}
			binary.LittleEndian.PutUint32(dst, n)
			return nil
		},
		decode:    func(src []byte) any { return binary.LittleEndian.Uint32(src) },
		parseFill: intFill(0, math.MaxUint32, func(n int64) any { return uint32(n) }),
	})
	RegisterDType(&DataType{
		Tag: "<u8", Name: "uint64", Width: 8,
		encode: func(dst []byte, v any) error {
			n, ok := v.(uint64)
			if !ok {
				return fmt.Errorf("encode uint64: got %T", v)
			}
			binary.LittleEndian.PutUint64(dst, n)
			return nil
		},
		decode: func(src []byte) any { return binary.LittleEndian.Uint64(src) },
		parseFill: func(v any) (any, error) {
			f, ok := v.(float64)
			if !ok || f < 0 || f != math.Trunc(f) {
				return nil, fmt.Errorf("uint64 fill value: got %v", v)
			}
			return uint64(f), nil
		},
	})

	RegisterDType(&DataType{
		Tag: "<f4", Name: "float32", Width: 4,
		encode: func(dst []byte, v any) error {
			f, ok := v.(float32)
			if !ok {
				return fmt.Errorf("encode float32: got %T", v)
			}
			binary.LittleEndian.PutUint32(dst, math.Float32bits(f))
			return nil
		},
		decode:    func(src []byte) any { return math.Float32frombits(binary.LittleEndian.Uint32(src)) },
		parseFill: floatFill(func(f float64) any { return float32(f) }),
	})
	RegisterDType(&DataType{
		Tag: "<f8", Name: "float64", Width: 8,
		encode: func(dst []byte, v any) error {
			f, ok := v.(float64)
			if !ok {
				return fmt.Errorf("encode float64: got %T", v)
			}
			binary.LittleEndian.PutUint64(dst, math.Float64bits(f))
			return nil
		},
		decode:    func(src []byte) any { return math.Float64frombits(binary.LittleEndian.Uint64(src)) },
		parseFill: floatFill(func(f float64) any { return f }),
	})
}

func intFill(min, max int64, conv func(int64) any) func(any) (any, error) {
	return func(v any) (any, error) {
		f, ok := v.(float64)
		if !ok || f != math.Trunc(f) {
			return nil, fmt.Errorf("integer fill value: got %v", v)
		}
		n := int64(f)
		if n < min || n > max {
			return nil, fmt.Errorf("integer fill value %d out of range [%d, %d]", n, min, max)
		}
		return conv(n), nil
	}
}

// Special float fill values are encoded as JSON strings per the Zarr v2 spec.
const (
	fillNaN    = "NaN"
	fillPosInf = "Infinity"
	fillNegInf = "-Infinity"
)

func floatFill(conv func(float64) any) func(any) (any, error) {
	return func(v any) (any, error) {
		switch x := v.(type) {
		case float64:
			return conv(x), nil
		case string:
			switch x {
			case fillNaN:
				return conv(math.NaN()), nil
			case fillPosInf:
				return conv(math.Inf(1)), nil
			case fillNegInf:
				return conv(math.Inf(-1)), nil
			}
			return nil, fmt.Errorf("float fill value: unknown string %q", x)
		default:
			return nil, fmt.Errorf("float fill value: got %T", v)
		}
	}
}
