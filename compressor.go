package zarr

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compressor is a whole-buffer codec applied to each chunk independently.
// Decompress verifies the result against the expected uncompressed length
// implied by the chunk shape and element width.
type Compressor interface {
	ID() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte, expectedLen int) ([]byte, error)
}

// CompressorFactory builds a Compressor from its metadata configuration.
type CompressorFactory func(cfg *CompressorConfig) (Compressor, error)

var compressorFactories = map[string]CompressorFactory{
	"zstd":   newZstdCompressor,
	"gzip":   newGzipCompressor,
	"zlib":   newZlibCompressor,
	"snappy": newSnappyCompressor,
}

// RegisterCompressor adds a codec to the registry under the given metadata id.
func RegisterCompressor(id string, f CompressorFactory) {
	compressorFactories[id] = f
}

// newCompressor resolves a metadata compressor config. A nil config means
// chunks are stored raw and yields a nil Compressor. An unknown id is a
// metadata parse error, surfaced before any chunk is touched.
func newCompressor(cfg *CompressorConfig) (Compressor, error) {
	if cfg == nil {
		return nil, nil
	}
	f, ok := compressorFactories[cfg.ID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown compressor %q", ErrMetadataParse, cfg.ID)
	}
	return f(cfg)
}

func checkLen(id string, got, want int) error {
	if want >= 0 && got != want {
		return fmt.Errorf("%s: decompressed %d bytes, want %d", id, got, want)
	}
	return nil
}

type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCompressor(cfg *CompressorConfig) (Compressor, error) {
	var opts []zstd.EOption
	if cfg.Clevel != 0 {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(cfg.Clevel)))
	}
	enc, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("init zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("init zstd decoder: %w", err)
	}
	return &zstdCompressor{enc: enc, dec: dec}, nil
}

func (c *zstdCompressor) ID() string { return "zstd" }

func (c *zstdCompressor) Compress(data []byte) ([]byte, error) {
	return c.enc.EncodeAll(data, nil), nil
}

func (c *zstdCompressor) Decompress(data []byte, expectedLen int) ([]byte, error) {
	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	return out, checkLen("zstd", len(out), expectedLen)
}

type gzipCompressor struct {
	level int
}

func newGzipCompressor(cfg *CompressorConfig) (Compressor, error) {
	level := cfg.Clevel
	if level == 0 {
		level = gzip.DefaultCompression
	}
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		return nil, fmt.Errorf("%w: gzip level %d", ErrMetadataParse, level)
	}
	return &gzipCompressor{level: level}, nil
}

func (c *gzipCompressor) ID() string { return "gzip" }

func (c *gzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *gzipCompressor) Decompress(data []byte, expectedLen int) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	out, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return out, checkLen("gzip", len(out), expectedLen)
}

type zlibCompressor struct {
	level int
}

func newZlibCompressor(cfg *CompressorConfig) (Compressor, error) {
	level := cfg.Clevel
	if level == 0 {
		level = zlib.DefaultCompression
	}
	if level < zlib.HuffmanOnly || level > zlib.BestCompression {
		return nil, fmt.Errorf("%w: zlib level %d", ErrMetadataParse, level)
	}
	return &zlibCompressor{level: level}, nil
}

func (c *zlibCompressor) ID() string { return "zlib" }

func (c *zlibCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *zlibCompressor) Decompress(data []byte, expectedLen int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	out, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	return out, checkLen("zlib", len(out), expectedLen)
}

type snappyCompressor struct{}

func newSnappyCompressor(*CompressorConfig) (Compressor, error) {
	return snappyCompressor{}, nil
}

func (snappyCompressor) ID() string { return "snappy" }

func (snappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyCompressor) Decompress(data []byte, expectedLen int) ([]byte, error) {
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy: %w", err)
	}
	return out, checkLen("snappy", len(out), expectedLen)
}
