package zarr_test

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/memblob"

	"github.com/arraykit/zarr"
)

func newFileStore(t *testing.T) (*zarr.BucketStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := zarr.OpenStore(context.Background(), "file://"+dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, dir
}

func newMemStore(t *testing.T) *zarr.BucketStore {
	t.Helper()
	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() { bucket.Close() })
	return zarr.NewBucketStore(bucket)
}

func float32Meta(shape, chunks []int) *zarr.Metadata {
	return &zarr.Metadata{
		ZarrFormat: zarr.FormatVersion,
		Shape:      shape,
		Chunks:     chunks,
		DType:      "<f4",
		FillValue:  float64(0),
		Order:      "C",
	}
}

func TestArrayRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newFileStore(t)

	values := make([]float32, 20)
	for i := range values {
		values[i] = float32(i)
	}

	meta := float32Meta([]int{10, 2}, []int{5, 2})
	meta.Compressor = &zarr.CompressorConfig{ID: "zstd"}
	meta.FillValue = float64(-1)

	a, err := zarr.NewArray(meta, values)
	require.NoError(t, err)
	a.SetAttrs(zarr.Attrs{"units": "mm", "calibrated": true})

	require.NoError(t, a.Save(ctx, store, "exp"))

	got, err := zarr.Open(ctx, store, "exp")
	require.NoError(t, err)
	require.Equal(t, values, got.Values())
	require.Equal(t, zarr.Attrs{"units": "mm", "calibrated": true}, got.Attrs())
	require.Equal(t, float64(-1), got.Metadata().FillValue)
	require.Equal(t, "zstd", got.Metadata().Compressor.ID)
}

func TestArrayRoundTripRagged(t *testing.T) {
	ctx := context.Background()
	store, dir := newFileStore(t)

	values := make([]float32, 10)
	for i := range values {
		values[i] = float32(i) * 2
	}

	// Shape 10 with chunk size 4: chunks 0, 1, 2 with shapes [4, 4, 2].
	a, err := zarr.NewArray(float32Meta([]int{10}, []int{4}), values)
	require.NoError(t, err)
	require.NoError(t, a.Save(ctx, store, ""))

	for _, name := range []string{"0", "1", "2", ".zarray"} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, "expected object %s", name)
	}
	// The trailing ragged chunk holds only 2 elements.
	raw, err := os.ReadFile(filepath.Join(dir, "2"))
	require.NoError(t, err)
	require.Len(t, raw, 2*4)

	got, err := zarr.Open(ctx, store, "")
	require.NoError(t, err)
	require.Equal(t, values, got.Values())
}

func TestArrayAt(t *testing.T) {
	values := make([]int32, 16)
	for i := range values {
		values[i] = int32(i)
	}
	meta := &zarr.Metadata{
		ZarrFormat: zarr.FormatVersion,
		Shape:      []int{4, 4},
		Chunks:     []int{2, 2},
		DType:      "<i4",
		Order:      "C",
	}

	a, err := zarr.NewArray(meta, values)
	require.NoError(t, err)

	// Row-major: element (r, c) is r*4 + c, independent of chunking.
	for r := int64(0); r < 4; r++ {
		for c := int64(0); c < 4; c++ {
			v, err := a.At(r, c)
			require.NoError(t, err)
			require.Equal(t, int32(r*4+c), v)
		}
	}

	_, err = a.At(4, 0)
	require.ErrorIs(t, err, zarr.ErrIndexOutOfBounds)
	_, err = a.At(0, -1)
	require.ErrorIs(t, err, zarr.ErrIndexOutOfBounds)
	_, err = a.At(0)
	require.ErrorIs(t, err, zarr.ErrIndexOutOfBounds)
}

func TestArrayRegion(t *testing.T) {
	values := make([]int32, 16)
	for i := range values {
		values[i] = int32(i)
	}
	meta := &zarr.Metadata{
		ZarrFormat: zarr.FormatVersion,
		Shape:      []int{4, 4},
		Chunks:     []int{2, 2},
		DType:      "<i4",
		Order:      "C",
	}

	a, err := zarr.NewArray(meta, values)
	require.NoError(t, err)

	// 2x2 region crossing all four chunk boundaries.
	raw, err := a.Region([]int{1, 1}, []int{2, 2})
	require.NoError(t, err)
	require.Len(t, raw, 4*4)

	want := []int32{5, 6, 9, 10}
	for i, w := range want {
		require.Equal(t, w, int32(binary.LittleEndian.Uint32(raw[i*4:])))
	}

	_, err = a.Region([]int{3, 3}, []int{2, 2})
	require.ErrorIs(t, err, zarr.ErrIndexOutOfBounds)
}

func TestArrayZeros(t *testing.T) {
	meta := float32Meta([]int{3, 3}, []int{2, 2})
	meta.FillValue = float64(7.5)

	a, err := zarr.Zeros(meta)
	require.NoError(t, err)

	v, err := a.At(2, 2)
	require.NoError(t, err)
	require.Equal(t, float32(7.5), v)
}

func TestArrayScalar(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)

	meta := &zarr.Metadata{
		ZarrFormat: zarr.FormatVersion,
		Shape:      []int{},
		Chunks:     []int{},
		DType:      "<f8",
		Order:      "C",
	}

	a, err := zarr.NewArray(meta, []float64{42})
	require.NoError(t, err)
	require.NoError(t, a.Save(ctx, store, "scalar"))

	// 0-d arrays store a single chunk under the key "0".
	ok, err := store.Exists(ctx, "scalar/0")
	require.NoError(t, err)
	require.True(t, ok)

	got, err := zarr.Open(ctx, store, "scalar")
	require.NoError(t, err)
	v, err := got.At()
	require.NoError(t, err)
	require.Equal(t, float64(42), v)
}

func TestOpenMissingChunk(t *testing.T) {
	ctx := context.Background()
	store, dir := newFileStore(t)

	values := make([]float32, 10)
	a, err := zarr.NewArray(float32Meta([]int{10}, []int{4}), values)
	require.NoError(t, err)
	require.NoError(t, a.Save(ctx, store, ""))

	require.NoError(t, os.Remove(filepath.Join(dir, "1")))

	_, err = zarr.Open(ctx, store, "")
	require.ErrorIs(t, err, zarr.ErrChunkIO)
}

func TestOpenTruncatedChunk(t *testing.T) {
	ctx := context.Background()
	store, dir := newFileStore(t)

	values := make([]float32, 10)
	a, err := zarr.NewArray(float32Meta([]int{10}, []int{4}), values)
	require.NoError(t, err)
	require.NoError(t, a.Save(ctx, store, ""))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "1"), []byte{1, 2, 3}, 0644))

	_, err = zarr.Open(ctx, store, "")
	require.ErrorIs(t, err, zarr.ErrChunkIO)
}

func TestOpenCorruptCompressedChunk(t *testing.T) {
	ctx := context.Background()
	store, dir := newFileStore(t)

	values := make([]float32, 10)
	meta := float32Meta([]int{10}, []int{4})
	meta.Compressor = &zarr.CompressorConfig{ID: "zstd"}

	a, err := zarr.NewArray(meta, values)
	require.NoError(t, err)
	require.NoError(t, a.Save(ctx, store, ""))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "0"), []byte("garbage"), 0644))

	_, err = zarr.Open(ctx, store, "")
	require.ErrorIs(t, err, zarr.ErrChunkIO)
}

func TestOpenUnknownCompressor(t *testing.T) {
	ctx := context.Background()
	store, dir := newFileStore(t)

	mockJSON := `{
		"zarr_format": 2,
		"shape": [4],
		"chunks": [2],
		"dtype": "<f4",
		"compressor": {"id": "blosc"},
		"fill_value": 0.0,
		"order": "C"
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".zarray"), []byte(mockJSON), 0644))

	// The unknown compressor fails at metadata parse time; no chunks exist
	// and none are touched.
	_, err := zarr.Open(ctx, store, "")
	require.ErrorIs(t, err, zarr.ErrMetadataParse)
	require.NotErrorIs(t, err, zarr.ErrChunkIO)
}

func TestOpenMissingMetadata(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)

	_, err := zarr.Open(ctx, store, "nothing-here")
	require.ErrorIs(t, err, zarr.ErrNotFound)
}

func TestSaveCancelled(t *testing.T) {
	store := newMemStore(t)

	values := make([]float32, 100)
	a, err := zarr.NewArray(float32Meta([]int{100}, []int{1}), values)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = a.Save(ctx, store, "x", zarr.WithWorkers(2))
	require.Error(t, err)
}

func TestSaveCompressorComparison(t *testing.T) {
	ctx := context.Background()

	values := make([]int64, 64)
	for i := range values {
		values[i] = int64(i % 4)
	}

	for _, id := range []string{"zstd", "gzip", "zlib", "snappy"} {
		t.Run(id, func(t *testing.T) {
			store := newMemStore(t)

			meta := &zarr.Metadata{
				ZarrFormat: zarr.FormatVersion,
				Shape:      []int{8, 8},
				Chunks:     []int{4, 4},
				DType:      "<i8",
				Compressor: &zarr.CompressorConfig{ID: id},
				Order:      "C",
			}

			a, err := zarr.NewArray(meta, values)
			require.NoError(t, err)
			require.NoError(t, a.Save(ctx, store, "a"))

			got, err := zarr.Open(ctx, store, "a")
			require.NoError(t, err)
			require.Equal(t, values, got.Values())
		})
	}
}
