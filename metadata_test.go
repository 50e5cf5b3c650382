package zarr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validMetadataJSON() string {
	return `{
		"zarr_format": 2,
		"shape": [10, 2],
		"chunks": [5, 2],
		"dtype": "<f4",
		"compressor": null,
		"fill_value": 0.0,
		"order": "C"
	}`
}

func TestParseMetadata(t *testing.T) {
	meta, err := ParseMetadata([]byte(validMetadataJSON()))
	require.NoError(t, err)
	require.Equal(t, 2, meta.ZarrFormat)
	require.Equal(t, []int{10, 2}, meta.Shape)
	require.Equal(t, []int{5, 2}, meta.Chunks)
	require.Equal(t, "<f4", meta.DType)
	require.Nil(t, meta.Compressor)
}

func TestParseMetadataScalar(t *testing.T) {
	// Explicit empty shape/chunks describe a 0-d scalar array and stay valid.
	meta, err := ParseMetadata([]byte(`{
		"zarr_format": 2,
		"shape": [],
		"chunks": [],
		"dtype": "<f8",
		"compressor": null,
		"fill_value": null,
		"order": "C"
	}`))
	require.NoError(t, err)
	require.Empty(t, meta.Shape)
	require.Empty(t, meta.Chunks)
}

func TestParseMetadataErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
		want error
	}{
		{
			name: "malformed json",
			json: `{"zarr_format": 2,`,
			want: ErrMetadataParse,
		},
		{
			name: "wrong format version",
			json: `{"zarr_format": 3, "shape": [4], "chunks": [2], "dtype": "<f4", "compressor": null, "fill_value": null, "order": "C"}`,
			want: ErrMetadataParse,
		},
		{
			name: "missing shape",
			json: `{"zarr_format": 2, "chunks": [2], "dtype": "<f4", "compressor": null, "fill_value": null, "order": "C"}`,
			want: ErrMetadataParse,
		},
		{
			name: "missing chunks",
			json: `{"zarr_format": 2, "shape": [4], "dtype": "<f4", "compressor": null, "fill_value": null, "order": "C"}`,
			want: ErrMetadataParse,
		},
		{
			name: "missing shape and chunks",
			json: `{"zarr_format": 2, "dtype": "<f4", "compressor": null, "fill_value": null, "order": "C"}`,
			want: ErrMetadataParse,
		},
		{
			name: "missing dtype",
			json: `{"zarr_format": 2, "shape": [4], "chunks": [2], "compressor": null, "fill_value": null, "order": "C"}`,
			want: ErrMetadataParse,
		},
		{
			name: "unknown dtype",
			json: `{"zarr_format": 2, "shape": [4], "chunks": [2], "dtype": "<q4", "compressor": null, "fill_value": null, "order": "C"}`,
			want: ErrMetadataParse,
		},
		{
			name: "big-endian dtype",
			json: `{"zarr_format": 2, "shape": [4], "chunks": [2], "dtype": ">f4", "compressor": null, "fill_value": null, "order": "C"}`,
			want: ErrUnsupported,
		},
		{
			name: "unknown compressor",
			json: `{"zarr_format": 2, "shape": [4], "chunks": [2], "dtype": "<f4", "compressor": {"id": "lzma"}, "fill_value": null, "order": "C"}`,
			want: ErrMetadataParse,
		},
		{
			name: "shape chunks rank mismatch",
			json: `{"zarr_format": 2, "shape": [4, 4], "chunks": [2], "dtype": "<f4", "compressor": null, "fill_value": null, "order": "C"}`,
			want: ErrMetadataParse,
		},
		{
			name: "column-major order",
			json: `{"zarr_format": 2, "shape": [4], "chunks": [2], "dtype": "<f4", "compressor": null, "fill_value": null, "order": "F"}`,
			want: ErrUnsupported,
		},
		{
			name: "invalid order",
			json: `{"zarr_format": 2, "shape": [4], "chunks": [2], "dtype": "<f4", "compressor": null, "fill_value": null, "order": "X"}`,
			want: ErrMetadataParse,
		},
		{
			name: "invalid separator",
			json: `{"zarr_format": 2, "shape": [4], "chunks": [2], "dtype": "<f4", "compressor": null, "fill_value": null, "order": "C", "dimension_separator": "_"}`,
			want: ErrMetadataParse,
		},
		{
			name: "mistyped fill value",
			json: `{"zarr_format": 2, "shape": [4], "chunks": [2], "dtype": "<i4", "compressor": null, "fill_value": "zero", "order": "C"}`,
			want: ErrMetadataParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMetadata([]byte(tt.json))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMetadataEncodeRoundTrip(t *testing.T) {
	meta := &Metadata{
		ZarrFormat: FormatVersion,
		Shape:      []int{10},
		Chunks:     []int{4},
		DType:      "<i8",
		Compressor: &CompressorConfig{ID: "zstd", Clevel: 3},
		FillValue:  float64(-1),
		Order:      "C",
	}

	data, err := meta.Encode()
	require.NoError(t, err)

	parsed, err := ParseMetadata(data)
	require.NoError(t, err)
	require.Equal(t, meta.Shape, parsed.Shape)
	require.Equal(t, meta.Chunks, parsed.Chunks)
	require.Equal(t, meta.DType, parsed.DType)
	require.Equal(t, "zstd", parsed.Compressor.ID)
	require.Equal(t, 3, parsed.Compressor.Clevel)
}
