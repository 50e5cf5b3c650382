package zarr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// chunkMapSeparator keys the in-memory chunk container, independent of the
// on-store dimension separator.
const chunkMapSeparator = "."

// Array composes metadata, attributes and the chunk grid. Chunks are
// materialized eagerly: Open reads and decodes every chunk implied by the
// shape, so all chunk errors surface at open time and a successfully opened
// array is always complete.
type Array struct {
	meta   *Metadata
	res    *resolved
	attrs  Attrs
	chunks map[string]*Chunk
}

// NewArray builds an in-memory array from a flat row-major slice of element
// values. The slice's element type must match the metadata dtype and its
// length the shape's element count.
func NewArray(meta *Metadata, values any) (*Array, error) {
	res, err := meta.resolve()
	if err != nil {
		return nil, err
	}

	rv := reflect.ValueOf(values)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("values must be a flat slice, got %T", values)
	}
	n := res.shape.NumElements()
	if rv.Len() != n {
		return nil, fmt.Errorf("%w: %d values for %d elements", ErrShapeMismatch, rv.Len(), n)
	}

	w := res.dtype.Width
	flat := make([]byte, n*w)
	for i := 0; i < n; i++ {
		if err := res.dtype.Encode(flat[i*w:], rv.Index(i).Interface()); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}

	a := &Array{meta: meta, res: res}
	a.scatter(flat)
	return a, nil
}

// Zeros builds an in-memory array with every element set to the metadata
// fill value, or the dtype's zero value when fill_value is null.
func Zeros(meta *Metadata) (*Array, error) {
	res, err := meta.resolve()
	if err != nil {
		return nil, err
	}

	fill := res.fill
	if fill == nil {
		fill = res.dtype.Zero()
	}
	w := res.dtype.Width
	one := make([]byte, w)
	if err := res.dtype.Encode(one, fill); err != nil {
		return nil, fmt.Errorf("encoding fill value: %w", err)
	}

	n := res.shape.NumElements()
	flat := make([]byte, n*w)
	for i := 0; i < n; i++ {
		copy(flat[i*w:], one)
	}

	a := &Array{meta: meta, res: res}
	a.scatter(flat)
	return a, nil
}

// Open reads an array from the store at the given path. Metadata is parsed
// first and is authoritative; every chunk implied by the shape is then read,
// decompressed and validated. A missing or corrupt chunk fails the whole
// open, never a partial array.
func Open(ctx context.Context, store Store, path string) (*Array, error) {
	metaBytes, err := store.ReadBytes(ctx, store.Join(path, MetadataKey))
	if err != nil {
		return nil, fmt.Errorf("opening array at %q: %w", path, err)
	}
	meta, err := ParseMetadata(metaBytes)
	if err != nil {
		return nil, fmt.Errorf("opening array at %q: %w", path, err)
	}
	res, err := meta.resolve()
	if err != nil {
		return nil, err
	}

	a := &Array{meta: meta, res: res, chunks: map[string]*Chunk{}}

	attrBytes, err := store.ReadBytes(ctx, store.Join(path, AttrsKey))
	switch {
	case err == nil:
		if err := json.Unmarshal(attrBytes, &a.attrs); err != nil {
			return nil, fmt.Errorf("%w: invalid attributes at %q: %v", ErrMetadataParse, path, err)
		}
	case errors.Is(err, ErrNotFound):
		// attrs are optional
	default:
		return nil, err
	}

	w := res.dtype.Width
	err = iterateGrid(res.shape.GridShape(), func(coord []int) error {
		key := ChunkKey(coord, res.sep)
		raw, err := store.ReadBytes(ctx, store.Join(path, key))
		if err != nil {
			return fmt.Errorf("%w: chunk %s: %v", ErrChunkIO, key, err)
		}

		chunkShape := res.shape.ChunkShape(coord)
		want := w
		for _, s := range chunkShape {
			want *= s
		}

		data := raw
		if res.comp != nil {
			data, err = res.comp.Decompress(raw, want)
			if err != nil {
				return fmt.Errorf("%w: chunk %s: %v", ErrChunkIO, key, err)
			}
		} else if len(data) != want {
			return fmt.Errorf("%w: chunk %s has %d bytes, want %d", ErrChunkIO, key, len(data), want)
		}

		coordCopy := make([]int, len(coord))
		copy(coordCopy, coord)
		a.chunks[ChunkKey(coord, chunkMapSeparator)] = &Chunk{
			Coord: coordCopy,
			Shape: chunkShape,
			data:  data,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug().Str("path", path).Int("chunks", len(a.chunks)).Msg("opened array")
	return a, nil
}

// Metadata returns the array's metadata document.
func (a *Array) Metadata() *Metadata { return a.meta }

// Shape returns the array's shape.
func (a *Array) Shape() Shape { return a.res.shape }

// Attrs returns the user attributes, nil if none were stored.
func (a *Array) Attrs() Attrs { return a.attrs }

// SetAttrs replaces the user attributes saved alongside the array.
func (a *Array) SetAttrs(attrs Attrs) { a.attrs = attrs }

// At returns the element at the given logical index, one index per axis.
func (a *Array) At(idx ...int64) (any, error) {
	coord, offset, err := a.res.shape.Locate(idx)
	if err != nil {
		return nil, err
	}
	ch, ok := a.chunks[ChunkKey(coord, chunkMapSeparator)]
	if !ok {
		return nil, fmt.Errorf("%w: chunk %v", ErrChunkIO, coord)
	}

	flat := 0
	for i, st := range strides(ch.Shape) {
		flat += offset[i] * st
	}
	w := a.res.dtype.Width
	return a.res.dtype.Decode(ch.data[flat*w:]), nil
}

// Flat gathers the whole array into one contiguous row-major byte buffer.
func (a *Array) Flat() []byte {
	w := a.res.dtype.Width
	out := make([]byte, a.res.shape.NumElements()*w)
	sizes := a.res.shape.Sizes()
	chunkSizes := a.res.shape.ChunkSizes()
	globalStrides := strides(sizes)

	for _, ch := range a.chunks {
		dstOffset := make([]int, len(ch.Coord))
		for i, c := range ch.Coord {
			dstOffset[i] = c * chunkSizes[i]
		}
		copyND(
			out, globalStrides, dstOffset,
			ch.data, strides(ch.Shape), make([]int, len(ch.Shape)),
			ch.Shape, w,
		)
	}
	return out
}

// Values decodes the whole array into a flat row-major typed slice, e.g.
// []float32 for dtype "<f4".
func (a *Array) Values() any {
	flat := a.Flat()
	w := a.res.dtype.Width
	n := a.res.shape.NumElements()

	elem := reflect.TypeOf(a.res.dtype.Zero())
	out := reflect.MakeSlice(reflect.SliceOf(elem), n, n)
	for i := 0; i < n; i++ {
		out.Index(i).Set(reflect.ValueOf(a.res.dtype.Decode(flat[i*w:])))
	}
	return out.Interface()
}

// Region extracts an N-dimensional sub-block as a row-major byte buffer.
func (a *Array) Region(start, shape []int) ([]byte, error) {
	rank := a.res.shape.Rank()
	if len(start) != rank || len(shape) != rank {
		return nil, fmt.Errorf("%w: start and shape must match array rank %d", ErrIndexOutOfBounds, rank)
	}
	sizes := a.res.shape.Sizes()
	chunkSizes := a.res.shape.ChunkSizes()
	for i := range sizes {
		if start[i] < 0 || shape[i] <= 0 || start[i]+shape[i] > sizes[i] {
			return nil, fmt.Errorf("%w: region out of bounds at axis %d", ErrIndexOutOfBounds, i)
		}
	}

	w := a.res.dtype.Width
	totalElements := 1
	for _, s := range shape {
		totalElements *= s
	}
	out := make([]byte, totalElements*w)

	if rank == 0 {
		ch := a.chunks[ChunkKey(nil, chunkMapSeparator)]
		copy(out, ch.data)
		return out, nil
	}

	minChunk := make([]int, rank)
	maxChunk := make([]int, rank)
	for i := range start {
		minChunk[i] = start[i] / chunkSizes[i]
		maxChunk[i] = (start[i] + shape[i] - 1) / chunkSizes[i]
	}

	dstStrides := strides(shape)
	end := make([]int, rank)
	for i := range end {
		end[i] = maxChunk[i] + 1
	}

	err := iterateSubGrid(minChunk, end, func(coord []int) error {
		ch, ok := a.chunks[ChunkKey(coord, chunkMapSeparator)]
		if !ok {
			return fmt.Errorf("%w: chunk %v", ErrChunkIO, coord)
		}

		copyShape := make([]int, rank)
		srcOffset := make([]int, rank)
		dstOffset := make([]int, rank)
		for i := 0; i < rank; i++ {
			chunkStart := coord[i] * chunkSizes[i]
			chunkEnd := chunkStart + ch.Shape[i]

			intersectStart := max(start[i], chunkStart)
			intersectEnd := min(start[i]+shape[i], chunkEnd)
			if intersectStart >= intersectEnd {
				return nil
			}

			copyShape[i] = intersectEnd - intersectStart
			srcOffset[i] = intersectStart - chunkStart
			dstOffset[i] = intersectStart - start[i]
		}

		copyND(out, dstStrides, dstOffset, ch.data, strides(ch.Shape), srcOffset, copyShape, w)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Save persists the array: every chunk is encoded, compressed and written
// across a worker pool, then the metadata document and, if set, the
// attributes document. The first chunk failure aborts remaining writes; no
// multi-chunk atomicity is provided and nothing is retried.
func (a *Array) Save(ctx context.Context, store Store, path string, opts ...SaveOption) error {
	cfg := newSaveConfig(opts)

	logger.Debug().Str("path", path).Int("chunks", len(a.chunks)).Msg("saving array")
	if err := a.saveChunks(ctx, store, path, cfg.workers); err != nil {
		return err
	}

	metaBytes, err := a.meta.Encode()
	if err != nil {
		return err
	}
	if err := store.WriteBytes(ctx, store.Join(path, MetadataKey), metaBytes); err != nil {
		return err
	}

	if len(a.attrs) > 0 {
		attrBytes, err := json.Marshal(a.attrs)
		if err != nil {
			return fmt.Errorf("encoding attributes: %w", err)
		}
		if err := store.WriteBytes(ctx, store.Join(path, AttrsKey), attrBytes); err != nil {
			return err
		}
	}
	return nil
}

// saveChunks writes all chunks concurrently. Chunk writes share no state, so
// the only coordination is collecting the first failure.
func (a *Array) saveChunks(ctx context.Context, store Store, path string, workers int) error {
	if workers < 1 {
		workers = 1
	}

	var (
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}
	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	jobs := make(chan *Chunk)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ch := range jobs {
				if err := a.writeChunk(ctx, store, path, ch); err != nil {
					fail(err)
				}
			}
		}()
	}

	for _, ch := range a.chunks {
		if failed() {
			break
		}
		select {
		case jobs <- ch:
		case <-ctx.Done():
			fail(ctx.Err())
		}
	}
	close(jobs)
	wg.Wait()

	return firstErr
}

func (a *Array) writeChunk(ctx context.Context, store Store, path string, ch *Chunk) error {
	key := ChunkKey(ch.Coord, a.res.sep)

	data := ch.data
	if a.res.comp != nil {
		var err error
		data, err = a.res.comp.Compress(data)
		if err != nil {
			return fmt.Errorf("%w: chunk %s: %v", ErrChunkIO, key, err)
		}
	}
	if err := store.WriteBytes(ctx, store.Join(path, key), data); err != nil {
		return fmt.Errorf("%w: chunk %s: %v", ErrChunkIO, key, err)
	}
	return nil
}

// scatter partitions a flat row-major buffer into the chunk container.
func (a *Array) scatter(flat []byte) {
	w := a.res.dtype.Width
	sizes := a.res.shape.Sizes()
	chunkSizes := a.res.shape.ChunkSizes()
	globalStrides := strides(sizes)

	a.chunks = map[string]*Chunk{}
	iterateGrid(a.res.shape.GridShape(), func(coord []int) error {
		chunkShape := a.res.shape.ChunkShape(coord)
		n := w
		srcOffset := make([]int, len(coord))
		coordCopy := make([]int, len(coord))
		for i, c := range coord {
			srcOffset[i] = c * chunkSizes[i]
			coordCopy[i] = c
			n *= chunkShape[i]
		}

		ch := &Chunk{Coord: coordCopy, Shape: chunkShape, data: make([]byte, n)}
		copyND(
			ch.data, strides(chunkShape), make([]int, len(chunkShape)),
			flat, globalStrides, srcOffset,
			chunkShape, w,
		)
		a.chunks[ChunkKey(coord, chunkMapSeparator)] = ch
		return nil
	})
}
