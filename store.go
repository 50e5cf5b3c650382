package zarr

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// Store is the byte-storage capability the core consumes. Paths are
// slash-separated key prefixes; concrete backends (local filesystem, S3,
// GCS) sit behind a *blob.Bucket and stay out of core scope.
type Store interface {
	// Join appends a name to a path. An empty path yields the name itself.
	Join(path, name string) string
	// ReadBytes reads the object at path, wrapping ErrNotFound when absent.
	ReadBytes(ctx context.Context, path string) ([]byte, error)
	// WriteBytes writes the object at path, creating any parent prefixes.
	WriteBytes(ctx context.Context, path string, data []byte) error
	// Exists reports whether an object is present at path.
	Exists(ctx context.Context, path string) (bool, error)
	// List returns the immediate child prefix names under path.
	List(ctx context.Context, path string) ([]string, error)
}

// BucketStore adapts a gocloud blob bucket to the Store interface.
type BucketStore struct {
	bucket *blob.Bucket
}

var _ Store = (*BucketStore)(nil)

// NewBucketStore wraps an already-open bucket. The caller keeps ownership of
// the bucket's lifetime.
func NewBucketStore(bucket *blob.Bucket) *BucketStore {
	return &BucketStore{bucket: bucket}
}

// OpenStore opens a bucket by URL, e.g. "file:///data/arrays" or
// "s3://bucket". The matching driver must be linked in by the caller.
func OpenStore(ctx context.Context, urlstr string) (*BucketStore, error) {
	bucket, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}
	return &BucketStore{bucket: bucket}, nil
}

// Close releases the underlying bucket.
func (s *BucketStore) Close() error {
	return s.bucket.Close()
}

func (s *BucketStore) Join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "/" + name
}

func (s *BucketStore) ReadBytes(ctx context.Context, path string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, path)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func (s *BucketStore) WriteBytes(ctx context.Context, path string, data []byte) error {
	if err := s.bucket.WriteAll(ctx, path, data, nil); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (s *BucketStore) Exists(ctx context.Context, path string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, path)
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", path, err)
	}
	return ok, nil
}

func (s *BucketStore) List(ctx context.Context, path string) ([]string, error) {
	prefix := ""
	if path != "" {
		prefix = path + "/"
	}
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix, Delimiter: "/"})
	var names []string
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", path, err)
		}
		if !obj.IsDir {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(obj.Key, prefix), "/")
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}
