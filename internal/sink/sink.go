package sink

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// Errors returned by Open.
var (
	// ErrDeclined is returned when the destination exists and overwriting
	// was not allowed.
	ErrDeclined = errors.New("sink: destination exists and overwrite is disabled")
	// ErrPermissionDenied is returned when the storage backend refuses access.
	ErrPermissionDenied = errors.New("sink: permission denied")
	// ErrInvalidName is returned for an empty destination name.
	ErrInvalidName = errors.New("sink: invalid destination name")
)

// Opener acquires a writable destination by name. Each chunk is handed to
// the returned writer in a single Write call and Close is called exactly once.
type Opener interface {
	Open(ctx context.Context, name string) (io.WriteCloser, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, name string) (io.WriteCloser, error)

// Open calls f(ctx, name).
func (f OpenerFunc) Open(ctx context.Context, name string) (io.WriteCloser, error) {
	return f(ctx, name)
}

// Options configures a Bucket opener.
type Options struct {
	// Prefix is prepended to every destination name.
	Prefix string

	// ContentType is stored with the object. Empty lets the backend sniff it.
	ContentType string

	// Overwrite allows replacing an existing object.
	Overwrite bool
}

// Bucket opens destinations as objects in a gocloud bucket.
type Bucket struct {
	bucket *blob.Bucket
	opts   Options
}

// NewBucket creates an Opener writing into bucket.
func NewBucket(bucket *blob.Bucket, opts Options) *Bucket {
	return &Bucket{bucket: bucket, opts: opts}
}

// OpenBucket opens a bucket by gocloud URL (file://, mem://, s3://, gs://).
// The caller must import the matching driver package and close the bucket.
func OpenBucket(ctx context.Context, url string) (*blob.Bucket, error) {
	b, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("sink: open bucket: %w", err)
	}
	return b, nil
}

// Key returns the object key used for name.
func (b *Bucket) Key(name string) string {
	return b.opts.Prefix + name
}

// Open creates a writer for name. The object only becomes visible once the
// writer is closed.
func (b *Bucket) Open(ctx context.Context, name string) (io.WriteCloser, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	key := b.Key(name)

	if !b.opts.Overwrite {
		exists, err := b.bucket.Exists(ctx, key)
		if err != nil {
			return nil, classify(key, err)
		}
		if exists {
			return nil, fmt.Errorf("%w: %s", ErrDeclined, key)
		}
	}

	w, err := b.bucket.NewWriter(ctx, key, &blob.WriterOptions{
		ContentType: b.opts.ContentType,
	})
	if err != nil {
		return nil, classify(key, err)
	}
	return w, nil
}

// classify maps backend errors onto sink errors.
func classify(key string, err error) error {
	if gcerrors.Code(err) == gcerrors.PermissionDenied {
		return fmt.Errorf("%w: %s: %v", ErrPermissionDenied, key, err)
	}
	return fmt.Errorf("sink: open %s: %w", key, err)
}
