package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrMissingSigner reports that presigned URLs were requested from a driver
// that has no signing credentials configured.
var ErrMissingSigner = errors.New("storage: signed url signer not configured")

// Storage is the object store surface the sweeper archives through. The
// drivers behind it are S3, GCS and MinIO.
type Storage interface {
	io.Closer

	PutObject(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (ObjectInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts GetOptions) (io.ReadCloser, ObjectInfo, error)
	StatObject(ctx context.Context, bucket, key string) (ObjectInfo, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	ListObjects(ctx context.Context, bucket, prefix string, opts ListOptions) ([]ObjectInfo, error)
	PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
	PresignPut(ctx context.Context, bucket, key string, opts PutOptions, expiry time.Duration) (string, error)
}

// PutOptions carries upload parameters.
type PutOptions struct {
	// Size is the content length when known ahead of time, -1 otherwise.
	Size int64
	// ContentType is the object's MIME type.
	ContentType string
	// Metadata attaches user-defined key/value pairs.
	Metadata map[string]string
}

// GetOptions carries download parameters.
type GetOptions struct {
	// Range restricts the read to an inclusive byte range.
	Range *ByteRange
}

// ListOptions carries listing parameters.
type ListOptions struct {
	Limit int32
	// Token resumes a previous listing.
	Token string
}

// ByteRange is an inclusive byte interval.
type ByteRange struct {
	Start int64
	End   int64
}

// ObjectInfo is the driver-neutral description of a stored object.
type ObjectInfo struct {
	Bucket      string
	Key         string
	Size        int64
	ETag        string
	ContentType string
	Metadata    map[string]string
	UpdatedAt   time.Time
}
