package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/basit/shifter/initializers"
)

// ErrNotExist is returned by Open when the referenced blob is gone.
var ErrNotExist = errors.New("blob does not exist")

// Blob stores file content. Refs returned by Put are opaque to callers.
type Blob interface {
	Put(ctx context.Context, name string, r io.Reader) (ref string, n int64, err error)
	// Delete removes the blob. A missing blob is not an error.
	Delete(ctx context.Context, ref string) error
	// URL returns a direct download link, or "" when the content has to be
	// streamed through Open.
	URL(ctx context.Context, ref string) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

func New(ctx context.Context, cfg *initializers.StorageConfig) (Blob, error) {
	switch cfg.Driver {
	case "local":
		return NewLocal(cfg.LocalDir)
	case "s3":
		client, err := initializers.InitAWS(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewS3(client, cfg.S3Bucket, cfg.PresignTTL), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
