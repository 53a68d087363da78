// Package blob abstracts the external object store that holds asset bytes.
package blob

import (
	"context"
	"io"
)

// Store is the object-store collaborator. Put transfers bytes and returns
// an opaque reference (URL) for the stored object. Delete removes an
// object and is idempotent: deleting an absent key is not an error.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}
