// Package storage persists exported archives and extracted files outside the
// engine: on the local filesystem or in an S3-compatible bucket.
package storage

import "context"

// Store saves and loads named blobs. Save returns a human-readable location
// of what was written.
type Store interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
	Load(ctx context.Context, name string) ([]byte, error)
}
