// Package storage defines the Provider interface for object storage backends.
package storage

import (
	"context"
	"io"
)

// Provider abstracts the durable object store that re-hosts relayed media.
type Provider interface {
	// Put writes data to storage under the given key with the given MIME type.
	Put(ctx context.Context, key, mimeType string, reader io.Reader) error
	// PublicURL returns the stable public URL for a stored key.
	PublicURL(key string) string
}
