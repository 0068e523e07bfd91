// Package storage provides the remote object store port used by the
// manifest catalog, with S3 and GCS implementations.
package storage

import (
	"context"
	"errors"
)

// ErrTransfer indicates a network or storage failure during listing or
// download. Listing failures abort the whole call; download failures are
// wrapped by the caller as a retrieval failure.
var ErrTransfer = errors.New("remote transfer failed")

// RemoteFS is the remote store as the catalog sees it: a flat,
// lexically-ordered key space with prefix/marker listing and whole-object
// download.
type RemoteFS interface {
	// Walk streams every key under prefix that sorts lexically at or after
	// marker, in ascending key order, invoking fn once per key. An empty
	// marker lists the whole prefix. The sequence is finite but may be
	// large; implementations deliver keys page by page and never
	// materialize the full listing. A non-nil error from fn stops the walk
	// and is returned unchanged. The walk is not restartable; a fresh call
	// re-lists.
	Walk(ctx context.Context, prefix, marker string, fn func(key string) error) error

	// Download fetches the object at key into localPath. The write goes to
	// localPath+".tmp" and is renamed into place on success, so a failed
	// transfer never leaves a complete-looking file at localPath.
	// concurrency is a pass-through hint to the transport; implementations
	// that download a single stream may ignore it.
	Download(ctx context.Context, key, localPath string, concurrency int) error

	// RootPrefix returns the configured backup root under which all
	// artifact kinds are stored.
	RootPrefix() string
}
