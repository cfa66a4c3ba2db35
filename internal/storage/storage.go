// Package storage provides access to the object store the generation
// service writes artifacts to. It defines the ObjectStore interface (port)
// and an S3 implementation.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned by Stat when the object does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

// Object describes a single stored artifact.
type Object struct {
	// Location is the exact object location.
	Location Location
	// Size is the object size in bytes.
	Size int64
	// LastModified is the object's last modification time.
	LastModified time.Time
}

// ObjectStore defines the operations the completion flow needs against the
// remote store. The store is written by the generation backend and only
// read (and finally cleaned up) by this process.
type ObjectStore interface {
	// List returns the objects under loc whose keys end in ext, in the
	// store's listing order. An object location yields at most one entry.
	List(ctx context.Context, loc Location, ext string) ([]Object, error)

	// Stat checks that an object exists and returns its metadata.
	// Returns ErrObjectNotFound if it does not.
	Stat(ctx context.Context, loc Location) (Object, error)

	// Download copies an object to a local file path.
	Download(ctx context.Context, loc Location, localPath string) error

	// DeleteAll removes every object under loc. Failures are aggregated;
	// a partial delete returns an error naming each failed object.
	DeleteAll(ctx context.Context, loc Location) error
}
