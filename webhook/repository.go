package webhook

import "context"

/* Small, focused interfaces following "The Go Way"
 * The persistence collaborator is a string-keyed blob store: the Service owns the
 * encoding and writes the whole collection under a single key
 */

// Reader provides read access to stored blobs
type Reader interface {
	/* Get returns the blob stored under key
	 * found is false when nothing is stored; that is not an error
	 */
	Get(ctx context.Context, key string) (value string, found bool, err error)
}

// Writer provides write access to stored blobs
type Writer interface {
	Set(ctx context.Context, key string, value string) error
	Remove(ctx context.Context, key string) error
}

/* Interface composition - combining small interfaces into larger ones
 * This is preferred over large monolithic interfaces
 */
//go:generate go tool mockery --name Repository --output ./mocks
type Repository interface {
	Reader
	Writer
	Close(ctx context.Context) error
}
