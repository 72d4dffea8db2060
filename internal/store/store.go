// Package store holds the redis persistence for medicines and push
// subscriptions. Both are plain JSON blobs behind index sets; each
// operation is self-contained so callers never coordinate locks.
package store

import "errors"

var ErrNotFound = errors.New("record not found")
