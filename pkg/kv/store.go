// Package kv provides the small key-value storage abstraction behind the
// durable operation queue, with a JSON-file backend and a SQLite backend.
package kv

import "errors"

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("kv: key not found")

// Store is a minimal durable key-value store. Values are opaque bytes;
// the queue stores one serialized snapshot per key.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}
