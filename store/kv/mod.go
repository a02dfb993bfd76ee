// Package kv defines the abstraction for a key/value database used to keep
// the local state of the clients.
//
// New opens a bbolt file (https://github.com/etcd-io/bbolt), which is the
// only engine so far.
//
// Documentation Last Review: 19.10.2026
//
package kv

// Bucket is a namespace of keys, valid for the duration of a transaction.
type Bucket interface {
	// Get returns nil when the key is missing. The value is only valid during
	// the transaction.
	Get(key []byte) []byte

	Set(key, value []byte) error

	Delete(key []byte) error

	// ForEach iterates over all the items in the bucket in the order of the
	// keys. The iteration stops when the callback returns an error.
	ForEach(fn func(k, v []byte) error) error

	// Scan iterates over every key that matches the prefix in the order of
	// the keys. The iteration stops when the callback returns an error.
	Scan(prefix []byte, fn func(k, v []byte) error) error

	// ReverseScan is the same as Scan but iterates from the last key.
	ReverseScan(prefix []byte, fn func(k, v []byte) error) error
}

// DB is a key/value database split into buckets.
type DB interface {
	// View executes the provided read-only function with the bucket. It
	// returns an error if the bucket does not exist.
	View(bucket []byte, fn func(Bucket) error) error

	// Update executes the provided function with the bucket in a writable
	// transaction. The bucket is created if it does not exist.
	Update(bucket []byte, fn func(Bucket) error) error

	Close() error
}

// BucketNotFoundError is returned by View when the bucket does not exist yet.
type BucketNotFoundError struct {
	Name []byte
}

// Error implements error.
func (e BucketNotFoundError) Error() string {
	return "bucket '" + string(e.Name) + "' not found"
}
