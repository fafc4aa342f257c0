// Package kv defines the raw ordered key-value store contract the moneta
// engine is built on: point reads and writes, atomic batches, ascending
// range iteration, and an ordered change feed reflecting durable commit
// order. The SQLite implementation lives in sqlite.go; the encrypting
// adapter in package cryptokv wraps any Store with transparent value
// encryption.
package kv

import "context"

// OpType distinguishes batch operations.
type OpType string

const (
	OpPut    OpType = "put"
	OpDelete OpType = "del"
)

// BatchOp is a single mutation inside an atomic batch.
type BatchOp struct {
	Type  OpType
	Key   string
	Value []byte // nil for deletes
}

// Range selects keys in [Start, End). An empty End means "no upper bound".
type Range struct {
	Start string
	End   string
}

// Pair is one key-value entry yielded by Iterate.
type Pair struct {
	Key   string
	Value []byte
}

// Change is one committed mutation emitted by the change feed. Seq is a
// store-assigned sequence number that strictly increases in durable commit
// order. Value is nil for deletions and when the subscription was opened
// without IncludeDocs.
type Change struct {
	Seq     int64
	Key     string
	Value   []byte
	Deleted bool
}

// ChangeOpts configures a change subscription.
type ChangeOpts struct {
	// Since replays all changes with Seq > Since before tailing.
	Since int64
	// Live keeps the subscription open, delivering future commits as they
	// happen. When false the feed ends after the replay.
	Live bool
	// IncludeDocs delivers the committed value alongside each change.
	IncludeDocs bool
}

// Store is an ordered byte-oriented key-value store.
//
// Implementations must apply Batch atomically: either every operation is
// durably committed or none is. Iterate yields entries in ascending key
// order. Changes emits committed mutations in the order they were durably
// written.
type Store interface {
	// Get returns the value stored under key, or common.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, overwriting any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Batch applies all ops as a single atomic unit.
	Batch(ctx context.Context, ops []BatchOp) error

	// Iterate calls fn for each entry in r, in ascending key order.
	// Returning an error from fn stops the iteration and propagates it.
	Iterate(ctx context.Context, r Range, fn func(Pair) error) error

	// Changes opens a change subscription. The caller owns the returned
	// subscription and must Cancel it.
	Changes(ctx context.Context, opts ChangeOpts) (*Subscription, error)

	// Close releases the store. Open subscriptions are cancelled first.
	Close() error
}
