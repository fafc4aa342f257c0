// Package store ties the engine together: it owns one open encrypted store
// (raw SQLite store wrapped by the encrypting adapter), the in-memory cache
// snapshot, the push pipeline, and the debounced change-feed reducer that
// folds committed mutations into new snapshots.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/mkarpenko/moneta/internal/cache"
	"github.com/mkarpenko/moneta/internal/common"
	"github.com/mkarpenko/moneta/internal/config"
	"github.com/mkarpenko/moneta/internal/cryptokv"
	"github.com/mkarpenko/moneta/internal/delta"
	"github.com/mkarpenko/moneta/internal/docs"
	"github.com/mkarpenko/moneta/internal/kv"
	"github.com/mkarpenko/moneta/internal/logging"
)

// State is the lifecycle state of a Handle.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpen
)

// Handle is one open encrypted store. It is an explicit object owned by the
// application context; there is no package-level current store.
//
// Snapshots are immutable and may be read concurrently; all snapshot
// replacement goes through the single reducer goroutine.
type Handle struct {
	name  string
	cfg   *config.Config
	log   logging.Logger
	crypt *cryptokv.Store
	sub   *kv.Subscription

	feedCancel  context.CancelFunc
	reducerDone chan struct{}

	mu          sync.Mutex
	state       State
	snapshot    *cache.DocCache
	subscribers map[int64]chan *cache.DocCache
	nextSubID   int64
}

// Open unlocks and loads the named store: open the raw store file, unwrap
// the master key with the password, load the full cache, and start the live
// change feed. The initial load is cancellable through ctx to support rapid
// open/close cycling.
func Open(ctx context.Context, cfg *config.Config, name string, password []byte, log logging.Logger) (*Handle, error) {
	if err := EnsureDataDir(cfg.DataDir); err != nil {
		return nil, err
	}
	log = log.With("store", name)

	raw, err := kv.OpenSQLite(ctx, StorePath(cfg.DataDir, name), log)
	if err != nil {
		return nil, err
	}

	crypt, err := cryptokv.Open(ctx, raw, password, log)
	if err != nil {
		return nil, multierr.Append(err, raw.Close())
	}

	// Changes committed after this point are delivered by the feed; the
	// full scan below may also see them, which is harmless because upserts
	// are idempotent.
	lastSeq, err := raw.LastSeq(ctx)
	if err != nil {
		return nil, multierr.Append(err, crypt.Close())
	}

	snapshot, err := cache.Load(ctx, crypt, log)
	if err != nil {
		return nil, multierr.Append(err, crypt.Close())
	}

	// The live feed must outlive ctx: callers routinely cancel the open
	// context once Open returns, while the subscription runs until Close.
	feedCtx, feedCancel := context.WithCancel(context.Background())
	sub, err := crypt.Changes(feedCtx, kv.ChangeOpts{Since: lastSeq, Live: true, IncludeDocs: true})
	if err != nil {
		feedCancel()
		return nil, multierr.Append(err, crypt.Close())
	}

	h := &Handle{
		name:        name,
		cfg:         cfg,
		log:         log,
		crypt:       crypt,
		sub:         sub,
		feedCancel:  feedCancel,
		reducerDone: make(chan struct{}),
		state:       StateOpen,
		snapshot:    snapshot,
		subscribers: map[int64]chan *cache.DocCache{},
	}
	go h.runReducer()

	log.Info(ctx, "store opened",
		"banks", len(snapshot.Banks), "accounts", len(snapshot.Accounts),
		"transactions", len(snapshot.Transactions))
	return h, nil
}

// Name returns the store's database name.
func (h *Handle) Name() string { return h.name }

// State returns the handle's lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Snapshot returns the current cache snapshot.
func (h *Handle) Snapshot() *cache.DocCache {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot
}

// Subscribe registers for cache snapshots. The current snapshot is delivered
// immediately; afterwards only the latest snapshot is retained if the
// consumer lags. The returned function unsubscribes.
func (h *Handle) Subscribe() (<-chan *cache.DocCache, func()) {
	ch := make(chan *cache.DocCache, 1)

	h.mu.Lock()
	id := h.nextSubID
	h.nextSubID++
	h.subscribers[id] = ch
	ch <- h.snapshot
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subscribers, id)
		h.mu.Unlock()
	}
}

// PushChanges validates and writes a heterogeneous batch of documents and
// tombstones as one atomic unit. Each full-document update appends a delta
// recording the structural diff against the currently stored version.
//
// PushChanges returns once the write is durable; the authoritative cache
// update arrives asynchronously through the change feed.
func (h *Handle) PushChanges(ctx context.Context, batch []docs.Doc) error {
	if h.State() != StateOpen {
		return common.ErrStoreClosed
	}

	now := time.Now().UnixMilli()
	ops := make([]kv.BatchOp, 0, len(batch))
	for _, d := range batch {
		key := d.Key()
		if d.Tombstone() {
			ops = append(ops, kv.BatchOp{Type: kv.OpDelete, Key: key})
			continue
		}
		if err := docs.Validate(d); err != nil {
			return err
		}
		if err := h.appendDelta(ctx, d, now); err != nil {
			return err
		}
		value, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode %q: %w", key, err)
		}
		ops = append(ops, kv.BatchOp{Type: kv.OpPut, Key: key, Value: value})
	}

	return h.crypt.Batch(ctx, ops)
}

// appendDelta diffs the stored version of d against the new payload and
// appends the result to the document's inline delta log.
func (h *Handle) appendDelta(ctx context.Context, d docs.Doc, now int64) error {
	oldNaked := map[string]any{}
	log := d.DeltaLog()

	stored, err := h.crypt.Get(ctx, d.Key())
	switch {
	case errors.Is(err, common.ErrNotFound):
		// first version: delta from the empty base
	case err != nil:
		return err
	default:
		oldNaked, err = docs.NakedRaw(stored)
		if err != nil {
			return fmt.Errorf("naked %q: %w", d.Key(), err)
		}
		var old struct {
			Deltas []delta.Entry `json:"$deltas"`
		}
		if err := json.Unmarshal(stored, &old); err == nil && len(old.Deltas) > len(log) {
			log = old.Deltas
		}
	}

	newNaked, err := docs.Naked(d)
	if err != nil {
		return fmt.Errorf("naked %q: %w", d.Key(), err)
	}

	log, _, err = delta.Append(log, oldNaked, newNaked, now)
	if err != nil {
		return err
	}
	d.SetDeltaLog(log)
	return nil
}

// Close cancels the live subscription and any pending debounce, waits for
// the reducer to stop, and releases storage handles. It is safe to call
// more than once.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.state == StateClosed {
		h.mu.Unlock()
		return nil
	}
	h.state = StateClosed
	h.mu.Unlock()

	h.sub.Cancel()
	h.feedCancel()
	<-h.reducerDone

	return h.crypt.Close()
}
