package store

import (
	"context"
	"time"

	"github.com/mkarpenko/moneta/internal/cache"
	"github.com/mkarpenko/moneta/internal/docs"
	"github.com/mkarpenko/moneta/internal/kv"
)

// The reducer is an explicit little state machine,
// Idle -> Pending(timer) -> Flushing -> Idle, rather than a generic
// debounce helper, so that cancellation on close is unambiguous: when the
// subscription channel closes the pending timer is stopped and buffered
// changes are discarded along with the cache they would have updated.
type reducerState int

const (
	reducerIdle reducerState = iota
	reducerPending
	reducerFlushing
)

// runReducer consumes the live change feed, coalescing bursts of change
// notifications (e.g. a multi-document push) within the debounce window
// into a single cache-rebuild pass.
func (h *Handle) runReducer() {
	defer close(h.reducerDone)

	var (
		state = reducerIdle
		buf   []cache.Change
		timer *time.Timer
		fire  <-chan time.Time
	)

	for {
		select {
		case c, ok := <-h.sub.C:
			if !ok {
				if timer != nil {
					timer.Stop()
				}
				return
			}
			change, keep := h.toCacheChange(c)
			if !keep {
				continue
			}
			buf = append(buf, change)
			if state == reducerIdle {
				timer = time.NewTimer(h.cfg.DebounceWindow)
				fire = timer.C
				state = reducerPending
			}

		case <-fire:
			state = reducerFlushing
			h.publish(buf)
			buf = nil
			timer = nil
			fire = nil
			state = reducerIdle
		}
	}
}

// toCacheChange converts a feed notification into a cache change. Malformed
// documents degrade to a dropped entry plus a diagnostic; the rest of the
// batch still applies.
func (h *Handle) toCacheChange(c kv.Change) (cache.Change, bool) {
	if c.Deleted {
		return cache.Change{Key: c.Key, Deleted: true}, true
	}
	doc, kind, err := docs.Decode(c.Key, c.Value)
	if err != nil {
		h.log.Warn(context.Background(), "dropping malformed change", "key", c.Key, "seq", c.Seq, "error", err)
		return cache.Change{}, false
	}
	if kind == docs.KindUnknown {
		h.log.Warn(context.Background(), "dropping change of unknown kind", "key", c.Key, "seq", c.Seq)
		return cache.Change{}, false
	}
	return cache.Change{Key: c.Key, Doc: doc}, true
}

// publish atomically drains the buffer into a new snapshot and notifies
// subscribers. Slow subscribers only ever miss intermediate snapshots, never
// the latest one.
func (h *Handle) publish(changes []cache.Change) {
	h.mu.Lock()
	next := cache.ApplyChanges(h.snapshot, changes, h.log)
	h.snapshot = next
	subs := make([]chan *cache.DocCache, 0, len(h.subscribers))
	for _, ch := range h.subscribers {
		subs = append(subs, ch)
	}
	h.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- next:
		default:
			// drop the stale snapshot, then deliver the latest
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- next:
			default:
			}
		}
	}
}
