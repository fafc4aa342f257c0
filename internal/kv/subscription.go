package kv

import "sync"

// Subscription is a cancellable ordered stream of changes. C is closed when
// the subscription ends, either because Cancel was called, the feed context
// was cancelled, or a non-live feed finished its replay.
type Subscription struct {
	C <-chan Change

	cancel func()
	once   sync.Once
}

// NewSubscription wraps a change channel and a cancel function. cancel must
// be safe to call once and must not return until the producer has stopped
// writing to c.
func NewSubscription(c <-chan Change, cancel func()) *Subscription {
	return &Subscription{C: c, cancel: cancel}
}

// Cancel stops the subscription synchronously: when it returns, no further
// changes will be delivered on C. Cancel is idempotent.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}
