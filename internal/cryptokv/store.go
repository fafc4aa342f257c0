package cryptokv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mkarpenko/moneta/internal/common"
	"github.com/mkarpenko/moneta/internal/kv"
	"github.com/mkarpenko/moneta/internal/logging"
)

// Store is the encrypting storage adapter. It exposes the same kv.Store
// contract as the raw store it wraps, encrypting values on the way in and
// decrypting on the way out. The unwrapped master key is held only in
// memory for the session and wiped on Close.
type Store struct {
	raw       kv.Store
	masterKey []byte
	log       logging.Logger
}

var _ kv.Store = (*Store)(nil)

// Open unlocks the store with the given password. If no key document exists
// yet, a fresh master key is generated, wrapped, and persisted. A wrong
// password fails with common.ErrPassword; there is no plaintext fallback.
func Open(ctx context.Context, raw kv.Store, password []byte, log logging.Logger) (*Store, error) {
	data, err := raw.Get(ctx, KeyDocKey)

	switch {
	case errors.Is(err, common.ErrNotFound):
		masterKey, doc, err := CreateKeyDoc(password)
		if err != nil {
			return nil, fmt.Errorf("create key doc: %w", err)
		}
		encoded, err := json.Marshal(doc)
		if err != nil {
			common.WipeByteArray(masterKey)
			return nil, err
		}
		if err := raw.Put(ctx, KeyDocKey, encoded); err != nil {
			common.WipeByteArray(masterKey)
			return nil, fmt.Errorf("persist key doc: %w", err)
		}
		log.Info(ctx, "initialized new encrypted store", "keyDoc", doc.Id)
		return &Store{raw: raw, masterKey: masterKey, log: log}, nil

	case err != nil:
		return nil, fmt.Errorf("read key doc: %w", err)
	}

	var doc KeyDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse key doc: %w", err)
	}
	masterKey, err := DecryptMasterKeyDoc(&doc, password)
	if err != nil {
		return nil, err
	}
	return &Store{raw: raw, masterKey: masterKey, log: log}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.raw.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return decryptValue(s.masterKey, value)
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	encrypted, err := encryptValue(s.masterKey, value)
	if err != nil {
		return err
	}
	return s.raw.Put(ctx, key, encrypted)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.raw.Delete(ctx, key)
}

// Batch encrypts every put value, then delegates to the raw store; atomicity
// is inherited from the underlying batch.
func (s *Store) Batch(ctx context.Context, ops []kv.BatchOp) error {
	encrypted := make([]kv.BatchOp, len(ops))
	for i, op := range ops {
		encrypted[i] = op
		if op.Type == kv.OpPut {
			value, err := encryptValue(s.masterKey, op.Value)
			if err != nil {
				return err
			}
			encrypted[i].Value = value
		}
	}
	return s.raw.Batch(ctx, encrypted)
}

// Iterate yields decrypted entries. The key document is invisible through
// the adapter.
func (s *Store) Iterate(ctx context.Context, r kv.Range, fn func(kv.Pair) error) error {
	return s.raw.Iterate(ctx, r, func(p kv.Pair) error {
		if p.Key == KeyDocKey {
			return nil
		}
		plaintext, err := decryptValue(s.masterKey, p.Value)
		if err != nil {
			return fmt.Errorf("iterate %q: %w", p.Key, err)
		}
		return fn(kv.Pair{Key: p.Key, Value: plaintext})
	})
}

// Changes wraps the raw change feed, decrypting document values. A value
// that fails to decrypt degrades to a dropped entry plus a diagnostic; the
// rest of the feed keeps flowing.
func (s *Store) Changes(ctx context.Context, opts kv.ChangeOpts) (*kv.Subscription, error) {
	rawSub, err := s.raw.Changes(ctx, opts)
	if err != nil {
		return nil, err
	}

	out := make(chan kv.Change)
	done := make(chan struct{})
	quit := make(chan struct{})

	go func() {
		defer close(done)
		defer close(out)
		for c := range rawSub.C {
			if c.Key == KeyDocKey {
				continue
			}
			if !c.Deleted && len(c.Value) > 0 {
				plaintext, err := decryptValue(s.masterKey, c.Value)
				if err != nil {
					s.log.Warn(ctx, "dropping undecryptable change", "key", c.Key, "seq", c.Seq, "error", err)
					continue
				}
				c.Value = plaintext
			}
			select {
			case out <- c:
			case <-quit:
				return
			}
		}
	}()

	return kv.NewSubscription(out, func() {
		close(quit)
		rawSub.Cancel()
		<-done
	}), nil
}

// Close wipes the in-memory master key and closes the underlying store.
func (s *Store) Close() error {
	common.WipeByteArray(s.masterKey)
	s.masterKey = nil
	return s.raw.Close()
}
