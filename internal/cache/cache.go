// Package cache maintains the in-memory materialized view of a store: one
// map per document kind, populated by a full scan at load time and folded
// forward by ordered change batches. Snapshots are immutable; ApplyChanges
// returns a new cache sharing the per-kind maps that were not touched.
package cache

import (
	"context"
	"maps"

	"github.com/mkarpenko/moneta/internal/docs"
	"github.com/mkarpenko/moneta/internal/kv"
	"github.com/mkarpenko/moneta/internal/logging"
)

// DocCache is one immutable snapshot of every document in the store, keyed
// by document id within its kind map.
type DocCache struct {
	Banks        map[string]*docs.Bank
	Accounts     map[string]*docs.Account
	Transactions map[string]*docs.Transaction
	Categories   map[string]*docs.Category
	Budgets      map[string]*docs.Budget
	Bills        map[string]*docs.Bill
	Syncs        map[string]*docs.SyncConnection
	Local        *docs.LocalDoc
}

// New returns an empty cache.
func New() *DocCache {
	return &DocCache{
		Banks:        map[string]*docs.Bank{},
		Accounts:     map[string]*docs.Account{},
		Transactions: map[string]*docs.Transaction{},
		Categories:   map[string]*docs.Category{},
		Budgets:      map[string]*docs.Budget{},
		Bills:        map[string]*docs.Bill{},
		Syncs:        map[string]*docs.SyncConnection{},
		Local:        docs.NewLocalDoc(),
	}
}

// Change is one ordered cache mutation: an upsert of Doc, or a deletion of
// Key when Deleted is set.
type Change struct {
	Key     string
	Doc     docs.Doc
	Deleted bool
}

// Load builds a cache from a single pass over the whole store. Documents
// whose kind cannot be determined are dropped with a diagnostic; the load
// is cancellable through ctx.
func Load(ctx context.Context, store kv.Store, log logging.Logger) (*DocCache, error) {
	c := New()
	err := store.Iterate(ctx, kv.Range{}, func(p kv.Pair) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, kind, err := docs.Decode(p.Key, p.Value)
		if err != nil {
			log.Warn(ctx, "dropping unparseable document", "key", p.Key, "error", err)
			return nil
		}
		if kind == docs.KindUnknown {
			log.Warn(ctx, "dropping document of unknown kind", "key", p.Key)
			return nil
		}
		c.upsert(doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyChanges folds an ordered change batch into a new cache snapshot.
// Per-kind maps untouched by the batch are shared with the input cache.
// Changes are applied in the order given; later changes to the same id win.
// A change whose kind cannot be determined is a consistency warning, not a
// fatal error.
func ApplyChanges(c *DocCache, changes []Change, log logging.Logger) *DocCache {
	next := *c
	cloned := make(map[docs.Kind]bool, len(changes))

	for _, ch := range changes {
		kind := docs.KindOf(ch.Key)
		if kind == docs.KindUnknown {
			log.Warn(context.Background(), "change for unknown document kind", "key", ch.Key)
			continue
		}
		next.clone(kind, cloned)
		if ch.Deleted || ch.Doc == nil || ch.Doc.Tombstone() {
			next.remove(kind, ch.Key)
			continue
		}
		next.upsert(ch.Doc)
	}
	return &next
}

func (c *DocCache) clone(kind docs.Kind, cloned map[docs.Kind]bool) {
	if cloned[kind] {
		return
	}
	cloned[kind] = true
	switch kind {
	case docs.KindBank:
		c.Banks = maps.Clone(c.Banks)
	case docs.KindAccount:
		c.Accounts = maps.Clone(c.Accounts)
	case docs.KindTransaction:
		c.Transactions = maps.Clone(c.Transactions)
	case docs.KindCategory:
		c.Categories = maps.Clone(c.Categories)
	case docs.KindBudget:
		c.Budgets = maps.Clone(c.Budgets)
	case docs.KindBill:
		c.Bills = maps.Clone(c.Bills)
	case docs.KindSync:
		c.Syncs = maps.Clone(c.Syncs)
	}
}

func (c *DocCache) upsert(d docs.Doc) {
	switch v := d.(type) {
	case *docs.Bank:
		c.Banks[v.ID] = v
	case *docs.Account:
		c.Accounts[v.ID] = v
	case *docs.Transaction:
		c.Transactions[v.ID] = v
	case *docs.Category:
		c.Categories[v.ID] = v
	case *docs.Budget:
		c.Budgets[v.ID] = v
	case *docs.Bill:
		c.Bills[v.ID] = v
	case *docs.SyncConnection:
		c.Syncs[v.ID] = v
	case *docs.LocalDoc:
		c.Local = v
	}
}

func (c *DocCache) remove(kind docs.Kind, key string) {
	switch kind {
	case docs.KindBank:
		delete(c.Banks, key)
	case docs.KindAccount:
		delete(c.Accounts, key)
	case docs.KindTransaction:
		delete(c.Transactions, key)
	case docs.KindCategory:
		delete(c.Categories, key)
	case docs.KindBudget:
		delete(c.Budgets, key)
	case docs.KindBill:
		delete(c.Bills, key)
	case docs.KindSync:
		delete(c.Syncs, key)
	case docs.KindLocal:
		c.Local = docs.NewLocalDoc()
	}
}
