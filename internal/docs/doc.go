// Package docs defines the typed document kinds stored by the engine: their
// key schemes, constructors, parsers, and validation rules.
//
// Every document key is a type tag followed by one or more parent-scoped
// segments (e.g. "account/{bankId}/{accountId}"). Segment ordering gives a
// total order usable for prefix range scans; a kind's endkey is its startkey
// plus "￿".
package docs

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mkarpenko/moneta/internal/common"
	"github.com/mkarpenko/moneta/internal/delta"
	"github.com/mkarpenko/moneta/internal/kv"
)

// KeyRangeEnd is appended to a start key to bound a prefix scan.
const KeyRangeEnd = "￿"

// Kind is the document type tag, derived from the key's leading segment.
type Kind string

const (
	KindUnknown     Kind = ""
	KindBank        Kind = "bank"
	KindAccount     Kind = "account"
	KindTransaction Kind = "transaction"
	KindCategory    Kind = "category"
	KindBudget      Kind = "budget"
	KindBill        Kind = "bill"
	KindSync        Kind = "sync"
	KindLocal       Kind = "local"
)

// kindByPrefix resolves a kind once from the key prefix instead of probing
// each kind's predicate in sequence.
var kindByPrefix = map[string]Kind{
	"bank":        KindBank,
	"account":     KindAccount,
	"transaction": KindTransaction,
	"category":    KindCategory,
	"budget":      KindBudget,
	"bill":        KindBill,
}

// KindOf returns the kind encoded in a document key, or KindUnknown.
func KindOf(key string) Kind {
	if key == LocalDocsKey {
		return KindLocal
	}
	if strings.HasPrefix(key, syncPrefix) {
		return KindSync
	}
	seg, _, _ := strings.Cut(key, "/")
	return kindByPrefix[seg]
}

// Doc is implemented by every document kind.
type Doc interface {
	// Key returns the document's storage key.
	Key() string
	// DocKind returns the kind tag for the document.
	DocKind() Kind
	// Tombstone reports whether the document is a deletion marker.
	Tombstone() bool
	// DeltaLog returns the document's inline delta log.
	DeltaLog() []delta.Entry
	// SetDeltaLog replaces the document's inline delta log.
	SetDeltaLog(log []delta.Entry)
}

// Meta carries the storage metadata shared by all document kinds. It is
// stripped from the "naked" payload used for delta computation.
type Meta struct {
	ID       string        `json:"id"`
	Revision string        `json:"revision,omitempty"`
	Deleted  bool          `json:"_deleted,omitempty"`
	Deltas   []delta.Entry `json:"$deltas,omitempty"`
}

func (m *Meta) Key() string                   { return m.ID }
func (m *Meta) Tombstone() bool               { return m.Deleted }
func (m *Meta) DeltaLog() []delta.Entry       { return m.Deltas }
func (m *Meta) SetDeltaLog(log []delta.Entry) { m.Deltas = log }

// metaFields are stripped when computing a document's naked payload.
var metaFields = []string{"id", "revision", "_deleted", "$deltas"}

// Naked returns the document's payload as a generic map with storage
// metadata removed. This is the form deltas are computed over.
func Naked(d Doc) (map[string]any, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return NakedRaw(raw)
}

// NakedRaw is Naked over the raw JSON encoding of a document.
func NakedRaw(raw []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	for _, f := range metaFields {
		delete(m, f)
	}
	return m, nil
}

// Decode parses raw document bytes into the typed kind selected by the key.
// Foreign or unparseable keys return KindUnknown with a nil document rather
// than an error; the caller decides whether that is fatal.
func Decode(key string, data []byte) (Doc, Kind, error) {
	kind := KindOf(key)
	var d Doc
	switch kind {
	case KindBank:
		d = &Bank{}
	case KindAccount:
		d = &Account{}
	case KindTransaction:
		d = &Transaction{}
	case KindCategory:
		d = &Category{}
	case KindBudget:
		d = &Budget{}
	case KindBill:
		d = &Bill{}
	case KindSync:
		d = &SyncConnection{}
	case KindLocal:
		d = &LocalDoc{}
	default:
		return nil, KindUnknown, nil
	}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, kind, fmt.Errorf("decode %q: %w", key, err)
	}
	setID(d, key)
	return d, kind, nil
}

func setID(d Doc, key string) {
	switch v := d.(type) {
	case *Bank:
		v.ID = key
	case *Account:
		v.ID = key
	case *Transaction:
		v.ID = key
	case *Category:
		v.ID = key
	case *Budget:
		v.ID = key
	case *Bill:
		v.ID = key
	case *SyncConnection:
		v.ID = key
	case *LocalDoc:
		v.ID = key
	}
}

// Validate applies the kind-specific structural invariants. Documents that
// fail are rejected before they ever reach storage.
func Validate(d Doc) error {
	type validator interface{ Validate() error }
	if v, ok := d.(validator); ok {
		return v.Validate()
	}
	return nil
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrValidation, fmt.Sprintf(format, args...))
}

func prefixRange(prefix string) kv.Range {
	return kv.Range{Start: prefix, End: prefix + KeyRangeEnd}
}
