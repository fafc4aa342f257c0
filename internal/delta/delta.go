// Package delta maintains per-document logs of structural diffs and merges
// divergent replica states by replaying the union of their logs in logical
// timestamp order.
//
// The diff representation is explicit and versioned (add/remove/replace on
// JSON-pointer-like paths) so merge semantics are fully specified here
// rather than delegated to a generic diff library.
package delta

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
)

// Op is a single structural mutation.
type Op struct {
	// Op is one of "add", "remove", "replace".
	Op string `json:"op"`
	// Path addresses the field, e.g. "/name" or "/split/cat1".
	Path string `json:"path"`
	// Value is the new value for add/replace.
	Value any `json:"value,omitempty"`
}

const (
	OpAdd     = "add"
	OpRemove  = "remove"
	OpReplace = "replace"
)

// Entry is one delta log record: the zlib-compressed JSON encoding of a set
// of ops, stamped with a logical timestamp (epoch milliseconds).
type Entry struct {
	T int64  `json:"t"`
	D []byte `json:"d"`
}

// NewEntry compresses ops into a log entry at logical time t.
func NewEntry(t int64, ops []Op) (Entry, error) {
	raw, err := json.Marshal(ops)
	if err != nil {
		return Entry{}, err
	}
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return Entry{}, err
	}
	if err := w.Close(); err != nil {
		return Entry{}, err
	}
	return Entry{T: t, D: buf.Bytes()}, nil
}

// Ops decompresses and decodes the entry's ops.
func (e Entry) Ops() ([]Op, error) {
	r, err := zlib.NewReader(bytes.NewReader(e.D))
	if err != nil {
		return nil, fmt.Errorf("delta entry t=%d: %w", e.T, err)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("delta entry t=%d: %w", e.T, err)
	}
	var ops []Op
	if err := json.Unmarshal(raw, &ops); err != nil {
		return nil, fmt.Errorf("delta entry t=%d: %w", e.T, err)
	}
	return ops, nil
}

// Append computes the diff between the old and new naked payloads and, if
// anything changed, appends a new entry at logical time t. The second return
// reports whether an entry was appended.
func Append(log []Entry, old, new map[string]any, t int64) ([]Entry, bool, error) {
	ops := Diff(old, new)
	if len(ops) == 0 {
		return log, false, nil
	}
	entry, err := NewEntry(t, ops)
	if err != nil {
		return log, false, err
	}
	return append(log, entry), true, nil
}
