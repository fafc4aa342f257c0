package delta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarpenko/moneta/internal/common"
)

// buildDoc replays entries so the raw fields match the delta log, the shape
// a well-formed replica produces.
func buildDoc(t *testing.T, id string, entries []Entry) map[string]any {
	t.Helper()
	payload := map[string]any{}
	for _, e := range entries {
		ops, err := e.Ops()
		require.NoError(t, err)
		payload = Patch(payload, ops)
	}
	payload["id"] = id
	payload[DeltasField] = entries
	return payload
}

func entry(t *testing.T, ts int64, ops []Op) Entry {
	t.Helper()
	e, err := NewEntry(ts, ops)
	require.NoError(t, err)
	return e
}

func TestMergeIsSymmetric(t *testing.T) {
	base := entry(t, 1, []Op{{Op: OpAdd, Path: "/name", Value: "Rent"}})
	editA := entry(t, 3, []Op{{Op: OpReplace, Path: "/name", Value: "Rent 2024"}})
	editB := entry(t, 2, []Op{{Op: OpAdd, Path: "/amount", Value: 950.0}})

	a := buildDoc(t, "bill/x", []Entry{base, editA})
	b := buildDoc(t, "bill/x", []Entry{base, editB})

	ab, err := Merge(a, b)
	require.NoError(t, err)
	ba, err := Merge(b, a)
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
	assert.Equal(t, "Rent 2024", ab["name"])
	assert.Equal(t, 950.0, ab["amount"])
}

func TestMergeEqualsReplayOfSortedUnion(t *testing.T) {
	e1 := entry(t, 1, []Op{{Op: OpAdd, Path: "/name", Value: "v1"}})
	e2 := entry(t, 2, []Op{{Op: OpReplace, Path: "/name", Value: "v2"}})
	e3 := entry(t, 3, []Op{{Op: OpReplace, Path: "/name", Value: "v3"}})

	a := buildDoc(t, "budget/b", []Entry{e1, e3})
	b := buildDoc(t, "budget/b", []Entry{e1, e2})

	merged, err := Merge(a, b)
	require.NoError(t, err)

	// replay order is t=1,2,3, so the latest timestamp wins
	assert.Equal(t, "v3", merged["name"])

	log, ok := merged[DeltasField].([]Entry)
	require.True(t, ok)
	require.Len(t, log, 3)
	assert.Equal(t, int64(1), log[0].T)
	assert.Equal(t, int64(2), log[1].T)
	assert.Equal(t, int64(3), log[2].T)
}

func TestMergeDedupesIdenticalEntries(t *testing.T) {
	shared := entry(t, 5, []Op{{Op: OpAdd, Path: "/name", Value: "same"}})
	a := buildDoc(t, "bank/x", []Entry{shared})
	b := buildDoc(t, "bank/x", []Entry{shared})

	merged, err := Merge(a, b)
	require.NoError(t, err)

	log := merged[DeltasField].([]Entry)
	assert.Len(t, log, 1)
}

func TestMergeTimestampTieBreakIsStable(t *testing.T) {
	eA := entry(t, 7, []Op{{Op: OpAdd, Path: "/color", Value: "red"}})
	eB := entry(t, 7, []Op{{Op: OpAdd, Path: "/color", Value: "blue"}})

	a := buildDoc(t, "account/b/a", []Entry{eA})
	b := buildDoc(t, "account/b/a", []Entry{eB})

	ab, err := Merge(a, b)
	require.NoError(t, err)
	ba, err := Merge(b, a)
	require.NoError(t, err)

	assert.Equal(t, ab["color"], ba["color"])
}

func TestMergeConcurrentArrayAppendsResolveToLaterDelta(t *testing.T) {
	base := entry(t, 1, []Op{{Op: OpAdd, Path: "/accounts", Value: []any{"a1"}}})
	appendA := entry(t, 2, []Op{{Op: OpReplace, Path: "/accounts", Value: []any{"a1", "a2"}}})
	appendB := entry(t, 3, []Op{{Op: OpReplace, Path: "/accounts", Value: []any{"a1", "a3"}}})

	a := buildDoc(t, "bank/x", []Entry{base, appendA})
	b := buildDoc(t, "bank/x", []Entry{base, appendB})

	merged, err := Merge(a, b)
	require.NoError(t, err)

	assert.Equal(t, []any{"a1", "a3"}, merged["accounts"])
}

func TestMergeMalformedLogFallsBackToRawUnion(t *testing.T) {
	good := buildDoc(t, "bank/x", []Entry{entry(t, 1, []Op{{Op: OpAdd, Path: "/name", Value: "ok"}})})
	bad := map[string]any{
		"id":        "bank/x",
		"name":      "raw",
		DeltasField: []any{map[string]any{"t": 1.0, "d": "not base64 zlib!!"}},
	}

	_, err := Merge(good, bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConflict)

	union := RawUnion(good, bad)
	assert.Equal(t, "bank/x", union["id"])
	assert.Equal(t, RawUnion(bad, good), union)
}

func TestAppendSkipsNoopChanges(t *testing.T) {
	m := map[string]any{"name": "same"}
	log, appended, err := Append(nil, m, m, 1)
	require.NoError(t, err)
	assert.False(t, appended)
	assert.Empty(t, log)

	log, appended, err = Append(log, m, map[string]any{"name": "new"}, 2)
	require.NoError(t, err)
	assert.True(t, appended)
	require.Len(t, log, 1)
	assert.Equal(t, int64(2), log[0].T)
}
