package kv

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarpenko/moneta/internal/common"
	"github.com/mkarpenko/moneta/internal/logging"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s, err := OpenSQLite(context.Background(), ":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetMissingKey(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPutGetDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k1", []byte("v1")))

	got, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, s.Put(ctx, "k1", []byte("v2")))
	got, err = s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, s.Delete(ctx, "k1"))
	_, err = s.Get(ctx, "k1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteAbsentKeyIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Delete(ctx, "ghost"))
	require.NoError(t, s.Delete(ctx, "ghost"))

	// no changelog rows for no-op deletes
	seq, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)
}

func TestBatchIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Batch(ctx, []BatchOp{
		{Type: OpPut, Key: "a", Value: []byte("1")},
		{Type: "bogus", Key: "b"},
	})
	require.Error(t, err)

	// the failing op rolled back the whole batch
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, common.ErrNotFound)

	seq, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)
}

func TestIterateRangeOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Batch(ctx, []BatchOp{
		{Type: OpPut, Key: "account/b1/a2", Value: []byte("2")},
		{Type: OpPut, Key: "account/b1/a1", Value: []byte("1")},
		{Type: OpPut, Key: "account/b2/a1", Value: []byte("3")},
		{Type: OpPut, Key: "bank/b1", Value: []byte("4")},
	}))

	var keys []string
	err := s.Iterate(ctx, Range{Start: "account/b1/", End: "account/b1/￿"}, func(p Pair) error {
		keys = append(keys, p.Key)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"account/b1/a1", "account/b1/a2"}, keys)
}

func TestIterateStopsOnCallbackError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "x1", []byte("1")))
	require.NoError(t, s.Put(ctx, "x2", []byte("2")))

	calls := 0
	err := s.Iterate(ctx, Range{Start: "x"}, func(p Pair) error {
		calls++
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}

func TestChangesReplay(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k1", []byte("v1")))
	require.NoError(t, s.Put(ctx, "k2", []byte("v2")))
	require.NoError(t, s.Delete(ctx, "k1"))

	sub, err := s.Changes(ctx, ChangeOpts{IncludeDocs: true})
	require.NoError(t, err)
	defer sub.Cancel()

	var got []Change
	for c := range sub.C {
		got = append(got, c)
	}

	require.Len(t, got, 3)
	assert.Equal(t, "k1", got[0].Key)
	assert.Equal(t, []byte("v1"), got[0].Value)
	assert.Equal(t, "k2", got[1].Key)
	assert.True(t, got[2].Deleted)
	assert.Equal(t, "k1", got[2].Key)
	assert.Less(t, got[0].Seq, got[1].Seq)
	assert.Less(t, got[1].Seq, got[2].Seq)
}

func TestChangesSinceSkipsOldEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k1", []byte("v1")))
	seq, err := s.LastSeq(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "k2", []byte("v2")))

	sub, err := s.Changes(ctx, ChangeOpts{Since: seq, IncludeDocs: true})
	require.NoError(t, err)
	defer sub.Cancel()

	var got []Change
	for c := range sub.C {
		got = append(got, c)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "k2", got[0].Key)
}

func TestChangesLiveTail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sub, err := s.Changes(ctx, ChangeOpts{Live: true, IncludeDocs: true})
	require.NoError(t, err)
	defer sub.Cancel()

	require.NoError(t, s.Put(ctx, "live1", []byte("v1")))

	select {
	case c := <-sub.C:
		assert.Equal(t, "live1", c.Key)
		assert.Equal(t, []byte("v1"), c.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("no live change delivered")
	}

	require.NoError(t, s.Put(ctx, "live2", []byte("v2")))

	select {
	case c := <-sub.C:
		assert.Equal(t, "live2", c.Key)
	case <-time.After(2 * time.Second):
		t.Fatal("no second live change delivered")
	}
}

func TestChangesWithoutIncludeDocsOmitsValues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", []byte("secret")))

	sub, err := s.Changes(ctx, ChangeOpts{})
	require.NoError(t, err)
	defer sub.Cancel()

	c, ok := <-sub.C
	require.True(t, ok)
	assert.Nil(t, c.Value)
}

func TestCancelIsSynchronousAndIdempotent(t *testing.T) {
	s := newTestStore(t)

	sub, err := s.Changes(context.Background(), ChangeOpts{Live: true})
	require.NoError(t, err)

	sub.Cancel()
	sub.Cancel()

	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestCloseCancelsSubscriptions(t *testing.T) {
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s, err := OpenSQLite(context.Background(), ":memory:", log)
	require.NoError(t, err)

	sub, err := s.Changes(context.Background(), ChangeOpts{Live: true})
	require.NoError(t, err)

	require.NoError(t, s.Close())

	_, ok := <-sub.C
	assert.False(t, ok)

	_, err = s.Changes(context.Background(), ChangeOpts{})
	assert.ErrorIs(t, err, common.ErrStoreClosed)
}

func TestLastSeqAdvancesPerMutation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seq, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, s.Put(ctx, "a", []byte("1")))
	require.NoError(t, s.Put(ctx, "b", []byte("2")))

	seq, err = s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)
}
