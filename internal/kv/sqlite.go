package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/mkarpenko/moneta/internal/common"
	"github.com/mkarpenko/moneta/internal/kv/migrations"
	"github.com/mkarpenko/moneta/internal/logging"
)

// SQLiteStore implements Store on a single SQLite file. Every mutation is
// written together with an append-only changelog row inside one transaction,
// so changelog sequence numbers reflect durable commit order exactly.
//
// Writes are serialized through writeMu; the engine assumes a single writer
// per store (one process, one open handle), SQLite enforces the rest.
type SQLiteStore struct {
	db  *sql.DB
	log logging.Logger

	writeMu sync.Mutex

	mu        sync.Mutex
	notifiers map[int64]*subscriber
	nextSubID int64
	closed    bool
	subs      sync.WaitGroup
}

type subscriber struct {
	signal chan struct{}
	cancel context.CancelFunc
}

// OpenSQLite opens (creating if necessary) the store at path and applies
// schema migrations. Use ":memory:" for an ephemeral store in tests.
func OpenSQLite(ctx context.Context, path string, log logging.Logger) (*SQLiteStore, error) {
	dsn := path + "?_busy_timeout=5000&_journal_mode=WAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection: keeps :memory: stores coherent and matches the
	// single-writer model.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteStore{
		db:        db,
		log:       log,
		notifiers: make(map[int64]*subscriber),
	}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Get returns the value stored under key, or common.ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %q: %s", common.ErrIO, key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte) error {
	return s.Batch(ctx, []BatchOp{{Type: OpPut, Key: key, Value: value}})
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	return s.Batch(ctx, []BatchOp{{Type: OpDelete, Key: key}})
}

// Batch applies all ops in one transaction and records a changelog row per
// effective mutation. Deleting an absent key is already satisfied and is
// neither an error nor a recorded change.
func (s *SQLiteStore) Batch(ctx context.Context, ops []BatchOp) error {
	if len(ops) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.retryTransient(ctx, func(ctx context.Context) error {
		return withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
			for _, op := range ops {
				if err := applyOp(ctx, tx, op); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("%w: batch: %s", common.ErrIO, err)
	}

	s.notifySubscribers()
	return nil
}

func applyOp(ctx context.Context, tx DBTX, op BatchOp) error {
	switch op.Type {
	case OpPut:
		_, err := tx.ExecContext(ctx,
			`INSERT INTO kv (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			op.Key, op.Value)
		if err != nil {
			return fmt.Errorf("put %q: %w", op.Key, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO changelog (key, value, deleted) VALUES (?, ?, 0)`,
			op.Key, op.Value)
		if err != nil {
			return fmt.Errorf("log put %q: %w", op.Key, err)
		}
		return nil

	case OpDelete:
		res, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, op.Key)
		if err != nil {
			return fmt.Errorf("delete %q: %w", op.Key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete %q: %w", op.Key, err)
		}
		if n == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO changelog (key, value, deleted) VALUES (?, NULL, 1)`,
			op.Key)
		if err != nil {
			return fmt.Errorf("log delete %q: %w", op.Key, err)
		}
		return nil

	default:
		return fmt.Errorf("unknown batch op %q", op.Type)
	}
}

// Iterate yields entries in [r.Start, r.End) in ascending key order.
func (s *SQLiteStore) Iterate(ctx context.Context, r Range, fn func(Pair) error) error {
	query := `SELECT key, value FROM kv WHERE key >= ? ORDER BY key`
	args := []any{r.Start}
	if r.End != "" {
		query = `SELECT key, value FROM kv WHERE key >= ? AND key < ? ORDER BY key`
		args = append(args, r.End)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: iterate: %s", common.ErrIO, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Pair
		if err := rows.Scan(&p.Key, &p.Value); err != nil {
			return fmt.Errorf("%w: iterate scan: %s", common.ErrIO, err)
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterate: %s", common.ErrIO, err)
	}
	return nil
}

// Changes opens a subscription that replays changelog rows with seq > Since
// and, when Live, keeps tailing new commits. Cancellation is synchronous:
// Subscription.Cancel returns only after the feed goroutine has stopped.
func (s *SQLiteStore) Changes(ctx context.Context, opts ChangeOpts) (*Subscription, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, common.ErrStoreClosed
	}
	id := s.nextSubID
	s.nextSubID++

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscriber{signal: make(chan struct{}, 1), cancel: cancel}
	s.notifiers[id] = sub
	s.subs.Add(1)
	s.mu.Unlock()

	out := make(chan Change)
	done := make(chan struct{})

	go func() {
		defer func() {
			s.removeSubscriber(id)
			close(out)
			close(done)
			s.subs.Done()
		}()

		since := opts.Since
		for {
			changes, err := s.readChangelog(subCtx, since)
			if err != nil {
				if subCtx.Err() == nil {
					s.log.Error(subCtx, "change feed read failed", "error", err)
				}
				return
			}
			for _, c := range changes {
				if !opts.IncludeDocs {
					c.Value = nil
				}
				select {
				case out <- c:
					since = c.Seq
				case <-subCtx.Done():
					return
				}
			}
			if !opts.Live {
				return
			}
			select {
			case <-sub.signal:
			case <-subCtx.Done():
				return
			}
		}
	}()

	return NewSubscription(out, func() {
		cancel()
		<-done
	}), nil
}

func (s *SQLiteStore) readChangelog(ctx context.Context, since int64) ([]Change, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, key, value, deleted FROM changelog WHERE seq > ? ORDER BY seq`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var c Change
		var deleted int
		if err := rows.Scan(&c.Seq, &c.Key, &c.Value, &deleted); err != nil {
			return nil, err
		}
		c.Deleted = deleted != 0
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// LastSeq returns the sequence number of the most recent committed change,
// or zero for a fresh store.
func (s *SQLiteStore) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM changelog`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("%w: last seq: %s", common.ErrIO, err)
	}
	return seq, nil
}

func (s *SQLiteStore) notifySubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.notifiers {
		select {
		case sub.signal <- struct{}{}:
		default:
		}
	}
}

func (s *SQLiteStore) removeSubscriber(id int64) {
	s.mu.Lock()
	delete(s.notifiers, id)
	s.mu.Unlock()
}

// Close cancels all open subscriptions, waits for their goroutines to exit,
// and closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, sub := range s.notifiers {
		sub.cancel()
	}
	s.mu.Unlock()

	s.subs.Wait()
	return s.db.Close()
}

// retryTransient runs fn, retrying exactly once when SQLite reports the
// database momentarily busy or locked. Everything else surfaces immediately.
func (s *SQLiteStore) retryTransient(ctx context.Context, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(1, retry.NewConstant(50*time.Millisecond))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if isTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func isTransient(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked
	}
	return false
}
