// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// The host owns the schema. PostgresWriter expects:
//
//	CREATE TABLE capability_audit_log (
//	    id          BIGSERIAL PRIMARY KEY,
//	    actor       TEXT        NOT NULL,
//	    capability  TEXT        NOT NULL,
//	    resource    TEXT        NOT NULL,
//	    allowed     BOOLEAN     NOT NULL,
//	    override    BOOLEAN     NOT NULL DEFAULT FALSE,
//	    strategy    TEXT        NOT NULL,
//	    reason      TEXT        NOT NULL,
//	    duration_us BIGINT      NOT NULL,
//	    decided_at  TIMESTAMPTZ NOT NULL
//	);
const insertEntrySQL = `
	INSERT INTO capability_audit_log (
		actor, capability, resource, allowed, override,
		strategy, reason, duration_us, decided_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// DB is the subset of *pgxpool.Pool used by PostgresWriter.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresWriter implements Writer for PostgreSQL. Async entries are
// batched and flushed every flushPeriod or when batchSize is reached.
type PostgresWriter struct {
	db          DB
	asyncChan   chan Entry
	stopChan    chan struct{}
	wg          sync.WaitGroup
	batchSize   int
	flushPeriod time.Duration
}

// PostgresOption configures a PostgresWriter.
type PostgresOption func(*PostgresWriter)

// WithBatch sets the async batch size and flush period.
func WithBatch(size int, period time.Duration) PostgresOption {
	return func(w *PostgresWriter) {
		if size > 0 {
			w.batchSize = size
		}
		if period > 0 {
			w.flushPeriod = period
		}
	}
}

// NewPostgresWriter creates a PostgresWriter and starts its batch consumer.
func NewPostgresWriter(db DB, opts ...PostgresOption) *PostgresWriter {
	writer := &PostgresWriter{
		db:          db,
		asyncChan:   make(chan Entry, asyncBuffer),
		stopChan:    make(chan struct{}),
		batchSize:   100,
		flushPeriod: time.Second,
	}
	for _, opt := range opts {
		opt(writer)
	}

	writer.wg.Add(1)
	go writer.batchConsumer()

	return writer
}

func entryArgs(entry *Entry) []any {
	return []any{
		entry.Actor,
		entry.Capability,
		entry.Resource,
		entry.Allowed,
		entry.Override,
		entry.Strategy,
		entry.Reason,
		entry.DurationUS,
		entry.Timestamp,
	}
}

// WriteSync performs a synchronous insert.
func (w *PostgresWriter) WriteSync(ctx context.Context, entry Entry) error {
	if _, err := w.db.Exec(ctx, insertEntrySQL, entryArgs(&entry)...); err != nil {
		return oops.In("audit").
			With("actor", entry.Actor).
			With("capability", entry.Capability).
			With("resource", entry.Resource).
			Wrap(err)
	}
	return nil
}

// WriteAsync queues an entry for batch writing.
func (w *PostgresWriter) WriteAsync(entry Entry) error {
	select {
	case w.asyncChan <- entry:
		return nil
	default:
		channelFullCounter.Inc()
		return oops.In("audit").Code("AUDIT_CHANNEL_FULL").Errorf("async channel full")
	}
}

func (w *PostgresWriter) batchConsumer() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.flushPeriod)
	defer ticker.Stop()

	var batch []Entry

	flush := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := w.writeBatch(ctx, batch); err != nil {
			slog.Error("failed to write audit batch", "error", err, "count", len(batch))
			failuresCounter.WithLabelValues("batch_write_failed").Inc()
		}

		batch = batch[:0]
	}

	for {
		select {
		case entry := <-w.asyncChan:
			batch = append(batch, entry)
			if len(batch) >= w.batchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-w.stopChan:
			for {
				select {
				case entry := <-w.asyncChan:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

// writeBatch inserts entries in one transaction; any failed row aborts the
// batch.
func (w *PostgresWriter) writeBatch(ctx context.Context, entries []Entry) error {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return oops.In("audit").Wrap(err)
	}
	defer func() {
		//nolint:errcheck // Rollback after Commit returns ErrTxClosed
		_ = tx.Rollback(ctx)
	}()

	for i := range entries {
		entry := &entries[i]
		if _, err := tx.Exec(ctx, insertEntrySQL, entryArgs(entry)...); err != nil {
			return oops.In("audit").
				With("actor", entry.Actor).
				With("capability", entry.Capability).
				Wrap(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.In("audit").Wrap(err)
	}
	return nil
}

// Close drains queued entries and stops the batch consumer. The pool is
// owned by the caller and stays open.
func (w *PostgresWriter) Close() error {
	close(w.stopChan)
	w.wg.Wait()
	return nil
}

var _ Writer = (*PostgresWriter)(nil)
