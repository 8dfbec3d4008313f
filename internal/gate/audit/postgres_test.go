// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func entryMockArgs(e Entry) []any {
	return []any{e.Actor, e.Capability, e.Resource, e.Allowed, e.Override, e.Strategy, e.Reason, e.DurationUS, e.Timestamp}
}

func TestPostgresWriter_WriteSync(t *testing.T) {
	e := entry(false, false)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   bool
	}{
		{
			name: "inserts entry",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO capability_audit_log`).
					WithArgs(entryMockArgs(e)...).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO capability_audit_log`).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()
			tt.setupMock(mock)

			w := NewPostgresWriter(mock)
			err = w.WriteSync(context.Background(), e)
			require.NoError(t, w.Close())

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "connection refused")
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresWriter_AsyncBatchFlushedOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	first := entry(true, false)
	second := entry(true, false)
	second.Actor = "bob"

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO capability_audit_log`).
		WithArgs(entryMockArgs(first)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO capability_audit_log`).
		WithArgs(entryMockArgs(second)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	w := NewPostgresWriter(mock, WithBatch(10, time.Hour))
	require.NoError(t, w.WriteAsync(first))
	require.NoError(t, w.WriteAsync(second))
	require.NoError(t, w.Close())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresWriter_BatchSizeTriggersFlush(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	e := entry(true, false)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO capability_audit_log`).
		WithArgs(entryMockArgs(e)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	w := NewPostgresWriter(mock, WithBatch(1, time.Hour))
	require.NoError(t, w.WriteAsync(e))

	require.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, w.Close())
}

func TestPostgresWriter_BatchErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	e := entry(true, false)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO capability_audit_log`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	w := NewPostgresWriter(mock, WithBatch(10, time.Hour))
	require.NoError(t, w.WriteAsync(e))
	require.NoError(t, w.Close())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlogWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewSlogWriter(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, w.WriteSync(context.Background(), entry(false, false)))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "gate decision", rec["msg"])
	assert.Equal(t, "audit", rec["component"])
	assert.Equal(t, "alice", rec["actor"])
	assert.Equal(t, "groups_join_group", rec["capability"])
	assert.Equal(t, false, rec["allowed"])

	buf.Reset()
	require.NoError(t, w.WriteAsync(entry(true, false)))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "INFO", rec["level"])
	assert.NoError(t, w.Close())
}
