// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package audit records permission gate decisions.
//
// Denials are written synchronously; when the writer fails they are appended
// to a JSONL write-ahead log that ReplayWAL later re-sends. Allows are only
// recorded in ModeAll and go through a buffered channel.
package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/oops"

	"github.com/holomush/capgate/internal/xdg"
)

// Mode controls which decisions are logged.
type Mode string

// Audit logging modes.
const (
	ModeOff         Mode = "off"
	ModeMinimal     Mode = "minimal"      // denials + site-wide overrides
	ModeDenialsOnly Mode = "denials_only" // denials
	ModeAll         Mode = "all"          // everything
)

// ParseMode validates a configured mode name. Empty means ModeMinimal.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return ModeMinimal, nil
	case ModeOff, ModeMinimal, ModeDenialsOnly, ModeAll:
		return m, nil
	default:
		return "", oops.In("audit").Code("AUDIT_MODE_INVALID").
			With("mode", s).
			Errorf("unknown audit mode %q", s)
	}
}

// Entry is a single gate decision to be logged.
type Entry struct {
	Actor      string    `json:"actor"`
	Capability string    `json:"capability"`
	Resource   string    `json:"resource"`
	Allowed    bool      `json:"allowed"`
	Override   bool      `json:"override,omitempty"`
	Strategy   string    `json:"strategy"`
	Reason     string    `json:"reason"`
	DurationUS int64     `json:"duration_us"`
	Timestamp  time.Time `json:"timestamp"`
}

// Writer is the interface for writing audit entries to a backend.
type Writer interface {
	WriteSync(ctx context.Context, entry Entry) error
	WriteAsync(entry Entry) error
	Close() error
}

var (
	channelFullCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capgate_audit_channel_full_total",
		Help: "Total number of times the async audit channel was full",
	})

	failuresCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capgate_audit_failures_total",
		Help: "Total number of audit logging failures",
	}, []string{"reason"})

	walEntriesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "capgate_audit_wal_entries",
		Help: "Current number of entries in the WAL",
	})
)

const asyncBuffer = 1000

// Logger routes audit entries to a Writer based on mode and outcome.
type Logger struct {
	mode      Mode
	writer    Writer
	walPath   string
	walFile   *os.File
	walMu     sync.Mutex
	asyncChan chan Entry
	stopChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// DefaultWALPath returns the WAL location in the XDG state directory,
// creating the directory if needed.
func DefaultWALPath() (string, error) {
	stateDir, err := xdg.StateDir()
	if err != nil {
		return "", err
	}
	if err := xdg.EnsureDir(stateDir); err != nil {
		return "", err
	}
	return filepath.Join(stateDir, "audit-wal.jsonl"), nil
}

// NewLogger creates a Logger and starts its async consumer. If walPath is
// empty, DefaultWALPath is used; if that fails the WAL lives in the temp dir.
func NewLogger(mode Mode, writer Writer, walPath string) *Logger {
	if walPath == "" {
		p, err := DefaultWALPath()
		if err != nil {
			slog.Error("failed to resolve audit WAL path", "error", err)
			p = filepath.Join(os.TempDir(), "capgate-audit-wal.jsonl")
		}
		walPath = p
	}

	logger := &Logger{
		mode:      mode,
		writer:    writer,
		walPath:   walPath,
		asyncChan: make(chan Entry, asyncBuffer),
		stopChan:  make(chan struct{}),
	}

	logger.wg.Add(1)
	go logger.asyncConsumer()

	return logger
}

// WALPath returns the write-ahead log location.
func (l *Logger) WALPath() string { return l.walPath }

// Log routes an audit entry based on the configured mode and outcome.
// Write failures are absorbed: the entry goes to the WAL or is dropped
// and counted, so Log only fails for a closed logger.
func (l *Logger) Log(ctx context.Context, entry Entry) error {
	shouldLog, useSync := l.shouldLog(entry)
	if !shouldLog {
		return nil
	}

	select {
	case <-l.stopChan:
		return oops.In("audit").Code("AUDIT_CLOSED").Errorf("audit logger is closed")
	default:
	}

	if useSync {
		if err := l.writer.WriteSync(ctx, entry); err != nil {
			if walErr := l.writeToWAL(entry); walErr != nil {
				slog.ErrorContext(ctx, "audit write failed: both writer and WAL failed",
					"writer_error", err,
					"wal_error", walErr,
					"actor", entry.Actor,
					"capability", entry.Capability,
					"resource", entry.Resource,
				)
				failuresCounter.WithLabelValues("wal_failed").Inc()
			}
		}
		return nil
	}

	select {
	case l.asyncChan <- entry:
	default:
		channelFullCounter.Inc()
	}
	return nil
}

// shouldLog reports whether entry is logged and whether synchronously.
func (l *Logger) shouldLog(entry Entry) (shouldLog, useSync bool) {
	switch l.mode {
	case ModeMinimal:
		if !entry.Allowed || entry.Override {
			return true, true
		}
	case ModeDenialsOnly:
		if !entry.Allowed {
			return true, true
		}
	case ModeAll:
		if !entry.Allowed || entry.Override {
			return true, true
		}
		return true, false
	}
	return false, false
}

func (l *Logger) asyncConsumer() {
	defer l.wg.Done()

	for {
		select {
		case entry := <-l.asyncChan:
			l.writeAsync(entry)
		case <-l.stopChan:
			for {
				select {
				case entry := <-l.asyncChan:
					l.writeAsync(entry)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) writeAsync(entry Entry) {
	if err := l.writer.WriteAsync(entry); err != nil {
		slog.Error("async audit write failed",
			"error", err,
			"actor", entry.Actor,
			"capability", entry.Capability,
		)
		failuresCounter.WithLabelValues("async_write_failed").Inc()
	}
}

func (l *Logger) writeToWAL(entry Entry) error {
	l.walMu.Lock()
	defer l.walMu.Unlock()

	if l.walFile == nil {
		file, err := os.OpenFile(l.walPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY|os.O_SYNC, 0o600)
		if err != nil {
			return oops.In("audit").With("path", l.walPath).Wrap(err)
		}
		l.walFile = file
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return oops.In("audit").Wrap(err)
	}

	if _, err := fmt.Fprintf(l.walFile, "%s\n", data); err != nil {
		return oops.In("audit").With("path", l.walPath).Wrap(err)
	}

	walEntriesGauge.Inc()
	return nil
}

// ReplayWAL sends every WAL entry to the writer synchronously and truncates
// the WAL. Entries that fail to parse or to write are logged and skipped.
// It returns the number of entries replayed.
func (l *Logger) ReplayWAL(ctx context.Context) (int, error) {
	l.walMu.Lock()
	defer l.walMu.Unlock()

	data, err := os.ReadFile(l.walPath)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, oops.In("audit").With("path", l.walPath).Wrap(err)
	}
	if len(data) == 0 {
		return 0, nil
	}

	replayed := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			slog.ErrorContext(ctx, "failed to unmarshal WAL entry", "error", err)
			failuresCounter.WithLabelValues("wal_unmarshal_failed").Inc()
			continue
		}

		if err := l.writer.WriteSync(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "failed to replay WAL entry",
				"error", err,
				"actor", entry.Actor,
				"capability", entry.Capability)
			failuresCounter.WithLabelValues("wal_replay_failed").Inc()
			continue
		}
		replayed++
	}
	if err := scanner.Err(); err != nil {
		return replayed, oops.In("audit").With("path", l.walPath).Wrap(err)
	}

	if err := os.Truncate(l.walPath, 0); err != nil {
		return replayed, oops.In("audit").With("path", l.walPath).Wrap(err)
	}

	walEntriesGauge.Set(0)
	slog.InfoContext(ctx, "replayed audit WAL entries", "count", replayed)
	return replayed, nil
}

// Close drains pending async entries, then closes the writer and the WAL.
// Calling Close more than once is safe.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.stopChan)
		l.wg.Wait()

		if werr := l.writer.Close(); werr != nil {
			err = oops.In("audit").Wrap(werr)
			return
		}

		l.walMu.Lock()
		defer l.walMu.Unlock()
		if l.walFile != nil {
			if ferr := l.walFile.Close(); ferr != nil {
				err = oops.In("audit").Wrap(ferr)
			}
			l.walFile = nil
		}
	})
	return err
}
