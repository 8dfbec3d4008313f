// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package audit

import (
	"context"
	"log/slog"
)

// SlogWriter writes entries as structured log records.
type SlogWriter struct {
	logger *slog.Logger
}

// NewSlogWriter creates a SlogWriter. A nil logger uses slog.Default.
func NewSlogWriter(logger *slog.Logger) *SlogWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogWriter{logger: logger.With("component", "audit")}
}

// WriteSync implements Writer.
func (w *SlogWriter) WriteSync(ctx context.Context, entry Entry) error {
	w.logger.LogAttrs(ctx, levelFor(entry), "gate decision", attrs(entry)...)
	return nil
}

// WriteAsync implements Writer.
func (w *SlogWriter) WriteAsync(entry Entry) error {
	return w.WriteSync(context.Background(), entry)
}

// Close implements Writer.
func (w *SlogWriter) Close() error { return nil }

func levelFor(entry Entry) slog.Level {
	if entry.Allowed {
		return slog.LevelInfo
	}
	return slog.LevelWarn
}

func attrs(entry Entry) []slog.Attr {
	return []slog.Attr{
		slog.String("actor", entry.Actor),
		slog.String("capability", entry.Capability),
		slog.String("resource", entry.Resource),
		slog.Bool("allowed", entry.Allowed),
		slog.Bool("override", entry.Override),
		slog.String("strategy", entry.Strategy),
		slog.String("reason", entry.Reason),
		slog.Int64("duration_us", entry.DurationUS),
		slog.Time("decided_at", entry.Timestamp),
	}
}

var _ Writer = (*SlogWriter)(nil)
