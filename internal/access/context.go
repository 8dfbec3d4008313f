// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access

import "context"

type systemKey struct{}

// WithSystem returns a context marked as a system-level operation, which
// bypasses role checks for every actor.
func WithSystem(ctx context.Context) context.Context {
	return context.WithValue(ctx, systemKey{}, true)
}

// IsSystemContext reports whether ctx was marked with WithSystem.
func IsSystemContext(ctx context.Context) bool {
	v, ok := ctx.Value(systemKey{}).(bool)
	return ok && v
}
