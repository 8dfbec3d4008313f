// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gate

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDecision(t *testing.T) {
	tests := []struct {
		name     string
		decision Decision
		labels   []string
	}{
		{
			name:     "recognized allow",
			decision: Decision{Allowed: true, Capability: AccessGroup, Strategy: "group"},
			labels:   []string{AccessGroup, "group", "allow"},
		},
		{
			name:     "recognized deny",
			decision: Decision{Allowed: false, Capability: JoinGroup, Strategy: "group"},
			labels:   []string{JoinGroup, "group", "deny"},
		},
		{
			name:     "unknown capability folded",
			decision: Decision{Allowed: true, Capability: "groups_edit_avatar"},
			labels:   []string{"other", "default", "allow"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := decisionsTotal.WithLabelValues(tt.labels...)
			before := testutil.ToFloat64(counter)

			recordDecision(tt.decision, time.Millisecond)

			assert.InDelta(t, before+1, testutil.ToFloat64(counter), 0.0001)
		})
	}
}
