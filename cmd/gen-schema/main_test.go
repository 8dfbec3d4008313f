// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/capgate/internal/config"
)

func TestGenerate(t *testing.T) {
	out := filepath.Join(t.TempDir(), "schemas", "manifest.schema.json")
	require.NoError(t, generate(out))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	want, err := config.GenerateSchema()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
