// SPDX-FileCopyrightText: Copyright 2025 Guildgate Authors
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := Get()
	Set(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { Set(prev) })
	return buf
}

func TestSingletonHelpers(t *testing.T) {
	buf := captureOutput(t)

	Infof("hello %s", "world")
	assert.Contains(t, buf.String(), "hello world")

	buf.Reset()
	Warnw("something happened", "session", "abc")
	out := buf.String()
	assert.Contains(t, out, "something happened")
	assert.Contains(t, out, "session=abc")

	buf.Reset()
	Errorf("boom %d", 42)
	assert.Contains(t, buf.String(), "boom 42")
}

func TestGetNeverNil(t *testing.T) {
	require.NotNil(t, Get())
}

func TestUnstructuredLogsDefault(t *testing.T) {
	// Unset env var defaults to unstructured output.
	t.Setenv("UNSTRUCTURED_LOGS", "")
	assert.True(t, unstructuredLogs())

	t.Setenv("UNSTRUCTURED_LOGS", "false")
	assert.False(t, unstructuredLogs())

	t.Setenv("UNSTRUCTURED_LOGS", "true")
	assert.True(t, unstructuredLogs())
}
