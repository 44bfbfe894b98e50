package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hupe1980/agentcookbook/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, args...))

	err := rootCmd.Execute()

	return out.String(), err
}

func TestListCmd(t *testing.T) {
	out, err := execute(t, "list")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 33)
	assert.Contains(t, lines[0], "SLUG")
	assert.Contains(t, lines[1], "001")
	assert.Contains(t, lines[32], "tool-choice")
}

func TestShowCmd(t *testing.T) {
	out, err := execute(t, "show", "memory")
	require.NoError(t, err)
	assert.Contains(t, out, "008")
	assert.Contains(t, out, "slug: memory")

	_, err = execute(t, "show", "nope")
	assert.ErrorContains(t, err, `unknown lesson "nope"`)
}

func TestRunCmd_UnknownLesson(t *testing.T) {
	_, err := execute(t, "run", "1", "999")
	assert.ErrorContains(t, err, `unknown lesson "999"`)
}

func TestSelectLessons(t *testing.T) {
	got, err := selectLessons([]string{"2", "memory"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "002", got[0].ID)
	assert.Equal(t, "008", got[1].ID)

	got, err = selectLessons([]string{"1", "ALL"})
	require.NoError(t, err)
	assert.Len(t, got, 32)
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger(config.LogConfig{Level: "warn", Format: "json"}, false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	l, err = newLogger(config.LogConfig{Level: "warn"}, true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	path := filepath.Join(t.TempDir(), "logs", "cookbook.log")
	l, err = newLogger(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1}, false)
	require.NoError(t, err)
	l.Info("lesson.start", zap.String("id", "001"))
	require.NoError(t, l.Sync())
	assert.FileExists(t, path)

	_, err = newLogger(config.LogConfig{Level: "loud"}, false)
	assert.Error(t, err)
}
