package logging_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/chaff/pkg/chaff/logging"
)

// These tests share the package's global state and must not run in parallel.

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logging.Level
		wantErr bool
	}{
		{"debug", logging.LevelDebug, false},
		{"INFO", logging.LevelInfo, false},
		{"warning", logging.LevelWarn, false},
		{"error", logging.LevelError, false},
		{"", logging.LevelInfo, false},
		{"loud", logging.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := logging.ParseLevel(tt.in)
		if tt.wantErr {
			assert.True(t, errors.Is(err, logging.ErrInvalidLevel), tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestGetBeforeInitDiscards(t *testing.T) {
	require.NoError(t, logging.Close())

	logger := logging.Get("planner")
	require.NotNil(t, logger)
	logger.Info("nobody hears this")
}

func TestInitWritesComponentPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chaff.log")

	early := logging.Get("generator")

	require.NoError(t, logging.Init(logging.Config{
		Level:      "info",
		Path:       path,
		Components: map[string]string{"metadata": "error"},
	}))
	t.Cleanup(func() { _ = logging.Close() })

	early.Info("run started", "planned", 12)
	logging.Get("metadata").Warn("suppressed by component level")
	logging.Get("ledger").With("run", "abc").Debug("below default level")

	require.NoError(t, logging.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "generator")
	assert.Contains(t, out, "run started")
	assert.Contains(t, out, "planned=12")
	assert.NotContains(t, out, "suppressed by component level")
	assert.NotContains(t, out, "below default level")
}

func TestInitRejectsBadComponentLevel(t *testing.T) {
	err := logging.Init(logging.Config{
		Level:      "info",
		Path:       filepath.Join(t.TempDir(), "x.log"),
		Components: map[string]string{"planner": "chatty"},
	})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "planner"))
}
