package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	return home
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".chaff"), cfg.TargetDirectory)
	assert.Equal(t, DefaultMinFileCount, cfg.MinFileCount)
	assert.Equal(t, DefaultMaxFileCount, cfg.MaxFileCount)
	assert.Equal(t, DefaultMaxOutDegree, cfg.MaxOutDegree)
	assert.InDelta(t, DefaultExpansionMargin, cfg.ExpansionMargin, 1e-9)
	assert.Equal(t, CleanupDelete, cfg.Cleanup.Mode)
	assert.True(t, cfg.Manifest.Enabled)
	assert.Len(t, cfg.EnabledTypes, len(DefaultTypes))
	assert.Equal(t, DefaultAgeBuckets["email"], cfg.AgeBuckets["email"])
	assert.Equal(t, DefaultEncodingWeights["image"], cfg.Encoding.Weights["image"])

	s, err := cfg.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 100*types.MiB, s.MinRemainingFree)
	assert.Equal(t, 10*types.MiB, s.MaxFileSize)
	assert.Len(t, s.Types, 6)
	assert.Equal(t, []string{"en"}, s.Languages)
}

func TestLoad_FromFileMergesNestedDefaults(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".config", "chaff")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	content := `
target_directory: /srv/decoys
fill_drive: true
min_file_size: 1MB
max_file_size: 5MB
enabled_types: [email, document]
age_buckets:
  email: {recent: 0.7, medium: 0.1, old: 0.1, archive: 0.1}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/decoys", cfg.TargetDirectory)
	assert.True(t, cfg.FillDrive)
	assert.InDelta(t, 0.7, cfg.AgeBuckets["email"].Recent, 1e-9)
	// Untouched types keep their defaults.
	assert.Equal(t, DefaultAgeBuckets["document"], cfg.AgeBuckets["document"])

	s, err := cfg.Resolve()
	require.NoError(t, err)
	assert.Equal(t, []types.FileType{types.Email, types.Document}, s.Types)
	assert.Equal(t, types.MiB, s.MinFileSize)
}

func TestLoad_EnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("CHAFF_MAX_OUT_DEGREE", "5")
	t.Setenv("CHAFF_CLEANUP_MODE", "trash")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxOutDegree)
	assert.Equal(t, CleanupTrash, cfg.Cleanup.Mode)
}

func TestResolve_Errors(t *testing.T) {
	isolate(t)

	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantRange bool
	}{
		{name: "size range inverted", mutate: func(c *Config) { c.MinFileSize = "20MB" }, wantRange: true},
		{name: "count range inverted", mutate: func(c *Config) { c.MinFileCount = 50; c.MaxFileCount = 10 }, wantRange: true},
		{name: "bad size", mutate: func(c *Config) { c.MaxFileSize = "lots" }},
		{name: "unknown type", mutate: func(c *Config) { c.EnabledTypes = []string{"hologram"} }},
		{name: "no types", mutate: func(c *Config) { c.EnabledTypes = nil }},
		{name: "no languages", mutate: func(c *Config) { c.EnabledLanguages = []string{" "} }},
		{name: "short secret", mutate: func(c *Config) { c.SecretLength = 6 }, wantRange: true},
		{name: "margin below one", mutate: func(c *Config) { c.ExpansionMargin = 0.9 }, wantRange: true},
		{name: "bad cleanup mode", mutate: func(c *Config) { c.Cleanup.Mode = "shred" }},
		{name: "bucket weights off", mutate: func(c *Config) {
			c.AgeBuckets["email"] = BucketWeights{Recent: 0.5, Medium: 0.5, Old: 0.5}
		}},
		{name: "negative encoding weight", mutate: func(c *Config) {
			c.Encoding.Weights["text"] = EncodingWeights{None: 1, Base64: -0.2}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)

			_, err = cfg.Resolve()
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrConfiguration))
			if tt.wantRange {
				assert.True(t, errors.Is(err, types.ErrInvalidRange))
			}
		})
	}
}

func TestResolve_FillDriveIgnoresCounts(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	require.NoError(t, err)

	cfg.FillDrive = true
	cfg.MinFileCount, cfg.MaxFileCount = 10, 1

	_, err = cfg.Resolve()
	assert.NoError(t, err)
}

func TestWriteDefault(t *testing.T) {
	home := isolate(t)

	path, written, err := WriteDefault()
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, filepath.Join(home, ".config", "chaff", "config.yaml"), path)

	// The template must load and validate cleanly.
	cfg, err := Load()
	require.NoError(t, err)
	_, err = cfg.Resolve()
	require.NoError(t, err)

	_, written, err = WriteDefault()
	require.NoError(t, err)
	assert.False(t, written, "existing config must not be overwritten")
}

func TestExpandPath(t *testing.T) {
	home := isolate(t)

	got, err := ExpandPath("~/decoys")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "decoys"), got)

	got, err = ExpandPath("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)
}
