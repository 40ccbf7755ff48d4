package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Console    bool              `mapstructure:"console"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// EncodingConfig configures payload wrapping.
type EncodingConfig struct {
	Weights           map[string]EncodingWeights `mapstructure:"weights"`
	Compress          bool                       `mapstructure:"compress"`
	KDFIterations     int                        `mapstructure:"kdf_iterations"`
	ArchiveWorkFactor int                        `mapstructure:"archive_work_factor"`
}

// Config represents the application configuration as read from file,
// environment and flags. Sizes are human readable strings; Resolve turns the
// whole thing into validated Settings.
type Config struct {
	TargetDirectory       string   `mapstructure:"target_directory"`
	DeleteAfterCompletion bool     `mapstructure:"delete_after_completion"`
	FillDrive             bool     `mapstructure:"fill_drive"`
	MinRemainingFree      string   `mapstructure:"min_remaining_free"`
	MinFileSize           string   `mapstructure:"min_file_size"`
	MaxFileSize           string   `mapstructure:"max_file_size"`
	MinFileCount          int      `mapstructure:"min_file_count"`
	MaxFileCount          int      `mapstructure:"max_file_count"`
	EnabledTypes          []string `mapstructure:"enabled_types"`
	EnabledLanguages      []string `mapstructure:"enabled_languages"`
	MaxOutDegree          int      `mapstructure:"max_out_degree"`
	ExpansionMargin       float64  `mapstructure:"expansion_margin"`
	RecheckInterval       int      `mapstructure:"recheck_interval"`
	Workers               int      `mapstructure:"workers"`
	FailureThreshold      float64  `mapstructure:"failure_threshold"`
	Seed                  uint64   `mapstructure:"seed"`
	SecretLength          int      `mapstructure:"secret_length"`

	AgeBuckets map[string]BucketWeights `mapstructure:"age_buckets"`
	Encoding   EncodingConfig           `mapstructure:"encoding"`

	Cleanup struct {
		Mode string `mapstructure:"mode"`
	} `mapstructure:"cleanup"`
	Ledger struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"ledger"`
	Manifest struct {
		Enabled       bool   `mapstructure:"enabled"`
		Path          string `mapstructure:"path"`
		RetentionDays int    `mapstructure:"retention_days"`
	} `mapstructure:"manifest"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Settings is the validated, typed form of Config consumed by the planner
// and generator.
type Settings struct {
	TargetDirectory       string
	DeleteAfterCompletion bool
	CleanupMode           string
	FillDrive             bool
	MinRemainingFree      int64
	MinFileSize           int64
	MaxFileSize           int64
	MinFileCount          int
	MaxFileCount          int
	Types                 []types.FileType
	Languages             []string
	MaxOutDegree          int
	ExpansionMargin       float64
	RecheckInterval       int
	Workers               int
	FailureThreshold      float64
	Seed                  uint64
	SecretLength          int
	AgeBuckets            map[string]BucketWeights
	EncodingWeights       map[string]EncodingWeights
	Compress              bool
	KDFIterations         int
	ArchiveWorkFactor     int
}

// NewViper returns a viper instance with chaff's search paths, environment
// binding and defaults applied. Callers may bind flags before calling Load.
func NewViper() (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		v.AddConfigPath(filepath.Join(xdgConfigHome, "chaff"))
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	v.AddConfigPath(filepath.Join(homeDir, ".config", "chaff"))

	v.SetEnvPrefix("CHAFF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, homeDir)
	return v, nil
}

func setDefaults(v *viper.Viper, homeDir string) {
	v.SetDefault("target_directory", DefaultTargetDirectory)
	v.SetDefault("delete_after_completion", false)
	v.SetDefault("fill_drive", false)
	v.SetDefault("min_remaining_free", DefaultMinRemainingFree)
	v.SetDefault("min_file_size", DefaultMinFileSize)
	v.SetDefault("max_file_size", DefaultMaxFileSize)
	v.SetDefault("min_file_count", DefaultMinFileCount)
	v.SetDefault("max_file_count", DefaultMaxFileCount)
	v.SetDefault("enabled_types", DefaultTypes)
	v.SetDefault("enabled_languages", DefaultLanguages)
	v.SetDefault("max_out_degree", DefaultMaxOutDegree)
	v.SetDefault("expansion_margin", DefaultExpansionMargin)
	v.SetDefault("recheck_interval", DefaultRecheckInterval)
	v.SetDefault("workers", 0) // 0 means tuned from the host
	v.SetDefault("failure_threshold", DefaultFailureThreshold)
	v.SetDefault("seed", 0) // 0 means time based
	v.SetDefault("secret_length", DefaultSecretLength)

	// Per key so a partial file or env override merges with the rest.
	for name, w := range DefaultAgeBuckets {
		prefix := "age_buckets." + name + "."
		v.SetDefault(prefix+"recent", w.Recent)
		v.SetDefault(prefix+"medium", w.Medium)
		v.SetDefault(prefix+"old", w.Old)
		v.SetDefault(prefix+"archive", w.Archive)
	}
	for name, w := range DefaultEncodingWeights {
		prefix := "encoding.weights." + name + "."
		v.SetDefault(prefix+"none", w.None)
		v.SetDefault(prefix+"base64", w.Base64)
		v.SetDefault(prefix+"encrypted", w.Encrypted)
		v.SetDefault(prefix+"archived", w.Archived)
	}
	v.SetDefault("encoding.compress", true)
	v.SetDefault("encoding.kdf_iterations", DefaultKDFIterations)
	v.SetDefault("encoding.archive_work_factor", DefaultArchiveWorkFactor)

	v.SetDefault("cleanup.mode", DefaultCleanupMode)
	v.SetDefault("ledger.enabled", true)
	v.SetDefault("ledger.path", "") // Empty means DefaultLedgerPath
	v.SetDefault("manifest.enabled", true)
	v.SetDefault("manifest.path", filepath.Join(homeDir, ".config", "chaff", ".manifest"))
	v.SetDefault("manifest.retention_days", DefaultRetentionDays)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.console", false)
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"planner":   "info",
		"generator": "info",
		"metadata":  "warn",
		"ledger":    "warn",
	})
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/chaff/config.yaml
//   - $HOME/.config/chaff/config.yaml
//
// Environment variables are prefixed with CHAFF_ (e.g., CHAFF_FILL_DRIVE).
func Load() (*Config, error) {
	v, err := NewViper()
	if err != nil {
		return nil, err
	}
	return LoadFrom(v)
}

// LoadFrom reads the config file known to v, if any, and unmarshals it.
func LoadFrom(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.TargetDirectory, &cfg.Manifest.Path, &cfg.Ledger.Path, &cfg.Logging.Path} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	return &cfg, nil
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrConfiguration, fmt.Sprintf(format, args...))
}

func rangeErr(format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", types.ErrConfiguration, types.ErrInvalidRange, fmt.Sprintf(format, args...))
}

// Resolve validates the configuration and returns its typed form. Every
// error wraps types.ErrConfiguration.
func (c *Config) Resolve() (*Settings, error) {
	s := &Settings{
		TargetDirectory:       c.TargetDirectory,
		DeleteAfterCompletion: c.DeleteAfterCompletion,
		CleanupMode:           c.Cleanup.Mode,
		FillDrive:             c.FillDrive,
		MinFileCount:          c.MinFileCount,
		MaxFileCount:          c.MaxFileCount,
		MaxOutDegree:          c.MaxOutDegree,
		ExpansionMargin:       c.ExpansionMargin,
		RecheckInterval:       c.RecheckInterval,
		Workers:               c.Workers,
		FailureThreshold:      c.FailureThreshold,
		Seed:                  c.Seed,
		SecretLength:          c.SecretLength,
		AgeBuckets:            c.AgeBuckets,
		EncodingWeights:       c.Encoding.Weights,
		Compress:              c.Encoding.Compress,
		KDFIterations:         c.Encoding.KDFIterations,
		ArchiveWorkFactor:     c.Encoding.ArchiveWorkFactor,
	}

	if s.TargetDirectory == "" {
		return nil, configErr("target_directory is empty")
	}

	var err error
	if s.MinRemainingFree, err = parseSizeKey("min_remaining_free", c.MinRemainingFree); err != nil {
		return nil, err
	}
	if s.MinFileSize, err = parseSizeKey("min_file_size", c.MinFileSize); err != nil {
		return nil, err
	}
	if s.MaxFileSize, err = parseSizeKey("max_file_size", c.MaxFileSize); err != nil {
		return nil, err
	}
	if s.MinFileSize <= 0 {
		return nil, rangeErr("min_file_size must be positive")
	}
	if s.MinFileSize > s.MaxFileSize {
		return nil, rangeErr("min_file_size %s exceeds max_file_size %s",
			types.FormatSize(s.MinFileSize), types.FormatSize(s.MaxFileSize))
	}
	if !s.FillDrive {
		if s.MinFileCount < 0 || s.MinFileCount > s.MaxFileCount {
			return nil, rangeErr("file count range [%d, %d]", s.MinFileCount, s.MaxFileCount)
		}
	}

	if len(c.EnabledTypes) == 0 {
		return nil, configErr("enabled_types is empty")
	}
	seen := make(map[types.FileType]bool)
	for _, raw := range c.EnabledTypes {
		ft, err := types.ParseFileType(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
		}
		if !seen[ft] {
			seen[ft] = true
			s.Types = append(s.Types, ft)
		}
	}

	for _, lang := range c.EnabledLanguages {
		if lang = strings.TrimSpace(lang); lang != "" {
			s.Languages = append(s.Languages, strings.ToLower(lang))
		}
	}
	if len(s.Languages) == 0 {
		return nil, configErr("enabled_languages is empty")
	}

	switch {
	case s.MaxOutDegree < 0:
		return nil, rangeErr("max_out_degree must not be negative")
	case s.ExpansionMargin < 1:
		return nil, rangeErr("expansion_margin must be at least 1")
	case s.RecheckInterval < 1:
		return nil, rangeErr("recheck_interval must be at least 1")
	case s.Workers < 0:
		return nil, rangeErr("workers must not be negative")
	case s.FailureThreshold < 0 || s.FailureThreshold > 1:
		return nil, rangeErr("failure_threshold must be within [0, 1]")
	case s.SecretLength < 10:
		return nil, rangeErr("secret_length must be at least 10")
	case s.KDFIterations < 1:
		return nil, rangeErr("encoding.kdf_iterations must be positive")
	case s.ArchiveWorkFactor < 1 || s.ArchiveWorkFactor > 30:
		return nil, rangeErr("encoding.archive_work_factor must be within [1, 30]")
	}

	if s.CleanupMode != CleanupDelete && s.CleanupMode != CleanupTrash {
		return nil, configErr("cleanup.mode %q must be %q or %q", s.CleanupMode, CleanupDelete, CleanupTrash)
	}

	if _, ok := s.AgeBuckets[DefaultBucketKey]; !ok {
		return nil, configErr("age_buckets.%s is missing", DefaultBucketKey)
	}
	for name, w := range s.AgeBuckets {
		if err := checkDistribution("age_buckets."+name, w.Slice(), true); err != nil {
			return nil, err
		}
	}
	for name, w := range s.EncodingWeights {
		if err := checkDistribution("encoding.weights."+name, w.Slice(), false); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func parseSizeKey(key, value string) (int64, error) {
	n, err := types.ParseSize(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", types.ErrConfiguration, key, err)
	}
	return n, nil
}

// checkDistribution rejects negative weights and an all-zero table. When
// exact is set the weights must also sum to 1.
func checkDistribution(key string, weights []float64, exact bool) error {
	var sum float64
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) {
			return configErr("%s has a negative weight", key)
		}
		sum += w
	}
	if sum == 0 {
		return configErr("%s weights are all zero", key)
	}
	if exact && math.Abs(sum-1) > 1e-6 {
		return configErr("%s weights sum to %.4f, want 1", key, sum)
	}
	return nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "chaff"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "chaff"), nil
}

// ConfigPath returns the path of the user config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// WriteDefault writes a commented default config file if none exists.
// Returns the path and whether a file was written.
func WriteDefault() (string, bool, error) {
	if err := EnsureConfigDir(); err != nil {
		return "", false, err
	}

	configPath, err := ConfigPath()
	if err != nil {
		return "", false, err
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, false, nil
	} else if !os.IsNotExist(err) {
		return "", false, fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# Chaff decoy file generator configuration

# Directory decoy files are written to
target_directory: %s

# Remove generated files when the run finishes (cleanup.mode decides how)
delete_after_completion: false

# Keep generating until min_remaining_free is approached, ignoring counts
fill_drive: false
min_remaining_free: %s

# Pre-encoding size and count bounds
min_file_size: %s
max_file_size: %s
min_file_count: %d
max_file_count: %d

enabled_types: [document, spreadsheet, email, image, text, structured]
enabled_languages: [en]

# Maximum attachment/embed edges per node and role
max_out_degree: %d

# Fill-drive reservation per planned byte, and writes between free space checks
expansion_margin: %.2f
recheck_interval: %d

# Worker pool size (0 means tuned from the host)
workers: 0

# Failed/planned ratio above which the run exits non-zero
failure_threshold: %.2f

# Random seed (0 means time based)
seed: 0

# Minimum generated password length
secret_length: %d

# Age bucket distribution per file type (must sum to 1)
age_buckets:
  email:      {recent: 0.40, medium: 0.30, old: 0.20, archive: 0.10}
  document:   {recent: 0.20, medium: 0.40, old: 0.30, archive: 0.10}
  structured: {recent: 0.10, medium: 0.30, old: 0.40, archive: 0.20}
  image:      {recent: 0.15, medium: 0.25, old: 0.35, archive: 0.25}
  default:    {recent: 0.25, medium: 0.35, old: 0.25, archive: 0.15}

encoding:
  compress: true
  kdf_iterations: %d
  archive_work_factor: %d
  weights:
    document:    {none: 0.30, base64: 0.40, encrypted: 0.20, archived: 0.10}
    spreadsheet: {none: 0.20, base64: 0.40, encrypted: 0.10, archived: 0.30}
    text:        {none: 0.30, base64: 0.40, encrypted: 0.15, archived: 0.15}
    structured:  {none: 0.50, base64: 0.40, encrypted: 0.10, archived: 0}
    email:       {none: 1}
    image:       {none: 1}

cleanup:
  # delete or trash
  mode: %s

# Per-run record of written files and secrets, used by "chaff decode --run"
ledger:
  enabled: true
  path: ""

manifest:
  enabled: true
  retention_days: %d

logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means $XDG_STATE_HOME/chaff/chaff.log)
  path: ""
  console: false
  rotation:
    max_size: 10MB
    max_age: 30
    max_backups: 5
    daily: true
`, DefaultTargetDirectory, DefaultMinRemainingFree, DefaultMinFileSize, DefaultMaxFileSize,
		DefaultMinFileCount, DefaultMaxFileCount, DefaultMaxOutDegree, DefaultExpansionMargin,
		DefaultRecheckInterval, DefaultFailureThreshold, DefaultSecretLength, DefaultKDFIterations,
		DefaultArchiveWorkFactor, DefaultCleanupMode, DefaultRetentionDays)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write default config: %w", err)
	}

	return configPath, true, nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/chaff/ for the ledger database.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "chaff")
}

// StateDir returns $XDG_STATE_HOME/chaff/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "chaff")
}

// DefaultLedgerPath returns the default ledger database directory.
func DefaultLedgerPath() string {
	return filepath.Join(DataDir(), "ledger")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), "chaff.log")
}
