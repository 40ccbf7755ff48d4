package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jamesainslie/chaff/pkg/chaff/config"
	"github.com/jamesainslie/chaff/pkg/chaff/logging"
	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

// flagKeys maps command flags to configuration keys. Flags a command does
// not define are skipped.
var flagKeys = []struct {
	flag string
	key  string
}{
	{"target", "target_directory"},
	{"fill", "fill_drive"},
	{"min-free", "min_remaining_free"},
	{"min-size", "min_file_size"},
	{"max-size", "max_file_size"},
	{"min-count", "min_file_count"},
	{"max-count", "max_file_count"},
	{"types", "enabled_types"},
	{"languages", "enabled_languages"},
	{"max-out-degree", "max_out_degree"},
	{"seed", "seed"},
	{"workers", "workers"},
	{"failure-threshold", "failure_threshold"},
	{"delete-after", "delete_after_completion"},
	{"cleanup-mode", "cleanup.mode"},
}

// newViper returns chaff's viper with the --config file and the flags of
// flags bound.
func newViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v, err := config.NewViper()
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	if flags != nil {
		for _, fk := range flagKeys {
			if f := flags.Lookup(fk.flag); f != nil {
				if err := v.BindPFlag(fk.key, f); err != nil {
					return nil, fmt.Errorf("binding --%s: %w", fk.flag, err)
				}
			}
		}
	}
	return v, nil
}

// loadConfig reads configuration from file, environment and cmd's flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var flags *pflag.FlagSet
	if cmd != nil {
		flags = cmd.Flags()
	}
	v, err := newViper(flags)
	if err != nil {
		return nil, err
	}
	return config.LoadFrom(v)
}

// loadSettings is loadConfig followed by validation.
func loadSettings(cmd *cobra.Command) (*config.Config, *config.Settings, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	settings, err := cfg.Resolve()
	if err != nil {
		return nil, nil, err
	}
	return cfg, settings, nil
}

// initializeLogging is the root PersistentPreRunE. It creates the XDG
// directories and starts file logging. A broken config file still gets a
// working log with default settings; the command itself reports the error.
func initializeLogging(cmd *cobra.Command, _ []string) error {
	if err := ensureDirectories(); err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		cfg = &config.Config{}
		cfg.Logging.Level = "info"
	}
	return logging.Init(loggingConfig(cfg, !getQuiet() && (getVerbose() || cfg.Logging.Console)))
}

// initTUILogging restarts logging without the console sink so log lines do
// not tear the progress display.
func initTUILogging(cfg *config.Config) error {
	return logging.Init(loggingConfig(cfg, false))
}

func loggingConfig(cfg *config.Config, console bool) logging.Config {
	lc := logging.Config{
		Level:      cfg.Logging.Level,
		Path:       cfg.Logging.Path,
		Rotation:   parseRotationConfig(cfg.Logging.Rotation),
		Components: cfg.Logging.Components,
	}
	if lc.Path == "" {
		lc.Path = config.DefaultLogPath()
	}
	if getVerbose() {
		lc.Level = "debug"
	}
	if console {
		lc.ConsoleLevel = "info"
		if getVerbose() {
			lc.ConsoleLevel = "debug"
		}
	}
	return lc
}

func ensureDirectories() error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	for _, dir := range []string{configDir, config.DataDir(), config.StateDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// parseRotationConfig converts the config file's rotation block. An empty
// or unparsable max_size falls back to the default.
func parseRotationConfig(rc config.RotationConfig) logging.RotationConfig {
	out := logging.RotationConfig{
		MaxSize:    logging.DefaultRotationConfig().MaxSize,
		MaxAge:     rc.MaxAge,
		MaxBackups: rc.MaxBackups,
		Daily:      rc.Daily,
	}
	if rc.MaxSize != "" {
		if n, err := types.ParseSize(rc.MaxSize); err == nil && n > 0 {
			out.MaxSize = n
		}
	}
	return out
}
