package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "tsexports"
	// ConfigFileName is the name of the config file looked up in the working
	// directory (without extension).
	ConfigFileName = ".tsexports"
	// EnvPrefix prefixes environment overrides, e.g. TSEXPORTS_CHARSET.
	EnvPrefix = "TSEXPORTS"
)

// Formats lists the supported output formats.
var Formats = []string{"json", "yaml", "text"}

// Config is the merged configuration of a run.
type Config struct {
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
	Charset    string   `mapstructure:"charset" yaml:"charset"`
	BaseDir    string   `mapstructure:"base_dir" yaml:"base_dir"`
	LogLevel   string   `mapstructure:"log_level" yaml:"log_level"`
	Format     string   `mapstructure:"format" yaml:"format"`
	Registries []string `mapstructure:"registries" yaml:"registries"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		Extensions: []string{".ts", ".js"},
		Charset:    "utf8",
		BaseDir:    ".",
		LogLevel:   "info",
		Format:     "json",
		Registries: []string{},
	}
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"extensions": "extensions",
	"charset":    "charset",
	"base-dir":   "base_dir",
	"log-level":  "log_level",
	"format":     "format",
	"registry":   "registries",
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigFilePath, when set, is the only config file read and must exist.
	ConfigFilePath string
	// ConfigDir is searched for .tsexports.yaml when ConfigFilePath is empty.
	ConfigDir string
	// Flags are bound on top of every other source. Only flags the user set
	// override file and environment values.
	Flags *pflag.FlagSet
	// Fs replaces the OS filesystem for config file lookup.
	Fs afero.Fs
}

// Load merges defaults, the config file, TSEXPORTS_* environment variables
// and flags, in increasing precedence. It returns the config and the path
// of the file read, if any.
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	if opts.Fs != nil {
		v.SetFs(opts.Fs)
	}

	defaults := DefaultConfig()
	v.SetDefault("extensions", defaults.Extensions)
	v.SetDefault("charset", defaults.Charset)
	v.SetDefault("base_dir", defaults.BaseDir)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("format", defaults.Format)
	v.SetDefault("registries", defaults.Registries)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if opts.ConfigFilePath != "" {
		v.SetConfigFile(opts.ConfigFilePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("failed to read config file %s: %w", opts.ConfigFilePath, err)
		}
	} else {
		dir := opts.ConfigDir
		if dir == "" {
			dir = "."
		}
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, "", fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, "", fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return &cfg, v.ConfigFileUsed(), nil
}

// Validate checks values that viper cannot type-check.
func (c *Config) Validate() error {
	if !isFormat(c.Format) {
		return fmt.Errorf("invalid format %q: must be one of %s", c.Format, strings.Join(Formats, ", "))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("invalid extension %q: must start with a dot", ext)
		}
	}
	return nil
}

func isFormat(f string) bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

// Level is the slog level for LogLevel.
func (c *Config) Level() slog.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return slog.Level(level)
}
