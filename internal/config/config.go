// Package config loads the panel configuration from config.yaml, the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/libpanel/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	// FileName is the config file inside the config directory.
	FileName = "config.yaml"

	// EnvPrefix prefixes environment overrides, e.g. LIBPANEL_SERVER_URL.
	EnvPrefix = "LIBPANEL"
)

// Config keys.
const (
	KeyServerURL = "server_url"
	KeyTimeout   = "timeout"
	KeyLogLevel  = "log_level"
	KeyDataDir   = "data_dir"
	KeyLibrarian = "librarian"
)

// DefaultYAML is written to config.yaml on first run.
const DefaultYAML = `# libpanel configuration

# Base URL of the library REST backend
server_url: http://127.0.0.1:3000

# Per-request timeout
timeout: 10s

# debug, info, warn or error
log_level: info

# Session directory (optional; overridable by --data-dir)
# data_dir:

# Librarian id used by "borrow create" when --librarian is omitted
# librarian: 1
`

// Load reads config.yaml from configDir, creating the directory and a
// default file on first run. A .env file in the working directory is
// loaded into the environment first; a missing .env is not an error.
// Environment variables with the LIBPANEL_ prefix override the file.
func Load(configDir string) (types.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return types.Config{}, fmt.Errorf("load .env: %w", err)
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return types.Config{}, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := EnsureDefaultFile(configDir); err != nil {
		return types.Config{}, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(KeyServerURL, types.DefaultServerURL)
	v.SetDefault(KeyTimeout, types.DefaultTimeout)
	v.SetDefault(KeyLogLevel, types.DefaultLogLevel)
	v.SetDefault(KeyDataDir, "")
	v.SetDefault(KeyLibrarian, 0)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := types.Config{
		ServerURL: v.GetString(KeyServerURL),
		Timeout:   v.GetDuration(KeyTimeout),
		LogLevel:  strings.ToLower(v.GetString(KeyLogLevel)),
		DataDir:   v.GetString(KeyDataDir),
		Librarian: v.GetInt64(KeyLibrarian),
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// EnsureDefaultFile writes DefaultYAML to configDir/config.yaml unless the
// file already exists.
func EnsureDefaultFile(configDir string) error {
	path := filepath.Join(configDir, FileName)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(DefaultYAML), 0o644)
}
