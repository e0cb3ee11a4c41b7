package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/libpanel/pkg/types"
)

// inTempDir runs the test from an empty working directory so no stray .env
// is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadWritesDefaults(t *testing.T) {
	dir := inTempDir(t)
	configDir := filepath.Join(dir, "config")

	cfg, err := Load(configDir)

	require.NoError(t, err)
	assert.Equal(t, types.DefaultServerURL, cfg.ServerURL)
	assert.Equal(t, types.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, types.DefaultLogLevel, cfg.LogLevel)
	assert.Empty(t, cfg.DataDir)
	assert.Zero(t, cfg.Librarian)

	data, err := os.ReadFile(filepath.Join(configDir, FileName))
	require.NoError(t, err)
	assert.Equal(t, DefaultYAML, string(data))
}

func TestLoadPrecedence(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		env   map[string]string
		dotenv string
		check func(t *testing.T, cfg types.Config)
	}{
		{
			name: "file values",
			yaml: "server_url: http://books.local:8080\ntimeout: 3s\nlog_level: DEBUG\nlibrarian: 4\n",
			check: func(t *testing.T, cfg types.Config) {
				assert.Equal(t, "http://books.local:8080", cfg.ServerURL)
				assert.Equal(t, 3*time.Second, cfg.Timeout)
				assert.Equal(t, "debug", cfg.LogLevel)
				assert.Equal(t, int64(4), cfg.Librarian)
			},
		},
		{
			name: "environment overrides file",
			yaml: "server_url: http://books.local:8080\n",
			env:  map[string]string{"LIBPANEL_SERVER_URL": "https://api.example.org", "LIBPANEL_DATA_DIR": "/var/lib/libpanel"},
			check: func(t *testing.T, cfg types.Config) {
				assert.Equal(t, "https://api.example.org", cfg.ServerURL)
				assert.Equal(t, "/var/lib/libpanel", cfg.DataDir)
			},
		},
		{
			name:   "dotenv feeds the environment",
			dotenv: "LIBPANEL_TIMEOUT=45s\n",
			check: func(t *testing.T, cfg types.Config) {
				assert.Equal(t, 45*time.Second, cfg.Timeout)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := inTempDir(t)
			if tt.dotenv != "" {
				// godotenv does not override variables that are already set;
				// register cleanup for the one it will set.
				t.Setenv("LIBPANEL_TIMEOUT", "")
				os.Unsetenv("LIBPANEL_TIMEOUT")
				require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(tt.dotenv), 0o644))
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if tt.yaml != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(tt.yaml), 0o644))
			}

			cfg, err := Load(dir)

			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{name: "bad scheme", yaml: "server_url: ftp://books\n", want: types.ErrServerURLInvalid},
		{name: "zero timeout", yaml: "timeout: 0s\n", want: types.ErrTimeoutInvalid},
		{name: "unknown level", yaml: "log_level: chatty\n", want: types.ErrLogLevelUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := inTempDir(t)
			require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(tt.yaml), 0o644))

			_, err := Load(dir)

			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEnsureDefaultFileKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("server_url: http://x\n"), 0o644))

	require.NoError(t, EnsureDefaultFile(dir))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "server_url: http://x\n", string(data))
}
