package types

import (
	"errors"
	"net/url"
	"time"
)

// Config holds the backend location and client parameters.
type Config struct {
	ServerURL string        `json:"server_url" yaml:"server_url"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
	DataDir   string        `json:"data_dir" yaml:"data_dir"`
	LogLevel  string        `json:"log_level" yaml:"log_level"`

	// Librarian is the default librarian id for new borrowings. Zero means
	// the operator must pass one explicitly.
	Librarian int64 `json:"librarian" yaml:"librarian"`
}

// Defaults applied when config.yaml leaves a key unset.
const (
	DefaultServerURL = "http://127.0.0.1:3000"
	DefaultTimeout   = 10 * time.Second
	DefaultLogLevel  = "info"
)

// Config validation errors.
var (
	ErrServerURLEmpty   = errors.New("server url must not be empty")
	ErrServerURLInvalid = errors.New("server url must be an absolute http(s) url")
	ErrTimeoutInvalid   = errors.New("timeout must be positive")
	ErrLogLevelUnknown  = errors.New("unknown log level")
)

var knownLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.ServerURL == "" {
		return ErrServerURLEmpty
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrServerURLInvalid
	}
	if c.Timeout <= 0 {
		return ErrTimeoutInvalid
	}
	if c.LogLevel != "" && !knownLogLevels[c.LogLevel] {
		return ErrLogLevelUnknown
	}
	return nil
}
