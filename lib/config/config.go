// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/trace-agent/lib/sealed"
)

// OverlayEnvironment names the environment variable holding the path
// of the overlay configuration file.
const OverlayEnvironment = "CONFIG_PATH"

// DefaultPath is the configuration file read when --config is not
// given.
const DefaultPath = "config.yaml"

// Protocol values for RemoteLogProto.
const (
	ProtocolTCP  = "TCP"
	ProtocolUDP  = "UDP"
	ProtocolFile = "FILE"
)

// Start positions for LogFileStartAt.
const (
	StartAtEnd       = "end"
	StartAtBeginning = "beginning"
)

// Config is the agent configuration.
type Config struct {
	// APIClarityURL is the control plane base URL.
	APIClarityURL string `yaml:"apiclarity-url"`

	// APIClarityToken is the trace-source token. Leave empty when
	// TokenSealedPath is set.
	APIClarityToken string `yaml:"apiclarity-token"`

	// TokenSealedPath is an age-encrypted file holding the token, and
	// TokenIdentityPath the age identity that opens it.
	TokenSealedPath   string `yaml:"apiclarity-token-sealed-path"`
	TokenIdentityPath string `yaml:"apiclarity-token-identity-path"`

	// CertPath is a PEM file added to the system trust pool.
	CertPath string `yaml:"apiclarity-cert-path"`

	// CertHostname is the name expected on the control plane's
	// certificate. Empty means the URL host.
	CertHostname string `yaml:"apiclarity-cert-hostname"`

	// Compression is "", "gzip" or "zstd".
	Compression string `yaml:"apiclarity-compression"`

	TimeoutSeconds int `yaml:"apiclarity-timeout-seconds"`

	RemoteLogPort  int    `yaml:"remote-log-port"`
	RemoteLogProto string `yaml:"remote-log-proto"`

	// MaxLineBytes is the longest trace line accepted from a
	// connection or file.
	MaxLineBytes int `yaml:"max-line-bytes"`

	// QueueSize is the trace queue capacity.
	QueueSize int `yaml:"queue-size"`

	RefreshIntervalSeconds int `yaml:"refresh-interval-seconds"`

	LogFilePath                string `yaml:"log-file-path"`
	LogFileDelimiter           string `yaml:"log-file-delimiter"`
	LogFileField               int    `yaml:"log-file-field"`
	LogFileStartAt             string `yaml:"log-file-start-at"`
	LogFileCheckpointPath      string `yaml:"log-file-checkpoint-path"`
	LogFilePollIntervalSeconds int    `yaml:"log-file-poll-interval-seconds"`

	Debug bool `yaml:"debug"`
}

// Default returns the configuration before any file is applied.
func Default() *Config {
	return &Config{
		TimeoutSeconds:             30,
		RemoteLogPort:              5140,
		RemoteLogProto:             ProtocolTCP,
		MaxLineBytes:               16 << 20,
		QueueSize:                  100,
		RefreshIntervalSeconds:     30,
		LogFileDelimiter:           "|",
		LogFileField:               1,
		LogFileStartAt:             StartAtEnd,
		LogFilePollIntervalSeconds: 1,
	}
}

// Load builds the configuration from defaults, the file at path, and
// the CONFIG_PATH overlay. An empty path skips the second layer. An
// overlay that is set but cannot be read or parsed is an error rather
// than being skipped. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if overlay := os.Getenv(OverlayEnvironment); overlay != "" {
		if err := cfg.loadFile(overlay); err != nil {
			return nil, fmt.Errorf("%s overlay: %w", OverlayEnvironment, err)
		}
	}

	cfg.expandVariables()
	return cfg, nil
}

// loadFile merges one file into c. Keys absent from the file keep
// their current values.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	for _, field := range []*string{
		&c.TokenSealedPath,
		&c.TokenIdentityPath,
		&c.CertPath,
		&c.LogFilePath,
		&c.LogFileCheckpointPath,
	} {
		*field = expandVars(*field)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate normalizes c and reports every problem found. It strips a
// trailing slash from the URL and upper-cases the protocol.
func (c *Config) Validate() error {
	var errs []error

	c.APIClarityURL = strings.TrimSuffix(c.APIClarityURL, "/")
	c.RemoteLogProto = strings.ToUpper(c.RemoteLogProto)

	if c.APIClarityURL == "" {
		errs = append(errs, errors.New("apiclarity-url is required"))
	} else if parsed, err := url.Parse(c.APIClarityURL); err != nil {
		errs = append(errs, fmt.Errorf("apiclarity-url: %w", err))
	} else if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("apiclarity-url %q must be an http or https URL with a host", c.APIClarityURL))
	}

	switch {
	case c.TokenSealedPath != "" && c.TokenIdentityPath == "":
		errs = append(errs, errors.New("apiclarity-token-identity-path is required with apiclarity-token-sealed-path"))
	case c.TokenSealedPath != "" && c.APIClarityToken != "":
		errs = append(errs, errors.New("set only one of apiclarity-token and apiclarity-token-sealed-path"))
	case c.TokenSealedPath == "" && c.APIClarityToken == "":
		errs = append(errs, errors.New("apiclarity-token is required"))
	}

	switch c.Compression {
	case "", "none", "gzip", "zstd":
	default:
		errs = append(errs, fmt.Errorf("apiclarity-compression must be one of: gzip, zstd (got %q)", c.Compression))
	}

	switch c.RemoteLogProto {
	case ProtocolTCP, ProtocolUDP:
		if c.RemoteLogPort < 1 || c.RemoteLogPort > 65535 {
			errs = append(errs, fmt.Errorf("remote-log-port %d out of range", c.RemoteLogPort))
		}
	case ProtocolFile:
		if c.LogFilePath == "" {
			errs = append(errs, errors.New("log-file-path is required when remote-log-proto is FILE"))
		}
		if c.LogFileField < 0 {
			errs = append(errs, fmt.Errorf("log-file-field must not be negative, got %d", c.LogFileField))
		}
		if c.LogFileStartAt != StartAtEnd && c.LogFileStartAt != StartAtBeginning {
			errs = append(errs, fmt.Errorf("log-file-start-at must be one of: end, beginning (got %q)", c.LogFileStartAt))
		}
		if c.LogFilePollIntervalSeconds <= 0 {
			errs = append(errs, errors.New("log-file-poll-interval-seconds must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("remote-log-proto must be one of: TCP, UDP, FILE (got %q)", c.RemoteLogProto))
	}

	if c.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("apiclarity-timeout-seconds must be positive"))
	}
	if c.MaxLineBytes <= 0 {
		errs = append(errs, errors.New("max-line-bytes must be positive"))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, errors.New("queue-size must be positive"))
	}
	if c.RefreshIntervalSeconds <= 0 {
		errs = append(errs, errors.New("refresh-interval-seconds must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Timeout is the per-request control plane timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RefreshInterval is the allow-list poll period.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// PollInterval is the file tail's fallback poll period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.LogFilePollIntervalSeconds) * time.Second
}

// Token returns the trace-source token, decrypting the sealed token
// file when one is configured. Surrounding whitespace is removed.
func (c *Config) Token() (string, error) {
	if c.TokenSealedPath == "" {
		return strings.TrimSpace(c.APIClarityToken), nil
	}
	plaintext, err := sealed.DecryptFile(c.TokenSealedPath, c.TokenIdentityPath)
	if err != nil {
		return "", fmt.Errorf("unsealing token: %w", err)
	}
	token := strings.TrimSpace(string(plaintext))
	if token == "" {
		return "", fmt.Errorf("unsealing token: %s holds an empty token", c.TokenSealedPath)
	}
	return token, nil
}

// Redacted renders c as YAML with the token replaced by asterisks of
// the same length.
func (c *Config) Redacted() string {
	masked := *c
	masked.APIClarityToken = strings.Repeat("*", len(c.APIClarityToken))
	data, err := yaml.Marshal(&masked)
	if err != nil {
		return fmt.Sprintf("(unrenderable config: %v)", err)
	}
	return string(data)
}
