package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/NamanBalaji/bsfetch/internal/chunk"
	"github.com/NamanBalaji/bsfetch/internal/locator"
)

const (
	appName        = "bsfetch"
	configFileName = "bsfetch"

	// TokenEnv overrides accessToken from the file.
	TokenEnv = "BSFETCH_ACCESS_TOKEN"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the configuration options for the application.
type Config struct {
	APIURL                     string      `yaml:"apiUrl,omitempty"`
	APIVersion                 string      `yaml:"apiVersion,omitempty"`
	AccessToken                string      `yaml:"accessToken,omitempty"`
	RetryAttempts              int         `yaml:"retryAttempts,omitempty"`
	FileMultipartSizeThreshold int64       `yaml:"fileMultipartSizeThreshold,omitempty"`
	MaxConcurrency             int         `yaml:"maxConcurrency,omitempty"`
	DownloadDir                string      `yaml:"downloadDir,omitempty"`
	DatabasePath               string      `yaml:"databasePath,omitempty"`
	LogPath                    string      `yaml:"logPath,omitempty"`
	Http                       *HttpConfig `yaml:"http,omitempty"`
	S3                         *S3Config   `yaml:"s3,omitempty"`
}

// HttpConfig holds options for range requests.
type HttpConfig struct {
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	RetryDelay time.Duration `yaml:"retryDelay,omitempty"`
	UserAgent  string        `yaml:"userAgent,omitempty"`
}

// S3Config holds options for transfers read directly from S3.
type S3Config struct {
	Profile       string        `yaml:"profile,omitempty"`
	Region        string        `yaml:"region,omitempty"`
	PresignExpiry time.Duration `yaml:"presignExpiry,omitempty"`
}

// Path returns the location GetConfig reads from.
func Path() string {
	return filepath.Join(xdg.ConfigHome, configFileName)
}

// GetConfig reads the configuration file and returns a Config struct.
// If the configuration file does not exist, it returns the default configuration.
func GetConfig() (*Config, error) {
	return Load(Path())
}

// Load reads the configuration at path and fills unset fields with defaults.
func Load(path string) (*Config, error) {
	defaults := DefaultConfig()

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return withEnv(&defaults), nil
		}

		return nil, err
	}

	if len(b) == 0 {
		return withEnv(&defaults), nil
	}

	var cfg Config

	err = yaml.Unmarshal(b, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}

	httpCfg := zeroOr(cfg.Http, defaults.Http)
	s3Cfg := zeroOr(cfg.S3, defaults.S3)

	merged := &Config{
		APIURL:                     zeroOr(cfg.APIURL, defaults.APIURL),
		APIVersion:                 zeroOr(cfg.APIVersion, defaults.APIVersion),
		AccessToken:                cfg.AccessToken,
		RetryAttempts:              zeroOr(cfg.RetryAttempts, defaults.RetryAttempts),
		FileMultipartSizeThreshold: zeroOr(cfg.FileMultipartSizeThreshold, defaults.FileMultipartSizeThreshold),
		MaxConcurrency:             zeroOr(cfg.MaxConcurrency, defaults.MaxConcurrency),
		DownloadDir:                zeroOr(cfg.DownloadDir, defaults.DownloadDir),
		DatabasePath:               zeroOr(cfg.DatabasePath, defaults.DatabasePath),
		LogPath:                    zeroOr(cfg.LogPath, defaults.LogPath),
		Http: &HttpConfig{
			Timeout:    zeroOr(httpCfg.Timeout, defaults.Http.Timeout),
			RetryDelay: zeroOr(httpCfg.RetryDelay, defaults.Http.RetryDelay),
			UserAgent:  httpCfg.UserAgent,
		},
		S3: &S3Config{
			Profile:       s3Cfg.Profile,
			Region:        s3Cfg.Region,
			PresignExpiry: zeroOr(s3Cfg.PresignExpiry, defaults.S3.PresignExpiry),
		},
	}

	if err := merged.Validate(); err != nil {
		return nil, err
	}

	return withEnv(merged), nil
}

// Validate rejects values the transfer engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.RetryAttempts < 0:
		return fmt.Errorf("%w: retryAttempts must not be negative", ErrInvalidConfig)
	case c.FileMultipartSizeThreshold < chunk.MinChunkSize:
		return fmt.Errorf("%w: fileMultipartSizeThreshold must be at least %d bytes", ErrInvalidConfig, chunk.MinChunkSize)
	case c.MaxConcurrency < 1:
		return fmt.Errorf("%w: maxConcurrency must be at least 1", ErrInvalidConfig)
	case c.S3 != nil && c.S3.PresignExpiry <= locator.SafetyMargin:
		// Shorter URLs would already be due for replacement when issued.
		return fmt.Errorf("%w: s3.presignExpiry must be longer than %v", ErrInvalidConfig, locator.SafetyMargin)
	}

	return nil
}

func DefaultConfig() Config {
	return Config{
		APIURL:                     apiURL,
		APIVersion:                 apiVersion,
		RetryAttempts:              retryAttempts,
		FileMultipartSizeThreshold: fileMultipartSizeThreshold,
		MaxConcurrency:             maxConcurrency,
		DownloadDir:                downloadDir,
		DatabasePath:               databasePath,
		LogPath:                    logPath,
		Http: &HttpConfig{
			Timeout:    requestTimeout,
			RetryDelay: retryDelay,
		},
		S3: &S3Config{
			PresignExpiry: presignExpiry,
		},
	}
}

func withEnv(cfg *Config) *Config {
	if token := os.Getenv(TokenEnv); token != "" {
		cfg.AccessToken = token
	}

	return cfg
}

// zeroOr returns def if v is the zero value for its type.
func zeroOr[T any](v, def T) T {
	if reflect.ValueOf(v).IsZero() {
		return def
	}

	return v
}
