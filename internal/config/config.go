// Package config provides configuration loading for modelvault.
//
// Configuration is loaded from environment variables with sensible defaults,
// optionally layered over a YAML file (see LoadWithFile).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/modelvault/internal/loader"
	"github.com/fyrsmithlabs/modelvault/internal/negotiate"
)

// Config holds the complete modelvault configuration.
type Config struct {
	Crypto    CryptoConfig    `koanf:"crypto"`
	Encrypt   EncryptConfig   `koanf:"encrypt"`
	Load      LoadConfig      `koanf:"load"`
	Filter    FilterConfig    `koanf:"filter"`
	ONNX      ONNXConfig      `koanf:"onnx"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// CryptoConfig holds the password and salt the model key is derived from.
type CryptoConfig struct {
	Password Secret `koanf:"password"`
	Salt     Secret `koanf:"salt"`
}

// EncryptConfig controls offline directory encryption.
type EncryptConfig struct {
	Concurrency int `koanf:"concurrency"` // files per batch (default: 4)
}

// LoadConfig controls decryption into the virtual store.
type LoadConfig struct {
	Concurrency    int      `koanf:"concurrency"`     // max in-flight decrypts (default: 4)
	TextExtensions []string `koanf:"text_extensions"` // stored as text instead of bytes
}

// FilterConfig mirrors the content negotiator's file filter.
type FilterConfig struct {
	TextFile   []string `koanf:"text_file"`
	BinaryFile []string `koanf:"binary_file"`
}

// ONNXConfig locates the ONNX runtime shared library.
type ONNXConfig struct {
	LibraryPath string `koanf:"library_path"`
}

// LoggingConfig holds the subset of logging settings exposed to users.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	Protocol    string `koanf:"protocol"`
	Insecure    bool   `koanf:"insecure"`
	ServiceName string `koanf:"service_name"`
}

// Default values shared by Load and LoadWithFile.
const (
	DefaultConcurrency = 4
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"
	DefaultServiceName = "modelvault"
)

// DefaultTextExtensions are decrypted into text entries rather than bytes.
var DefaultTextExtensions = loader.DefaultTextExtensions

// DefaultBinaryFile is the negotiator's default binary extension list.
var DefaultBinaryFile = negotiate.DefaultFilter().BinaryFile

// Load loads configuration from environment variables with defaults.
//
// Environment variables:
//   - MODELVAULT_CRYPTO_PASSWORD: key derivation password
//   - MODELVAULT_CRYPTO_SALT: key derivation salt
//   - MODELVAULT_ENCRYPT_CONCURRENCY: files encrypted per batch (default: 4)
//   - MODELVAULT_LOAD_CONCURRENCY: parallel decrypts during load (default: 4)
//   - MODELVAULT_LOAD_TEXT_EXTENSIONS: comma separated (default: .json,.txt,.md,.py,.js,.ts)
//   - MODELVAULT_FILTER_TEXT_FILE: comma separated (default: empty)
//   - MODELVAULT_FILTER_BINARY_FILE: comma separated (default: .onnx)
//   - ONNX_PATH: ONNX runtime library
//   - MODELVAULT_LOGGING_LEVEL / MODELVAULT_LOGGING_FORMAT
//   - OTEL_ENABLE, OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_SERVICE_NAME
func Load() *Config {
	return &Config{
		Crypto: CryptoConfig{
			Password: Secret(os.Getenv("MODELVAULT_CRYPTO_PASSWORD")),
			Salt:     Secret(os.Getenv("MODELVAULT_CRYPTO_SALT")),
		},
		Encrypt: EncryptConfig{
			Concurrency: getEnvInt("MODELVAULT_ENCRYPT_CONCURRENCY", DefaultConcurrency),
		},
		Load: LoadConfig{
			Concurrency:    getEnvInt("MODELVAULT_LOAD_CONCURRENCY", DefaultConcurrency),
			TextExtensions: getEnvList("MODELVAULT_LOAD_TEXT_EXTENSIONS", DefaultTextExtensions),
		},
		Filter: FilterConfig{
			TextFile:   getEnvList("MODELVAULT_FILTER_TEXT_FILE", []string{}),
			BinaryFile: getEnvList("MODELVAULT_FILTER_BINARY_FILE", DefaultBinaryFile),
		},
		ONNX: ONNXConfig{
			LibraryPath: os.Getenv("ONNX_PATH"),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("MODELVAULT_LOGGING_LEVEL", DefaultLogLevel),
			Format: getEnvString("MODELVAULT_LOGGING_FORMAT", DefaultLogFormat),
		},
		Telemetry: TelemetryConfig{
			Enabled:     getEnvBool("OTEL_ENABLE", false),
			Endpoint:    getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Protocol:    getEnvString("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
			Insecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getEnvString("OTEL_SERVICE_NAME", DefaultServiceName),
		},
	}
}

// Validate validates the configuration.
//
// Credentials are not checked here; commands that need a key call
// RequireCredentials.
func (c *Config) Validate() error {
	if c.Encrypt.Concurrency < 1 {
		return fmt.Errorf("encrypt concurrency must be >= 1, got %d", c.Encrypt.Concurrency)
	}
	if c.Load.Concurrency < 1 {
		return fmt.Errorf("load concurrency must be >= 1, got %d", c.Load.Concurrency)
	}
	for _, list := range [][]string{c.Load.TextExtensions, c.Filter.TextFile, c.Filter.BinaryFile} {
		for _, ext := range list {
			if !strings.HasPrefix(ext, ".") {
				return fmt.Errorf("extension %q must start with '.'", ext)
			}
		}
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return errors.New("telemetry endpoint required when telemetry is enabled")
	}
	return nil
}

// RequireCredentials returns an error unless both password and salt are set.
func (c *Config) RequireCredentials() error {
	if !c.Crypto.Password.IsSet() {
		return errors.New("crypto password is required (MODELVAULT_CRYPTO_PASSWORD or --password)")
	}
	if !c.Crypto.Salt.IsSet() {
		return errors.New("crypto salt is required (MODELVAULT_CRYPTO_SALT or --salt)")
	}
	return nil
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return append([]string(nil), defaultValue...)
	}
	return splitList(value)
}

func splitList(value string) []string {
	out := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
