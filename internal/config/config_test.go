package config

import (
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/fyrsmithlabs/modelvault/internal/loader"
	"github.com/fyrsmithlabs/modelvault/internal/negotiate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv clears keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		if old, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, old) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t,
		"MODELVAULT_CRYPTO_PASSWORD", "MODELVAULT_CRYPTO_SALT",
		"MODELVAULT_ENCRYPT_CONCURRENCY", "MODELVAULT_LOAD_CONCURRENCY",
		"MODELVAULT_LOAD_TEXT_EXTENSIONS", "MODELVAULT_FILTER_TEXT_FILE",
		"MODELVAULT_FILTER_BINARY_FILE", "MODELVAULT_LOGGING_LEVEL",
		"MODELVAULT_LOGGING_FORMAT", "OTEL_ENABLE", "OTEL_SERVICE_NAME",
	)

	cfg := Load()

	assert.False(t, cfg.Crypto.Password.IsSet())
	assert.False(t, cfg.Crypto.Salt.IsSet())
	assert.Equal(t, 4, cfg.Encrypt.Concurrency)
	assert.Equal(t, 4, cfg.Load.Concurrency)
	assert.Equal(t, []string{".json", ".txt", ".md", ".py", ".js", ".ts"}, cfg.Load.TextExtensions)
	assert.Equal(t, []string{".onnx"}, cfg.Filter.BinaryFile)
	assert.Empty(t, cfg.Filter.TextFile)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Logging.Format)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, DefaultServiceName, cfg.Telemetry.ServiceName)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("MODELVAULT_CRYPTO_PASSWORD", "pw")
	t.Setenv("MODELVAULT_CRYPTO_SALT", "s")
	t.Setenv("MODELVAULT_ENCRYPT_CONCURRENCY", "8")
	t.Setenv("MODELVAULT_LOAD_TEXT_EXTENSIONS", ".json, .yaml")
	t.Setenv("MODELVAULT_FILTER_BINARY_FILE", ".onnx,.bin")
	t.Setenv("MODELVAULT_FILTER_TEXT_FILE", "")

	cfg := Load()

	assert.Equal(t, "pw", cfg.Crypto.Password.Value())
	assert.Equal(t, "s", cfg.Crypto.Salt.Value())
	assert.Equal(t, 8, cfg.Encrypt.Concurrency)
	assert.Equal(t, []string{".json", ".yaml"}, cfg.Load.TextExtensions)
	assert.Equal(t, []string{".onnx", ".bin"}, cfg.Filter.BinaryFile)
	assert.Empty(t, cfg.Filter.TextFile)
	require.NoError(t, cfg.RequireCredentials())
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("MODELVAULT_LOAD_CONCURRENCY", "lots")
	assert.Equal(t, DefaultConcurrency, Load().Load.Concurrency)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Encrypt: EncryptConfig{Concurrency: 4},
			Load:    LoadConfig{Concurrency: 4, TextExtensions: []string{".json"}},
			Filter:  FilterConfig{BinaryFile: []string{".onnx"}},
			Logging: LoggingConfig{Level: "info", Format: "json"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero encrypt concurrency", mutate: func(c *Config) { c.Encrypt.Concurrency = 0 }, wantErr: "encrypt concurrency"},
		{name: "negative load concurrency", mutate: func(c *Config) { c.Load.Concurrency = -1 }, wantErr: "load concurrency"},
		{name: "extension without dot", mutate: func(c *Config) { c.Filter.TextFile = []string{"json"} }, wantErr: "must start with '.'"},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging format"},
		{
			name: "telemetry without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Endpoint = ""
			},
			wantErr: "telemetry endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_RequireCredentials(t *testing.T) {
	cfg := &Config{}
	assert.ErrorContains(t, cfg.RequireCredentials(), "password")

	cfg.Crypto.Password = "pw"
	assert.ErrorContains(t, cfg.RequireCredentials(), "salt")

	cfg.Crypto.Salt = "s"
	assert.NoError(t, cfg.RequireCredentials())
}

func TestSecret_NeverPrinted(t *testing.T) {
	s := Secret("hunter2")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.NotContains(t, fmt.Sprintf("%#v", s), "hunter2")

	data, err := json.Marshal(struct{ P Secret }{P: s})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")

	assert.Equal(t, "hunter2", s.Value())
	assert.Equal(t, "", Secret("").String())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, "1m30s", d.Duration().String())
	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestDefaults_MatchComponents(t *testing.T) {
	assert.Equal(t, loader.DefaultTextExtensions, DefaultTextExtensions)
	assert.Equal(t, negotiate.DefaultFilter().BinaryFile, DefaultBinaryFile)

	unsetEnv(t, "MODELVAULT_LOAD_TEXT_EXTENSIONS", "MODELVAULT_FILTER_BINARY_FILE")
	cfg := Load()
	assert.Equal(t, loader.DefaultTextExtensions, cfg.Load.TextExtensions)
	assert.Equal(t, negotiate.DefaultFilter().BinaryFile, cfg.Filter.BinaryFile)
}
