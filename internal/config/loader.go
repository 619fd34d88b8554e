package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB
	envPrefix         = "MODELVAULT_"
)

// listKeys are config keys whose environment values are comma separated lists.
var listKeys = map[string]bool{
	"load.text_extensions": true,
	"filter.text_file":     true,
	"filter.binary_file":   true,
}

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (MODELVAULT_CRYPTO_SALT, MODELVAULT_LOAD_CONCURRENCY, etc.)
//  2. YAML config file (~/.config/modelvault/config.yaml)
//  3. Hardcoded defaults
//
// # Security Considerations
//
// The file holds the key derivation password, so it MUST have 0600 or 0400
// permissions and live in ~/.config/modelvault/ or /etc/modelvault/.
// Files larger than 1MB are rejected.
//
// # Environment Variable Mapping
//
// The MODELVAULT_ prefix is stripped and the remainder is split on the first
// underscore:
//
//	MODELVAULT_CRYPTO_PASSWORD        -> crypto.password
//	MODELVAULT_LOAD_TEXT_EXTENSIONS   -> load.text_extensions
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dir, "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		// Validate through the opened descriptor to avoid a TOCTOU race.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg, k)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envTransform maps MODELVAULT_SECTION_FIELD_NAME to section.field_name and
// splits list values.
func envTransform(key, value string) (string, interface{}) {
	lower := strings.ToLower(strings.TrimPrefix(key, envPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower, value
	}
	path := parts[0] + "." + parts[1]
	if listKeys[path] {
		return path, splitList(value)
	}
	return path, value
}

// EnsureConfigDir creates the modelvault config directory with 0700
// permissions if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := configDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return nil
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "modelvault"), nil
}

// validateConfigPath checks if path is in allowed directories.
// This validation runs even if the file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Follow symlinks so they cannot escape the allowed directories.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	dir, err := configDir()
	if err != nil {
		return err
	}

	for _, allowed := range []string{dir, "/etc/modelvault"} {
		if resolved, err := filepath.EvalSymlinks(allowed); err == nil {
			allowed = resolved
		}
		if strings.HasPrefix(resolvedPath, allowed+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/modelvault/ or /etc/modelvault/")
}

// validateConfigFileProperties checks file permissions and size of an
// already-opened file.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
// List fields explicitly set to empty in the file or environment are kept.
func applyDefaults(cfg *Config, k *koanf.Koanf) {
	if cfg.Encrypt.Concurrency == 0 {
		cfg.Encrypt.Concurrency = DefaultConcurrency
	}
	if cfg.Load.Concurrency == 0 {
		cfg.Load.Concurrency = DefaultConcurrency
	}
	if !k.Exists("load.text_extensions") {
		cfg.Load.TextExtensions = append([]string(nil), DefaultTextExtensions...)
	}
	if !k.Exists("filter.binary_file") {
		cfg.Filter.BinaryFile = append([]string(nil), DefaultBinaryFile...)
	}
	if cfg.Filter.TextFile == nil {
		cfg.Filter.TextFile = []string{}
	}

	if cfg.ONNX.LibraryPath == "" {
		cfg.ONNX.LibraryPath = os.Getenv("ONNX_PATH")
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
}
