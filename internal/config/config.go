// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/docchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete docchat configuration.
type Config struct {
	// Conversation service
	API APIConfig `toml:"api" json:"api"`

	// Chat behaviour
	Chat ChatConfig `toml:"chat" json:"chat"`

	// Local persistence of conversation ids and location
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Location sent with searches
	Location LocationConfig `toml:"location" json:"location"`

	// Logging
	Logging LoggingConfig `toml:"logging" json:"logging"`

	// Terminal UI
	UI UIConfig `toml:"ui" json:"ui"`
}

// APIConfig contains the conversation service settings.
type APIConfig struct {
	// BaseURL is the service origin
	BaseURL string `toml:"base_url" json:"base_url"`

	// PathPrefix is prepended to every endpoint path
	PathPrefix string `toml:"path_prefix" json:"path_prefix"`

	// Timeout in seconds for non-streaming calls
	Timeout int `toml:"timeout" json:"timeout"`

	// RateLimit in requests per second (0 disables)
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`

	// Burst above RateLimit
	Burst int `toml:"burst" json:"burst"`
}

// ChatConfig contains chat session settings.
type ChatConfig struct {
	// DefaultDomain is used when no domain is given
	DefaultDomain string `toml:"default_domain" json:"default_domain"`

	// KeyPrefix namespaces persisted keys ({prefix}_conversation_{domain})
	KeyPrefix string `toml:"key_prefix" json:"key_prefix"`

	// ErrorText is the assistant message shown when a submission fails
	ErrorText string `toml:"error_text" json:"error_text"`

	// SentinelMode is "buffer" (scan across chunks) or "chunk" (chunk-local)
	SentinelMode string `toml:"sentinel_mode" json:"sentinel_mode"`
}

// StorageConfig selects the key-value backend.
type StorageConfig struct {
	// Backend is sqlite, pebble, file or memory
	Backend string `toml:"backend" json:"backend"`

	// Path is the data directory (default: the config directory)
	Path string `toml:"path" json:"path"`
}

// LocationConfig controls the location attached to searches.
type LocationConfig struct {
	// Enabled turns location lookup on
	Enabled bool `toml:"enabled" json:"enabled"`

	// Latitude and Longitude act as the device fix when not both zero
	Latitude  float64 `toml:"latitude" json:"latitude"`
	Longitude float64 `toml:"longitude" json:"longitude"`

	// ReverseGeocodeURL resolves a country from a device fix
	ReverseGeocodeURL string `toml:"reverse_geocode_url" json:"reverse_geocode_url"`

	// IPProviders are tried in order: ipapi, freeipapi
	IPProviders []string `toml:"ip_providers" json:"ip_providers"`

	// Timeout in seconds for each lookup
	Timeout int `toml:"timeout" json:"timeout"`
}

// LoggingConfig contains log settings.
type LoggingConfig struct {
	// Level is trace, debug, info, warn, error or disabled
	Level string `toml:"level" json:"level"`

	// Pretty enables human-readable console output
	Pretty bool `toml:"pretty" json:"pretty"`

	// File receives logs instead of stderr when set
	File string `toml:"file" json:"file"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// WordWrap is the markdown wrap width in cells
	WordWrap int `toml:"word_wrap" json:"word_wrap"`

	// MaxFPS caps streaming re-renders per second
	MaxFPS int `toml:"max_fps" json:"max_fps"`

	// SanitizeHTML runs rendered HTML through the UGC policy
	SanitizeHTML bool `toml:"sanitize_html" json:"sanitize_html"`

	// HighlightCode colors fenced code blocks
	HighlightCode bool `toml:"highlight_code" json:"highlight_code"`

	// CodeStyle is the chroma style for code blocks
	CodeStyle string `toml:"code_style" json:"code_style"`

	// Theme is dark, light or auto
	Theme string `toml:"theme" json:"theme"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    "http://localhost:8000",
			PathPrefix: "/api/v1",
			Timeout:    30,
			RateLimit:  5,
			Burst:      2,
		},
		Chat: ChatConfig{
			DefaultDomain: "general",
			KeyPrefix:     "APP",
			ErrorText:     "Error processing your request",
			SentinelMode:  "buffer",
		},
		Storage: StorageConfig{
			Backend: "sqlite",
		},
		Location: LocationConfig{
			Enabled:           true,
			ReverseGeocodeURL: "https://api.bigdatacloud.net/data/reverse-geocode-client",
			IPProviders:       []string{"ipapi", "freeipapi"},
			Timeout:           10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		UI: UIConfig{
			WordWrap:      80,
			MaxFPS:        30,
			SanitizeHTML:  true,
			HighlightCode: true,
			CodeStyle:     "github",
			Theme:         "auto",
		},
	}
}

// Known option values.
var (
	validBackends      = []string{"sqlite", "pebble", "file", "memory"}
	validSentinelModes = []string{"buffer", "chunk"}
	validLogLevels     = []string{"trace", "debug", "info", "warn", "warning", "error", "disabled", "off", "none"}
	validThemes        = []string{"auto", "dark", "light"}
	validIPProviders   = []string{"ipapi", "freeipapi"}
)

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the docchat configuration directory. DOCCHAT_HOME overrides the
// default ~/.docchat.
func Dir() (string, error) {
	if home := os.Getenv("DOCCHAT_HOME"); home != "" {
		return home, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".docchat"), nil
}

// PathTOML returns the path to the TOML config file.
func PathTOML() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// PathJSON returns the path to the JSON config file.
func PathJSON() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureDir ensures the config directory exists.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// DataDir returns the storage directory: storage.path or the config directory.
func (c *Config) DataDir() (string, error) {
	if c.Storage.Path != "" {
		return expandHome(c.Storage.Path), nil
	}
	return Dir()
}

// LogFile returns the configured log file path with ~ expanded.
func (c *Config) LogFile() string {
	return expandHome(c.Logging.File)
}

// APITimeout returns api.timeout as a duration.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.Timeout) * time.Second
}

// LocationTimeout returns location.timeout as a duration.
func (c *Config) LocationTimeout() time.Duration {
	return time.Duration(c.Location.Timeout) * time.Second
}

// HasDeviceFix reports whether a fixed latitude/longitude is configured.
func (c *Config) HasDeviceFix() bool {
	return c.Location.Latitude != 0 || c.Location.Longitude != 0
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	tomlPath, err := PathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			return LoadFromPath(tomlPath)
		}
	}

	jsonPath, err := PathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			return LoadFromPath(jsonPath)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys missing from the file keep
// the values already in cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := PathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# docchat configuration file")
	fmt.Fprintln(&buf, "# Generated by docchat - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration as indented JSON.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}

// Validate validates the configuration and returns ValidateErrors when any
// field is invalid.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// ==========================================================================
	// API
	// ==========================================================================

	if u, err := url.Parse(c.API.BaseURL); err != nil {
		add("api.base_url", "invalid URL: %v", err)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("api.base_url", "scheme must be http or https, got '%s'", u.Scheme)
	} else if u.Host == "" {
		add("api.base_url", "missing host")
	}
	if c.API.PathPrefix != "" && !strings.HasPrefix(c.API.PathPrefix, "/") {
		add("api.path_prefix", "must start with '/'")
	}
	if c.API.Timeout < 1 || c.API.Timeout > 600 {
		add("api.timeout", "must be between 1 and 600 seconds, got %d", c.API.Timeout)
	}
	if c.API.RateLimit < 0 {
		add("api.rate_limit", "cannot be negative")
	}
	if c.API.Burst < 1 {
		add("api.burst", "must be at least 1")
	}

	// ==========================================================================
	// Chat
	// ==========================================================================

	if strings.TrimSpace(c.Chat.DefaultDomain) == "" || strings.ContainsAny(c.Chat.DefaultDomain, " \t\n") {
		add("chat.default_domain", "must be a single non-empty word")
	}
	if strings.ContainsAny(c.Chat.KeyPrefix, " \t\n") {
		add("chat.key_prefix", "cannot contain whitespace")
	}
	if strings.TrimSpace(c.Chat.ErrorText) == "" {
		add("chat.error_text", "cannot be empty")
	}
	if !oneOf(c.Chat.SentinelMode, validSentinelModes) {
		add("chat.sentinel_mode", "invalid mode '%s', must be one of: %s", c.Chat.SentinelMode, strings.Join(validSentinelModes, ", "))
	}

	// ==========================================================================
	// Storage
	// ==========================================================================

	if !oneOf(c.Storage.Backend, validBackends) {
		add("storage.backend", "invalid backend '%s', must be one of: %s", c.Storage.Backend, strings.Join(validBackends, ", "))
	}

	// ==========================================================================
	// Location
	// ==========================================================================

	if c.Location.Latitude < -90 || c.Location.Latitude > 90 {
		add("location.latitude", "must be between -90 and 90")
	}
	if c.Location.Longitude < -180 || c.Location.Longitude > 180 {
		add("location.longitude", "must be between -180 and 180")
	}
	if c.Location.ReverseGeocodeURL != "" {
		if _, err := url.ParseRequestURI(c.Location.ReverseGeocodeURL); err != nil {
			add("location.reverse_geocode_url", "invalid URL: %v", err)
		}
	}
	for _, p := range c.Location.IPProviders {
		if !oneOf(p, validIPProviders) {
			add("location.ip_providers", "unknown provider '%s', must be one of: %s", p, strings.Join(validIPProviders, ", "))
		}
	}
	if c.Location.Timeout < 1 || c.Location.Timeout > 120 {
		add("location.timeout", "must be between 1 and 120 seconds")
	}

	// ==========================================================================
	// Logging / UI
	// ==========================================================================

	if !oneOf(c.Logging.Level, validLogLevels) {
		add("logging.level", "invalid level '%s'", c.Logging.Level)
	}
	if c.UI.WordWrap < 20 || c.UI.WordWrap > 400 {
		add("ui.word_wrap", "must be between 20 and 400")
	}
	if c.UI.MaxFPS < 1 || c.UI.MaxFPS > 120 {
		add("ui.max_fps", "must be between 1 and 120")
	}
	if !oneOf(c.UI.Theme, validThemes) {
		add("ui.theme", "invalid theme '%s', must be one of: %s", c.UI.Theme, strings.Join(validThemes, ", "))
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero-value fields that have no meaningful zero.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.API.BaseURL == "" {
		c.API.BaseURL = defaults.API.BaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = defaults.API.Timeout
	}
	if c.API.Burst == 0 {
		c.API.Burst = defaults.API.Burst
	}

	if c.Chat.DefaultDomain == "" {
		c.Chat.DefaultDomain = defaults.Chat.DefaultDomain
	}
	if c.Chat.ErrorText == "" {
		c.Chat.ErrorText = defaults.Chat.ErrorText
	}
	if c.Chat.SentinelMode == "" {
		c.Chat.SentinelMode = defaults.Chat.SentinelMode
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}

	if c.Location.Timeout == 0 {
		c.Location.Timeout = defaults.Location.Timeout
	}

	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}

	if c.UI.WordWrap == 0 {
		c.UI.WordWrap = defaults.UI.WordWrap
	}
	if c.UI.MaxFPS == 0 {
		c.UI.MaxFPS = defaults.UI.MaxFPS
	}
	if c.UI.CodeStyle == "" {
		c.UI.CodeStyle = defaults.UI.CodeStyle
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - DOCCHAT_AI_URL: overrides api.base_url
//   - DOCCHAT_APP_PREFIX: overrides chat.key_prefix
//   - DOCCHAT_DOMAIN: overrides chat.default_domain
//   - DOCCHAT_STORAGE: overrides storage.backend
//   - DOCCHAT_LOG_LEVEL: overrides logging.level
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("DOCCHAT_AI_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v, ok := os.LookupEnv("DOCCHAT_APP_PREFIX"); ok {
		c.Chat.KeyPrefix = v
	}
	if v := os.Getenv("DOCCHAT_DOMAIN"); v != "" {
		c.Chat.DefaultDomain = v
	}
	if v := os.Getenv("DOCCHAT_STORAGE"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("DOCCHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "api.base_url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "api.base_url").
// String values are converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strings.TrimSpace(strVal), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strings.TrimSpace(strVal), 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			switch strings.ToLower(strings.TrimSpace(strVal)) {
			case "1", "true", "yes", "on":
				field.SetBool(true)
			case "0", "false", "no", "off", "":
				field.SetBool(false)
			default:
				return fmt.Errorf("invalid boolean value: %q", strVal)
			}
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, item := range strings.Split(strVal, ",") {
					if item = strings.TrimSpace(item); item != "" {
						items = append(items, item)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	if value == nil {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"api.base_url",
		"api.path_prefix",
		"api.timeout",
		"api.rate_limit",
		"api.burst",
		"chat.default_domain",
		"chat.key_prefix",
		"chat.error_text",
		"chat.sentinel_mode",
		"storage.backend",
		"storage.path",
		"location.enabled",
		"location.latitude",
		"location.longitude",
		"location.reverse_geocode_url",
		"location.ip_providers",
		"location.timeout",
		"logging.level",
		"logging.pretty",
		"logging.file",
		"ui.word_wrap",
		"ui.max_fps",
		"ui.sanitize_html",
		"ui.highlight_code",
		"ui.code_style",
		"ui.theme",
	}
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Location.IPProviders != nil {
		clone.Location.IPProviders = append([]string(nil), c.Location.IPProviders...)
	}
	return &clone
}

// String returns the config as indented JSON for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
