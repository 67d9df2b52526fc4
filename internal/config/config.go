// Package config defines the skillpack settings stored in
// ~/.skillpack/config.json and decodes them from viper.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/sirupsen/logrus"
	"github.com/smy-101/skillpack/internal/archive"
	"github.com/smy-101/skillpack/internal/github"
	"github.com/spf13/viper"
)

const (
	KeyGitHubToken    = "github_token"
	KeyProxy          = "proxy"
	KeyAPIBaseURL     = "api_base_url"
	KeyRawBaseURL     = "raw_base_url"
	KeyOutputDir      = "output_dir"
	KeyBatchPolicy    = "batch_policy"
	KeyRequestTimeout = "request_timeout"
	KeyConcurrency    = "concurrency"
	KeyLogLevel       = "log_level"
	KeyLogFormat      = "log_format"

	dirName  = ".skillpack"
	fileName = "config.json"
)

// Key describes one configuration key.
type Key struct {
	Name        string
	Default     any
	Description string
	Secret      bool
	// Env lists environment variables consulted before the config file.
	Env []string
}

var Keys = []Key{
	{Name: KeyGitHubToken, Default: "", Description: "GitHub token used for API requests", Secret: true, Env: []string{"SKILLPACK_GITHUB_TOKEN", "GITHUB_TOKEN"}},
	{Name: KeyProxy, Default: "", Description: "HTTP proxy URL"},
	{Name: KeyAPIBaseURL, Default: github.DefaultAPIBaseURL, Description: "GitHub REST API base URL"},
	{Name: KeyRawBaseURL, Default: github.DefaultRawBaseURL, Description: "raw content host base URL"},
	{Name: KeyOutputDir, Default: ".", Description: "directory receiving the claude-skills folder"},
	{Name: KeyBatchPolicy, Default: string(archive.PolicyFailFast), Description: "fail_fast or partial"},
	{Name: KeyRequestTimeout, Default: "30s", Description: "per-request timeout"},
	{Name: KeyConcurrency, Default: 5, Description: "concurrent downloads and manifest fetches"},
	{Name: KeyLogLevel, Default: "warn", Description: "log level (debug, info, warn, error)"},
	{Name: KeyLogFormat, Default: "text", Description: "log format (text or json)"},
}

// Settings 解码后的配置
type Settings struct {
	GitHubToken    string         `mapstructure:"github_token"`
	Proxy          string         `mapstructure:"proxy"`
	APIBaseURL     string         `mapstructure:"api_base_url"`
	RawBaseURL     string         `mapstructure:"raw_base_url"`
	OutputDir      string         `mapstructure:"output_dir"`
	BatchPolicy    archive.Policy `mapstructure:"batch_policy"`
	RequestTimeout time.Duration  `mapstructure:"request_timeout"`
	Concurrency    int            `mapstructure:"concurrency"`
	LogLevel       logrus.Level   `mapstructure:"log_level"`
	LogFormat      string         `mapstructure:"log_format"`
}

func LookupKey(name string) (Key, bool) {
	for _, k := range Keys {
		if k.Name == name {
			return k, true
		}
	}
	return Key{}, false
}

func KeyNames() []string {
	names := make([]string, len(Keys))
	for i, k := range Keys {
		names[i] = k.Name
	}
	return names
}

// DefaultDir returns ~/.skillpack.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Apply registers defaults and environment bindings on v.
func Apply(v *viper.Viper) error {
	for _, k := range Keys {
		v.SetDefault(k.Name, k.Default)
		if len(k.Env) > 0 {
			if err := v.BindEnv(append([]string{k.Name}, k.Env...)...); err != nil {
				return fmt.Errorf("failed to bind env for %s: %w", k.Name, err)
			}
		}
	}
	return nil
}

// EnsureFile writes the default config file if path does not exist.
func EnsureFile(path string) error {
	if _, err := os.Stat(path); err == nil || !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	defaults := make(map[string]any, len(Keys))
	for _, k := range Keys {
		defaults[k.Name] = k.Default
	}
	data, err := json.MarshalIndent(defaults, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		stringToLogLevelHook(),
		stringToPolicyHook(),
	)
	if err := v.Unmarshal(&s, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) Validate() error {
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("%s must be positive, got %s", KeyRequestTimeout, s.RequestTimeout)
	}
	if s.Concurrency < 1 {
		return fmt.Errorf("%s must be at least 1, got %d", KeyConcurrency, s.Concurrency)
	}
	if s.LogFormat != "text" && s.LogFormat != "json" {
		return fmt.Errorf("%s must be text or json, got %q", KeyLogFormat, s.LogFormat)
	}
	for key, raw := range map[string]string{KeyAPIBaseURL: s.APIBaseURL, KeyRawBaseURL: s.RawBaseURL} {
		if err := validateURL(raw); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	if s.Proxy != "" {
		if err := validateURL(s.Proxy); err != nil {
			return fmt.Errorf("%s: %w", KeyProxy, err)
		}
	}
	if strings.TrimSpace(s.OutputDir) == "" {
		return fmt.Errorf("%s cannot be empty", KeyOutputDir)
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid URL %q: scheme and host are required", raw)
	}
	return nil
}

// ValidateValue checks that value is acceptable for key on its own.
func ValidateValue(key, value string) error {
	if _, ok := LookupKey(key); !ok {
		return fmt.Errorf("unknown config key %q, valid keys: %s", key, strings.Join(KeyNames(), ", "))
	}
	v := viper.New()
	for _, k := range Keys {
		v.SetDefault(k.Name, k.Default)
	}
	v.Set(key, value)
	_, err := Load(v)
	return err
}

// ParseValue converts a command-line value to the type stored for key.
func ParseValue(key, value string) (any, error) {
	k, ok := LookupKey(key)
	if !ok {
		return nil, fmt.Errorf("unknown config key %q", key)
	}
	if _, isInt := k.Default.(int); isInt {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer, got %q", key, value)
		}
		return n, nil
	}
	return value, nil
}

var fileMutexes sync.Map

// WriteValue sets key in the config file at path. Only the file's own
// contents are rewritten; environment overrides never reach disk.
func WriteValue(path, key string, value any) error {
	muIface, _ := fileMutexes.LoadOrStore(path, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	values := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil && len(data) > 0:
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	case err != nil && !os.IsNotExist(err):
		return fmt.Errorf("failed to read config file: %w", err)
	}

	values[key] = value

	out, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, out, 0644); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename config file: %w", err)
	}
	return nil
}

func stringToLogLevelHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(logrus.Level(0)) {
			return data, nil
		}
		level, err := logrus.ParseLevel(reflect.ValueOf(data).String())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", KeyLogLevel, err)
		}
		return level, nil
	}
}

func stringToPolicyHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(archive.Policy("")) {
			return data, nil
		}
		return archive.ParsePolicy(reflect.ValueOf(data).String())
	}
}
