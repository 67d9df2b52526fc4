package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smy-101/skillpack/internal/archive"
	"github.com/smy-101/skillpack/internal/github"
	"github.com/spf13/viper"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	if err := Apply(v); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	return v
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SKILLPACK_GITHUB_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "")

	s, err := Load(newViper(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Settings{
		APIBaseURL:     github.DefaultAPIBaseURL,
		RawBaseURL:     github.DefaultRawBaseURL,
		OutputDir:      ".",
		BatchPolicy:    archive.PolicyFailFast,
		RequestTimeout: 30 * time.Second,
		Concurrency:    5,
		LogLevel:       logrus.WarnLevel,
		LogFormat:      "text",
	}
	if *s != want {
		t.Errorf("Load() = %+v, want %+v", *s, want)
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("SKILLPACK_GITHUB_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "")

	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
  "github_token": "file-token",
  "batch_policy": "partial",
  "request_timeout": "1m",
  "concurrency": 8,
  "log_level": "debug",
  "log_format": "json"
}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	v := newViper(t)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}

	s, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.GitHubToken != "file-token" || s.BatchPolicy != archive.PolicyPartial {
		t.Errorf("settings = %+v", s)
	}
	if s.RequestTimeout != time.Minute || s.Concurrency != 8 {
		t.Errorf("settings = %+v", s)
	}
	if s.LogLevel != logrus.DebugLevel || s.LogFormat != "json" {
		t.Errorf("settings = %+v", s)
	}
}

func TestTokenFromEnvironment(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "skillpack variable", env: map[string]string{"SKILLPACK_GITHUB_TOKEN": "a", "GITHUB_TOKEN": "b"}, want: "a"},
		{name: "generic variable", env: map[string]string{"SKILLPACK_GITHUB_TOKEN": "", "GITHUB_TOKEN": "b"}, want: "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			s, err := Load(newViper(t))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if s.GitHubToken != tt.want {
				t.Errorf("GitHubToken = %q, want %q", s.GitHubToken, tt.want)
			}
		})
	}
}

func TestValidateValue(t *testing.T) {
	tests := []struct {
		key, value string
		wantErr    bool
	}{
		{key: KeyGitHubToken, value: "ghp_x"},
		{key: KeyBatchPolicy, value: "partial"},
		{key: KeyBatchPolicy, value: "sometimes", wantErr: true},
		{key: KeyRequestTimeout, value: "45s"},
		{key: KeyRequestTimeout, value: "soon", wantErr: true},
		{key: KeyRequestTimeout, value: "-1s", wantErr: true},
		{key: KeyConcurrency, value: "3"},
		{key: KeyConcurrency, value: "0", wantErr: true},
		{key: KeyLogLevel, value: "info"},
		{key: KeyLogLevel, value: "loud", wantErr: true},
		{key: KeyLogFormat, value: "xml", wantErr: true},
		{key: KeyAPIBaseURL, value: "http://localhost:8080"},
		{key: KeyAPIBaseURL, value: "not a url", wantErr: true},
		{key: KeyProxy, value: ""},
		{key: KeyProxy, value: "http://proxy.example.com:3128"},
		{key: KeyOutputDir, value: " ", wantErr: true},
		{key: "unknown", value: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := ValidateValue(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateValue(%q, %q) error = %v, wantErr %v", tt.key, tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	got, err := ParseValue(KeyConcurrency, " 7 ")
	if err != nil || got != 7 {
		t.Errorf("ParseValue(concurrency) = %v, %v", got, err)
	}
	if _, err := ParseValue(KeyConcurrency, "seven"); err == nil {
		t.Error("ParseValue() should reject non-integers")
	}
	got, err = ParseValue(KeyProxy, "http://p")
	if err != nil || got != "http://p" {
		t.Errorf("ParseValue(proxy) = %v, %v", got, err)
	}
}

func TestEnsureFileAndWriteValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".skillpack", "config.json")

	if err := EnsureFile(path); err != nil {
		t.Fatalf("EnsureFile() error = %v", err)
	}
	if err := WriteValue(path, KeyGitHubToken, "secret"); err != nil {
		t.Fatalf("WriteValue() error = %v", err)
	}
	if err := WriteValue(path, KeyConcurrency, 9); err != nil {
		t.Fatalf("WriteValue() error = %v", err)
	}
	// existing file is left alone
	if err := EnsureFile(path); err != nil {
		t.Fatalf("EnsureFile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		t.Fatalf("config is not valid JSON: %v", err)
	}
	if values[KeyGitHubToken] != "secret" || values[KeyConcurrency] != float64(9) {
		t.Errorf("values = %v", values)
	}
	if values[KeyOutputDir] != "." {
		t.Errorf("defaults lost: %v", values)
	}
}

func TestWriteValueConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Keys[i%len(Keys)].Name
			if err := WriteValue(path, key, "v"); err != nil {
				t.Errorf("WriteValue() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		t.Fatalf("config corrupted by concurrent writes: %v", err)
	}
	if len(values) != 10 {
		t.Errorf("got %d keys, want 10", len(values))
	}
}
