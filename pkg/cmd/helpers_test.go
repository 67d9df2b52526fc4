package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/smy-101/skillpack/internal/cache"
	"github.com/smy-101/skillpack/internal/config"
	"github.com/smy-101/skillpack/internal/types"
	"github.com/spf13/viper"
)

func setupConfigTest(t *testing.T) (func(), string) {
	t.Helper()

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.json")

	viper.Reset()
	if err := config.Apply(viper.GetViper()); err != nil {
		t.Fatalf("config.Apply() error = %v", err)
	}
	if err := config.EnsureFile(configPath); err != nil {
		t.Fatalf("config.EnsureFile() error = %v", err)
	}
	viper.SetConfigFile(configPath)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}
	t.Setenv("SKILLPACK_GITHUB_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "")

	cleanup := func() {
		viper.Reset()
	}
	return cleanup, tempDir
}

// setupCacheTest points the commands at a cache file in a temp dir.
func setupCacheTest(t *testing.T) *cache.Store {
	t.Helper()
	store := cache.New(filepath.Join(t.TempDir(), "cache.json"))
	orig := openCache
	openCache = func() (*cache.Store, error) { return store, nil }
	t.Cleanup(func() { openCache = orig })
	return store
}

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		io.Copy(&buf, r)
		done <- buf.String()
	}()

	runErr := fn()

	w.Close()
	os.Stdout = oldStdout
	output := <-done
	_ = r.Close()

	return output, runErr
}

// fakeGitHub serves the contents API and raw host for repository o/r on
// branch main.
func fakeGitHub(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/repos/o/r/contents"):
			if r.URL.Query().Get("ref") != "main" {
				http.NotFound(w, r)
				return
			}
			dir := strings.Trim(strings.TrimPrefix(r.URL.Path, "/repos/o/r/contents"), "/")
			entries, ok := listDir(server.URL, files, dir)
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", "4999")
			w.Header().Set("X-RateLimit-Limit", "5000")
			json.NewEncoder(w).Encode(entries)

		case strings.HasPrefix(r.URL.Path, "/raw/o/r/main/"):
			content, ok := files[strings.TrimPrefix(r.URL.Path, "/raw/o/r/main/")]
			if !ok {
				http.NotFound(w, r)
				return
			}
			io.WriteString(w, content)

		case r.URL.Path == "/rate_limit":
			w.Header().Set("X-RateLimit-Remaining", "42")
			io.WriteString(w, `{"rate":{"limit":60,"remaining":42,"reset":1700000000}}`)

		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	viper.Set(config.KeyAPIBaseURL, server.URL)
	viper.Set(config.KeyRawBaseURL, server.URL+"/raw")
	return server
}

func listDir(base string, files map[string]string, dir string) ([]types.DirectoryEntry, bool) {
	seen := map[string]bool{}
	var entries []types.DirectoryEntry
	found := dir == ""
	for p := range files {
		rest := p
		if dir != "" {
			if !strings.HasPrefix(p, dir+"/") {
				continue
			}
			rest = strings.TrimPrefix(p, dir+"/")
		}
		found = true
		name, _, isDir := strings.Cut(rest, "/")
		if seen[name] {
			continue
		}
		seen[name] = true

		full := path.Join(dir, name)
		entry := types.DirectoryEntry{Name: name, Path: full}
		if isDir {
			entry.Type = types.EntryTypeDir
		} else {
			entry.Type = types.EntryTypeFile
			entry.DownloadURL = base + "/raw/o/r/main/" + full
			entry.HTMLURL = "https://github.com/o/r/blob/main/" + full
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, found
}
