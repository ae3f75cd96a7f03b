package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCacheDir_Env(t *testing.T) {
	t.Setenv(CacheEnv, "/custom/cache")

	if got := CacheDir(); got != "/custom/cache" {
		t.Errorf("CacheDir() = %q, want %q", got, "/custom/cache")
	}
}

func TestCacheDir_Default(t *testing.T) {
	t.Setenv(CacheEnv, "")

	got := CacheDir()
	if filepath.Base(got) != "pageflow" {
		t.Errorf("CacheDir() = %q, want a pageflow directory", got)
	}
}

func TestBrowserDir(t *testing.T) {
	t.Setenv(CacheEnv, "/test/cache")

	tests := []struct {
		driver, browser string
		want            string
	}{
		{"playwright", "chromium", filepath.Join("/test/cache", "playwright", "chromium")},
		{"playwright", "firefox", filepath.Join("/test/cache", "playwright", "firefox")},
	}
	for _, tt := range tests {
		if got := BrowserDir(tt.driver, tt.browser); got != tt.want {
			t.Errorf("BrowserDir(%q, %q) = %q, want %q", tt.driver, tt.browser, got, tt.want)
		}
	}
}

func TestMarkInstalled(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "playwright", "chromium")

	if Installed(dir) {
		t.Fatal("fresh directory reported as installed")
	}
	if v := InstalledVersion(dir); v != "" {
		t.Errorf("InstalledVersion() = %q, want empty", v)
	}

	if err := MarkInstalled(dir, "v0.5200.1"); err != nil {
		t.Fatalf("MarkInstalled: %v", err)
	}
	if !Installed(dir) {
		t.Error("marked directory not reported as installed")
	}
	if v := InstalledVersion(dir); v != "v0.5200.1" {
		t.Errorf("InstalledVersion() = %q, want v0.5200.1", v)
	}
}

func TestInstalled_IgnoresMarkerDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, installedMarker), 0o755); err != nil {
		t.Fatal(err)
	}
	if Installed(dir) {
		t.Error("a directory named like the marker must not count as an install")
	}
}
