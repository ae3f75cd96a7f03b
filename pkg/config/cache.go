package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CacheEnv overrides the browser cache location.
const CacheEnv = "PAGEFLOW_CACHE"

const installedMarker = ".installed"

// CacheDir returns the root of the per-user browser cache: $PAGEFLOW_CACHE
// when set, otherwise <user cache dir>/pageflow.
func CacheDir() string {
	if env := os.Getenv(CacheEnv); env != "" {
		return env
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "pageflow")
	}
	return filepath.Join(os.TempDir(), "pageflow")
}

// BrowserDir returns where driver keeps its runtime and the named browser,
// e.g. <cache>/playwright/chromium. Browsers never share a directory so
// one install cannot clobber another.
func BrowserDir(driver, browser string) string {
	return filepath.Join(CacheDir(), driver, browser)
}

// Installed reports whether dir holds an install recorded by MarkInstalled.
func Installed(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, installedMarker))
	return err == nil && info.Mode().IsRegular()
}

// InstalledVersion returns the version MarkInstalled recorded in dir, or ""
// when nothing is recorded.
func InstalledVersion(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, installedMarker))
	if err != nil {
		return ""
	}
	version, _, _ := strings.Cut(string(data), "\n")
	return version
}

// MarkInstalled records a completed install in dir. Later runs with
// --install skip the download while the marker exists.
func MarkInstalled(dir, version string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	content := version + "\n" + time.Now().UTC().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(filepath.Join(dir, installedMarker), []byte(content), 0o644); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}
