package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitConsole(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Options{Level: "info", Format: "json", Console: &buf}); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	defer Close()

	Info("resolved %s", "login-button")
	Debug("hidden at info level")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["msg"] != "resolved login-button" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("level = %v", entry["level"])
	}
}

func TestInitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pageflow.log")
	if err := Init(Options{Level: "debug", File: path}); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	Debug("step %d", 3)
	Warn("slow gate")
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "step 3") || !strings.Contains(string(data), "slow gate") {
		t.Errorf("log file = %q", data)
	}
}

func TestInitBadLevel(t *testing.T) {
	if err := Init(Options{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNoInit(t *testing.T) {
	Close()
	// Must not panic without Init
	Info("nothing")
	Error("nothing")
	if L() == nil {
		t.Error("L() returned nil")
	}
}
