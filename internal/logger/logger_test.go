package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitWritesRotatingFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "itinera.log")
	if err := Init(Config{Level: "debug", File: file, Quiet: true}); err != nil {
		t.Fatalf("init: %v", err)
	}
	Debug("debug line", "k", 1)
	Info("info line", "day", 2)
	Warn("warn line")
	Error("error line")

	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, want := range []string{"debug line", "info line", "day=2", "warn line", "error line"} {
		if !strings.Contains(string(b), want) {
			t.Errorf("log file missing %q:\n%s", want, b)
		}
	}
}

func TestInitJSONAndLevel(t *testing.T) {
	file := filepath.Join(t.TempDir(), "itinera.log")
	if err := Init(Config{Level: "warn", File: file, JSON: true, Quiet: true}); err != nil {
		t.Fatalf("init: %v", err)
	}
	Info("hidden")
	Warn("shown", "attempt", 3)

	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(b)
	if strings.Contains(out, "hidden") {
		t.Errorf("info line logged at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected JSON output, got %s", out)
	}
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	if err := Init(Config{Level: "loud", Quiet: true}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
