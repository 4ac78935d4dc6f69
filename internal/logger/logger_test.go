package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/celerix-dev/celerix-checkin/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"":      zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"loud":  zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v; want %v", in, got, want)
		}
	}
}

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "checkin.log")

	l, err := New(config.Log{Level: "warn", Path: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	l.Info("dropped below level")
	l.Warn("scan rejected")
	l.Sync()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Log file not written: %v", err)
	}
	if strings.Contains(string(content), "dropped below level") {
		t.Error("Info entry should be filtered at warn level")
	}
	if !strings.Contains(string(content), `"msg":"scan rejected"`) {
		t.Errorf("Warn entry missing from log file: %s", content)
	}
}

func TestNew_FileOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkin.log")

	// Swap stdout for a pipe to catch anything the logger writes there.
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	l, err := New(config.Log{Path: path, FileOnly: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	l.Info("file storage loaded")
	l.Sync()

	os.Stdout = stdout
	w.Close()
	printed, _ := io.ReadAll(r)
	if len(printed) != 0 {
		t.Errorf("Expected nothing on stdout, got %q", printed)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Log file not written: %v", err)
	}
	if !strings.Contains(string(content), `"msg":"file storage loaded"`) {
		t.Errorf("Entry missing from log file: %s", content)
	}

	quiet, err := New(config.Log{FileOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if quiet.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("Expected a file-only logger without a path to discard entries")
	}
}
