package loggers

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFileWritesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sink.log")

	l, err := NewFile("S", path, false, slog.LevelInfo)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	l.Info("first")
	l.Debug("filtered")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "S INFO first") {
		t.Fatalf("expected info line, got %q", content)
	}
	if strings.Contains(content, "filtered") {
		t.Fatalf("debug line should be filtered, got %q", content)
	}
}

func TestNewFileAppendsByDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sink.log")

	first, err := NewFile("S", path, false, slog.LevelInfo)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	first.Info("one")
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := NewFile("S", path, false, slog.LevelInfo)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	second.Info("two")
	if err := second.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "one") || !strings.Contains(string(data), "two") {
		t.Fatalf("expected both lines after append, got %q", string(data))
	}
}

func TestNewFileTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sink.log")
	if err := os.WriteFile(path, []byte("old content\n"), 0o664); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	l, err := NewFile("S", path, true, slog.LevelInfo)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	l.Info("fresh")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "old content") {
		t.Fatalf("expected truncation, got %q", string(data))
	}
}

func TestNewFileRefusesLockedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sink.log")

	holder, err := NewFile("S", path, false, slog.LevelInfo)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	defer holder.Close()

	if _, err := NewFile("S2", path, false, slog.LevelInfo); err == nil {
		t.Fatal("expected second open of a locked file to fail")
	}

	if err := holder.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	reopened, err := NewFile("S3", path, false, slog.LevelInfo)
	if err != nil {
		t.Fatalf("expected reopen after Close to succeed: %v", err)
	}
	_ = reopened.Close()
}

func TestNewFileAndConsoleWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sink.log")

	l, err := NewFileAndConsole("S", path, false, slog.LevelError)
	if err != nil {
		t.Fatalf("NewFileAndConsole: %v", err)
	}
	l.Error("loud")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "S ERROR loud") {
		t.Fatalf("expected error line in file, got %q", string(data))
	}
}
