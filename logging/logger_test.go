package logging

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// syncLogger ignores the "invalid argument" error Linux returns when syncing stdout.
func syncLogger(t testing.TB, logger *Logger) {
	t.Helper()
	if err := logger.Sync(); err != nil && !strings.Contains(err.Error(), "invalid argument") {
		t.Logf("Sync() warning: %v", err)
	}
}

func TestNewLogger_ProductionWritesJSON(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "prod.log")

	logger, err := NewLogger(Options{FilePath: logPath})
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	if logger.IsDevelopment() {
		t.Error("IsDevelopment() = true, want false")
	}
	if logger.LogFilePath() != logPath {
		t.Errorf("LogFilePath() = %q, want %q", logger.LogFilePath(), logPath)
	}

	logger.Info("generation finished", zap.Int("attempts", 3))
	syncLogger(t, logger)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal(content, &entry); err != nil {
		t.Fatalf("log file is not JSON: %v\n%s", err, content)
	}
	if entry[FieldMessage] != "generation finished" {
		t.Errorf("message = %v, want %q", entry[FieldMessage], "generation finished")
	}
	if entry[FieldLevel] != "info" {
		t.Errorf("level = %v, want info", entry[FieldLevel])
	}
}

func TestNewLogger_LevelOverride(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "level.log")
	level := zapcore.WarnLevel

	logger, err := NewLogger(Options{Development: true, FilePath: logPath, Level: &level})
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}

	logger.Info("dropped")
	logger.Warn("kept")
	syncLogger(t, logger)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if strings.Contains(string(content), "dropped") {
		t.Error("info entry written despite warn level")
	}
	if !strings.Contains(string(content), "kept") {
		t.Error("warn entry missing")
	}
}

func TestNewLogger_MissingDirectory(t *testing.T) {
	_, err := NewLogger(Options{FilePath: "/nonexistent/dir/that/does/not/exist/app.log"})
	if err == nil {
		t.Error("NewLogger() with missing directory should fail")
	}
}

func TestNewLogger_ConsoleOnly(t *testing.T) {
	logger, err := NewLogger(Options{})
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	logger.Debug("not shown at info level")
}

func TestLogger_RedactsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewFromZap(zap.New(core))

	logger.Info("calling fallback",
		zap.String("api_key", "sk-live-should-not-appear"),
		zap.String("body", `{"url":"data:image/jpeg;base64,`+strings.Repeat("A", 64)+`"}`),
		zap.Error(errors.New("401 from https://api.openai.com: Bearer abcdefghijklmnopqrstuvwxyz")),
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()

	if fields["api_key"] != RedactedPlaceholder {
		t.Errorf("api_key = %v, want %q", fields["api_key"], RedactedPlaceholder)
	}
	if body := fields["body"].(string); !strings.Contains(body, "[64 chars]") {
		t.Errorf("body = %q, want payload length marker", body)
	}
	if errText := fields["error"].(string); strings.Contains(errText, "abcdefghijklmnopqrstuvwxyz") {
		t.Errorf("error = %q, bearer token leaked", errText)
	}
}

func TestLogger_NamedAndWith(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewFromZap(zap.New(core)).Named("bridge").With(zap.String("leg", "primary"))

	logger.Warn("attempt failed")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].LoggerName != "bridge" {
		t.Errorf("LoggerName = %q, want bridge", entries[0].LoggerName)
	}
	if entries[0].ContextMap()["leg"] != "primary" {
		t.Errorf("leg field = %v, want primary", entries[0].ContextMap()["leg"])
	}
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	logger.Error("discarded")
	if err := logger.Sync(); err != nil {
		t.Errorf("Sync() on nop logger: %v", err)
	}
}
