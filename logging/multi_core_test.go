package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewMultiCoreWithWriters_Development(t *testing.T) {
	var consoleBuf, fileBuf bytes.Buffer

	core := NewMultiCoreWithWriters(zapcore.InfoLevel,
		zapcore.AddSync(&consoleBuf), zapcore.AddSync(&fileBuf), true)
	logger := zap.New(core)
	logger.Info("hello", zap.String("command", "mc化"))
	_ = logger.Sync()

	if json.Valid(bytes.TrimSpace(consoleBuf.Bytes())) {
		t.Errorf("development console output should not be JSON: %s", consoleBuf.String())
	}
	if !strings.Contains(consoleBuf.String(), "hello") {
		t.Errorf("console output missing message: %s", consoleBuf.String())
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(fileBuf.Bytes(), &entry); err != nil {
		t.Fatalf("file output is not JSON: %v", err)
	}
	if entry["command"] != "mc化" {
		t.Errorf("command = %v, want mc化", entry["command"])
	}
}

func TestNewMultiCoreWithWriters_Production(t *testing.T) {
	var consoleBuf, fileBuf bytes.Buffer

	core := NewMultiCoreWithWriters(zapcore.InfoLevel,
		zapcore.AddSync(&consoleBuf), zapcore.AddSync(&fileBuf), false)
	logger := zap.New(core)
	logger.Debug("below level")
	logger.Info("above level")
	_ = logger.Sync()

	if !json.Valid(bytes.TrimSpace(consoleBuf.Bytes())) {
		t.Errorf("production console output should be JSON: %s", consoleBuf.String())
	}
	if strings.Contains(fileBuf.String(), "below level") {
		t.Error("debug entry written at info level")
	}
}

func TestApplyFileWriterDefaults(t *testing.T) {
	got := applyFileWriterDefaults(FileWriterConfig{MaxBackups: 2})
	if got.MaxSizeMB != DefaultMaxSizeMB {
		t.Errorf("MaxSizeMB = %d, want %d", got.MaxSizeMB, DefaultMaxSizeMB)
	}
	if got.MaxBackups != 2 {
		t.Errorf("MaxBackups = %d, want 2", got.MaxBackups)
	}
	if got.MaxAgeDays != DefaultMaxAgeDays {
		t.Errorf("MaxAgeDays = %d, want %d", got.MaxAgeDays, DefaultMaxAgeDays)
	}
}

func TestParseLogLevelString(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for input, want := range tests {
		if got := ParseLogLevelString(input, zapcore.InfoLevel); got != want {
			t.Errorf("ParseLogLevelString(%q) = %v, want %v", input, got, want)
		}
	}
}
