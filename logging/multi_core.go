package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"
)

// NewMultiCore creates a core that tees output to stdout and a rotating file.
//
// The file side always uses JSON. The console side is human-readable with
// colors when isDev is true and JSON otherwise. An empty filePath yields a
// console-only core.
//
// The file's parent directory must already exist; the file itself is created
// eagerly so that a bad path is reported at startup instead of on first write.
func NewMultiCore(level zapcore.Level, filePath string, isDev bool, fileConfig FileWriterConfig) (zapcore.Core, error) {
	console := zapcore.Lock(os.Stdout)
	if filePath == "" {
		return newConsoleCore(level, console, isDev), nil
	}

	if _, err := os.Stat(filepath.Dir(filePath)); err != nil {
		return nil, fmt.Errorf("log directory: %w", err)
	}
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	f.Close()

	return NewMultiCoreWithWriters(level, console, NewFileWriterWithConfig(filePath, fileConfig), isDev), nil
}

// NewMultiCoreWithWriters tees the provided writers. Used directly by tests.
//
// Example:
//
//	var console, file bytes.Buffer
//	core := NewMultiCoreWithWriters(zapcore.DebugLevel,
//	    zapcore.AddSync(&console), zapcore.AddSync(&file), true)
func NewMultiCoreWithWriters(level zapcore.Level, consoleWriter, fileWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(NewEncoderConfig()),
		fileWriter,
		level,
	)

	return zapcore.NewTee(newConsoleCore(level, consoleWriter, isDev), fileCore)
}

func newConsoleCore(level zapcore.Level, w zapcore.WriteSyncer, isDev bool) zapcore.Core {
	var encoder zapcore.Encoder
	if isDev {
		encoder = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	} else {
		encoder = zapcore.NewJSONEncoder(NewEncoderConfig())
	}
	return zapcore.NewCore(encoder, w, level)
}
