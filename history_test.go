package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/HydroGest/lmarena/core"
	"github.com/HydroGest/lmarena/db"

	"github.com/fatih/color"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func noColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestWriteHistory(t *testing.T) {
	noColor(t)

	records := []db.GenerationRecord{
		{
			Command:   "手办化",
			UserID:    "10001",
			Status:    db.StatusSuccess,
			Leg:       "primary",
			Attempts:  2,
			ImageURL:  "https://img.example/out.png",
			Duration:  1500 * time.Millisecond,
			CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			Command:      "修图",
			UserID:       "10002",
			Status:       db.StatusFailed,
			ErrorMessage: strings.Repeat("x", 100),
			CreatedAt:    time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC),
		},
	}
	counts := map[string]int64{db.StatusSuccess: 3, db.StatusFailed: 1}

	var buf bytes.Buffer
	if err := writeHistory(&buf, records, counts); err != nil {
		t.Fatalf("writeHistory: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"COMMAND",
		"手办化",
		"https://img.example/out.png",
		"1.5s",
		"primary",
		"Total: 4 (failed=1, success=3)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, strings.Repeat("x", detailWidth+1)) {
		t.Errorf("error detail was not truncated:\n%s", out)
	}

	lines := strings.Split(out, "\n")
	if !strings.Contains(lines[2], "修图") || !strings.Contains(lines[2], " - ") {
		t.Errorf("second row should show the missing leg as '-': %q", lines[2])
	}
}

func TestWriteHistory_Empty(t *testing.T) {
	noColor(t)

	var buf bytes.Buffer
	if err := writeHistory(&buf, nil, map[string]int64{}); err != nil {
		t.Fatalf("writeHistory: %v", err)
	}
	if !strings.Contains(buf.String(), "No generations recorded.") {
		t.Errorf("unexpected output: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "Total: 0 ()") {
		t.Errorf("unexpected totals: %q", buf.String())
	}
}

func TestHistoryCmd_MissingDatabase(t *testing.T) {
	cmd := &HistoryCmd{Limit: 5, Database: filepath.Join(t.TempDir(), "none.db")}
	err := cmd.Execute(nil)
	if err == nil || !strings.Contains(err.Error(), "no history database") {
		t.Fatalf("Execute error = %v, want missing database", err)
	}
}

func TestRun_History(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	database, err := db.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, err = db.NewRepository(database).InsertGeneration(ctx, db.GenerationRecord{
		CorrelationID: "a1b2c3d4",
		Command:       "手办化",
		UserID:        "10001",
		ChannelID:     "group:123",
		Status:        db.StatusSuccess,
		ImageURL:      "https://img.example/out.png",
	})
	if err != nil {
		t.Fatalf("InsertGeneration: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if code := run([]string{"--env-file", "", "history", "--db", path}); code != core.ExitCodeSuccess {
		t.Errorf("history exit code = %d, want %d", code, core.ExitCodeSuccess)
	}
}
