package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/HydroGest/lmarena/core"
	"github.com/HydroGest/lmarena/db"
	"github.com/HydroGest/lmarena/handlers"

	"github.com/fatih/color"
)

// HistoryCmd prints the newest rows of the history database and a count per
// status.
type HistoryCmd struct {
	Limit    int    `short:"n" long:"limit" default:"20" description:"number of generations to show"`
	Database string `long:"db" description:"history database (default: DATABASE_PATH)"`
}

func (c *HistoryCmd) Execute(_ []string) error {
	path := c.Database
	if path == "" {
		path = core.GetEnvOrDefault("DATABASE_PATH", core.DefaultDatabasePath)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no history database at %s", path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	database, err := db.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("open history database: %w", err)
	}
	defer database.Close()

	repo := db.NewRepository(database)
	records, err := repo.RecentGenerations(ctx, c.Limit)
	if err != nil {
		return err
	}
	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		return err
	}
	return writeHistory(os.Stdout, records, counts)
}

var statusColors = map[string]*color.Color{
	db.StatusSuccess:     color.New(color.FgGreen),
	db.StatusFailed:      color.New(color.FgRed),
	db.StatusError:       color.New(color.FgRed, color.Bold),
	db.StatusCancelled:   color.New(color.FgHiBlack),
	db.StatusRateLimited: color.New(color.FgYellow),
}

// writeHistory renders records as a table followed by the status totals.
func writeHistory(w io.Writer, records []db.GenerationRecord, counts map[string]int64) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "No generations recorded.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tCOMMAND\tUSER\tSTATUS\tLEG\tATTEMPTS\tDURATION\tDETAIL")
		for _, rec := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				rec.Command,
				rec.UserID,
				colorStatus(rec.Status),
				legLabel(rec),
				rec.Attempts,
				rec.Duration.Round(time.Millisecond),
				detail(rec),
			)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	statuses := make([]string, 0, len(counts))
	var total int64
	for status, n := range counts {
		statuses = append(statuses, status)
		total += n
	}
	sort.Strings(statuses)

	parts := make([]string, 0, len(statuses))
	for _, status := range statuses {
		parts = append(parts, fmt.Sprintf("%s=%d", colorStatus(status), counts[status]))
	}
	_, err := fmt.Fprintf(w, "\nTotal: %d (%s)\n", total, strings.Join(parts, ", "))
	return err
}

func colorStatus(status string) string {
	if c, ok := statusColors[status]; ok {
		return c.Sprint(status)
	}
	return status
}

func legLabel(rec db.GenerationRecord) string {
	if rec.Leg == "" {
		return "-"
	}
	return rec.Leg
}

const detailWidth = 60

// detail is the image URL on success and the error otherwise.
func detail(rec db.GenerationRecord) string {
	if rec.ImageURL != "" {
		return handlers.TruncateText(rec.ImageURL, detailWidth)
	}
	return handlers.TruncateText(rec.ErrorMessage, detailWidth)
}
