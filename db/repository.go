package db

import (
	"context"
	"fmt"
	"time"
)

// Generation statuses.
const (
	StatusSuccess      = "success"
	StatusFailed       = "failed"
	StatusError        = "error"
	StatusCancelled    = "cancelled"
	StatusNoInput      = "no_input"
	StatusInvalidImage = "invalid_image"
	StatusRateLimited  = "rate_limited"
)

// GenerationRecord is one row of generation_history.
type GenerationRecord struct {
	ID            int64
	CorrelationID string
	Command       string
	UserID        string
	ChannelID     string
	Prompt        string
	ImageCount    int
	Model         string
	Leg           string // "primary", "fallback", or empty when nothing was sent
	Attempts      int
	UsedFallback  bool
	Status        string
	ImageURL      string
	ErrorMessage  string
	Duration      time.Duration
	CreatedAt     time.Time
}

// Repository reads and writes generation_history.
type Repository struct {
	db *Database
}

// NewRepository wraps an open Database.
func NewRepository(db *Database) *Repository {
	return &Repository{db: db}
}

const insertGeneration = `
INSERT INTO generation_history (
    correlation_id, command, user_id, channel_id, prompt, image_count,
    model, leg, attempts, used_fallback, status, image_url, error_message,
    duration_ms, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertGeneration stores rec and returns its row id. A zero CreatedAt is
// replaced with the current time.
func (r *Repository) InsertGeneration(ctx context.Context, rec GenerationRecord) (int64, error) {
	if rec.CorrelationID == "" || rec.Command == "" || rec.Status == "" {
		return 0, fmt.Errorf("generation record needs correlation id, command and status")
	}
	conn, err := r.db.handle()
	if err != nil {
		return 0, err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	res, err := conn.ExecContext(ctx, insertGeneration,
		rec.CorrelationID,
		rec.Command,
		rec.UserID,
		rec.ChannelID,
		nullString(rec.Prompt),
		rec.ImageCount,
		nullString(rec.Model),
		nullString(rec.Leg),
		rec.Attempts,
		rec.UsedFallback,
		rec.Status,
		nullString(rec.ImageURL),
		nullString(rec.ErrorMessage),
		rec.Duration.Milliseconds(),
		rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert generation: %w", err)
	}
	return res.LastInsertId()
}

const selectGenerations = `
SELECT id, correlation_id, command, user_id, channel_id,
       COALESCE(prompt, ''), image_count, COALESCE(model, ''), COALESCE(leg, ''),
       attempts, used_fallback, status, COALESCE(image_url, ''),
       COALESCE(error_message, ''), duration_ms, created_at
FROM generation_history`

// RecentGenerations returns up to limit records, newest first.
func (r *Repository) RecentGenerations(ctx context.Context, limit int) ([]GenerationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.query(ctx, selectGenerations+" ORDER BY created_at DESC, id DESC LIMIT ?", limit)
}

// GenerationsByCorrelationID returns the records logged under id.
func (r *Repository) GenerationsByCorrelationID(ctx context.Context, id string) ([]GenerationRecord, error) {
	return r.query(ctx, selectGenerations+" WHERE correlation_id = ? ORDER BY id", id)
}

// CountByStatus returns the number of records per status.
func (r *Repository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	conn, err := r.db.handle()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, "SELECT status, COUNT(*) FROM generation_history GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) ([]GenerationRecord, error) {
	conn, err := r.db.handle()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query generations: %w", err)
	}
	defer rows.Close()

	var records []GenerationRecord
	for rows.Next() {
		var rec GenerationRecord
		var durationMS, createdMS int64
		if err := rows.Scan(
			&rec.ID,
			&rec.CorrelationID,
			&rec.Command,
			&rec.UserID,
			&rec.ChannelID,
			&rec.Prompt,
			&rec.ImageCount,
			&rec.Model,
			&rec.Leg,
			&rec.Attempts,
			&rec.UsedFallback,
			&rec.Status,
			&rec.ImageURL,
			&rec.ErrorMessage,
			&durationMS,
			&createdMS,
		); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.CreatedAt = time.UnixMilli(createdMS)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
