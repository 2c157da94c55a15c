package metrics

import "time"

// Generation is one finished chat invocation as seen by the status page.
type Generation struct {
	Command  string        `json:"command"`
	Status   string        `json:"status"`
	Leg      string        `json:"leg,omitempty"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}

// CommandSummary aggregates the generations of one command.
type CommandSummary struct {
	Count       int64         `json:"count"`
	SuccessRate float64       `json:"success_rate"` // 0-100
	AvgDuration time.Duration `json:"avg_duration"`
}

// Summary is the payload served on /status.
type Summary struct {
	Version     string                     `json:"version"`
	Uptime      time.Duration              `json:"uptime"`
	Connected   bool                       `json:"connected"`
	Total       int64                      `json:"total"`
	Success     int64                      `json:"success"`
	Failed      int64                      `json:"failed"`
	Fallbacks   int64                      `json:"fallbacks"`
	ByCommand   map[string]*CommandSummary `json:"by_command"`
	Recent      []Generation               `json:"recent"`
	GeneratedAt time.Time                  `json:"generated_at"`
}

// Generation statuses counted as success and failure. Everything else
// (cancelled, no input) only counts toward Total.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusError   = "error"
)
