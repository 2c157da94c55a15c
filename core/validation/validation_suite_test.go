package validation

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/HydroGest/lmarena/core"
)

func validConfig(bridgeURL string) *core.Config {
	return &core.Config{
		BaseURL:   bridgeURL + "/v1/chat/completions",
		Model:     core.DefaultModel,
		Commands:  core.DefaultCommands(),
		OneBotURL: "ws://127.0.0.1:3001",
	}
}

func TestStepStatus_String(t *testing.T) {
	tests := []struct {
		status   StepStatus
		expected string
	}{
		{StepPending, "pending"},
		{StepRunning, "running"},
		{StepPassed, "passed"},
		{StepFailed, "failed"},
		{StepWarning, "warning"},
		{StepSkipped, "skipped"},
		{StepStatus(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.status.String(); got != tt.expected {
				t.Errorf("StepStatus(%d).String() = %q, want %q", tt.status, got, tt.expected)
			}
		})
	}
}

func TestValidationSuite_AllPassing(t *testing.T) {
	bridge := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bridge.Close()

	cfg := validConfig(bridge.URL)
	var buf bytes.Buffer
	result := NewValidationSuite(cfg).
		WithOutput(&buf).
		WithEnvPath(filepath.Join(t.TempDir(), ".env")).
		Validate(context.Background(), cfg)

	if !result.Success {
		t.Fatalf("Validate() failed: %s\n%s", result.Summary(), buf.String())
	}
	// Missing .env is a warning, not a failure.
	if result.Warnings != 1 {
		t.Errorf("Warnings = %d, want 1", result.Warnings)
	}
	last := result.Steps[len(result.Steps)-1]
	if last.Name != "Bridge Connectivity" || last.Status != StepPassed {
		t.Errorf("last step = %+v, want passed bridge probe", last)
	}
	if !strings.Contains(buf.String(), "Validation Passed") {
		t.Errorf("report missing summary:\n%s", buf.String())
	}
}

func TestValidationSuite_BridgeDownIsWarning(t *testing.T) {
	bridge := httptest.NewServer(http.NotFoundHandler())
	url := bridge.URL
	bridge.Close()

	cfg := validConfig(url)
	result := NewValidationSuite(cfg).
		WithShowProgress(false).
		WithTimeout(time.Second).
		Validate(context.Background(), cfg)

	if !result.Success {
		t.Fatalf("unreachable bridge should not fail validation: %s", result.Summary())
	}
	last := result.Steps[len(result.Steps)-1]
	if last.Status != StepWarning {
		t.Errorf("bridge step status = %v, want warning", last.Status)
	}
	if core.GetErrorCode(last.Error) != core.ErrCodeBridgeUnreachable {
		t.Errorf("bridge step error = %v", last.Error)
	}
}

func TestValidationSuite_Failures(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*core.Config)
		wantCode string
	}{
		{
			name:     "missing onebot url",
			mutate:   func(c *core.Config) { c.OneBotURL = "" },
			wantCode: core.ErrCodeMissingConfig,
		},
		{
			name: "fallback without key",
			mutate: func(c *core.Config) {
				c.EnableFallback = true
				c.FallbackBaseURL = core.DefaultFallbackBaseURL
			},
			wantCode: core.ErrCodeMissingAuth,
		},
		{
			name: "all commands disabled",
			mutate: func(c *core.Config) {
				for i := range c.Commands {
					c.Commands[i].Enabled = false
				}
			},
			wantCode: core.ErrCodeNoEnabledCommands,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig("http://127.0.0.1:5102")
			tt.mutate(cfg)

			result := NewValidationSuite(cfg).WithShowProgress(false).Validate(context.Background(), cfg)

			if result.Success {
				t.Fatal("Validate() succeeded, want failure")
			}
			errs := result.GetErrors()
			if len(errs) != 1 || core.GetErrorCode(errs[0]) != tt.wantCode {
				t.Errorf("errors = %v, want one %s", errs, tt.wantCode)
			}
			last := result.Steps[len(result.Steps)-1]
			if last.Status != StepSkipped {
				t.Errorf("bridge probe should be skipped, got %v", last.Status)
			}
		})
	}
}

func TestValidationSuite_OneBotOptional(t *testing.T) {
	cfg := validConfig("http://127.0.0.1:1")
	cfg.OneBotURL = ""

	result := NewValidationSuite(cfg).
		WithShowProgress(false).
		WithRequireOneBot(false).
		WithTimeout(200 * time.Millisecond).
		Validate(context.Background(), cfg)

	if !result.Success {
		t.Errorf("Validate() failed without OneBot requirement: %s", result.Summary())
	}
}

func TestSuiteResult_Summary(t *testing.T) {
	result := SuiteResult{
		Success:     false,
		TotalSteps:  6,
		PassedSteps: 4,
		FailedSteps: 1,
		Warnings:    1,
		Duration:    2 * time.Second,
	}

	summary := result.Summary()
	for _, want := range []string{"Failed", "4/6", "1 failed", "1 warnings"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary() = %q, missing %q", summary, want)
		}
	}
}
