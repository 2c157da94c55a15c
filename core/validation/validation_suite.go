package validation

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/HydroGest/lmarena/core"
)

// ValidationStep is one line of the startup report.
type ValidationStep struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// StepStatus is the state of a validation step.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepPassed
	StepFailed
	StepWarning
	StepSkipped
)

// String returns the lowercase name of the status.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SuiteResult is the full outcome of a suite run.
type SuiteResult struct {
	Steps       []ValidationStep
	TotalSteps  int
	PassedSteps int
	FailedSteps int
	Warnings    int
	Duration    time.Duration
	Success     bool
}

// ValidationSuite runs the configuration checks, then probes the bridge, and
// prints a colored progress report.
//
// An unreachable bridge is reported as a warning: LMArenaBridge is often
// started after the bot, and every invocation retries anyway.
type ValidationSuite struct {
	output          io.Writer
	configValidator *ConfigValidator
	connectivity    *ConnectivityChecker
	timeout         time.Duration
	showProgress    bool
	failFast        bool
	requireOneBot   bool
}

// NewValidationSuite creates a suite writing to stdout.
func NewValidationSuite(cfg *core.Config) *ValidationSuite {
	return &ValidationSuite{
		output:          os.Stdout,
		configValidator: NewConfigValidator(),
		connectivity:    NewConnectivityChecker(core.GetHTTPClient(cfg, 0)),
		timeout:         5 * time.Second,
		showProgress:    true,
		requireOneBot:   true,
	}
}

// WithOutput sets the writer for the progress report.
func (s *ValidationSuite) WithOutput(w io.Writer) *ValidationSuite {
	s.output = w
	return s
}

// WithTimeout bounds the bridge probe.
func (s *ValidationSuite) WithTimeout(timeout time.Duration) *ValidationSuite {
	s.timeout = timeout
	return s
}

// WithShowProgress enables or disables the printed report.
func (s *ValidationSuite) WithShowProgress(show bool) *ValidationSuite {
	s.showProgress = show
	return s
}

// WithFailFast stops at the first failed step.
func (s *ValidationSuite) WithFailFast(failFast bool) *ValidationSuite {
	s.failFast = failFast
	return s
}

// WithRequireOneBot controls whether a missing ONEBOT_WS_URL fails the
// suite. Offline subcommands such as "history" turn it off.
func (s *ValidationSuite) WithRequireOneBot(require bool) *ValidationSuite {
	s.requireOneBot = require
	return s
}

// WithEnvPath sets a custom path for the .env file.
func (s *ValidationSuite) WithEnvPath(path string) *ValidationSuite {
	s.configValidator.WithEnvPath(path)
	return s
}

// Validate runs every check against cfg.
func (s *ValidationSuite) Validate(ctx context.Context, cfg *core.Config) SuiteResult {
	startTime := time.Now()

	if s.showProgress {
		s.printHeader("lmarena Configuration Validation")
	}

	checks := []namedCheck{
		{"Environment File", s.configValidator.CheckEnvFile},
		{"Bridge Endpoint", func() ValidationResult { return s.configValidator.CheckBridgeURL(cfg) }},
		{"Fallback API", func() ValidationResult { return s.configValidator.CheckFallback(cfg) }},
		{"Commands", func() ValidationResult { return s.configValidator.CheckCommands(cfg) }},
	}
	if s.requireOneBot {
		checks = append(checks, namedCheck{"OneBot Endpoint", func() ValidationResult { return s.configValidator.CheckOneBotURL(cfg) }})
	}

	steps := make([]ValidationStep, 0, len(checks)+1)
	for _, check := range checks {
		step := s.runStep(check.name, func() (StepStatus, string, error) {
			result := check.fn()
			return statusOf(result), result.Message, result.Error
		})
		steps = append(steps, step)
		if s.failFast && step.Status == StepFailed {
			return s.finish(steps, startTime)
		}
	}

	if hasAllPassed(steps) {
		steps = append(steps, s.runStep("Bridge Connectivity", func() (StepStatus, string, error) {
			probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			result := s.connectivity.CheckBridge(probeCtx, cfg.BaseURL)
			if !result.Reachable {
				return StepWarning, result.Message, result.Error
			}
			return StepPassed, fmt.Sprintf("%s (latency: %v)", result.Message, result.Latency.Round(time.Millisecond)), nil
		}))
	} else {
		step := ValidationStep{
			Name:    "Bridge Connectivity",
			Status:  StepSkipped,
			Message: "Skipped due to configuration errors",
		}
		if s.showProgress {
			s.printStep(step)
		}
		steps = append(steps, step)
	}

	return s.finish(steps, startTime)
}

type namedCheck struct {
	name string
	fn   func() ValidationResult
}

func statusOf(result ValidationResult) StepStatus {
	switch {
	case !result.Valid:
		return StepFailed
	case result.Warning:
		return StepWarning
	default:
		return StepPassed
	}
}

func (s *ValidationSuite) finish(steps []ValidationStep, startTime time.Time) SuiteResult {
	result := buildResult(steps, startTime)
	if s.showProgress {
		s.printSummary(result)
	}
	return result
}

// runStep executes fn with timing and progress output.
func (s *ValidationSuite) runStep(name string, fn func() (StepStatus, string, error)) ValidationStep {
	if s.showProgress {
		fmt.Fprintf(s.output, "  ◌ %s...", name)
	}

	startTime := time.Now()
	status, message, err := fn()
	step := ValidationStep{
		Name:    name,
		Status:  status,
		Message: message,
		Error:   err,
		Latency: time.Since(startTime),
	}

	if s.showProgress {
		s.printStep(step)
	}
	return step
}

func hasAllPassed(steps []ValidationStep) bool {
	for _, step := range steps {
		if step.Status == StepFailed {
			return false
		}
	}
	return true
}

func buildResult(steps []ValidationStep, startTime time.Time) SuiteResult {
	result := SuiteResult{
		Steps:      steps,
		TotalSteps: len(steps),
		Duration:   time.Since(startTime),
		Success:    true,
	}

	for _, step := range steps {
		switch step.Status {
		case StepPassed:
			result.PassedSteps++
		case StepFailed:
			result.FailedSteps++
			result.Success = false
		case StepWarning:
			result.Warnings++
		}
	}
	return result
}

func (s *ValidationSuite) printHeader(title string) {
	fmt.Fprintln(s.output)
	color.New(color.FgCyan, color.Bold).Fprintf(s.output, "━━━ %s ━━━\n", title)
	fmt.Fprintln(s.output)
}

func (s *ValidationSuite) printStep(step ValidationStep) {
	var icon string
	var clr *color.Color

	switch step.Status {
	case StepPassed:
		icon, clr = "✓", color.New(color.FgGreen)
	case StepFailed:
		icon, clr = "✗", color.New(color.FgRed)
	case StepWarning:
		icon, clr = "!", color.New(color.FgYellow)
	case StepSkipped:
		icon, clr = "○", color.New(color.FgHiBlack)
	default:
		icon, clr = "?", color.New(color.FgWhite)
	}

	fmt.Fprintf(s.output, "\r")
	clr.Fprintf(s.output, "  %s %s", icon, step.Name)
	if step.Message != "" {
		color.New(color.FgHiBlack).Fprintf(s.output, " - %s", step.Message)
	}
	fmt.Fprintln(s.output)

	if (step.Status == StepFailed || step.Status == StepWarning) && step.Error != nil {
		clr.Fprintf(s.output, "    └─ %s\n", step.Error.Error())
	}
}

func (s *ValidationSuite) printSummary(result SuiteResult) {
	fmt.Fprintln(s.output)

	if result.Success {
		successColor := color.New(color.FgGreen, color.Bold)
		successColor.Fprintf(s.output, "━━━ Validation Passed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d/%d checks passed, %d warnings)",
			result.PassedSteps, result.TotalSteps, result.Warnings)
		successColor.Fprintln(s.output, " ━━━")
	} else {
		failColor := color.New(color.FgRed, color.Bold)
		failColor.Fprintf(s.output, "━━━ Validation Failed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d passed, %d failed)",
			result.PassedSteps, result.FailedSteps)
		failColor.Fprintln(s.output, " ━━━")
	}

	fmt.Fprintln(s.output)
}

// GetErrors returns the errors of failed steps.
func (r SuiteResult) GetErrors() []error {
	errs := make([]error, 0)
	for _, step := range r.Steps {
		if step.Status == StepFailed && step.Error != nil {
			errs = append(errs, step.Error)
		}
	}
	return errs
}

// Summary returns a one-line summary for logs.
func (r SuiteResult) Summary() string {
	var sb strings.Builder
	if r.Success {
		sb.WriteString("Validation Passed: ")
	} else {
		sb.WriteString("Validation Failed: ")
	}
	sb.WriteString(fmt.Sprintf("%d/%d checks passed", r.PassedSteps, r.TotalSteps))
	if r.FailedSteps > 0 {
		sb.WriteString(fmt.Sprintf(", %d failed", r.FailedSteps))
	}
	if r.Warnings > 0 {
		sb.WriteString(fmt.Sprintf(", %d warnings", r.Warnings))
	}
	sb.WriteString(fmt.Sprintf(" (took %v)", r.Duration.Round(time.Millisecond)))
	return sb.String()
}
