// Package validation runs the startup checks printed before the bot connects.
package validation

import (
	"fmt"
	"os"

	"github.com/HydroGest/lmarena/core"
)

// ValidationResult is the outcome of one configuration check.
type ValidationResult struct {
	Valid   bool
	Warning bool // Valid, but worth the operator's attention
	Message string
	Error   error
}

// ConfigValidator checks a loaded Config without touching the network.
type ConfigValidator struct {
	envPath string
}

// NewConfigValidator creates a ConfigValidator looking for ".env".
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{envPath: ".env"}
}

// WithEnvPath sets a custom path for the .env file.
func (v *ConfigValidator) WithEnvPath(path string) *ConfigValidator {
	v.envPath = path
	return v
}

// CheckEnvFile warns when no .env file exists. Variables may come from the
// process environment instead, so this never fails.
func (v *ConfigValidator) CheckEnvFile() ValidationResult {
	if _, err := os.Stat(v.envPath); err != nil {
		return ValidationResult{
			Valid:   true,
			Warning: true,
			Message: "No .env file, using process environment",
			Error:   core.ErrEnvFileMissing(v.envPath),
		}
	}
	return ValidationResult{Valid: true, Message: "Environment file found"}
}

// CheckBridgeURL validates LMARENA_BASE_URL.
func (v *ConfigValidator) CheckBridgeURL(cfg *core.Config) ValidationResult {
	if err := core.ValidateEndpointURL("LMARENA_BASE_URL", cfg.BaseURL, "http", "https"); err != nil {
		return ValidationResult{Message: "Bridge URL invalid", Error: err}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("%s (model %s)", cfg.BaseURL, cfg.Model)}
}

// CheckFallback validates the fallback leg when it is enabled.
func (v *ConfigValidator) CheckFallback(cfg *core.Config) ValidationResult {
	if !cfg.EnableFallback {
		return ValidationResult{Valid: true, Message: "Fallback disabled"}
	}
	if err := core.ValidateEndpointURL("LMARENA_FALLBACK_BASE_URL", cfg.FallbackBaseURL, "http", "https"); err != nil {
		return ValidationResult{Message: "Fallback URL invalid", Error: err}
	}
	if cfg.FallbackAPIKey == "" {
		return ValidationResult{Message: "Fallback API key missing", Error: core.ErrMissingAuth("fallback")}
	}
	return ValidationResult{
		Valid:   true,
		Message: fmt.Sprintf("%s (model %s, triggers %v)", cfg.FallbackBaseURL, cfg.FallbackModel, cfg.FallbackErrorCodes),
	}
}

// CheckCommands reports how many commands are enabled.
func (v *ConfigValidator) CheckCommands(cfg *core.Config) ValidationResult {
	enabled := core.EnabledCommands(cfg.Commands)
	if len(enabled) == 0 {
		return ValidationResult{Message: "No commands enabled", Error: core.ErrNoEnabledCommands()}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("%d of %d commands enabled", len(enabled), len(cfg.Commands))}
}

// CheckOneBotURL validates ONEBOT_WS_URL.
func (v *ConfigValidator) CheckOneBotURL(cfg *core.Config) ValidationResult {
	if err := core.ValidateEndpointURL("ONEBOT_WS_URL", cfg.OneBotURL, "ws", "wss"); err != nil {
		return ValidationResult{Message: "OneBot endpoint invalid", Error: err}
	}
	return ValidationResult{Valid: true, Message: cfg.OneBotURL}
}
