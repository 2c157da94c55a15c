package core

import (
	"errors"
	"fmt"
)

// ConfigError is a configuration problem with an actionable fix.
type ConfigError struct {
	Code    string // for programmatic handling
	Message string
	Action  string // what the operator should do
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors.
const (
	ErrCodeEnvFileMissing    = "ENV_FILE_MISSING"
	ErrCodeInvalidURL        = "INVALID_URL"
	ErrCodeMissingAuth       = "MISSING_AUTH"
	ErrCodeBridgeUnreachable = "BRIDGE_UNREACHABLE"
	ErrCodeInvalidValue      = "INVALID_VALUE"
	ErrCodeInvalidCommands   = "INVALID_COMMANDS"
	ErrCodeCommandsFile      = "COMMANDS_FILE"
	ErrCodeMissingConfig     = "MISSING_CONFIG"
	ErrCodeNoEnabledCommands = "NO_ENABLED_COMMANDS"
)

// ErrEnvFileMissing reports a missing .env file.
func ErrEnvFileMissing(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeEnvFileMissing,
		Message: fmt.Sprintf("Configuration file not found: %s", path),
		Action:  "Copy example.env to .env, or export the LMARENA_* variables directly",
	}
}

// ErrInvalidURL reports a malformed endpoint in varName.
func ErrInvalidURL(varName, url, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidURL,
		Message: fmt.Sprintf("Invalid %s '%s': %s", varName, url, reason),
		Action:  fmt.Sprintf("Set %s to a full http(s) or ws(s) URL", varName),
	}
}

// ErrMissingAuth reports a missing credential for service.
func ErrMissingAuth(service string) *ConfigError {
	var action string
	switch service {
	case "fallback":
		action = "Set LMARENA_FALLBACK_API_KEY, or disable the fallback with LMARENA_ENABLE_FALLBACK=false"
	default:
		action = fmt.Sprintf("Set the credential for %s in your .env file", service)
	}
	return &ConfigError{
		Code:    ErrCodeMissingAuth,
		Message: fmt.Sprintf("Missing credentials for %s", service),
		Action:  action,
	}
}

// ErrBridgeUnreachable reports that the bridge did not answer.
func ErrBridgeUnreachable(url, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeBridgeUnreachable,
		Message: fmt.Sprintf("Cannot reach the bridge at %s: %s", url, reason),
		Action:  "Start LMArenaBridge and check LMARENA_BASE_URL",
	}
}

// ErrInvalidValue reports an out-of-range setting.
func ErrInvalidValue(varName string, value interface{}, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid %s=%v: %s", varName, value, reason),
		Action:  fmt.Sprintf("Fix %s in your .env file", varName),
	}
}

// ErrInvalidCommands reports a malformed commands definition.
func ErrInvalidCommands(reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidCommands,
		Message: fmt.Sprintf("Invalid commands file: %s", reason),
		Action:  "Fix the YAML in LMARENA_COMMANDS_FILE",
	}
}

// ErrCommandsFile reports an unreadable commands file.
func ErrCommandsFile(path, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeCommandsFile,
		Message: fmt.Sprintf("Cannot read commands file %s: %s", path, reason),
		Action:  "Check LMARENA_COMMANDS_FILE, or unset it to use the built-in commands",
	}
}

// ErrMissingConfig reports a required variable that is unset.
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your .env file", varName),
	}
}

// ErrNoEnabledCommands reports a command set with everything disabled.
func ErrNoEnabledCommands() *ConfigError {
	return &ConfigError{
		Code:    ErrCodeNoEnabledCommands,
		Message: "No commands are enabled",
		Action:  "Enable at least one command in LMARENA_COMMANDS_FILE",
	}
}

// IsConfigError reports whether err wraps a ConfigError and returns it.
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode returns the ConfigError code in err, or "".
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
