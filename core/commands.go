package core

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Bounds applied to command settings.
const (
	MinWaitTimeout = 10 * time.Second
	MaxWaitTimeout = 120 * time.Second
	MaxImagesLimit = 5
)

// CommandConfig describes one chat command that turns images into a styled
// image.
type CommandConfig struct {
	// Name is the chat command, matched after the command prefix.
	Name string
	// Prompt is the fixed instruction. Custom commands may leave it empty.
	Prompt string
	Enabled bool
	// Custom commands merge user-typed text into the prompt.
	Custom bool
	// MaxImages is how many images the user must supply, 0..5. Default
	// images do not count toward it.
	MaxImages int
	// WaitTimeout bounds each wait for user input, 10..120 s.
	WaitTimeout time.Duration
	// DefaultImageURLs are always sent first.
	DefaultImageURLs []string
}

// commandsFile is the YAML layout of LMARENA_COMMANDS_FILE.
//
//	default_wait_timeout: 50
//	commands:
//	  - name: 手办化
//	    prompt: |
//	      Your task is to create ...
//	    max_images: 1
//	  - name: 修图
//	    custom: true
//	    default_image_urls: [https://example.com/frame.png]
type commandsFile struct {
	DefaultWaitTimeout int           `yaml:"default_wait_timeout"`
	Commands           []commandYAML `yaml:"commands"`
}

type commandYAML struct {
	Name             string   `yaml:"name"`
	Prompt           string   `yaml:"prompt"`
	Enabled          *bool    `yaml:"enabled"`
	Custom           bool     `yaml:"custom"`
	MaxImages        *int     `yaml:"max_images"`
	WaitTimeout      int      `yaml:"wait_timeout"`
	DefaultImageURLs []string `yaml:"default_image_urls"`
}

// LoadCommands reads a commands file. A missing file is reported with
// os.ErrNotExist so callers can fall back to DefaultCommands.
//
// defaultWait applies to commands without a wait_timeout and is itself
// overridden by the file's default_wait_timeout.
func LoadCommands(path string, defaultWait time.Duration) ([]CommandConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCommands(data, defaultWait)
}

// ParseCommands decodes and normalizes commands YAML.
func ParseCommands(data []byte, defaultWait time.Duration) ([]CommandConfig, error) {
	var file commandsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, ErrInvalidCommands(fmt.Sprintf("parse yaml: %v", err))
	}
	if len(file.Commands) == 0 {
		return nil, ErrInvalidCommands("no commands defined")
	}

	if file.DefaultWaitTimeout > 0 {
		defaultWait = time.Duration(file.DefaultWaitTimeout) * time.Second
	}
	defaultWait = ClampWaitTimeout(defaultWait)

	seen := make(map[string]bool, len(file.Commands))
	commands := make([]CommandConfig, 0, len(file.Commands))
	for i, raw := range file.Commands {
		name := strings.TrimSpace(raw.Name)
		if name == "" {
			return nil, ErrInvalidCommands(fmt.Sprintf("command #%d has no name", i+1))
		}
		if seen[name] {
			return nil, ErrInvalidCommands(fmt.Sprintf("duplicate command %q", name))
		}
		seen[name] = true

		cmd := CommandConfig{
			Name:             name,
			Prompt:           raw.Prompt,
			Enabled:          raw.Enabled == nil || *raw.Enabled,
			Custom:           raw.Custom,
			MaxImages:        1,
			WaitTimeout:      defaultWait,
			DefaultImageURLs: raw.DefaultImageURLs,
		}
		if raw.MaxImages != nil {
			cmd.MaxImages = *raw.MaxImages
		}
		if cmd.MaxImages < 0 || cmd.MaxImages > MaxImagesLimit {
			return nil, ErrInvalidCommands(fmt.Sprintf("command %q: max_images must be 0..%d", name, MaxImagesLimit))
		}
		if raw.WaitTimeout > 0 {
			cmd.WaitTimeout = ClampWaitTimeout(time.Duration(raw.WaitTimeout) * time.Second)
		}
		if !cmd.Custom && strings.TrimSpace(cmd.Prompt) == "" {
			return nil, ErrInvalidCommands(fmt.Sprintf("command %q: prompt is required unless custom is set", name))
		}
		commands = append(commands, cmd)
	}
	return commands, nil
}

// ResolveCommands loads path when it exists and otherwise returns the
// built-in set. explicit reports whether the user named the file; a missing
// explicit file is an error.
func ResolveCommands(path string, explicit bool, defaultWait time.Duration) ([]CommandConfig, error) {
	if path == "" {
		return DefaultCommands(), nil
	}
	commands, err := LoadCommands(path, defaultWait)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return DefaultCommands(), nil
	}
	if err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, ErrCommandsFile(path, err.Error())
	}
	return commands, nil
}

// ClampWaitTimeout bounds d to [MinWaitTimeout, MaxWaitTimeout].
func ClampWaitTimeout(d time.Duration) time.Duration {
	switch {
	case d < MinWaitTimeout:
		return MinWaitTimeout
	case d > MaxWaitTimeout:
		return MaxWaitTimeout
	default:
		return d
	}
}

// EnabledCommands filters out disabled commands, preserving order.
func EnabledCommands(commands []CommandConfig) []CommandConfig {
	enabled := make([]CommandConfig, 0, len(commands))
	for _, cmd := range commands {
		if cmd.Enabled {
			enabled = append(enabled, cmd)
		}
	}
	return enabled
}
