package core

import (
	"testing"
	"time"
)

func TestParseCommands(t *testing.T) {
	data := []byte(`
default_wait_timeout: 40
commands:
  - name: 手办化
    prompt: Make a figurine.
  - name: 合并图片
    prompt: 将两张图片合并为一张
    custom: true
    max_images: 2
    wait_timeout: 300
  - name: 修图
    custom: true
    enabled: false
    max_images: 0
    default_image_urls:
      - https://example.com/base.png
`)

	commands, err := ParseCommands(data, 50*time.Second)
	if err != nil {
		t.Fatalf("ParseCommands() error: %v", err)
	}
	if len(commands) != 3 {
		t.Fatalf("len = %d, want 3", len(commands))
	}

	figurine := commands[0]
	if !figurine.Enabled || figurine.Custom || figurine.MaxImages != 1 {
		t.Errorf("figurine defaults wrong: %+v", figurine)
	}
	if figurine.WaitTimeout != 40*time.Second {
		t.Errorf("figurine WaitTimeout = %v, want file default 40s", figurine.WaitTimeout)
	}

	merge := commands[1]
	if merge.MaxImages != 2 || !merge.Custom {
		t.Errorf("merge = %+v", merge)
	}
	if merge.WaitTimeout != MaxWaitTimeout {
		t.Errorf("merge WaitTimeout = %v, want clamp to %v", merge.WaitTimeout, MaxWaitTimeout)
	}

	repair := commands[2]
	if repair.Enabled || repair.MaxImages != 0 || len(repair.DefaultImageURLs) != 1 {
		t.Errorf("repair = %+v", repair)
	}
	if got := EnabledCommands(commands); len(got) != 2 {
		t.Errorf("EnabledCommands() len = %d, want 2", len(got))
	}
}

func TestParseCommands_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "empty", yaml: "commands: []"},
		{name: "not yaml", yaml: "commands: [unterminated"},
		{name: "missing name", yaml: "commands:\n  - prompt: x\n"},
		{name: "duplicate", yaml: "commands:\n  - {name: a, prompt: x}\n  - {name: a, prompt: y}\n"},
		{name: "too many images", yaml: "commands:\n  - {name: a, prompt: x, max_images: 6}\n"},
		{name: "fixed command without prompt", yaml: "commands:\n  - {name: a}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommands([]byte(tt.yaml), 50*time.Second)
			if GetErrorCode(err) != ErrCodeInvalidCommands {
				t.Errorf("err = %v, want %s", err, ErrCodeInvalidCommands)
			}
		})
	}
}

func TestResolveCommands_FallsBackToDefaults(t *testing.T) {
	commands, err := ResolveCommands("/nonexistent/commands.yaml", false, 50*time.Second)
	if err != nil {
		t.Fatalf("ResolveCommands() error: %v", err)
	}
	if len(commands) != len(DefaultCommands()) {
		t.Errorf("len = %d, want built-in set", len(commands))
	}
}

func TestDefaultCommands(t *testing.T) {
	commands := DefaultCommands()

	type expectation struct {
		custom    bool
		maxImages int
		wait      time.Duration
	}
	fixed := expectation{custom: false, maxImages: 1, wait: 50 * time.Second}
	want := map[string]expectation{
		"手办化":    fixed,
		"手办化2":   fixed,
		"手办化3":   fixed,
		"coser化": fixed,
		"mc化":    fixed,
		"合并图片":   {custom: true, maxImages: 2, wait: 60 * time.Second},
		"修图":     {custom: true, maxImages: 1, wait: 60 * time.Second},
	}
	if len(commands) != len(want) {
		t.Fatalf("len = %d, want %d", len(commands), len(want))
	}
	for _, cmd := range commands {
		w, ok := want[cmd.Name]
		if !ok {
			t.Errorf("unexpected command %q", cmd.Name)
			continue
		}
		if cmd.Custom != w.custom || cmd.MaxImages != w.maxImages || cmd.WaitTimeout != w.wait {
			t.Errorf("%s = %+v", cmd.Name, cmd)
		}
		if !cmd.Enabled || cmd.Prompt == "" {
			t.Errorf("%s should be enabled with a prompt", cmd.Name)
		}
	}
}

func TestClampWaitTimeout(t *testing.T) {
	tests := []struct {
		in, want time.Duration
	}{
		{in: 0, want: MinWaitTimeout},
		{in: 30 * time.Second, want: 30 * time.Second},
		{in: 10 * time.Minute, want: MaxWaitTimeout},
	}
	for _, tt := range tests {
		if got := ClampWaitTimeout(tt.in); got != tt.want {
			t.Errorf("ClampWaitTimeout(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatMegabytes(t *testing.T) {
	if got := FormatMegabytes(6*BytesPerMB + BytesPerMB/5); got != "6.20 MB" {
		t.Errorf("FormatMegabytes() = %q, want 6.20 MB", got)
	}
	if got := FormatBytes(1536); got != "1.50 KB" {
		t.Errorf("FormatBytes(1536) = %q", got)
	}
}
