package handlers

import (
	"context"
	"sync"
	"testing"

	"github.com/HydroGest/lmarena/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	mu   sync.Mutex
	runs []string
}

func (r *recordingRunner) Run(ctx context.Context, session Session, cmd core.CommandConfig) {
	r.mu.Lock()
	r.runs = append(r.runs, cmd.Name)
	r.mu.Unlock()
}

// fakeLauncher runs fn inline, or refuses when closed.
type fakeLauncher struct {
	closed bool
	names  []string
}

func (l *fakeLauncher) Go(ctx context.Context, name string, fn func(context.Context) error) bool {
	if l.closed {
		return false
	}
	l.names = append(l.names, name)
	_ = fn(ctx)
	return true
}

func testCommands() []core.CommandConfig {
	disabled := figureCommand()
	disabled.Name = "cos化"
	disabled.Enabled = false
	return []core.CommandConfig{figureCommand(), customCommand(), disabled}
}

func TestRouter_Match(t *testing.T) {
	r := NewRouter("/", testCommands(), &recordingRunner{}, nil, nil)

	cases := []struct {
		content string
		want    string
		ok      bool
	}{
		{"/手办化", "手办化", true},
		{`<quote id="5"/>/修图 make it blue`, "修图", true},
		{`<at id="99999"/> /手办化 <img src="https://img.example/a.png"/>`, "手办化", true},
		{"/cos化", "", false},
		{"手办化", "", false},
		{"/unknown", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		cmd, ok := r.Match(tc.content)
		assert.Equal(t, tc.ok, ok, tc.content)
		assert.Equal(t, tc.want, cmd.Name, tc.content)
	}
}

func TestRouter_DispatchWithoutLauncher(t *testing.T) {
	runner := &recordingRunner{}
	r := NewRouter("/", testCommands(), runner, nil, nil)

	assert.True(t, r.Dispatch(context.Background(), newFakeSession("/修图 hello")))
	assert.False(t, r.Dispatch(context.Background(), newFakeSession("hello")))
	assert.Equal(t, []string{"修图"}, runner.runs)
}

func TestRouter_DispatchThroughLauncher(t *testing.T) {
	runner := &recordingRunner{}
	launcher := &fakeLauncher{}
	r := NewRouter("/", testCommands(), runner, launcher, nil)

	require.True(t, r.Dispatch(context.Background(), newFakeSession("/手办化")))
	assert.Equal(t, []string{"command:手办化"}, launcher.names)
	assert.Equal(t, []string{"手办化"}, runner.runs)

	launcher.closed = true
	assert.False(t, r.Dispatch(context.Background(), newFakeSession("/手办化")))
	assert.Len(t, runner.runs, 1)
}

func TestRouter_CommandsSkipsDisabled(t *testing.T) {
	r := NewRouter("/", testCommands(), &recordingRunner{}, nil, nil)
	assert.ElementsMatch(t, []string{"手办化", "修图"}, r.Commands())
}
