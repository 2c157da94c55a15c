package handlers

import (
	"context"

	"github.com/HydroGest/lmarena/core"
	"github.com/HydroGest/lmarena/logging"
	"github.com/HydroGest/lmarena/markup"

	"go.uber.org/zap"
)

// Runner executes a matched command. *Handler implements it.
type Runner interface {
	Run(ctx context.Context, session Session, cmd core.CommandConfig)
}

// Router maps "<prefix><name>" messages to enabled commands.
type Router struct {
	prefix   string
	commands map[string]core.CommandConfig
	runner   Runner
	launcher Launcher
	log      *logging.Logger
}

// NewRouter indexes the enabled commands. launcher may be nil, in which
// case Dispatch runs the command on the caller's goroutine.
func NewRouter(prefix string, commands []core.CommandConfig, runner Runner, launcher Launcher, log *logging.Logger) *Router {
	if log == nil {
		log = logging.NewNop()
	}
	index := make(map[string]core.CommandConfig)
	for _, cmd := range core.EnabledCommands(commands) {
		index[cmd.Name] = cmd
	}
	return &Router{
		prefix:   prefix,
		commands: index,
		runner:   runner,
		launcher: launcher,
		log:      log,
	}
}

// Match returns the command named by content, if any.
func (r *Router) Match(content string) (core.CommandConfig, bool) {
	name, _, ok := ParseCommand(markup.PlainText(content), r.prefix)
	if !ok {
		return core.CommandConfig{}, false
	}
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Dispatch starts the command named by session's message. It reports
// whether a command matched and was started; false during shutdown.
func (r *Router) Dispatch(ctx context.Context, session Session) bool {
	cmd, ok := r.Match(session.Content())
	if !ok {
		return false
	}

	if r.launcher == nil {
		r.runner.Run(ctx, session, cmd)
		return true
	}

	started := r.launcher.Go(ctx, "command:"+cmd.Name, func(invCtx context.Context) error {
		r.runner.Run(invCtx, session, cmd)
		return nil
	})
	if !started {
		r.log.Info("command ignored, shutting down",
			zap.String("command", cmd.Name),
			zap.String("user_id", session.UserID()),
		)
	}
	return started
}

// Commands returns the names of the routed commands.
func (r *Router) Commands() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	return names
}
