package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HydroGest/lmarena/bridge"
	"github.com/HydroGest/lmarena/core"
	"github.com/HydroGest/lmarena/db"
	"github.com/HydroGest/lmarena/imagegen"
	"github.com/HydroGest/lmarena/logging"
	"github.com/HydroGest/lmarena/markup"

	"go.uber.org/zap"
)

// Generator produces an image URL. *bridge.Orchestrator implements it.
type Generator interface {
	GenerateWithFallback(ctx context.Context, req bridge.GenerationRequest, opts ...bridge.Option) (*bridge.Result, error)
}

// Preparer downloads and normalizes input images. *imagegen.Pipeline
// implements it.
type Preparer interface {
	Prepare(ctx context.Context, sources []string) ([]imagegen.InputImage, error)
}

// HistoryRecorder stores finished invocations. *db.Recorder implements it.
type HistoryRecorder interface {
	Record(rec db.GenerationRecord) bool
}

// Observer receives invocation metrics. *metrics.Collector implements it.
type Observer interface {
	InvocationStarted()
	InvocationFinished()
	ObserveGeneration(command, status, leg string, elapsed time.Duration)
}

// Options wires a Handler. Generator and Preparer are required.
type Options struct {
	Generator Generator
	Preparer  Preparer
	History   HistoryRecorder
	Observer  Observer
	Limiter   *RateLimiter
	// Model is the model requested from the bridge.
	Model string
	// Prefix is stripped with the command name from custom command text.
	Prefix string
	Logger *logging.Logger
}

// Handler runs one command invocation end to end. It never returns an
// error: every failure becomes a chat reply and a log line.
type Handler struct {
	generator Generator
	preparer  Preparer
	history   HistoryRecorder
	observer  Observer
	limiter   *RateLimiter
	model     string
	prefix    string
	log       *logging.Logger
}

// NewHandler validates opts and returns a Handler.
func NewHandler(opts Options) (*Handler, error) {
	if opts.Generator == nil {
		return nil, errors.New("handlers: generator is required")
	}
	if opts.Preparer == nil {
		return nil, errors.New("handlers: preparer is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.History == nil {
		opts.History = nopHistory{}
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Handler{
		generator: opts.Generator,
		preparer:  opts.Preparer,
		history:   opts.History,
		observer:  opts.Observer,
		limiter:   opts.Limiter,
		model:     opts.Model,
		prefix:    opts.Prefix,
		log:       opts.Logger,
	}, nil
}

// invocation is the state of one Run, flushed to history when it ends.
type invocation struct {
	id      string
	cmd     core.CommandConfig
	session Session
	log     *logging.Logger
	quote   string

	prompt       string
	imageCount   int
	model        string
	leg          string
	attempts     int
	usedFallback bool
	imageURL     string
	errMsg       string
}

// Run executes cmd for session. Cancellation of ctx (shutdown) ends the
// invocation silently.
func (h *Handler) Run(ctx context.Context, session Session, cmd core.CommandConfig) {
	start := time.Now()
	inv := &invocation{
		id:      GenerateCorrelationID(),
		cmd:     cmd,
		session: session,
		quote:   markup.Quote(session.MessageID()),
		model:   h.model,
	}
	inv.log = h.log.With(
		zap.String("correlation_id", inv.id),
		zap.String("command", cmd.Name),
		zap.String("user_id", session.UserID()),
		zap.String("channel_id", session.ChannelID()),
	)

	h.observer.InvocationStarted()
	defer h.observer.InvocationFinished()

	var status string
	err := Safely(func() error {
		status = h.run(ctx, inv)
		return nil
	})
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		inv.log.Error("invocation panicked",
			zap.Any("panic", panicErr.Value),
			zap.ByteString("stack", panicErr.Stack),
		)
		inv.errMsg = panicErr.Error()
		status = db.StatusError
		if ctx.Err() == nil {
			h.reply(ctx, inv, session.Text(MsgError))
		}
	}

	h.finish(inv, status, time.Since(start))
}

func (h *Handler) run(ctx context.Context, inv *invocation) string {
	s := inv.session
	cmd := inv.cmd

	if ctx.Err() != nil {
		return db.StatusCancelled
	}
	if !h.limiter.Allow(s.UserID()) {
		inv.log.Info("rate limited")
		h.reply(ctx, inv, inv.quote+s.Text(MsgRateLimited))
		return db.StatusRateLimited
	}

	images := append([]string(nil), cmd.DefaultImageURLs...)
	if len(images) > 0 {
		inv.log.Debug("added default images", zap.Int("count", len(images)))
	}

	prompt := cmd.Prompt
	if cmd.Custom {
		var ok bool
		prompt, ok = h.customPrompt(ctx, inv)
		if ctx.Err() != nil {
			return db.StatusCancelled
		}
		if !ok {
			h.reply(ctx, inv, inv.quote+s.Text(MsgNeedPrompt))
			return db.StatusNoInput
		}
	}
	inv.prompt = prompt

	userImages := CollectImages(s.Content(), s.QuoteContent())
	for _, id := range MentionedUsers(s.Content(), s.SelfID()) {
		if avatar := s.AvatarURL(id); avatar != "" {
			userImages = append(userImages, avatar)
		}
	}
	images = append(images, userImages...)

	if remaining := cmd.MaxImages - len(userImages); remaining > 0 {
		images = append(images, h.waitForImages(ctx, inv, remaining)...)
		if ctx.Err() != nil {
			return db.StatusCancelled
		}
	}

	images, rejected := FilterSources(images)
	if len(rejected) > 0 {
		inv.log.Warn("ignored unsupported image sources", zap.Int("count", len(rejected)))
	}
	if len(images) == 0 {
		h.reply(ctx, inv, inv.quote+s.Text(MsgNeedImages))
		return db.StatusNoInput
	}

	h.reply(ctx, inv, inv.quote+s.Text(MsgProcessing))

	prepared, err := h.preparer.Prepare(ctx, images)
	if ctx.Err() != nil {
		return db.StatusCancelled
	}
	if err != nil || len(prepared) == 0 {
		if err != nil {
			inv.errMsg = err.Error()
		}
		inv.log.Warn("no usable images", zap.Int("requested", len(images)), zap.Error(err))
		h.reply(ctx, inv, inv.quote+s.Text(MsgInvalidImage))
		return db.StatusInvalidImage
	}
	inv.imageCount = len(prepared)

	req := imagegen.BuildRequest(h.model, prompt, prepared)
	inv.log.Info("generating",
		zap.Int("images", len(prepared)),
		zap.String("payload", core.FormatBytes(req.ImageBytes())),
	)

	res, err := h.generator.GenerateWithFallback(ctx, req, bridge.OnFallback(func() {
		h.reply(ctx, inv, s.Text(MsgFallback))
	}))
	if err != nil {
		if errors.Is(err, bridge.ErrCancelled) || ctx.Err() != nil {
			inv.log.Info("generation cancelled")
			return db.StatusCancelled
		}
		inv.recordFailure(err)
		inv.log.Error("generation failed", zap.Error(err))
		h.reply(ctx, inv, s.Text(MsgFailed))
		return db.StatusFailed
	}

	inv.leg = res.Leg
	inv.model = res.Model
	inv.attempts = res.Attempts
	inv.usedFallback = res.UsedFallback
	inv.imageURL = res.ImageURL
	h.reply(ctx, inv, markup.Image(res.ImageURL))
	return db.StatusSuccess
}

// customPrompt merges the command prompt with the user's text, asking for
// text when neither is present. ok is false when no prompt was obtained.
func (h *Handler) customPrompt(ctx context.Context, inv *invocation) (string, bool) {
	s := inv.session
	cmd := inv.cmd

	text := StripCommand(markup.PlainText(s.Content()), h.prefix, cmd.Name)
	if prompt := MergePrompt(cmd.Prompt, text); prompt != "" {
		return prompt, true
	}

	hint := NewProgressReporter(s, inv.log)
	if err := hint.Show(ctx, s.Text(MsgCustomPrompt, seconds(cmd.WaitTimeout))); err != nil {
		inv.log.Warn("failed to send prompt hint", zap.Error(err))
	}
	reply, ok := s.Prompt(ctx, cmd.WaitTimeout)
	hint.Cleanup(ctx)
	if !ok {
		return "", false
	}

	user := markup.PlainText(reply)
	if user == "" {
		return "", false
	}
	return MergePrompt(cmd.Prompt, user), true
}

// waitForImages asks for remaining more images and collects the images of
// up to remaining follow-up messages. It stops at the first timeout.
func (h *Handler) waitForImages(ctx context.Context, inv *invocation, remaining int) []string {
	s := inv.session
	hint := NewProgressReporter(s, inv.log)
	defer hint.Cleanup(ctx)

	if err := hint.Show(ctx, s.Text(MsgWaitPromptMultiple, seconds(inv.cmd.WaitTimeout), remaining)); err != nil {
		inv.log.Warn("failed to send image hint", zap.Error(err))
	}

	var images []string
	for i := 0; i < remaining; i++ {
		content, ok := s.Prompt(ctx, inv.cmd.WaitTimeout)
		if !ok {
			break
		}
		images = append(images, markup.ExtractImages(content)...)
	}
	return images
}

// reply sends content, logging failures. Nothing is sent once ctx ended.
func (h *Handler) reply(ctx context.Context, inv *invocation, content string) {
	if ctx.Err() != nil {
		return
	}
	if _, err := inv.session.Send(ctx, content); err != nil {
		inv.log.Warn("failed to send reply", zap.Error(err))
	}
}

func (h *Handler) finish(inv *invocation, status string, elapsed time.Duration) {
	inv.log.Info("invocation finished",
		zap.String("status", status),
		zap.String("leg", inv.leg),
		zap.Int("attempts", inv.attempts),
		zap.Duration("duration", elapsed),
	)
	h.observer.ObserveGeneration(inv.cmd.Name, status, inv.leg, elapsed)
	h.history.Record(db.GenerationRecord{
		CorrelationID: inv.id,
		Command:       inv.cmd.Name,
		UserID:        inv.session.UserID(),
		ChannelID:     inv.session.ChannelID(),
		Prompt:        TruncateText(inv.prompt, 2000),
		ImageCount:    inv.imageCount,
		Model:         inv.model,
		Leg:           inv.leg,
		Attempts:      inv.attempts,
		UsedFallback:  inv.usedFallback,
		Status:        status,
		ImageURL:      inv.imageURL,
		ErrorMessage:  TruncateText(inv.errMsg, 1000),
		Duration:      elapsed,
	})
}

// recordFailure copies the leg and attempt count out of a bridge error.
func (inv *invocation) recordFailure(err error) {
	inv.errMsg = err.Error()
	inv.leg = bridge.LegPrimary

	var exhausted *bridge.ExhaustedError
	var fallback *bridge.FallbackError
	if errors.As(err, &fallback) {
		inv.leg = bridge.LegFallback
		inv.usedFallback = true
		err = fallback.Fallback
	}
	if errors.As(err, &exhausted) {
		inv.attempts = exhausted.Attempts
	}
	var bridgeErr *bridge.Error
	if errors.As(err, &bridgeErr) && strings.TrimSpace(bridgeErr.Hint()) != "" {
		inv.errMsg = fmt.Sprintf("%s (%s)", inv.errMsg, bridgeErr.Hint())
	}
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}

type nopHistory struct{}

func (nopHistory) Record(db.GenerationRecord) bool { return false }

type nopObserver struct{}

func (nopObserver) InvocationStarted()                                      {}
func (nopObserver) InvocationFinished()                                     {}
func (nopObserver) ObserveGeneration(string, string, string, time.Duration) {}
