package handlers

import (
	"context"
	"time"

	"github.com/HydroGest/lmarena/logging"

	"go.uber.org/zap"
)

// cleanupTimeout bounds recalling a hint after the invocation context ended.
const cleanupTimeout = 5 * time.Second

// ProgressReporter owns a transient hint message such as "send an image
// within 50 seconds". Cleanup recalls it; a failed recall is only logged.
//
// Example:
//
//	hint := NewProgressReporter(session, log)
//	defer hint.Cleanup(ctx)
//	hint.Show(ctx, session.Text(MsgWaitPrompt, 50))
type ProgressReporter struct {
	session   Session
	log       *logging.Logger
	messageID string
}

// NewProgressReporter creates a reporter with nothing shown yet.
func NewProgressReporter(session Session, log *logging.Logger) *ProgressReporter {
	if log == nil {
		log = logging.NewNop()
	}
	return &ProgressReporter{session: session, log: log}
}

// Show sends content, replacing any hint shown before.
func (r *ProgressReporter) Show(ctx context.Context, content string) error {
	r.Cleanup(ctx)
	id, err := r.session.Send(ctx, content)
	if err != nil {
		return err
	}
	r.messageID = id
	return nil
}

// Cleanup recalls the current hint. It runs even when ctx is already
// cancelled and is a no-op when nothing is shown.
func (r *ProgressReporter) Cleanup(ctx context.Context) {
	if r.messageID == "" {
		return
	}
	id := r.messageID
	r.messageID = ""

	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := r.session.Delete(delCtx, id); err != nil {
		r.log.Warn("failed to recall hint message",
			zap.String("channel_id", r.session.ChannelID()),
			zap.String("message_id", id),
			zap.Error(err),
		)
	}
}

// MessageID returns the id of the hint currently shown, or "".
func (r *ProgressReporter) MessageID() string {
	return r.messageID
}
