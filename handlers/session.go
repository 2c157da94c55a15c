// Package handlers runs the image stylization commands: it collects the
// prompt and images from the chat, hands them to the bridge and replies with
// the generated image. Chat platforms plug in through Session.
package handlers

import (
	"context"
	"time"
)

// Session is one incoming chat message plus the means to answer it.
// Content strings are markup (see package markup).
type Session interface {
	// Content is the triggering message.
	Content() string
	// QuoteContent is the message being replied to, or "".
	QuoteContent() string
	UserID() string
	ChannelID() string
	MessageID() string
	// SelfID is the bot's own user id, excluded from mention avatars.
	SelfID() string

	// Send posts content to the session's channel and returns its message id.
	Send(ctx context.Context, content string) (string, error)
	// Prompt waits up to timeout for the next message from the same user in
	// the same channel. ok is false on timeout or cancellation.
	Prompt(ctx context.Context, timeout time.Duration) (content string, ok bool)
	// Delete recalls a message previously sent in the channel.
	Delete(ctx context.Context, messageID string) error

	// Text renders a catalog message in the session's locale.
	Text(key Key, args ...interface{}) string
	// AvatarURL returns the avatar image of userID.
	AvatarURL(userID string) string
}
