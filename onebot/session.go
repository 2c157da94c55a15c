package onebot

import (
	"context"
	"sync"
	"time"

	"github.com/HydroGest/lmarena/handlers"

	"go.uber.org/zap"
)

const quoteFetchTimeout = 8 * time.Second

// AvatarURL returns the QQ avatar of userID at 640px.
func AvatarURL(userID string) string {
	return "https://q1.qlogo.cn/g?b=qq&nk=" + userID + "&s=640"
}

// session is one message event seen through handlers.Session.
type session struct {
	client *Client
	// ctx is the Run context; the quoted message is fetched under it.
	ctx context.Context

	messageType string
	userID      string
	groupID     string
	messageID   string
	selfID      string
	content     string
	quoteID     string

	quoteOnce sync.Once
	quote     string
}

var _ handlers.Session = (*session)(nil)

func (s *session) Content() string   { return s.content }
func (s *session) UserID() string    { return s.userID }
func (s *session) MessageID() string { return s.messageID }
func (s *session) SelfID() string    { return s.selfID }

// ChannelID is "group:<id>" for group messages and "private:<id>" otherwise.
func (s *session) ChannelID() string {
	if s.messageType == "group" && s.groupID != "" {
		return "group:" + s.groupID
	}
	return "private:" + s.userID
}

// QuoteContent fetches the replied-to message on first use. A failed fetch
// reads as no quote.
func (s *session) QuoteContent() string {
	if s.quoteID == "" {
		return ""
	}
	s.quoteOnce.Do(func() {
		ctx, cancel := context.WithTimeout(s.ctx, quoteFetchTimeout)
		defer cancel()
		quote, err := s.client.GetMessage(ctx, s.quoteID)
		if err != nil {
			s.client.log.Warn("failed to fetch quoted message",
				zap.String("message_id", s.quoteID),
				zap.Error(err),
			)
			return
		}
		s.quote = quote
	})
	return s.quote
}

func (s *session) Send(ctx context.Context, content string) (string, error) {
	return s.client.SendMessage(ctx, s.ChannelID(), content)
}

func (s *session) Delete(ctx context.Context, messageID string) error {
	return s.client.DeleteMessage(ctx, messageID)
}

// Prompt waits for the next message from the same user in the same channel.
func (s *session) Prompt(ctx context.Context, timeout time.Duration) (string, bool) {
	return s.client.waitPrompt(ctx, promptKey(s.ChannelID(), s.userID), timeout)
}

func (s *session) Text(key handlers.Key, args ...interface{}) string {
	return s.client.catalog.Text(key, args...)
}

func (s *session) AvatarURL(userID string) string {
	return AvatarURL(userID)
}
