package bridge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// redactImageURL replaces an image URL with its length so verbose logs stay
// readable.
func redactImageURL(url string) string {
	return fmt.Sprintf("data:image;base64,[%d chars]", len(url))
}

// describeRequest renders req as JSON with every image URL redacted.
func describeRequest(req openai.ChatCompletionRequest) string {
	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		parts := make([]openai.ChatMessagePart, len(msg.MultiContent))
		for j, part := range msg.MultiContent {
			if part.ImageURL != nil {
				redacted := *part.ImageURL
				redacted.URL = redactImageURL(part.ImageURL.URL)
				part.ImageURL = &redacted
			}
			parts[j] = part
		}
		msg.MultiContent = parts
		msgs[i] = msg
	}
	req.Messages = msgs

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Sprintf("<unencodable request: %v>", err)
	}
	return string(data)
}

// truncate shortens s for logging.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for i := range s {
		if i >= n {
			return s[:i] + "..."
		}
	}
	return s
}
