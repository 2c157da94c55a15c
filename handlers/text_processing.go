package handlers

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// GenerateCorrelationID returns an 8-character id that ties together the
// log lines and the history row of one invocation.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// TruncateText cuts text to at most maxRunes runes.
//
// Example:
//
//	TruncateText("请提供自定义提示词", 4) // "请提供自"
func TruncateText(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes])
}

// ParseCommand splits "<prefix><name> rest" into name and rest. ok is false
// when text does not start with prefix or names nothing.
//
// Example:
//
//	ParseCommand("/修图 make it blue", "/") // "修图", "make it blue", true
func ParseCommand(text, prefix string) (name, rest string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, prefix) {
		return "", "", false
	}
	text = strings.TrimPrefix(text, prefix)
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", "", false
	}
	name = fields[0]
	rest = strings.TrimSpace(strings.TrimPrefix(strings.TrimLeft(text, " \t\r\n"), name))
	return name, rest, true
}

// StripCommand removes a leading "<prefix><name>" from text and trims the
// remainder. Text without the command token is returned trimmed.
func StripCommand(text, prefix, name string) string {
	text = strings.TrimSpace(text)
	token := prefix + name
	if strings.HasPrefix(text, token) {
		text = text[len(token):]
	}
	return strings.TrimSpace(text)
}

// MergePrompt combines a command's fixed prompt with user text, separated
// by a blank line. Either side may be empty.
func MergePrompt(fixed, user string) string {
	fixed = strings.TrimSpace(fixed)
	user = strings.TrimSpace(user)
	switch {
	case fixed == "":
		return user
	case user == "":
		return fixed
	default:
		return fixed + "\n\n" + user
	}
}
