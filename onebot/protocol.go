package onebot

import (
	"encoding/json"
	"fmt"
	"strings"
)

// rawEvent covers both events and API responses; Echo tells them apart.
type rawEvent struct {
	PostType      string          `json:"post_type"`
	MessageType   string          `json:"message_type"`
	SubType       string          `json:"sub_type"`
	MetaEventType string          `json:"meta_event_type"`
	MessageID     json.RawMessage `json:"message_id"`
	UserID        json.RawMessage `json:"user_id"`
	GroupID       json.RawMessage `json:"group_id"`
	SelfID        json.RawMessage `json:"self_id"`
	Message       json.RawMessage `json:"message"`
	Echo          string          `json:"echo"`
}

type apiRequest struct {
	Action string      `json:"action"`
	Params interface{} `json:"params"`
	Echo   string      `json:"echo"`
}

type apiResponse struct {
	Status  string          `json:"status"`
	RetCode int             `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Wording string          `json:"wording"`
	Echo    string          `json:"echo"`
}

func (r apiResponse) message() string {
	if r.Wording != "" {
		return r.Wording
	}
	return r.Message
}

type sendMsgParams struct {
	MessageType string      `json:"message_type"`
	GroupID     interface{} `json:"group_id,omitempty"`
	UserID      interface{} `json:"user_id,omitempty"`
	Message     []Segment   `json:"message"`
}

// APIError is a failed OneBot API call.
type APIError struct {
	Action  string
	RetCode int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("onebot: %s failed (retcode %d)", e.Action, e.RetCode)
	}
	return fmt.Sprintf("onebot: %s failed (retcode %d): %s", e.Action, e.RetCode, e.Message)
}

// idString reads an id that may be encoded as a number or a string.
func idString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if n.String() == "0" {
			return ""
		}
		return n.String()
	}
	return ""
}
