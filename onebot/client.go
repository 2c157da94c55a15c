// Package onebot is a minimal OneBot v11 forward-websocket adapter. It
// turns message events into handlers.Session values and carries the API
// calls those sessions make (send_msg, delete_msg, get_msg) over the same
// connection, correlated by echo.
package onebot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HydroGest/lmarena/core"
	"github.com/HydroGest/lmarena/handlers"
	"github.com/HydroGest/lmarena/logging"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultCallTimeout       = 10 * time.Second
	defaultReconnectInterval = 5 * time.Second
	handshakeTimeout         = 10 * time.Second
	writeWait                = 10 * time.Second
)

// ErrNotConnected is returned by API calls made while the websocket is down.
var ErrNotConnected = errors.New("onebot: not connected")

// Dispatcher receives every message event that is not an answer to a
// pending Prompt. *handlers.Router implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, session handlers.Session) bool
}

// StatusObserver is told when the connection goes up or down.
// *metrics.Store implements it.
type StatusObserver interface {
	SetConnected(connected bool)
}

// Config configures a Client.
type Config struct {
	URL               string
	AccessToken       string
	ReconnectInterval time.Duration
	// CallTimeout bounds one API call when the caller's context has no
	// earlier deadline.
	CallTimeout time.Duration
}

// ConfigFromCore reads the adapter settings out of the bot configuration.
func ConfigFromCore(cfg *core.Config) Config {
	return Config{
		URL:               cfg.OneBotURL,
		AccessToken:       cfg.OneBotAccessToken,
		ReconnectInterval: cfg.OneBotReconnectInterval,
		CallTimeout:       defaultCallTimeout,
	}
}

// Client holds one websocket connection at a time and reconnects until its
// context ends.
//
// Thread-Safety: every exported method is safe for concurrent use.
type Client struct {
	cfg        Config
	dispatcher Dispatcher
	catalog    *handlers.Catalog
	status     StatusObserver
	log        *logging.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	writeMu sync.Mutex
	echo    atomic.Int64

	waitMu  sync.Mutex
	waiters map[string]chan apiResponse

	promptMu sync.Mutex
	prompts  map[string][]chan string
}

// NewClient creates a Client. status may be nil.
func NewClient(cfg Config, dispatcher Dispatcher, catalog *handlers.Catalog, status StatusObserver, log *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, core.ErrMissingConfig("ONEBOT_WS_URL")
	}
	if dispatcher == nil {
		return nil, errors.New("onebot: dispatcher is required")
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if catalog == nil {
		catalog = handlers.NewCatalog(handlers.DefaultLocale)
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Client{
		cfg:        cfg,
		dispatcher: dispatcher,
		catalog:    catalog,
		status:     status,
		log:        log,
		waiters:    make(map[string]chan apiResponse),
		prompts:    make(map[string][]chan string),
	}, nil
}

// Run connects and serves events until ctx ends, reconnecting after
// ReconnectInterval whenever the connection drops. It returns ctx.Err().
func (c *Client) Run(ctx context.Context) error {
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("onebot connection failed",
				zap.String("url", c.cfg.URL),
				zap.Duration("retry_in", c.cfg.ReconnectInterval),
				zap.Error(err),
			)
		} else {
			c.serve(ctx, conn)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("onebot connection lost, reconnecting",
				zap.Duration("retry_in", c.cfg.ReconnectInterval))
		}

		timer := time.NewTimer(c.cfg.ReconnectInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Connected reports whether a websocket is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	header := http.Header{}
	if c.cfg.AccessToken != "" {
		header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	}
	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", c.cfg.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	return conn, nil
}

// serve reads conn until it fails or ctx ends.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setConnected(true)
	c.log.Info("onebot connected", zap.String("url", c.cfg.URL))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
		c.setConnected(false)
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.log.Warn("onebot read failed", zap.Error(err))
			}
			return
		}
		c.handleFrame(ctx, payload)
	}
}

func (c *Client) setConnected(up bool) {
	if c.status != nil {
		c.status.SetConnected(up)
	}
}

// handleFrame runs on the read loop and must never wait on an API call.
func (c *Client) handleFrame(ctx context.Context, payload []byte) {
	var ev rawEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		c.log.Warn("onebot frame is not json", zap.Int("bytes", len(payload)), zap.Error(err))
		return
	}

	if ev.Echo != "" {
		c.resolve(payload, ev.Echo)
		return
	}

	switch ev.PostType {
	case "message":
		c.handleMessage(ctx, ev)
	case "meta_event":
		if ev.MetaEventType == "lifecycle" {
			c.log.Info("onebot lifecycle event", zap.String("sub_type", ev.SubType))
		}
	}
}

func (c *Client) handleMessage(ctx context.Context, ev rawEvent) {
	segs, err := ParseMessage(ev.Message)
	if err != nil {
		c.log.Warn("unreadable message event", zap.Error(err))
		return
	}
	s := &session{
		client:      c,
		ctx:         ctx,
		messageType: ev.MessageType,
		userID:      idString(ev.UserID),
		groupID:     idString(ev.GroupID),
		messageID:   idString(ev.MessageID),
		selfID:      idString(ev.SelfID),
		content:     ToMarkup(segs),
	}
	if s.userID == "" || s.userID == s.selfID {
		return
	}
	for _, seg := range segs {
		if seg.Type == "reply" {
			s.quoteID = seg.str("id")
			break
		}
	}

	if c.deliverPrompt(promptKey(s.ChannelID(), s.userID), s.content) {
		return
	}
	go c.dispatcher.Dispatch(ctx, s)
}

// Call invokes a OneBot API action and returns its data.
func (c *Client) Call(ctx context.Context, action string, params interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	echo := action + ":" + strconv.FormatInt(c.echo.Add(1), 10)
	waiter := make(chan apiResponse, 1)
	c.waitMu.Lock()
	c.waiters[echo] = waiter
	c.waitMu.Unlock()
	defer func() {
		c.waitMu.Lock()
		delete(c.waiters, echo)
		c.waitMu.Unlock()
	}()

	payload, err := json.Marshal(apiRequest{Action: action, Params: params, Echo: echo})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", action, err)
	}
	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", action, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	select {
	case resp := <-waiter:
		if resp.Status == "failed" || resp.RetCode != 0 {
			return nil, &APIError{Action: action, RetCode: resp.RetCode, Message: resp.message()}
		}
		return resp.Data, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", action, ctx.Err())
	}
}

func (c *Client) resolve(payload []byte, echo string) {
	var resp apiResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		c.log.Warn("unreadable api response", zap.String("echo", echo), zap.Error(err))
		return
	}
	c.waitMu.Lock()
	waiter := c.waiters[echo]
	c.waitMu.Unlock()
	if waiter == nil {
		return
	}
	select {
	case waiter <- resp:
	default:
	}
}

// SendMessage sends content (markup) to a "group:<id>" or "private:<id>"
// channel and returns the new message id.
func (c *Client) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	kind, id, ok := strings.Cut(channelID, ":")
	if !ok || id == "" {
		return "", fmt.Errorf("onebot: invalid channel id %q", channelID)
	}
	params := sendMsgParams{Message: FromMarkup(content)}
	switch kind {
	case "group":
		params.MessageType = "group"
		params.GroupID = numericID(id)
	case "private":
		params.MessageType = "private"
		params.UserID = numericID(id)
	default:
		return "", fmt.Errorf("onebot: invalid channel id %q", channelID)
	}

	data, err := c.Call(ctx, "send_msg", params)
	if err != nil {
		return "", err
	}
	var out struct {
		MessageID json.RawMessage `json:"message_id"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode send_msg: %w", err)
	}
	return idString(out.MessageID), nil
}

// DeleteMessage recalls a message.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	_, err := c.Call(ctx, "delete_msg", map[string]interface{}{"message_id": numericID(messageID)})
	return err
}

// GetMessage fetches a message and renders it as markup.
func (c *Client) GetMessage(ctx context.Context, messageID string) (string, error) {
	data, err := c.Call(ctx, "get_msg", map[string]interface{}{"message_id": numericID(messageID)})
	if err != nil {
		return "", err
	}
	var out struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode get_msg: %w", err)
	}
	segs, err := ParseMessage(out.Message)
	if err != nil {
		return "", fmt.Errorf("decode get_msg message: %w", err)
	}
	return ToMarkup(segs), nil
}

// waitPrompt waits for the next message on key. Messages are handed to
// waiters in the order they started waiting.
func (c *Client) waitPrompt(ctx context.Context, key string, timeout time.Duration) (string, bool) {
	ch := make(chan string, 1)
	c.promptMu.Lock()
	c.prompts[key] = append(c.prompts[key], ch)
	c.promptMu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case content := <-ch:
		return content, true
	case <-timer.C:
	case <-ctx.Done():
	}

	c.promptMu.Lock()
	queue := c.prompts[key]
	for i, w := range queue {
		if w == ch {
			queue = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	if len(queue) == 0 {
		delete(c.prompts, key)
	} else {
		c.prompts[key] = queue
	}
	c.promptMu.Unlock()

	// A message may have been handed over while the timer fired.
	select {
	case content := <-ch:
		return content, ctx.Err() == nil
	default:
		return "", false
	}
}

func (c *Client) deliverPrompt(key, content string) bool {
	c.promptMu.Lock()
	defer c.promptMu.Unlock()
	queue := c.prompts[key]
	if len(queue) == 0 {
		return false
	}
	queue[0] <- content
	if len(queue) == 1 {
		delete(c.prompts, key)
	} else {
		c.prompts[key] = queue[1:]
	}
	return true
}

// pendingPrompts returns the number of sessions waiting on key.
func (c *Client) pendingPrompts(key string) int {
	c.promptMu.Lock()
	defer c.promptMu.Unlock()
	return len(c.prompts[key])
}

func promptKey(channelID, userID string) string {
	return channelID + "/" + userID
}

// numericID sends ids as numbers when they are, since some implementations
// reject string ids.
func numericID(id string) interface{} {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
