package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/HydroGest/lmarena/bridge"
	"github.com/HydroGest/lmarena/db"
	"github.com/HydroGest/lmarena/imagegen"
)

// fakeSession is a scripted chat session. Prompt pops queued replies and
// reports a timeout once the queue is empty.
type fakeSession struct {
	mu sync.Mutex

	content string
	quote   string
	user    string
	channel string
	msgID   string
	self    string

	replies   []string
	sent      []string
	deleted   []string
	timeouts  []time.Duration
	sendErr   error
	deleteErr error
	catalog   *Catalog
}

func newFakeSession(content string, replies ...string) *fakeSession {
	return &fakeSession{
		content: content,
		user:    "10001",
		channel: "20002",
		msgID:   "msg1",
		self:    "99999",
		replies: replies,
		catalog: NewCatalog("en-US"),
	}
}

func (s *fakeSession) Content() string      { return s.content }
func (s *fakeSession) QuoteContent() string { return s.quote }
func (s *fakeSession) UserID() string       { return s.user }
func (s *fakeSession) ChannelID() string    { return s.channel }
func (s *fakeSession) MessageID() string    { return s.msgID }
func (s *fakeSession) SelfID() string       { return s.self }

func (s *fakeSession) Send(ctx context.Context, content string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return "", s.sendErr
	}
	s.sent = append(s.sent, content)
	return fmt.Sprintf("sent%d", len(s.sent)), nil
}

func (s *fakeSession) Prompt(ctx context.Context, timeout time.Duration) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeouts = append(s.timeouts, timeout)
	if ctx.Err() != nil || len(s.replies) == 0 {
		return "", false
	}
	next := s.replies[0]
	s.replies = s.replies[1:]
	return next, true
}

func (s *fakeSession) Delete(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, messageID)
	return nil
}

func (s *fakeSession) Text(key Key, args ...interface{}) string {
	return s.catalog.Text(key, args...)
}

func (s *fakeSession) AvatarURL(userID string) string {
	return "https://avatar.example/" + userID + ".png"
}

func (s *fakeSession) sentMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func (s *fakeSession) deletedMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// fakeGenerator records the request and answers with fn.
type fakeGenerator struct {
	mu    sync.Mutex
	calls []bridge.GenerationRequest
	fn    func(ctx context.Context, req bridge.GenerationRequest, call bridge.CallOptions) (*bridge.Result, error)
}

func (g *fakeGenerator) GenerateWithFallback(ctx context.Context, req bridge.GenerationRequest, opts ...bridge.Option) (*bridge.Result, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	if g.fn == nil {
		return &bridge.Result{ImageURL: "https://img.example/out.png", Leg: bridge.LegPrimary, Model: req.Model(), Attempts: 1}, nil
	}
	return g.fn(ctx, req, bridge.ApplyOptions(opts...))
}

func (g *fakeGenerator) requests() []bridge.GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]bridge.GenerationRequest(nil), g.calls...)
}

// fakePreparer turns every http source into a tiny PNG, except those
// listed in broken.
type fakePreparer struct {
	mu      sync.Mutex
	sources []string
	broken  map[string]bool
	err     error
}

func (p *fakePreparer) Prepare(ctx context.Context, sources []string) ([]imagegen.InputImage, error) {
	p.mu.Lock()
	p.sources = append(p.sources, sources...)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	var out []imagegen.InputImage
	for _, src := range sources {
		if p.broken[src] {
			continue
		}
		out = append(out, imagegen.InputImage{Source: src, MIME: "image/png", Data: []byte("png")})
	}
	return out, nil
}

func (p *fakePreparer) prepared() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sources...)
}

type recordingHistory struct {
	mu      sync.Mutex
	records []db.GenerationRecord
}

func (h *recordingHistory) Record(rec db.GenerationRecord) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	return true
}

func (h *recordingHistory) last() db.GenerationRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.records) == 0 {
		return db.GenerationRecord{}
	}
	return h.records[len(h.records)-1]
}

type recordingObserver struct {
	mu       sync.Mutex
	started  int
	finished int
	statuses []string
}

func (o *recordingObserver) InvocationStarted() {
	o.mu.Lock()
	o.started++
	o.mu.Unlock()
}

func (o *recordingObserver) InvocationFinished() {
	o.mu.Lock()
	o.finished++
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveGeneration(command, status, leg string, elapsed time.Duration) {
	o.mu.Lock()
	o.statuses = append(o.statuses, status)
	o.mu.Unlock()
}

var errBoom = errors.New("boom")
