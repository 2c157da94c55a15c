package bridge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/HydroGest/lmarena/core"
	"github.com/HydroGest/lmarena/logging"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// maxResponseTokens caps the reply; only the image link is needed.
const maxResponseTokens = 300

// ClientOptions configures a Client. Zero values get defaults.
type ClientOptions struct {
	HTTPClient *http.Client
	Logger     *logging.Logger
	Observer   Observer
	// Verbose logs each request with image URLs redacted, plus each reply.
	Verbose bool
	// PayloadSanityBytes is the size at or below which a 413 is blamed on
	// the bridge rather than the images. Default 5 MiB.
	PayloadSanityBytes int64
}

// Client sends chat-completion requests and runs retry legs. It is safe for
// concurrent use; each call to Generate has its own RetryState.
type Client struct {
	httpClient  *http.Client
	log         *logging.Logger
	observer    Observer
	verbose     bool
	sanityBytes int64

	mu      sync.Mutex
	clients map[Endpoint]*openai.Client
}

// NewClient creates a Client.
func NewClient(opts ClientOptions) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 180 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.PayloadSanityBytes <= 0 {
		opts.PayloadSanityBytes = core.DefaultPayloadSanityMB * core.BytesPerMB
	}
	return &Client{
		httpClient:  opts.HTTPClient,
		log:         opts.Logger,
		observer:    opts.Observer,
		verbose:     opts.Verbose,
		sanityBytes: opts.PayloadSanityBytes,
		clients:     make(map[Endpoint]*openai.Client),
	}
}

// NewClientFromConfig creates a Client from the loaded configuration.
func NewClientFromConfig(cfg *core.Config, log *logging.Logger, obs Observer) *Client {
	return NewClient(ClientOptions{
		HTTPClient:         core.GetHTTPClient(cfg, cfg.BridgeTimeout),
		Logger:             log,
		Observer:           obs,
		Verbose:            cfg.Verbose,
		PayloadSanityBytes: cfg.PayloadSanityBytes,
	})
}

// Generate runs one leg: up to leg.Policy.Attempts() requests, RetryInterval
// apart, until an image URL comes back.
//
// It returns ErrCancelled as soon as ctx is done, the classified *Error when
// leg.Abort accepts a failure, and an *ExhaustedError when the budget runs
// out. The RetryState is returned in every case.
//
// Example:
//
//	url, state, err := client.Generate(ctx, req, bridge.Leg{
//	    Name:     bridge.LegPrimary,
//	    Endpoint: bridge.Endpoint{URL: "http://127.0.0.1:5102/v1/chat/completions"},
//	    Policy:   bridge.RetryPolicy{MaxRetries: 10, RetryInterval: 5 * time.Second},
//	    Abort:    bridge.AbortPrimary,
//	})
func (c *Client) Generate(ctx context.Context, req GenerationRequest, leg Leg) (string, RetryState, error) {
	var state RetryState
	budget := leg.Policy.Attempts()
	log := c.log.With(zap.String("leg", leg.Name))

	for state.Attempts < budget {
		if ctx.Err() != nil {
			return "", state, ErrCancelled
		}
		state.Attempts++

		imageURL, failure := c.attempt(ctx, req, leg, state.Attempts, budget)
		if failure == nil {
			log.Info("image generated",
				zap.Int("attempt", state.Attempts),
				zap.String("image_url", imageURL))
			return imageURL, state, nil
		}
		if failure.Kind == KindCancelled {
			return "", state, ErrCancelled
		}

		state.LastError = failure
		state.LastStatusCode = failure.StatusCode

		fields := []zap.Field{
			zap.Int("attempt", state.Attempts),
			zap.Int("max_attempts", budget),
			zap.Stringer("kind", failure.Kind),
			zap.Int("status", failure.StatusCode),
			zap.Error(failure),
		}
		if hint := failure.Hint(); hint != "" {
			fields = append(fields, zap.String("hint", hint))
		}

		if leg.Abort != nil && leg.Abort(failure) {
			log.Error("attempt failed, aborting leg", fields...)
			return "", state, failure
		}
		log.Warn("attempt failed", fields...)

		if state.Attempts < budget {
			if err := sleep(ctx, leg.Policy.RetryInterval); err != nil {
				return "", state, ErrCancelled
			}
		}
	}

	log.Error("retry budget exhausted", zap.Int("attempts", state.Attempts))
	return "", state, &ExhaustedError{Leg: leg.Name, Attempts: state.Attempts, Last: state.LastError}
}

// attempt sends one request and classifies the outcome.
func (c *Client) attempt(ctx context.Context, req GenerationRequest, leg Leg, n, budget int) (string, *Error) {
	if leg.Endpoint.Model != "" {
		req = req.WithModel(leg.Endpoint.Model)
	}
	model := req.Model()
	chatReq := buildChatRequest(model, req)

	c.log.Debug("sending request",
		zap.String("leg", leg.Name),
		zap.String("endpoint", leg.Endpoint.URL),
		zap.String("model", model),
		zap.Int("images", len(req.images)),
		zap.Int("attempt", n),
		zap.Int("max_attempts", budget))
	if c.verbose {
		c.log.Info("request body", zap.String("leg", leg.Name), zap.String("body", describeRequest(chatReq)))
	}

	start := time.Now()
	imageURL, failure := c.send(ctx, leg.Endpoint, chatReq, req.imageBytes)
	outcome := OutcomeSuccess
	if failure != nil {
		outcome = failure.Kind.String()
	}
	c.observer.ObserveAttempt(leg.Name, outcome, time.Since(start))
	return imageURL, failure
}

func (c *Client) send(ctx context.Context, ep Endpoint, chatReq openai.ChatCompletionRequest, imageBytes int64) (string, *Error) {
	resp, err := c.openaiClient(ep).CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", Classify(ctx, err, imageBytes, c.sanityBytes)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindNoImageFound, TotalBytes: imageBytes, Err: fmt.Errorf("%w: empty choices", ErrNoImageURL)}
	}

	content := resp.Choices[0].Message.Content
	if c.verbose {
		c.log.Info("response content", zap.String("content", truncate(content, 500)))
	}
	imageURL, ok := ExtractImageURL(content)
	if !ok {
		return "", &Error{
			Kind:       KindNoImageFound,
			TotalBytes: imageBytes,
			Err:        fmt.Errorf("%w: %q", ErrNoImageURL, truncate(content, 120)),
		}
	}
	return imageURL, nil
}

// openaiClient returns the cached go-openai client for ep.
func (c *Client) openaiClient(ep Endpoint) *openai.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[ep]; ok {
		return client
	}

	clientConfig := openai.DefaultConfig(ep.APIKey)
	clientConfig.BaseURL = strings.TrimRight(ep.URL, "/")

	transport := c.httpClient.Transport
	if ep.APIKey == "" {
		// go-openai always sets Authorization; the bridge leg sends none.
		transport = anonymousTransport{base: transport}
	}
	// go-openai appends /chat/completions to BaseURL; ep.URL is already
	// the full endpoint.
	if target, err := url.Parse(ep.URL); err == nil && target.Host != "" {
		transport = endpointTransport{target: target, base: transport}
	}
	httpClient := *c.httpClient
	httpClient.Transport = transport
	clientConfig.HTTPClient = &httpClient

	client := openai.NewClientWithConfig(clientConfig)
	c.clients[ep] = client
	return client
}

func buildChatRequest(model string, req GenerationRequest) openai.ChatCompletionRequest {
	parts := make([]openai.ChatMessagePart, 0, len(req.images)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: req.prompt,
	})
	for _, img := range req.images {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: img},
		})
	}

	chatReq := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		N: 1,
	}
	if isReasoningModel(model) {
		chatReq.MaxCompletionTokens = maxResponseTokens
	} else {
		chatReq.MaxTokens = maxResponseTokens
	}
	return chatReq
}

// isReasoningModel reports models that go-openai rejects max_tokens for.
func isReasoningModel(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// AbortPrimary ends the bridge leg on failures that retrying cannot fix.
func AbortPrimary(e *Error) bool {
	return e.Kind == KindRemoteFatal || e.Kind == KindPayloadTooLarge
}

// AbortFallback ends the fallback leg when the API account is out of quota.
func AbortFallback(e *Error) bool {
	return e.Kind == KindQuotaExhausted
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// anonymousTransport drops an empty bearer header.
type anonymousTransport struct {
	base http.RoundTripper
}

func (t anonymousTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if strings.TrimSpace(r.Header.Get("Authorization")) == "Bearer" {
		r = r.Clone(r.Context())
		r.Header.Del("Authorization")
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}

// endpointTransport sends every request to target unchanged.
type endpointTransport struct {
	target *url.URL
	base   http.RoundTripper
}

func (t endpointTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	target := *t.target
	r = r.Clone(r.Context())
	r.URL = &target
	r.Host = ""
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}
