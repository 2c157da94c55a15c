// Package bridge talks to an OpenAI-chat-shaped image bridge such as
// LMArenaBridge.
//
// A Client sends one multimodal chat-completion request per attempt and
// recovers the image URL from the markdown in the reply. Attempts are driven
// by a Leg: an endpoint plus a RetryPolicy plus an abort predicate. The
// Orchestrator runs the primary leg and, when the failure warrants it, a
// second leg against a conventional API.
package bridge

import "time"

// GenerationRequest is immutable once built.
type GenerationRequest struct {
	model      string
	prompt     string
	images     []string
	imageBytes int64
}

// NewGenerationRequest copies images, which are data URLs or remote URLs in
// the order they are sent. imageBytes is the decoded size of all images,
// used to explain 413 responses.
func NewGenerationRequest(model, prompt string, images []string, imageBytes int64) GenerationRequest {
	return GenerationRequest{
		model:      model,
		prompt:     prompt,
		images:     append([]string(nil), images...),
		imageBytes: imageBytes,
	}
}

// Model returns the requested model.
func (r GenerationRequest) Model() string { return r.model }

// Prompt returns the prompt text.
func (r GenerationRequest) Prompt() string { return r.prompt }

// Images returns a copy of the image URLs.
func (r GenerationRequest) Images() []string { return append([]string(nil), r.images...) }

// ImageBytes returns the decoded size of all images.
func (r GenerationRequest) ImageBytes() int64 { return r.imageBytes }

// WithModel returns a copy targeting a different model.
func (r GenerationRequest) WithModel(model string) GenerationRequest {
	r.model = model
	r.images = append([]string(nil), r.images...)
	return r
}

// RetryPolicy bounds one leg: at most MaxRetries+1 attempts, RetryInterval
// apart.
type RetryPolicy struct {
	MaxRetries    int
	RetryInterval time.Duration
}

// Attempts returns the total attempt budget.
func (p RetryPolicy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// Endpoint is where a leg sends requests.
type Endpoint struct {
	// URL is the full chat-completions URL,
	// e.g. http://127.0.0.1:5102/v1/chat/completions.
	URL string
	// Model overrides the request's model when set.
	Model string
	// APIKey is sent as a bearer token when set.
	APIKey string
}

// Leg is one parametrized run of the retry loop.
type Leg struct {
	Name     string
	Endpoint Endpoint
	Policy   RetryPolicy
	// Abort reports whether a failure ends the leg immediately instead of
	// consuming another attempt. Nil never aborts.
	Abort func(*Error) bool
}

// FallbackPolicy configures the secondary API.
type FallbackPolicy struct {
	Enabled  bool
	Endpoint Endpoint
	Policy   RetryPolicy
	// TriggerStatusCodes hand a failed primary leg to the fallback when the
	// last primary status is one of them. Exhausting the primary budget
	// always triggers.
	TriggerStatusCodes []int
}

// RetryState is the bookkeeping of one leg of one invocation.
type RetryState struct {
	Attempts       int
	LastError      *Error
	LastStatusCode int
}

// Result is a successful generation.
type Result struct {
	ImageURL     string
	Leg          string
	Model        string
	Attempts     int // on the leg that succeeded
	UsedFallback bool
}

// Leg names.
const (
	LegPrimary  = "primary"
	LegFallback = "fallback"
)
