package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/HydroGest/lmarena/core"
	"github.com/sashabaranov/go-openai"
)

// Kind classifies a failed attempt. The classification decides whether the
// leg retries, aborts, or hands over to the fallback.
type Kind int

const (
	// KindTransientHTTP covers timeouts, connection errors and unexpected
	// status codes. Always retried.
	KindTransientHTTP Kind = iota
	// KindNoImageFound means the reply carried no markdown image. Retried.
	KindNoImageFound
	// KindRemoteFatal is a 500 from the remote, or a 413 for a payload that
	// is not actually large. Aborts the primary leg.
	KindRemoteFatal
	// KindPayloadTooLarge is a 413 for a payload over the sanity threshold.
	// Aborts the primary leg.
	KindPayloadTooLarge
	// KindQuotaExhausted is a 429 or insufficient_quota. Aborts the fallback
	// leg.
	KindQuotaExhausted
	// KindCancelled means the invocation's context ended. Never surfaced to
	// the user.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindTransientHTTP:
		return "transient_http"
	case KindNoImageFound:
		return "no_image_found"
	case KindRemoteFatal:
		return "remote_fatal"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindQuotaExhausted:
		return "quota_exhausted"
	case KindCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	// ErrNoImageURL is returned when the reply text has no markdown image.
	ErrNoImageURL = errors.New("no image url in response")
	// ErrPayloadTooLarge wraps 413s for payloads over the sanity threshold.
	ErrPayloadTooLarge = errors.New("request payload too large")
	// ErrPayloadRejected wraps 413s for normally sized payloads, which point
	// at the bridge's browser backend rather than the images.
	ErrPayloadRejected = errors.New("images are a normal size but the bridge rejected them; check the bridge's browser backend")
	// ErrCancelled is returned when the invocation was cancelled. Callers
	// stay silent on it.
	ErrCancelled = errors.New("generation cancelled")
	// ErrExhausted is matched by every ExhaustedError.
	ErrExhausted = errors.New("retry budget exhausted")
)

// Error is one classified attempt failure.
type Error struct {
	Kind Kind
	// StatusCode is the HTTP status, or 0 when there was no HTTP failure.
	StatusCode int
	// TotalBytes is the decoded image payload size of the request.
	TotalBytes int64
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("bridge: %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("bridge: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Hint is a short operator-facing explanation for payload failures, or "".
func (e *Error) Hint() string {
	switch {
	case errors.Is(e.Err, ErrPayloadTooLarge):
		return fmt.Sprintf("payload is %s; keep the combined images under the bridge limit (e.g. <5MB)", core.FormatMegabytes(e.TotalBytes))
	case errors.Is(e.Err, ErrPayloadRejected):
		return fmt.Sprintf("payload is only %s; check the bridge's browser backend", core.FormatMegabytes(e.TotalBytes))
	default:
		return ""
	}
}

// ExhaustedError reports a leg that used its whole attempt budget.
type ExhaustedError struct {
	Leg      string
	Attempts int
	Last     *Error
}

func (e *ExhaustedError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("bridge: %s leg: %v after %d attempts", e.Leg, ErrExhausted, e.Attempts)
	}
	return fmt.Sprintf("bridge: %s leg: %v after %d attempts: %v", e.Leg, ErrExhausted, e.Attempts, e.Last)
}

// Unwrap exposes both ErrExhausted and the last attempt's error.
func (e *ExhaustedError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrExhausted}
	}
	return []error{ErrExhausted, e.Last}
}

// FallbackError reports that both legs failed.
type FallbackError struct {
	Primary  error
	Fallback error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("bridge: fallback failed: %v (primary: %v)", e.Fallback, e.Primary)
}

func (e *FallbackError) Unwrap() []error {
	return []error{e.Fallback, e.Primary}
}

// Classify maps a failed chat-completion call to an Error.
//
// ctx is the invocation context; when it is done the failure is a
// cancellation no matter what the transport reported. totalBytes is the
// decoded payload size and sanityBytes the threshold above which a 413 is
// believed.
func Classify(ctx context.Context, err error, totalBytes, sanityBytes int64) *Error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return already
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindCancelled, Err: err}
	}

	status, text := inspect(err)
	e := &Error{StatusCode: status, TotalBytes: totalBytes, Err: err}

	switch {
	case status == http.StatusInternalServerError || strings.Contains(text, "Internal Server Error"):
		e.Kind = KindRemoteFatal
	case status == http.StatusRequestEntityTooLarge || strings.Contains(text, "Request Entity Too Large"):
		if totalBytes <= sanityBytes {
			e.Kind = KindRemoteFatal
			e.Err = fmt.Errorf("%w: %w", ErrPayloadRejected, err)
		} else {
			e.Kind = KindPayloadTooLarge
			e.Err = fmt.Errorf("%w: %w", ErrPayloadTooLarge, err)
		}
	case status == http.StatusTooManyRequests || isQuotaError(err, text):
		e.Kind = KindQuotaExhausted
	default:
		e.Kind = KindTransientHTTP
	}
	return e
}

// inspect pulls the status code and text out of go-openai's error types.
func inspect(err error) (status int, text string) {
	text = err.Error()

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, text
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, text
	}
	return 0, text
}

func isQuotaError(err error, text string) bool {
	const quota = "insufficient_quota"
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Type == quota {
			return true
		}
		if s, ok := apiErr.Code.(string); ok && s == quota {
			return true
		}
	}
	return strings.Contains(text, quota)
}
