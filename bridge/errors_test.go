package bridge

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mib = 1024 * 1024

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		totalBytes int64
		wantKind   Kind
		wantStatus int
	}{
		{
			name:       "500 request error",
			err:        &openai.RequestError{HTTPStatusCode: http.StatusInternalServerError, Err: errors.New("boom")},
			wantKind:   KindRemoteFatal,
			wantStatus: 500,
		},
		{
			name:     "internal server error text",
			err:      errors.New("upstream said: Internal Server Error"),
			wantKind: KindRemoteFatal,
		},
		{
			name:       "413 small payload",
			err:        &openai.RequestError{HTTPStatusCode: http.StatusRequestEntityTooLarge, Err: errors.New("too big")},
			totalBytes: 1 * mib,
			wantKind:   KindRemoteFatal,
			wantStatus: 413,
		},
		{
			name:       "413 large payload",
			err:        &openai.RequestError{HTTPStatusCode: http.StatusRequestEntityTooLarge, Err: errors.New("too big")},
			totalBytes: 6 * mib,
			wantKind:   KindPayloadTooLarge,
			wantStatus: 413,
		},
		{
			name:       "entity too large text",
			err:        errors.New("413 Request Entity Too Large"),
			totalBytes: 12 * mib,
			wantKind:   KindPayloadTooLarge,
		},
		{
			name:       "429",
			err:        &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"},
			wantKind:   KindQuotaExhausted,
			wantStatus: 429,
		},
		{
			name:       "insufficient_quota type",
			err:        &openai.APIError{HTTPStatusCode: http.StatusBadRequest, Type: "insufficient_quota", Message: "quota"},
			wantKind:   KindQuotaExhausted,
			wantStatus: 400,
		},
		{
			name:       "insufficient_quota code",
			err:        &openai.APIError{HTTPStatusCode: http.StatusForbidden, Code: "insufficient_quota", Message: "quota"},
			wantKind:   KindQuotaExhausted,
			wantStatus: 403,
		},
		{
			name:       "502",
			err:        &openai.RequestError{HTTPStatusCode: http.StatusBadGateway, Err: errors.New("bad gateway")},
			wantKind:   KindTransientHTTP,
			wantStatus: 502,
		},
		{
			name:     "network error",
			err:      errors.New("dial tcp 127.0.0.1:5102: connect: connection refused"),
			wantKind: KindTransientHTTP,
		},
		{
			name:     "context cancelled",
			err:      context.Canceled,
			wantKind: KindCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(context.Background(), tt.err, tt.totalBytes, 5*mib)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassify_DoneContextIsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := Classify(ctx, &openai.RequestError{HTTPStatusCode: 500, Err: errors.New("x")}, 0, 5*mib)
	assert.Equal(t, KindCancelled, got.Kind)
}

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, Classify(context.Background(), nil, 0, 5*mib))
}

func TestExhaustedError_Unwrap(t *testing.T) {
	last := &Error{Kind: KindNoImageFound, Err: ErrNoImageURL}
	err := error(&ExhaustedError{Leg: LegFallback, Attempts: 4, Last: last})

	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, ErrNoImageURL)
	assert.Contains(t, err.Error(), "fallback leg")
	assert.Contains(t, err.Error(), "4 attempts")
}

func TestFallbackError_Unwrap(t *testing.T) {
	primary := &Error{Kind: KindRemoteFatal, StatusCode: 500, Err: errors.New("boom")}
	fallback := &ExhaustedError{Leg: LegFallback, Attempts: 2}
	err := error(&FallbackError{Primary: primary, Fallback: fallback})

	assert.ErrorIs(t, err, ErrExhausted)
	var bridgeErr *Error
	require.ErrorAs(t, err, &bridgeErr)
	assert.Equal(t, KindRemoteFatal, bridgeErr.Kind)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "remote_fatal", KindRemoteFatal.String())
	assert.Equal(t, "no_image_found", KindNoImageFound.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}

func TestExtractImageURL(t *testing.T) {
	tests := []struct {
		content string
		want    string
		ok      bool
	}{
		{"![image](https://a.example/x.png)", "https://a.example/x.png", true},
		{"text before\n![](http://b.example/y.jpg) and after", "http://b.example/y.jpg", true},
		{"![one](https://a/1.png) ![two](https://a/2.png)", "https://a/1.png", true},
		{"![a](https://x/y z.png)", "https://x/y z.png", true},
		{`![a](https://x/y.png "title")`, `https://x/y.png "title"`, true},
		{"![a](https://x/1 2.png) ![b](https://x/c.png)", "https://x/1 2.png", true},
		{"[link](https://a/1.png)", "", false},
		{"![image](ftp://a/1.png)", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ExtractImageURL(tt.content)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ExtractImageURL(%q) = %q, %v; want %q, %v", tt.content, got, ok, tt.want, tt.ok)
		}
	}
}

func TestGenerationRequest_Immutable(t *testing.T) {
	images := []string{"a", "b"}
	req := NewGenerationRequest("m", "p", images, 10)
	images[0] = "changed"
	assert.Equal(t, []string{"a", "b"}, req.Images())

	got := req.Images()
	got[1] = "changed"
	assert.Equal(t, []string{"a", "b"}, req.Images())

	other := req.WithModel("gpt-4-vision-preview")
	assert.Equal(t, "m", req.Model())
	assert.Equal(t, "gpt-4-vision-preview", other.Model())
	assert.Equal(t, req.Images(), other.Images())
	assert.Equal(t, int64(10), other.ImageBytes())
}

func TestRetryPolicyAttempts(t *testing.T) {
	assert.Equal(t, 1, RetryPolicy{MaxRetries: 0}.Attempts())
	assert.Equal(t, 11, RetryPolicy{MaxRetries: 10}.Attempts())
	assert.Equal(t, 1, RetryPolicy{MaxRetries: -3}.Attempts())
}

func TestShouldFallback(t *testing.T) {
	o := NewOrchestrator(NewClient(ClientOptions{}), Endpoint{}, RetryPolicy{},
		FallbackPolicy{Enabled: true, TriggerStatusCodes: []int{500, 429}}, nil)

	assert.True(t, o.ShouldFallback(RetryState{LastStatusCode: 500}, errors.New("x")))
	assert.True(t, o.ShouldFallback(RetryState{LastStatusCode: 0}, &ExhaustedError{}))
	assert.False(t, o.ShouldFallback(RetryState{LastStatusCode: 413}, errors.New("x")))
	assert.False(t, o.ShouldFallback(RetryState{}, errors.New("x")))
	assert.True(t, o.FallbackEnabled())

	disabled := NewOrchestrator(NewClient(ClientOptions{}), Endpoint{}, RetryPolicy{}, FallbackPolicy{}, nil)
	assert.False(t, disabled.ShouldFallback(RetryState{LastStatusCode: 500}, &ExhaustedError{}))
	assert.False(t, disabled.FallbackEnabled())
}
