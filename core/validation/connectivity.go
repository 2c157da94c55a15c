package validation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/HydroGest/lmarena/core"
)

// ConnectivityResult is the outcome of a reachability probe.
type ConnectivityResult struct {
	Reachable  bool
	StatusCode int
	Message    string
	Latency    time.Duration
	Error      error
}

// ConnectivityChecker probes the bridge over HTTP.
type ConnectivityChecker struct {
	client *http.Client
}

// NewConnectivityChecker creates a checker using client. Pass the client
// from core.GetHTTPClient so TLS settings match the bridge client.
func NewConnectivityChecker(client *http.Client) *ConnectivityChecker {
	return &ConnectivityChecker{client: client}
}

// CheckBridge sends GET to the bridge's scheme://host root. Any HTTP response,
// including 404, counts as reachable: the bridge only serves the API paths.
func (c *ConnectivityChecker) CheckBridge(ctx context.Context, endpoint string) ConnectivityResult {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return ConnectivityResult{
			Message: "Invalid URL format",
			Error:   core.ErrInvalidURL("LMARENA_BASE_URL", endpoint, "cannot parse"),
		}
	}
	root := u.Scheme + "://" + u.Host + "/"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, root, nil)
	if err != nil {
		return ConnectivityResult{
			Message: "Failed to create request",
			Error:   core.ErrBridgeUnreachable(root, err.Error()),
		}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		reason := err.Error()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = "timed out"
		}
		return ConnectivityResult{
			Message: "Connection failed",
			Latency: latency,
			Error:   core.ErrBridgeUnreachable(root, reason),
		}
	}
	resp.Body.Close()

	return ConnectivityResult{
		Reachable:  true,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("Bridge reachable (status: %d)", resp.StatusCode),
		Latency:    latency,
	}
}
