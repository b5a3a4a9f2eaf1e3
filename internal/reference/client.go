// Package reference verifies organizer-supplied event references (QR payloads
// and URLs) against the external verification service. Verification is
// fail-closed: any transport failure, timeout, or non-2xx response is treated
// as an invalid reference.
package reference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Kind distinguishes the two reference flavors.
type Kind string

const (
	KindQR  Kind = "qr"
	KindURL Kind = "url"
)

// Reference is a verifiable claim attached to an event. Immutable once the
// event is published.
type Reference struct {
	Kind  Kind   `json:"kind" binding:"required"`
	Value string `json:"value" binding:"required"`
}

// Result is the outcome of a single verification. Unavailable marks failures
// caused by the validator itself (unreachable, timed out) rather than by the
// reference; callers map those to a retryable status.
type Result struct {
	Valid       bool
	Details     string
	Unavailable bool
}

// Validator checks a single reference. Implementations must be idempotent and
// side-effect free.
type Validator interface {
	Validate(ctx context.Context, ref Reference) Result
}

// Client calls the reference verification microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, every reference verifies as valid,
// for local development without the verification service.
func New(baseURL string, skip bool, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Validate verifies one reference. It never returns an error: failures fold
// into a Result with Valid=false per the fail-closed policy.
func (c *Client) Validate(ctx context.Context, ref Reference) Result {
	if c.Skip {
		return Result{Valid: true, Details: "verification skipped"}
	}
	if ref.Value == "" {
		return Result{Valid: false, Details: "empty reference value"}
	}

	body, _ := json.Marshal(map[string]string{
		"kind":  string(ref.Kind),
		"value": ref.Value,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return Result{Valid: false, Details: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Result{Valid: false, Details: fmt.Sprintf("validator unreachable: %v", err), Unavailable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Result{Valid: false, Details: fmt.Sprintf("validator error: %s", resp.Status), Unavailable: true}
	}
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return Result{Valid: false, Details: fmt.Sprintf("validator rejected request %s: %s", resp.Status, string(respBody))}
	}

	var out struct {
		Valid   bool   `json:"valid"`
		Details string `json:"details"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{Valid: false, Details: fmt.Sprintf("decode validator response: %v", err), Unavailable: true}
	}
	return Result{Valid: out.Valid, Details: out.Details}
}

// Health checks whether the verification service is reachable.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("validator unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("validator unhealthy: %s", resp.Status)
	}
	return nil
}
