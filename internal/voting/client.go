package voting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codyrutscher/voting-app/internal/apperr"
)

// Submitter is the slice of the API the vote state store depends on. It is
// implemented by *Client and by test fakes.
type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error)
}

// Fetcher covers the read-only endpoints the poller refreshes from.
type Fetcher interface {
	FetchSession(ctx context.Context) (*Session, error)
	FetchContestants(ctx context.Context) ([]Contestant, error)
}

// Ensure Client implements both at compile time.
var (
	_ Submitter = (*Client)(nil)
	_ Fetcher   = (*Client)(nil)
)

// SubmitResult is the classified outcome of a vote registration attempt.
// Accepted carries the server's new count; a rejection carries a Reason.
// Transport-level failures are reported as errors, not results.
type SubmitResult struct {
	Accepted  bool
	VoteCount int
	Reason    Reason
}

// Client talks to the voting HTTP API. It holds no vote state of its own;
// commit and rollback are the vote state store's job.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	userID    string
}

const (
	defaultAPIBind   = "127.0.0.1:7411"
	defaultUserAgent = "voteview/0.1"
	requestTimeout   = 5 * time.Second
)

// NewClient builds a Client using the provided apiBind host:port value.
// userID identifies this voter to the backend; empty is allowed and the
// backend assigns one.
func NewClient(apiBind, userID string) (*Client, error) {
	base, err := parseBaseURL(apiBind)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
		userID:    userID,
	}, nil
}

// FetchSession retrieves the current voting session.
func (c *Client) FetchSession(ctx context.Context) (*Session, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload SessionResponse
	if err := c.get(ctx, "/api/session", &payload); err != nil {
		return nil, err
	}
	return &payload.Session, nil
}

// FetchContestants retrieves the contestant roster with current counts.
func (c *Client) FetchContestants(ctx context.Context) ([]Contestant, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload ContestantListResponse
	if err := c.get(ctx, "/api/contestants", &payload); err != nil {
		return nil, err
	}
	return payload.Contestants, nil
}

// Submit registers one vote. The request shape is validated before any
// transport happens; a malformed request never leaves the process.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if c == nil {
		return SubmitResult{}, fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(req.ContestantID) == "" {
		return SubmitResult{}, apperr.Validation("empty_contestant", "contestant id is required")
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return SubmitResult{}, apperr.Validation("empty_session", "session id is required")
	}
	if req.UserID == "" {
		req.UserID = c.userID
	}

	body, err := json.Marshal(req)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("encode vote request: %w", err)
	}

	reqURL := c.baseURL.ResolveReference(&url.URL{Path: "/api/votes"})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), bytes.NewReader(body))
	if err != nil {
		return SubmitResult{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return SubmitResult{}, classifyTransport(err)
	}
	defer func() { _ = resp.Body.Close() }()

	var payload SubmitResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&payload)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if decodeErr != nil {
			return SubmitResult{}, apperr.Network("bad_response", "could not read vote response", decodeErr)
		}
		if !payload.Success {
			return rejection(payload.Error)
		}
		return SubmitResult{Accepted: true, VoteCount: payload.VoteCount}, nil
	}

	// Non-2xx: the body may still carry a classifiable reason code.
	if decodeErr == nil && payload.Error != "" {
		return rejection(payload.Error)
	}
	return SubmitResult{}, apperr.Network("http_error",
		fmt.Sprintf("vote submission failed with status %d", resp.StatusCode), nil)
}

func rejection(code string) (SubmitResult, error) {
	reason, ok := ParseReason(code)
	if !ok {
		return SubmitResult{}, apperr.Network("unclassified",
			fmt.Sprintf("vote rejected with unknown error %q", code), nil)
	}
	return SubmitResult{Reason: reason}, nil
}

func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout("timeout", "vote submission timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.Timeout("timeout", "vote submission timed out", err)
	}
	return apperr.Network("network", "could not reach the voting service", err)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("api %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(apiBind string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiBind)
	if trimmed == "" {
		trimmed = defaultAPIBind
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_bind %q: %w", apiBind, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
