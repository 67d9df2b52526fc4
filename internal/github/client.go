package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/smy-101/skillpack/internal/logger"
	"github.com/smy-101/skillpack/internal/ratelimit"
	"github.com/smy-101/skillpack/internal/types"
)

const (
	DefaultAPIBaseURL = "https://api.github.com"
	DefaultRawBaseURL = "https://raw.githubusercontent.com"

	DefaultTimeout = 30 * time.Second

	// maxQuotaWait is the longest reset we are willing to sleep through.
	maxQuotaWait = 5 * time.Minute
	quotaBuffer  = time.Second

	acceptHeader = "application/vnd.github.v3+json"
	userAgent    = "skillpack-cli/1.0"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client GitHub API客户端
type Client struct {
	restyClient *resty.Client
	token       string
	apiBaseURL  string
	rawBaseURL  string
	governor    ratelimit.Recorder
	policy      RetryPolicy

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURLs points the client at another API and raw content host,
// e.g. GitHub Enterprise or a test server. Empty values keep the defaults.
func WithBaseURLs(apiBase, rawBase string) Option {
	return func(c *Client) {
		if apiBase != "" {
			c.apiBaseURL = strings.TrimRight(apiBase, "/")
		}
		if rawBase != "" {
			c.rawBaseURL = strings.TrimRight(rawBase, "/")
		}
	}
}

func WithGovernor(g ratelimit.Recorder) Option {
	return func(c *Client) { c.governor = g }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithTimeout bounds every single request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.restyClient.SetTimeout(d)
		}
	}
}

func WithProxy(proxy string) Option {
	return func(c *Client) {
		if proxy != "" {
			c.restyClient.SetProxy(proxy)
		}
	}
}

// WithClock replaces time.Now and the sleep used for quota waits.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// NewClient 创建客户端
func NewClient(token string, opts ...Option) *Client {
	client := resty.New()
	client.SetTimeout(DefaultTimeout)
	client.SetHeader("Accept", acceptHeader)
	client.SetHeader("User-Agent", userAgent)

	if token != "" {
		client.SetHeader("Authorization", fmt.Sprintf("token %s", token))
	}

	c := &Client{
		restyClient: client,
		token:       token,
		apiBaseURL:  DefaultAPIBaseURL,
		rawBaseURL:  DefaultRawBaseURL,
		governor:    ratelimit.Default,
		policy:      DefaultRetryPolicy(),
		now:         time.Now,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Governor returns the rate limit recorder the client reports to.
func (c *Client) Governor() ratelimit.Recorder {
	return c.governor
}

// Fetch issues a GET with rate-limit handling and retries. Transient
// failures are retried under the client's RetryPolicy; a quota exhaustion
// whose reset is near is waited out without spending an attempt.
// Non-2xx statuses other than 403/429/5xx come back as a Response.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	var resp *Response
	err := c.policy.do(ctx, rawURL, func() error {
		r, err := c.fetchOnce(ctx, rawURL)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) fetchOnce(ctx context.Context, rawURL string) (*Response, error) {
	for {
		r, err := c.restyClient.R().SetContext(ctx).Get(rawURL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &Error{Kind: KindTransient, Message: "API request failed", URL: rawURL, Err: err}
		}

		resp := &Response{
			StatusCode: r.StatusCode(),
			Header:     r.Header(),
			Body:       r.Body(),
		}
		if c.governor != nil {
			c.governor.Observe(resp.Header)
		}

		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
			if quotaExhausted(resp.Header) {
				wait, err := c.quotaWait(rawURL, resp.Header)
				if err != nil {
					return nil, err
				}
				logger.G(ctx).WithField("wait", wait.Round(time.Second)).
					WithField("url", rawURL).
					Warn("GitHub API rate limit exceeded, waiting for reset")
				if err := c.sleep(ctx, wait+quotaBuffer); err != nil {
					return nil, err
				}
				continue
			}
			if resp.StatusCode == http.StatusForbidden {
				return nil, &Error{
					Kind:    KindForbidden,
					Message: fmt.Sprintf("GitHub API forbidden (403): %s", strings.TrimSpace(string(resp.Body))),
					URL:     rawURL,
					Status:  resp.StatusCode,
				}
			}
		}

		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return nil, &Error{
				Kind:    KindTransient,
				Message: fmt.Sprintf("GitHub returned %d", resp.StatusCode),
				URL:     rawURL,
				Status:  resp.StatusCode,
			}
		}

		return resp, nil
	}
}

func quotaExhausted(h http.Header) bool {
	return h.Get(ratelimit.HeaderRemaining) == "0" && h.Get(ratelimit.HeaderReset) != ""
}

// quotaWait returns how long to sleep before the quota resets, or a
// QuotaExceeded error when the reset is unusable or too far away.
func (c *Client) quotaWait(rawURL string, h http.Header) (time.Duration, error) {
	reset, err := strconv.ParseInt(h.Get(ratelimit.HeaderReset), 10, 64)
	if err != nil {
		return 0, &Error{
			Kind:    KindQuotaExceeded,
			Message: "GitHub API rate limit exceeded. Please add a GitHub token via 'skillpack config set github_token <token>'",
			URL:     rawURL,
			Status:  http.StatusForbidden,
		}
	}

	wait := time.UnixMilli(reset * 1000).Sub(c.now())
	if wait > 0 && wait <= maxQuotaWait {
		return wait, nil
	}

	minutes := int(math.Ceil(wait.Minutes()))
	return 0, &Error{
		Kind: KindQuotaExceeded,
		Message: fmt.Sprintf("GitHub API rate limit exceeded. Please wait %d minutes or add a GitHub token via "+
			"'skillpack config set github_token <token>'. Unauthenticated: 60 req/hour. Authenticated: 5,000 req/hour.", minutes),
		URL:    rawURL,
		Status: http.StatusForbidden,
	}
}

// ListContents 获取仓库目录内容. A non-array body (the path is a file)
// yields a nil listing without error.
func (c *Client) ListContents(ctx context.Context, coord types.RepositoryCoordinate, path string) ([]types.DirectoryEntry, error) {
	apiURL := c.ContentsURL(coord, path)

	resp, err := c.Fetch(ctx, apiURL)
	if err != nil {
		return nil, err
	}
	if err := statusError(apiURL, resp); err != nil {
		return nil, err
	}

	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 || body[0] != '[' {
		return nil, nil
	}

	var entries []types.DirectoryEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, &Error{Kind: KindDecode, Message: "failed to decode contents listing", URL: apiURL, Err: err}
	}
	return entries, nil
}

// FetchRaw 下载原始内容 from the raw content host.
func (c *Client) FetchRaw(ctx context.Context, coord types.RepositoryCoordinate, path string) ([]byte, error) {
	return c.Download(ctx, c.RawURL(coord, path))
}

// Download fetches a file by its download_url.
func (c *Client) Download(ctx context.Context, downloadURL string) ([]byte, error) {
	if downloadURL == "" {
		return nil, &Error{Kind: KindNotFound, Message: "file has no download URL"}
	}
	resp, err := c.Fetch(ctx, downloadURL)
	if err != nil {
		return nil, err
	}
	if err := statusError(downloadURL, resp); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

type rateLimitResponse struct {
	Rate struct {
		Remaining int   `json:"remaining"`
		Limit     int   `json:"limit"`
		Reset     int64 `json:"reset"`
	} `json:"rate"`
}

// RateLimit queries /rate_limit. When the query fails the last state seen
// by the governor is returned together with the error.
func (c *Client) RateLimit(ctx context.Context) (types.RateLimitState, error) {
	fallback := types.RateLimitState{}
	if c.governor != nil {
		fallback = c.governor.Snapshot()
	}

	apiURL := c.apiBaseURL + "/rate_limit"
	resp, err := c.Fetch(ctx, apiURL)
	if err != nil {
		return fallback, err
	}
	if err := statusError(apiURL, resp); err != nil {
		return fallback, err
	}

	var payload rateLimitResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return fallback, &Error{Kind: KindDecode, Message: "failed to decode rate limit", URL: apiURL, Err: err}
	}

	remaining := payload.Rate.Remaining
	limit := payload.Rate.Limit
	reset := payload.Rate.Reset * 1000
	checked := c.now().UnixMilli()
	return types.RateLimitState{
		Remaining:              &remaining,
		Limit:                  &limit,
		ResetEpochMillis:       &reset,
		LastCheckedEpochMillis: &checked,
	}, nil
}

// ContentsURL builds the contents API URL for a path on the coordinate's branch.
func (c *Client) ContentsURL(coord types.RepositoryCoordinate, path string) string {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.apiBaseURL, url.PathEscape(coord.Owner), url.PathEscape(coord.Name), escapePath(path))
	if coord.Branch != "" {
		u += "?ref=" + url.QueryEscape(coord.Branch)
	}
	return u
}

// RawURL builds the raw content URL for a file.
func (c *Client) RawURL(coord types.RepositoryCoordinate, path string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s",
		c.rawBaseURL, url.PathEscape(coord.Owner), url.PathEscape(coord.Name), escapePath(coord.Branch), escapePath(path))
}

func escapePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func statusError(rawURL string, resp *Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return &Error{Kind: KindNotFound, Message: fmt.Sprintf("GitHub returned 404 for %s", rawURL), URL: rawURL, Status: resp.StatusCode}
	default:
		return &Error{
			Kind:    KindUnexpectedStatus,
			Message: fmt.Sprintf("GitHub returned %d: %s", resp.StatusCode, strings.TrimSpace(string(resp.Body))),
			URL:     rawURL,
			Status:  resp.StatusCode,
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
