// Package github is the GraphQL transport for the repository catalog crawler.
// It owns request shaping, auth, retry classification and backoff; callers get
// typed operations plus the rate limit snapshot each response carries
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	perr "repocrawl/internal/platform/errors"
	"repocrawl/internal/platform/logger"
)

const (
	// DefaultEndpoint is the public GraphQL API endpoint
	DefaultEndpoint = "https://api.github.com/graphql"

	defaultUserAgent      = "repocrawl/1.0"
	defaultTimeout        = 40 * time.Second
	defaultMaxRetries     = 6
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 30 * time.Second
)

// Options configures a Client. Zero fields fall back to the package defaults
type Options struct {
	Endpoint       string
	Token          string
	UserAgent      string
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client executes GraphQL operations with bounded retries
type Client struct {
	httpc  *http.Client
	opts   Options
	tokens oauth2.TokenSource
	log    logger.Logger

	// seams for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient builds a Client, filling defaults for unset options
func NewClient(opts Options, log logger.Logger) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	c := &Client{
		httpc: &http.Client{Timeout: opts.Timeout},
		opts:  opts,
		log:   log.With().Str("component", "github").Logger(),
		now:   time.Now,
		sleep: sleepCtx,
	}
	if opts.Token != "" {
		c.tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Type       string   `json:"type"`
	Message    string   `json:"message"`
	RetryAfter *float64 `json:"retryAfter"`
}

type gqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// verdict classifies one attempt's outcome
type verdict struct {
	payload  *Payload      // set on success
	err      error         // terminal when retry is false
	retry    bool          // transient, worth another attempt
	delay    time.Duration // server-directed wait, zero means exponential backoff
	override bool          // delay replaces the backoff schedule instead of extending it
	limited  bool          // the transient was a rate limit rejection
}

// Execute posts one GraphQL operation and retries transient failures with
// exponential backoff. Rate limit rejections honor the server's Retry-After
// or retryAfter directive when present. A response with no data object is
// terminal regardless of attempts remaining
func (c *Client) Execute(ctx context.Context, query string, vars map[string]any) (*Payload, error) {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "marshal graphql request")
	}

	backoff := c.opts.InitialBackoff
	var last verdict
	for attempt := 1; attempt <= c.opts.MaxRetries; attempt++ {
		last = c.attempt(ctx, body)
		if last.payload != nil {
			return last.payload, nil
		}
		if !last.retry {
			return nil, last.err
		}
		if attempt == c.opts.MaxRetries {
			break
		}

		wait := backoff
		if last.delay > 0 {
			// a graphql retryAfter directive replaces the schedule; the 403
			// Retry-After header only ever extends it
			if last.override || last.delay > wait {
				wait = last.delay
			}
		}
		if wait > c.opts.MaxBackoff {
			wait = c.opts.MaxBackoff
		}
		c.log.Warn().
			Int("attempt", attempt).
			Dur("wait", wait).
			Bool("rate_limited", last.limited).
			Err(last.err).
			Msg("github transient failure, backing off")
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
		backoff *= 2
		if backoff > c.opts.MaxBackoff {
			backoff = c.opts.MaxBackoff
		}
	}

	if last.limited {
		return nil, perr.TooManyRequestsf("github: retries exhausted after %d attempts: %v", c.opts.MaxRetries, last.err)
	}
	return nil, perr.Unavailablef("github: retries exhausted after %d attempts: %v", c.opts.MaxRetries, last.err)
}

func (c *Client) attempt(ctx context.Context, body []byte) verdict {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return verdict{err: perr.Wrap(err, perr.ErrorCodeInvalidArgument, "build graphql request")}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if c.tokens != nil {
		tok, terr := c.tokens.Token()
		if terr != nil {
			return verdict{err: perr.Wrap(terr, perr.ErrorCodeTransport, "github token source")}
		}
		req.Header.Set("Authorization", "bearer "+tok.AccessToken)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return verdict{err: ctx.Err()}
		}
		return verdict{retry: true, err: perr.Transportf("github: %v", err)}
	}
	defer resp.Body.Close()

	return c.classify(resp)
}

func (c *Client) classify(resp *http.Response) verdict {
	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to envelope handling below
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		drain(resp.Body)
		return verdict{retry: true, err: perr.Unavailablef("github: http %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusForbidden:
		msg := readMessage(resp.Body)
		if strings.Contains(strings.ToLower(msg), "rate limit") {
			return verdict{
				retry:   true,
				limited: true,
				delay:   c.retryAfterHeader(resp.Header.Get("Retry-After")),
				err:     perr.TooManyRequestsf("github: %s", msg),
			}
		}
		return verdict{err: perr.Transportf("github: http 403: %s", msg)}
	default:
		msg := readMessage(resp.Body)
		return verdict{err: perr.Transportf("github: http %d: %s", resp.StatusCode, msg)}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return verdict{retry: true, err: perr.Transportf("github: read body: %v", err)}
	}
	var env gqlEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return verdict{err: perr.Transportf("github: decode response: %v", err)}
	}

	if len(env.Errors) > 0 {
		if ok, delay := retryableGQL(env.Errors); ok {
			return verdict{
				retry:    true,
				limited:  true,
				delay:    delay,
				override: delay > 0,
				err:      perr.TooManyRequestsf("github: graphql: %s", env.Errors[0].Message),
			}
		}
		return verdict{err: perr.Transportf("github: graphql: %s", joinErrors(env.Errors))}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return verdict{err: perr.Transportf("github: response has no data object")}
	}

	var rl rateLimitEnvelope
	_ = json.Unmarshal(env.Data, &rl)
	return verdict{payload: &Payload{Data: env.Data, RateLimit: rl.RateLimit}}
}

// retryableGQL reports whether any GraphQL error is transient and the longest
// server-directed wait among them
func retryableGQL(errs []gqlError) (bool, time.Duration) {
	retry := false
	var delay time.Duration
	for _, e := range errs {
		switch e.Type {
		case "RATE_LIMITED", "ABUSE_DETECTED":
			retry = true
		default:
			m := strings.ToLower(e.Message)
			if strings.Contains(m, "timeout") || strings.Contains(m, "try again") || strings.Contains(m, "temporary") {
				retry = true
			} else {
				continue
			}
		}
		if e.RetryAfter != nil {
			if d := time.Duration(*e.RetryAfter * float64(time.Second)); d > delay {
				delay = d
			}
		}
	}
	return retry, delay
}

// retryAfterHeader parses Retry-After as integer seconds or an HTTP date,
// floored at zero. Malformed values mean no directive
func (c *Client) retryAfterHeader(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(c.now())
		if d < 0 {
			return 0
		}
		return d
	}
	return 0
}

func joinErrors(errs []gqlError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, "; ")
}

func readMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return ""
	}
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(raw))
}

func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64<<10))
}
