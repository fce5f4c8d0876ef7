package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bilyardvmetro/posts-feed-sync/internal/auth"
	"github.com/bilyardvmetro/posts-feed-sync/internal/logctx"

	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// Client talks to the feed API. Reads are retried on connection errors and
// 5xx/429; writes are sent exactly once, a retried reaction toggle would flip twice.
type Client struct {
	baseURL   string
	retry     *retryablehttp.Client
	tokens    auth.TokenSource
	userAgent string
	log       zerolog.Logger
}

type Option func(*Client)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithAuth attaches the bearer token to every request and to the events stream.
func WithAuth(ts auth.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func WithRetries(max int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.retry.RetryMax = max
		c.retry.RetryWaitMin = waitMin
		c.retry.RetryWaitMax = waitMax
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.retry.HTTPClient.Timeout = d }
}

func NewClient(baseURL string, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 3 * time.Second
	rc.HTTPClient.Timeout = 20 * time.Second
	// последний ответ отдаём как есть, чтобы разобрать тело ошибки
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		retry:     rc,
		userAgent: "feedctl",
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	rc.Logger = leveledZerolog{c.log.With().Str("component", "http").Logger()}
	if c.tokens != nil {
		rc.HTTPClient.Transport = &auth.Transport{Base: rc.HTTPClient.Transport, Source: c.tokens}
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// do performs one API call. params are encoded with go-querystring, body as JSON.
func (c *Client) do(ctx context.Context, method, path string, params, body, out any) (http.Header, error) {
	u := c.baseURL + path
	if params != nil {
		v, err := query.Values(params)
		if err != nil {
			return nil, fmt.Errorf("encode query: %w", err)
		}
		if enc := v.Encode(); enc != "" {
			u += "?" + enc
		}
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		payload = b
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-Id", reqID)

	l := logctx.From(ctx, c.log)
	start := time.Now()

	var resp *http.Response
	if method == http.MethodGet {
		rreq, err := retryablehttp.FromRequest(req)
		if err != nil {
			return nil, err
		}
		resp, err = c.retry.Do(rreq)
		if err != nil {
			return nil, err
		}
	} else {
		resp, err = c.retry.HTTPClient.Do(req)
		if err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	l.Debug().
		Str("request_id", reqID).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("api call")

	if resp.StatusCode >= 400 {
		return resp.Header, errorFromResponse(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.Header, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.Header, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return resp.Header, nil
}

// leveledZerolog переводит логи ретраев retryablehttp в zerolog;
// ERROR понижается до WARN, потому что после него обычно идёт повтор.
type leveledZerolog struct {
	l zerolog.Logger
}

func (z leveledZerolog) Error(msg string, kv ...interface{}) { z.l.Warn().Fields(kv).Msg(msg) }
func (z leveledZerolog) Warn(msg string, kv ...interface{})  { z.l.Warn().Fields(kv).Msg(msg) }
func (z leveledZerolog) Info(msg string, kv ...interface{})  { z.l.Info().Fields(kv).Msg(msg) }
func (z leveledZerolog) Debug(msg string, kv ...interface{}) { z.l.Debug().Fields(kv).Msg(msg) }
