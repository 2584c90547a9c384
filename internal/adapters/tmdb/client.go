// internal/adapters/tmdb/client.go
package tmdb

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"nowplaying/internal/adapters/observability"
	"nowplaying/internal/domain"
)

const (
	endpointNowPlaying = "now_playing"
	endpointSearch     = "search"
)

type Client struct {
	base     string
	hc       *http.Client
	key      string
	rl       *rate.Limiter
	attempts int
}

type Option func(*Client)

// WithAttempts sets how many times a request is tried; 1 disables retries.
func WithAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.hc.Timeout = d
		}
	}
}

func New(base, key string, rps int, opts ...Option) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if rps <= 0 {
		rps = 10
	}
	c := &Client{
		base:     strings.TrimRight(base, "/"),
		hc:       &http.Client{Timeout: 10 * time.Second},
		key:      key,
		rl:       rate.NewLimiter(rate.Limit(rps), rps),
		attempts: 1,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ---- Public API ----

func (c *Client) NowPlaying(ctx context.Context, lang string, page int) (domain.ListPage, error) {
	q := url.Values{}
	q.Set("language", lang)
	q.Set("page", strconv.Itoa(max(page, 1)))
	var out domain.ListPage
	if err := c.get(ctx, endpointNowPlaying, "/movie/now_playing", q, &out); err != nil {
		return domain.ListPage{}, err
	}
	return out, nil
}

func (c *Client) Search(ctx context.Context, lang, query string, page int) (domain.ListPage, error) {
	q := url.Values{}
	q.Set("language", lang)
	q.Set("query", query)
	q.Set("page", strconv.Itoa(max(page, 1)))
	var out domain.ListPage
	if err := c.get(ctx, endpointSearch, "/search/movie", q, &out); err != nil {
		return domain.ListPage{}, err
	}
	return out, nil
}

// ---- Internals ----

// StatusError is a non-success response from the API.
// 401 and 404 unwrap to domain.ErrUnauthorized and domain.ErrNotFound.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("tmdb: bad status %d", e.Status)
	}
	return fmt.Sprintf("tmdb: bad status %d: %s", e.Status, e.Body)
}

func (e *StatusError) HTTPStatus() int { return e.Status }

func (e *StatusError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusNotFound:
		return domain.ErrNotFound
	}
	return nil
}

// get performs a GET with client-side rate limiting and JSON decode into out.
// With more than one attempt configured, 429, transient 5xx and transport
// errors are retried, honoring Retry-After when provided.
func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}
	q.Set("api_key", c.key)
	u := c.base + path + "?" + q.Encode()

	var lastErr error
	for i := 0; i < c.attempts; i++ {
		last := i == c.attempts-1

		// build a fresh request each attempt
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "nowplaying/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("tmdb", endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("tmdb %s: %w", endpoint, redactKey(err))
			if !last && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("tmdb", endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("tmdb %s: decode: %w", endpoint, err)
			}
			return nil

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = &StatusError{Status: resp.StatusCode}
			if !last && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			// read a small error body for diagnostics
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		}
	}

	return lastErr
}

// redactKey strips the api_key query value from *url.Error messages.
func redactKey(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		if p, perr := url.Parse(ue.URL); perr == nil {
			q := p.Query()
			if q.Has("api_key") {
				q.Set("api_key", "REDACTED")
				p.RawQuery = q.Encode()
				return &url.Error{Op: ue.Op, URL: p.String(), Err: ue.Err}
			}
		}
	}
	return err
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns 200ms, 400ms, 800ms... plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
