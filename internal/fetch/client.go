// Package fetch checks extracted links over HTTP.
//
// Every URL, including each redirect target, passes through
// validation.NormalizeURL before a request is made, so the fetcher never
// requests a form of a URL the links collector did not also see. Only
// allowed http and https URLs are requested.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/poutila/doxstrux/internal/errors"
	"github.com/poutila/doxstrux/internal/logging"
	"github.com/poutila/doxstrux/internal/validation"
	"golang.org/x/time/rate"
)

// Config controls the link checker.
type Config struct {
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gt=0"`
	Burst             int           `mapstructure:"burst" yaml:"burst" validate:"min=1"`
	MaxRedirects      int           `mapstructure:"max_redirects" yaml:"max_redirects" validate:"min=0,max=20"`
	Workers           int           `mapstructure:"workers" yaml:"workers" validate:"min=1,max=64"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl" validate:"min=0"`
	RedisURL          string        `mapstructure:"redis_url" yaml:"redis_url" validate:"omitempty,url"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent" validate:"required"`
}

// DefaultConfig returns conservative link checking settings.
func DefaultConfig() Config {
	return Config{
		Timeout:           10 * time.Second,
		RequestsPerSecond: 5,
		Burst:             5,
		MaxRedirects:      5,
		Workers:           4,
		CacheTTL:          time.Hour,
		UserAgent:         "doxstrux-linkcheck/1.0",
	}
}

// Status is the outcome of checking one URL.
type Status struct {
	URL        string    `json:"url" yaml:"url"`
	Normalized string    `json:"normalized,omitempty" yaml:"normalized,omitempty"`
	StatusCode int       `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	FinalURL   string    `json:"final_url,omitempty" yaml:"final_url,omitempty"`
	Method     string    `json:"method,omitempty" yaml:"method,omitempty"`
	OK         bool      `json:"ok" yaml:"ok"`
	Cached     bool      `json:"cached,omitempty" yaml:"cached,omitempty"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	Code       string    `json:"code,omitempty" yaml:"code,omitempty"`
	CheckedAt  time.Time `json:"checked_at" yaml:"checked_at"`
}

// Client checks links with rate limiting and an optional cache.
type Client struct {
	HTTP    *http.Client
	Limiter *rate.Limiter
	Cache   Cache

	cfg    Config
	logger logging.Logger
}

// NewClient builds a Client from cfg. cache may be nil.
func NewClient(cfg Config, cache Cache, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.Nop()
	}

	c := &Client{
		Limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		Cache:   cache,
		cfg:     cfg,
		logger:  logger.WithComponent("fetch"),
	}
	c.HTTP = &http.Client{
		Timeout:       cfg.Timeout,
		CheckRedirect: c.checkRedirect,
	}
	return c
}

// checkRedirect re-normalizes every redirect target. A target the
// normalizer refuses ends the chain with an error.
func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) > c.cfg.MaxRedirects {
		return errors.URLRefused(req.URL.String(), fmt.Sprintf("more than %d redirects", c.cfg.MaxRedirects))
	}

	target, err := requestable(req.URL.String())
	if err != nil {
		return err
	}
	if target.String() != req.URL.String() {
		req.URL = target
		req.Host = target.Host
	}
	return nil
}

// requestable normalizes raw and returns it parsed when it may be
// requested.
func requestable(raw string) (*url.URL, error) {
	normalized, allowed, err := validation.NormalizeURL(raw)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, errors.URLRefused(raw, "scheme not allowed")
	}

	u, err := url.Parse(normalized)
	if err != nil {
		return nil, errors.ParseFailed(normalized, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.URLRefused(raw, "only http and https are fetched")
	}
	return u, nil
}

// Check requests raw and reports its status. A URL the normalizer refuses
// is returned as an error and never requested. HTTP failures are
// reported in the Status, not as an error.
func (c *Client) Check(ctx context.Context, raw string) (*Status, error) {
	u, err := requestable(raw)
	if err != nil {
		return nil, err
	}
	key := u.String()

	if c.Cache != nil {
		cached, ok, err := c.Cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn(ctx, err, "Link cache read failed", "url", logging.SanitizeForLog(key))
		} else if ok {
			cached.URL = raw
			cached.Cached = true
			return cached, nil
		}
	}

	status := &Status{URL: raw, Normalized: key}
	c.request(ctx, u, status)

	if ctx.Err() != nil {
		return status, ctx.Err()
	}

	if c.Cache != nil {
		if err := c.Cache.Set(ctx, key, status, c.cfg.CacheTTL); err != nil {
			c.logger.Warn(ctx, err, "Link cache write failed", "url", logging.SanitizeForLog(key))
		}
	}
	return status, nil
}

// request tries HEAD and falls back to GET for servers that refuse HEAD.
func (c *Client) request(ctx context.Context, u *url.URL, status *Status) {
	defer func() { status.CheckedAt = time.Now().UTC() }()

	resp, err := c.do(ctx, http.MethodHead, u)
	if err == nil && (resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented) {
		resp.Body.Close()
		resp, err = c.do(ctx, http.MethodGet, u)
	}
	if err != nil {
		status.Error = err.Error()
		status.Code = errors.Code(err)
		c.logger.Debug(ctx, "Link check failed", "url", logging.SanitizeForLog(u.String()), "error", err.Error())
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	status.Method = resp.Request.Method
	status.StatusCode = resp.StatusCode
	status.FinalURL = resp.Request.URL.String()
	status.OK = resp.StatusCode >= 200 && resp.StatusCode < 400
}

func (c *Client) do(ctx context.Context, method string, u *url.URL) (*http.Response, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	return c.HTTP.Do(req)
}

// CheckAll checks urls with cfg.Workers concurrent requests. Results are
// returned in input order; a refused URL gets a Status carrying the error.
func (c *Client) CheckAll(ctx context.Context, urls []string) []*Status {
	results := make([]*Status, len(urls))
	jobs := make(chan int)

	workers := c.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				status, err := c.Check(ctx, urls[idx])
				if err != nil {
					if status == nil {
						status = &Status{URL: urls[idx], CheckedAt: time.Now().UTC()}
					}
					status.Error = err.Error()
					status.Code = errors.Code(err)
				}
				results[idx] = status
			}
		}()
	}

	for i := range urls {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(urls); j++ {
				results[j] = &Status{URL: urls[j], Error: ctx.Err().Error(), CheckedAt: time.Now().UTC()}
			}
			close(jobs)
			wg.Wait()
			return results
		}
	}
	close(jobs)
	wg.Wait()

	return results
}
