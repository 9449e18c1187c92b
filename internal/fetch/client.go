package fetch

import (
	"context"
	"errors"
	"fmt"
	"hlsfetch/internal/logger"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrStatus is returned when the origin answers with a non-2xx status code.
var ErrStatus = errors.New("unexpected status code")

// Fetcher fetches the body of a URL. It is the only network capability the download core uses.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Client is the HTTP client responsible for all communication with the origin server.
type Client struct {
	httpClient *http.Client
	logger     logger.Logger
	userAgent  string
	limiter    *rate.Limiter
}

// ClientOptions configures a Client. Zero values mean no User-Agent override and no rate limit.
type ClientOptions struct {
	UserAgent         string
	RequestsPerSecond float64
}

// NewClient creates a new fetch client.
func NewClient(log logger.Logger, opts ClientOptions) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = 30 * time.Second

	c := &Client{
		httpClient: &http.Client{Transport: transport},
		logger:     log,
		userAgent:  opts.UserAgent,
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c
}

// Fetch performs a GET request and returns the full response body.
// The caller's context bounds the whole exchange, including reading the body.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait for %s: %w", url, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debugf("Fetching %s", url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %d from %s", ErrStatus, resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", url, err)
	}
	return data, nil
}
