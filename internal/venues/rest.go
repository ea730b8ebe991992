package venues

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/crossvenue/arbscan/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	maxAttempts      = 3
	defaultTimeout   = 30 * time.Second
	defaultRPS       = 10
	defaultBurst     = 5
	maxErrorBodySize = 512
)

// RESTConfig configures a venue REST client.
type RESTConfig struct {
	Venue   types.Venue
	BaseURL string
	// Header carries the venue's authentication header, if any. Sent
	// verbatim on every request.
	Header  http.Header
	Timeout time.Duration
	RPS     float64
	Burst   int
	Logger  *zap.Logger
}

// RESTClient wraps an HTTP client with per-venue rate limiting, retry on
// transient failures, and classification of errors into the scanner's
// taxonomy. All venue adapters fetch through it.
type RESTClient struct {
	venue      types.Venue
	baseURL    string
	header     http.Header
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewRESTClient creates a REST client for one venue.
func NewRESTClient(cfg RESTConfig) *RESTClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RPS <= 0 {
		cfg.RPS = defaultRPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}

	return &RESTClient{
		venue:   cfg.Venue,
		baseURL: cfg.BaseURL,
		header:  cfg.Header,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		logger:  cfg.Logger,
	}
}

// Venue returns the venue this client talks to.
func (c *RESTClient) Venue() types.Venue {
	return c.venue
}

// GetJSON issues a GET against path with the query attached, retrying
// transient failures with exponential backoff, and decodes the body into
// out. op names the adapter operation for error context and metrics.
func (c *RESTClient) GetJSON(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL = fmt.Sprintf("%s?%s", requestURL, query.Encode())
	}

	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = 500 * time.Millisecond
	backoffCfg.MaxInterval = 5 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			sleep := backoffCfg.NextBackOff()
			c.logger.Warn("retrying-request",
				zap.String("venue", string(c.venue)),
				zap.String("op", op),
				zap.Int("attempt", attempt+1),
				zap.Duration("sleep", sleep),
				zap.Error(lastErr))

			select {
			case <-ctx.Done():
				return c.classify(op, ctx.Err())
			case <-time.After(sleep):
			}
		}

		err := c.limiter.Wait(ctx)
		if err != nil {
			return c.classify(op, err)
		}

		err = c.doOnce(ctx, op, requestURL, out)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
	}

	return lastErr
}

// doOnce performs a single request attempt.
func (c *RESTClient) doOnce(ctx context.Context, op, requestURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "arbscan/1.0")
	for name, vals := range c.header {
		for _, v := range vals {
			req.Header.Set(name, v)
		}
	}

	c.logger.Debug("venue-request",
		zap.String("venue", string(c.venue)),
		zap.String("op", op),
		zap.String("url", requestURL))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	RequestDuration.WithLabelValues(string(c.venue)).Observe(time.Since(start).Seconds())

	if err != nil {
		RequestsTotal.WithLabelValues(string(c.venue), op, "transport_error").Inc()
		return c.classify(op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		RequestsTotal.WithLabelValues(string(c.venue), op, "auth_failed").Inc()
		return types.NewVenueError(c.venue, op,
			fmt.Errorf("%w: status %d", types.ErrAuthenticationFailed, resp.StatusCode))

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		RequestsTotal.WithLabelValues(string(c.venue), op, "retryable_status").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return types.NewVenueError(c.venue, op,
			fmt.Errorf("%w: status %d: %s", types.ErrNetworkUnavailable, resp.StatusCode, string(body)))

	case resp.StatusCode != http.StatusOK:
		RequestsTotal.WithLabelValues(string(c.venue), op, "bad_status").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return types.NewVenueError(c.venue, op,
			fmt.Errorf("%w: unexpected status %d: %s", types.ErrNetworkUnavailable, resp.StatusCode, string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		RequestsTotal.WithLabelValues(string(c.venue), op, "read_error").Inc()
		return c.classify(op, err)
	}

	err = json.Unmarshal(body, out)
	if err != nil {
		RequestsTotal.WithLabelValues(string(c.venue), op, "parse_error").Inc()
		return types.NewVenueError(c.venue, op,
			fmt.Errorf("%w: unmarshal response: %v", types.ErrParse, err))
	}

	RequestsTotal.WithLabelValues(string(c.venue), op, "ok").Inc()

	return nil
}

// classify maps a transport error onto the scanner's error taxonomy.
func (c *RESTClient) classify(op string, err error) error {
	var netErr net.Error
	isTimeout := errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout())

	if isTimeout {
		return types.NewVenueError(c.venue, op,
			fmt.Errorf("%w: %v", types.ErrNetworkTimeout, err))
	}

	return types.NewVenueError(c.venue, op,
		fmt.Errorf("%w: %v", types.ErrNetworkUnavailable, err))
}

// retryable reports whether a failed attempt is worth repeating. Auth
// rejections and malformed payloads never are.
func retryable(err error) bool {
	return errors.Is(err, types.ErrNetworkTimeout) ||
		errors.Is(err, types.ErrNetworkUnavailable)
}
