package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"car-animator/internal/directions"
	"car-animator/internal/placemark"
)

const maxBody = 8 << 20

// StatusError is returned for non-200 responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned %d", e.URL, e.Code)
}

// Metrics receives one observation per request.
type Metrics interface {
	FetchObserve(target, outcome string)
}

type Config struct {
	LocationsURL  string
	DirectionsURL string
	APIKey        string
	Timeout       time.Duration
	Retries       int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
}

type Client struct {
	cfg     Config
	http    *http.Client
	log     *zap.Logger
	metrics Metrics
}

func NewClient(cfg Config, log *zap.Logger, m Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log,
		metrics: m,
	}
}

// FetchPlacemarks downloads and decodes the placemark list.
func (c *Client) FetchPlacemarks(ctx context.Context) ([]placemark.Placemark, error) {
	body, err := c.get(ctx, "locations", c.cfg.LocationsURL, nil)
	if err != nil {
		return nil, err
	}
	return placemark.DecodeLocationPayload(body)
}

// FetchRoute asks the directions API for a route through the placemarks and
// returns the encoded overview polyline.
func (c *Client) FetchRoute(ctx context.Context, pms []placemark.Placemark) (string, error) {
	q, err := directions.Query(pms)
	if err != nil {
		return "", err
	}
	if c.cfg.APIKey != "" {
		q.Set("key", c.cfg.APIKey)
	}
	body, err := c.get(ctx, "directions", c.cfg.DirectionsURL, q)
	if err != nil {
		return "", err
	}
	return directions.DecodeResponse(body)
}

func (c *Client) get(ctx context.Context, target, rawURL string, q url.Values) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%s url: %w", target, err)
	}
	if len(q) > 0 {
		merged := u.Query()
		for k, vs := range q {
			merged[k] = vs
		}
		u.RawQuery = merged.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * c.cfg.Backoff
			c.log.Warn("retrying request",
				zap.String("target", target),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(lastErr),
			)
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}
		body, retry, err := c.do(ctx, u.String())
		if err == nil {
			c.observe(target, "ok")
			return body, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}
	c.observe(target, "error")
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, u string) (body []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("HTTP error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		// strip the query so the api key is not logged
		shown := u
		if pu, perr := url.Parse(u); perr == nil {
			pu.RawQuery = ""
			shown = pu.String()
		}
		return nil, resp.StatusCode >= 500, &StatusError{URL: shown, Code: resp.StatusCode}
	}
	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	return body, false, nil
}

func (c *Client) observe(target, outcome string) {
	if c.metrics != nil {
		c.metrics.FetchObserve(target, outcome)
	}
}
