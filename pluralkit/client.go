// Package pluralkit is a small client for the PluralKit message lookup API.
package pluralkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"discord-pk-bot/models"
	"discord-pk-bot/telemetry"
)

// APIVersion is the PluralKit API version the client speaks.
const APIVersion = 2

// ErrNotFound is returned when the service has no record for a message.
var ErrNotFound = errors.New("pluralkit: message not found")

// Options configures a Client.
type Options struct {
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	Burst     int
	CacheSize int
	UserAgent string
}

// DefaultOptions mirrors the public API's published limits.
func DefaultOptions() Options {
	return Options{
		Timeout:   10 * time.Second,
		RateLimit: 2,
		Burst:     2,
		CacheSize: 10_000,
		UserAgent: "discord-pk-bot",
	}
}

// Client looks up proxied messages on one PluralKit deployment.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *lru.Cache[string, *models.ProxyRecord]
	group      singleflight.Group
}

// NewClient creates a client for the deployment at baseURL.
func NewClient(baseURL string, opts Options) (*Client, error) {
	if err := ValidateBaseURL(baseURL); err != nil {
		return nil, err
	}

	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultOptions().CacheSize
	}
	cache, err := lru.New[string, *models.ProxyRecord](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create message cache: %w", err)
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  opts.UserAgent,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    limiter,
		cache:      cache,
	}, nil
}

// ValidateBaseURL checks that raw is an absolute http(s) URL.
func ValidateBaseURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid pluralkit api url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid pluralkit api url %q: unsupported scheme", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid pluralkit api url %q: missing host", raw)
	}
	return nil
}

// BaseURL returns the deployment this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetMessage fetches the record for a message id. Successful lookups are cached;
// misses are not, since a record may appear once the service finishes a rewrite.
func (c *Client) GetMessage(ctx context.Context, id string) (*models.ProxyRecord, error) {
	if cached, ok := c.cache.Get(id); ok {
		return cached, nil
	}

	v, err, _ := c.group.Do(id, func() (any, error) {
		return c.fetch(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	record := v.(*models.ProxyRecord)
	c.cache.Add(id, record)
	return record, nil
}

// GetMessageOrNil is GetMessage with ErrNotFound mapped to a nil record.
func (c *Client) GetMessageOrNil(ctx context.Context, id string) (*models.ProxyRecord, error) {
	record, err := c.GetMessage(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return record, err
}

func (c *Client) fetch(ctx context.Context, id string) (*models.ProxyRecord, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("pluralkit rate limit wait: %w", err)
		}
	}

	endpoint := fmt.Sprintf("%s/v%d/messages/%s", c.baseURL, APIVersion, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build pluralkit request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.RecordAPIRequest("error", time.Since(start))
		slog.Warn("pluralkit: request failed", "message_id", id, "error", err)
		return nil, fmt.Errorf("pluralkit request: %w", err)
	}
	defer resp.Body.Close()

	telemetry.RecordAPIRequest(strconv.Itoa(resp.StatusCode), time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		slog.Debug("pluralkit: message lookup", "path", "/messages/"+id, "status", resp.StatusCode)
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		slog.Warn("pluralkit: message lookup", "path", "/messages/"+id, "status", resp.StatusCode)
		return nil, fmt.Errorf("pluralkit: unexpected status %d for message %s", resp.StatusCode, id)
	}

	var record models.ProxyRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		slog.Warn("pluralkit: malformed response", "message_id", id, "error", err)
		return nil, fmt.Errorf("decode pluralkit message %s: %w", id, err)
	}

	slog.Debug("pluralkit: message lookup", "path", "/messages/"+id, "status", resp.StatusCode)
	return &record, nil
}
