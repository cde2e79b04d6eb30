// Package fetch wraps the remote page-fetch service behind a hard deadline.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const maxBodyBytes = 5 * 1024 * 1024

// Options tune a single fetch. Render asks the service to execute page
// scripts before returning markup; Country is a locale/region hint.
type Options struct {
	Render  bool
	Country string
}

// PageFetcher retrieves the raw content of a page or fails. No retries are
// performed here; the orchestrator decides whether to retry or fall back.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string, opts Options) (string, error)
}

type Config struct {
	BaseURL string
	APIKey  string
	Country string
	Timeout time.Duration
}

// Client calls a render-capable fetch actor over HTTP. The deadline is a
// real context deadline passed into the transport, so the request is
// cancelled when time runs out instead of being raced and leaked.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{},
	}
}

func (c *Client) FetchPage(ctx context.Context, pageURL string, opts Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	endpoint, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse fetch service url: %w", err)
	}

	q := endpoint.Query()
	q.Set("api_key", c.cfg.APIKey)
	q.Set("url", pageURL)
	q.Set("render_js", boolParam(opts.Render))
	country := opts.Country
	if country == "" {
		country = c.cfg.Country
	}
	if country != "" {
		q.Set("country_code", country)
	}
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "harvester/1.0")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: HTTP %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	slog.DebugContext(ctx, "page fetched",
		"url", pageURL,
		"bytes", len(body),
		"render", opts.Render,
		"duration_ms", time.Since(start).Milliseconds())

	return string(body), nil
}

func boolParam(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
