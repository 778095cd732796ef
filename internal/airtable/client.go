// Package airtable is a small client for the Airtable REST and metadata APIs.
// It covers what the ingest pipeline needs: listing and creating tables,
// paging through records and creating records in batches.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public Airtable API root.
const DefaultBaseURL = "https://api.airtable.com/v0"

// Observer receives one callback per HTTP round trip. Status is 0 when the
// request never got a response.
type Observer interface {
	ObserveRequest(op string, status int, elapsed time.Duration)
}

// Config holds the connection settings for one base.
type Config struct {
	BaseURL string
	BaseID  string
	APIKey  string
	Timeout time.Duration
}

// Client talks to a single Airtable base.
type Client struct {
	baseURL    string
	baseID     string
	apiKey     string
	httpClient *http.Client
	observer   Observer
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithObserver registers a request observer (metrics).
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a Client for cfg.BaseID.
func NewClient(cfg Config, opts ...Option) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		baseID:     cfg.BaseID,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseID returns the base this client writes to.
func (c *Client) BaseID() string {
	return c.baseID
}

func (c *Client) metaTablesPath() string {
	return "/meta/bases/" + url.PathEscape(c.baseID) + "/tables"
}

func (c *Client) tablePath(table string) string {
	return "/" + url.PathEscape(c.baseID) + "/" + url.PathEscape(table)
}

// do sends one request and decodes a 2xx JSON response into out.
// Non-2xx responses are returned as *APIError.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("airtable: %s: marshal request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("airtable: %s: create request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, 0, time.Since(start))
		return fmt.Errorf("airtable: %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	c.observe(op, resp.StatusCode, time.Since(start))
	if err != nil {
		return fmt.Errorf("airtable: %s: read body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(op, resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("airtable: %s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) observe(op string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(op, status, elapsed)
	}
}
