package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/meltforce/haetable/internal/storage"
)

// HTTPClient implements DataSource by calling the haetable REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// the service runs elsewhere (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL. apiKey
// is sent as X-API-Key when non-empty.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) ListTables(ctx context.Context) (*TableList, error) {
	var list TableList
	if err := c.get(ctx, "/api/v1/tables", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *HTTPClient) TableDates(ctx context.Context, table string, latest int) (*TableDates, error) {
	params := url.Values{}
	if latest > 0 {
		params.Set("latest", strconv.Itoa(latest))
	}
	var dates TableDates
	if err := c.get(ctx, "/api/v1/tables/"+url.PathEscape(table)+"/dates", params, &dates); err != nil {
		return nil, err
	}
	return &dates, nil
}

func (c *HTTPClient) RecentDeliveries(ctx context.Context, limit int) ([]storage.Delivery, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var deliveries []storage.Delivery
	if err := c.get(ctx, "/api/v1/deliveries", params, &deliveries); err != nil {
		return nil, err
	}
	return deliveries, nil
}
