package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/meltforce/haetable/internal/models"
)

// HAEClient connects to the Health Auto Export TCP server (JSON-RPC 2.0).
// Each call opens a new TCP connection; the HAE server closes the socket
// after sending the response.
type HAEClient struct {
	host    string
	port    int
	timeout time.Duration
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *jsonRPCError   `json:"error,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewHAEClient creates a new client for the HAE TCP server.
func NewHAEClient(host string, port int) *HAEClient {
	return &HAEClient{
		host:    host,
		port:    port,
		timeout: 120 * time.Second,
	}
}

// QueryMetrics queries health_metrics for [start, end). metrics is a
// comma-separated filter; empty means all metrics. The result has the same
// shape as a webhook delivery.
func (c *HAEClient) QueryMetrics(ctx context.Context, start, end time.Time, metrics string) (json.RawMessage, error) {
	args := map[string]any{
		"start":     start.Format(models.HAETimeLayout),
		"end":       end.Format(models.HAETimeLayout),
		"aggregate": false,
	}
	if metrics != "" {
		args["metrics"] = metrics
	}
	return c.callTool(ctx, "health_metrics", args)
}

// callTool sends a JSON-RPC callTool request and returns the result.
func (c *HAEClient) callTool(ctx context.Context, toolName string, args map[string]any) (json.RawMessage, error) {
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "callTool",
		Params:  callToolParams{Name: toolName, Arguments: args},
	}

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close() //nolint:errcheck

	deadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting deadline: %w", err)
	}

	// Newline-delimited framing.
	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	// The server closes the connection after the response, so read until EOF.
	respData, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if len(respData) == 0 {
		return nil, fmt.Errorf("empty response from %s", addr)
	}

	var resp jsonRPCResponse
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("HAE error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}
