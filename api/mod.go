// Package api implements a client of the Stacks node and indexer HTTP API.
//
// Only the endpoints used by the dApps are covered: balances, contract
// interfaces, transactions, nonces, fees, read-only calls and the broadcast of
// signed transactions. Every request goes through a rate limiter as the
// public endpoints throttle aggressive clients.
//
// Documentation Last Review: 19.10.2026
//
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.flashlend.io/stxdapp"
	"go.flashlend.io/stxdapp/network"
	"golang.org/x/time/rate"
	"golang.org/x/xerrors"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRate    = rate.Limit(5)
	defaultBurst   = 5

	// maxBodySize bounds the size of the responses read from the node.
	maxBodySize = 4 << 20
)

var promRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "stxdapp_api_requests_total",
	Help: "total number of requests sent to the stacks api",
}, []string{"endpoint", "code"})

func init() {
	stxdapp.PromCollectors = append(stxdapp.PromCollectors, promRequests)
}

// NetworkError is returned when the node cannot be reached, replies with a
// non-success status, or sends a malformed payload.
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

// Error implements error.
func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %d %s: %v", e.Op, e.Status, http.StatusText(e.Status), e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Client is a client of the Stacks API.
type Client struct {
	network network.Network
	http    *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// ClientOption is the type of options to create a client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used to send the requests.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.http = c
	}
}

// WithRateLimit sets the maximum number of requests per second.
func WithRateLimit(limit rate.Limit, burst int) ClientOption {
	return func(client *Client) {
		client.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithLogger sets the logger of the client.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a client of the API of the network.
func NewClient(n network.Network, opts ...ClientOption) *Client {
	c := &Client{
		network: n,
		http:    &http.Client{Timeout: defaultTimeout},
		limiter: rate.NewLimiter(defaultRate, defaultBurst),
		logger: stxdapp.Logger.With().
			Str("component", "api").
			Str("network", n.Name).Logger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Network returns the network the client talks to.
func (c *Client) Network() network.Network {
	return c.network
}

// do sends the request and returns the body of the response together with
// the status code. Transport failures are returned as network errors.
func (c *Client) do(ctx context.Context, op, method, path string, body []byte,
	contentType string) ([]byte, int, error) {

	err := c.limiter.Wait(ctx)
	if err != nil {
		return nil, 0, &NetworkError{Op: op, Err: xerrors.Errorf("rate limiter: %v", err)}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.network.CoreAPIURL+path, reader)
	if err != nil {
		return nil, 0, &NetworkError{Op: op, Err: xerrors.Errorf("failed to create request: %v", err)}
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		promRequests.WithLabelValues(op, "error").Inc()
		return nil, 0, &NetworkError{Op: op, Err: xerrors.Errorf("request failed: %v", err)}
	}

	defer resp.Body.Close()

	promRequests.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, &NetworkError{
			Op:     op,
			Status: resp.StatusCode,
			Err:    xerrors.Errorf("failed to read body: %v", err),
		}
	}

	c.logger.Trace().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api request")

	return data, resp.StatusCode, nil
}

// getJSON sends a GET request and decodes a successful JSON response.
func (c *Client) getJSON(ctx context.Context, op, path string, v interface{}) error {
	data, status, err := c.do(ctx, op, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}

	return decodeResponse(op, data, status, v)
}

// postJSON sends a POST request with a JSON body and decodes a successful
// JSON response.
func (c *Client) postJSON(ctx context.Context, op, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return &NetworkError{Op: op, Err: xerrors.Errorf("failed to encode request: %v", err)}
	}

	data, status, err := c.do(ctx, op, http.MethodPost, path, body, "application/json")
	if err != nil {
		return err
	}

	return decodeResponse(op, data, status, out)
}

func decodeResponse(op string, data []byte, status int, v interface{}) error {
	if !isSuccess(status) {
		return &NetworkError{Op: op, Status: status, Err: xerrors.New(truncate(data))}
	}

	err := json.Unmarshal(data, v)
	if err != nil {
		return &NetworkError{Op: op, Status: status, Err: xerrors.Errorf("malformed payload: %v", err)}
	}

	return nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func truncate(data []byte) string {
	const max = 256

	if len(data) > max {
		return string(data[:max]) + "..."
	}

	return string(data)
}

func escape(segment string) string {
	return url.PathEscape(segment)
}
