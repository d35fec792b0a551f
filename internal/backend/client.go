package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/strategyforge/gateway/internal/config"
	"github.com/strategyforge/gateway/internal/observability"
)

// MaxResponseBytes bounds how much of a backend body is read.
const MaxResponseBytes = 10 << 20

// RequestIDHeader carries the inbound request id to the backend.
const RequestIDHeader = "X-Request-ID"

// Client calls the strategy service.
type Client struct {
	baseURL     string
	pool        *ConnectionPool
	callTimeout time.Duration
	logger      observability.Logger
}

// ClientOption is a functional option for configuring a client.
type ClientOption func(*Client)

// WithLogger sets the logger for the client.
func WithLogger(logger observability.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the backend described by cfg.
func NewClient(cfg config.BackendConfig, opts ...ClientOption) *Client {
	poolCfg := DefaultPoolConfig()
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnectTimeout = cfg.ConnectTimeout.Duration()
	}
	if cfg.ReadTimeout > 0 {
		poolCfg.ResponseHeaderTimeout = cfg.ReadTimeout.Duration()
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		// The whole exchange, body included, must finish within
		// connect + read.
		callTimeout: poolCfg.ConnectTimeout + poolCfg.ResponseHeaderTimeout,
		logger:      observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pool == nil {
		c.pool = NewConnectionPool(poolCfg)
	}
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections.
func (c *Client) Close() {
	c.pool.CloseIdleConnections()
}

// Call performs one request against the backend and classifies the result.
// body, when non-nil, must be JSON.
func (c *Client) Call(ctx context.Context, method, path string, body []byte) Outcome {
	start := time.Now()
	outcome := c.call(ctx, method, path, body)
	recordCall(method, outcome, time.Since(start))

	switch outcome.Kind {
	case OutcomeTransportFailure:
		c.logger.WithContext(ctx).Warn("backend transport failure",
			observability.String("method", method),
			observability.String("path", path),
			observability.Duration("elapsed", time.Since(start)),
			observability.Error(outcome.Err),
		)
	default:
		c.logger.WithContext(ctx).Debug("backend call completed",
			observability.String("method", method),
			observability.String("path", path),
			observability.Int("status", outcome.StatusCode),
			observability.String("outcome", outcome.Kind.String()),
			observability.Duration("elapsed", time.Since(start)),
		)
	}
	return outcome
}

func (c *Client) call(ctx context.Context, method, path string, body []byte) Outcome {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return TransportFailure(&TransportError{Method: method, Path: path, Reason: ErrUnreachable, Err: err})
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := observability.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}
	observability.InjectTraceContext(ctx, req.Header)

	resp, err := c.pool.Client().Do(req)
	if err != nil {
		return TransportFailure(&TransportError{
			Method: method, Path: path, Reason: classifyTransportError(err), Err: err,
		})
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return TransportFailure(&TransportError{
			Method: method, Path: path, Reason: classifyTransportError(err), Err: err,
		})
	}

	return classifyResponse(method, path, resp.StatusCode, data)
}

// classifyResponse tags a received response. Any non-2xx is an application
// error; a 2xx must carry JSON, an empty body reads as an empty object.
func classifyResponse(method, path string, status int, data []byte) Outcome {
	if status < 200 || status > 299 {
		return ApplicationError(status, data)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Success(status, []byte("{}"))
	}
	if !json.Valid(trimmed) {
		return TransportFailure(&TransportError{
			Method: method,
			Path:   path,
			Reason: ErrMalformedResponse,
			Err:    fmt.Errorf("status %d with non-JSON body", status),
		})
	}
	return Success(status, data)
}
