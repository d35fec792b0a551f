package backend

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strategyforge/gateway/internal/config"
	"github.com/strategyforge/gateway/internal/observability"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.BackendConfig{
		BaseURL:        srv.URL + "/",
		ConnectTimeout: config.Duration(time.Second),
		ReadTimeout:    config.Duration(time.Second),
	})
}

func TestClient_Call_Success(t *testing.T) {
	t.Parallel()

	var gotBody, gotContentType, gotRequestID string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotContentType = r.Header.Get("Content-Type")
		gotRequestID = r.Header.Get(RequestIDHeader)
		assert.Equal(t, "/api/v1/strategies/generate", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"strategy":"momentum"}`))
	})

	ctx := observability.ContextWithRequestID(context.Background(), "req-1")
	outcome := client.Call(ctx, http.MethodPost, "/api/v1/strategies/generate", []byte(`{"symbol":"AAPL"}`))

	require.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.Equal(t, http.StatusOK, outcome.StatusCode)
	assert.JSONEq(t, `{"strategy":"momentum"}`, string(outcome.Body))
	assert.Equal(t, `{"symbol":"AAPL"}`, gotBody)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "req-1", gotRequestID)
}

func TestClient_Call_EmptySuccessBody(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	outcome := client.Call(context.Background(), http.MethodGet, "/api/v1/health", nil)

	require.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.Equal(t, http.StatusNoContent, outcome.StatusCode)
	assert.Equal(t, "{}", string(outcome.Body))
}

func TestClient_Call_ApplicationError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "not found", status: http.StatusNotFound, body: `{"detail":"no market data for ZZZZ"}`},
		{name: "unprocessable", status: http.StatusUnprocessableEntity, body: `{"detail":[{"loc":["symbol"]}]}`},
		{name: "server error", status: http.StatusInternalServerError, body: `{"detail":"boom"}`},
		{name: "plain text", status: http.StatusBadGateway, body: "upstream broke"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			outcome := client.Call(context.Background(), http.MethodGet, "/x", nil)

			require.Equal(t, OutcomeApplicationError, outcome.Kind)
			assert.Equal(t, tt.status, outcome.StatusCode)
			assert.Equal(t, tt.body, string(outcome.Body))
		})
	}
}

func TestClient_Call_MalformedSuccessBody(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>oops</html>"))
	})

	outcome := client.Call(context.Background(), http.MethodGet, "/x", nil)

	require.Equal(t, OutcomeTransportFailure, outcome.Kind)
	assert.ErrorIs(t, outcome.Err, ErrMalformedResponse)
}

func TestClient_Call_ConnectionRefused(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	client := NewClient(config.BackendConfig{
		BaseURL:        "http://" + addr,
		ConnectTimeout: config.Duration(time.Second),
		ReadTimeout:    config.Duration(time.Second),
	})

	outcome := client.Call(context.Background(), http.MethodGet, "/api/v1/health", nil)

	require.Equal(t, OutcomeTransportFailure, outcome.Kind)
	assert.ErrorIs(t, outcome.Err, ErrUnreachable)

	var te *TransportError
	require.True(t, errors.As(outcome.Err, &te))
	assert.Equal(t, "/api/v1/health", te.Path)
}

func TestClient_Call_ReadTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	client := NewClient(config.BackendConfig{
		BaseURL:        srv.URL,
		ConnectTimeout: config.Duration(time.Second),
		ReadTimeout:    config.Duration(50 * time.Millisecond),
	})

	start := time.Now()
	outcome := client.Call(context.Background(), http.MethodGet, "/slow", nil)

	require.Equal(t, OutcomeTransportFailure, outcome.Kind)
	assert.ErrorIs(t, outcome.Err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_Call_ContextCancelled(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := client.Call(ctx, http.MethodGet, "/x", nil)
	assert.Equal(t, OutcomeTransportFailure, outcome.Kind)
}

func TestOutcomeKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "application_error", OutcomeApplicationError.String())
	assert.Equal(t, "transport_failure", OutcomeTransportFailure.String())
	assert.Equal(t, "unknown", OutcomeKind(9).String())
}

func TestClient_BaseURLTrimmed(t *testing.T) {
	t.Parallel()

	c := NewClient(config.BackendConfig{BaseURL: "http://backend:8000/"})
	assert.Equal(t, "http://backend:8000", c.BaseURL())
	c.Close()
}
