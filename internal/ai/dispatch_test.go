package ai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dispatchTo(t *testing.T, handler http.HandlerFunc) (io.ReadCloser, error) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewDispatcher().Dispatch(context.Background(), &UpstreamRequest{
		URL:     srv.URL,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    []byte(`{}`),
	})
}

func TestDispatchReturnsOpenBody(t *testing.T) {
	body, err := dispatchTo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	})
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "data: [DONE]\n\n", string(raw))
}

func TestDispatchParsesStructuredError(t *testing.T) {
	_, err := dispatchTo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid api key"}`))
	})
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusUnauthorized, ue.StatusCode)
	assert.Equal(t, "invalid api key", ue.Message)
	assert.Equal(t, "API error: invalid api key", ue.Error())
}

func TestDispatchParsesNestedError(t *testing.T) {
	_, err := dispatchTo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	})
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "rate limited", ue.Message)
}

func TestDispatchFallsBackToRawBody(t *testing.T) {
	_, err := dispatchTo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	})
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "upstream exploded", ue.Message)
}

func TestDispatchEmptyErrorBody(t *testing.T) {
	_, err := dispatchTo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "status 503", ue.Message)
}
