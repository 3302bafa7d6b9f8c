package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/nature-chat/internal/api"
)

func TestHTTPTransport_PostsRequestAndStreamsBody(t *testing.T) {
	var (
		got     api.ChatRequest
		method  string
		headers http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, headers = r.Method, r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "Hello ")
		w.(http.Flusher).Flush()
		_, _ = io.WriteString(w, "there")
	}))
	defer srv.Close()

	req := api.NewChatRequest()
	req.UserMessage = "hi"
	req.APIKey = "sk-test"

	body, err := NewHTTPTransport(srv.URL, 0).Send(WithRequestID(context.Background(), "turn-1"), &req)
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.Equal(t, "Hello there", string(data))
	require.Equal(t, http.MethodPost, method)
	require.Equal(t, "application/json", headers.Get("Content-Type"))
	require.Equal(t, "turn-1", headers.Get("X-Request-ID"))
	require.Equal(t, req, got)
}

func TestHTTPTransport_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		message  string
	}{
		{"validation", http.StatusUnprocessableEntity, `{"detail":"bad key"}`, ErrValidation,
			"API validation error: Please check your API key and try again"},
		{"server with body", http.StatusInternalServerError, "oops", ErrServer, "Server error: oops"},
		{"server with detail", http.StatusInternalServerError, `{"detail":"upstream down"}`, ErrServer,
			"Server error: upstream down"},
		{"server without body", http.StatusInternalServerError, "", ErrServer,
			"Server error: Please check your API key and try again"},
		{"other", http.StatusTeapot, "short and stout", ErrHTTPStatus,
			"HTTP error! status: 418 - short and stout"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			req := api.NewChatRequest()
			body, err := NewHTTPTransport(srv.URL, 0).Send(context.Background(), &req)
			require.Nil(t, body)
			require.ErrorIs(t, err, tc.sentinel)
			require.EqualError(t, err, tc.message)

			var te *TransportError
			require.True(t, errors.As(err, &te))
			require.Equal(t, tc.status, te.Status)
		})
	}
}

func TestHTTPTransport_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	req := api.NewChatRequest()
	_, err := NewHTTPTransport(url, 0).Send(context.Background(), &req)
	require.Error(t, err)
	var te *TransportError
	require.False(t, errors.As(err, &te))
}

func TestIsConfigurationError(t *testing.T) {
	require.True(t, IsConfigurationError(&TransportError{Status: http.StatusUnprocessableEntity}))
	require.False(t, IsConfigurationError(&TransportError{Status: http.StatusInternalServerError}))
}
