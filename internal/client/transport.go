package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/comigor/nature-chat/internal/api"
	"github.com/comigor/nature-chat/internal/logger"
)

// DefaultAPIURL is the chat endpoint of a locally running backend.
const DefaultAPIURL = "http://localhost:8001/api/chat"

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

var (
	// ErrValidation marks a 422 response: the request or its credential was rejected.
	ErrValidation = errors.New("validation error")
	// ErrServer marks a 500 response.
	ErrServer = errors.New("server error")
	// ErrHTTPStatus marks any other non-2xx response.
	ErrHTTPStatus = errors.New("unexpected http status")
)

// Transport delivers a chat request and returns the streamed response body.
// The caller closes the body.
type Transport interface {
	Send(ctx context.Context, req *api.ChatRequest) (io.ReadCloser, error)
}

// TransportError is a non-2xx response from the chat service.
type TransportError struct {
	Status int
	Body   string
}

func (e *TransportError) Error() string {
	switch e.Status {
	case http.StatusUnprocessableEntity:
		return "API validation error: Please check your API key and try again"
	case http.StatusInternalServerError:
		if detail := errorDetail(e.Body); detail != "" {
			return "Server error: " + detail
		}
		return "Server error: Please check your API key and try again"
	default:
		return fmt.Sprintf("HTTP error! status: %d - %s", e.Status, strings.TrimSpace(e.Body))
	}
}

func (e *TransportError) Unwrap() error {
	switch e.Status {
	case http.StatusUnprocessableEntity:
		return ErrValidation
	case http.StatusInternalServerError:
		return ErrServer
	default:
		return ErrHTTPStatus
	}
}

// errorDetail extracts the "detail" field of a JSON error body, or returns the
// trimmed body when it is not one.
func errorDetail(body string) string {
	var resp api.ErrorResponse
	if err := json.Unmarshal([]byte(body), &resp); err == nil && resp.Detail != "" {
		return resp.Detail
	}
	return strings.TrimSpace(body)
}

type requestIDKey struct{}

// WithRequestID attaches id to ctx; HTTPTransport sends it as X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// HTTPTransport posts requests to the chat service over HTTP.
type HTTPTransport struct {
	URL    string
	Client *http.Client
}

// NewHTTPTransport returns a transport for url. A zero timeout disables the
// client-side deadline, which would otherwise cut long streams.
func NewHTTPTransport(url string, timeout time.Duration) *HTTPTransport {
	if url == "" {
		url = DefaultAPIURL
	}
	return &HTTPTransport{URL: url, Client: &http.Client{Timeout: timeout}}
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, req *api.ChatRequest) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/plain")
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send chat request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logger.L.Warn("chat request rejected", "status", resp.StatusCode, "body", string(body))
		return nil, &TransportError{Status: resp.StatusCode, Body: string(body)}
	}
	return resp.Body, nil
}
