package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"matscigpt/backend/internal/models"
)

// ErrorKind classifies transport failures so callers never have to match on
// error message text.
type ErrorKind string

const (
	KindNetwork     ErrorKind = "network"
	KindTimeout     ErrorKind = "timeout"
	KindBadResponse ErrorKind = "bad_response"
	KindRemote      ErrorKind = "remote"
)

// Error is a typed transport failure.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("chat transport: %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("chat transport: %s: %s", e.Kind, e.Message)
}

// KindOf returns the ErrorKind of err, or KindNetwork when err is not a
// transport Error.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindNetwork
}

// Transport delivers one chat request and returns the server's response.
type Transport interface {
	Send(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error)
}

// HTTPTransport posts chat requests to the backend's /api/v1/chat endpoint.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport creates a transport against baseURL. A zero timeout
// falls back to 30 seconds.
func NewHTTPTransport(baseURL string, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTransport{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *HTTPTransport) Send(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	var resp models.ChatResponse

	body, err := json.Marshal(req)
	if err != nil {
		return resp, &Error{Kind: KindBadResponse, Message: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/v1/chat", bytes.NewReader(body))
	if err != nil {
		return resp, &Error{Kind: KindNetwork, Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		kind := KindNetwork
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = KindTimeout
		}
		return resp, &Error{Kind: kind, Message: err.Error()}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return resp, &Error{Kind: KindRemote, Status: httpResp.StatusCode, Message: httpResp.Status}
	}

	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return resp, &Error{Kind: KindBadResponse, Message: err.Error()}
	}
	return resp, nil
}
