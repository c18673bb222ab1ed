package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bagaking/youcom-proxy/upstream"
)

func TestClassifierClassify(t *testing.T) {
	c := Classifier{Name: "You.com", AuthOverride: true}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"missing key", upstream.ErrMissingAPIKey, 500, "You.com API key not configured"},
		{"invalid json", ErrInvalidJSON, 400, "Invalid JSON in request body"},
		{"no prompt", fmt.Errorf("decode: %w", ErrNoPrompt), 400, "No prompt or messages provided"},
		{"rate limit", &upstream.HTTPError{StatusCode: 429, Body: []byte(`{"error":"slow down"}`)}, 429, "You.com API rate limit exceeded"},
		{"unauthorized", &upstream.HTTPError{StatusCode: 401, Body: []byte(`{"error":"bad key"}`)}, 401, "Authentication failed with You.com API"},
		{"forbidden", &upstream.HTTPError{StatusCode: 403}, 403, "Authentication failed with You.com API"},
		{"error string", &upstream.HTTPError{StatusCode: 500, Body: []byte(`{"error":"boom"}`)}, 500, "boom"},
		{"error object", &upstream.HTTPError{StatusCode: 400, Body: []byte(`{"error":{"message":"bad query"}}`)}, 400, "bad query"},
		{"status text", &upstream.HTTPError{StatusCode: 503, StatusText: "Service Unavailable", Body: []byte(`oops`)}, 503, "Service Unavailable"},
		{"generic", &upstream.HTTPError{StatusCode: 418}, 418, "You.com API error"},
		{"redirect is not passed through", &upstream.HTTPError{StatusCode: 302, StatusText: "Found"}, 502, "Found"},
		{"timeout", &upstream.TimeoutError{Timeout: time.Second}, 504, "You.com API request timeout"},
		{"network", &upstream.NetworkError{Cause: errors.New("connection refused")}, 500, "connection refused"},
		{"passthrough", &ProxyError{Status: 418, Message: "teapot"}, 418, "teapot"},
		{"unknown", errors.New("weird"), 500, "weird"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.err)
			if got.Status != tt.wantStatus || got.Message != tt.wantMsg {
				t.Errorf("Classify = %d %q, want %d %q", got.Status, got.Message, tt.wantStatus, tt.wantMsg)
			}
		})
	}
}

func TestClassifierWithoutAuthOverride(t *testing.T) {
	c := Classifier{Name: "You.com"}
	got := c.Classify(&upstream.HTTPError{StatusCode: http.StatusUnauthorized, Body: []byte(`{"error":"Invalid API key"}`)})
	if got.Status != 401 || got.Message != "Invalid API key" {
		t.Errorf("Classify = %d %q", got.Status, got.Message)
	}
}

func TestProxyErrorBody(t *testing.T) {
	e := &ProxyError{Status: 502, Message: "No completion returned from You.com API", Debug: []byte(`{"foo":1}`)}

	plain, err := json.Marshal(e.Body(false))
	if err != nil {
		t.Fatal(err)
	}
	if string(plain) != `{"error":"No completion returned from You.com API"}` {
		t.Errorf("body = %s", plain)
	}

	withDebug, err := json.Marshal(e.Body(true))
	if err != nil {
		t.Fatal(err)
	}
	if string(withDebug) != `{"error":"No completion returned from You.com API","debug":{"foo":1}}` {
		t.Errorf("body = %s", withDebug)
	}

	text := &ProxyError{Status: 500, Message: "x", Debug: []byte("not json")}
	b, _ := json.Marshal(text.Body(true))
	if string(b) != `{"error":"x","debug":"not json"}` {
		t.Errorf("body = %s", b)
	}
}
