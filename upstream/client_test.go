package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bagaking/youcom-proxy/config"
)

func testConfig(url string) config.UpstreamConfig {
	return config.UpstreamConfig{
		Name:      "You.com",
		URL:       url,
		APIKey:    "test-key",
		Timeout:   2 * time.Second,
		BodyField: "query",
	}
}

func TestSend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("X-API-Key") != "test-key" {
			t.Errorf("expected X-API-Key 'test-key', got %q", r.Header.Get("X-API-Key"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type 'application/json', got %q", r.Header.Get("Content-Type"))
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("failed to read body: %v", err)
		}
		var payload map[string]string
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("failed to unmarshal request: %v", err)
		}
		if payload["query"] != "user: Hi\nassistant:" {
			t.Errorf("unexpected payload: %v", payload)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"answer":"hello"}`))
	}))
	defer server.Close()

	client := New(testConfig(server.URL))
	resp, err := client.Send(context.Background(), "user: Hi\nassistant:")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"answer":"hello"}` {
		t.Errorf("unexpected body %q", resp.Body)
	}
}

func TestSendPromptBodyField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		if _, ok := payload["prompt"]; !ok {
			t.Errorf("expected prompt field, got %v", payload)
		}
		if _, ok := payload["query"]; ok {
			t.Errorf("did not expect query field, got %v", payload)
		}
		w.Write([]byte(`{"result":"ok"}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.BodyField = "prompt"
	if _, err := New(cfg).Send(context.Background(), "Hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSendMissingAPIKey(t *testing.T) {
	var count atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.APIKey = ""
	_, err := New(cfg).Send(context.Background(), "Hello")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if got := count.Load(); got != 0 {
		t.Errorf("expected no upstream call, got %d", got)
	}
}

func TestSendHTTPError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantText    string
	}{
		{
			name:        "string error field",
			status:      http.StatusBadRequest,
			body:        `{"error":"query too long"}`,
			wantMessage: "query too long",
			wantText:    "Bad Request",
		},
		{
			name:        "object error field",
			status:      http.StatusInternalServerError,
			body:        `{"error":{"message":"model overloaded","type":"server_error"}}`,
			wantMessage: "model overloaded",
			wantText:    "Internal Server Error",
		},
		{
			name:        "plain text body",
			status:      http.StatusBadGateway,
			body:        "bad gateway",
			wantMessage: "",
			wantText:    "Bad Gateway",
		},
		{
			name:        "rate limited",
			status:      http.StatusTooManyRequests,
			body:        `{"detail":"slow down"}`,
			wantMessage: "",
			wantText:    "Too Many Requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var count atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				count.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := New(testConfig(server.URL)).Send(context.Background(), "Hello")
			var httpErr *HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("expected *HTTPError, got %T: %v", err, err)
			}
			if httpErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", httpErr.StatusCode, tt.status)
			}
			if got := httpErr.Message(); got != tt.wantMessage {
				t.Errorf("Message() = %q, want %q", got, tt.wantMessage)
			}
			if httpErr.StatusText != tt.wantText {
				t.Errorf("StatusText = %q, want %q", httpErr.StatusText, tt.wantText)
			}
			if got := count.Load(); got != 1 {
				t.Errorf("expected exactly 1 request (no retry), got %d", got)
			}
		})
	}
}

func TestSendTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	cfg := testConfig(server.URL)
	cfg.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := New(cfg).Send(context.Background(), "Hello")
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %T: %v", err, err)
	}
	if timeoutErr.Timeout != cfg.Timeout {
		t.Errorf("Timeout = %s, want %s", timeoutErr.Timeout, cfg.Timeout)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Send took %s, expected to give up near the timeout", elapsed)
	}
}

func TestSendNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(testConfig(url)).Send(context.Background(), "Hello")
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %T: %v", err, err)
	}
	if netErr.Error() == "" {
		t.Error("expected a failure description")
	}
}

type countingTransport struct {
	calls atomic.Int32
	next  http.RoundTripper
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.calls.Add(1)
	return t.next.RoundTrip(req)
}

func TestWithTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	rt := &countingTransport{next: http.DefaultTransport}
	if _, err := New(testConfig(server.URL), WithTransport(rt)).Send(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rt.calls.Load(); got != 1 {
		t.Errorf("expected transport to be used once, got %d", got)
	}
}
