package mockupstream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func post(t *testing.T, h http.Handler, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/smart/agent", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer(t *testing.T) {
	s := &Server{APIKey: "k", Delay: 10 * time.Millisecond}
	h := s.Handler()

	tests := []struct {
		name       string
		key        string
		body       string
		wantStatus int
		wantField  string
		wantValue  string
	}{
		{"echo", "k", `{"query":"Hello"}`, 200, "answer", "Echo: Hello"},
		{"wrong key", "x", `{"query":"Hello"}`, 401, "error", "Invalid API key"},
		{"status directive", "k", `{"query":"please [status:429]"}`, 429, "error", "mock status 429"},
		{"empty", "k", `{"query":"[empty]"}`, 200, "status", "done"},
		{"slow", "k", `{"query":"[slow] hi"}`, 200, "answer", "Echo: [slow] hi"},
		{"invalid body", "k", `{`, 400, "error", "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, h, tt.key, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if got := gjson.Get(w.Body.String(), tt.wantField).String(); got != tt.wantValue {
				t.Errorf("%s = %q, want %q", tt.wantField, got, tt.wantValue)
			}
		})
	}
}

func TestServerCustomBodyField(t *testing.T) {
	s := &Server{BodyField: "prompt"}
	w := post(t, s.Handler(), "", `{"prompt":"Hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := gjson.Get(w.Body.String(), "answer").String(); got != "Echo: Hi" {
		t.Errorf("answer = %q", got)
	}
}
