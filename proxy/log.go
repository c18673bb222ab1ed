package proxy

import (
	"bytes"
	"io"
	"net/http"
	"time"
)

// Logger 接口定义，*slog.Logger 直接满足
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// 调试日志里 body 的最大长度
const maxLoggedBody = 2048

// LoggingTransport 自定义传输层，记录上游请求与响应
type LoggingTransport struct {
	Transport http.RoundTripper
	Logger    Logger
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	t.Logger.Info("upstream request", "method", req.Method, "url", req.URL.String())
	t.Logger.Debug("upstream request headers", "headers", redactHeaders(req.Header))

	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			t.Logger.Error("failed to read upstream request body", "error", err)
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewBuffer(body))
		t.Logger.Debug("upstream request body", "body", clip(body))
	}

	resp, err := t.transport().RoundTrip(req)
	if err != nil {
		t.Logger.Error("upstream request failed", "error", err, "duration", time.Since(start))
		return nil, err
	}

	t.Logger.Info("upstream response", "status", resp.StatusCode, "duration", time.Since(start))
	t.Logger.Debug("upstream response headers", "headers", resp.Header)

	return resp, nil
}

func (t *LoggingTransport) transport() http.RoundTripper {
	if t.Transport != nil {
		return t.Transport
	}
	return http.DefaultTransport
}

// redactHeaders 隐去密钥类 header
func redactHeaders(h http.Header) http.Header {
	out := h.Clone()
	for _, k := range []string{"X-Api-Key", "Authorization"} {
		if out.Get(k) != "" {
			out.Set(k, "[REDACTED]")
		}
	}
	return out
}

func clip(b []byte) string {
	if len(b) <= maxLoggedBody {
		return string(b)
	}
	return string(b[:maxLoggedBody]) + "...(truncated)"
}
