package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrMissingAPIKey 未配置 API key，不会发起任何网络请求
var ErrMissingAPIKey = errors.New("upstream: API key not configured")

// HTTPError 上游返回了非 2xx 状态码
type HTTPError struct {
	StatusCode int
	StatusText string // 上游的 reason phrase，可能为空
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream: unexpected status %d: %s", e.StatusCode, truncate(string(e.Body), 256))
}

// Message 取上游错误体里的 error 字段，支持字符串或 {"error":{"message":...}} 两种形式
func (e *HTTPError) Message() string {
	if len(e.Body) == 0 || !gjson.ValidBytes(e.Body) {
		return ""
	}
	errField := gjson.GetBytes(e.Body, "error")
	switch {
	case errField.Type == gjson.String:
		return errField.Str
	case errField.IsObject():
		return errField.Get("message").String()
	}
	return ""
}

// TimeoutError 在配置的超时时间内没有拿到响应
type TimeoutError struct {
	Timeout time.Duration
	Cause   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("upstream: request timeout after %s", e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// NetworkError 连接失败、DNS 失败等网络层错误
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string {
	return e.Cause.Error()
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// reasonPhrase 从 "404 Not Found" 中取出 "Not Found"
func reasonPhrase(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
