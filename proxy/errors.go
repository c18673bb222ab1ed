package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/bagaking/youcom-proxy/openai"
	"github.com/bagaking/youcom-proxy/upstream"
)

// ProxyError 对外返回的错误：状态码、可读信息，以及可选的上游原始响应
type ProxyError struct {
	Status  int
	Message string
	Debug   []byte
}

func (e *ProxyError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// Body 错误响应体。Debug 是合法 JSON 时原样嵌入，否则作为字符串
func (e *ProxyError) Body(includeDebug bool) openai.ErrorResponse {
	resp := openai.ErrorResponse{Error: e.Message}
	if includeDebug && len(e.Debug) > 0 {
		if json.Valid(e.Debug) {
			resp.Debug = json.RawMessage(e.Debug)
		} else {
			resp.Debug = string(e.Debug)
		}
	}
	return resp
}

// Classifier 错误分类策略，无状态
type Classifier struct {
	Name         string // 上游名称，如 "You.com"
	AuthOverride bool   // 401/403 使用固定文案
}

// Classify 把处理链路上的任意错误映射为 ProxyError
func (c Classifier) Classify(err error) *ProxyError {
	var (
		pe         *ProxyError
		httpErr    *upstream.HTTPError
		timeoutErr *upstream.TimeoutError
		netErr     *upstream.NetworkError
	)

	switch {
	case errors.As(err, &pe):
		return pe
	case errors.Is(err, upstream.ErrMissingAPIKey):
		return c.NotConfigured()
	case errors.Is(err, ErrInvalidJSON):
		return &ProxyError{Status: http.StatusBadRequest, Message: "Invalid JSON in request body"}
	case errors.Is(err, ErrNoPrompt):
		return &ProxyError{Status: http.StatusBadRequest, Message: "No prompt or messages provided"}
	case errors.As(err, &httpErr):
		return c.fromHTTPError(httpErr)
	case errors.As(err, &timeoutErr):
		return &ProxyError{Status: http.StatusGatewayTimeout, Message: c.Name + " API request timeout"}
	case errors.As(err, &netErr):
		return &ProxyError{Status: http.StatusInternalServerError, Message: netErr.Error()}
	default:
		return &ProxyError{Status: http.StatusInternalServerError, Message: err.Error()}
	}
}

func (c Classifier) fromHTTPError(e *upstream.HTTPError) *ProxyError {
	status := e.StatusCode
	// 3xx 等非错误状态码不透传
	if status < 400 {
		status = http.StatusBadGateway
	}

	var message string
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		message = c.Name + " API rate limit exceeded"
	case c.AuthOverride && (e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden):
		message = "Authentication failed with " + c.Name + " API"
	default:
		message = e.Message()
		if message == "" {
			message = e.StatusText
		}
		if message == "" {
			message = c.Name + " API error"
		}
	}

	return &ProxyError{Status: status, Message: message, Debug: e.Body}
}

// NotConfigured 缺少 API key
func (c Classifier) NotConfigured() *ProxyError {
	return &ProxyError{Status: http.StatusInternalServerError, Message: c.Name + " API key not configured"}
}

// NoCompletion 上游成功但没有可识别的补全字段
func (c Classifier) NoCompletion(body []byte) *ProxyError {
	return &ProxyError{
		Status:  http.StatusBadGateway,
		Message: "No completion returned from " + c.Name + " API",
		Debug:   body,
	}
}
