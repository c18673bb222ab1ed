// Package upstream 向单个上游文本生成 API 发送一次性请求
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/bagaking/youcom-proxy/config"
)

// maxResponseBytes 上游响应体读取上限
const maxResponseBytes = 8 << 20

// Client 上游客户端，不做重试
type Client struct {
	httpClient *http.Client
	url        string
	apiKey     string
	bodyField  string
	timeout    time.Duration
	tracer     trace.Tracer
}

// Option 客户端选项
type Option func(*Client)

// WithTransport 替换底层 RoundTripper，用于挂载日志传输层
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// WithTracer 设置 tracer
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// New 创建客户端
func New(cfg config.UpstreamConfig, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		bodyField:  cfg.BodyField,
		timeout:    cfg.Timeout,
		tracer:     noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response 上游 2xx 响应
type Response struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Send 发送一次 POST，失败时返回 *HTTPError、*TimeoutError 或 *NetworkError
func (c *Client) Send(ctx context.Context, prompt string) (*Response, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	ctx, span := c.tracer.Start(ctx, "upstream.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("upstream.url", c.url),
			attribute.Int("upstream.prompt_chars", len(prompt)),
		),
	)
	defer span.End()

	payload, err := json.Marshal(map[string]string{c.bodyField: prompt})
	if err != nil {
		return nil, fmt.Errorf("upstream: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("upstream: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(span, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.fail(span, err)
	}
	duration := time.Since(start)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{
			StatusCode: resp.StatusCode,
			StatusText: reasonPhrase(resp),
			Body:       body,
		}
		span.SetStatus(codes.Error, httpErr.StatusText)
		return nil, httpErr
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Duration:   duration,
	}, nil
}

func (c *Client) fail(span trace.Span, err error) error {
	var classified error
	if isTimeout(err) {
		classified = &TimeoutError{Timeout: c.timeout, Cause: err}
	} else {
		classified = &NetworkError{Cause: err}
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, classified.Error())
	return classified
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
