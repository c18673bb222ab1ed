package proxy

import (
	"net/http"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/bagaking/youcom-proxy/telemetry"
)

// Option 代理构造选项
type Option func(*options)

type options struct {
	logger    Logger
	metrics   *telemetry.Metrics
	tracer    trace.Tracer
	transport http.RoundTripper
}

// WithLogger 设置日志
func WithLogger(l Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics 设置 Prometheus 指标，nil 表示不采集
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer 设置追踪器
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithTransport 设置访问上游使用的底层传输层
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

func noopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("youcom-proxy")
}
