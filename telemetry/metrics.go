package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LLMBuckets 覆盖 100ms 到 60s 的上游延迟
var LLMBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

// 上游调用结果标签
const (
	OutcomeSuccess      = "success"
	OutcomeHTTPError    = "http_error"
	OutcomeTimeout      = "timeout"
	OutcomeNetworkError = "network_error"
	OutcomeNoCompletion = "no_completion"
	OutcomeMock         = "mock"
)

// Metrics 代理的 Prometheus 指标，使用独立 registry 以便测试中多次创建
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  prometheus.Histogram
	TokensTotal      *prometheus.CounterVec
}

// NewMetrics 创建并注册所有指标
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "youcom_proxy_requests_total",
				Help: "Inbound requests by route, method and status class",
			},
			[]string{"route", "method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "youcom_proxy_request_duration_seconds",
				Help:    "Inbound request duration",
				Buckets: LLMBuckets,
			},
			[]string{"route"},
		),
		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "youcom_proxy_upstream_requests_total",
				Help: "Upstream calls by outcome",
			},
			[]string{"outcome"},
		),
		UpstreamLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "youcom_proxy_upstream_latency_seconds",
				Help:    "Upstream call latency",
				Buckets: LLMBuckets,
			},
		),
		TokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "youcom_proxy_tokens_total",
				Help: "Estimated tokens by model and direction",
			},
			[]string{"model", "direction"},
		),
	}
	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.UpstreamRequests,
		m.UpstreamLatency,
		m.TokensTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveUpstream 记录一次上游调用
func (m *Metrics) ObserveUpstream(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(outcome).Inc()
	if outcome != OutcomeMock {
		m.UpstreamLatency.Observe(d.Seconds())
	}
}

// AddTokens 累加估算的 token 数
func (m *Metrics) AddTokens(model string, prompt, completion int) {
	if m == nil {
		return
	}
	m.TokensTotal.WithLabelValues(model, "prompt").Add(float64(prompt))
	m.TokensTotal.WithLabelValues(model, "completion").Add(float64(completion))
}

// Middleware gin 中间件，记录请求数量与耗时
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status()/100) + "xx"
		m.RequestsTotal.WithLabelValues(route, c.Request.Method, status).Inc()
		m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// Handler 暴露 /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// Registry 返回底层 registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
