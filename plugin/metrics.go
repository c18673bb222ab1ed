package plugin

import (
	"encoding/json"

	"github.com/bagaking/youcom-proxy/openai"
	"github.com/bagaking/youcom-proxy/telemetry"
)

// MetricsPlugin 指标收集：按模型累计估算的 token 数
type MetricsPlugin struct {
	metrics *telemetry.Metrics
}

func NewMetricsPlugin(m *telemetry.Metrics) *MetricsPlugin {
	return &MetricsPlugin{metrics: m}
}

func (p *MetricsPlugin) BeforeRequest(*openai.ChatRequest) error { return nil }

func (p *MetricsPlugin) AfterResponse(_ *openai.ChatRequest, resp *openai.ChatCompletion) error {
	p.metrics.AddTokens(resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return nil
}

func (p *MetricsPlugin) Configure(json.RawMessage) error { return nil }
