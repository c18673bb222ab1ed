// Package config 加载代理配置：默认值 -> YAML 文件 -> 环境变量 -> 校验
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config 配置结构
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Upstream   UpstreamConfig    `yaml:"upstream"`
	Completion CompletionConfig  `yaml:"completion"`
	Errors     ErrorsConfig      `yaml:"errors"`
	Models     []ModelConfig     `yaml:"models"`    // /v1/models 返回的模型列表
	ModelMap   map[string]string `yaml:"model_map"` // 入站模型名称映射
	Mock       MockConfig        `yaml:"mock"`
	Logging    LoggingConfig     `yaml:"logging"`
	Metrics    MetricsConfig     `yaml:"metrics"`
	Tracing    TracingConfig     `yaml:"tracing"`
}

// ServerConfig 监听与路由
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ProxyPaths      []string      `yaml:"proxy_paths"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ListenAddr 监听地址
func (s ServerConfig) ListenAddr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// UpstreamConfig 上游服务
type UpstreamConfig struct {
	Name      string        `yaml:"name"` // 出现在错误信息里，如 "You.com"
	URL       string        `yaml:"url"`
	APIKey    string        `yaml:"api_key"`
	Timeout   time.Duration `yaml:"timeout"`
	BodyField string        `yaml:"body_field"` // 请求体里放 prompt 的字段，"query" 或 "prompt"
}

// CompletionConfig 响应归一化策略
type CompletionConfig struct {
	ProbeFields     []string `yaml:"probe_fields"`
	FallbackRawBody bool     `yaml:"fallback_raw_body"`
	DefaultModel    string   `yaml:"default_model"`
	IDPrefix        string   `yaml:"id_prefix"`
}

// ErrorsConfig 错误分类策略
type ErrorsConfig struct {
	AuthOverride bool `yaml:"auth_override"` // 401/403 使用固定的认证失败文案
	IncludeDebug bool `yaml:"include_debug"` // 错误体中附带上游原始响应
}

// ModelConfig 模型条目
type ModelConfig struct {
	ID      string `yaml:"id"`
	OwnedBy string `yaml:"owned_by"`
}

// MockConfig 本地直接应答规则，用于编辑器的连通性测试
type MockConfig struct {
	Enabled bool       `yaml:"enabled"`
	Rules   []MockRule `yaml:"rules"`
}

// MockRule 最后一条用户消息等于 Equals 或包含 Contains 时直接回复 Reply
type MockRule struct {
	Model    string `yaml:"model"`
	Equals   string `yaml:"equals"`
	Contains string `yaml:"contains"`
	Reply    string `yaml:"reply"`
}

// LoggingConfig 日志
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // json, text
	File       string `yaml:"file"`   // 为空时只输出到 stdout
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// MetricsConfig Prometheus 指标
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig OpenTelemetry 追踪
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	File        string `yaml:"file"` // 为空时写到 stdout
}

// Defaults 返回带默认值的配置
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            3000,
			ProxyPaths:      []string{"/youcom-proxy", "/v1/chat/completions"},
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Upstream: UpstreamConfig{
			Name:      "You.com",
			URL:       "https://api.you.com/smart/agent",
			Timeout:   30 * time.Second,
			BodyField: "query",
		},
		Completion: CompletionConfig{
			ProbeFields:  []string{"message", "answer", "result", "completion"},
			DefaultModel: "youcom-proxy",
			IDPrefix:     "youcom-proxy-",
		},
		Errors: ErrorsConfig{
			AuthOverride: true,
		},
		Models: []ModelConfig{
			{ID: "youcom-proxy", OwnedBy: "organization"},
		},
		ModelMap: map[string]string{},
		Mock: MockConfig{
			Enabled: true,
			Rules: []MockRule{
				{Model: "gpt-4o", Equals: "Testing. Just say hi and nothing else.", Reply: "Hi"},
				{Model: "gpt-4o", Contains: "Test prompt using", Reply: "Hi"},
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			ServiceName: "youcom-proxy",
		},
	}
}

// Validate 校验配置。缺少 API key 不在这里报错，由请求处理时返回 500。
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if len(c.Server.ProxyPaths) == 0 {
		return fmt.Errorf("config: server.proxy_paths must not be empty")
	}
	for _, p := range c.Server.ProxyPaths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("config: proxy path %q must start with /", p)
		}
	}
	if c.Upstream.URL == "" {
		return fmt.Errorf("config: upstream.url is required")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("config: upstream.timeout must be positive, got %s", c.Upstream.Timeout)
	}
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= c.Upstream.Timeout {
		return fmt.Errorf("config: server.write_timeout (%s) must exceed upstream.timeout (%s)", c.Server.WriteTimeout, c.Upstream.Timeout)
	}
	if c.Upstream.BodyField == "" {
		return fmt.Errorf("config: upstream.body_field is required")
	}
	if len(c.Completion.ProbeFields) == 0 {
		return fmt.Errorf("config: completion.probe_fields must not be empty")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("config: logging.format must be json or text, got %q", c.Logging.Format)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("config: metrics.path %q must start with /", c.Metrics.Path)
	}
	for i, r := range c.Mock.Rules {
		if r.Equals == "" && r.Contains == "" {
			return fmt.Errorf("config: mock rule %d needs equals or contains", i)
		}
	}
	return nil
}
