package plugin

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/bagaking/youcom-proxy/openai"
)

// MockRule 定义匹配规则
type MockRule struct {
	// 匹配条件
	Condition func(req *openai.ChatRequest) bool
	// 生成回复文本
	Reply func(req *openai.ChatRequest) string
}

// MockRuleConfig 可序列化的规则，最后一条用户消息等于 Equals 或包含 Contains 时命中
type MockRuleConfig struct {
	Model    string `json:"model,omitempty"`
	Equals   string `json:"equals,omitempty"`
	Contains string `json:"contains,omitempty"`
	Reply    string `json:"reply"`
}

// MockConfig Mock 插件配置
type MockConfig struct {
	Rules []MockRuleConfig `json:"rules"`
}

// MockPlugin Mock插件，命中规则时直接应答，不调用上游。
// 编辑器（如 Cursor）添加模型时会发送固定的测试消息，用它避免消耗上游额度。
type MockPlugin struct {
	mu     sync.RWMutex
	rules  []MockRule
	logger Logger
}

// NewMockPlugin 创建新的Mock插件
func NewMockPlugin(logger Logger) *MockPlugin {
	return &MockPlugin{
		logger: logger,
	}
}

// AddRule 添加匹配规则
func (p *MockPlugin) AddRule(condition func(req *openai.ChatRequest) bool, reply func(req *openai.ChatRequest) string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules = append(p.rules, MockRule{
		Condition: condition,
		Reply:     reply,
	})
}

// Configure 从 JSON 配置追加规则
func (p *MockPlugin) Configure(config json.RawMessage) error {
	var cfg MockConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return err
	}
	for i, rc := range cfg.Rules {
		rc := rc
		if rc.Equals == "" && rc.Contains == "" {
			return fmt.Errorf("mock rule %d: equals or contains is required", i)
		}
		p.AddRule(
			func(req *openai.ChatRequest) bool {
				if rc.Model != "" && req.Model != rc.Model {
					return false
				}
				last := req.LastUserContent()
				if rc.Equals != "" && last == rc.Equals {
					return true
				}
				return rc.Contains != "" && strings.Contains(last, rc.Contains)
			},
			func(*openai.ChatRequest) string { return rc.Reply },
		)
	}
	return nil
}

// Shortcut 检查是否匹配任何规则
func (p *MockPlugin) Shortcut(req *openai.ChatRequest) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, rule := range p.rules {
		if rule.Condition(req) {
			p.logger.Info("mock: matched request, replying locally", "model", req.Model)
			return rule.Reply(req), true
		}
	}
	return "", false
}

func (p *MockPlugin) BeforeRequest(*openai.ChatRequest) error { return nil }

func (p *MockPlugin) AfterResponse(*openai.ChatRequest, *openai.ChatCompletion) error { return nil }
