package proxy

import (
	"encoding/json"
	"fmt"

	"github.com/bagaking/youcom-proxy/config"
	"github.com/bagaking/youcom-proxy/plugin"
)

// New 创建代理并按配置注册内置插件：模型映射、Mock 应答、日志、指标
func New(cfg *config.Config, opts ...Option) (*Proxy, error) {
	p := NewProxy(cfg, opts...)

	// 模型映射插件逐条添加
	modelMapPlugin := plugin.NewModelMapPlugin(p.logger)
	for from, to := range cfg.ModelMap {
		modelMapPlugin.AddMapping(from, to)
	}
	p.RegisterPlugin(modelMapPlugin)

	if cfg.Mock.Enabled && len(cfg.Mock.Rules) > 0 {
		mockPlugin := plugin.NewMockPlugin(p.logger)
		rules := make([]plugin.MockRuleConfig, 0, len(cfg.Mock.Rules))
		for _, r := range cfg.Mock.Rules {
			rules = append(rules, plugin.MockRuleConfig{
				Model:    r.Model,
				Equals:   r.Equals,
				Contains: r.Contains,
				Reply:    r.Reply,
			})
		}
		configBytes, err := json.Marshal(plugin.MockConfig{Rules: rules})
		if err != nil {
			return nil, err
		}
		if err := mockPlugin.Configure(configBytes); err != nil {
			return nil, fmt.Errorf("configure mock: %w", err)
		}
		p.RegisterPlugin(mockPlugin)
	}

	p.RegisterPlugin(&plugin.LogPlugin{Logger: p.logger})
	if p.metrics != nil {
		p.RegisterPlugin(plugin.NewMetricsPlugin(p.metrics))
	}

	return p, nil
}
