package plugin

import (
	"encoding/json"
	"sync"

	"github.com/bagaking/youcom-proxy/openai"
)

// ModelMapConfig 模型映射插件的配置
type ModelMapConfig struct {
	Mappings map[string]string `json:"mappings"` // 模型名称映射
}

// ModelMapPlugin 模型映射插件，把客户端使用的模型别名改写为响应中的模型名
type ModelMapPlugin struct {
	mu     sync.RWMutex
	config ModelMapConfig
	logger Logger
}

// NewModelMapPlugin 创建新的模型映射插件
func NewModelMapPlugin(logger Logger) *ModelMapPlugin {
	return &ModelMapPlugin{
		config: ModelMapConfig{
			Mappings: make(map[string]string),
		},
		logger: logger,
	}
}

// Configure 配置插件
func (p *ModelMapPlugin) Configure(config json.RawMessage) error {
	var cfg ModelMapConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return err
	}
	if cfg.Mappings == nil {
		cfg.Mappings = make(map[string]string)
	}
	p.mu.Lock()
	p.config = cfg
	p.mu.Unlock()
	return nil
}

// AddMapping 添加模型映射
func (p *ModelMapPlugin) AddMapping(from, to string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.config.Mappings[from] = to
}

func (p *ModelMapPlugin) BeforeRequest(req *openai.ChatRequest) error {
	if req.Model == "" {
		return nil
	}

	p.mu.RLock()
	mapped, exists := p.config.Mappings[req.Model]
	p.mu.RUnlock()

	if exists {
		p.logger.Info("mapping model", "from", req.Model, "to", mapped)
		req.Model = mapped
	}
	return nil
}

func (p *ModelMapPlugin) AfterResponse(*openai.ChatRequest, *openai.ChatCompletion) error {
	return nil
}
