package plugin

import (
	"encoding/json"

	"github.com/bagaking/youcom-proxy/openai"
)

// Plugin 接口定义，挂在翻译链路的上游调用前后
type Plugin interface {
	BeforeRequest(req *openai.ChatRequest) error
	AfterResponse(req *openai.ChatRequest, resp *openai.ChatCompletion) error
	Configure(json.RawMessage) error
}

// Shortcut 可以不经上游、直接给出补全文本的插件
type Shortcut interface {
	Shortcut(req *openai.ChatRequest) (completion string, ok bool)
}

// Logger 日志接口定义
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}
