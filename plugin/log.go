package plugin

import (
	"encoding/json"

	"github.com/bagaking/youcom-proxy/openai"
)

// LogPlugin 日志插件
type LogPlugin struct {
	Logger Logger
}

func (p *LogPlugin) BeforeRequest(req *openai.ChatRequest) error {
	p.Logger.Debug("chat request",
		"model", req.Model,
		"messages", len(req.Messages),
		"prompt_only", !req.MessagesPresent,
	)
	return nil
}

func (p *LogPlugin) AfterResponse(req *openai.ChatRequest, resp *openai.ChatCompletion) error {
	p.Logger.Debug("chat completion",
		"id", resp.ID,
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return nil
}

func (p *LogPlugin) Configure(json.RawMessage) error { return nil }
