package proxy

import (
	"bytes"
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/bagaking/youcom-proxy/openai"
)

// ExtractCompletion 按顺序探测字段（gjson 路径），返回第一个非空字符串值。
// 非字符串值会被跳过；不是合法 JSON 或都未命中时返回空串。
func ExtractCompletion(body []byte, fields []string) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	for _, field := range fields {
		v := gjson.GetBytes(body, field)
		if v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

// rawBodyCompletion 兜底策略：把整个上游响应体压缩后作为补全文本
func rawBodyCompletion(body []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return string(bytes.TrimSpace(body))
	}
	return buf.String()
}

// EstimateTokens 粗略估算：每 4 个字符算 1 个 token，向上取整
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// CompletionBuilder 组装 OpenAI 兼容的补全响应
type CompletionBuilder struct {
	IDPrefix     string
	DefaultModel string
	Now          func() time.Time
}

// Wrap 把 prompt 与补全文本包装成 chat.completion
func (b CompletionBuilder) Wrap(prompt, completion, model string) *openai.ChatCompletion {
	if model == "" {
		model = b.DefaultModel
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}

	promptTokens := EstimateTokens(prompt)
	completionTokens := EstimateTokens(completion)

	return &openai.ChatCompletion{
		ID:      b.IDPrefix + uuid.NewString(),
		Object:  openai.ObjectChatCompletion,
		Created: now().Unix(),
		Model:   model,
		Choices: []openai.ChatChoice{
			{
				Index: 0,
				Message: openai.ChatMessage{
					Role:    openai.RoleAssistant,
					Content: completion,
				},
				FinishReason: openai.FinishReasonStop,
			},
		},
		Usage: openai.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}
}
