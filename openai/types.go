// Package openai 定义代理对外暴露的 OpenAI 兼容协议结构
package openai

// 对象类型与默认值
const (
	ObjectChatCompletion = "chat.completion"
	ObjectModel          = "model"
	ObjectList           = "list"

	RoleAssistant    = "assistant"
	FinishReasonStop = "stop"
	DefaultOwnedBy   = "organization"
)

// ChatMessage 定义聊天消息结构
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest 解析后的入站请求
//
// messages 与 prompt 至少出现一个。MessagesPresent 表示 messages 字段存在且非 null，
// MessagesIsList 表示它确实是数组；非数组的 messages 会被渲染成空 prompt。
type ChatRequest struct {
	Messages        []ChatMessage
	MessagesPresent bool
	MessagesIsList  bool

	Prompt        string
	PromptPresent bool

	Model string
}

type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// Usage 用量估算
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletion 定义响应结构
type ChatCompletion struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   Usage        `json:"usage"`
}

// Content 返回第一个 choice 的文本，没有时返回空串
func (c *ChatCompletion) Content() string {
	if c == nil || len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Message.Content
}

// ErrorResponse 错误响应体，debug 仅在开启诊断时出现
type ErrorResponse struct {
	Error string `json:"error"`
	Debug any    `json:"debug,omitempty"`
}

// ModelInfo 模型信息
type ModelInfo struct {
	ID      string `json:"id"`       // 模型ID
	Object  string `json:"object"`   // 对象类型，固定为 "model"
	Created int64  `json:"created"`  // 创建时间
	OwnedBy string `json:"owned_by"` // 所有者
}

// ModelsResponse models API 的响应格式
type ModelsResponse struct {
	Object string      `json:"object"` // 固定为 "list"
	Data   []ModelInfo `json:"data"`   // 模型列表
}

// LastUserContent 最后一条 user 消息的内容；没有 messages 时返回 prompt
func (r *ChatRequest) LastUserContent() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i].Content
		}
	}
	return r.Prompt
}
