package proxy

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/bagaking/youcom-proxy/openai"
)

var (
	// ErrInvalidJSON 入站请求体不是合法 JSON
	ErrInvalidJSON = errors.New("invalid JSON in request body")
	// ErrNoPrompt 既没有 messages 也没有 prompt
	ErrNoPrompt = errors.New("no prompt or messages provided")
)

// assistantMarker 追加在 messages 渲染结果末尾
const assistantMarker = "\nassistant:"

// DecodeChatRequest 解析入站请求体
func DecodeChatRequest(body []byte) (*openai.ChatRequest, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}

	root := gjson.ParseBytes(body)
	req := &openai.ChatRequest{}

	if model := root.Get("model"); model.Type == gjson.String {
		req.Model = model.Str
	}

	// null、""、false、0 与缺失等价
	if messages := root.Get("messages"); truthy(messages) {
		req.MessagesPresent = true
		if messages.IsArray() {
			req.MessagesIsList = true
			req.Messages = make([]openai.ChatMessage, 0, len(messages.Array()))
			for _, m := range messages.Array() {
				req.Messages = append(req.Messages, openai.ChatMessage{
					Role:    m.Get("role").String(),
					Content: flattenContent(m.Get("content")),
				})
			}
		}
	}

	if prompt := root.Get("prompt"); prompt.Type == gjson.String {
		req.PromptPresent = true
		req.Prompt = prompt.Str
	}

	return req, nil
}

// truthy 按 JSON 值的真假判断字段是否给出，空数组和空对象算给出
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return v.Str != ""
	case gjson.Number:
		return v.Num != 0
	default:
		return v.Exists()
	}
}

// flattenContent 兼容 OpenAI 多段内容，只取 text 部分并以空格拼接
func flattenContent(content gjson.Result) string {
	if !content.IsArray() {
		return content.String()
	}
	var parts []string
	for _, part := range content.Array() {
		if part.Type == gjson.String {
			parts = append(parts, part.Str)
			continue
		}
		if part.Get("type").String() == "text" {
			parts = append(parts, part.Get("text").String())
		}
	}
	return strings.Join(parts, " ")
}

// NormalizePrompt 把入站请求转换成发往上游的单个 prompt
//
// messages 优先；messages 存在但不是数组时得到空 prompt 而不是报错。
func NormalizePrompt(req *openai.ChatRequest) (string, error) {
	switch {
	case req.MessagesPresent && req.MessagesIsList:
		return MessagesToPrompt(req.Messages), nil
	case req.MessagesPresent:
		return "", nil
	case req.PromptPresent:
		return req.Prompt, nil
	default:
		return "", ErrNoPrompt
	}
}

// MessagesToPrompt 渲染为 "<role>: <content>" 行，末尾追加 "\nassistant:"
func MessagesToPrompt(messages []openai.ChatMessage) string {
	lines := make([]string, len(messages))
	for i, m := range messages {
		lines[i] = m.Role + ": " + m.Content
	}
	return strings.Join(lines, "\n") + assistantMarker
}
