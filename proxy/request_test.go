package proxy

import (
	"errors"
	"testing"
)

func TestNormalizePrompt(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{
			name: "single user message",
			body: `{"messages":[{"role":"user","content":"What is 2+2?"}]}`,
			want: "user: What is 2+2?\nassistant:",
		},
		{
			name: "multi turn",
			body: `{"messages":[{"role":"system","content":"Be brief"},{"role":"user","content":"Hi"},{"role":"assistant","content":"Hello"},{"role":"user","content":"Bye"}]}`,
			want: "system: Be brief\nuser: Hi\nassistant: Hello\nuser: Bye\nassistant:",
		},
		{
			name: "messages take precedence over prompt",
			body: `{"messages":[{"role":"user","content":"a"}],"prompt":"b"}`,
			want: "user: a\nassistant:",
		},
		{
			name: "empty messages list",
			body: `{"messages":[]}`,
			want: "\nassistant:",
		},
		{
			name: "messages not a list",
			body: `{"messages":"hello"}`,
			want: "",
		},
		{
			name: "empty string messages fall back to prompt",
			body: `{"messages":"","prompt":"hello"}`,
			want: "hello",
		},
		{
			name: "false messages fall back to prompt",
			body: `{"messages":false,"prompt":"hello"}`,
			want: "hello",
		},
		{
			name: "zero messages fall back to prompt",
			body: `{"messages":0,"prompt":"hello"}`,
			want: "hello",
		},
		{
			name: "object messages render empty",
			body: `{"messages":{},"prompt":"hello"}`,
			want: "",
		},
		{
			name:    "empty string messages without prompt",
			body:    `{"messages":""}`,
			wantErr: ErrNoPrompt,
		},
		{
			name: "null messages fall back to prompt",
			body: `{"messages":null,"prompt":"Hello"}`,
			want: "Hello",
		},
		{
			name: "prompt only",
			body: `{"prompt":"Hello"}`,
			want: "Hello",
		},
		{
			name: "empty prompt is still a prompt",
			body: `{"prompt":""}`,
			want: "",
		},
		{
			name: "content parts are flattened",
			body: `{"messages":[{"role":"user","content":[{"type":"text","text":"look"},{"type":"image_url","image_url":{"url":"x"}},{"type":"text","text":"here"}]}]}`,
			want: "user: look here\nassistant:",
		},
		{
			name:    "neither field",
			body:    `{"model":"gpt-4"}`,
			wantErr: ErrNoPrompt,
		},
		{
			name:    "non-string prompt",
			body:    `{"prompt":42}`,
			wantErr: ErrNoPrompt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeChatRequest([]byte(tt.body))
			if err != nil {
				t.Fatalf("DecodeChatRequest: %v", err)
			}
			got, err := NormalizePrompt(req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizePrompt: %v", err)
			}
			if got != tt.want {
				t.Errorf("prompt = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeChatRequestInvalidJSON(t *testing.T) {
	for _, body := range []string{``, `{`, `not json`, `{"prompt":}`} {
		if _, err := DecodeChatRequest([]byte(body)); !errors.Is(err, ErrInvalidJSON) {
			t.Errorf("DecodeChatRequest(%q) err = %v, want ErrInvalidJSON", body, err)
		}
	}
}

func TestDecodeChatRequestModel(t *testing.T) {
	req, err := DecodeChatRequest([]byte(`{"model":"gpt-4o","prompt":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	if req.Model != "gpt-4o" {
		t.Errorf("Model = %q, want gpt-4o", req.Model)
	}
}
