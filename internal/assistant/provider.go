// Package assistant 章节笔记本的 AI 助手：只依据该章节已发布的笔记回答问题。
package assistant

import (
	"context"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Document 提供给模型的参考笔记
type Document struct {
	Title   string
	Content string
}

type CompletionRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
	// Documents 同时写入系统提示词，离线实现直接从中抽取答案
	Documents []Document
}

type CompletionResponse struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
}

type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// lastUserMessage 取最后一条用户消息作为问题
func lastUserMessage(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	return ""
}
