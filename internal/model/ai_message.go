package model

import (
	"time"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// AIMessage 章节笔记本中的一条对话，只保存在进程内存
type AIMessage struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Sources   []string    `json:"sources,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
