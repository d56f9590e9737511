package model

import (
	"github.com/google/uuid"
)

// NewID 生成新实体的主键（UUIDv4），种子数据保留可读 ID
func NewID() string {
	return uuid.New().String()
}

// Visibility 笔记与提问的可见范围
type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

func (v Visibility) Valid() bool {
	return v == Public || v == Private
}
