package model

import (
	"encoding/json"
	"time"
)

// 消息角色常量。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 代表一条持久化的对话消息，写入后不可变，按创建时间排序。
type Message struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	SessionID string          `gorm:"type:varchar(64);not null;index" json:"sessionId"`
	Role      string          `gorm:"type:varchar(16);not null" json:"role"`
	Content   string          `gorm:"type:text;not null" json:"content"`
	Language  string          `gorm:"type:varchar(8)" json:"language"`
	Metadata  json.RawMessage `gorm:"type:json" json:"metadata"`
	CreatedAt time.Time       `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}

// ChatTurn 是编排层使用的轻量历史条目（从 Message 投影而来）。
type ChatTurn struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}
