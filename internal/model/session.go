// Package model 包含了应用的数据模型定义。
package model

import (
	"encoding/json"
	"time"
)

// Session 代表一个 WhatsApp 会话，以渠道号码派生的 session_id 为主键。
// 每轮对话结束后做 upsert（last-write-wins），从不删除。
type Session struct {
	SessionID   string          `gorm:"primaryKey;type:varchar(64);column:session_id" json:"sessionId"`
	PhoneNumber string          `gorm:"type:varchar(32);not null;index" json:"phoneNumber"`
	Language    string          `gorm:"type:varchar(8);not null;default:en" json:"language"`
	State       json.RawMessage `gorm:"type:json" json:"state"`
	LastActive  time.Time       `gorm:"autoUpdateTime" json:"lastActive"`
}

func (Session) TableName() string {
	return "sessions"
}

// SessionState 是 Session.State 中保存的最近一轮对话状态。
type SessionState struct {
	LastMessage  string `json:"last_message"`
	LastResponse string `json:"last_response"`
}
