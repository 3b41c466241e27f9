package model

import "time"

// Escalation 记录一次人工接管请求。
// 创建后仅会被员工回复处理器更新一次（置为 resolved）。
type Escalation struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	SessionID      string     `gorm:"type:varchar(64);not null;index" json:"sessionId"`
	CustomerNumber string     `gorm:"type:varchar(32);not null" json:"customerNumber"`
	TriggerReason  string     `gorm:"type:varchar(64);not null" json:"triggerReason"`
	LastUserMsg    string     `gorm:"type:text" json:"lastUserMsg"`
	BotDraft       string     `gorm:"type:text" json:"botDraft"`
	Resolved       bool       `gorm:"not null;default:false" json:"resolved"`
	StaffResponse  string     `gorm:"type:text" json:"staffResponse"`
	ResolvedAt     *time.Time `json:"resolvedAt"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"createdAt"`
}

func (Escalation) TableName() string {
	return "escalations"
}

// TriggerReasonHuman 是用户主动请求人工时记录的触发原因。
const TriggerReasonHuman = "user_requested_human"
