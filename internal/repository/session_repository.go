// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"colorix-agent-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionRepository 定义了会话状态的操作接口。
type SessionRepository interface {
	Get(ctx context.Context, sessionID string) (*model.Session, error)
	// Upsert 以 last-write-wins 语义写入会话的最近一轮状态。
	// 并发后台保存之间不做版本校验，最终状态归属最后完成的写入。
	Upsert(ctx context.Context, sessionID, phoneNumber, language string, state model.SessionState) error
	Count(ctx context.Context) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

// Get 按 sessionID 查询会话，不存在时返回 gorm.ErrRecordNotFound。
func (r *sessionRepository) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	var s model.Session
	if err := r.db.WithContext(ctx).First(&s, "session_id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert 插入或整体覆盖会话记录。
func (r *sessionRepository) Upsert(ctx context.Context, sessionID, phoneNumber, language string, state model.SessionState) error {
	stateBytes, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	s := model.Session{
		SessionID:   sessionID,
		PhoneNumber: phoneNumber,
		Language:    language,
		State:       stateBytes,
		LastActive:  time.Now(),
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"phone_number", "language", "state", "last_active"}),
	}).Create(&s).Error
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

func (r *sessionRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Session{}).Count(&n).Error
	return n, err
}
