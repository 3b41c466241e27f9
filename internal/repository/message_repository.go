package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"colorix-agent-go/internal/model"

	"gorm.io/gorm"
)

// MessageRepository 定义了对话消息的操作接口。消息写入后不可变。
type MessageRepository interface {
	Insert(ctx context.Context, sessionID, role, content, language string, metadata map[string]interface{}) error
	// FindRecent 返回该会话最近 limit 条消息，按创建时间升序（最旧在前）。
	FindRecent(ctx context.Context, sessionID string, limit int) ([]model.ChatTurn, error)
	Count(ctx context.Context) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建一个新的 MessageRepository 实例。
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Insert(ctx context.Context, sessionID, role, content, language string, metadata map[string]interface{}) error {
	var metaBytes []byte
	if metadata != nil {
		var err error
		metaBytes, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal message metadata: %w", err)
		}
	}

	msg := model.Message{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Language:  language,
		Metadata:  metaBytes,
	}
	if err := r.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// FindRecent 先按时间倒序取 limit 条，再反转为最旧在前。
func (r *messageRepository) FindRecent(ctx context.Context, sessionID string, limit int) ([]model.ChatTurn, error) {
	var msgs []model.Message
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query message history: %w", err)
	}

	turns := make([]model.ChatTurn, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		turns = append(turns, model.ChatTurn{
			Role:     msgs[i].Role,
			Content:  msgs[i].Content,
			Language: msgs[i].Language,
		})
	}
	return turns, nil
}

func (r *messageRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).Count(&n).Error
	return n, err
}
