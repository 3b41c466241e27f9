package repository

import (
	"context"
	"fmt"
	"time"

	"colorix-agent-go/internal/model"

	"gorm.io/gorm"
)

// EscalationRepository 定义了人工接管记录的操作接口。
type EscalationRepository interface {
	Create(ctx context.Context, esc *model.Escalation) (uint, error)
	// Resolve 将指定记录置为已处理并写入员工回复。只应被调用一次。
	Resolve(ctx context.Context, id uint, staffResponse string) error
	FindByID(ctx context.Context, id uint) (*model.Escalation, error)
	Count(ctx context.Context) (int64, error)
}

type escalationRepository struct {
	db *gorm.DB
}

// NewEscalationRepository 创建一个新的 EscalationRepository 实例。
func NewEscalationRepository(db *gorm.DB) EscalationRepository {
	return &escalationRepository{db: db}
}

func (r *escalationRepository) Create(ctx context.Context, esc *model.Escalation) (uint, error) {
	if err := r.db.WithContext(ctx).Create(esc).Error; err != nil {
		return 0, fmt.Errorf("failed to create escalation: %w", err)
	}
	return esc.ID, nil
}

func (r *escalationRepository) Resolve(ctx context.Context, id uint, staffResponse string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&model.Escalation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"resolved":       true,
			"staff_response": staffResponse,
			"resolved_at":    &now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to resolve escalation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *escalationRepository) FindByID(ctx context.Context, id uint) (*model.Escalation, error) {
	var esc model.Escalation
	if err := r.db.WithContext(ctx).First(&esc, id).Error; err != nil {
		return nil, err
	}
	return &esc, nil
}

func (r *escalationRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Escalation{}).Count(&n).Error
	return n, err
}
