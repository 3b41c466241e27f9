package repository

import (
	"context"
	"fmt"

	"colorix-agent-go/internal/model"

	"gorm.io/gorm"
)

// ChunkRepository 定义了知识块入库记录的操作接口（供摄取管道使用）。
type ChunkRepository interface {
	BatchCreate(ctx context.Context, chunks []*model.KnowledgeChunk) error
	// DeleteByObjectName 清理某个源文档既有的分块记录，保证重复摄取幂等。
	DeleteByObjectName(ctx context.Context, objectName string) error
	FindByObjectName(ctx context.Context, objectName string) ([]*model.KnowledgeChunk, error)
	Count(ctx context.Context) (int64, error)
}

type chunkRepository struct {
	db *gorm.DB
}

// NewChunkRepository 创建一个新的 ChunkRepository 实例。
func NewChunkRepository(db *gorm.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

func (r *chunkRepository) BatchCreate(ctx context.Context, chunks []*model.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&chunks).Error; err != nil {
		return fmt.Errorf("failed to batch create knowledge chunks: %w", err)
	}
	return nil
}

func (r *chunkRepository) DeleteByObjectName(ctx context.Context, objectName string) error {
	return r.db.WithContext(ctx).
		Where("object_name = ?", objectName).
		Delete(&model.KnowledgeChunk{}).Error
}

func (r *chunkRepository) FindByObjectName(ctx context.Context, objectName string) ([]*model.KnowledgeChunk, error) {
	var chunks []*model.KnowledgeChunk
	err := r.db.WithContext(ctx).
		Where("object_name = ?", objectName).
		Order("chunk_id ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge chunks: %w", err)
	}
	return chunks, nil
}

func (r *chunkRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.KnowledgeChunk{}).Count(&n).Error
	return n, err
}
