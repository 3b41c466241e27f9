package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// 已处理消息标记的保留时长，Twilio 重试窗口远小于该值。
const dedupTTL = 24 * time.Hour

// DedupRepository 定义了入站消息去重的操作接口。
// Twilio 对未及时响应的 webhook 会重投，同一 MessageSid 只应触发一次处理。
type DedupRepository interface {
	// MarkSeen 标记一个消息 ID，返回 true 表示首次出现。
	MarkSeen(ctx context.Context, messageSID string) (bool, error)
}

type redisDedupRepository struct {
	redisClient *redis.Client
}

// NewDedupRepository 创建一个新的 DedupRepository 实例。
func NewDedupRepository(redisClient *redis.Client) DedupRepository {
	return &redisDedupRepository{redisClient: redisClient}
}

func (r *redisDedupRepository) MarkSeen(ctx context.Context, messageSID string) (bool, error) {
	key := fmt.Sprintf("webhook:seen:%s", messageSID)
	first, err := r.redisClient.SetNX(ctx, key, 1, dedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message sid: %w", err)
	}
	return first, nil
}
