package service

import (
	"context"
	"errors"

	"colorix-agent-go/internal/config"
	"colorix-agent-go/internal/repository"
	"colorix-agent-go/pkg/kafka"
	"colorix-agent-go/pkg/tasks"
	"colorix-agent-go/pkg/token"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials 表示管理端登录凭据不正确。
var ErrInvalidCredentials = errors.New("invalid username or password")

// Stats 是管理端看到的运行统计。
type Stats struct {
	Sessions    int64 `json:"sessions"`
	Messages    int64 `json:"messages"`
	Escalations int64 `json:"escalations"`
	Chunks      int64 `json:"chunks"`
}

// TokenPair 是一次登录签发的令牌对。
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AdminService 提供管理端能力：登录、运行统计、触发知识库摄取。
type AdminService interface {
	Login(username, password string) (*TokenPair, error)
	Stats(ctx context.Context) (*Stats, error)
	// EnqueueIngestion 将摄取任务投递到 Kafka，由消费者异步执行。
	EnqueueIngestion(objectName string, replace bool, requestedBy string) error
}

type adminService struct {
	sessionRepo    repository.SessionRepository
	messageRepo    repository.MessageRepository
	escalationRepo repository.EscalationRepository
	chunkRepo      repository.ChunkRepository
	jwtManager     *token.JWTManager
	adminCfg       config.AdminConfig
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(
	sessionRepo repository.SessionRepository,
	messageRepo repository.MessageRepository,
	escalationRepo repository.EscalationRepository,
	chunkRepo repository.ChunkRepository,
	jwtManager *token.JWTManager,
	adminCfg config.AdminConfig,
) AdminService {
	return &adminService{
		sessionRepo:    sessionRepo,
		messageRepo:    messageRepo,
		escalationRepo: escalationRepo,
		chunkRepo:      chunkRepo,
		jwtManager:     jwtManager,
		adminCfg:       adminCfg,
	}
}

// Login 校验配置中的管理员凭据并签发令牌对。
func (s *adminService) Login(username, password string) (*TokenPair, error) {
	if username != s.adminCfg.Username {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.adminCfg.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	access, err := s.jwtManager.GenerateToken(username, token.RoleAdmin)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwtManager.GenerateRefreshToken(username, token.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Stats 汇总各表的记录数。
func (s *adminService) Stats(ctx context.Context) (*Stats, error) {
	sessions, err := s.sessionRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	messages, err := s.messageRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	escalations, err := s.escalationRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := s.chunkRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Sessions:    sessions,
		Messages:    messages,
		Escalations: escalations,
		Chunks:      chunks,
	}, nil
}

func (s *adminService) EnqueueIngestion(objectName string, replace bool, requestedBy string) error {
	return kafka.ProduceIngestionTask(tasks.IngestionTask{
		ObjectName:  objectName,
		Replace:     replace,
		RequestedBy: requestedBy,
	})
}
