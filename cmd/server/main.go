// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"colorix-agent-go/internal/config"
	"colorix-agent-go/internal/handler"
	"colorix-agent-go/internal/middleware"
	"colorix-agent-go/internal/pipeline"
	"colorix-agent-go/internal/repository"
	"colorix-agent-go/internal/service"
	"colorix-agent-go/pkg/database"
	"colorix-agent-go/pkg/embedding"
	"colorix-agent-go/pkg/es"
	"colorix-agent-go/pkg/kafka"
	"colorix-agent-go/pkg/llm"
	"colorix-agent-go/pkg/log"
	"colorix-agent-go/pkg/storage"
	"colorix-agent-go/pkg/tika"
	"colorix-agent-go/pkg/token"
	"colorix-agent-go/pkg/whatsapp"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化基础设施
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	sessionRepo := repository.NewSessionRepository(database.DB)
	messageRepo := repository.NewMessageRepository(database.DB)
	escalationRepo := repository.NewEscalationRepository(database.DB)
	chunkRepo := repository.NewChunkRepository(database.DB)
	dedupRepo := repository.NewDedupRepository(database.RDB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	tikaClient := tika.NewClient(cfg.Tika)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	gateway := llm.NewFailoverGateway(
		llm.NewProvider(cfg.LLM.Primary, cfg.LLM.Generation),
		llm.NewProvider(cfg.LLM.Secondary, cfg.LLM.Generation),
		cfg.LLM.DefaultPrimary,
	)
	sender := whatsapp.NewClient(cfg.WhatsApp)
	searcher := es.NewSearcher(es.ESClient, cfg.Elasticsearch.IndexName)

	feed := service.NewEscalationFeed()
	contextService := service.NewContextService(messageRepo, embeddingClient, cfg.Agent.HistoryLimit)
	retrievalService := service.NewRetrievalService(embeddingClient, searcher, gateway)
	escalationService := service.NewEscalationService(escalationRepo, sender, feed, cfg.WhatsApp.StaffNumber, cfg.Agent.ContactPhone)
	agentService := service.NewAgentService(contextService, retrievalService, escalationService, gateway, messageRepo, sessionRepo, cfg.Agent)
	adminService := service.NewAdminService(sessionRepo, messageRepo, escalationRepo, chunkRepo, jwtManager, cfg.Admin)

	// 6. 初始化摄取管道 (Processor) 并启动后台 Kafka 消费者
	processor := pipeline.NewProcessor(
		tikaClient,
		embeddingClient,
		cfg.Elasticsearch,
		cfg.MinIO,
		cfg.Embedding,
		chunkRepo,
	)
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 6.1 初始化导入 knowledge_base 目录：上传到 MinIO 并投递摄取任务（幂等）
	seedCtx, cancelSeed := context.WithCancel(context.Background())
	defer cancelSeed()
	go seedKnowledgeBase(seedCtx, "knowledge_base", cfg.MinIO.BucketName, adminService)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	webhookHandler := handler.NewWebhookHandler(agentService, dedupRepo, sender, cfg.WhatsApp, cfg.Agent)
	staffHandler := handler.NewStaffHandler(escalationService, sender)
	adminHandler := handler.NewAdminHandler(adminService)
	feedHandler := handler.NewEscalationFeedHandler(feed, jwtManager)

	r.GET("/health", func(c *gin.Context) {
		stats, err := adminService.Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "stats": stats})
	})

	r.POST("/webhook/whatsapp", webhookHandler.HandleIncoming)

	apiV1 := r.Group("/api/v1")
	{
		// 管理员登录无需认证
		apiV1.POST("/admin/login", adminHandler.Login)

		// 员工路由组，需要认证
		staff := apiV1.Group("/staff")
		staff.Use(middleware.AuthMiddleware(jwtManager))
		{
			staff.POST("/reply", staffHandler.Reply)
		}

		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin := apiV1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtManager), middleware.AdminAuthMiddleware())
		{
			admin.GET("/stats", adminHandler.Stats)
			admin.POST("/ingest", adminHandler.TriggerIngestion)
		}
	}

	// 接管实时通道 (WebSocket)，token 放在路径参数里
	r.GET("/api/v1/admin/escalations/ws/:token", feedHandler.Handle)

	// 9. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}

// seedKnowledgeBase 扫描本地目录下的知识库文档，上传到 MinIO 并投递摄取任务。
// 任务侧的幂等检查保证重复启动不会重复摄取（除非显式 replace）。
func seedKnowledgeBase(ctx context.Context, dir, bucket string, adminSvc service.AdminService) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("seedKnowledgeBase: 目录 '%s' 不存在或不可用，跳过初始化导入", dir)
		return
	}

	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		objectName := info.Name()
		if _, err := storage.MinioClient.FPutObject(ctx, bucket, objectName, path, minio.PutObjectOptions{}); err != nil {
			log.Warnf("seedKnowledgeBase: 上传到 MinIO 失败: %s, err=%v", path, err)
			return nil
		}

		if err := adminSvc.EnqueueIngestion(objectName, false, "seed"); err != nil {
			log.Warnf("seedKnowledgeBase: 投递摄取任务失败: %s, err=%v", objectName, err)
			return nil
		}
		log.Infof("seedKnowledgeBase: 已上传并投递摄取任务: %s", objectName)
		return nil
	})
	if walkErr != nil {
		log.Warnf("seedKnowledgeBase: 遍历目录发生错误: %v", walkErr)
	}
}
