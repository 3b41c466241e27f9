package handler

import (
	"errors"
	"net/http"

	"colorix-agent-go/internal/service"
	"colorix-agent-go/pkg/log"
	"colorix-agent-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责管理端接口：登录、运行统计、触发知识库摄取。
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// LoginRequest 定义了登录 API 的请求体结构。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 处理管理员登录，成功时签发 access/refresh 令牌对。
func (h *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：username 与 password 不能为空"})
		return
	}

	pair, err := h.adminService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			log.Warnf("[Admin] 登录失败, username: %s, ip: %s", req.Username, c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "用户名或密码错误"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "登录失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "login successful",
		"data": gin.H{
			"token":        pair.AccessToken,
			"refreshToken": pair.RefreshToken,
		},
	})
}

// Stats 返回运行统计。
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.adminService.Stats(c.Request.Context())
	if err != nil {
		log.Errorf("[Admin] 查询运行统计失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询运行统计失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    stats,
	})
}

// IngestRequest 定义了触发摄取 API 的请求体结构。
type IngestRequest struct {
	ObjectName string `json:"objectName" binding:"required"`
	Replace    bool   `json:"replace"`
}

// TriggerIngestion 将摄取任务投递到队列，立即返回。
func (h *AdminHandler) TriggerIngestion(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：objectName 不能为空"})
		return
	}

	requestedBy := ""
	if v, exists := c.Get("claims"); exists {
		if claims, ok := v.(*token.StaffClaims); ok {
			requestedBy = claims.Username
		}
	}

	if err := h.adminService.EnqueueIngestion(req.ObjectName, req.Replace, requestedBy); err != nil {
		log.Errorf("[Admin] 投递摄取任务失败, object: %s: %v", req.ObjectName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "投递摄取任务失败"})
		return
	}

	log.Infof("[Admin] 摄取任务已投递, object: %s, replace: %v", req.ObjectName, req.Replace)
	c.JSON(http.StatusAccepted, gin.H{
		"code":    http.StatusAccepted,
		"message": "ingestion enqueued",
		"data":    gin.H{"objectName": req.ObjectName},
	})
}
