package handler

import (
	"errors"
	"net/http"

	"colorix-agent-go/internal/service"
	"colorix-agent-go/pkg/log"
	"colorix-agent-go/pkg/whatsapp"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// StaffHandler 负责员工回复接管请求的接口。
type StaffHandler struct {
	escalationService service.EscalationService
	sender            whatsapp.Sender
}

// NewStaffHandler 创建一个新的 StaffHandler 实例。
func NewStaffHandler(escalationService service.EscalationService, sender whatsapp.Sender) *StaffHandler {
	return &StaffHandler{
		escalationService: escalationService,
		sender:            sender,
	}
}

// ReplyRequest 定义了员工回复接口的请求体结构。
type ReplyRequest struct {
	EscalationID  uint   `json:"escalationId" binding:"required"`
	StaffResponse string `json:"staffResponse" binding:"required"`
}

// Reply 将接管记录置为已处理，并把员工回复直接转发给客户。
func (h *StaffHandler) Reply(c *gin.Context) {
	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：escalationId 与 staffResponse 不能为空"})
		return
	}

	customerNumber, err := h.escalationService.Resolve(c.Request.Context(), req.EscalationID, req.StaffResponse)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "接管记录不存在"})
			return
		}
		log.Errorf("[Staff] 处理接管记录失败, id: %d: %v", req.EscalationID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "处理接管记录失败"})
		return
	}

	if err := h.sender.Send(c.Request.Context(), "+"+customerNumber, req.StaffResponse); err != nil {
		log.Errorf("[Staff] 转发员工回复失败, id: %d: %v", req.EscalationID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "记录已处理，但转发给客户失败"})
		return
	}

	log.Infof("[Staff] 接管 #%d 已处理并回复客户", req.EscalationID)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "resolved",
		"data":    gin.H{"escalationId": req.EscalationID},
	})
}
