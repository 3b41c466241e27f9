package handler

import (
	"net/http"

	"colorix-agent-go/internal/service"
	"colorix-agent-go/pkg/log"
	"colorix-agent-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// EscalationFeedHandler 通过 WebSocket 向员工控制台实时推送新的接管请求。
type EscalationFeedHandler struct {
	feed       *service.EscalationFeed
	jwtManager *token.JWTManager
}

// NewEscalationFeedHandler 创建一个新的 EscalationFeedHandler。
func NewEscalationFeedHandler(feed *service.EscalationFeed, jwtManager *token.JWTManager) *EscalationFeedHandler {
	return &EscalationFeedHandler{
		feed:       feed,
		jwtManager: jwtManager,
	}
}

// Handle 处理一个传入的 WebSocket 连接。
// 浏览器的 WebSocket API 不支持自定义请求头，token 放在路径参数里。
func (h *EscalationFeedHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效或已过期的 token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("[EscalationFeed] WebSocket 升级失败: %v", err)
		return
	}

	events := h.feed.Subscribe()
	log.Infof("[EscalationFeed] 员工 %s 已连接", claims.Username)

	done := make(chan struct{})
	// 读协程只用于感知对端关闭。
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		h.feed.Unsubscribe(events)
		conn.Close()
		log.Infof("[EscalationFeed] 员工 %s 已断开", claims.Username)
	}()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				log.Warnf("[EscalationFeed] 推送事件失败: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}
