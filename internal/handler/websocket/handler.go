// Package websocket 处理 WebSocket 升级请求并把客户端注册到 Hub。
package websocket

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"collaborative-ideation/internal/hub"
	"collaborative-ideation/internal/service"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册。
type WebSocketHandler struct {
	upgrader          websocket.Upgrader
	hub               *hub.Hub
	membershipService *service.MembershipService
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
func NewWebSocketHandler(h *hub.Hub, membershipService *service.MembershipService) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if membershipService == nil {
		panic("MembershipService cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// TODO: 生产环境应配置具体的允许来源
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return &WebSocketHandler{
		upgrader:          upgrader,
		hub:               h,
		membershipService: membershipService,
	}
}

// HandleRoomConnection 处理房间订阅连接。
// URL 格式: /ws/rooms/:roomId。只有房间成员可以订阅。
func (h *WebSocketHandler) HandleRoomConnection(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}
	logCtx := logrus.WithField("user_id", userID)

	roomIDStr := c.Param("roomId")
	roomID64, err := strconv.ParseUint(roomIDStr, 10, 32)
	if err != nil || roomID64 == 0 {
		logCtx.Warnf("WS Handler: invalid room ID format: %s", roomIDStr)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room ID format"})
		return
	}
	roomID := uint(roomID64)
	logCtx = logCtx.WithField("room_id", roomID)

	// 升级前检查成员身份，拒绝时还能返回普通 HTTP 错误
	isMember, err := h.membershipService.IsMember(c.Request.Context(), roomID, userID)
	if err != nil {
		logCtx.WithError(err).Error("WS Handler: membership check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate membership"})
		return
	}
	if !isMember {
		logCtx.Warn("WS Handler: subscription rejected, user is not a member")
		c.JSON(http.StatusForbidden, gin.H{"error": "User is not a member of this room"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写出了 HTTP 错误响应
		logCtx.WithError(err).Error("WS Handler: failed to upgrade connection")
		return
	}
	logCtx.Info("WS Handler: connection upgraded to WebSocket")

	client := hub.NewClient(h.hub, conn, roomID, userID)
	h.register(client, logCtx)
}

// HandleLobbyConnection 处理大厅订阅连接。
// 大厅流只推送房间列表失效事件，任何已认证用户都可以订阅。
func (h *WebSocketHandler) HandleLobbyConnection(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "lobby": true})

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logCtx.WithError(err).Error("WS Handler: failed to upgrade lobby connection")
		return
	}
	logCtx.Info("WS Handler: lobby connection upgraded to WebSocket")

	client := hub.NewLobbyClient(h.hub, conn, userID)
	h.register(client, logCtx)
}

// register 把客户端注册请求排入 Hub 队列并启动读写泵。
func (h *WebSocketHandler) register(client *hub.Client, logCtx *logrus.Entry) {
	registerMsg := hub.HubMessage{Type: "register", Client: client}
	if !h.hub.QueueMessage(registerMsg) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		client.CloseConn()
		return
	}
	client.Run()
	logCtx.Info("WS Handler: client registered, read/write pumps started")
}

// authenticatedUserID 从 Gin 上下文取出认证中间件放入的用户 ID。
func authenticatedUserID(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get("user_id")
	if !exists {
		logrus.Warn("WS Handler: user ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	if !ok {
		logrus.Error("WS Handler: user ID in context is not uint")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return 0, false
	}
	return userID, true
}
