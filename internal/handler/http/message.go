package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"collaborative-ideation/internal/service"
)

// MessageHandler 封装了消息发布、历史读取和建议读取的 HTTP 处理逻辑。
// 三个接口都要求调用方是房间成员。
type MessageHandler struct {
	chatService       *service.ChatService
	membershipService *service.MembershipService
}

// NewMessageHandler 创建 MessageHandler 实例。
func NewMessageHandler(chatService *service.ChatService, membershipService *service.MembershipService) *MessageHandler {
	if chatService == nil || membershipService == nil {
		panic("services cannot be nil for MessageHandler")
	}
	return &MessageHandler{chatService: chatService, membershipService: membershipService}
}

// PostMessageRequest 定义发布消息请求的结构体。
type PostMessageRequest struct {
	Body string `json:"body" binding:"required,min=1,max=4000"`
}

// PostMessage 处理成员发布消息的请求。
// 完整的发布路径：分配序号、落库、广播、助手节奏检查。
func (h *MessageHandler) PostMessage(c *gin.Context) {
	userID, ok := AuthenticatedUserID(c)
	if !ok {
		return
	}
	roomID, ok := pathRoomID(c)
	if !ok {
		return
	}
	if !h.requireMember(c, roomID, userID) {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.PostMessage: invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: body is required")
		return
	}

	msg, err := h.chatService.PostMessage(c.Request.Context(), roomID, &userID, req.Body, false)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, gin.H{"message": msg})
}

// ListMessages 返回房间最近的历史消息，按序号升序。
// limit 查询参数可选，默认与订阅回填条数一致。
func (h *MessageHandler) ListMessages(c *gin.Context) {
	userID, ok := AuthenticatedUserID(c)
	if !ok {
		return
	}
	roomID, ok := pathRoomID(c)
	if !ok {
		return
	}
	if !h.requireMember(c, roomID, userID) {
		return
	}

	limit := service.BackfillLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			ErrorResponse(c, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	msgs, err := h.chatService.Backfill(c.Request.Context(), roomID, limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"messages": msgs})
}

// ListSuggestions 返回房间最近的助手建议，最多展示上限条。
func (h *MessageHandler) ListSuggestions(c *gin.Context) {
	userID, ok := AuthenticatedUserID(c)
	if !ok {
		return
	}
	roomID, ok := pathRoomID(c)
	if !ok {
		return
	}
	if !h.requireMember(c, roomID, userID) {
		return
	}

	suggestions, err := h.chatService.ListSuggestions(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"suggestions": suggestions})
}

// requireMember 校验成员身份，非成员时写出 403 并返回 false。
func (h *MessageHandler) requireMember(c *gin.Context, roomID, userID uint) bool {
	isMember, err := h.membershipService.IsMember(c.Request.Context(), roomID, userID)
	if err != nil {
		HandleServiceError(c, err)
		return false
	}
	if !isMember {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID}).
			Warn("Room access denied, user is not a member")
		ErrorResponse(c, http.StatusForbidden, service.ErrNotMember.Error())
		return false
	}
	return true
}
