package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"collaborative-ideation/internal/service"
)

// RoomHandler 封装了房间创建、列表和加入的 HTTP 处理逻辑。
type RoomHandler struct {
	roomService       *service.RoomService
	membershipService *service.MembershipService
}

// NewRoomHandler 创建 RoomHandler 实例。
func NewRoomHandler(roomService *service.RoomService, membershipService *service.MembershipService) *RoomHandler {
	if roomService == nil || membershipService == nil {
		panic("services cannot be nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService, membershipService: membershipService}
}

// CreateRoomRequest 定义创建房间请求的结构体。
type CreateRoomRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Theme       string `json:"theme" binding:"required,min=1,max=200"`
	Description string `json:"description" binding:"omitempty,max=1000"`
}

// CreateRoomResponse 定义创建房间成功的响应结构体。
// CreatorJoined 为 false 表示房间已创建但创建者自动加入失败，
// 客户端应引导用户走普通加入流程。
type CreateRoomResponse struct {
	Message       string `json:"message"`
	RoomID        uint   `json:"room_id"`
	CreatorJoined bool   `json:"creator_joined"`
}

// CreateRoom 处理创建新房间的请求。
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID, ok := AuthenticatedUserID(c)
	if !ok {
		return
	}
	logCtx := logrus.WithField("user_id", userID)

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logCtx.WithError(err).Warn("Handler.CreateRoom: invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	room, joined, err := h.roomService.CreateRoom(c.Request.Context(), userID, req.Name, req.Theme, req.Description)
	if err != nil {
		logCtx.WithError(err).Error("Handler.CreateRoom: failed to create room")
		HandleServiceError(c, err)
		return
	}

	logCtx.WithFields(logrus.Fields{"room_id": room.ID, "creator_joined": joined}).
		Info("Handler.CreateRoom: room created")
	SuccessResponse(c, http.StatusCreated, CreateRoomResponse{
		Message:       "Room created successfully",
		RoomID:        room.ID,
		CreatorJoined: joined,
	})
}

// ListRooms 返回全部房间及占用人数，按创建时间倒序。
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.roomService.ListRooms(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"rooms": rooms})
}

// JoinRoomResponse 定义加入房间的响应结构体。
type JoinRoomResponse struct {
	Message string `json:"message"`
	RoomID  uint   `json:"room_id"`
	Status  string `json:"status"` // admitted / already_member
}

// JoinRoom 处理用户加入房间的请求。
// 已是成员按成功处理 (200)，满员返回 409，房间不存在返回 404。
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	userID, ok := AuthenticatedUserID(c)
	if !ok {
		return
	}
	roomID, ok := pathRoomID(c)
	if !ok {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID})

	result, err := h.membershipService.JoinRoom(c.Request.Context(), roomID, userID)
	if err != nil {
		logCtx.WithError(err).WithField("result", result).Warn("Handler.JoinRoom: join rejected")
		HandleServiceError(c, err)
		return
	}

	logCtx.WithField("result", result).Info("Handler.JoinRoom: join accepted")
	SuccessResponse(c, http.StatusOK, JoinRoomResponse{
		Message: "Joined room successfully",
		RoomID:  roomID,
		Status:  string(result),
	})
}

// pathRoomID 解析 URL 中的 :roomId 参数。
func pathRoomID(c *gin.Context) (uint, bool) {
	roomIDStr := c.Param("roomId")
	roomID64, err := strconv.ParseUint(roomIDStr, 10, 32)
	if err != nil || roomID64 == 0 {
		logrus.Warnf("Invalid room ID format: %s", roomIDStr)
		ErrorResponse(c, http.StatusBadRequest, "Invalid room ID format")
		return 0, false
	}
	return uint(roomID64), true
}
