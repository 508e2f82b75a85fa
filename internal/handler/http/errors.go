package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"collaborative-ideation/internal/service"
)

// HandleServiceError 把 Service 层的业务错误映射为 HTTP 状态码。
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAuthenticationFailed):
		ErrorResponse(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrRegistrationFailed):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrRoomNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrRoomFull):
		ErrorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNotMember):
		ErrorResponse(c, http.StatusForbidden, err.Error())
	default:
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

// AuthenticatedUserID 从 Gin 上下文取出认证中间件放入的用户 ID。
// 取不到说明中间件没有生效，按未认证处理。
func AuthenticatedUserID(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get("user_id")
	if !exists {
		logrus.Warn("User ID not found in context, auth middleware missing or failed")
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	if !ok {
		logrus.Error("User ID in context is not uint")
		ErrorResponse(c, http.StatusInternalServerError, "Internal server error processing user ID")
		return 0, false
	}
	return userID, true
}
