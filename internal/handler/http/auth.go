// Package http 封装 REST 接口的 gin 处理器。
// 处理器只做输入绑定、上下文提取和错误到状态码的映射，业务都在 Service 层。
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"collaborative-ideation/internal/service"
)

// AuthHandler 封装了与用户认证相关的 HTTP 处理逻辑。
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler 创建 AuthHandler 实例。
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterRequest 定义注册请求的结构体。
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6"`
	Email    string `json:"email" binding:"omitempty,email"`
}

// Register 处理用户注册请求。
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.Register: invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	newUser, err := h.authService.Register(c.Request.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		logCtx := logrus.WithFields(logrus.Fields{"username": req.Username, "email": req.Email})
		if errors.Is(err, service.ErrRegistrationFailed) || errors.Is(err, service.ErrValidation) {
			logCtx.WithError(err).Warn("Handler.Register: registration rejected")
			ErrorResponse(c, http.StatusBadRequest, err.Error())
		} else {
			logCtx.WithError(err).Error("Handler.Register: internal error during registration")
			ErrorResponse(c, http.StatusInternalServerError, "Registration failed due to server error")
		}
		return
	}

	logrus.WithField("user_id", newUser.ID).Info("Handler.Register: user registered successfully")
	SuccessResponse(c, http.StatusOK, gin.H{
		"message": "User registered successfully",
		"user_id": newUser.ID,
	})
}

// LoginRequest 定义登录请求的结构体。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 定义登录成功的响应结构体。
type LoginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// Login 处理用户登录请求。
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.Login: invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: username and password required")
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		logCtx := logrus.WithField("username", req.Username)
		if errors.Is(err, service.ErrAuthenticationFailed) {
			logCtx.Warn("Handler.Login: authentication failed")
			ErrorResponse(c, http.StatusUnauthorized, err.Error())
		} else {
			logCtx.WithError(err).Error("Handler.Login: internal error during login")
			ErrorResponse(c, http.StatusInternalServerError, "Login failed due to server error")
		}
		return
	}

	logrus.WithField("username", req.Username).Info("Handler.Login: user logged in successfully")
	SuccessResponse(c, http.StatusOK, LoginResponse{
		Message: "Login successful",
		Token:   token,
	})
}
