package handler

import (
	"errors"

	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/service"
	"github.com/gin-gonic/gin"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	svc *service.AuthService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 邮箱密码登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Email and password are required")
		return
	}

	user, tokenPair, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		Error(c, 40101, "Invalid email or password")
		return
	case errors.Is(err, service.ErrUserDisabled):
		Forbidden(c, "User is disabled")
		return
	case err != nil:
		InternalError(c, "Failed to login")
		return
	}

	Success(c, gin.H{
		"access_token":  tokenPair.AccessToken,
		"refresh_token": tokenPair.RefreshToken,
		"expires_in":    tokenPair.ExpiresIn,
		"user": gin.H{
			"id":          user.ID,
			"employee_no": user.EmployeeNo,
			"name":        user.Name,
			"email":       user.Email,
			"roles":       []string{user.Role},
		},
	})
}

// RefreshTokenRequest 刷新Token请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshToken 刷新Token
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body")
		return
	}

	tokenPair, err := h.svc.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		Unauthorized(c, "Invalid or expired refresh token")
		return
	}

	Success(c, gin.H{
		"access_token":  tokenPair.AccessToken,
		"refresh_token": tokenPair.RefreshToken,
		"expires_in":    tokenPair.ExpiresIn,
	})
}

// GetCurrentUser 获取当前用户信息
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID := GetUserID(c)
	if userID == "" {
		Unauthorized(c, "User not authenticated")
		return
	}

	user, err := h.svc.Me(c.Request.Context(), userID)
	if err != nil {
		NotFound(c, "User not found")
		return
	}

	Success(c, gin.H{
		"id":            user.ID,
		"employee_no":   user.EmployeeNo,
		"name":          user.Name,
		"email":         user.Email,
		"status":        user.Status,
		"roles":         []string{user.Role},
		"last_login_at": user.LastLoginAt,
		"created_at":    user.CreatedAt,
	})
}
