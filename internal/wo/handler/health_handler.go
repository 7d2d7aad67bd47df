package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/service"
	"github.com/gin-gonic/gin"
)

// HealthHandler 健康检查与版本
type HealthHandler struct {
	store service.Store
	build BuildInfo
}

func NewHealthHandler(store service.Store, build BuildInfo) *HealthHandler {
	return &HealthHandler{store: store, build: build}
}

// Live 进程存活
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready 存储可达
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Version 版本信息
func (h *HealthHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, h.build)
}
