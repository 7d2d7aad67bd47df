package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/lookup"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LookupHandler 物料校验接口，响应格式与ERP侧约定一致，不使用通用包装
type LookupHandler struct {
	lookup service.MaterialLookup
	logger *zap.Logger
}

// NewLookupHandler 创建物料校验处理器
func NewLookupHandler(l service.MaterialLookup, logger *zap.Logger) *LookupHandler {
	return &LookupHandler{lookup: l, logger: logger}
}

// ValidateWLID 查询物料是否存在
// POST /api/validate-wlid
func (h *LookupHandler) ValidateWLID(c *gin.Context) {
	var req lookup.ValidateRequest
	_ = c.ShouldBindJSON(&req)
	wlid := strings.TrimSpace(req.WLID)
	if wlid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "WO_WLID is required"})
		return
	}

	exists, err := h.lookup.MaterialExists(c.Request.Context(), wlid)
	if errors.Is(err, lookup.ErrUnavailable) {
		h.logger.Warn("material master unavailable", zap.String("wlid", wlid), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database connection failed. Please contact the administrator."})
		return
	}
	if err != nil {
		h.logger.Error("material lookup failed", zap.String("wlid", wlid), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database validation failed. Please contact the administrator."})
		return
	}

	c.JSON(http.StatusOK, lookup.ValidateResponse{Exists: exists, WLID: wlid})
}
