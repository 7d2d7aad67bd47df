package handler

import (
	"net/http"
	"strconv"

	"github.com/Tao-Zi-Liu/WoInsert/internal/config"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/service"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BuildInfo 版本信息
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
}

// Handlers 处理器集合
type Handlers struct {
	Auth       *AuthHandler
	WorkOrder  *WorkOrderHandler
	Lookup     *LookupHandler
	Department *DepartmentHandler
	SSE        *SSEHandler
	Health     *HealthHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, store service.Store, hub *sse.Hub, cfg *config.Config, build BuildInfo, logger *zap.Logger) *Handlers {
	return &Handlers{
		Auth:       NewAuthHandler(svc.Auth),
		WorkOrder:  NewWorkOrderHandler(svc.Submission, svc.ID, svc.Import, svc.History, cfg.Server.MaxUploadMB<<20, logger.Named("work_order")),
		Lookup:     NewLookupHandler(svc.Lookup, logger.Named("lookup")),
		Department: NewDepartmentHandler(svc.Department),
		SSE:        NewSSEHandler(hub),
		Health:     NewHealthHandler(store, build),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse 列表响应结构
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination 计算总页数
func NewPagination(page, pageSize int, total int64) *Pagination {
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return &Pagination{Page: page, PageSize: pageSize, Total: int(total), TotalPages: pages}
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应，HTTP状态码取业务码的前三位
func Error(c *gin.Context, code int, message string) {
	ErrorWithData(c, code, message, nil)
}

// ErrorWithData 带数据的错误响应
func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = http.StatusInternalServerError
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

// Forbidden 禁止访问响应
func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

// GetUserName 从上下文获取用户名
func GetUserName(c *gin.Context) string {
	return c.GetString("user_name")
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}
