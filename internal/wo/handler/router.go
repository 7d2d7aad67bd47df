package handler

import (
	"net/http"

	"github.com/Tao-Zi-Liu/WoInsert/internal/middleware"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册全部路由
func RegisterRoutes(r *gin.Engine, h *Handlers, jwtSecret string) {
	// 健康检查
	r.GET("/health/live", h.Health.Live)
	r.GET("/health/ready", h.Health.Ready)
	r.GET("/version", h.Health.Version)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": 40400, "message": "Not found"})
	})

	// 远程物料校验接口，无需登录
	r.POST("/api/validate-wlid", h.Lookup.ValidateWLID)

	v1 := r.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		authorized := v1.Group("", middleware.JWTAuth(jwtSecret))
		{
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)
			authorized.GET("/departments", h.Department.List)
			authorized.GET("/sse/events", h.SSE.Stream)

			workOrders := authorized.Group("/work-orders")
			{
				workOrders.GET("", h.WorkOrder.List)
				workOrders.GET("/export", h.WorkOrder.Export)
				workOrders.GET("/template", h.WorkOrder.Template)

				operator := workOrders.Group("", middleware.RequireRole(entity.RoleOperator))
				operator.POST("/batch", h.WorkOrder.SubmitBatch)
				operator.POST("/validate", h.WorkOrder.ValidateBatch)
				operator.POST("/import", h.WorkOrder.Import)
				operator.GET("/ids", h.WorkOrder.NextIDs)
			}
		}
	}
}
