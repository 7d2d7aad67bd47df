package handler

import (
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/service"
	"github.com/gin-gonic/gin"
)

// DepartmentHandler 部门字典
type DepartmentHandler struct {
	svc *service.DepartmentService
}

func NewDepartmentHandler(svc *service.DepartmentService) *DepartmentHandler {
	return &DepartmentHandler{svc: svc}
}

// List GET /api/v1/departments
func (h *DepartmentHandler) List(c *gin.Context) {
	Success(c, gin.H{"items": h.svc.List()})
}
