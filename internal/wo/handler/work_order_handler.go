package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/service"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WorkOrderHandler 工单批次处理器
type WorkOrderHandler struct {
	submission *service.SubmissionService
	ids        *service.IDService
	imports    *service.ImportService
	history    *service.HistoryService
	maxUpload  int64
	logger     *zap.Logger
}

// NewWorkOrderHandler 创建工单处理器
func NewWorkOrderHandler(submission *service.SubmissionService, ids *service.IDService, imports *service.ImportService, history *service.HistoryService, maxUpload int64, logger *zap.Logger) *WorkOrderHandler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &WorkOrderHandler{
		submission: submission,
		ids:        ids,
		imports:    imports,
		history:    history,
		maxUpload:  maxUpload,
		logger:     logger,
	}
}

// BatchRequest 批次请求
type BatchRequest struct {
	Tasks []entity.Task `json:"tasks"`
}

// SubmitBatch 校验并提交整批工单
// POST /api/v1/work-orders/batch
func (h *WorkOrderHandler) SubmitBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	writer := entity.Writer{ID: GetUserID(c), Name: GetUserName(c)}
	result := h.submission.Submit(c.Request.Context(), req.Tasks, writer)
	respondResult(c, result)
}

// ValidateBatch 只校验不提交
// POST /api/v1/work-orders/validate
func (h *WorkOrderHandler) ValidateBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	respondResult(c, h.submission.Validate(c.Request.Context(), req.Tasks))
}

func respondResult(c *gin.Context, result entity.SubmissionResult) {
	switch result.State {
	case entity.StateCommitted, entity.StateValid:
		Success(c, result)
	case entity.StateRejected:
		ErrorWithData(c, 42200, "Validation failed", result)
	default:
		ErrorWithData(c, 50000, "Submission failed", result)
	}
}

// Import 解析上传的表格，返回待编辑的行
// POST /api/v1/work-orders/import
func (h *WorkOrderHandler) Import(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+1<<20)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "file is required")
		return
	}
	defer file.Close()

	result, err := h.imports.Parse(c.Request.Context(), header.Filename, file)
	switch {
	case errors.Is(err, service.ErrUnsupportedFormat),
		errors.Is(err, service.ErrMissingHeader):
		BadRequest(c, err.Error())
		return
	case errors.Is(err, service.ErrFileTooLarge):
		Error(c, 41300, "File too large")
		return
	case err != nil:
		h.logger.Warn("parse import failed", zap.String("file", header.Filename), zap.Error(err))
		BadRequest(c, "Could not read the spreadsheet: "+err.Error())
		return
	}
	Success(c, result)
}

// NextIDs 生成工单号
// GET /api/v1/work-orders/ids?count=n
func (h *WorkOrderHandler) NextIDs(c *gin.Context) {
	count := 1
	if s := c.Query("count"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			BadRequest(c, "count must be a number")
			return
		}
		count = v
	}

	ids, err := h.ids.NextWOIDs(c.Request.Context(), count)
	if errors.Is(err, service.ErrInvalidCount) {
		BadRequest(c, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("generate work order ids failed", zap.Error(err))
		InternalError(c, "Failed to generate work order ids")
		return
	}
	Success(c, gin.H{"ids": ids})
}

func listParams(c *gin.Context) entity.ListParams {
	page, size := GetPagination(c)
	return entity.ListParams{
		Keyword: c.Query("keyword"),
		DeptID:  c.Query("dept"),
		Status:  c.Query("status"),
		Page:    page,
		Size:    size,
	}
}

// List 已提交工单，按写入时间倒序
// GET /api/v1/work-orders
func (h *WorkOrderHandler) List(c *gin.Context) {
	params := listParams(c)
	items, total, err := h.history.List(c.Request.Context(), params)
	if err != nil {
		h.logger.Error("list work orders failed", zap.Error(err))
		InternalError(c, "Failed to list work orders")
		return
	}
	if items == nil {
		items = []entity.SubmittedTask{}
	}
	Success(c, ListResponse{Items: items, Pagination: NewPagination(params.Page, params.Size, total)})
}

// Export 导出已提交工单
// GET /api/v1/work-orders/export
func (h *WorkOrderHandler) Export(c *gin.Context) {
	f, filename, err := h.history.Export(c.Request.Context(), listParams(c))
	if err != nil {
		h.logger.Error("export work orders failed", zap.Error(err))
		InternalError(c, "Failed to export work orders")
		return
	}
	writeWorkbook(c, f, filename)
}

// Template 下载导入模板
// GET /api/v1/work-orders/template
func (h *WorkOrderHandler) Template(c *gin.Context) {
	f, err := h.imports.Template()
	if err != nil {
		InternalError(c, "Failed to build template")
		return
	}
	writeWorkbook(c, f, "TaskMasterPro_Template.xlsx")
}

func writeWorkbook(c *gin.Context, f *excelize.File, filename string) {
	defer f.Close()
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
	if err := f.Write(c.Writer); err != nil {
		c.Error(err)
	}
}
