package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
	"github.com/xuri/excelize/v2"
)

// 导出的最大行数
const maxExportRows = 5000

var historyExportHeaders = []string{
	entity.FieldWOID, entity.FieldWLID, entity.FieldQuantity,
	entity.FieldPlannedStart, entity.FieldPlannedEnd, entity.FieldDeptID, entity.FieldRemark,
	"WO_GCID", "WO_LX", "WO_ZT", "WO_DZSC", "WO_ZLH", "WO_WHRID", "WO_WHR", "WO_WHSJ",
}

// HistoryService 已提交工单查询
type HistoryService struct {
	store Store
}

// NewHistoryService 创建历史查询服务
func NewHistoryService(store Store) *HistoryService {
	return &HistoryService{store: store}
}

// List 分页查询，按写入时间倒序
func (s *HistoryService) List(ctx context.Context, params entity.ListParams) ([]entity.SubmittedTask, int64, error) {
	params.Normalize()
	return s.store.ListSubmitted(ctx, params)
}

// Export 导出查询结果为Excel
func (s *HistoryService) Export(ctx context.Context, params entity.ListParams) (*excelize.File, string, error) {
	params.Page = 1
	params.Size = 500

	var rows []entity.SubmittedTask
	for len(rows) < maxExportRows {
		page, total, err := s.store.ListSubmitted(ctx, params)
		if err != nil {
			return nil, "", fmt.Errorf("list submitted: %w", err)
		}
		rows = append(rows, page...)
		if len(page) < params.Size || int64(len(rows)) >= total {
			break
		}
		params.Page++
	}

	f := excelize.NewFile()
	sheet := "WorkOrders"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	for i, h := range historyExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for i, r := range rows {
		values := []string{
			r.WOID, r.WLID, r.Quantity, r.PlannedStart, r.PlannedEnd, r.DeptID, r.Remark,
			r.FactoryID, r.OrderType, r.Status, r.Dispatched, r.ZLH, r.WriterID, r.WriterName, r.WrittenAt,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		f.SetSheetRow(sheet, cell, &values)
	}

	colWidths := []float64{14, 16, 10, 12, 12, 10, 24, 8, 8, 8, 8, 22, 14, 12, 20}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("WorkOrders_%s.xlsx", time.Now().Format("20060102150405"))
	return f, filename, nil
}
