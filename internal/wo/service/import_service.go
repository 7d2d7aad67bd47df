package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format, use .xlsx or .csv")
	ErrMissingHeader     = errors.New("missing required column")
	ErrFileTooLarge      = errors.New("file too large")
)

// 模板和导入使用的列
var importHeaders = []string{
	entity.FieldWOID, entity.FieldWLID, entity.FieldQuantity,
	entity.FieldPlannedStart, entity.FieldPlannedEnd, entity.FieldDeptID, entity.FieldRemark,
}

// 导入时必须存在的列
var requiredHeaders = importHeaders[:6]

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ImportResult 导入结果
type ImportResult struct {
	Rows []entity.Task `json:"rows"`
	// SourceRows 每行在原文件中的行号（从1开始，含表头）
	SourceRows []int         `json:"source_rows"`
	Skipped    int           `json:"skipped"`
	ArchiveKey string        `json:"archive_key,omitempty"`
}

// ImportService 表格导入与模板
type ImportService struct {
	archive     Archive
	departments *DepartmentService
	maxBytes    int64
	logger      *zap.Logger
}

// NewImportService 创建导入服务
func NewImportService(archive Archive, departments *DepartmentService, maxBytes int64, logger *zap.Logger) *ImportService {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &ImportService{archive: archive, departments: departments, maxBytes: maxBytes, logger: logger}
}

// Parse 解析上传的表格，整份读入内存
func (s *ImportService) Parse(ctx context.Context, filename string, r io.Reader) (*ImportResult, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	var records [][]string
	var lines []int
	var contentType string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		records, lines, err = readXLSX(data)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		records, lines, err = readCSV(data)
		contentType = "text/csv"
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}

	result, err := buildTasks(records, lines)
	if err != nil {
		return nil, err
	}
	result.ArchiveKey = s.archiveUpload(ctx, filename, data, contentType)
	return result, nil
}

// archiveUpload 归档原始文件，失败只记日志
func (s *ImportService) archiveUpload(ctx context.Context, filename string, data []byte, contentType string) string {
	if s.archive == nil {
		return ""
	}
	now := time.Now()
	key := fmt.Sprintf("imports/%s/%s-%s", now.Format("2006/01/02"), ulid.Make().String(), filepath.Base(filename))
	if err := s.archive.Put(ctx, key, data, contentType); err != nil {
		s.logger.Warn("archive upload failed", zap.String("key", key), zap.Error(err))
		return ""
	}
	return key
}

// readXLSX 返回第一个工作表的所有行和对应的行号
func readXLSX(data []byte) ([][]string, []int, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("open excel: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("read excel: %w", err)
	}

	// 日期单元格读出来是序列号
	for i := 1; i < len(rows); i++ {
		for j, v := range rows[i] {
			if j >= len(rows[0]) {
				break
			}
			h := strings.TrimSpace(rows[0][j])
			if h != entity.FieldPlannedStart && h != entity.FieldPlannedEnd {
				continue
			}
			if serial, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
					rows[i][j] = t.Format(entity.DateLayout)
				}
			}
		}
	}
	// GetRows 中间的空行也占位，下标即行号减一
	lines := make([]int, len(rows))
	for i := range rows {
		lines[i] = i + 1
	}
	return rows, lines, nil
}

// readCSV 返回所有记录和各自的起始行号，空行被csv.Reader跳过
func readCSV(data []byte) ([][]string, []int, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(simplifiedchinese.GBK.NewDecoder(), data)
		if err != nil {
			return nil, nil, fmt.Errorf("decode GBK: %w", err)
		}
		data = decoded
	}

	rd := csv.NewReader(bytes.NewReader(data))
	rd.FieldsPerRecord = -1
	rd.TrimLeadingSpace = true
	var records [][]string
	var lines []int
	for {
		rec, err := rd.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := rd.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
	return records, lines, nil
}

// buildTasks 按表头名映射列，列顺序无关，未知列忽略
func buildTasks(records [][]string, lines []int) (*ImportResult, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingHeader, strings.Join(requiredHeaders, ", "))
	}

	cols := make(map[string]int)
	for j, h := range records[0] {
		h = strings.TrimSpace(h)
		if _, seen := cols[h]; !seen {
			cols[h] = j
		}
	}
	var missing []string
	for _, h := range requiredHeaders {
		if _, ok := cols[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingHeader, strings.Join(missing, ", "))
	}

	cell := func(row []string, field string) string {
		j, ok := cols[field]
		if !ok || j >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[j])
	}

	result := &ImportResult{Rows: []entity.Task{}, SourceRows: []int{}}
	for i := 1; i < len(records); i++ {
		row := records[i]
		if isBlankRow(row) {
			result.Skipped++
			continue
		}
		line := i + 1
		if i < len(lines) {
			line = lines[i]
		}
		result.SourceRows = append(result.SourceRows, line)
		result.Rows = append(result.Rows, entity.Task{
			RowID:        uuid.NewString(),
			WOID:         cell(row, entity.FieldWOID),
			WLID:         cell(row, entity.FieldWLID),
			Quantity:     cell(row, entity.FieldQuantity),
			PlannedStart: normalizeDate(cell(row, entity.FieldPlannedStart)),
			PlannedEnd:   normalizeDate(cell(row, entity.FieldPlannedEnd)),
			DeptID:       cell(row, entity.FieldDeptID),
			Remark:       cell(row, entity.FieldRemark),
		})
	}
	return result, nil
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var dateLayouts = []string{
	entity.DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"2006/1/2",
	"2006-1-2",
}

// normalizeDate 统一为 YYYY-MM-DD，无法识别时原样返回
func normalizeDate(s string) string {
	if s == "" {
		return s
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(entity.DateLayout)
		}
	}
	return s
}

// Template 生成导入模板
func (s *ImportService) Template() (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Tasks"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	textStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 49})

	for i, h := range importHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
		f.SetColWidth(sheet, col, col, 16)
	}
	// 日期列设为文本，避免被Excel改写格式
	f.SetColStyle(sheet, "D:E", textStyle)

	helpSheet := "填写说明"
	if _, err := f.NewSheet(helpSheet); err != nil {
		return nil, fmt.Errorf("create help sheet: %w", err)
	}
	helpData := [][]string{
		{"列名", "说明", "是否必填"},
		{entity.FieldWOID, "工单号，同一批次内不能重复，如 UW25030101", "是"},
		{entity.FieldWLID, "物料编码，必须存在于ERP物料主数据(WLXX)", "是"},
		{entity.FieldQuantity, "需求数量，必须大于0", "是"},
		{entity.FieldPlannedStart, "计划开工日期 YYYY-MM-DD", "是"},
		{entity.FieldPlannedEnd, "计划完工日期 YYYY-MM-DD，不早于开工日期", "是"},
		{entity.FieldDeptID, "完工部门编码，见下表", "是"},
		{entity.FieldRemark, "备注", "否"},
		{},
		{"部门编码", "部门名称"},
	}
	if s.departments != nil {
		for _, d := range s.departments.List() {
			helpData = append(helpData, []string{d.Code, d.Label})
		}
	}
	for i, row := range helpData {
		for j, val := range row {
			col, _ := excelize.ColumnNumberToName(j + 1)
			f.SetCellValue(helpSheet, fmt.Sprintf("%s%d", col, i+1), val)
		}
	}
	f.SetColWidth(helpSheet, "A", "A", 14)
	f.SetColWidth(helpSheet, "B", "B", 44)
	f.SetColWidth(helpSheet, "C", "C", 10)

	return f, nil
}
