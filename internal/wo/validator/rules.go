// Package validator holds the deterministic per-row checks for a work-order
// batch. Everything here is pure: no I/O, no clocks, no shared state.
package validator

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
)

// Options 可选规则
type Options struct {
	// Departments 已知部门编码，为空时不校验
	Departments map[string]struct{}
	// CheckDates 校验日期格式和先后顺序
	CheckDates bool
}

// DuplicateSet 返回在批次中出现多于一次的工单号
func DuplicateSet(tasks []entity.Task) map[string]struct{} {
	counts := make(map[string]int, len(tasks))
	for _, t := range tasks {
		id := strings.TrimSpace(t.WOID)
		if id == "" {
			continue
		}
		counts[id]++
	}
	dups := make(map[string]struct{})
	for id, n := range counts {
		if n > 1 {
			dups[id] = struct{}{}
		}
	}
	return dups
}

// IsDuplicate 判断行的工单号是否在重复集合中
func IsDuplicate(t entity.Task, dups map[string]struct{}) bool {
	_, ok := dups[strings.TrimSpace(t.WOID)]
	return ok
}

// DuplicateError 重复工单号错误
func DuplicateError(index int, t entity.Task) *entity.RowError {
	return &entity.RowError{
		RowIndex: index,
		Message:  fmt.Sprintf("%s '%s' is duplicated in this submission.", entity.FieldWOID, strings.TrimSpace(t.WOID)),
		Field:    entity.FieldWOID,
	}
}

// CheckRow 按顺序校验一行，返回第一个失败项；全部通过返回nil
func CheckRow(index int, t entity.Task, dups map[string]struct{}, opts Options) *entity.RowError {
	for _, fv := range t.RequiredFields() {
		if strings.TrimSpace(fv.Value) == "" {
			return &entity.RowError{
				RowIndex: index,
				Message:  fmt.Sprintf("%s is required.", fv.Field),
				Field:    fv.Field,
			}
		}
	}

	if !PositiveQuantity(t.Quantity) {
		return &entity.RowError{
			RowIndex: index,
			Message:  fmt.Sprintf("%s: quantity must be > 0.", entity.FieldQuantity),
			Field:    entity.FieldQuantity,
		}
	}

	if IsDuplicate(t, dups) {
		return DuplicateError(index, t)
	}

	if e := checkWOIDShape(index, t); e != nil {
		return e
	}

	if opts.CheckDates {
		if e := checkDates(index, t); e != nil {
			return e
		}
	}

	if len(opts.Departments) > 0 {
		if _, ok := opts.Departments[strings.TrimSpace(t.DeptID)]; !ok {
			return &entity.RowError{
				RowIndex: index,
				Message:  fmt.Sprintf("%s '%s' is not a known department.", entity.FieldDeptID, t.DeptID),
				Field:    entity.FieldDeptID,
			}
		}
	}

	return nil
}

// checkWOIDShape 工单号需能作为主键和文档ID写入
func checkWOIDShape(index int, t entity.Task) *entity.RowError {
	id := strings.TrimSpace(t.WOID)
	var msg string
	switch {
	case utf8.RuneCountInString(id) > entity.MaxWOIDLength:
		msg = fmt.Sprintf("%s '%s' must be at most %d characters.", entity.FieldWOID, id, entity.MaxWOIDLength)
	case strings.Contains(id, "/"):
		msg = fmt.Sprintf("%s '%s' must not contain '/'.", entity.FieldWOID, id)
	default:
		return nil
	}
	return &entity.RowError{RowIndex: index, Message: msg, Field: entity.FieldWOID}
}

// PositiveQuantity 数量必须是大于0的有限数
func PositiveQuantity(s string) bool {
	q, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(q) || math.IsInf(q, 0) {
		return false
	}
	return q > 0
}

func checkDates(index int, t entity.Task) *entity.RowError {
	start, err := time.Parse(entity.DateLayout, strings.TrimSpace(t.PlannedStart))
	if err != nil {
		return &entity.RowError{
			RowIndex: index,
			Message:  fmt.Sprintf("%s must be a date in YYYY-MM-DD format.", entity.FieldPlannedStart),
			Field:    entity.FieldPlannedStart,
		}
	}
	end, err := time.Parse(entity.DateLayout, strings.TrimSpace(t.PlannedEnd))
	if err != nil {
		return &entity.RowError{
			RowIndex: index,
			Message:  fmt.Sprintf("%s must be a date in YYYY-MM-DD format.", entity.FieldPlannedEnd),
			Field:    entity.FieldPlannedEnd,
		}
	}
	if end.Before(start) {
		return &entity.RowError{
			RowIndex: index,
			Message:  fmt.Sprintf("%s must not be earlier than %s.", entity.FieldPlannedEnd, entity.FieldPlannedStart),
			Field:    entity.FieldPlannedEnd,
		}
	}
	return nil
}

// DepartmentSet 由部门编码构造集合
func DepartmentSet(codes ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}
