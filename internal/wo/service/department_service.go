package service

import (
	"github.com/Tao-Zi-Liu/WoInsert/internal/config"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
)

// DepartmentService 部门字典
type DepartmentService struct {
	items []entity.Department
}

// NewDepartmentService 创建部门字典，传入的顺序即显示顺序
func NewDepartmentService(entries []config.DepartmentEntry) *DepartmentService {
	items := make([]entity.Department, len(entries))
	for i, e := range entries {
		items[i] = entity.Department{Code: e.Code, Label: e.Label, Order: e.Order}
	}
	return &DepartmentService{items: items}
}

// List 返回全部部门
func (s *DepartmentService) List() []entity.Department {
	out := make([]entity.Department, len(s.items))
	copy(out, s.items)
	return out
}

// CodeSet 部门编码集合
func (s *DepartmentService) CodeSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.items))
	for _, d := range s.items {
		set[d.Code] = struct{}{}
	}
	return set
}
