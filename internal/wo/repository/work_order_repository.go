package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
	"gorm.io/gorm"
)

// 单条INSERT的行数上限
const insertBatchSize = 100

// WorkOrderRepository 生产任务仓库（关系库实现）
type WorkOrderRepository struct {
	db *gorm.DB
}

// NewWorkOrderRepository 创建生产任务仓库
func NewWorkOrderRepository(db *gorm.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: db}
}

// ExistingIDs 返回已落库的工单号
func (r *WorkOrderRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(ids) == 0 {
		return found, nil
	}

	var existing []string
	err := r.db.WithContext(ctx).
		Model(&entity.SubmittedTask{}).
		Where("wo_woid IN ?", ids).
		Pluck("wo_woid", &existing).Error
	if err != nil {
		return nil, fmt.Errorf("query existing work orders: %w", err)
	}
	for _, id := range existing {
		found[id] = true
	}
	return found, nil
}

// CommitBatch 在一个事务内写入整批，任一行失败则整批回滚
func (r *WorkOrderRepository) CommitBatch(ctx context.Context, rows []entity.SubmittedTask) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(&rows, insertBatchSize).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %v", ErrDuplicateWOID, err)
			}
			return fmt.Errorf("insert work orders: %w", err)
		}
		return nil
	})
}

// ListSubmitted 按写入时间倒序分页查询
func (r *WorkOrderRepository) ListSubmitted(ctx context.Context, params entity.ListParams) ([]entity.SubmittedTask, int64, error) {
	params.Normalize()

	query := r.db.WithContext(ctx).Model(&entity.SubmittedTask{})
	if kw := strings.TrimSpace(params.Keyword); kw != "" {
		prefix := kw + "%"
		query = query.Where("wo_woid LIKE ? OR wo_wlid LIKE ?", prefix, prefix)
	}
	if params.DeptID != "" {
		query = query.Where("wo_bmid = ?", params.DeptID)
	}
	if params.Status != "" {
		query = query.Where("wo_zt = ?", params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []entity.SubmittedTask
	err := query.
		Order("wo_whsj DESC, wo_woid ASC").
		Offset((params.Page - 1) * params.Size).
		Limit(params.Size).
		Find(&rows).Error
	return rows, total, err
}

// Ping 检查数据库连接
func (r *WorkOrderRepository) Ping(ctx context.Context) error {
	return ping(ctx, r.db)
}
