package repository

import (
	"context"
	"fmt"

	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/lookup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaterialRepository ERP物料主数据仓库（WLXX表）
type MaterialRepository struct {
	db *gorm.DB
}

// NewMaterialRepository 创建物料仓库
func NewMaterialRepository(db *gorm.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

// MaterialExists 查询物料编码是否存在
func (r *MaterialRepository) MaterialExists(ctx context.Context, wlid string) (bool, error) {
	if wlid == "" {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Material{}).
		Where(&entity.Material{WLID: wlid}).
		Count(&count).Error
	if err != nil {
		if pingErr := ping(ctx, r.db); pingErr != nil {
			return false, fmt.Errorf("%w: %v", lookup.ErrUnavailable, pingErr)
		}
		return false, fmt.Errorf("%w: %v", lookup.ErrQuery, err)
	}
	return count > 0, nil
}

// Upsert 写入或更新物料
func (r *MaterialRepository) Upsert(ctx context.Context, materials ...entity.Material) error {
	if len(materials) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&materials).Error
}
