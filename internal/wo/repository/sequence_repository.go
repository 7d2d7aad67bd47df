package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceRepository 按作用域递增的计数器
type SequenceRepository struct {
	db *gorm.DB
}

// NewSequenceRepository 创建计数器仓库
func NewSequenceRepository(db *gorm.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Reserve 原子地预留n个连续序号，返回第一个
func (r *SequenceRepository) Reserve(ctx context.Context, scope string, n int64) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("reserve %d sequence values: count must be positive", n)
	}

	var last int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq := entity.Sequence{Scope: scope, Value: n, UpdatedAt: time.Now()}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "scope"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"value":      gorm.Expr("wo_sequences.value + ?", n),
				"updated_at": time.Now(),
			}),
		}).Create(&seq).Error
		if err != nil {
			return err
		}

		var cur entity.Sequence
		if err := tx.Where("scope = ?", scope).First(&cur).Error; err != nil {
			return err
		}
		last = cur.Value
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reserve sequence %s: %w", scope, err)
	}
	return last - n + 1, nil
}

// Current 返回作用域的当前值，不存在时为0
func (r *SequenceRepository) Current(ctx context.Context, scope string) (int64, error) {
	var seq entity.Sequence
	err := r.db.WithContext(ctx).Where("scope = ?", scope).Limit(1).Find(&seq).Error
	if err != nil {
		return 0, err
	}
	return seq.Value, nil
}
