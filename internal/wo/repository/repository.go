package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicateWOID = errors.New("work order id already exists")
)

// Repositories 仓库集合
type Repositories struct {
	WorkOrder *WorkOrderRepository
	Material  *MaterialRepository
	Sequence  *SequenceRepository
	User      *UserRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		WorkOrder: NewWorkOrderRepository(db),
		Material:  NewMaterialRepository(db),
		Sequence:  NewSequenceRepository(db),
		User:      NewUserRepository(db),
	}
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
