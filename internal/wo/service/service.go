package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Tao-Zi-Liu/WoInsert/internal/config"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/llm"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store 已提交工单的持久化后端（关系库或Firestore）
type Store interface {
	// ExistingIDs 返回ids中已存在的工单号
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
	// CommitBatch 整批写入，要么全部成功要么全部不写；任一工单号已存在时失败
	CommitBatch(ctx context.Context, rows []entity.SubmittedTask) error
	ListSubmitted(ctx context.Context, params entity.ListParams) ([]entity.SubmittedTask, int64, error)
	Ping(ctx context.Context) error
}

// MaterialLookup 物料主数据查询，不重试
type MaterialLookup interface {
	MaterialExists(ctx context.Context, wlid string) (bool, error)
}

// SequenceAllocator 按作用域分配连续序号
type SequenceAllocator interface {
	// Reserve 预留n个序号，返回第一个
	Reserve(ctx context.Context, scope string, n int64) (int64, error)
}

// AIValidator 模型辅助校验
type AIValidator interface {
	Validate(ctx context.Context, task entity.Task, allWOIDs []string) (llm.Verdict, error)
}

// EventPublisher 推送实时事件
type EventPublisher interface {
	Publish(event string, data interface{})
}

// BatchNotifier 批次提交后的外部通知
type BatchNotifier interface {
	NotifyBatchCommitted(ctx context.Context, summary entity.BatchSummary) error
}

// Archive 原始导入文件归档
type Archive interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Deps 外部依赖，可选项允许为nil
type Deps struct {
	Store     Store
	Lookup    MaterialLookup
	Sequences SequenceAllocator
	Users     *repository.UserRepository
	Redis     *redis.Client
	AI        AIValidator
	Events    EventPublisher
	Notifier  BatchNotifier
	Archive   Archive
}

// Services 服务集合
type Services struct {
	Submission *SubmissionService
	ID         *IDService
	Import     *ImportService
	History    *HistoryService
	Auth       *AuthService
	User       *UserService
	Department *DepartmentService
	Lookup     MaterialLookup
}

// NewServices 创建服务集合
func NewServices(deps Deps, cfg *config.Config, logger *zap.Logger) (*Services, error) {
	loc, err := time.LoadLocation(cfg.WorkOrder.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	departments := NewDepartmentService(cfg.SortedDepartments())
	ids := NewIDService(deps.Sequences, loc)

	submission := NewSubmissionService(deps.Store, deps.Lookup, ids, SubmissionOptions{
		Location:              loc,
		GenerateZLH:           cfg.WorkOrder.GenerateZLH,
		CheckGlobalUniqueness: cfg.WorkOrder.CheckGlobalUniqueness,
		MaxConcurrency:        cfg.WorkOrder.MaxConcurrency,
		MaxBatchSize:          cfg.WorkOrder.MaxBatchSize,
		CommitTimeout:         cfg.WorkOrder.CommitTimeout,
		AIMode:                cfg.AI.Mode,
		AITimeout:             cfg.AI.Timeout,
		Departments:           departments.CodeSet(),
	}, logger.Named("submission"))
	submission.SetAI(deps.AI)
	submission.SetPublisher(deps.Events)
	submission.SetNotifier(deps.Notifier)

	return &Services{
		Submission: submission,
		ID:         ids,
		Import:     NewImportService(deps.Archive, departments, cfg.Server.MaxUploadMB<<20, logger.Named("import")),
		History:    NewHistoryService(deps.Store),
		Auth:       NewAuthService(deps.Users, deps.Redis, cfg),
		User:       NewUserService(deps.Users),
		Department: departments,
		Lookup:     deps.Lookup,
	}, nil
}
