package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Tao-Zi-Liu/WoInsert/internal/config"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/llm"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/lookup"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/validator"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// EventWorkOrdersCommitted 批次提交成功事件
const EventWorkOrdersCommitted = "work_orders_committed"

// 返回给用户的固定文案
const (
	MsgNoRows            = "No rows to submit."
	MsgLookupUnavailable = "ERP material master is unavailable. Please retry later or contact the administrator."
	MsgValidationFailed  = "Validation failed, please contact the administrator."
	MsgCommitFailed      = "Database error: the batch was not submitted. Please contact the administrator."
	MsgAIUnavailable     = "AI validation is unavailable. Please retry later."
)

const notifyTimeout = 30 * time.Second

// SubmissionOptions 提交流程参数
type SubmissionOptions struct {
	Location              *time.Location
	GenerateZLH           bool
	CheckGlobalUniqueness bool
	MaxConcurrency        int
	MaxBatchSize          int
	CommitTimeout         time.Duration
	AIMode                string
	AITimeout             time.Duration
	// Departments 为空时不校验部门编码
	Departments map[string]struct{}
}

// SubmissionService 批次校验与提交
type SubmissionService struct {
	store    Store
	lookup   MaterialLookup
	ids      *IDService
	ai       AIValidator
	events   EventPublisher
	notifier BatchNotifier
	opts     SubmissionOptions
	rules    validator.Options
	logger   *zap.Logger
	now      func() time.Time
}

// NewSubmissionService 创建提交服务
func NewSubmissionService(store Store, lookup MaterialLookup, ids *IDService, opts SubmissionOptions, logger *zap.Logger) *SubmissionService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 16
	}
	if opts.CommitTimeout <= 0 {
		opts.CommitTimeout = 30 * time.Second
	}
	if opts.AIMode == "" {
		opts.AIMode = config.AIModeOff
	}
	return &SubmissionService{
		store:  store,
		lookup: lookup,
		ids:    ids,
		opts:   opts,
		rules: validator.Options{
			Departments: opts.Departments,
			CheckDates:  true,
		},
		logger: logger,
		now:    time.Now,
	}
}

// SetAI 设置模型校验器
func (s *SubmissionService) SetAI(ai AIValidator) {
	s.ai = ai
}

// SetPublisher 设置实时事件推送
func (s *SubmissionService) SetPublisher(p EventPublisher) {
	s.events = p
}

// SetNotifier 设置提交通知
func (s *SubmissionService) SetNotifier(n BatchNotifier) {
	s.notifier = n
}

// Validate 只校验不提交
func (s *SubmissionService) Validate(ctx context.Context, tasks []entity.Task) entity.SubmissionResult {
	result, _ := s.check(ctx, tasks)
	return result
}

// Submit 校验整批，全部通过后一次性写入
func (s *SubmissionService) Submit(ctx context.Context, tasks []entity.Task, writer entity.Writer) entity.SubmissionResult {
	result, ok := s.check(ctx, tasks)
	if !ok {
		return result
	}
	notes := result.Notes

	// 提交开始后不再响应请求取消
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.CommitTimeout)
	defer cancel()

	at := s.now().In(s.opts.Location)
	batchID := ulid.Make().String()
	rows, err := s.stamp(commitCtx, tasks, writer, at, batchID)
	if err != nil {
		s.logger.Error("stamp work orders failed", zap.String("batch_id", batchID), zap.Error(err))
		failed := entity.Failed(MsgCommitFailed)
		failed.Notes = notes
		return failed
	}

	if err := s.store.CommitBatch(commitCtx, rows); err != nil {
		s.logger.Error("commit batch failed",
			zap.String("batch_id", batchID),
			zap.Int("rows", len(rows)),
			zap.Error(err),
		)
		failed := entity.Failed(MsgCommitFailed)
		failed.Notes = notes
		return failed
	}

	writtenAt := at.Format(entity.TimestampLayout)
	summary := entity.BatchSummary{
		BatchID:    batchID,
		Count:      len(rows),
		WOIDs:      make([]string, len(rows)),
		WriterID:   writer.ID,
		WriterName: writer.Name,
		WrittenAt:  writtenAt,
	}
	for i, r := range rows {
		summary.WOIDs[i] = r.WOID
	}
	s.logger.Info("batch committed",
		zap.String("batch_id", batchID),
		zap.Int("rows", len(rows)),
		zap.String("writer_id", writer.ID),
	)
	s.afterCommit(summary)

	return entity.SubmissionResult{
		Success:   true,
		State:     entity.StateCommitted,
		BatchID:   batchID,
		Submitted: len(rows),
		WrittenAt: writtenAt,
		Notes:     notes,
	}
}

// check 执行全部校验，返回是否可以提交
func (s *SubmissionService) check(ctx context.Context, tasks []entity.Task) (entity.SubmissionResult, bool) {
	if len(tasks) == 0 {
		return entity.Rejected([]entity.RowError{{RowIndex: 0, Message: MsgNoRows}}), false
	}
	if s.opts.MaxBatchSize > 0 && len(tasks) > s.opts.MaxBatchSize {
		return entity.Rejected([]entity.RowError{{
			RowIndex: 0,
			Message:  fmt.Sprintf("At most %d rows can be submitted at once.", s.opts.MaxBatchSize),
		}}), false
	}

	dups := validator.DuplicateSet(tasks)
	allWOIDs := make([]string, len(tasks))
	for i, t := range tasks {
		allWOIDs[i] = strings.TrimSpace(t.WOID)
	}

	// 每行结果写入自己的下标，不共享可变状态
	rowErrs := make([]*entity.RowError, len(tasks))
	rowNotes := make([]*entity.RowNote, len(tasks))
	var g errgroup.Group
	g.SetLimit(s.opts.MaxConcurrency)
	for i, t := range tasks {
		g.Go(func() error {
			rowErrs[i], rowNotes[i] = s.checkRow(ctx, i, t, dups, allWOIDs)
			return nil
		})
	}
	_ = g.Wait()

	var errs []entity.RowError
	var notes []entity.RowNote
	for i := range tasks {
		if rowErrs[i] != nil {
			errs = append(errs, *rowErrs[i])
		}
		if rowNotes[i] != nil {
			notes = append(notes, *rowNotes[i])
		}
	}
	if len(errs) > 0 {
		rejected := entity.Rejected(errs)
		rejected.Notes = notes
		return rejected, false
	}

	if s.opts.CheckGlobalUniqueness {
		existing, err := s.store.ExistingIDs(ctx, allWOIDs)
		if err != nil {
			s.logger.Error("global uniqueness check failed", zap.Error(err))
			failed := entity.Failed(MsgValidationFailed)
			failed.Notes = notes
			return failed, false
		}
		for i, id := range allWOIDs {
			if existing[id] {
				errs = append(errs, entity.RowError{
					RowIndex: i,
					Message:  fmt.Sprintf("%s '%s' already exists in the database.", entity.FieldWOID, id),
					Field:    entity.FieldWOID,
				})
			}
		}
		if len(errs) > 0 {
			rejected := entity.Rejected(errs)
			rejected.Notes = notes
			return rejected, false
		}
	}

	return entity.SubmissionResult{Success: true, State: entity.StateValid, Notes: notes}, true
}

// checkRow 重复检查 → 规则校验 → 物料查询（与模型校验并行）
func (s *SubmissionService) checkRow(ctx context.Context, index int, task entity.Task, dups map[string]struct{}, allWOIDs []string) (*entity.RowError, *entity.RowNote) {
	if validator.IsDuplicate(task, dups) {
		return validator.DuplicateError(index, task), nil
	}
	if e := validator.CheckRow(index, task, dups, s.rules); e != nil {
		return e, nil
	}

	var (
		lookupErr *entity.RowError
		verdict   llm.Verdict
		aiErr     error
	)
	useAI := s.ai != nil && s.opts.AIMode != config.AIModeOff

	var g errgroup.Group
	g.Go(func() error {
		lookupErr = s.lookupRow(ctx, index, task)
		return nil
	})
	if useAI {
		g.Go(func() error {
			aiCtx := ctx
			if s.opts.AITimeout > 0 {
				var cancel context.CancelFunc
				aiCtx, cancel = context.WithTimeout(ctx, s.opts.AITimeout)
				defer cancel()
			}
			verdict, aiErr = s.ai.Validate(aiCtx, task, allWOIDs)
			return nil
		})
	}
	_ = g.Wait()

	if !useAI {
		return lookupErr, nil
	}
	return s.mergeAI(index, task, lookupErr, verdict, aiErr)
}

// mergeAI 模型结论只能追加错误或说明，不能清除确定性校验的失败
func (s *SubmissionService) mergeAI(index int, task entity.Task, lookupErr *entity.RowError, verdict llm.Verdict, aiErr error) (*entity.RowError, *entity.RowNote) {
	if aiErr != nil {
		s.logger.Warn("ai validation failed", zap.Int("row", index), zap.String("woid", task.WOID), zap.Error(aiErr))
		if lookupErr == nil && s.opts.AIMode == config.AIModeEnforce {
			return &entity.RowError{RowIndex: index, Message: MsgAIUnavailable}, nil
		}
		return lookupErr, nil
	}
	if verdict.IsValid {
		return lookupErr, nil
	}

	explanation := strings.TrimSpace(verdict.Explanation)
	if explanation == "" {
		explanation = "The row was judged invalid."
	}
	if lookupErr == nil && s.opts.AIMode == config.AIModeEnforce {
		return &entity.RowError{RowIndex: index, Message: "AI validation: " + explanation}, nil
	}
	return lookupErr, &entity.RowNote{RowIndex: index, Explanation: explanation}
}

func (s *SubmissionService) lookupRow(ctx context.Context, index int, task entity.Task) *entity.RowError {
	wlid := strings.TrimSpace(task.WLID)
	exists, err := s.lookup.MaterialExists(ctx, wlid)
	switch {
	case errors.Is(err, lookup.ErrUnavailable):
		s.logger.Warn("material lookup unavailable", zap.String("wlid", wlid), zap.Error(err))
		return &entity.RowError{RowIndex: index, Message: MsgLookupUnavailable, Field: entity.FieldWLID}
	case err != nil:
		s.logger.Error("material lookup failed", zap.String("wlid", wlid), zap.Error(err))
		return &entity.RowError{RowIndex: index, Message: MsgValidationFailed, Field: entity.FieldWLID}
	case !exists:
		return &entity.RowError{
			RowIndex: index,
			Message:  fmt.Sprintf("%s '%s' does not exist in the ERP material master (WLXX).", entity.FieldWLID, wlid),
			Field:    entity.FieldWLID,
		}
	}
	return nil
}

// stamp 填充系统字段
func (s *SubmissionService) stamp(ctx context.Context, tasks []entity.Task, writer entity.Writer, at time.Time, batchID string) ([]entity.SubmittedTask, error) {
	var zlhs []string
	if s.opts.GenerateZLH && s.ids != nil {
		var err error
		zlhs, err = s.ids.NextZLHs(ctx, len(tasks), at)
		if err != nil {
			return nil, fmt.Errorf("allocate ZLH: %w", err)
		}
	}

	writtenAt := at.Format(entity.TimestampLayout)
	rows := make([]entity.SubmittedTask, len(tasks))
	for i, t := range tasks {
		rows[i] = entity.SubmittedTask{
			Task:       normalizeTask(t),
			FactoryID:  entity.FactoryCode,
			OrderType:  entity.OrderTypeMPS,
			Status:     entity.StatusPlanned,
			Dispatched: entity.NotDispatched,
			WriterID:   writer.ID,
			WriterName: writer.Name,
			WrittenAt:  writtenAt,
			BatchID:    batchID,
		}
		if zlhs != nil {
			rows[i].ZLH = zlhs[i]
		}
	}
	return rows, nil
}

func (s *SubmissionService) afterCommit(summary entity.BatchSummary) {
	if s.events != nil {
		s.events.Publish(EventWorkOrdersCommitted, summary)
	}
	if s.notifier != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if err := s.notifier.NotifyBatchCommitted(ctx, summary); err != nil {
				s.logger.Warn("batch notification failed", zap.String("batch_id", summary.BatchID), zap.Error(err))
			}
		}()
	}
}

func normalizeTask(t entity.Task) entity.Task {
	return entity.Task{
		WOID:         strings.TrimSpace(t.WOID),
		WLID:         strings.TrimSpace(t.WLID),
		Quantity:     strings.TrimSpace(t.Quantity),
		PlannedStart: strings.TrimSpace(t.PlannedStart),
		PlannedEnd:   strings.TrimSpace(t.PlannedEnd),
		DeptID:       strings.TrimSpace(t.DeptID),
		Remark:       strings.TrimSpace(t.Remark),
	}
}
