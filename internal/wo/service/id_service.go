package service

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// 一次最多生成的工单号数量
const MaxIDsPerCall = 500

// ErrInvalidCount 数量超出范围
var ErrInvalidCount = errors.New("count must be between 1 and 500")

// IDService 工单号与制令号生成，序号按天持久化递增
type IDService struct {
	seq SequenceAllocator
	loc *time.Location
	now func() time.Time
}

// NewIDService 创建编号服务
func NewIDService(seq SequenceAllocator, loc *time.Location) *IDService {
	if loc == nil {
		loc = time.UTC
	}
	return &IDService{seq: seq, loc: loc, now: time.Now}
}

// NextWOIDs 生成n个工单号：UW + yyMMdd + 序号（至少两位）
func (s *IDService) NextWOIDs(ctx context.Context, n int) ([]string, error) {
	if n < 1 || n > MaxIDsPerCall {
		return nil, ErrInvalidCount
	}
	day := s.now().In(s.loc).Format("060102")
	first, err := s.seq.Reserve(ctx, "woid:"+day, int64(n))
	if err != nil {
		return nil, fmt.Errorf("reserve work order ids: %w", err)
	}

	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("UW%s%02d", day, first+int64(i))
	}
	return ids, nil
}

// NextZLH 生成一个制令号
func (s *IDService) NextZLH(ctx context.Context) (string, error) {
	zlhs, err := s.NextZLHs(ctx, 1, s.now())
	if err != nil {
		return "", err
	}
	return zlhs[0], nil
}

// NextZLHs 生成n个制令号：yyyyMMddHHmmss-H + 四位序号，序号按天递增
func (s *IDService) NextZLHs(ctx context.Context, n int, at time.Time) ([]string, error) {
	if n < 1 {
		return nil, ErrInvalidCount
	}
	at = at.In(s.loc)
	first, err := s.seq.Reserve(ctx, "zlh:"+at.Format("20060102"), int64(n))
	if err != nil {
		return nil, fmt.Errorf("reserve ZLH: %w", err)
	}

	stamp := at.Format("20060102150405")
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-H%04d", stamp, first+int64(i))
	}
	return out, nil
}
