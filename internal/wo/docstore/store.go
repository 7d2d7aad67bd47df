package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore单个事务最多500次写入
const maxWritesPerTransaction = 500

// taskDoc 工单文档，文档ID即工单号
type taskDoc struct {
	WOID         string `firestore:"WO_WOID"`
	WLID         string `firestore:"WO_WLID"`
	Quantity     string `firestore:"WO_XQSL"`
	PlannedStart string `firestore:"WO_JHKGRQ"`
	PlannedEnd   string `firestore:"WO_JHWGRQ"`
	DeptID       string `firestore:"WO_BMID"`
	Remark       string `firestore:"WO_BZ"`
	FactoryID    string `firestore:"WO_GCID"`
	OrderType    string `firestore:"WO_LX"`
	Status       string `firestore:"WO_ZT"`
	Dispatched   string `firestore:"WO_DZSC"`
	ZLH          string `firestore:"WO_ZLH"`
	WriterID     string `firestore:"WO_WHRID"`
	WriterName   string `firestore:"WO_WHR"`
	WrittenAt    string `firestore:"WO_WHSJ"`
	BatchID      string `firestore:"batch_id"`
}

func toDoc(t entity.SubmittedTask) taskDoc {
	return taskDoc{
		WOID:         t.WOID,
		WLID:         t.WLID,
		Quantity:     t.Quantity,
		PlannedStart: t.PlannedStart,
		PlannedEnd:   t.PlannedEnd,
		DeptID:       t.DeptID,
		Remark:       t.Remark,
		FactoryID:    t.FactoryID,
		OrderType:    t.OrderType,
		Status:       t.Status,
		Dispatched:   t.Dispatched,
		ZLH:          t.ZLH,
		WriterID:     t.WriterID,
		WriterName:   t.WriterName,
		WrittenAt:    t.WrittenAt,
		BatchID:      t.BatchID,
	}
}

func (d taskDoc) entity() entity.SubmittedTask {
	return entity.SubmittedTask{
		Task: entity.Task{
			WOID:         d.WOID,
			WLID:         d.WLID,
			Quantity:     d.Quantity,
			PlannedStart: d.PlannedStart,
			PlannedEnd:   d.PlannedEnd,
			DeptID:       d.DeptID,
			Remark:       d.Remark,
		},
		FactoryID:  d.FactoryID,
		OrderType:  d.OrderType,
		Status:     d.Status,
		Dispatched: d.Dispatched,
		ZLH:        d.ZLH,
		WriterID:   d.WriterID,
		WriterName: d.WriterName,
		WrittenAt:  d.WrittenAt,
		BatchID:    d.BatchID,
	}
}

// ErrDuplicateWOID 提交时工单号已存在
var ErrDuplicateWOID = errors.New("work order id already exists")

// WorkOrderStore 已提交工单集合
type WorkOrderStore struct {
	client *firestore.Client
	coll   string
}

// NewWorkOrderStore 创建工单集合存储
func NewWorkOrderStore(client *firestore.Client, collection string) *WorkOrderStore {
	return &WorkOrderStore{client: client, coll: collection}
}

// ExistingIDs 按文档ID批量读取
func (s *WorkOrderStore) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool)
	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		refs = append(refs, s.client.Collection(s.coll).Doc(id))
	}
	if len(refs) == 0 {
		return found, nil
	}

	snaps, err := s.client.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("get work orders: %w", err)
	}
	for _, snap := range snaps {
		if snap.Exists() {
			found[snap.Ref.ID] = true
		}
	}
	return found, nil
}

// CommitBatch 在一个事务中创建全部文档，任一文档已存在时整个事务失败
func (s *WorkOrderStore) CommitBatch(ctx context.Context, rows []entity.SubmittedTask) error {
	if len(rows) == 0 {
		return nil
	}
	if len(rows) > maxWritesPerTransaction {
		return fmt.Errorf("batch of %d rows exceeds the %d writes allowed per transaction", len(rows), maxWritesPerTransaction)
	}

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, r := range rows {
			if err := tx.Create(s.client.Collection(s.coll).Doc(r.WOID), toDoc(r)); err != nil {
				return err
			}
		}
		return nil
	})
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("commit batch: %w", ErrDuplicateWOID)
	}
	if err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// ListSubmitted 按写入时间倒序分页
// 关键字按工单号或物料编码精确匹配
func (s *WorkOrderStore) ListSubmitted(ctx context.Context, params entity.ListParams) ([]entity.SubmittedTask, int64, error) {
	params.Normalize()

	query := s.client.Collection(s.coll).Query
	if kw := strings.TrimSpace(params.Keyword); kw != "" {
		query = query.WhereEntity(firestore.OrFilter{
			Filters: []firestore.EntityFilter{
				firestore.PropertyFilter{Path: entity.FieldWOID, Operator: "==", Value: kw},
				firestore.PropertyFilter{Path: entity.FieldWLID, Operator: "==", Value: kw},
			},
		})
	}
	if params.DeptID != "" {
		query = query.Where(entity.FieldDeptID, "==", params.DeptID)
	}
	if params.Status != "" {
		query = query.Where("WO_ZT", "==", params.Status)
	}

	total, err := count(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	iter := query.
		OrderBy("WO_WHSJ", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Offset((params.Page - 1) * params.Size).
		Limit(params.Size).
		Documents(ctx)
	defer iter.Stop()

	var out []entity.SubmittedTask
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("list work orders: %w", err)
		}
		var doc taskDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, 0, fmt.Errorf("decode %s: %w", snap.Ref.ID, err)
		}
		out = append(out, doc.entity())
	}
	return out, total, nil
}

func count(ctx context.Context, q firestore.Query) (int64, error) {
	res, err := q.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("count work orders: %w", err)
	}
	v, ok := res["total"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("count work orders: unexpected result %T", res["total"])
	}
	return v.GetIntegerValue(), nil
}

// Ping 读取一个不存在的文档，NotFound说明服务可达
func (s *WorkOrderStore) Ping(ctx context.Context) error {
	_, err := s.client.Collection(s.coll).Doc("_ping").Get(ctx)
	if err == nil || isNotFound(err) {
		return nil
	}
	return err
}
