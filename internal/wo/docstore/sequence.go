package docstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
)

type sequenceDoc struct {
	Value int64 `firestore:"value"`
}

// SequenceStore 每个作用域一个计数文档，在事务中读改写
type SequenceStore struct {
	client *firestore.Client
	coll   string
}

// NewSequenceStore 创建计数器存储
func NewSequenceStore(client *firestore.Client, collection string) *SequenceStore {
	return &SequenceStore{client: client, coll: collection}
}

// Reserve 预留n个连续序号，返回第一个
func (s *SequenceStore) Reserve(ctx context.Context, scope string, n int64) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("reserve %d sequence values: count must be positive", n)
	}
	ref := s.client.Collection(s.coll).Doc(scope)

	var last int64
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var cur sequenceDoc
		snap, err := tx.Get(ref)
		switch {
		case isNotFound(err):
		case err != nil:
			return err
		default:
			if err := snap.DataTo(&cur); err != nil {
				return err
			}
		}
		last = cur.Value + n
		return tx.Set(ref, map[string]interface{}{
			"value":      last,
			"updated_at": firestore.ServerTimestamp,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("reserve sequence %s: %w", scope, err)
	}
	return last - n + 1, nil
}
