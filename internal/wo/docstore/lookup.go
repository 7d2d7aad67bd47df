package docstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/lookup"
	"google.golang.org/api/iterator"
)

const materialIDField = "WLXX_WLID"

// MaterialLookup 在物料集合中按字段查找
type MaterialLookup struct {
	client *firestore.Client
	coll   string
}

// NewMaterialLookup 创建物料查询
func NewMaterialLookup(client *firestore.Client, collection string) *MaterialLookup {
	return &MaterialLookup{client: client, coll: collection}
}

// MaterialExists 物料是否存在，不重试
func (l *MaterialLookup) MaterialExists(ctx context.Context, wlid string) (bool, error) {
	if wlid == "" {
		return false, nil
	}
	iter := l.client.Collection(l.coll).Where(materialIDField, "==", wlid).Limit(1).Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	switch {
	case err == iterator.Done:
		return false, nil
	case err == nil:
		return true, nil
	case isUnavailable(err):
		return false, fmt.Errorf("%w: %v", lookup.ErrUnavailable, err)
	default:
		return false, fmt.Errorf("%w: %v", lookup.ErrQuery, err)
	}
}
