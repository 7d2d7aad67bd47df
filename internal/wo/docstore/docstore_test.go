package docstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/lookup"
)

func TestIsUnavailable(t *testing.T) {
	tests := map[string]struct {
		err  error
		want bool
	}{
		"grpc unavailable":  {status.Error(codes.Unavailable, "connection refused"), true},
		"grpc deadline":     {status.Error(codes.DeadlineExceeded, "timeout"), true},
		"context deadline":  {fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		"permission denied": {status.Error(codes.PermissionDenied, "rules"), false},
		"missing index":     {status.Error(codes.FailedPrecondition, "index required"), false},
		"plain error":       {errors.New("boom"), false},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, isUnavailable(tc.err))
		})
	}
}

func TestTaskDocKeepsERPColumnNames(t *testing.T) {
	row := entity.SubmittedTask{
		Task:      entity.Task{WOID: "UW25030101", WLID: "M-1", Quantity: "10", DeptID: "GQ"},
		Status:    entity.StatusPlanned,
		WrittenAt: "2025-03-01 08:30:00",
	}
	doc := toDoc(row)
	assert.Equal(t, row, doc.entity())
}

// 以下测试需要Firestore模拟器: FIRESTORE_EMULATOR_HOST=localhost:8080
func emulatorClient(t *testing.T) *firestore.Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "woinsert-test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func uniqueCollection(t *testing.T, base string) string {
	return fmt.Sprintf("%s_%d", base, time.Now().UnixNano())
}

func TestWorkOrderStore_Emulator(t *testing.T) {
	client := emulatorClient(t)
	store := NewWorkOrderStore(client, uniqueCollection(t, "production_tasks"))
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	rows := []entity.SubmittedTask{
		{Task: entity.Task{WOID: "A1", WLID: "M-1", DeptID: "GQ"}, Status: "P", WrittenAt: "2025-03-01 08:00:00"},
		{Task: entity.Task{WOID: "A2", WLID: "M-2", DeptID: "LC"}, Status: "P", WrittenAt: "2025-03-01 09:00:00"},
	}
	require.NoError(t, store.CommitBatch(ctx, rows))

	existing, err := store.ExistingIDs(ctx, []string{"A1", "A3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"A1": true}, existing)

	// 任一工单号已存在，整批不写
	err = store.CommitBatch(ctx, []entity.SubmittedTask{
		{Task: entity.Task{WOID: "A3"}, WrittenAt: "2025-03-01 10:00:00"},
		{Task: entity.Task{WOID: "A1"}, WrittenAt: "2025-03-01 10:00:00"},
	})
	assert.ErrorIs(t, err, ErrDuplicateWOID)
	existing, err = store.ExistingIDs(ctx, []string{"A3"})
	require.NoError(t, err)
	assert.Empty(t, existing)

	list, total, err := store.ListSubmitted(ctx, entity.ListParams{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, "A2", list[0].WOID)

	list, total, err = store.ListSubmitted(ctx, entity.ListParams{Keyword: "M-1"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "A1", list[0].WOID)
}

func TestMaterialLookup_Emulator(t *testing.T) {
	client := emulatorClient(t)
	coll := uniqueCollection(t, "WLXX")
	_, err := client.Collection(coll).Doc("m1").Set(context.Background(), map[string]interface{}{materialIDField: "KNOWN"})
	require.NoError(t, err)

	l := NewMaterialLookup(client, coll)
	ok, err := l.MaterialExists(context.Background(), "KNOWN")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.MaterialExists(context.Background(), "UNKNOWN")
	require.NoError(t, err)
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.MaterialExists(ctx, "KNOWN")
	assert.ErrorIs(t, err, lookup.ErrUnavailable)
}

func TestSequenceStore_Emulator(t *testing.T) {
	client := emulatorClient(t)
	seq := NewSequenceStore(client, uniqueCollection(t, "wo_sequences"))
	ctx := context.Background()

	first, err := seq.Reserve(ctx, "woid:250301", 3)
	require.NoError(t, err)
	assert.EqualValues(t, 1, first)

	next, err := seq.Reserve(ctx, "woid:250301", 1)
	require.NoError(t, err)
	assert.EqualValues(t, 4, next)
}
