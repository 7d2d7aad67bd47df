package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/repository"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/testutil"
)

func seedSubmitted(t *testing.T, repo *repository.WorkOrderRepository) {
	t.Helper()
	rows := []entity.SubmittedTask{
		{Task: testutil.NewTask("UW25030101", "M-1"), WrittenAt: "2025-03-01 08:00:00"},
		{Task: testutil.NewTask("UW25030102", "M-2"), WrittenAt: "2025-03-01 09:00:00"},
		{Task: testutil.NewTask("UW25030201", "M-1"), WrittenAt: "2025-03-02 10:00:00"},
	}
	for i := range rows {
		rows[i].FactoryID = entity.FactoryCode
		rows[i].OrderType = entity.OrderTypeMPS
		rows[i].Status = entity.StatusPlanned
		rows[i].Dispatched = entity.NotDispatched
		rows[i].WriterID = "GYGJ240328"
	}
	rows[2].DeptID = "LC"
	require.NoError(t, repo.CommitBatch(context.Background(), rows))
}

func TestHistoryService_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewWorkOrderRepository(db)
	seedSubmitted(t, repo)
	svc := NewHistoryService(repo)
	ctx := context.Background()

	list, total, err := svc.List(ctx, entity.ListParams{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, list, 3)
	assert.Equal(t, "UW25030201", list[0].WOID, "newest first")

	list, total, err = svc.List(ctx, entity.ListParams{DeptID: "LC"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "UW25030201", list[0].WOID)

	list, _, err = svc.List(ctx, entity.ListParams{Keyword: "M-2"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "UW25030102", list[0].WOID)

	list, total, err = svc.List(ctx, entity.ListParams{Page: 2, Size: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, list, 1)
}

func TestHistoryService_Export(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewWorkOrderRepository(db)
	seedSubmitted(t, repo)

	f, filename, err := NewHistoryService(repo).Export(context.Background(), entity.ListParams{})
	require.NoError(t, err)
	defer f.Close()
	assert.Regexp(t, `^WorkOrders_\d{14}\.xlsx$`, filename)

	rows, err := f.GetRows("WorkOrders")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, historyExportHeaders, rows[0])
	assert.Equal(t, "UW25030201", rows[1][0])
	assert.Equal(t, "2025-03-02 10:00:00", rows[1][len(historyExportHeaders)-1])
}
