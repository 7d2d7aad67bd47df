package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tao-Zi-Liu/WoInsert/internal/config"
)

func TestNewMinIOArchive_Disabled(t *testing.T) {
	a, err := NewMinIOArchive(config.MinIOConfig{})
	require.NoError(t, err)
	assert.Nil(t, a)
}

// 需要本地MinIO: MINIO_TEST_ENDPOINT=localhost:9000
func TestMinIOArchive_RoundTrip(t *testing.T) {
	endpoint := os.Getenv("MINIO_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_TEST_ENDPOINT not set")
	}
	a, err := NewMinIOArchive(config.MinIOConfig{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("MINIO_TEST_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_TEST_SECRET_KEY"),
		Bucket:    fmt.Sprintf("woinsert-test-%d", time.Now().UnixNano()),
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, a.EnsureBucket(ctx))
	require.NoError(t, a.EnsureBucket(ctx))

	require.NoError(t, a.Put(ctx, "imports/2025/03/01/x-tasks.csv", []byte("WO_WOID\nA\n"), "text/csv"))
	data, err := a.Get(ctx, "imports/2025/03/01/x-tasks.csv")
	require.NoError(t, err)
	assert.Equal(t, "WO_WOID\nA\n", string(data))
}
