package handler

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/lookup"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/repository"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/service"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/sse"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/testutil"
)

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	hub    *sse.Hub
}

func setupTest(t *testing.T) *testServer {
	t.Helper()
	db := testutil.SetupTestDB(t)
	testutil.SeedMaterials(t, db, "KNOWN", "M-1001")
	testutil.SeedTestUser(t, db, "test-user-002", "Test Operator", "operator@test.com", entity.RoleOperator)

	repos := repository.NewRepositories(db)
	hub := sse.NewHub(zap.NewNop())
	cfg := testutil.TestConfig()

	svc, err := service.NewServices(service.Deps{
		Store:     repos.WorkOrder,
		Lookup:    repos.Material,
		Sequences: repos.Sequence,
		Users:     repos.User,
		Events:    hub,
	}, cfg, zap.NewNop())
	require.NoError(t, err)

	router := testutil.SetupRouter()
	h := NewHandlers(svc, repos.WorkOrder, hub, cfg, BuildInfo{Version: "test"}, zap.NewNop())
	RegisterRoutes(router, h, testutil.JWTSecret)

	return &testServer{router: router, db: db, hub: hub}
}

func batch(tasks ...entity.Task) BatchRequest {
	return BatchRequest{Tasks: tasks}
}

func TestSubmitBatch_Committed(t *testing.T) {
	ts := setupTest(t)

	w := testutil.DoRequest(ts.router, "POST", "/api/v1/work-orders/batch",
		batch(testutil.NewTask("B2", "KNOWN")), testutil.OperatorToken())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, true, data["success"])
	assert.Equal(t, "committed", data["state"])
	assert.EqualValues(t, 1, data["submitted"])

	var saved entity.SubmittedTask
	require.NoError(t, ts.db.First(&saved, "wo_woid = ?", "B2").Error)
	assert.Equal(t, entity.StatusPlanned, saved.Status)
	assert.Equal(t, "test-user-002", saved.WriterID)
	assert.Equal(t, "Test Operator", saved.WriterName)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`, saved.WrittenAt)
	assert.Regexp(t, `^\d{14}-H0001$`, saved.ZLH)
}

func TestSubmitBatch_Rejected(t *testing.T) {
	ts := setupTest(t)

	zero := testutil.NewTask("A2", "KNOWN")
	zero.Quantity = "0"
	w := testutil.DoRequest(ts.router, "POST", "/api/v1/work-orders/batch",
		batch(testutil.NewTask("A1", "KNOWN"), zero, testutil.NewTask("A3", "NOPE")), testutil.OperatorToken())
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	resp := testutil.ParseResponse(w)
	assert.EqualValues(t, 42200, resp["code"])
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "rejected", data["state"])

	errs := data["errors"].([]interface{})
	require.Len(t, errs, 2)
	first := errs[0].(map[string]interface{})
	assert.EqualValues(t, 1, first["rowIndex"])
	assert.Equal(t, "WO_XQSL: quantity must be > 0.", first["message"])
	second := errs[1].(map[string]interface{})
	assert.EqualValues(t, 2, second["rowIndex"])

	var count int64
	ts.db.Model(&entity.SubmittedTask{}).Count(&count)
	assert.Zero(t, count)
}

func TestSubmitBatch_EmptyAndMalformed(t *testing.T) {
	ts := setupTest(t)

	w := testutil.DoRequest(ts.router, "POST", "/api/v1/work-orders/batch", batch(), testutil.OperatorToken())
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	req := httptest.NewRequest("POST", "/api/v1/work-orders/batch", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+testutil.OperatorToken())
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitBatch_RequiresOperator(t *testing.T) {
	ts := setupTest(t)

	w := testutil.DoRequest(ts.router, "POST", "/api/v1/work-orders/batch", batch(testutil.NewTask("B2", "KNOWN")), testutil.ViewerToken())
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testutil.DoRequest(ts.router, "POST", "/api/v1/work-orders/batch", batch(testutil.NewTask("B2", "KNOWN")), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// admin 总是放行
	w = testutil.DoRequest(ts.router, "POST", "/api/v1/work-orders/batch", batch(testutil.NewTask("B2", "KNOWN")), testutil.DefaultTestToken())
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestValidateBatch_DoesNotWrite(t *testing.T) {
	ts := setupTest(t)

	w := testutil.DoRequest(ts.router, "POST", "/api/v1/work-orders/validate",
		batch(testutil.NewTask("V1", "KNOWN")), testutil.OperatorToken())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	assert.Equal(t, "valid", data["state"])

	var count int64
	ts.db.Model(&entity.SubmittedTask{}).Count(&count)
	assert.Zero(t, count)
}

func TestNextIDs(t *testing.T) {
	ts := setupTest(t)

	w := testutil.DoRequest(ts.router, "GET", "/api/v1/work-orders/ids?count=3", nil, testutil.OperatorToken())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ids := testutil.ParseResponse(w)["data"].(map[string]interface{})["ids"].([]interface{})
	require.Len(t, ids, 3)
	for _, id := range ids {
		assert.Regexp(t, `^UW\d{6}0[1-3]$`, id)
	}

	w = testutil.DoRequest(ts.router, "GET", "/api/v1/work-orders/ids?count=0", nil, testutil.OperatorToken())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = testutil.DoRequest(ts.router, "GET", "/api/v1/work-orders/ids?count=x", nil, testutil.OperatorToken())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListWorkOrders(t *testing.T) {
	ts := setupTest(t)
	testutil.DoRequest(ts.router, "POST", "/api/v1/work-orders/batch",
		batch(testutil.NewTask("L1", "KNOWN"), testutil.NewTask("L2", "M-1001")), testutil.OperatorToken())

	w := testutil.DoRequest(ts.router, "GET", "/api/v1/work-orders?keyword=L2", nil, testutil.ViewerToken())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "L2", items[0].(map[string]interface{})["WO_WOID"])
	pagination := data["pagination"].(map[string]interface{})
	assert.EqualValues(t, 1, pagination["total"])
}

func TestImport(t *testing.T) {
	ts := setupTest(t)

	csv := "WO_WOID,WO_WLID,WO_XQSL,WO_JHKGRQ,WO_JHWGRQ,WO_BMID\nUW1,KNOWN,2,2025-03-01,2025-03-02,GQ\n"
	w := testutil.DoUpload(ts.router, "/api/v1/work-orders/import", "file", "rows.csv", strings.NewReader(csv), testutil.OperatorToken())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rows := testutil.ParseResponse(w)["data"].(map[string]interface{})["rows"].([]interface{})
	require.Len(t, rows, 1)
	assert.Equal(t, "UW1", rows[0].(map[string]interface{})["WO_WOID"])
	assert.NotEmpty(t, rows[0].(map[string]interface{})["rowId"])

	w = testutil.DoUpload(ts.router, "/api/v1/work-orders/import", "file", "rows.pdf", strings.NewReader("x"), testutil.OperatorToken())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTemplateDownload(t *testing.T) {
	ts := setupTest(t)

	w := testutil.DoRequest(ts.router, "GET", "/api/v1/work-orders/template", nil, testutil.ViewerToken())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Tasks")
	require.NoError(t, err)
	assert.Equal(t, entity.FieldWOID, rows[0][0])
}

func TestExport(t *testing.T) {
	ts := setupTest(t)
	testutil.DoRequest(ts.router, "POST", "/api/v1/work-orders/batch", batch(testutil.NewTask("E1", "KNOWN")), testutil.OperatorToken())

	w := testutil.DoRequest(ts.router, "GET", "/api/v1/work-orders/export", nil, testutil.ViewerToken())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "WorkOrders_")

	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("WorkOrders")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "E1", rows[1][0])
}

func TestDepartments(t *testing.T) {
	ts := setupTest(t)

	w := testutil.DoRequest(ts.router, "GET", "/api/v1/departments", nil, testutil.ViewerToken())
	require.Equal(t, http.StatusOK, w.Code)
	items := testutil.ParseResponse(w)["data"].(map[string]interface{})["items"].([]interface{})
	require.Len(t, items, 3)
	assert.Equal(t, "GQ", items[0].(map[string]interface{})["value"])
	assert.Equal(t, "GQ2", items[2].(map[string]interface{})["value"])
}

func TestAuthFlow(t *testing.T) {
	ts := setupTest(t)

	w := testutil.DoRequest(ts.router, "POST", "/api/v1/auth/login",
		map[string]string{"email": "operator@test.com", "password": testutil.TestPassword}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	access := data["access_token"].(string)
	refresh := data["refresh_token"].(string)

	w = testutil.DoRequest(ts.router, "GET", "/api/v1/auth/me", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	me := testutil.ParseResponse(w)["data"].(map[string]interface{})
	assert.Equal(t, "operator@test.com", me["email"])

	// 登录得到的token可以直接提交
	w = testutil.DoRequest(ts.router, "POST", "/api/v1/work-orders/batch", batch(testutil.NewTask("T1", "KNOWN")), access)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.DoRequest(ts.router, "POST", "/api/v1/auth/refresh", map[string]string{"refresh_token": refresh}, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.DoRequest(ts.router, "POST", "/api/v1/auth/login",
		map[string]string{"email": "operator@test.com", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.EqualValues(t, 40101, testutil.ParseResponse(w)["code"])
}

func TestHealth(t *testing.T) {
	ts := setupTest(t)

	w := testutil.DoRequest(ts.router, "GET", "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.DoRequest(ts.router, "GET", "/version", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test", testutil.ParseResponse(w)["version"])

	sqlDB, err := ts.db.DB()
	require.NoError(t, err)
	sqlDB.Close()
	w = testutil.DoRequest(ts.router, "GET", "/health/ready", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type stubLookup struct {
	exists bool
	err    error
}

func (s stubLookup) MaterialExists(context.Context, string) (bool, error) {
	return s.exists, s.err
}

func TestValidateWLID(t *testing.T) {
	tests := map[string]struct {
		lookup   stubLookup
		body     interface{}
		wantCode int
		wantBody string
	}{
		"exists": {
			lookup:   stubLookup{exists: true},
			body:     map[string]string{"woWlid": "KNOWN"},
			wantCode: http.StatusOK,
			wantBody: `{"exists":true,"woWlid":"KNOWN"}`,
		},
		"missing": {
			lookup:   stubLookup{},
			body:     map[string]string{"woWlid": "NOPE"},
			wantCode: http.StatusOK,
			wantBody: `{"exists":false,"woWlid":"NOPE"}`,
		},
		"blank": {
			body:     map[string]string{"woWlid": "  "},
			wantCode: http.StatusBadRequest,
			wantBody: `{"error":"WO_WLID is required"}`,
		},
		"no body": {
			wantCode: http.StatusBadRequest,
			wantBody: `{"error":"WO_WLID is required"}`,
		},
		"unavailable": {
			lookup:   stubLookup{err: fmt.Errorf("%w: dial", lookup.ErrUnavailable)},
			body:     map[string]string{"woWlid": "KNOWN"},
			wantCode: http.StatusServiceUnavailable,
			wantBody: `{"error":"Database connection failed. Please contact the administrator."}`,
		},
		"query failure": {
			lookup:   stubLookup{err: fmt.Errorf("%w: ORA-00942", lookup.ErrQuery)},
			body:     map[string]string{"woWlid": "KNOWN"},
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"Database validation failed. Please contact the administrator."}`,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			router := testutil.SetupRouter()
			router.POST("/api/validate-wlid", NewLookupHandler(tc.lookup, zap.NewNop()).ValidateWLID)

			w := testutil.DoRequest(router, "POST", "/api/validate-wlid", tc.body, "")
			assert.Equal(t, tc.wantCode, w.Code)
			assert.JSONEq(t, tc.wantBody, w.Body.String())
		})
	}
}

func TestValidateWLID_AgainstGateway(t *testing.T) {
	router := testutil.SetupRouter()
	router.POST("/api/validate-wlid", NewLookupHandler(stubLookup{exists: true}, zap.NewNop()).ValidateWLID)
	srv := httptest.NewServer(router)
	defer srv.Close()

	// 本服务的接口与远端网关客户端互通
	gw := lookup.NewHTTPGateway(srv.URL+"/api/validate-wlid", time.Second)
	ok, err := gw.MaterialExists(context.Background(), "KNOWN")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSSEStream(t *testing.T) {
	ts := setupTest(t)
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/v1/sse/events?token="+testutil.ViewerToken(), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	require.Eventually(t, func() bool { return ts.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	w := testutil.DoRequest(ts.router, "POST", "/api/v1/work-orders/batch", batch(testutil.NewTask("S1", "KNOWN")), testutil.OperatorToken())
	require.Equal(t, http.StatusOK, w.Code)

	var event, data string
	for event == "" || data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: "+service.EventWorkOrdersCommitted):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case event != "" && strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
	assert.Contains(t, data, `"woids":["S1"]`)
}
