package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tao-Zi-Liu/WoInsert/internal/config"
	"github.com/Tao-Zi-Liu/WoInsert/internal/middleware"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	JWTSecret = "woinsert-test-jwt-secret"
	// TestPassword 种子用户的明文密码
	TestPassword = "Passw0rd!"
)

// TestEnv holds test environment resources
type TestEnv struct {
	DB     *gorm.DB
	Router *gin.Engine
	T      *testing.T
}

// SetupTestDB opens a private in-memory SQLite database with all tables migrated.
// A single connection keeps every query on the same in-memory database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := entity.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// TestConfig returns a config with the defaults a fresh install would get
func TestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{MaxUploadMB: 10},
		Database: config.DatabaseConfig{
			Store:  config.StoreRelational,
			Driver: "sqlite",
		},
		Lookup: config.LookupConfig{Backend: config.LookupStore},
		AI:     config.AIConfig{Mode: config.AIModeOff},
		JWT: config.JWTConfig{
			Secret:             JWTSecret,
			AccessTokenExpire:  2 * time.Hour,
			RefreshTokenExpire: 24 * time.Hour,
			Issuer:             "woinsert-test",
		},
		WorkOrder: config.WorkOrderConfig{
			Timezone:              "Asia/Shanghai",
			GenerateZLH:           true,
			CheckGlobalUniqueness: true,
			MaxConcurrency:        8,
			MaxBatchSize:          500,
			CommitTimeout:         5 * time.Second,
			SequenceBackend:       "store",
		},
		Departments: config.DefaultDepartments(),
	}
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name, email string, roles []string) string {
	if roles == nil {
		roles = []string{}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"email": email,
		"roles": roles,
		"iss":   "woinsert-test",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DefaultTestToken returns a token for a default admin test user
func DefaultTestToken() string {
	return GenerateTestToken("test-user-001", "Test Admin", "admin@test.com", []string{entity.RoleAdmin})
}

// OperatorToken returns a token for an operator
func OperatorToken() string {
	return GenerateTestToken("test-user-002", "Test Operator", "operator@test.com", []string{entity.RoleOperator})
}

// ViewerToken returns a token for a read-only user
func ViewerToken() string {
	return GenerateTestToken("test-user-003", "Test Viewer", "viewer@test.com", []string{entity.RoleViewer})
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// DoUpload posts a single multipart file field
func DoUpload(r *gin.Engine, path, field, filename string, content io.Reader, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile(field, filename)
	io.Copy(part, content)
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a handler.Response-like map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedTestUser creates a user whose password is TestPassword
func SeedTestUser(t *testing.T, db *gorm.DB, id, name, email, role string) *entity.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	user := &entity.User{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Status:       "active",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to seed test user: %v", err)
	}
	return user
}

// SeedMaterials inserts rows into the WLXX material master
func SeedMaterials(t *testing.T, db *gorm.DB, wlids ...string) {
	t.Helper()
	for _, id := range wlids {
		if err := db.Create(&entity.Material{WLID: id, Name: "物料" + id}).Error; err != nil {
			t.Fatalf("Failed to seed material %s: %v", id, err)
		}
	}
}

// NewTask builds a row that passes every deterministic check
func NewTask(woid, wlid string) entity.Task {
	return entity.Task{
		WOID:         woid,
		WLID:         wlid,
		Quantity:     "10",
		PlannedStart: "2025-03-01",
		PlannedEnd:   "2025-03-05",
		DeptID:       "GQ",
	}
}
