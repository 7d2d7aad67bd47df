package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Firestore   FirestoreConfig   `mapstructure:"firestore"`
	Oracle      OracleConfig      `mapstructure:"oracle"`
	Lookup      LookupConfig      `mapstructure:"lookup"`
	AI          AIConfig          `mapstructure:"ai"`
	MinIO       MinIOConfig       `mapstructure:"minio"`
	Feishu      FeishuConfig      `mapstructure:"feishu"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Log         LogConfig         `mapstructure:"log"`
	WorkOrder   WorkOrderConfig   `mapstructure:"work_order"`
	Departments []DepartmentEntry `mapstructure:"departments"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadMB     int64         `mapstructure:"max_upload_mb"`
}

// 存储后端
const (
	StoreRelational = "relational"
	StoreFirestore  = "firestore"
)

type DatabaseConfig struct {
	// Store 选择持久化后端: relational | firestore
	Store           string        `mapstructure:"store"`
	Driver          string        `mapstructure:"driver"` // postgres | sqlite
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Enabled redis是否已配置
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type FirestoreConfig struct {
	ProjectID          string `mapstructure:"project_id"`
	ClientEmail        string `mapstructure:"client_email"`
	PrivateKey         string `mapstructure:"private_key"`
	CredentialsFile    string `mapstructure:"credentials_file"`
	Collection         string `mapstructure:"collection"`
	MaterialCollection string `mapstructure:"material_collection"`
	SequenceCollection string `mapstructure:"sequence_collection"`
}

type OracleConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	ServiceName string `mapstructure:"service_name"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
}

// 物料校验后端
const (
	LookupStore  = "store"
	LookupOracle = "oracle"
	LookupHTTP   = "http"
)

type LookupConfig struct {
	// Backend: store | oracle | http
	Backend  string        `mapstructure:"backend"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AI校验模式
const (
	AIModeOff      = "off"
	AIModeAdvisory = "advisory"
	AIModeEnforce  = "enforce"
)

type AIConfig struct {
	Mode     string        `mapstructure:"mode"`
	Provider string        `mapstructure:"provider"` // anthropic | gemini
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type FeishuConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	ChatID    string `mapstructure:"chat_id"`
	BaseURL   string `mapstructure:"base_url"`
}

// Enabled 飞书通知是否已配置
func (c FeishuConfig) Enabled() bool {
	return c.AppID != "" && c.AppSecret != "" && c.ChatID != ""
}

type JWTConfig struct {
	Secret             string        `mapstructure:"secret"`
	AccessTokenExpire  time.Duration `mapstructure:"access_token_expire"`
	RefreshTokenExpire time.Duration `mapstructure:"refresh_token_expire"`
	Issuer             string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type WorkOrderConfig struct {
	Timezone              string        `mapstructure:"timezone"`
	GenerateZLH           bool          `mapstructure:"generate_zlh"`
	CheckGlobalUniqueness bool          `mapstructure:"check_global_uniqueness"`
	MaxConcurrency        int           `mapstructure:"max_concurrency"`
	MaxBatchSize          int           `mapstructure:"max_batch_size"`
	CommitTimeout         time.Duration `mapstructure:"commit_timeout"`
	// SequenceBackend: store | redis
	SequenceBackend string `mapstructure:"sequence_backend"`
}

// DepartmentEntry 部门字典项
type DepartmentEntry struct {
	Code  string `mapstructure:"code"`
	Label string `mapstructure:"label"`
	Order int    `mapstructure:"order"`
}

func Load() (*Config, error) {
	v := viper.New()

	// 设置配置文件
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// 配置文件不存在，使用默认值和环境变量
	}

	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(cfg.Departments) == 0 {
		cfg.Departments = DefaultDepartments()
	}
	// 私钥在环境变量里通常是转义的换行
	cfg.Firestore.PrivateKey = strings.ReplaceAll(cfg.Firestore.PrivateKey, `\n`, "\n")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.max_upload_mb", 10)

	v.SetDefault("database.store", StoreRelational)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite_path", "woinsert.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 10*time.Minute)
	v.SetDefault("database.connect_timeout", 30*time.Second)

	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("firestore.collection", "production_tasks")
	v.SetDefault("firestore.material_collection", "WLXX")
	v.SetDefault("firestore.sequence_collection", "wo_sequences")

	v.SetDefault("oracle.port", 1521)

	v.SetDefault("lookup.backend", LookupStore)
	v.SetDefault("lookup.timeout", 10*time.Second)

	v.SetDefault("ai.mode", AIModeOff)
	v.SetDefault("ai.provider", "anthropic")
	v.SetDefault("ai.timeout", 30*time.Second)

	v.SetDefault("feishu.base_url", "https://open.feishu.cn")

	v.SetDefault("jwt.access_token_expire", 2*time.Hour)
	v.SetDefault("jwt.refresh_token_expire", 7*24*time.Hour)
	v.SetDefault("jwt.issuer", "woinsert")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("work_order.timezone", "Asia/Shanghai")
	v.SetDefault("work_order.generate_zlh", true)
	v.SetDefault("work_order.check_global_uniqueness", true)
	v.SetDefault("work_order.max_concurrency", 16)
	v.SetDefault("work_order.max_batch_size", 500)
	v.SetDefault("work_order.commit_timeout", 30*time.Second)
	v.SetDefault("work_order.sequence_backend", "store")
}

func bindEnvVariables(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.mode", "SERVER_MODE")

	// Database
	v.BindEnv("database.store", "DB_STORE")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Firestore
	v.BindEnv("firestore.project_id", "FIREBASE_PROJECT_ID")
	v.BindEnv("firestore.client_email", "FIREBASE_CLIENT_EMAIL")
	v.BindEnv("firestore.private_key", "FIREBASE_PRIVATE_KEY")
	v.BindEnv("firestore.credentials_file", "GOOGLE_APPLICATION_CREDENTIALS")

	// Oracle
	v.BindEnv("oracle.host", "ORACLE_HOST")
	v.BindEnv("oracle.port", "ORACLE_PORT")
	v.BindEnv("oracle.service_name", "ORACLE_SERVICE_NAME")
	v.BindEnv("oracle.user", "ORACLE_USER")
	v.BindEnv("oracle.password", "ORACLE_PASSWORD")

	// Lookup / AI
	v.BindEnv("lookup.backend", "LOOKUP_BACKEND")
	v.BindEnv("lookup.endpoint", "LOOKUP_ENDPOINT")
	v.BindEnv("ai.mode", "AI_MODE")
	v.BindEnv("ai.provider", "AI_PROVIDER")
	v.BindEnv("ai.api_key", "AI_API_KEY")

	// MinIO
	v.BindEnv("minio.endpoint", "MINIO_ENDPOINT")
	v.BindEnv("minio.access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("minio.secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("minio.bucket", "MINIO_BUCKET")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Feishu
	v.BindEnv("feishu.app_id", "FEISHU_APP_ID")
	v.BindEnv("feishu.app_secret", "FEISHU_APP_SECRET")
	v.BindEnv("feishu.chat_id", "FEISHU_CHAT_ID")
}

// DefaultDepartments 默认部门字典
// 国内仓储原先与曲阜谷雅共用GQ，这里使用独立编码
func DefaultDepartments() []DepartmentEntry {
	return []DepartmentEntry{
		{Code: "GQ", Label: "曲阜谷雅", Order: 1},
		{Code: "LC", Label: "质检部门", Order: 2},
		{Code: "GQ2", Label: "国内仓储", Order: 3},
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Database.Store {
	case StoreRelational, StoreFirestore:
	default:
		return fmt.Errorf("unknown database.store %q", c.Database.Store)
	}
	if c.Database.Store == StoreRelational {
		switch c.Database.Driver {
		case "postgres", "sqlite":
		default:
			return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
		}
	}
	if c.Database.Store == StoreFirestore && c.Firestore.ProjectID == "" {
		return fmt.Errorf("firestore.project_id is required for the firestore store")
	}

	switch c.Lookup.Backend {
	case LookupStore:
	case LookupOracle:
		if c.Oracle.Host == "" || c.Oracle.ServiceName == "" {
			return fmt.Errorf("oracle.host and oracle.service_name are required for the oracle lookup")
		}
	case LookupHTTP:
		if c.Lookup.Endpoint == "" {
			return fmt.Errorf("lookup.endpoint is required for the http lookup")
		}
	default:
		return fmt.Errorf("unknown lookup.backend %q", c.Lookup.Backend)
	}

	switch c.AI.Mode {
	case AIModeOff, AIModeAdvisory, AIModeEnforce:
	default:
		return fmt.Errorf("unknown ai.mode %q", c.AI.Mode)
	}

	switch c.WorkOrder.SequenceBackend {
	case "store":
	case "redis":
		if !c.Redis.Enabled() {
			return fmt.Errorf("work_order.sequence_backend=redis requires redis.host")
		}
	default:
		return fmt.Errorf("unknown work_order.sequence_backend %q", c.WorkOrder.SequenceBackend)
	}

	if _, err := time.LoadLocation(c.WorkOrder.Timezone); err != nil {
		return fmt.Errorf("invalid work_order.timezone: %w", err)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}

	return ValidateDepartments(c.Departments)
}

// ValidateDepartments 部门编码必须唯一且非空
func ValidateDepartments(deps []DepartmentEntry) error {
	seen := make(map[string]string, len(deps))
	for _, d := range deps {
		code := strings.TrimSpace(d.Code)
		if code == "" {
			return fmt.Errorf("department %q has an empty code", d.Label)
		}
		if prev, ok := seen[code]; ok {
			return fmt.Errorf("department code %q is used by both %q and %q", code, prev, d.Label)
		}
		seen[code] = d.Label
	}
	return nil
}

// SortedDepartments 按显示顺序返回部门
func (c *Config) SortedDepartments() []DepartmentEntry {
	out := make([]DepartmentEntry, len(c.Departments))
	copy(out, c.Departments)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}
