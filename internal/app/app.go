// Package app wires configuration into live clients, services and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/Tao-Zi-Liu/WoInsert/internal/config"
	"github.com/Tao-Zi-Liu/WoInsert/internal/middleware"
	"github.com/Tao-Zi-Liu/WoInsert/internal/shared/feishu"
	"github.com/Tao-Zi-Liu/WoInsert/internal/shared/storage"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/docstore"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/handler"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/llm"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/lookup"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/repository"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/service"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/sse"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App 进程内所有长生命周期对象
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *gorm.DB
	Redis    *redis.Client
	Hub      *sse.Hub
	Store    service.Store
	Services *service.Services
	Handlers *handler.Handlers

	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, namedCloser{name: name, close: fn})
}

// Build 按配置初始化全部客户端和服务；失败时已打开的客户端会被关闭
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, build handler.BuildInfo) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if err := a.build(ctx, build); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, build handler.BuildInfo) error {
	cfg, logger := a.Config, a.Logger

	// 用户表始终在关系库里，Firestore模式下也一样
	db, err := OpenDatabase(ctx, cfg.Database, cfg.Log.Level)
	if err != nil {
		return err
	}
	a.DB = db
	a.onClose("database", func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	if err := entity.AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	repos := repository.NewRepositories(db)

	if cfg.Redis.Enabled() {
		rdb, err := OpenRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		a.Redis = rdb
		a.onClose("redis", rdb.Close)
	}

	deps := service.Deps{
		Users: repos.User,
		Redis: a.Redis,
	}

	var fs *firestore.Client
	if cfg.Database.Store == config.StoreFirestore {
		fs, err = docstore.NewClient(ctx, cfg.Firestore)
		if err != nil {
			return err
		}
		a.onClose("firestore", fs.Close)
		deps.Store = docstore.NewWorkOrderStore(fs, cfg.Firestore.Collection)
		logger.Info("Using Firestore store", zap.String("project", cfg.Firestore.ProjectID))
	} else {
		deps.Store = repos.WorkOrder
		logger.Info("Using relational store", zap.String("driver", cfg.Database.Driver))
	}
	a.Store = deps.Store

	switch cfg.Lookup.Backend {
	case config.LookupOracle:
		gw, err := lookup.OpenOracle(lookup.OracleOptions{
			Host:        cfg.Oracle.Host,
			Port:        cfg.Oracle.Port,
			ServiceName: cfg.Oracle.ServiceName,
			User:        cfg.Oracle.User,
			Password:    cfg.Oracle.Password,
			MaxOpen:     cfg.WorkOrder.MaxConcurrency,
		}, logger.Named("oracle"))
		if err != nil {
			return err
		}
		a.onClose("oracle", gw.Close)
		deps.Lookup = gw
	case config.LookupHTTP:
		deps.Lookup = lookup.NewHTTPGateway(cfg.Lookup.Endpoint, cfg.Lookup.Timeout)
	default:
		if fs != nil {
			deps.Lookup = docstore.NewMaterialLookup(fs, cfg.Firestore.MaterialCollection)
		} else {
			deps.Lookup = repos.Material
		}
	}

	switch {
	case cfg.WorkOrder.SequenceBackend == "redis":
		deps.Sequences = service.NewRedisSequence(a.Redis)
	case fs != nil:
		deps.Sequences = docstore.NewSequenceStore(fs, cfg.Firestore.SequenceCollection)
	default:
		deps.Sequences = repos.Sequence
	}

	model, err := llm.NewModel(ctx, cfg.AI, logger.Named("llm"))
	if err != nil {
		return err
	}
	if model != nil {
		validator, err := llm.NewValidator(model)
		if err != nil {
			return err
		}
		deps.AI = validator
		logger.Info("AI validation enabled", zap.String("mode", cfg.AI.Mode), zap.String("provider", cfg.AI.Provider))
	}

	a.Hub = sse.NewHub(logger.Named("sse"))
	deps.Events = a.Hub

	if cfg.Feishu.Enabled() {
		client := feishu.NewClient(cfg.Feishu.BaseURL, cfg.Feishu.AppID, cfg.Feishu.AppSecret)
		deps.Notifier = feishu.NewNotifier(client, cfg.Feishu.ChatID, logger.Named("feishu"))
	}

	archive, err := storage.NewMinIOArchive(cfg.MinIO)
	if err != nil {
		return err
	}
	if archive != nil {
		if err := archive.EnsureBucket(ctx); err != nil {
			// 归档不可用不影响导入
			logger.Warn("MinIO bucket unavailable, import archive disabled", zap.Error(err))
		} else {
			deps.Archive = archive
		}
	}

	svc, err := service.NewServices(deps, cfg, logger)
	if err != nil {
		return err
	}
	a.Services = svc
	a.Handlers = handler.NewHandlers(svc, deps.Store, a.Hub, cfg, build, logger)
	return nil
}

// Router 创建带中间件的gin引擎
func (a *App) Router() *gin.Engine {
	if a.Config.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(a.Logger))
	router.Use(middleware.CORS())
	// SSE需要逐条flush，不走压缩
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/sse"})))

	handler.RegisterRoutes(router, a.Handlers, a.Config.JWT.Secret)
	return router
}

// Close 按打开的逆序关闭客户端
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.Logger.Warn("Failed to close client", zap.String("client", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
