package lookup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	go_ora "github.com/sijms/go-ora/v2"
	"go.uber.org/zap"
)

const wlxxCountSQL = `SELECT COUNT(*) FROM WLXX WHERE WLXX_WLID = :1`

// OracleOptions Oracle连接参数
type OracleOptions struct {
	Host        string
	Port        int
	ServiceName string
	User        string
	Password    string
	MaxOpen     int
}

// OracleGateway 直连ERP Oracle库查询WLXX
type OracleGateway struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenOracle 打开连接池，不在此处建立连接
func OpenOracle(opts OracleOptions, logger *zap.Logger) (*OracleGateway, error) {
	dsn := go_ora.BuildUrl(opts.Host, opts.Port, opts.ServiceName, opts.User, opts.Password, nil)
	db, err := sql.Open("oracle", dsn)
	if err != nil {
		return nil, fmt.Errorf("open oracle pool: %w", err)
	}
	if opts.MaxOpen > 0 {
		db.SetMaxOpenConns(opts.MaxOpen)
		db.SetMaxIdleConns(opts.MaxOpen)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewOracleGateway(db, logger), nil
}

// NewOracleGateway 使用已有连接池
func NewOracleGateway(db *sql.DB, logger *zap.Logger) *OracleGateway {
	return &OracleGateway{db: db, logger: logger}
}

// MaterialExists 每次调用从池中取一个连接，用完归还
func (g *OracleGateway) MaterialExists(ctx context.Context, wlid string) (bool, error) {
	conn, err := g.db.Conn(ctx)
	if err != nil {
		g.logger.Error("oracle connection failed", zap.Error(err))
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer conn.Close()

	if err := conn.PingContext(ctx); err != nil {
		g.logger.Error("oracle ping failed", zap.Error(err))
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var count int64
	if err := conn.QueryRowContext(ctx, wlxxCountSQL, wlid).Scan(&count); err != nil {
		g.logger.Error("WLXX query failed", zap.String("wlid", wlid), zap.Error(err))
		return false, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return count > 0, nil
}

// Close 关闭连接池
func (g *OracleGateway) Close() error {
	return g.db.Close()
}
