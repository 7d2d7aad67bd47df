// Package lookup checks material codes against the ERP material master.
// Lookups never retry; callers turn errors into row failures.
package lookup

import "errors"

var (
	// ErrUnavailable 无法连接物料主数据
	ErrUnavailable = errors.New("material master unavailable")
	// ErrQuery 查询执行失败
	ErrQuery = errors.New("material master query failed")
)
