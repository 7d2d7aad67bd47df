package entity

import "time"

// Material ERP物料主数据（WLXX表）
type Material struct {
	WLID string `json:"WLXX_WLID" gorm:"column:WLXX_WLID;primaryKey;size:64"`
	Name string `json:"WLXX_WLMC" gorm:"column:WLXX_WLMC;size:128"`
}

func (Material) TableName() string {
	return "WLXX"
}

// Sequence 按天递增的编号计数器
type Sequence struct {
	Scope     string    `gorm:"primaryKey;size:64"`
	Value     int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Sequence) TableName() string {
	return "wo_sequences"
}

// 用户角色
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// User 用户实体
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;size:32"`
	EmployeeNo   string     `json:"employee_no" gorm:"size:32;index"`
	Name         string     `json:"name" gorm:"size:64;not null"`
	Email        string     `json:"email" gorm:"size:128;not null;uniqueIndex"`
	PasswordHash string     `json:"-" gorm:"size:128;not null"`
	Role         string     `json:"role" gorm:"size:16;not null;default:operator"`
	Status       string     `json:"status" gorm:"size:16;not null;default:active"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Department 部门字典项
type Department struct {
	Code  string `json:"value"`
	Label string `json:"label"`
	Order int    `json:"displayOrder"`
}
