package entity

// 字段名同时用作JSON键、Excel表头和ERP列名
const (
	FieldWOID         = "WO_WOID"
	FieldWLID         = "WO_WLID"
	FieldQuantity     = "WO_XQSL"
	FieldPlannedStart = "WO_JHKGRQ"
	FieldPlannedEnd   = "WO_JHWGRQ"
	FieldDeptID       = "WO_BMID"
	FieldRemark       = "WO_BZ"
)

// 提交时写入的系统字段取值
const (
	FactoryCode   = "01"
	OrderTypeMPS  = "MPS"
	NotDispatched = "N"
)

// WorkOrderStatus 工单状态（提交后由ERP推进）
const (
	StatusPlanned   = "P"
	StatusReleased  = "R"
	StatusCompleted = "C"
)

// MaxWOIDLength 工单号最大长度，与 wo_woid 列宽一致
const MaxWOIDLength = 32

// DateLayout 计划日期格式
const DateLayout = "2006-01-02"

// TimestampLayout WO_WHSJ 写入时间格式
const TimestampLayout = "2006-01-02 15:04:05"

// Task 表单中的一行工单
type Task struct {
	// RowID 客户端临时行键，不落库
	RowID        string `json:"rowId,omitempty" gorm:"-"`
	WOID         string `json:"WO_WOID" gorm:"column:wo_woid;primaryKey;size:32"`
	WLID         string `json:"WO_WLID" gorm:"column:wo_wlid;size:64;not null;index"`
	Quantity     string `json:"WO_XQSL" gorm:"column:wo_xqsl;size:32;not null"`
	PlannedStart string `json:"WO_JHKGRQ" gorm:"column:wo_jhkgrq;size:10;not null"`
	PlannedEnd   string `json:"WO_JHWGRQ" gorm:"column:wo_jhwgrq;size:10;not null"`
	DeptID       string `json:"WO_BMID" gorm:"column:wo_bmid;size:16;not null;index"`
	Remark       string `json:"WO_BZ,omitempty" gorm:"column:wo_bz;type:text"`
}

// RequiredFields 返回必填字段及其取值，顺序即校验顺序
func (t Task) RequiredFields() []FieldValue {
	return []FieldValue{
		{Field: FieldWOID, Value: t.WOID},
		{Field: FieldWLID, Value: t.WLID},
		{Field: FieldQuantity, Value: t.Quantity},
		{Field: FieldPlannedStart, Value: t.PlannedStart},
		{Field: FieldPlannedEnd, Value: t.PlannedEnd},
		{Field: FieldDeptID, Value: t.DeptID},
	}
}

// FieldValue 字段名与值
type FieldValue struct {
	Field string
	Value string
}

// SubmittedTask 已提交的工单
type SubmittedTask struct {
	Task `gorm:"embedded"`

	FactoryID  string `json:"WO_GCID" gorm:"column:wo_gcid;size:8;not null"`
	OrderType  string `json:"WO_LX" gorm:"column:wo_lx;size:8;not null"`
	Status     string `json:"WO_ZT" gorm:"column:wo_zt;size:4;not null;index"`
	Dispatched string `json:"WO_DZSC" gorm:"column:wo_dzsc;size:4;not null"`
	ZLH        string `json:"WO_ZLH" gorm:"column:wo_zlh;size:32"`
	WriterID   string `json:"WO_WHRID" gorm:"column:wo_whrid;size:64;not null"`
	WriterName string `json:"WO_WHR" gorm:"column:wo_whr;size:64"`
	// WrittenAt 固定时区的 yyyy-MM-dd HH:mm:ss，字典序即时间序
	WrittenAt string `json:"WO_WHSJ" gorm:"column:wo_whsj;size:19;not null;index"`
	BatchID   string `json:"batch_id" gorm:"column:batch_id;size:26;index"`
}

func (SubmittedTask) TableName() string {
	return "production_tasks"
}

// Writer 提交人
type Writer struct {
	ID   string
	Name string
}

// ListParams 历史查询参数
type ListParams struct {
	Keyword string
	DeptID  string
	Status  string
	Page    int
	Size    int
}

// Normalize 补齐分页默认值
func (p *ListParams) Normalize() {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Size <= 0 {
		p.Size = 20
	}
	if p.Size > 500 {
		p.Size = 500
	}
}
