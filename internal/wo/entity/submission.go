package entity

import "sort"

// SubmissionState 批次提交状态
type SubmissionState string

const (
	StateValidating SubmissionState = "validating"
	StateRejected   SubmissionState = "rejected"
	StateCommitting SubmissionState = "committing"
	StateCommitted  SubmissionState = "committed"
	StateFailed     SubmissionState = "failed"
	// StateValid 仅用于预校验（不提交）通过
	StateValid SubmissionState = "valid"
)

// RowError 行级错误
type RowError struct {
	RowIndex int    `json:"rowIndex"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// RowNote AI校验给出的说明，不影响结果
type RowNote struct {
	RowIndex    int    `json:"rowIndex"`
	Explanation string `json:"explanation"`
}

// SubmissionResult 批次提交结果
type SubmissionResult struct {
	Success   bool            `json:"success"`
	State     SubmissionState `json:"state"`
	BatchID   string          `json:"batch_id,omitempty"`
	Submitted int             `json:"submitted,omitempty"`
	WrittenAt string          `json:"written_at,omitempty"`
	Errors    []RowError      `json:"errors,omitempty"`
	Notes     []RowNote       `json:"notes,omitempty"`
}

// Rejected 构造校验未通过的结果
func Rejected(errs []RowError) SubmissionResult {
	SortRowErrors(errs)
	return SubmissionResult{State: StateRejected, Errors: errs}
}

// Failed 构造整批失败的结果
func Failed(message string) SubmissionResult {
	return SubmissionResult{
		State:  StateFailed,
		Errors: []RowError{{RowIndex: 0, Message: message}},
	}
}

// SortRowErrors 按行号稳定排序
func SortRowErrors(errs []RowError) {
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].RowIndex < errs[j].RowIndex })
}

// BatchSummary 已提交批次摘要，用于推送和通知
type BatchSummary struct {
	BatchID    string   `json:"batch_id"`
	Count      int      `json:"count"`
	WOIDs      []string `json:"woids"`
	WriterID   string   `json:"writer_id"`
	WriterName string   `json:"writer_name"`
	WrittenAt  string   `json:"written_at"`
}
