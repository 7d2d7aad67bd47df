package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
)

// Verdict 模型给出的单行结论
type Verdict struct {
	IsValid     bool   `json:"isValid"`
	Explanation string `json:"explanation"`
}

// Validator 渲染校验提示词并解析模型输出
type Validator struct {
	model  Model
	prompt *template.Template
}

// NewValidator 创建AI校验器
func NewValidator(model Model) (*Validator, error) {
	tmpl, err := template.New("row").Parse(rowPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse row template: %w", err)
	}
	return &Validator{model: model, prompt: tmpl}, nil
}

type rowData struct {
	entity.Task
	AllWOIDs string
}

// Validate 校验一行
func (v *Validator) Validate(ctx context.Context, task entity.Task, allWOIDs []string) (Verdict, error) {
	var buf bytes.Buffer
	if err := v.prompt.Execute(&buf, rowData{Task: task, AllWOIDs: strings.Join(allWOIDs, ", ")}); err != nil {
		return Verdict{}, fmt.Errorf("failed to render prompt: %w", err)
	}

	text, err := v.model.Generate(ctx, buf.String())
	if err != nil {
		return Verdict{}, err
	}
	return ParseVerdict(text)
}

// ParseVerdict 解析模型输出，允许```json代码块包裹
func ParseVerdict(text string) (Verdict, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if i, j := strings.Index(s, "{"), strings.LastIndex(s, "}"); i >= 0 && j > i {
		s = s[i : j+1]
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(s), &verdict); err != nil {
		return Verdict{}, fmt.Errorf("unexpected verdict format: %w", err)
	}
	return verdict, nil
}

const rowPromptTemplate = `You are a data validation expert for TaskMaster Pro, an application for managing production task orders. Validate one row of a production task form and explain any problems.

WO_WOID: {{.WOID}}
WO_WLID: {{.WLID}}
WO_XQSL: {{.Quantity}}
WO_JHKGRQ: {{.PlannedStart}}
WO_JHWGRQ: {{.PlannedEnd}}
WO_BMID: {{.DeptID}}
All WO_WOIDs in form: {{.AllWOIDs}}

Validation rules:

1. All fields (WO_WOID, WO_WLID, WO_XQSL, WO_JHKGRQ, WO_JHWGRQ, WO_BMID) are required.
2. WO_XQSL must be a number greater than 0.
3. WO_WOID must be unique within the current form.
4. WO_JHWGRQ must not be earlier than WO_JHKGRQ, and both should be plausible planning dates.

WO_WLID existence in the ERP database is checked separately; do not judge it.

Respond with only a JSON object: {"isValid": <bool>, "explanation": "<short explanation>"}. Set isValid to false if ANY rule fails.`
