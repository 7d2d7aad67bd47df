package feishu

// BaseResponse 飞书API通用响应结构
type BaseResponse struct {
	Code int    `json:"code"` // 错误码，0表示成功
	Msg  string `json:"msg"`
}

// InteractiveCard 飞书交互式消息卡片
type InteractiveCard struct {
	Config   *CardConfig   `json:"config,omitempty"`
	Header   *CardHeader   `json:"header,omitempty"`
	Elements []CardElement `json:"elements,omitempty"`
}

// CardConfig 卡片配置
type CardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

// CardHeader 卡片标题
type CardHeader struct {
	Title    CardText `json:"title"`
	Template string   `json:"template,omitempty"` // blue/green/red/orange/purple等
}

// CardText 卡片文本
type CardText struct {
	Tag     string `json:"tag"` // plain_text / lark_md
	Content string `json:"content"`
}

// CardElement 卡片元素（通用）
type CardElement struct {
	Tag      string        `json:"tag"` // div/hr/note/markdown等
	Text     *CardText     `json:"text,omitempty"`
	Fields   []CardField   `json:"fields,omitempty"`
	Elements []CardElement `json:"elements,omitempty"` // note元素使用
	Content  string        `json:"content,omitempty"`
}

// CardField 卡片字段
type CardField struct {
	IsShort bool     `json:"is_short"` // 并排显示
	Text    CardText `json:"text"`
}

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	ReceiveID string `json:"receive_id"`
	MsgType   string `json:"msg_type"`
	Content   string `json:"content"` // 卡片JSON字符串
}

// SendMessageResponse 发送消息响应
type SendMessageResponse struct {
	BaseResponse
	Data struct {
		MessageID string `json:"message_id"`
	} `json:"data"`
}
