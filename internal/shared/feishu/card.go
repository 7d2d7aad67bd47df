package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
)

// 卡片中最多列出的工单号
const maxListedWOIDs = 10

// SendCard 向群聊发送消息卡片
func (c *FeishuClient) SendCard(ctx context.Context, chatID string, card InteractiveCard) (string, error) {
	cardBytes, err := json.Marshal(card)
	if err != nil {
		return "", fmt.Errorf("序列化卡片内容失败: %w", err)
	}

	reqBody := SendMessageRequest{
		ReceiveID: chatID,
		MsgType:   "interactive",
		Content:   string(cardBytes),
	}

	var resp SendMessageResponse
	if err := c.doRequest(ctx, "POST", "/open-apis/im/v1/messages?receive_id_type=chat_id", reqBody, &resp); err != nil {
		return "", fmt.Errorf("发送消息卡片失败: %w", err)
	}
	return resp.Data.MessageID, nil
}

// NewBatchCommittedCard 工单批次提交通知卡片
func NewBatchCommittedCard(summary entity.BatchSummary) InteractiveCard {
	writer := summary.WriterName
	if writer == "" {
		writer = summary.WriterID
	}

	ids := summary.WOIDs
	more := ""
	if len(ids) > maxListedWOIDs {
		more = fmt.Sprintf(" 等%d条", len(ids))
		ids = ids[:maxListedWOIDs]
	}

	return InteractiveCard{
		Config: &CardConfig{WideScreenMode: true},
		Header: &CardHeader{
			Title:    CardText{Tag: "plain_text", Content: "✅ 生产工单已提交"},
			Template: "green",
		},
		Elements: []CardElement{
			{
				Tag: "div",
				Fields: []CardField{
					{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**工单数量**\n%d", summary.Count)}},
					{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**提交人**\n%s", writer)}},
					{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**写入时间**\n%s", summary.WrittenAt)}},
					{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**批次号**\n%s", summary.BatchID)}},
				},
			},
			{
				Tag:  "div",
				Text: &CardText{Tag: "lark_md", Content: fmt.Sprintf("**工单号**\n%s%s", strings.Join(ids, "、"), more)},
			},
			{Tag: "hr"},
			{
				Tag: "note",
				Elements: []CardElement{
					{Tag: "plain_text", Content: "工单已写入ERP，状态为计划(P)"},
				},
			},
		},
	}
}
