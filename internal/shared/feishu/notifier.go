package feishu

import (
	"context"

	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
	"go.uber.org/zap"
)

// Notifier 把批次提交结果推送到飞书群
type Notifier struct {
	client *FeishuClient
	chatID string
	logger *zap.Logger
}

// NewNotifier 创建通知器
func NewNotifier(client *FeishuClient, chatID string, logger *zap.Logger) *Notifier {
	return &Notifier{client: client, chatID: chatID, logger: logger}
}

// NotifyBatchCommitted 发送批次提交卡片
func (n *Notifier) NotifyBatchCommitted(ctx context.Context, summary entity.BatchSummary) error {
	msgID, err := n.client.SendCard(ctx, n.chatID, NewBatchCommittedCard(summary))
	if err != nil {
		return err
	}
	n.logger.Debug("feishu batch card sent", zap.String("batch_id", summary.BatchID), zap.String("message_id", msgID))
	return nil
}
