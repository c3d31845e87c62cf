package repository

import (
	"context"

	"github.com/tanishk-sarode/codechill-v2/internal/domain"
)

// MessageRepository 定义了聊天消息的存储和检索操作。
type MessageRepository interface {
	// FindByID 根据消息 ID 查找消息。
	// 如果消息不存在，返回 ErrMessageNotFound。
	FindByID(ctx context.Context, id string) (*domain.Message, error)

	// Save 保存消息。已存在则更新，否则创建。
	Save(ctx context.Context, msg *domain.Message) error

	// ListByRoom 按时间倒序分页查询房间内的消息。
	ListByRoom(ctx context.Context, roomID string, page, pageSize int) ([]domain.Message, int64, error)
}
