package repository

import (
	"context"
	"time"

	"github.com/tanishk-sarode/codechill-v2/internal/domain"
)

// ParticipantRepository 定义了房间成员关系的存储和检索操作。
type ParticipantRepository interface {
	// Find 根据 (roomID, userID) 查找成员记录，无论是否在线。
	// 如果记录不存在，返回 ErrNotFound。
	Find(ctx context.Context, roomID, userID string) (*domain.Participant, error)

	// Save 保存成员记录。已存在则更新，否则创建。
	Save(ctx context.Context, p *domain.Participant) error

	// ListActiveByRoom 列出房间内当前在线的所有成员。
	ListActiveByRoom(ctx context.Context, roomID string) ([]domain.Participant, error)

	// CountActiveByRoom 统计房间内当前在线的成员数。
	CountActiveByRoom(ctx context.Context, roomID string) (int64, error)

	// UpdateCursor 更新某个在线成员的光标位置和选区，并刷新其最近活动时间。
	UpdateCursor(ctx context.Context, roomID, userID string, line, col int, selection string) error

	// DeactivateByRoom 将房间内所有在线成员置为离线。
	// 用于关闭房间时的批量清理。
	DeactivateByRoom(ctx context.Context, roomID string, at time.Time) error
}
