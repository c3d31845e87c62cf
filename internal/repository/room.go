package repository

import (
	"context"
	"time"

	"github.com/tanishk-sarode/codechill-v2/internal/domain"
)

// RoomQuery 描述房间列表查询的过滤与分页参数。
type RoomQuery struct {
	Search   string // 按名称模糊匹配，空串表示不过滤
	Language string // 按编程语言精确匹配，空串表示不过滤
	Page     int    // 从 1 开始
	PageSize int
}

// RoomRepository 定义了房间数据的存储和检索操作。
type RoomRepository interface {
	// FindByID 根据房间 ID 查找房间。
	// 如果房间不存在，返回 ErrRoomNotFound。
	FindByID(ctx context.Context, id string) (*domain.Room, error)

	// Save 保存房间信息。
	// 如果房间已存在 (基于 ID)，则更新；否则创建新房间。
	Save(ctx context.Context, room *domain.Room) error

	// List 分页查询活跃房间，返回房间列表和满足条件的总数。
	List(ctx context.Context, q RoomQuery) ([]domain.Room, int64, error)

	// CountActiveByOwner 统计某用户当前拥有的活跃房间数。
	// 用于限制单个用户可创建的房间数量。
	CountActiveByOwner(ctx context.Context, ownerID string) (int64, error)

	// UpdateContent 持久化房间文档内容，仅当存储的版本号不高于给定版本时写入。
	// 防止乱序到达的异步写回把新内容覆盖成旧内容。
	UpdateContent(ctx context.Context, roomID string, content string, version int64) error

	// TouchLastActive 刷新房间的最后活跃时间。
	TouchLastActive(ctx context.Context, roomID string, at time.Time) error

	// FindIdleActive 查找活跃且最后活跃时间早于 before 的房间。
	// 用于周期性清理不活跃房间。
	FindIdleActive(ctx context.Context, before time.Time) ([]domain.Room, error)
}
