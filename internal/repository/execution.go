package repository

import (
	"context"

	"github.com/tanishk-sarode/codechill-v2/internal/domain"
)

// ExecutionRepository 定义了代码执行记录的存储和检索操作。
type ExecutionRepository interface {
	// FindByID 根据执行记录 ID 查找记录。
	// 如果记录不存在，返回 ErrExecutionNotFound。
	FindByID(ctx context.Context, id string) (*domain.Execution, error)

	// Save 保存执行记录。已存在则更新，否则创建。
	Save(ctx context.Context, exec *domain.Execution) error

	// ListByRoom 按提交时间倒序分页查询房间内的执行历史。
	ListByRoom(ctx context.Context, roomID string, page, pageSize int) ([]domain.Execution, int64, error)
}
