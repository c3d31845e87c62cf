package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tanishk-sarode/codechill-v2/internal/domain"
	"github.com/tanishk-sarode/codechill-v2/internal/repository"
)

// GormExecutionRepository 是 ExecutionRepository 接口的 GORM 实现
type GormExecutionRepository struct {
	db *gorm.DB
}

// NewGormExecutionRepository 创建 GormExecutionRepository 实例
func NewGormExecutionRepository(db *gorm.DB) *GormExecutionRepository {
	if db == nil {
		panic("database connection cannot be nil for GormExecutionRepository")
	}
	return &GormExecutionRepository{db: db}
}

// FindByID 实现根据执行记录 ID 查找记录
func (r *GormExecutionRepository) FindByID(ctx context.Context, id string) (*domain.Execution, error) {
	var exec domain.Execution
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&exec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrExecutionNotFound
		}
		return nil, fmt.Errorf("gorm: find execution by id %s: %w", id, err)
	}
	return &exec, nil
}

// Save 实现保存执行记录（创建或更新）
func (r *GormExecutionRepository) Save(ctx context.Context, exec *domain.Execution) error {
	if err := r.db.WithContext(ctx).Save(exec).Error; err != nil {
		return fmt.Errorf("gorm: save execution (id: %s, room: %s): %w", exec.ID, exec.RoomID, err)
	}
	return nil
}

// ListByRoom 实现按提交时间倒序分页查询执行历史
func (r *GormExecutionRepository) ListByRoom(ctx context.Context, roomID string, page, pageSize int) ([]domain.Execution, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Execution{}).Where("room_id = ?", roomID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("gorm: count executions (room: %s): %w", roomID, err)
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var execs []domain.Execution
	err := query.Order("submitted_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&execs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("gorm: list executions (room: %s): %w", roomID, err)
	}
	return execs, total, nil
}
