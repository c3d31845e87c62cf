package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tanishk-sarode/codechill-v2/internal/domain"
	"github.com/tanishk-sarode/codechill-v2/internal/repository"
)

// GormMessageRepository 是 MessageRepository 接口的 GORM 实现
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建 GormMessageRepository 实例
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	if db == nil {
		panic("database connection cannot be nil for GormMessageRepository")
	}
	return &GormMessageRepository{db: db}
}

// FindByID 实现根据消息 ID 查找消息
func (r *GormMessageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrMessageNotFound
		}
		return nil, fmt.Errorf("gorm: find message by id %s: %w", id, err)
	}
	return &msg, nil
}

// Save 实现保存消息（创建或更新）
func (r *GormMessageRepository) Save(ctx context.Context, msg *domain.Message) error {
	if err := r.db.WithContext(ctx).Save(msg).Error; err != nil {
		return fmt.Errorf("gorm: save message (id: %s, room: %s): %w", msg.ID, msg.RoomID, err)
	}
	return nil
}

// ListByRoom 实现按时间倒序分页查询房间消息
func (r *GormMessageRepository) ListByRoom(ctx context.Context, roomID string, page, pageSize int) ([]domain.Message, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Message{}).Where("room_id = ?", roomID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("gorm: count messages (room: %s): %w", roomID, err)
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	var messages []domain.Message
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&messages).Error
	if err != nil {
		return nil, 0, fmt.Errorf("gorm: list messages (room: %s): %w", roomID, err)
	}
	return messages, total, nil
}
