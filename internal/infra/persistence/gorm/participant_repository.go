package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/tanishk-sarode/codechill-v2/internal/domain"
	"github.com/tanishk-sarode/codechill-v2/internal/repository"
)

// GormParticipantRepository 是 ParticipantRepository 接口的 GORM 实现
type GormParticipantRepository struct {
	db *gorm.DB
}

// NewGormParticipantRepository 创建 GormParticipantRepository 实例
func NewGormParticipantRepository(db *gorm.DB) *GormParticipantRepository {
	if db == nil {
		panic("database connection cannot be nil for GormParticipantRepository")
	}
	return &GormParticipantRepository{db: db}
}

// Find 实现根据 (roomID, userID) 查找成员记录
func (r *GormParticipantRepository) Find(ctx context.Context, roomID, userID string) (*domain.Participant, error) {
	var p domain.Participant
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find participant (room: %s, user: %s): %w", roomID, userID, err)
	}
	return &p, nil
}

// Save 实现保存成员记录（创建或更新）
func (r *GormParticipantRepository) Save(ctx context.Context, p *domain.Participant) error {
	result := r.db.WithContext(ctx).Save(p)
	if err := result.Error; err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save participant (room: %s, user: %s): %w", p.RoomID, p.UserID, err)
	}
	return nil
}

// ListActiveByRoom 实现列出房间内在线成员
func (r *GormParticipantRepository) ListActiveByRoom(ctx context.Context, roomID string) ([]domain.Participant, error) {
	var participants []domain.Participant
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND is_active = ?", roomID, true).
		Order("joined_at ASC").
		Find(&participants).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list active participants (room: %s): %w", roomID, err)
	}
	return participants, nil
}

// CountActiveByRoom 实现统计房间内在线成员数
func (r *GormParticipantRepository) CountActiveByRoom(ctx context.Context, roomID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Participant{}).
		Where("room_id = ? AND is_active = ?", roomID, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count active participants (room: %s): %w", roomID, err)
	}
	return count, nil
}

// UpdateCursor 实现更新在线成员的光标位置和选区
func (r *GormParticipantRepository) UpdateCursor(ctx context.Context, roomID, userID string, line, col int, selection string) error {
	err := r.db.WithContext(ctx).Model(&domain.Participant{}).
		Where("room_id = ? AND user_id = ? AND is_active = ?", roomID, userID, true).
		Updates(map[string]interface{}{
			"cursor_line":  line,
			"cursor_col":   col,
			"selection":    selection,
			"last_seen_at": time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("gorm: update cursor (room: %s, user: %s): %w", roomID, userID, err)
	}
	return nil
}

// DeactivateByRoom 实现将房间内所有在线成员置为离线
func (r *GormParticipantRepository) DeactivateByRoom(ctx context.Context, roomID string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&domain.Participant{}).
		Where("room_id = ? AND is_active = ?", roomID, true).
		Updates(map[string]interface{}{
			"is_active": false,
			"left_at":   at,
		}).Error
	if err != nil {
		return fmt.Errorf("gorm: deactivate participants (room: %s): %w", roomID, err)
	}
	return nil
}
