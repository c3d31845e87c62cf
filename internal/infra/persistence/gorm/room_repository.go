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

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// FindByID 实现根据房间 ID 查找房间
func (r *GormRoomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	var roomData domain.Room
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&roomData).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %s: %w", id, err)
	}
	return &roomData, nil
}

// Save 实现保存房间信息（创建或更新）
func (r *GormRoomRepository) Save(ctx context.Context, roomData *domain.Room) error {
	result := r.db.WithContext(ctx).Save(roomData)
	if err := result.Error; err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save room (id: %s): %w", roomData.ID, err)
	}
	return nil
}

// List 实现活跃房间的过滤分页查询
func (r *GormRoomRepository) List(ctx context.Context, q repository.RoomQuery) ([]domain.Room, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Room{}).Where("is_active = ?", true)
	if q.Search != "" {
		query = query.Where("name LIKE ?", "%"+q.Search+"%")
	}
	if q.Language != "" {
		query = query.Where("language = ?", q.Language)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("gorm: count rooms: %w", err)
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	var rooms []domain.Room
	err := query.Order("last_active DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rooms).Error
	if err != nil {
		return nil, 0, fmt.Errorf("gorm: list rooms: %w", err)
	}
	return rooms, total, nil
}

// CountActiveByOwner 实现统计某用户拥有的活跃房间数
func (r *GormRoomRepository) CountActiveByOwner(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("owner_id = ? AND is_active = ?", ownerID, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count rooms by owner '%s': %w", ownerID, err)
	}
	return count, nil
}

// UpdateContent 实现文档内容的写回。
// WHERE content_version <= ? 保证乱序到达的旧版本写回不会覆盖新内容。
func (r *GormRoomRepository) UpdateContent(ctx context.Context, roomID string, content string, version int64) error {
	result := r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("id = ? AND content_version <= ?", roomID, version).
		Updates(map[string]interface{}{
			"content":         content,
			"content_version": version,
		})
	if result.Error != nil {
		return fmt.Errorf("gorm: update room content (id: %s, version: %d): %w", roomID, version, result.Error)
	}
	// RowsAffected == 0 说明存储里已有更新的版本，属于正常情况，不报错
	return nil
}

// TouchLastActive 实现刷新房间最后活跃时间
func (r *GormRoomRepository) TouchLastActive(ctx context.Context, roomID string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("id = ?", roomID).
		Update("last_active", at).Error
	if err != nil {
		return fmt.Errorf("gorm: touch room last_active (id: %s): %w", roomID, err)
	}
	return nil
}

// FindIdleActive 实现查找长时间无活动的活跃房间
func (r *GormRoomRepository) FindIdleActive(ctx context.Context, before time.Time) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND last_active < ?", true, before).
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find idle rooms: %w", err)
	}
	return rooms, nil
}
