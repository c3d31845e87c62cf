package service

import (
	"context"
	"errors"
	"time"

	"github.com/tanishk-sarode/codechill-v2/internal/domain"
	"github.com/tanishk-sarode/codechill-v2/internal/repository"

	"github.com/sirupsen/logrus"
)

// MaxRoomsPerUser 限制单个用户同时拥有的活跃房间数。
const MaxRoomsPerUser = 5

// CreateRoomInput 描述创建房间所需的参数。
type CreateRoomInput struct {
	Name        string
	Description string
	Language    string
	Capacity    int
	IsPrivate   bool
	Password    string
}

// UpdateRoomInput 描述房主可修改的房间属性。nil 字段表示不修改。
type UpdateRoomInput struct {
	Name        *string
	Description *string
	Capacity    *int
	IsPrivate   *bool
	Password    *string
}

// RoomService 负责房间管理相关的业务逻辑。
type RoomService struct {
	roomRepo        repository.RoomRepository
	participantRepo repository.ParticipantRepository
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(roomRepo repository.RoomRepository, participantRepo repository.ParticipantRepository) *RoomService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	if participantRepo == nil {
		panic("ParticipantRepository cannot be nil for RoomService")
	}
	return &RoomService{
		roomRepo:        roomRepo,
		participantRepo: participantRepo,
	}
}

// CreateRoom 创建一个新房间，创建者自动成为房主成员。
func (s *RoomService) CreateRoom(ctx context.Context, ownerID string, in CreateRoomInput) (*domain.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "name": in.Name})

	// 1. 基本验证
	if in.Name == "" {
		return nil, ErrInvalidInput
	}
	language := in.Language
	if language == "" {
		language = "javascript"
	}
	capacity := in.Capacity
	if capacity <= 0 {
		capacity = domain.DefaultRoomCapacity
	}
	if capacity > domain.MaxRoomCapacity {
		capacity = domain.MaxRoomCapacity
	}
	if in.IsPrivate && in.Password == "" {
		return nil, ErrInvalidInput
	}

	// 2. 限制单用户的活跃房间数
	owned, err := s.roomRepo.CountActiveByOwner(ctx, ownerID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to count rooms by owner")
		return nil, ErrInternalServer
	}
	if owned >= MaxRoomsPerUser {
		logCtx.Warn("Room creation rejected: owner at room limit")
		return nil, ErrRoomLimitReached
	}

	// 3. 私有房间的密码哈希
	passwordHash := ""
	if in.IsPrivate {
		passwordHash, err = hashPassword(in.Password)
		if err != nil {
			logCtx.WithError(err).Error("Failed to hash room password")
			return nil, ErrInternalServer
		}
	}

	// 4. 创建房间对象，文档内容按语言取初始模板
	room := &domain.Room{
		Name:           in.Name,
		Description:    in.Description,
		OwnerID:        ownerID,
		Language:       language,
		Content:        domain.TemplateFor(language),
		ContentVersion: 1,
		Capacity:       capacity,
		IsPrivate:      in.IsPrivate,
		Password:       passwordHash,
		IsActive:       true,
		LastActive:     time.Now(),
	}
	if err := s.roomRepo.Save(ctx, room); err != nil {
		logCtx.WithError(err).Error("Failed to save new room to database")
		return nil, ErrInternalServer
	}
	logCtx = logCtx.WithField("room_id", room.ID)

	// 5. 房主自动成为在线成员之外的永久成员记录
	owner := &domain.Participant{
		RoomID:   room.ID,
		UserID:   ownerID,
		Role:     domain.RoleOwner,
		IsActive: false, // 创建房间不等于进入房间，连接建立后才在线
	}
	if err := s.participantRepo.Save(ctx, owner); err != nil {
		logCtx.WithError(err).Error("Failed to save owner participant record")
		return nil, ErrInternalServer
	}

	logCtx.Info("Room created successfully")
	return room, nil
}

// FindRoomByID 返回指定房间，供 Handler 和 WebSocket 层使用。
func (s *RoomService) FindRoomByID(ctx context.Context, roomID string) (*domain.Room, error) {
	logCtx := logrus.WithField("room_id", roomID)
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			logCtx.Warn("FindRoomByID: Room not found")
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("FindRoomByID: Repository error")
		return nil, ErrInternalServer
	}
	if room == nil { // 防御
		logCtx.Warn("FindRoomByID: Repository returned nil room without error")
		return nil, ErrRoomNotFound
	}
	if !room.IsActive {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// ListRooms 分页查询活跃房间。
func (s *RoomService) ListRooms(ctx context.Context, q repository.RoomQuery) ([]domain.Room, int64, error) {
	rooms, total, err := s.roomRepo.List(ctx, q)
	if err != nil {
		logrus.WithError(err).Error("Failed to list rooms")
		return nil, 0, ErrInternalServer
	}
	return rooms, total, nil
}

// UpdateRoom 由房主修改房间属性。
// 容量不能调低到当前在线人数以下。
func (s *RoomService) UpdateRoom(ctx context.Context, roomID, userID string, in UpdateRoomInput) (*domain.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID})

	room, err := s.FindRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.OwnerID != userID {
		logCtx.Warn("Room update rejected: caller is not the owner")
		return nil, ErrAccessDenied
	}

	if in.Name != nil {
		if *in.Name == "" {
			return nil, ErrInvalidInput
		}
		room.Name = *in.Name
	}
	if in.Description != nil {
		room.Description = *in.Description
	}
	if in.Capacity != nil {
		capacity := *in.Capacity
		if capacity < 1 || capacity > domain.MaxRoomCapacity {
			return nil, ErrInvalidInput
		}
		online, err := s.participantRepo.CountActiveByRoom(ctx, roomID)
		if err != nil {
			logCtx.WithError(err).Error("Failed to count online participants")
			return nil, ErrInternalServer
		}
		if int64(capacity) < online {
			return nil, ErrInvalidInput
		}
		room.Capacity = capacity
	}
	if in.IsPrivate != nil {
		room.IsPrivate = *in.IsPrivate
	}
	if in.Password != nil {
		if *in.Password == "" {
			room.Password = ""
		} else {
			hash, err := hashPassword(*in.Password)
			if err != nil {
				logCtx.WithError(err).Error("Failed to hash room password")
				return nil, ErrInternalServer
			}
			room.Password = hash
		}
	}
	if room.IsPrivate && room.Password == "" {
		return nil, ErrInvalidInput
	}

	if err := s.roomRepo.Save(ctx, room); err != nil {
		logCtx.WithError(err).Error("Failed to save updated room")
		return nil, ErrInternalServer
	}
	logCtx.Info("Room updated successfully")
	return room, nil
}

// CloseRoom 由房主软删除房间，并把所有在线成员置为离线。
func (s *RoomService) CloseRoom(ctx context.Context, roomID, userID string) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID})

	room, err := s.FindRoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.OwnerID != userID {
		logCtx.Warn("Room close rejected: caller is not the owner")
		return ErrAccessDenied
	}

	room.IsActive = false
	if err := s.roomRepo.Save(ctx, room); err != nil {
		logCtx.WithError(err).Error("Failed to deactivate room")
		return ErrInternalServer
	}
	if err := s.participantRepo.DeactivateByRoom(ctx, roomID, time.Now()); err != nil {
		logCtx.WithError(err).Error("Failed to deactivate room participants")
		return ErrInternalServer
	}

	logCtx.Info("Room closed")
	return nil
}

// ListParticipants 返回房间内当前在线的成员列表。
func (s *RoomService) ListParticipants(ctx context.Context, roomID string) ([]domain.Participant, error) {
	if _, err := s.FindRoomByID(ctx, roomID); err != nil {
		return nil, err
	}
	participants, err := s.participantRepo.ListActiveByRoom(ctx, roomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to list participants")
		return nil, ErrInternalServer
	}
	return participants, nil
}
