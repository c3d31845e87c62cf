package service

import (
	"context"
	"errors"
	"time"

	"github.com/tanishk-sarode/codechill-v2/internal/domain"
	"github.com/tanishk-sarode/codechill-v2/internal/repository"

	"github.com/sirupsen/logrus"
)

// JoinResult 是一次成功加入房间后返回给连接层的房间快照。
type JoinResult struct {
	Room         *domain.Room
	Participant  *domain.Participant
	Participants []domain.Participant
	OnlineCount  int64
	Rejoined     bool // true 表示该用户本来就在线，这次加入是幂等重入
}

// PresenceService 负责房间成员的进入、离开、断线和光标位置。
// 所有改变在线人数的操作都持有房间锁，保证容量检查和人数变更是原子的。
type PresenceService struct {
	roomRepo        repository.RoomRepository
	participantRepo repository.ParticipantRepository
	userRepo        repository.UserRepository
	locks           *RoomLocks
}

// NewPresenceService 创建 PresenceService 实例。
func NewPresenceService(
	roomRepo repository.RoomRepository,
	participantRepo repository.ParticipantRepository,
	userRepo repository.UserRepository,
	locks *RoomLocks,
) *PresenceService {
	if roomRepo == nil || participantRepo == nil || userRepo == nil {
		panic("repositories cannot be nil for PresenceService")
	}
	if locks == nil {
		panic("RoomLocks cannot be nil for PresenceService")
	}
	return &PresenceService{
		roomRepo:        roomRepo,
		participantRepo: participantRepo,
		userRepo:        userRepo,
		locks:           locks,
	}
}

// Join 处理用户加入房间。
// 已在线的用户重复加入是幂等的：返回当前状态，不增加在线人数。
func (s *PresenceService) Join(ctx context.Context, roomID, userID, password string) (*JoinResult, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID})

	lock := s.locks.get(roomID)
	lock.Lock()
	defer lock.Unlock()

	// 1. 房间必须存在且活跃
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Join: failed to load room")
		return nil, ErrInternalServer
	}
	if !room.IsActive {
		return nil, ErrRoomClosed
	}

	// 2. 查找既有成员记录，区分幂等重入 / 重新激活 / 首次加入
	participant, err := s.participantRepo.Find(ctx, roomID, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logCtx.WithError(err).Error("Join: failed to load participant")
		return nil, ErrInternalServer
	}

	rejoined := participant != nil && participant.IsActive
	if !rejoined {
		// 3. 私有房间校验密码。房主重入自己的房间不需要密码。
		if room.IsPrivate && room.OwnerID != userID {
			if !checkPassword(password, room.Password) {
				logCtx.Warn("Join rejected: invalid room password")
				return nil, ErrInvalidPassword
			}
		}

		// 4. 容量检查。持有房间锁，检查和写入之间不会被并发加入穿插。
		online, err := s.participantRepo.CountActiveByRoom(ctx, roomID)
		if err != nil {
			logCtx.WithError(err).Error("Join: failed to count online participants")
			return nil, ErrInternalServer
		}
		if online >= int64(room.Capacity) {
			logCtx.Warn("Join rejected: room at capacity")
			return nil, ErrRoomFull
		}

		// 5. 重新激活旧记录或创建新记录
		now := time.Now()
		if participant == nil {
			role := domain.RoleParticipant
			if room.OwnerID == userID {
				role = domain.RoleOwner
			}
			participant = &domain.Participant{
				RoomID:     roomID,
				UserID:     userID,
				Role:       role,
				IsActive:   true,
				LastSeenAt: now,
			}
		} else {
			participant.IsActive = true
			participant.LeftAt = nil
			participant.JoinedAt = now
			participant.LastSeenAt = now
			participant.CursorLine = 0
			participant.CursorCol = 0
			participant.Selection = ""
		}
		if err := s.participantRepo.Save(ctx, participant); err != nil {
			logCtx.WithError(err).Error("Join: failed to save participant")
			return nil, ErrInternalServer
		}
	}

	// 6. 刷新房间活跃时间
	if err := s.roomRepo.TouchLastActive(ctx, roomID, time.Now()); err != nil {
		logCtx.WithError(err).Warn("Join: failed to touch room last_active")
	}

	participants, err := s.participantRepo.ListActiveByRoom(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Join: failed to list participants")
		return nil, ErrInternalServer
	}

	logCtx.WithField("rejoined", rejoined).Info("User joined room")
	return &JoinResult{
		Room:         room,
		Participant:  participant,
		Participants: participants,
		OnlineCount:  int64(len(participants)),
		Rejoined:     rejoined,
	}, nil
}

// Leave 处理用户主动离开房间。
// 房主不能用 leave 离开自己的房间，只能关闭房间或断开连接。
func (s *PresenceService) Leave(ctx context.Context, roomID, userID string) (int64, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID})

	lock := s.locks.get(roomID)
	lock.Lock()
	defer lock.Unlock()

	participant, err := s.participantRepo.Find(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrNotAMember
		}
		logCtx.WithError(err).Error("Leave: failed to load participant")
		return 0, ErrInternalServer
	}
	if !participant.IsActive {
		return 0, ErrNotAMember
	}
	if participant.Role == domain.RoleOwner {
		logCtx.Warn("Leave rejected: owner cannot leave own room")
		return 0, ErrOwnerCannotLeave
	}

	now := time.Now()
	participant.IsActive = false
	participant.LeftAt = &now
	if err := s.participantRepo.Save(ctx, participant); err != nil {
		logCtx.WithError(err).Error("Leave: failed to save participant")
		return 0, ErrInternalServer
	}

	online, err := s.participantRepo.CountActiveByRoom(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Leave: failed to count online participants")
		return 0, ErrInternalServer
	}

	logCtx.Info("User left room")
	return online, nil
}

// Disconnect 处理连接断开导致的隐式离开。
// 房主断线时保留其在线成员记录，普通成员按离开处理。
// 操作是幂等的：已离线的成员再次断开不报错。
func (s *PresenceService) Disconnect(ctx context.Context, roomID, userID string) (online int64, wasOwner bool, err error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID})

	lock := s.locks.get(roomID)
	lock.Lock()
	defer lock.Unlock()

	participant, err := s.participantRepo.Find(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, false, nil
		}
		logCtx.WithError(err).Error("Disconnect: failed to load participant")
		return 0, false, ErrInternalServer
	}
	if !participant.IsActive {
		return 0, false, nil
	}

	if participant.Role != domain.RoleOwner {
		now := time.Now()
		participant.IsActive = false
		participant.LeftAt = &now
		if err := s.participantRepo.Save(ctx, participant); err != nil {
			logCtx.WithError(err).Error("Disconnect: failed to save participant")
			return 0, false, ErrInternalServer
		}
	}

	online, err = s.participantRepo.CountActiveByRoom(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Disconnect: failed to count online participants")
		return 0, false, ErrInternalServer
	}

	logCtx.WithField("was_owner", participant.Role == domain.RoleOwner).Info("User disconnected from room")
	return online, participant.Role == domain.RoleOwner, nil
}

// UpdateCursor 更新成员光标位置和选区。非在线成员的上报被拒绝。
// selection 是客户端的不透明负载，原样存储。
func (s *PresenceService) UpdateCursor(ctx context.Context, roomID, userID string, line, col int, selection string) error {
	if line < 0 || col < 0 {
		return ErrInvalidInput
	}

	participant, err := s.participantRepo.Find(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotAMember
		}
		logrus.WithError(err).WithFields(logrus.Fields{"room_id": roomID, "user_id": userID}).
			Error("UpdateCursor: failed to load participant")
		return ErrInternalServer
	}
	if !participant.IsActive {
		return ErrNotAMember
	}

	if err := s.participantRepo.UpdateCursor(ctx, roomID, userID, line, col, selection); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"room_id": roomID, "user_id": userID}).
			Error("UpdateCursor: failed to persist cursor")
		return ErrInternalServer
	}
	return nil
}

// IsActiveMember 判断用户当前是否是房间的在线成员。
func (s *PresenceService) IsActiveMember(ctx context.Context, roomID, userID string) (bool, error) {
	participant, err := s.participantRepo.Find(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, ErrInternalServer
	}
	return participant.IsActive, nil
}

// Roster 返回房间在线成员的展示信息。
func (s *PresenceService) Roster(ctx context.Context, roomID string) ([]ParticipantView, error) {
	participants, err := s.participantRepo.ListActiveByRoom(ctx, roomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Roster: failed to list participants")
		return nil, ErrInternalServer
	}
	return s.RosterFor(ctx, participants), nil
}

// RosterFor 返回房间在线成员的展示信息，补充用户名。
func (s *PresenceService) RosterFor(ctx context.Context, participants []domain.Participant) []ParticipantView {
	views := make([]ParticipantView, 0, len(participants))
	for _, p := range participants {
		view := ParticipantView{Participant: p}
		if user, err := s.userRepo.FindByID(ctx, p.UserID); err == nil {
			view.Username = user.Username
		}
		views = append(views, view)
	}
	return views
}

// ParticipantView 是带用户名的成员展示结构。
type ParticipantView struct {
	Participant domain.Participant
	Username    string
}
