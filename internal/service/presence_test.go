package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tanishk-sarode/codechill-v2/internal/domain"
	"github.com/tanishk-sarode/codechill-v2/internal/repository"
	"github.com/tanishk-sarode/codechill-v2/internal/repository/mocks"
	"github.com/tanishk-sarode/codechill-v2/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newPresenceService(t *testing.T) (*service.PresenceService, *mocks.RoomRepository, *mocks.ParticipantRepository, *mocks.UserRepository) {
	t.Helper()
	roomRepo := new(mocks.RoomRepository)
	participantRepo := new(mocks.ParticipantRepository)
	userRepo := new(mocks.UserRepository)
	svc := service.NewPresenceService(roomRepo, participantRepo, userRepo, service.NewRoomLocks())
	return svc, roomRepo, participantRepo, userRepo
}

func TestPresenceService_Join_FirstTime(t *testing.T) {
	// Arrange
	svc, roomRepo, participantRepo, _ := newPresenceService(t)
	ctx := context.Background()
	room := &domain.Room{ID: "room-1", OwnerID: "owner-1", Capacity: 10, IsActive: true}

	roomRepo.On("FindByID", ctx, "room-1").Return(room, nil).Once()
	participantRepo.On("Find", ctx, "room-1", "user-1").Return(nil, repository.ErrNotFound).Once()
	participantRepo.On("CountActiveByRoom", ctx, "room-1").Return(int64(0), nil).Once()
	participantRepo.On("Save", ctx, mock.MatchedBy(func(p *domain.Participant) bool {
		return p.RoomID == "room-1" && p.UserID == "user-1" &&
			p.Role == domain.RoleParticipant && p.IsActive && !p.LastSeenAt.IsZero()
	})).Return(nil).Once()
	roomRepo.On("TouchLastActive", ctx, "room-1", mock.AnythingOfType("time.Time")).Return(nil).Once()
	participantRepo.On("ListActiveByRoom", ctx, "room-1").Return([]domain.Participant{
		{RoomID: "room-1", UserID: "user-1", IsActive: true},
	}, nil).Once()

	// Act
	res, err := svc.Join(ctx, "room-1", "user-1", "")

	// Assert
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Rejoined, "首次加入不应标记为重入")
	assert.Equal(t, int64(1), res.OnlineCount)
	assert.Equal(t, "room-1", res.Room.ID)

	roomRepo.AssertExpectations(t)
	participantRepo.AssertExpectations(t)
}

func TestPresenceService_Join_RejoinIsIdempotent(t *testing.T) {
	// Arrange: 用户已在线，重复加入不应触发容量检查或写库
	svc, roomRepo, participantRepo, _ := newPresenceService(t)
	ctx := context.Background()
	room := &domain.Room{ID: "room-1", OwnerID: "owner-1", Capacity: 2, IsActive: true}
	active := &domain.Participant{RoomID: "room-1", UserID: "user-1", Role: domain.RoleParticipant, IsActive: true}

	roomRepo.On("FindByID", ctx, "room-1").Return(room, nil).Once()
	participantRepo.On("Find", ctx, "room-1", "user-1").Return(active, nil).Once()
	roomRepo.On("TouchLastActive", ctx, "room-1", mock.AnythingOfType("time.Time")).Return(nil).Once()
	participantRepo.On("ListActiveByRoom", ctx, "room-1").Return([]domain.Participant{*active}, nil).Once()

	// Act
	res, err := svc.Join(ctx, "room-1", "user-1", "")

	// Assert
	require.NoError(t, err)
	assert.True(t, res.Rejoined, "已在线的用户加入应标记为重入")
	assert.Equal(t, int64(1), res.OnlineCount)

	participantRepo.AssertNotCalled(t, "CountActiveByRoom", mock.Anything, mock.Anything)
	participantRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestPresenceService_Join_ReactivationResetsState(t *testing.T) {
	// Arrange: 离线的旧记录重新激活时刷新活动时间,清掉残留的光标和选区
	svc, roomRepo, participantRepo, _ := newPresenceService(t)
	ctx := context.Background()
	room := &domain.Room{ID: "room-1", OwnerID: "owner-1", Capacity: 10, IsActive: true}
	stale := time.Now().Add(-3 * time.Hour)
	left := &domain.Participant{
		RoomID: "room-1", UserID: "user-1", Role: domain.RoleParticipant,
		IsActive: false, LeftAt: &stale, LastSeenAt: stale,
		CursorLine: 12, CursorCol: 4, Selection: `{"start":0,"end":9}`,
	}

	roomRepo.On("FindByID", ctx, "room-1").Return(room, nil).Once()
	participantRepo.On("Find", ctx, "room-1", "user-1").Return(left, nil).Once()
	participantRepo.On("CountActiveByRoom", ctx, "room-1").Return(int64(0), nil).Once()
	participantRepo.On("Save", ctx, mock.MatchedBy(func(p *domain.Participant) bool {
		return p.IsActive && p.LeftAt == nil &&
			p.LastSeenAt.After(stale) &&
			p.CursorLine == 0 && p.CursorCol == 0 && p.Selection == ""
	})).Return(nil).Once()
	roomRepo.On("TouchLastActive", ctx, "room-1", mock.AnythingOfType("time.Time")).Return(nil).Once()
	participantRepo.On("ListActiveByRoom", ctx, "room-1").Return([]domain.Participant{*left}, nil).Once()

	// Act
	res, err := svc.Join(ctx, "room-1", "user-1", "")

	// Assert
	require.NoError(t, err)
	assert.False(t, res.Rejoined)
	participantRepo.AssertExpectations(t)
}

func TestPresenceService_Join_RoomFull(t *testing.T) {
	// Arrange
	svc, roomRepo, participantRepo, _ := newPresenceService(t)
	ctx := context.Background()
	room := &domain.Room{ID: "room-1", OwnerID: "owner-1", Capacity: 2, IsActive: true}

	roomRepo.On("FindByID", ctx, "room-1").Return(room, nil).Once()
	participantRepo.On("Find", ctx, "room-1", "user-3").Return(nil, repository.ErrNotFound).Once()
	participantRepo.On("CountActiveByRoom", ctx, "room-1").Return(int64(2), nil).Once()

	// Act
	_, err := svc.Join(ctx, "room-1", "user-3", "")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrRoomFull))
	participantRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestPresenceService_Join_ClosedRoom(t *testing.T) {
	// Arrange
	svc, roomRepo, _, _ := newPresenceService(t)
	ctx := context.Background()
	room := &domain.Room{ID: "room-1", OwnerID: "owner-1", Capacity: 10, IsActive: false}

	roomRepo.On("FindByID", ctx, "room-1").Return(room, nil).Once()

	// Act
	_, err := svc.Join(ctx, "room-1", "user-1", "")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrRoomClosed))
}

func TestPresenceService_Join_PrivateRoom_WrongPassword(t *testing.T) {
	// Arrange
	svc, roomRepo, participantRepo, _ := newPresenceService(t)
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.DefaultCost)
	room := &domain.Room{ID: "room-1", OwnerID: "owner-1", Capacity: 10, IsActive: true, IsPrivate: true, Password: string(hash)}

	roomRepo.On("FindByID", ctx, "room-1").Return(room, nil).Once()
	participantRepo.On("Find", ctx, "room-1", "user-1").Return(nil, repository.ErrNotFound).Once()

	// Act
	_, err := svc.Join(ctx, "room-1", "user-1", "wrong")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInvalidPassword))
}

func TestPresenceService_Join_OwnerSkipsPassword(t *testing.T) {
	// Arrange: 房主进入自己的私有房间不需要密码
	svc, roomRepo, participantRepo, _ := newPresenceService(t)
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.DefaultCost)
	room := &domain.Room{ID: "room-1", OwnerID: "owner-1", Capacity: 10, IsActive: true, IsPrivate: true, Password: string(hash)}

	roomRepo.On("FindByID", ctx, "room-1").Return(room, nil).Once()
	participantRepo.On("Find", ctx, "room-1", "owner-1").Return(nil, repository.ErrNotFound).Once()
	participantRepo.On("CountActiveByRoom", ctx, "room-1").Return(int64(0), nil).Once()
	participantRepo.On("Save", ctx, mock.MatchedBy(func(p *domain.Participant) bool {
		return p.Role == domain.RoleOwner
	})).Return(nil).Once()
	roomRepo.On("TouchLastActive", ctx, "room-1", mock.AnythingOfType("time.Time")).Return(nil).Once()
	participantRepo.On("ListActiveByRoom", ctx, "room-1").Return([]domain.Participant{
		{RoomID: "room-1", UserID: "owner-1", Role: domain.RoleOwner, IsActive: true},
	}, nil).Once()

	// Act
	res, err := svc.Join(ctx, "room-1", "owner-1", "")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, res.Participant.Role)
}

func TestPresenceService_Leave_Success(t *testing.T) {
	// Arrange
	svc, _, participantRepo, _ := newPresenceService(t)
	ctx := context.Background()
	member := &domain.Participant{RoomID: "room-1", UserID: "user-1", Role: domain.RoleParticipant, IsActive: true}

	participantRepo.On("Find", ctx, "room-1", "user-1").Return(member, nil).Once()
	participantRepo.On("Save", ctx, mock.MatchedBy(func(p *domain.Participant) bool {
		return !p.IsActive && p.LeftAt != nil
	})).Return(nil).Once()
	participantRepo.On("CountActiveByRoom", ctx, "room-1").Return(int64(1), nil).Once()

	// Act
	online, err := svc.Leave(ctx, "room-1", "user-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), online)
	participantRepo.AssertExpectations(t)
}

func TestPresenceService_Leave_OwnerRejected(t *testing.T) {
	// Arrange: 房主不能离开自己的房间
	svc, _, participantRepo, _ := newPresenceService(t)
	ctx := context.Background()
	owner := &domain.Participant{RoomID: "room-1", UserID: "owner-1", Role: domain.RoleOwner, IsActive: true}

	participantRepo.On("Find", ctx, "room-1", "owner-1").Return(owner, nil).Once()

	// Act
	_, err := svc.Leave(ctx, "room-1", "owner-1")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrOwnerCannotLeave))
	participantRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestPresenceService_Disconnect_OwnerKeepsMembership(t *testing.T) {
	// Arrange: 房主断线时保留其在线成员记录
	svc, _, participantRepo, _ := newPresenceService(t)
	ctx := context.Background()
	owner := &domain.Participant{RoomID: "room-1", UserID: "owner-1", Role: domain.RoleOwner, IsActive: true}

	participantRepo.On("Find", ctx, "room-1", "owner-1").Return(owner, nil).Once()
	participantRepo.On("CountActiveByRoom", ctx, "room-1").Return(int64(1), nil).Once()

	// Act
	online, wasOwner, err := svc.Disconnect(ctx, "room-1", "owner-1")

	// Assert
	require.NoError(t, err)
	assert.True(t, wasOwner)
	assert.Equal(t, int64(1), online)
	participantRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestPresenceService_Disconnect_Idempotent(t *testing.T) {
	// Arrange: 不存在的成员断开不报错
	svc, _, participantRepo, _ := newPresenceService(t)
	ctx := context.Background()

	participantRepo.On("Find", ctx, "room-1", "ghost").Return(nil, repository.ErrNotFound).Once()

	// Act
	online, wasOwner, err := svc.Disconnect(ctx, "room-1", "ghost")

	// Assert
	require.NoError(t, err)
	assert.False(t, wasOwner)
	assert.Equal(t, int64(0), online)
}

func TestPresenceService_UpdateCursor_NegativeRejected(t *testing.T) {
	// Arrange
	svc, _, participantRepo, _ := newPresenceService(t)

	// Act
	err := svc.UpdateCursor(context.Background(), "room-1", "user-1", -1, 0, "")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInvalidInput))
	participantRepo.AssertNotCalled(t, "UpdateCursor",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPresenceService_UpdateCursor_PersistsSelection(t *testing.T) {
	// Arrange
	svc, _, participantRepo, _ := newPresenceService(t)
	ctx := context.Background()
	member := &domain.Participant{RoomID: "room-1", UserID: "user-1", Role: domain.RoleParticipant, IsActive: true}

	participantRepo.On("Find", ctx, "room-1", "user-1").Return(member, nil).Once()
	participantRepo.On("UpdateCursor", ctx, "room-1", "user-1", 3, 7, `{"start":0,"end":12}`).Return(nil).Once()

	// Act
	err := svc.UpdateCursor(ctx, "room-1", "user-1", 3, 7, `{"start":0,"end":12}`)

	// Assert
	require.NoError(t, err)
	participantRepo.AssertExpectations(t)
}

func TestPresenceService_UpdateCursor_NonMemberRejected(t *testing.T) {
	// Arrange
	svc, _, participantRepo, _ := newPresenceService(t)
	ctx := context.Background()
	offline := &domain.Participant{RoomID: "room-1", UserID: "user-1", IsActive: false}

	participantRepo.On("Find", ctx, "room-1", "user-1").Return(offline, nil).Once()

	// Act
	err := svc.UpdateCursor(ctx, "room-1", "user-1", 3, 7, "")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrNotAMember))
}
