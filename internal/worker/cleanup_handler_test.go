package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/tanishk-sarode/codechill-v2/internal/domain"
	"github.com/tanishk-sarode/codechill-v2/internal/repository/mocks"
	"github.com/tanishk-sarode/codechill-v2/internal/tasks"
	"github.com/tanishk-sarode/codechill-v2/internal/worker"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRoomCleanupHandler_ClosesOnlyEmptyIdleRooms(t *testing.T) {
	// Arrange: 三个闲置房间。room-busy 还有普通成员在线;
	// room-owner-only 只剩房主断线后保留的在线记录;room-empty 无人。
	roomRepo := new(mocks.RoomRepository)
	participantRepo := new(mocks.ParticipantRepository)
	handler := worker.NewRoomCleanupHandler(roomRepo, participantRepo, time.Hour)
	ctx := context.Background()

	idle := []domain.Room{
		{ID: "room-busy", IsActive: true},
		{ID: "room-owner-only", IsActive: true},
		{ID: "room-empty", IsActive: true},
	}
	roomRepo.On("FindIdleActive", ctx, mock.AnythingOfType("time.Time")).Return(idle, nil).Once()

	participantRepo.On("ListActiveByRoom", ctx, "room-busy").
		Return([]domain.Participant{{UserID: "u1", Role: domain.RoleParticipant, IsActive: true}}, nil).Once()
	participantRepo.On("ListActiveByRoom", ctx, "room-owner-only").
		Return([]domain.Participant{{UserID: "u2", Role: domain.RoleOwner, IsActive: true}}, nil).Once()
	participantRepo.On("ListActiveByRoom", ctx, "room-empty").
		Return([]domain.Participant{}, nil).Once()

	roomRepo.On("Save", ctx, mock.MatchedBy(func(r *domain.Room) bool {
		return r.ID == "room-owner-only" && !r.IsActive
	})).Return(nil).Once()
	roomRepo.On("Save", ctx, mock.MatchedBy(func(r *domain.Room) bool {
		return r.ID == "room-empty" && !r.IsActive
	})).Return(nil).Once()
	participantRepo.On("DeactivateByRoom", ctx, "room-owner-only", mock.AnythingOfType("time.Time")).Return(nil).Once()
	participantRepo.On("DeactivateByRoom", ctx, "room-empty", mock.AnythingOfType("time.Time")).Return(nil).Once()

	// Act
	err := handler.ProcessTask(ctx, asynq.NewTask(tasks.TypeRoomCleanup, nil))

	// Assert: 有人的房间不被关闭
	require.NoError(t, err)
	roomRepo.AssertExpectations(t)
	participantRepo.AssertExpectations(t)
	roomRepo.AssertNotCalled(t, "Save", ctx, mock.MatchedBy(func(r *domain.Room) bool {
		return r.ID == "room-busy"
	}))
}

func TestRoomCleanupHandler_NothingToDo(t *testing.T) {
	// Arrange
	roomRepo := new(mocks.RoomRepository)
	participantRepo := new(mocks.ParticipantRepository)
	handler := worker.NewRoomCleanupHandler(roomRepo, participantRepo, time.Hour)
	ctx := context.Background()

	roomRepo.On("FindIdleActive", ctx, mock.AnythingOfType("time.Time")).Return([]domain.Room{}, nil).Once()

	// Act
	err := handler.ProcessTask(ctx, asynq.NewTask(tasks.TypeRoomCleanup, nil))

	// Assert
	require.NoError(t, err)
	roomRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	participantRepo.AssertNotCalled(t, "ListActiveByRoom", mock.Anything, mock.Anything)
}
