package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/tanishk-sarode/codechill-v2/internal/domain"
	"github.com/tanishk-sarode/codechill-v2/internal/repository"
)

// RoomCleanupHandler 周期性地关闭长时间没有活动的房间
type RoomCleanupHandler struct {
	roomRepo        repository.RoomRepository
	participantRepo repository.ParticipantRepository
	idleTimeout     time.Duration
}

// NewRoomCleanupHandler 创建 Handler 实例
func NewRoomCleanupHandler(roomRepo repository.RoomRepository, participantRepo repository.ParticipantRepository, idleTimeout time.Duration) *RoomCleanupHandler {
	if idleTimeout <= 0 {
		idleTimeout = time.Hour
	}
	return &RoomCleanupHandler{
		roomRepo:        roomRepo,
		participantRepo: participantRepo,
		idleTimeout:     idleTimeout,
	}
}

// ProcessTask 实现 asynq.Handler 接口。
// 单个房间关闭失败不会中断整批清理,留给下一轮重试。
func (h *RoomCleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	cutoff := time.Now().Add(-h.idleTimeout)
	logCtx := logrus.WithFields(logrus.Fields{
		"task_type": t.Type(),
		"cutoff":    cutoff.Format(time.RFC3339),
	})

	idleRooms, err := h.roomRepo.FindIdleActive(ctx, cutoff)
	if err != nil {
		logCtx.WithError(err).Error("Failed to find idle rooms")
		return err
	}
	if len(idleRooms) == 0 {
		logCtx.Debug("Room cleanup: nothing to do")
		return nil
	}

	closed := 0
	now := time.Now()
	for i := range idleRooms {
		room := &idleRooms[i]

		// 只关闭没有人的房间。房主断线后在线记录仍保留，
		// 所以只剩房主记录的闲置房间视为无人。
		active, err := h.participantRepo.ListActiveByRoom(ctx, room.ID)
		if err != nil {
			logCtx.WithError(err).WithField("room_id", room.ID).Warn("Failed to list participants of idle room")
			continue
		}
		if hasNonOwner(active) {
			continue
		}

		room.IsActive = false
		if err := h.roomRepo.Save(ctx, room); err != nil {
			logCtx.WithError(err).WithField("room_id", room.ID).Warn("Failed to close idle room")
			continue
		}
		if err := h.participantRepo.DeactivateByRoom(ctx, room.ID, now); err != nil {
			logCtx.WithError(err).WithField("room_id", room.ID).Warn("Failed to deactivate participants of closed room")
		}
		closed++
	}

	logCtx.WithFields(logrus.Fields{"found": len(idleRooms), "closed": closed}).
		Info("Room cleanup task processed")
	return nil
}

func hasNonOwner(participants []domain.Participant) bool {
	for i := range participants {
		if participants[i].Role != domain.RoleOwner {
			return true
		}
	}
	return false
}
