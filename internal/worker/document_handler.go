package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/tanishk-sarode/codechill-v2/internal/repository"
	"github.com/tanishk-sarode/codechill-v2/internal/tasks"
)

// DocumentPersistHandler 处理文档内容写回数据库的任务
type DocumentPersistHandler struct {
	roomRepo repository.RoomRepository
}

// NewDocumentPersistHandler 创建 Handler 实例
func NewDocumentPersistHandler(roomRepo repository.RoomRepository) *DocumentPersistHandler {
	return &DocumentPersistHandler{roomRepo: roomRepo}
}

// ProcessTask 实现 asynq.Handler 接口。
// 写入由仓储层按版本号做单调保护:任务乱序到达时旧版本不会覆盖新版本。
func (h *DocumentPersistHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)

	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
	})

	var payload tasks.DocumentPersistPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	logCtx = logCtx.WithFields(logrus.Fields{"room_id": payload.RoomID, "version": payload.Version})

	if err := h.roomRepo.UpdateContent(ctx, payload.RoomID, payload.Content, payload.Version); err != nil {
		logCtx.WithError(err).Error("Failed to persist document content")
		return fmt.Errorf("failed to persist document for room %s: %w", payload.RoomID, err)
	}

	logCtx.Info("Document persistence task processed successfully")
	return nil
}
