package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tanishk-sarode/codechill-v2/internal/domain"
	"github.com/tanishk-sarode/codechill-v2/internal/dto"
	"github.com/tanishk-sarode/codechill-v2/internal/repository"
	"github.com/tanishk-sarode/codechill-v2/internal/tasks"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// roomDoc 是一个房间文档在内存中的权威副本。
type roomDoc struct {
	content string
	version int64
	refs    int // 引用该文档的连接数
	dirty   bool
}

// DocumentService 是文档同步引擎。
// 每个活跃房间的文档以内存副本为权威，编辑在房间锁内串行应用，
// 接受的编辑通过 asynq 异步写回数据库。
type DocumentService struct {
	roomRepo        repository.RoomRepository
	participantRepo repository.ParticipantRepository
	locks           *RoomLocks
	asynq           *asynq.Client

	mu   sync.RWMutex
	docs map[string]*roomDoc

	broadcaster Broadcaster
}

// NewDocumentService 创建 DocumentService 实例。
func NewDocumentService(
	roomRepo repository.RoomRepository,
	participantRepo repository.ParticipantRepository,
	locks *RoomLocks,
	asynqClient *asynq.Client,
) *DocumentService {
	if roomRepo == nil || participantRepo == nil {
		panic("repositories cannot be nil for DocumentService")
	}
	if locks == nil {
		panic("RoomLocks cannot be nil for DocumentService")
	}
	if asynqClient == nil {
		panic("asynq client cannot be nil for DocumentService")
	}
	return &DocumentService{
		roomRepo:        roomRepo,
		participantRepo: participantRepo,
		locks:           locks,
		asynq:           asynqClient,
		docs:            make(map[string]*roomDoc),
	}
}

// SetBroadcaster 注入广播出口。必须在处理任何编辑前调用一次。
func (s *DocumentService) SetBroadcaster(b Broadcaster) {
	if b == nil {
		panic("Broadcaster cannot be nil for DocumentService")
	}
	s.broadcaster = b
}

// Activate 在首个连接加入房间时把文档装载进内存，后续连接只增加引用计数。
func (s *DocumentService) Activate(ctx context.Context, roomID string) error {
	lock := s.locks.get(roomID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	doc, ok := s.docs[roomID]
	if ok {
		doc.refs++
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		logrus.WithError(err).WithField("room_id", roomID).Error("Activate: failed to load room")
		return ErrInternalServer
	}

	s.mu.Lock()
	// 二次检查：装载期间可能有并发 Activate 已插入
	if existing, ok := s.docs[roomID]; ok {
		existing.refs++
	} else {
		s.docs[roomID] = &roomDoc{
			content: room.Content,
			version: room.ContentVersion,
			refs:    1,
		}
	}
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{"room_id": roomID, "version": room.ContentVersion}).
		Debug("Document activated in memory")
	return nil
}

// Release 在连接离开房间时减少引用计数。
// 计数归零时同步写回数据库并丢弃内存副本，保证重启或重新装载不丢内容。
func (s *DocumentService) Release(ctx context.Context, roomID string) {
	lock := s.locks.get(roomID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	doc, ok := s.docs[roomID]
	if !ok {
		s.mu.Unlock()
		return
	}
	doc.refs--
	if doc.refs > 0 {
		s.mu.Unlock()
		return
	}
	delete(s.docs, roomID)
	s.mu.Unlock()

	if doc.dirty {
		if err := s.roomRepo.UpdateContent(ctx, roomID, doc.content, doc.version); err != nil {
			logrus.WithError(err).WithField("room_id", roomID).
				Error("Release: failed to flush document content")
		}
	}
	logrus.WithField("room_id", roomID).Debug("Document released from memory")
}

// ApplyEdit 处理一次编辑提议。
// 接受规则：提议版本 >= 当前版本；应用后新版本为提议版本 + 1。
// 广播在房间锁内完成，广播顺序与应用顺序一致。
func (s *DocumentService) ApplyEdit(ctx context.Context, roomID, userID, connID string, payload dto.CodeChangePayload) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID})

	// 1. 负载验证。缺失字段或超长内容直接拒绝，不影响文档状态。
	if payload.Content == nil || payload.Version == nil {
		logCtx.Warn("Edit rejected: missing content or version")
		return ErrInvalidEdit
	}
	if len(*payload.Content) > domain.MaxCodeLength {
		logCtx.Warn("Edit rejected: content exceeds max length")
		return ErrInvalidEdit
	}

	lock := s.locks.get(roomID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	doc, ok := s.docs[roomID]
	s.mu.RUnlock()
	if !ok {
		logCtx.Warn("Edit rejected: document not active")
		return ErrRoomNotFound
	}

	// 2. 版本比较
	if *payload.Version < doc.version {
		// 拒绝：把权威内容发回编辑者，供客户端重置本地状态
		logCtx.WithFields(logrus.Fields{"proposed": *payload.Version, "current": doc.version}).
			Debug("Edit rejected: stale version")
		s.broadcaster.SendToConnection(connID, dto.CodeConflictEvent{
			Type:    dto.EventCodeConflict,
			RoomID:  roomID,
			Content: doc.content,
			Version: doc.version,
		})
		return ErrVersionConflict
	}

	// 3. 应用编辑
	doc.content = *payload.Content
	doc.version = *payload.Version + 1
	doc.dirty = true
	newVersion := doc.version

	// 4. 广播。持有房间锁，先接受的编辑先广播。
	// 编辑者的光标位置随内容一起带给其他成员，省一次 cursor_update 往返。
	s.broadcaster.BroadcastToRoomExcept(roomID, connID, dto.CodeUpdatedEvent{
		Type:    dto.EventCodeUpdated,
		RoomID:  roomID,
		UserID:  userID,
		Content: doc.content,
		Version: newVersion,
		Cursor:  payload.Cursor,
	})
	s.broadcaster.SendToConnection(connID, dto.CodeChangeAckEvent{
		Type:    dto.EventCodeChangeAck,
		RoomID:  roomID,
		Version: newVersion,
	})

	// 5. 异步写回数据库
	s.enqueuePersist(roomID, doc.content, newVersion, logCtx)

	// 6. 刷新编辑者的光标记录和房间活跃时间，失败不影响已接受的编辑。
	// 编辑会使既有选区失效，选区一并清空。
	if payload.Cursor != nil {
		if err := s.participantRepo.UpdateCursor(ctx, roomID, userID, payload.Cursor.Line, payload.Cursor.Col, ""); err != nil {
			logCtx.WithError(err).Warn("Failed to update editor cursor")
		}
	}
	if err := s.roomRepo.TouchLastActive(ctx, roomID, time.Now()); err != nil {
		logCtx.WithError(err).Warn("Failed to touch room last_active")
	}

	logCtx.WithField("version", newVersion).Debug("Edit applied")
	return nil
}

// Snapshot 返回房间文档的当前 (content, version)。
// 文档在内存中时读内存，否则读数据库。
func (s *DocumentService) Snapshot(ctx context.Context, roomID string) (string, int64, error) {
	lock := s.locks.get(roomID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	doc, ok := s.docs[roomID]
	s.mu.RUnlock()
	if ok {
		return doc.content, doc.version, nil
	}

	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return "", 0, ErrRoomNotFound
		}
		logrus.WithError(err).WithField("room_id", roomID).Error("Snapshot: failed to load room")
		return "", 0, ErrInternalServer
	}
	return room.Content, room.ContentVersion, nil
}

// enqueuePersist 把接受的编辑排入后台持久化队列。
// 入队失败只记录日志：内存副本仍是权威，Release 时还会同步写回一次。
func (s *DocumentService) enqueuePersist(roomID, content string, version int64, logCtx *logrus.Entry) {
	payload, err := tasks.NewDocumentPersistPayload(roomID, content, version)
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal document persist payload")
		return
	}
	task := asynq.NewTask(tasks.TypeDocumentPersist, payload)
	if _, err := s.asynq.Enqueue(task, asynq.Queue("critical"), asynq.MaxRetry(3)); err != nil {
		logCtx.WithError(err).Error("Failed to enqueue document persist task")
	}
}
