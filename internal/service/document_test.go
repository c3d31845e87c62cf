package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/tanishk-sarode/codechill-v2/internal/domain"
	"github.com/tanishk-sarode/codechill-v2/internal/dto"
	"github.com/tanishk-sarode/codechill-v2/internal/repository/mocks"
	"github.com/tanishk-sarode/codechill-v2/internal/service"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// capturedEvent 记录一次广播调用及其目标。
type capturedEvent struct {
	kind    string // room / except / conn
	roomID  string
	connID  string
	payload interface{}
}

// captureBroadcaster 收集业务层发出的所有事件，供断言使用。
type captureBroadcaster struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (b *captureBroadcaster) BroadcastToRoom(roomID string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, capturedEvent{kind: "room", roomID: roomID, payload: payload})
}

func (b *captureBroadcaster) BroadcastToRoomExcept(roomID, exceptConnID string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, capturedEvent{kind: "except", roomID: roomID, connID: exceptConnID, payload: payload})
}

func (b *captureBroadcaster) SendToConnection(connID string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, capturedEvent{kind: "conn", connID: connID, payload: payload})
}

func (b *captureBroadcaster) all() []capturedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]capturedEvent, len(b.events))
	copy(out, b.events)
	return out
}

// newDocumentService 装配被测服务。asynq client 指向不可达地址,
// 入队失败只会被记录,不影响编辑语义。
func newDocumentService(t *testing.T) (*service.DocumentService, *mocks.RoomRepository, *mocks.ParticipantRepository, *captureBroadcaster) {
	t.Helper()
	roomRepo := new(mocks.RoomRepository)
	participantRepo := new(mocks.ParticipantRepository)
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = asynqClient.Close() })

	// 接受的编辑会刷新房间活跃时间和编辑者光标,默认放行
	roomRepo.On("TouchLastActive", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	participantRepo.On("UpdateCursor", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	svc := service.NewDocumentService(roomRepo, participantRepo, service.NewRoomLocks(), asynqClient)
	broadcaster := &captureBroadcaster{}
	svc.SetBroadcaster(broadcaster)
	return svc, roomRepo, participantRepo, broadcaster
}

func strPtr(s string) *string { return &s }
func i64Ptr(v int64) *int64   { return &v }

func activateRoom(t *testing.T, svc *service.DocumentService, roomRepo *mocks.RoomRepository, room *domain.Room) {
	t.Helper()
	roomRepo.On("FindByID", mock.Anything, room.ID).Return(room, nil).Once()
	require.NoError(t, svc.Activate(context.Background(), room.ID))
}

func TestDocumentService_ApplyEdit_AcceptsMatchingVersion(t *testing.T) {
	// Arrange
	svc, roomRepo, _, broadcaster := newDocumentService(t)
	ctx := context.Background()
	activateRoom(t, svc, roomRepo, &domain.Room{ID: "room-1", Content: "", ContentVersion: 1, IsActive: true})

	// Act
	err := svc.ApplyEdit(ctx, "room-1", "user-1", "conn-1", dto.CodeChangePayload{
		RoomID:  "room-1",
		Content: strPtr("package main"),
		Version: i64Ptr(1),
	})

	// Assert: 接受后新版本为提议版本 + 1
	require.NoError(t, err)
	content, version, err := svc.Snapshot(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, "package main", content)
	assert.Equal(t, int64(2), version)

	// 其他连接收到 code_updated,编辑者收到 code_change_ack
	events := broadcaster.all()
	require.Len(t, events, 2)
	assert.Equal(t, "except", events[0].kind)
	assert.Equal(t, "conn-1", events[0].connID)
	updated, ok := events[0].payload.(dto.CodeUpdatedEvent)
	require.True(t, ok)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, "package main", updated.Content)

	assert.Equal(t, "conn", events[1].kind)
	ack, ok := events[1].payload.(dto.CodeChangeAckEvent)
	require.True(t, ok)
	assert.Equal(t, int64(2), ack.Version)
}

func TestDocumentService_ApplyEdit_AcceptsNewerProposal(t *testing.T) {
	// Arrange: 提议版本高于当前版本同样接受
	svc, roomRepo, _, _ := newDocumentService(t)
	ctx := context.Background()
	activateRoom(t, svc, roomRepo, &domain.Room{ID: "room-1", Content: "old", ContentVersion: 1, IsActive: true})

	// Act
	err := svc.ApplyEdit(ctx, "room-1", "user-1", "conn-1", dto.CodeChangePayload{
		RoomID:  "room-1",
		Content: strPtr("new"),
		Version: i64Ptr(5),
	})

	// Assert
	require.NoError(t, err)
	_, version, _ := svc.Snapshot(ctx, "room-1")
	assert.Equal(t, int64(6), version)
}

func TestDocumentService_ApplyEdit_RejectsStaleVersion(t *testing.T) {
	// Arrange: 先接受一次编辑把版本推到 2,再用过期版本提议
	svc, roomRepo, _, broadcaster := newDocumentService(t)
	ctx := context.Background()
	activateRoom(t, svc, roomRepo, &domain.Room{ID: "room-1", Content: "", ContentVersion: 1, IsActive: true})

	require.NoError(t, svc.ApplyEdit(ctx, "room-1", "user-1", "conn-1", dto.CodeChangePayload{
		RoomID: "room-1", Content: strPtr("first"), Version: i64Ptr(1),
	}))
	before := len(broadcaster.all())

	// Act: conn-2 基于版本 1 的提议已过期
	err := svc.ApplyEdit(ctx, "room-1", "user-2", "conn-2", dto.CodeChangePayload{
		RoomID: "room-1", Content: strPtr("stale"), Version: i64Ptr(1),
	})

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrVersionConflict))

	// 文档状态不变
	content, version, _ := svc.Snapshot(ctx, "room-1")
	assert.Equal(t, "first", content)
	assert.Equal(t, int64(2), version)

	// 只有编辑者收到带权威内容的 code_conflict,没有房间广播
	events := broadcaster.all()[before:]
	require.Len(t, events, 1)
	assert.Equal(t, "conn", events[0].kind)
	assert.Equal(t, "conn-2", events[0].connID)
	conflict, ok := events[0].payload.(dto.CodeConflictEvent)
	require.True(t, ok)
	assert.Equal(t, "first", conflict.Content)
	assert.Equal(t, int64(2), conflict.Version)
}

func TestDocumentService_ApplyEdit_ForwardsCursorHint(t *testing.T) {
	// Arrange
	svc, roomRepo, participantRepo, broadcaster := newDocumentService(t)
	ctx := context.Background()
	activateRoom(t, svc, roomRepo, &domain.Room{ID: "room-1", Content: "", ContentVersion: 1, IsActive: true})

	// Act: 编辑附带编辑者光标位置
	err := svc.ApplyEdit(ctx, "room-1", "user-1", "conn-1", dto.CodeChangePayload{
		RoomID:  "room-1",
		Content: strPtr("package main"),
		Version: i64Ptr(1),
		Cursor:  &dto.CursorHint{Line: 3, Col: 7},
	})

	// Assert: code_updated 原样携带光标位置
	require.NoError(t, err)
	events := broadcaster.all()
	require.NotEmpty(t, events)
	updated, ok := events[0].payload.(dto.CodeUpdatedEvent)
	require.True(t, ok)
	require.NotNil(t, updated.Cursor)
	assert.Equal(t, 3, updated.Cursor.Line)
	assert.Equal(t, 7, updated.Cursor.Col)

	// 编辑者的成员记录同步更新,选区随编辑失效
	participantRepo.AssertCalled(t, "UpdateCursor", mock.Anything, "room-1", "user-1", 3, 7, "")
}

func TestDocumentService_ApplyEdit_TouchesRoomActivity(t *testing.T) {
	// Arrange
	svc, roomRepo, participantRepo, _ := newDocumentService(t)
	ctx := context.Background()
	activateRoom(t, svc, roomRepo, &domain.Room{ID: "room-1", Content: "", ContentVersion: 1, IsActive: true})

	// Act: 不带光标的编辑
	err := svc.ApplyEdit(ctx, "room-1", "user-1", "conn-1", dto.CodeChangePayload{
		RoomID:  "room-1",
		Content: strPtr("x"),
		Version: i64Ptr(1),
	})

	// Assert: 接受的编辑刷新房间活跃时间,光标记录不动
	require.NoError(t, err)
	roomRepo.AssertCalled(t, "TouchLastActive", mock.Anything, "room-1", mock.AnythingOfType("time.Time"))
	participantRepo.AssertNotCalled(t, "UpdateCursor", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything)

	// 被拒的编辑不算房间活动
	_ = svc.ApplyEdit(ctx, "room-1", "user-2", "conn-2", dto.CodeChangePayload{
		RoomID:  "room-1",
		Content: strPtr("stale"),
		Version: i64Ptr(1),
	})
	roomRepo.AssertNumberOfCalls(t, "TouchLastActive", 1)
}

func TestDocumentService_ApplyEdit_MalformedPayload(t *testing.T) {
	// Arrange
	svc, roomRepo, _, broadcaster := newDocumentService(t)
	ctx := context.Background()
	activateRoom(t, svc, roomRepo, &domain.Room{ID: "room-1", ContentVersion: 1, IsActive: true})

	// Act & Assert: 缺失字段
	err := svc.ApplyEdit(ctx, "room-1", "user-1", "conn-1", dto.CodeChangePayload{RoomID: "room-1"})
	assert.True(t, errors.Is(err, service.ErrInvalidEdit))

	// Act & Assert: 内容超长
	huge := strings.Repeat("a", domain.MaxCodeLength+1)
	err = svc.ApplyEdit(ctx, "room-1", "user-1", "conn-1", dto.CodeChangePayload{
		RoomID: "room-1", Content: &huge, Version: i64Ptr(1),
	})
	assert.True(t, errors.Is(err, service.ErrInvalidEdit))

	// 被拒的编辑不产生任何广播,版本不变
	assert.Empty(t, broadcaster.all())
	_, version, _ := svc.Snapshot(ctx, "room-1")
	assert.Equal(t, int64(1), version)
}

func TestDocumentService_ApplyEdit_InactiveDocument(t *testing.T) {
	// Arrange: 未 Activate 的房间不接受编辑
	svc, _, _, _ := newDocumentService(t)

	// Act
	err := svc.ApplyEdit(context.Background(), "room-x", "user-1", "conn-1", dto.CodeChangePayload{
		RoomID: "room-x", Content: strPtr("x"), Version: i64Ptr(0),
	})

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrRoomNotFound))
}

func TestDocumentService_Release_FlushesDirtyContent(t *testing.T) {
	// Arrange
	svc, roomRepo, _, _ := newDocumentService(t)
	ctx := context.Background()
	activateRoom(t, svc, roomRepo, &domain.Room{ID: "room-1", Content: "", ContentVersion: 1, IsActive: true})

	require.NoError(t, svc.ApplyEdit(ctx, "room-1", "user-1", "conn-1", dto.CodeChangePayload{
		RoomID: "room-1", Content: strPtr("dirty content"), Version: i64Ptr(1),
	}))

	// 最后一个连接离开时同步写回
	roomRepo.On("UpdateContent", ctx, "room-1", "dirty content", int64(2)).Return(nil).Once()

	// Act
	svc.Release(ctx, "room-1")

	// Assert
	roomRepo.AssertExpectations(t)

	// 内存副本已丢弃,Snapshot 回落到数据库
	roomRepo.On("FindByID", mock.Anything, "room-1").
		Return(&domain.Room{ID: "room-1", Content: "dirty content", ContentVersion: 2, IsActive: true}, nil).Once()
	content, version, err := svc.Snapshot(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, "dirty content", content)
	assert.Equal(t, int64(2), version)
}

func TestDocumentService_Release_KeepsDocumentWhileReferenced(t *testing.T) {
	// Arrange: 两个连接引用同一文档,一个离开后文档仍在内存
	svc, roomRepo, _, _ := newDocumentService(t)
	ctx := context.Background()
	activateRoom(t, svc, roomRepo, &domain.Room{ID: "room-1", Content: "shared", ContentVersion: 3, IsActive: true})
	require.NoError(t, svc.Activate(ctx, "room-1")) // 第二个连接,只加引用

	// Act
	svc.Release(ctx, "room-1")

	// Assert: 没有触发写回,内存读仍然可用
	roomRepo.AssertNotCalled(t, "UpdateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	content, version, err := svc.Snapshot(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, "shared", content)
	assert.Equal(t, int64(3), version)
}

func TestDocumentService_ConcurrentEdits_SerializedPerRoom(t *testing.T) {
	// Arrange: 并发提交编辑,版本必须严格递增,不出现丢失更新
	svc, roomRepo, _, broadcaster := newDocumentService(t)
	ctx := context.Background()
	activateRoom(t, svc, roomRepo, &domain.Room{ID: "room-1", Content: "", ContentVersion: 1, IsActive: true})

	const editors = 8
	var wg sync.WaitGroup
	accepted := make(chan int64, editors)

	// Act: 所有编辑者基于同一个旧版本竞争,至少一个会被接受
	for i := 0; i < editors; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := svc.ApplyEdit(ctx, "room-1", "user", "conn", dto.CodeChangePayload{
				RoomID: "room-1", Content: strPtr("edit"), Version: i64Ptr(1),
			})
			if err == nil {
				accepted <- 1
			}
		}(i)
	}
	wg.Wait()
	close(accepted)

	// Assert: 基于版本 1 的提议只有第一个能赢,其余都被版本比较拒绝
	count := 0
	for range accepted {
		count++
	}
	assert.Equal(t, 1, count, "同一旧版本只应有一次接受")
	_, version, _ := svc.Snapshot(ctx, "room-1")
	assert.Equal(t, int64(2), version)

	// 每个被拒的编辑者都收到一次 code_conflict
	conflicts := 0
	for _, ev := range broadcaster.all() {
		if _, ok := ev.payload.(dto.CodeConflictEvent); ok {
			conflicts++
		}
	}
	assert.Equal(t, editors-1, conflicts)
}
