package hub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/tanishk-sarode/codechill-v2/internal/domain"
	"github.com/tanishk-sarode/codechill-v2/internal/dto"
	"github.com/tanishk-sarode/codechill-v2/internal/judge"
	"github.com/tanishk-sarode/codechill-v2/internal/repository"
	"github.com/tanishk-sarode/codechill-v2/internal/repository/mocks"
	"github.com/tanishk-sarode/codechill-v2/internal/service"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// offlineEngine 用于装配不会被触达的执行服务。
type offlineEngine struct{}

func (offlineEngine) Submit(ctx context.Context, languageID int, sourceCode, stdin string) (string, error) {
	return "", errors.New("engine offline")
}

func (offlineEngine) Get(ctx context.Context, token string) (*judge.SubmissionResult, error) {
	return nil, errors.New("engine offline")
}

// newTestHub 用 mock 仓储装配完整的 Hub。业务层走真实服务,
// 仓储调用没有配置期望时 mock 会 panic,顺带守住不该发生的调用。
func newTestHub(t *testing.T) (*Hub, *mocks.RoomRepository, *mocks.ParticipantRepository) {
	t.Helper()
	roomRepo := new(mocks.RoomRepository)
	participantRepo := new(mocks.ParticipantRepository)
	userRepo := new(mocks.UserRepository)
	messageRepo := new(mocks.MessageRepository)
	executionRepo := new(mocks.ExecutionRepository)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = asynqClient.Close() })

	locks := service.NewRoomLocks()
	documents := service.NewDocumentService(roomRepo, participantRepo, locks, asynqClient)
	presence := service.NewPresenceService(roomRepo, participantRepo, userRepo, locks)
	chat := service.NewChatService(messageRepo, participantRepo, roomRepo, userRepo)
	executions := service.NewExecutionService(executionRepo, participantRepo, roomRepo, offlineEngine{}, documents)
	rooms := service.NewRoomService(roomRepo, participantRepo)

	return NewHub(NewRegistry(), rooms, presence, documents, chat, executions), roomRepo, participantRepo
}

// newTestClient 构造不带底层 WebSocket 连接的客户端。
// Hub 的发送路径只写 send 通道,测试直接从通道里取广播。
func newTestClient(h *Hub, userID, username string) *Client {
	c := &Client{
		hub:      h,
		id:       uuid.NewString(),
		userID:   userID,
		username: username,
		send:     make(chan []byte, 16),
	}
	h.registry.Add(c)
	return c
}

func inGroup(h *Hub, roomID string, c *Client) bool {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return h.rooms[roomID][c]
}

func TestHub_Join_RejectedJoinKeepsCurrentRoom(t *testing.T) {
	// Arrange: client 已在 room-1,尝试加入密码错误的私有房间 room-2
	h, roomRepo, participantRepo := newTestHub(t)
	client := newTestClient(h, "user-1", "alice")
	h.addToGroup(client, "room-1")
	client.setRoom("room-1")

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.DefaultCost)
	require.NoError(t, err)
	roomRepo.On("FindByID", mock.Anything, "room-2").Return(&domain.Room{
		ID: "room-2", OwnerID: "someone-else", IsActive: true,
		IsPrivate: true, Password: string(hash), Capacity: 4,
	}, nil).Once()
	participantRepo.On("Find", mock.Anything, "room-2", "user-1").
		Return(nil, repository.ErrNotFound).Once()

	// Act
	h.handleJoin(client, []byte(`{"type":"join_room","room_id":"room-2","password":"wrong"}`))

	// Assert: 加入失败时连接停留在原房间,不会被丢到房间之外
	assert.Equal(t, "room-1", client.Room())
	assert.True(t, inGroup(h, "room-1", client))
	assert.False(t, inGroup(h, "room-2", client))

	// 只收到错误事件。room-1 没有任何离开处理。
	select {
	case data := <-client.send:
		var ev dto.ErrorEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, dto.EventError, ev.Type)
		assert.Equal(t, dto.EventJoinRoom, ev.Event)
	default:
		t.Fatal("expected an error event on the client channel")
	}
	participantRepo.AssertNotCalled(t, "Find", mock.Anything, "room-1", "user-1")
}

func TestHub_DropFromRoom_OwnerDisconnectKeepsRoster(t *testing.T) {
	// Arrange: 房主断线,在线记录保留
	h, _, participantRepo := newTestHub(t)
	owner := newTestClient(h, "owner-1", "olivia")
	peer := newTestClient(h, "user-2", "bob")
	h.addToGroup(owner, "room-1")
	h.addToGroup(peer, "room-1")
	owner.setRoom("room-1")
	peer.setRoom("room-1")

	participantRepo.On("Find", mock.Anything, "room-1", "owner-1").
		Return(&domain.Participant{RoomID: "room-1", UserID: "owner-1", Role: domain.RoleOwner, IsActive: true}, nil).Once()
	participantRepo.On("CountActiveByRoom", mock.Anything, "room-1").Return(int64(2), nil).Once()

	// Act
	h.dropFromRoom(owner, true)

	// Assert: 名册没有变化,不广播 user_left
	assert.Equal(t, "", owner.Room())
	assert.False(t, inGroup(h, "room-1", owner))
	assert.Zero(t, len(peer.send), "房主断线不应向剩余成员广播 user_left")
	participantRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestHub_DropFromRoom_MemberDisconnectBroadcasts(t *testing.T) {
	// Arrange: 普通成员断线按离开处理
	h, _, participantRepo := newTestHub(t)
	member := newTestClient(h, "user-2", "bob")
	peer := newTestClient(h, "user-3", "carol")
	h.addToGroup(member, "room-1")
	h.addToGroup(peer, "room-1")
	member.setRoom("room-1")
	peer.setRoom("room-1")

	participantRepo.On("Find", mock.Anything, "room-1", "user-2").
		Return(&domain.Participant{RoomID: "room-1", UserID: "user-2", Role: domain.RoleParticipant, IsActive: true}, nil).Once()
	participantRepo.On("Save", mock.Anything,
		mock.MatchedBy(func(p *domain.Participant) bool { return !p.IsActive })).Return(nil).Once()
	participantRepo.On("CountActiveByRoom", mock.Anything, "room-1").Return(int64(1), nil).Once()

	// Act
	h.dropFromRoom(member, true)

	// Assert: 剩余成员收到 user_left
	require.Equal(t, 1, len(peer.send))
	var ev dto.UserLeftEvent
	require.NoError(t, json.Unmarshal(<-peer.send, &ev))
	assert.Equal(t, dto.EventUserLeft, ev.Type)
	assert.Equal(t, "user-2", ev.UserID)
	assert.Equal(t, int64(1), ev.OnlineCount)
}
