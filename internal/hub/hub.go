// Package hub 维护 WebSocket 连接集合，并把客户端事件路由到业务层。
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/tanishk-sarode/codechill-v2/internal/dto"
	"github.com/tanishk-sarode/codechill-v2/internal/service"

	"github.com/sirupsen/logrus"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用。
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	// 文档编辑携带完整内容，上限要容得下最大代码长度。
	maxMessageSize = 256 * 1024
)

// Hub 内部通道消息类型。
const (
	msgRegister   = "register"
	msgUnregister = "unregister"
	msgEvent      = "event"
)

// HubMessage 定义了在 Hub 内部通道传递的消息。
type HubMessage struct {
	Type    string  // "register", "unregister", "event"
	Client  *Client // 来源连接
	RawData []byte  // 仅用于 event (原始 WebSocket 消息)
}

// Hub 维护活跃连接集合并协调消息处理。
// 改变房间成员关系的事件 (join/leave/unregister) 在主循环内串行处理，
// 其余事件派发到独立 goroutine，由业务层的房间锁保证一致性。
type Hub struct {
	messageChan chan HubMessage

	registry *Registry

	// 广播组，按房间 ID 组织
	rooms   map[string]map[*Client]bool
	roomsMu sync.RWMutex

	roomsSvc   *service.RoomService
	presence   *service.PresenceService
	documents  *service.DocumentService
	chat       *service.ChatService
	executions *service.ExecutionService
}

// NewHub 创建 Hub 实例，并把自己注册为各业务服务的广播出口。
func NewHub(
	registry *Registry,
	roomsSvc *service.RoomService,
	presence *service.PresenceService,
	documents *service.DocumentService,
	chat *service.ChatService,
	executions *service.ExecutionService,
) *Hub {
	if registry == nil {
		panic("Registry cannot be nil for Hub")
	}
	if roomsSvc == nil || presence == nil || documents == nil || chat == nil || executions == nil {
		panic("all services must be non-nil for Hub")
	}
	h := &Hub{
		messageChan: make(chan HubMessage, 512),
		registry:    registry,
		rooms:       make(map[string]map[*Client]bool),
		roomsSvc:    roomsSvc,
		presence:    presence,
		documents:   documents,
		chat:        chat,
		executions:  executions,
	}
	documents.SetBroadcaster(h)
	chat.SetBroadcaster(h)
	executions.SetBroadcaster(h)
	return h
}

// Run 启动 Hub 的主事件处理循环。
// 它应该在一个单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.Type {
		case msgRegister:
			h.registerClient(msg.Client)
		case msgUnregister:
			h.unregisterClient(msg.Client)
		case msgEvent:
			h.dispatchEvent(msg.Client, msg.RawData)
		default:
			log.Warnf("Hub: Received unknown message type: %s", msg.Type)
		}
	}
	log.Info("Hub is shutting down...")
}

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)。
// 返回 true 如果消息成功入队，false 如果队列已满。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithField("message_type", msg.Type).Warn("Hub message channel full, dropping message")
		return false
	}
}

// Stop 关闭 Hub 的消息队列，Run 循环随之退出。
// 必须在所有连接关闭、不再有消息入队之后调用。
func (h *Hub) Stop() {
	close(h.messageChan)
}

// --- service.Broadcaster 实现 ---

// BroadcastToRoom 把 payload 推送给房间内的所有连接。
func (h *Hub) BroadcastToRoom(roomID string, payload interface{}) {
	h.fanOut(roomID, "", payload)
}

// BroadcastToRoomExcept 推送给房间内除 exceptConnID 以外的所有连接。
func (h *Hub) BroadcastToRoomExcept(roomID, exceptConnID string, payload interface{}) {
	h.fanOut(roomID, exceptConnID, payload)
}

// SendToConnection 只推送给指定连接。
func (h *Hub) SendToConnection(connID string, payload interface{}) {
	client, ok := h.registry.Get(connID)
	if !ok {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal payload for connection")
		return
	}
	h.sendBytes(client, data)
}

// fanOut 序列化 payload 并非阻塞地发给房间内的连接。
func (h *Hub) fanOut(roomID, exceptConnID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to marshal broadcast payload")
		return
	}

	h.roomsMu.RLock()
	roomClients, ok := h.rooms[roomID]
	// 创建接收者副本，避免发送时持有锁
	clientsToSend := make([]*Client, 0, len(roomClients))
	if ok {
		for client := range roomClients {
			if client.id != exceptConnID {
				clientsToSend = append(clientsToSend, client)
			}
		}
	}
	h.roomsMu.RUnlock()

	for _, client := range clientsToSend {
		h.sendBytes(client, data)
	}
}

// sendBytes 非阻塞发送，避免单个慢客户端阻塞广播。
func (h *Hub) sendBytes(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		logrus.WithFields(logrus.Fields{"conn_id": client.id, "user_id": client.userID}).
			Warn("Client send channel full, dropping message")
	}
}

// --- 注册与注销 ---

func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	h.registry.Add(client)
	logrus.WithFields(logrus.Fields{"conn_id": client.id, "user_id": client.userID}).
		Info("Client registered to Hub")
}

// unregisterClient 处理连接注销。
// registry.Remove 保证同一连接的清理恰好执行一次。
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	if _, ok := h.registry.Remove(client.id); !ok {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"conn_id": client.id, "user_id": client.userID})

	if client.Room() != "" {
		h.dropFromRoom(client, true)
	}

	// 关闭 send 通道，让 WritePump 退出。检查防止重复关闭 panic。
	select {
	case <-client.send:
		logCtx.Warn("Client send channel already closed or has data during unregister")
	default:
		close(client.send)
	}
	logCtx.Info("Client unregistered from Hub")
}

// dropFromRoom 把连接从当前房间移除并处理隐式离开。
// asDisconnect 为 true 时走断线语义（房主保留在线记录）。
func (h *Hub) dropFromRoom(client *Client, asDisconnect bool) {
	roomID := client.Room()
	logCtx := logrus.WithFields(logrus.Fields{"conn_id": client.id, "user_id": client.userID, "room_id": roomID})

	ctx := context.Background()
	online, wasOwner, err := h.presence.Disconnect(ctx, roomID, client.userID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to process disconnect in presence service")
	}

	h.removeFromGroup(client, roomID)
	client.setRoom("")
	h.documents.Release(ctx, roomID)

	// 房主断线时在线记录保留，名册没有变化，不广播 user_left
	if !wasOwner {
		h.BroadcastToRoom(roomID, dto.UserLeftEvent{
			Type:        dto.EventUserLeft,
			RoomID:      roomID,
			UserID:      client.userID,
			OnlineCount: online,
		})
	}
	if asDisconnect {
		logCtx.Info("Client dropped from room on disconnect")
	}
}

func (h *Hub) addToGroup(client *Client, roomID string) {
	h.roomsMu.Lock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	h.roomsMu.Unlock()
}

func (h *Hub) removeFromGroup(client *Client, roomID string) {
	h.roomsMu.Lock()
	if roomClients, ok := h.rooms[roomID]; ok {
		delete(roomClients, client)
		if len(roomClients) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.roomsMu.Unlock()
}

// --- 事件分发 ---

// dispatchEvent 解析事件信封并路由。
// join/leave 改变成员关系，必须在主循环内串行处理；
// 其余事件派发 goroutine，由业务层的房间锁保证一致性。
func (h *Hub) dispatchEvent(client *Client, raw []byte) {
	var envelope dto.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		h.sendError(client, "", "malformed message")
		return
	}

	switch envelope.Type {
	case dto.EventJoinRoom:
		h.handleJoin(client, raw)
	case dto.EventLeaveRoom:
		h.handleLeave(client, raw)
	case dto.EventCodeChange:
		go h.handleCodeChange(client, raw)
	case dto.EventCursorUpdate:
		go h.handleCursorUpdate(client, raw)
	case dto.EventSendMessage:
		go h.handleSendMessage(client, raw)
	case dto.EventEditMessage:
		go h.handleEditMessage(client, raw)
	case dto.EventDeleteMessage:
		go h.handleDeleteMessage(client, raw)
	case dto.EventExecuteCode:
		go h.handleExecuteCode(client, raw)
	case dto.EventGetRoomState:
		go h.handleGetRoomState(client, raw)
	default:
		logrus.WithFields(logrus.Fields{"conn_id": client.id, "event": envelope.Type}).
			Warn("Received unknown event type")
		h.sendError(client, envelope.Type, "unknown event type")
	}
}

// handleJoin 在主循环内处理加入房间。
func (h *Hub) handleJoin(client *Client, raw []byte) {
	var payload dto.JoinRoomPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.RoomID == "" {
		h.sendError(client, dto.EventJoinRoom, "malformed join payload")
		return
	}

	ctx := context.Background()
	alreadyInRoom := client.Room() == payload.RoomID

	// 先校验目标房间（密码、容量），通过后才离开旧房间。
	// 加入失败时连接停留在原房间，不会被丢到房间之外。
	res, err := h.presence.Join(ctx, payload.RoomID, client.userID, payload.Password)
	if err != nil {
		h.sendError(client, dto.EventJoinRoom, err.Error())
		return
	}

	if client.Room() != "" && !alreadyInRoom {
		h.dropFromRoom(client, false)
	}

	if !alreadyInRoom {
		if err := h.documents.Activate(ctx, payload.RoomID); err != nil {
			h.sendError(client, dto.EventJoinRoom, err.Error())
			return
		}
		h.addToGroup(client, payload.RoomID)
		client.setRoom(payload.RoomID)
	}

	// 内存副本是权威，快照必须在加入后读取
	content, version, err := h.documents.Snapshot(ctx, payload.RoomID)
	if err != nil {
		h.sendError(client, dto.EventJoinRoom, err.Error())
		return
	}
	roster := h.presence.RosterFor(ctx, res.Participants)

	h.SendToConnection(client.id, dto.RoomJoinedEvent{
		Type:         dto.EventRoomJoined,
		RoomID:       res.Room.ID,
		Name:         res.Room.Name,
		Language:     res.Room.Language,
		Content:      content,
		Version:      version,
		Capacity:     res.Room.Capacity,
		OnlineCount:  res.OnlineCount,
		Participants: toParticipantInfos(roster),
	})

	// 幂等重入不重复广播 user_joined
	if !res.Rejoined {
		h.BroadcastToRoomExcept(payload.RoomID, client.id, dto.UserJoinedEvent{
			Type:        dto.EventUserJoined,
			RoomID:      payload.RoomID,
			UserID:      client.userID,
			Username:    client.username,
			Role:        res.Participant.Role,
			OnlineCount: res.OnlineCount,
		})
	}
}

// handleLeave 在主循环内处理主动离开房间。
func (h *Hub) handleLeave(client *Client, raw []byte) {
	var payload dto.LeaveRoomPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(client, dto.EventLeaveRoom, "malformed leave payload")
		return
	}
	if client.Room() == "" || client.Room() != payload.RoomID {
		h.sendError(client, dto.EventLeaveRoom, service.ErrNotAMember.Error())
		return
	}

	ctx := context.Background()
	online, err := h.presence.Leave(ctx, payload.RoomID, client.userID)
	if err != nil {
		h.sendError(client, dto.EventLeaveRoom, err.Error())
		return
	}

	h.removeFromGroup(client, payload.RoomID)
	client.setRoom("")
	h.documents.Release(ctx, payload.RoomID)

	h.BroadcastToRoom(payload.RoomID, dto.UserLeftEvent{
		Type:        dto.EventUserLeft,
		RoomID:      payload.RoomID,
		UserID:      client.userID,
		OnlineCount: online,
	})
}

func (h *Hub) handleCodeChange(client *Client, raw []byte) {
	var payload dto.CodeChangePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(client, dto.EventCodeChange, "malformed edit payload")
		return
	}
	if payload.RoomID == "" {
		payload.RoomID = client.Room()
	}
	if client.Room() != payload.RoomID || payload.RoomID == "" {
		h.sendError(client, dto.EventCodeChange, service.ErrNotAMember.Error())
		return
	}

	err := h.documents.ApplyEdit(context.Background(), payload.RoomID, client.userID, client.id, payload)
	if err != nil && !errors.Is(err, service.ErrVersionConflict) {
		// 版本冲突已通过 code_conflict 通知，其他错误走通用错误事件
		h.sendError(client, dto.EventCodeChange, err.Error())
	}
}

func (h *Hub) handleCursorUpdate(client *Client, raw []byte) {
	var payload dto.CursorUpdatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(client, dto.EventCursorUpdate, "malformed cursor payload")
		return
	}
	if payload.RoomID == "" {
		payload.RoomID = client.Room()
	}
	if client.Room() != payload.RoomID || payload.RoomID == "" {
		h.sendError(client, dto.EventCursorUpdate, service.ErrNotAMember.Error())
		return
	}

	if err := h.presence.UpdateCursor(context.Background(), payload.RoomID, client.userID, payload.Line, payload.Col, string(payload.Selection)); err != nil {
		h.sendError(client, dto.EventCursorUpdate, err.Error())
		return
	}

	// 光标是瞬时状态，只转发给其他成员
	h.BroadcastToRoomExcept(payload.RoomID, client.id, dto.CursorMovedEvent{
		Type:      dto.EventCursorMoved,
		RoomID:    payload.RoomID,
		UserID:    client.userID,
		Line:      payload.Line,
		Col:       payload.Col,
		Selection: payload.Selection,
	})
}

func (h *Hub) handleSendMessage(client *Client, raw []byte) {
	var payload dto.SendMessagePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(client, dto.EventSendMessage, "malformed message payload")
		return
	}
	if payload.RoomID == "" {
		payload.RoomID = client.Room()
	}
	if client.Room() != payload.RoomID || payload.RoomID == "" {
		h.sendError(client, dto.EventSendMessage, service.ErrNotAMember.Error())
		return
	}

	if _, err := h.chat.SendMessage(context.Background(), payload.RoomID, client.userID, payload); err != nil {
		h.sendError(client, dto.EventSendMessage, err.Error())
	}
}

func (h *Hub) handleEditMessage(client *Client, raw []byte) {
	var payload dto.EditMessagePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(client, dto.EventEditMessage, "malformed message payload")
		return
	}
	if payload.RoomID == "" {
		payload.RoomID = client.Room()
	}
	if client.Room() != payload.RoomID || payload.RoomID == "" {
		h.sendError(client, dto.EventEditMessage, service.ErrNotAMember.Error())
		return
	}

	if _, err := h.chat.EditMessage(context.Background(), payload.RoomID, client.userID, payload); err != nil {
		h.sendError(client, dto.EventEditMessage, err.Error())
	}
}

func (h *Hub) handleDeleteMessage(client *Client, raw []byte) {
	var payload dto.DeleteMessagePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(client, dto.EventDeleteMessage, "malformed message payload")
		return
	}
	if payload.RoomID == "" {
		payload.RoomID = client.Room()
	}
	if client.Room() != payload.RoomID || payload.RoomID == "" {
		h.sendError(client, dto.EventDeleteMessage, service.ErrNotAMember.Error())
		return
	}

	if err := h.chat.DeleteMessage(context.Background(), payload.RoomID, client.userID, payload); err != nil {
		h.sendError(client, dto.EventDeleteMessage, err.Error())
	}
}

func (h *Hub) handleExecuteCode(client *Client, raw []byte) {
	var payload dto.ExecuteCodePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(client, dto.EventExecuteCode, "malformed execute payload")
		return
	}
	if payload.RoomID == "" {
		payload.RoomID = client.Room()
	}
	if client.Room() != payload.RoomID || payload.RoomID == "" {
		h.sendError(client, dto.EventExecuteCode, service.ErrNotAMember.Error())
		return
	}

	if _, err := h.executions.Submit(context.Background(), payload.RoomID, client.userID, payload); err != nil {
		h.sendError(client, dto.EventExecuteCode, err.Error())
	}
}

func (h *Hub) handleGetRoomState(client *Client, raw []byte) {
	var payload dto.GetRoomStatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(client, dto.EventGetRoomState, "malformed payload")
		return
	}
	if payload.RoomID == "" {
		payload.RoomID = client.Room()
	}
	if client.Room() != payload.RoomID || payload.RoomID == "" {
		h.sendError(client, dto.EventGetRoomState, service.ErrNotAMember.Error())
		return
	}

	ctx := context.Background()
	room, err := h.roomsSvc.FindRoomByID(ctx, payload.RoomID)
	if err != nil {
		h.sendError(client, dto.EventGetRoomState, err.Error())
		return
	}
	content, version, err := h.documents.Snapshot(ctx, payload.RoomID)
	if err != nil {
		h.sendError(client, dto.EventGetRoomState, err.Error())
		return
	}
	roster, err := h.presence.Roster(ctx, payload.RoomID)
	if err != nil {
		h.sendError(client, dto.EventGetRoomState, err.Error())
		return
	}

	h.SendToConnection(client.id, dto.RoomStateEvent{
		Type:         dto.EventRoomState,
		RoomID:       room.ID,
		Name:         room.Name,
		Language:     room.Language,
		Content:      content,
		Version:      version,
		OnlineCount:  int64(len(roster)),
		Participants: toParticipantInfos(roster),
	})
}

// sendError 向单个连接发送错误事件。
func (h *Hub) sendError(client *Client, event, message string) {
	data, err := json.Marshal(dto.NewErrorEvent(event, message))
	if err != nil {
		return
	}
	h.sendBytes(client, data)
}

func toParticipantInfos(roster []service.ParticipantView) []dto.ParticipantInfo {
	infos := make([]dto.ParticipantInfo, 0, len(roster))
	for _, v := range roster {
		infos = append(infos, dto.ParticipantInfo{
			UserID:     v.Participant.UserID,
			Username:   v.Username,
			Role:       v.Participant.Role,
			CursorLine: v.Participant.CursorLine,
			CursorCol:  v.Participant.CursorCol,
			Selection:  json.RawMessage(v.Participant.Selection),
			JoinedAt:   v.Participant.JoinedAt,
		})
	}
	return infos
}
