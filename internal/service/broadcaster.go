package service

// Broadcaster 是业务层向房间内连接推送事件的出口。
// 由 hub 实现，业务层只依赖该接口，避免与连接管理相互引用。
type Broadcaster interface {
	// BroadcastToRoom 把 payload 序列化后推送给房间内的所有连接。
	BroadcastToRoom(roomID string, payload interface{})

	// BroadcastToRoomExcept 推送给房间内除 exceptConnID 以外的所有连接。
	BroadcastToRoomExcept(roomID, exceptConnID string, payload interface{})

	// SendToConnection 只推送给指定连接。
	SendToConnection(connID string, payload interface{})
}
