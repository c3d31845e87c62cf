// Package dto 定义了 WebSocket 消息和 HTTP 接口的传输数据结构。
package dto

import "encoding/json"

// 客户端到服务端的事件类型。
const (
	EventJoinRoom      = "join_room"
	EventLeaveRoom     = "leave_room"
	EventCodeChange    = "code_change"
	EventCursorUpdate  = "cursor_update"
	EventSendMessage   = "send_message"
	EventEditMessage   = "edit_message"
	EventDeleteMessage = "delete_message"
	EventExecuteCode   = "execute_code"
	EventGetRoomState  = "get_room_state"
)

// Envelope 只解析事件类型，具体负载由各个 Handler 二次解析。
type Envelope struct {
	Type string `json:"type"`
}

// JoinRoomPayload 表示加入房间请求。
type JoinRoomPayload struct {
	RoomID   string `json:"room_id"`
	Password string `json:"password,omitempty"` // 私有房间必填
}

// LeaveRoomPayload 表示主动离开房间请求。
type LeaveRoomPayload struct {
	RoomID string `json:"room_id"`
}

// CursorHint 是编辑附带的编辑者光标位置，
// 随 code_updated 原样转发给其他成员。
type CursorHint struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// CodeChangePayload 表示一次文档编辑提议。
// Content 和 Version 用指针以区分 "缺失字段" 和 "零值"。
type CodeChangePayload struct {
	RoomID  string      `json:"room_id"`
	Content *string     `json:"content"`
	Version *int64      `json:"version"` // 客户端所基于的文档版本号
	Cursor  *CursorHint `json:"cursor,omitempty"`
}

// CursorUpdatePayload 表示光标位置上报。Selection 原样转发，服务端不解析。
type CursorUpdatePayload struct {
	RoomID    string          `json:"room_id"`
	Line      int             `json:"line"`
	Col       int             `json:"col"`
	Selection json.RawMessage `json:"selection,omitempty"`
}

// SendMessagePayload 表示发送聊天消息。
type SendMessagePayload struct {
	RoomID    string  `json:"room_id"`
	Content   string  `json:"content"`
	MsgType   string  `json:"message_type,omitempty"` // text / code / file，缺省 text
	ReplyToID *string `json:"reply_to_id,omitempty"`
}

// EditMessagePayload 表示编辑自己发过的消息。
type EditMessagePayload struct {
	RoomID    string `json:"room_id"`
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

// DeleteMessagePayload 表示删除消息。
type DeleteMessagePayload struct {
	RoomID    string `json:"room_id"`
	MessageID string `json:"message_id"`
}

// ExecuteCodePayload 表示提交代码执行。
// Code 为空时执行房间当前文档内容。
type ExecuteCodePayload struct {
	RoomID   string `json:"room_id"`
	Language string `json:"language,omitempty"` // 缺省使用房间语言
	Code     string `json:"code,omitempty"`
	Stdin    string `json:"stdin,omitempty"`
}

// GetRoomStatePayload 表示请求房间完整状态。
type GetRoomStatePayload struct {
	RoomID string `json:"room_id"`
}
