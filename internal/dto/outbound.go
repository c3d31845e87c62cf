package dto

import (
	"encoding/json"
	"time"
)

// 服务端到客户端的事件类型。
const (
	EventRoomJoined         = "room_joined"
	EventUserJoined         = "user_joined"
	EventUserLeft           = "user_left"
	EventCodeUpdated        = "code_updated"
	EventCodeChangeAck      = "code_change_ack"
	EventCodeConflict       = "code_conflict"
	EventCursorMoved        = "cursor_moved"
	EventNewMessage         = "new_message"
	EventMessageEdited      = "message_edited"
	EventMessageDeleted     = "message_deleted"
	EventExecutionStarted   = "execution_started"
	EventExecutionQueued    = "execution_queued"
	EventExecutionFinished  = "execution_finished"
	EventRoomState          = "room_state"
	EventError              = "error"
)

// ParticipantInfo 是成员在 WebSocket 事件中的展示形式。
type ParticipantInfo struct {
	UserID     string          `json:"user_id"`
	Username   string          `json:"username,omitempty"`
	Role       string          `json:"role"`
	CursorLine int             `json:"cursor_line"`
	CursorCol  int             `json:"cursor_col"`
	Selection  json.RawMessage `json:"selection,omitempty"`
	JoinedAt   time.Time       `json:"joined_at"`
}

// RoomJoinedEvent 发送给刚加入者，带房间完整状态。
type RoomJoinedEvent struct {
	Type         string            `json:"type"`
	RoomID       string            `json:"room_id"`
	Name         string            `json:"name"`
	Language     string            `json:"language"`
	Content      string            `json:"content"`
	Version      int64             `json:"version"`
	Capacity     int               `json:"capacity"`
	OnlineCount  int64             `json:"online_count"`
	Participants []ParticipantInfo `json:"participants"`
}

// UserJoinedEvent 广播给房间里其他人。
type UserJoinedEvent struct {
	Type        string `json:"type"`
	RoomID      string `json:"room_id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username,omitempty"`
	Role        string `json:"role"`
	OnlineCount int64  `json:"online_count"`
}

// UserLeftEvent 广播给房间内剩余成员。
type UserLeftEvent struct {
	Type        string `json:"type"`
	RoomID      string `json:"room_id"`
	UserID      string `json:"user_id"`
	OnlineCount int64  `json:"online_count"`
}

// CodeUpdatedEvent 在编辑被接受后广播给除编辑者外的所有成员。
type CodeUpdatedEvent struct {
	Type    string      `json:"type"`
	RoomID  string      `json:"room_id"`
	UserID  string      `json:"user_id"` // 编辑者
	Content string      `json:"content"`
	Version int64       `json:"version"` // 应用后的新版本号
	Cursor  *CursorHint `json:"cursor,omitempty"`
}

// CodeChangeAckEvent 只发给编辑者本人，确认编辑已应用。
type CodeChangeAckEvent struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id"`
	Version int64  `json:"version"`
}

// CodeConflictEvent 只发给编辑者本人，携带权威内容供客户端重置。
type CodeConflictEvent struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id"`
	Content string `json:"content"`
	Version int64  `json:"version"`
}

// CursorMovedEvent 广播给除上报者外的所有成员。
type CursorMovedEvent struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"room_id"`
	UserID    string          `json:"user_id"`
	Line      int             `json:"line"`
	Col       int             `json:"col"`
	Selection json.RawMessage `json:"selection,omitempty"`
}

// MessageEvent 承载聊天消息的新增、编辑和删除广播。
type MessageEvent struct {
	Type      string    `json:"type"`
	RoomID    string    `json:"room_id"`
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"` // 作者用户名，广播时解析
	MsgType   string    `json:"message_type"`
	Content   string    `json:"content"`
	ReplyToID *string   `json:"reply_to_id,omitempty"`
	IsEdited  bool      `json:"is_edited"`
	CreatedAt time.Time `json:"created_at"`
}

// ExecutionEvent 承载执行生命周期的广播。
type ExecutionEvent struct {
	Type        string `json:"type"`
	RoomID      string `json:"room_id"`
	ExecutionID string `json:"execution_id"`
	UserID      string `json:"user_id"`
	Language    string `json:"language"`
	Status      string `json:"status"`
}

// ExecutionResultView 是执行记录的查询展示形式。
type ExecutionResultView struct {
	ExecutionID   string     `json:"execution_id"`
	RoomID        string     `json:"room_id"`
	UserID        string     `json:"user_id"`
	Language      string     `json:"language"`
	Status        string     `json:"status"`
	EngineStatus  string     `json:"engine_status,omitempty"`
	Stdout        string     `json:"stdout"`
	Stderr        string     `json:"stderr"`
	CompileOutput string     `json:"compile_output"`
	ExitCode      *int       `json:"exit_code,omitempty"`
	TimeUsed      string     `json:"time_used"`
	MemoryUsed    *int       `json:"memory_used,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// RoomStateEvent 响应 get_room_state 请求，只发给请求者。
type RoomStateEvent struct {
	Type         string            `json:"type"`
	RoomID       string            `json:"room_id"`
	Name         string            `json:"name"`
	Language     string            `json:"language"`
	Content      string            `json:"content"`
	Version      int64             `json:"version"`
	OnlineCount  int64             `json:"online_count"`
	Participants []ParticipantInfo `json:"participants"`
}

// ErrorEvent 表示发送给客户端的错误消息。
type ErrorEvent struct {
	Type    string `json:"type"`
	Event   string `json:"event,omitempty"` // 触发错误的请求事件
	Message string `json:"message"`
}

// NewErrorEvent 构造标准错误事件。
func NewErrorEvent(event, message string) ErrorEvent {
	return ErrorEvent{Type: EventError, Event: event, Message: message}
}
