package service

import "errors"

// 业务层错误。Handler 层根据这些错误映射 HTTP 状态码和 WebSocket 错误事件。
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrRoomNotFound         = errors.New("room not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrExecutionNotFound    = errors.New("execution not found")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRegistrationFailed   = errors.New("registration failed: username or email already exists")
	ErrInternalServer       = errors.New("internal server error")

	ErrNotAMember       = errors.New("user is not an active member of the room")
	ErrAccessDenied     = errors.New("operation not permitted for this user")
	ErrRoomFull         = errors.New("room is at capacity")
	ErrRoomClosed       = errors.New("room is closed")
	ErrInvalidPassword  = errors.New("invalid room password")
	ErrOwnerCannotLeave = errors.New("room owner cannot leave the room")
	ErrRoomLimitReached = errors.New("user owns too many active rooms")

	ErrVersionConflict = errors.New("document version conflict")
	ErrInvalidEdit     = errors.New("invalid edit payload")
	ErrInvalidMessage  = errors.New("invalid message")
	ErrInvalidLanguage = errors.New("unsupported execution language")
	ErrInvalidInput    = errors.New("invalid input")
)
