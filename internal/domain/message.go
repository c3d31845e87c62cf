package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 消息类型。system 消息由服务端生成（包括被删除消息的占位符），
// 客户端只能发送 text、code 和 file。
const (
	MessageTypeText   = "text"
	MessageTypeCode   = "code"
	MessageTypeSystem = "system"
	MessageTypeFile   = "file"
)

// 单条聊天消息的最大长度（字符数）。
const MaxMessageLength = 1000

// DeletedMessagePlaceholder 是软删除后展示给所有人的占位内容。
const DeletedMessagePlaceholder = "[Message deleted]"

// Message 表示房间内的一条聊天消息。
// 删除是软删除：内容被替换为占位符，类型改为 system，记录保留。
type Message struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	RoomID    string    `gorm:"type:char(36);not null;index" json:"room_id"`
	UserID    string    `gorm:"type:char(36);not null;index" json:"user_id"`
	Type      string    `gorm:"type:varchar(16);not null;default:text" json:"type"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	ReplyToID *string   `gorm:"type:char(36)" json:"reply_to_id,omitempty"` // 被回复消息的 ID，必须属于同一房间
	IsEdited  bool      `gorm:"not null;default:false" json:"is_edited"`
	IsDeleted bool      `gorm:"not null;default:false" json:"is_deleted"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate 在插入前生成 UUID 主键。
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
