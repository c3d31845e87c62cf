package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 参与者角色。房主拥有所有权限，moderator 可以删除他人消息。
const (
	RoleOwner       = "owner"
	RoleModerator   = "moderator"
	RoleParticipant = "participant"
)

// Participant 表示一个用户在某个房间内的成员关系。
// 同一 (RoomID, UserID) 在任意时刻至多存在一条 IsActive=true 的记录。
type Participant struct {
	ID         string     `gorm:"type:char(36);primaryKey" json:"id"`
	RoomID     string     `gorm:"type:char(36);not null;uniqueIndex:idx_room_user" json:"room_id"`
	UserID     string     `gorm:"type:char(36);not null;uniqueIndex:idx_room_user" json:"user_id"`
	Role       string     `gorm:"type:varchar(16);not null;default:participant" json:"role"`
	IsActive   bool       `gorm:"not null;default:true;index" json:"is_active"` // 在线标记，离开或断线后置为 false
	CursorLine int        `gorm:"not null;default:0" json:"cursor_line"`        // 最近一次上报的光标行号
	CursorCol  int        `gorm:"not null;default:0" json:"cursor_col"`         // 最近一次上报的光标列号
	Selection  string     `gorm:"type:text" json:"selection,omitempty"`         // 客户端上报的选区，服务端不解析
	LastSeenAt time.Time  `gorm:"autoCreateTime;index" json:"last_seen_at"`     // 最近一次活动时间，加入和光标上报时刷新
	JoinedAt   time.Time  `gorm:"autoCreateTime" json:"joined_at"`
	LeftAt     *time.Time `gorm:"" json:"left_at,omitempty"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate 在插入前生成 UUID 主键。
func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
