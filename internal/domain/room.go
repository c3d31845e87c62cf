package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 房间容量限制。
const (
	DefaultRoomCapacity = 10
	MaxRoomCapacity     = 50
)

// 共享代码长度上限（字符数）。
const MaxCodeLength = 100000

// Room 表示一个协作编程房间，承载共享代码文档及其版本号。
type Room struct {
	ID             string    `gorm:"type:char(36);primaryKey" json:"id"` // 房间唯一标识符 (UUID 主键)
	Name           string    `gorm:"type:varchar(191);not null;index" json:"name"`
	Description    string    `gorm:"type:text" json:"description"`
	OwnerID        string    `gorm:"type:char(36);index;not null" json:"owner_id"` // 房主用户 ID (外键关联 User.ID)
	Language       string    `gorm:"type:varchar(32);not null;default:javascript" json:"language"`
	Content        string    `gorm:"type:mediumtext" json:"content"`                    // 共享代码文档的当前内容
	ContentVersion int64     `gorm:"not null;default:1" json:"content_version"`         // 文档版本号，单调递增，用于乐观并发控制
	Capacity       int       `gorm:"not null;default:10" json:"capacity"`               // 最大同时在线人数
	IsPrivate      bool      `gorm:"not null;default:false" json:"is_private"`          // 私有房间需要密码才能加入
	Password       string    `gorm:"type:text" json:"-"`                                // 私有房间密码的 bcrypt 哈希
	IsActive       bool      `gorm:"not null;default:true;index" json:"is_active"`      // 软删除标记，false 表示房间已关闭
	LastActive     time.Time `gorm:"index" json:"last_active"`                          // 房间最后活跃时间，用于清理不活跃房间
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate 在插入前生成 UUID 主键。
func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
