// Package domain 定义了应用程序中使用的数据结构 (数据库模型)。
package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User 表示应用程序中的用户。
type User struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"` // 用户唯一标识符 (UUID 主键)
	Username  string    `gorm:"type:varchar(191);uniqueIndex:idx_username;not null" json:"username"`
	Email     string    `gorm:"type:varchar(191);uniqueIndex:idx_email;not null" json:"email"`
	Password  string    `gorm:"type:text;not null" json:"-"` // 存储的是 bcrypt 哈希后的密码，不能为空
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate 在插入前生成 UUID 主键。
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
