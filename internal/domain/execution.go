package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 执行记录的生命周期状态。
// pending -> submitted -> running -> completed/failed 单向推进，不会回退。
// failed 只表示提交阶段失败（引擎不可达等）；引擎侧一旦跑完，
// 无论判定结果如何都是 completed，引擎判定记录在 EngineStatus。
const (
	ExecutionStatusPending   = "pending"
	ExecutionStatusSubmitted = "submitted"
	ExecutionStatusRunning   = "running"
	ExecutionStatusCompleted = "completed"
	ExecutionStatusFailed    = "failed"
)

// Execution 表示一次代码执行请求及其在外部执行引擎中的进度。
type Execution struct {
	ID            string     `gorm:"type:char(36);primaryKey" json:"id"`
	RoomID        string     `gorm:"type:char(36);not null;index" json:"room_id"`
	UserID        string     `gorm:"type:char(36);not null;index" json:"user_id"`
	Language      string     `gorm:"type:varchar(32);not null" json:"language"`
	SourceCode    string     `gorm:"type:mediumtext;not null" json:"source_code"`
	Stdin         string     `gorm:"type:text" json:"stdin"`
	Status        string     `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
	EngineToken   string     `gorm:"type:varchar(64);index" json:"-"`       // 外部执行引擎返回的查询令牌
	EngineStatus  string     `gorm:"type:varchar(64)" json:"engine_status"` // 引擎侧判定描述 (Accepted / Runtime Error ...)
	Stdout        string     `gorm:"type:mediumtext" json:"stdout"`
	Stderr        string     `gorm:"type:mediumtext" json:"stderr"`
	CompileOutput string     `gorm:"type:mediumtext" json:"compile_output"`
	ExitCode      *int       `gorm:"" json:"exit_code,omitempty"`
	TimeUsed      string     `gorm:"type:varchar(32)" json:"time_used"` // 秒数，引擎以字符串返回
	MemoryUsed    *int       `gorm:"" json:"memory_used,omitempty"`     // KB
	ErrorMessage  string     `gorm:"type:text" json:"error_message,omitempty"`
	SubmittedAt   time.Time  `gorm:"autoCreateTime;index" json:"submitted_at"`
	StartedAt     *time.Time `gorm:"" json:"started_at,omitempty"` // 引擎接受提交的时间
	FinishedAt    *time.Time `gorm:"" json:"finished_at,omitempty"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate 在插入前生成 UUID 主键。
func (e *Execution) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// IsTerminal 判断执行是否已经结束（completed 或 failed）。
func (e *Execution) IsTerminal() bool {
	return e.Status == ExecutionStatusCompleted || e.Status == ExecutionStatusFailed
}
