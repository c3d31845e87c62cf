// Package tasks 定义了后台任务的类型常量和负载结构。
package tasks

import "encoding/json"

// 任务类型常量
const (
	TypeDocumentPersist = "document:persist" // 文档内容写回数据库
	TypeRoomCleanup     = "room:cleanup"     // 周期性清理不活跃房间
)

// DocumentPersistPayload 定义了文档持久化任务的数据结构。
// Version 随任务携带，Worker 端靠它保证只前进不倒退。
type DocumentPersistPayload struct {
	RoomID  string `json:"room_id"`
	Content string `json:"content"`
	Version int64  `json:"version"`
}

// NewDocumentPersistPayload 序列化文档持久化任务的负载。
func NewDocumentPersistPayload(roomID, content string, version int64) ([]byte, error) {
	return json.Marshal(DocumentPersistPayload{
		RoomID:  roomID,
		Content: content,
		Version: version,
	})
}
