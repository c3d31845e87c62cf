package service

import "sync"

// RoomLocks 是按房间 ID 分配互斥锁的锁表。
// 文档引擎和在线状态管理共享同一把房间锁，保证单个房间的
// (content, version, 在线人数) 三元组上的读改写是串行的。
// 锁条目一经创建就不再移除：移除正被等待的锁会让等待者
// 和新取锁者各持一把互不相干的锁，串行保证随之失效。
type RoomLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRoomLocks 创建空的锁表。
func NewRoomLocks() *RoomLocks {
	return &RoomLocks{locks: make(map[string]*sync.Mutex)}
}

// get 返回 roomID 对应的互斥锁，不存在则创建。
func (rl *RoomLocks) get(roomID string) *sync.Mutex {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.locks[roomID]
	if !ok {
		l = &sync.Mutex{}
		rl.locks[roomID] = l
	}
	return l
}
