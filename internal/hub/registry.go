package hub

import "sync"

// Registry 维护全部活跃 WebSocket 连接，按连接 ID 索引。
// Remove 是连接清理的唯一入口：同一连接无论触发多少次注销，
// 只有第一次 Remove 返回 true，后续清理逻辑以此保证恰好执行一次。
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Client
}

// NewRegistry 创建空的连接注册表。
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Client)}
}

// Add 登记一个新连接。
func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID()] = c
}

// Get 按连接 ID 查找连接。
func (r *Registry) Get(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// Remove 注销连接。只有连接确实在表中时返回 true。
func (r *Registry) Remove(id string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	delete(r.conns, id)
	return c, true
}

// Count 返回当前活跃连接数。
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
