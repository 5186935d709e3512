package submission

import (
	"sort"
	"sync"
	"time"

	"gemwallet/pkg/errno"
	"gemwallet/pkg/monitor"
)

// Registry 保存进行中的确认，按 ID 查找
type Registry struct {
	mu    sync.RWMutex
	items map[string]*Confirmation
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]*Confirmation), now: time.Now}
}

func (r *Registry) Add(c *Confirmation) {
	r.mu.Lock()
	r.items[c.ID] = c
	n := r.openLocked()
	r.mu.Unlock()
	monitor.SetOpenConfirmations(n)
}

func (r *Registry) Get(id string) (*Confirmation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[id]
	if !ok {
		return nil, errno.ErrConfirmationNotFound
	}
	return c, nil
}

// List 未关闭的确认，按创建时间排序
func (r *Registry) List() []*Confirmation {
	r.mu.RLock()
	out := make([]*Confirmation, 0, len(r.items))
	for _, c := range r.items {
		if !c.Closed() {
			out = append(out, c)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func (r *Registry) openLocked() int {
	n := 0
	for _, c := range r.items {
		if !c.Closed() {
			n++
		}
	}
	return n
}

// Prune 删除关闭时间早于 ttl 的确认，返回删除数量
func (r *Registry) Prune(ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)
	r.mu.Lock()
	removed := 0
	for id, c := range r.items {
		if c.closedBefore(cutoff) {
			delete(r.items, id)
			removed++
		}
	}
	n := r.openLocked()
	r.mu.Unlock()
	monitor.SetOpenConfirmations(n)
	return removed
}
