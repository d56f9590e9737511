package util

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// BusyGuard 按动作键防重复提交：同一键正在执行时直接拒绝，不排队
type BusyGuard struct {
	mu    sync.Mutex
	slots map[string]*semaphore.Weighted
}

func NewBusyGuard() *BusyGuard {
	return &BusyGuard{slots: make(map[string]*semaphore.Weighted)}
}

// TryAcquire 成功时返回释放函数，键已被占用时 ok 为 false
func (g *BusyGuard) TryAcquire(key string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	sem, exists := g.slots[key]
	if !exists {
		sem = semaphore.NewWeighted(1)
		g.slots[key] = sem
	}
	if !sem.TryAcquire(1) {
		return nil, false
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			sem.Release(1)
			delete(g.slots, key)
		})
	}, true
}

func (g *BusyGuard) Busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, exists := g.slots[key]
	return exists
}
