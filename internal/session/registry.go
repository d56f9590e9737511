package session

import (
	"context"
	"edunexus_backend/pkg/logger"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry HTTP 层按会话 ID 管理 Store
type Registry struct {
	// Prefix 持久化键前缀，为空时使用 DefaultKey
	Prefix string

	mu          sync.Mutex
	auth        Authenticator
	persistence Persistence
	stores      map[string]*entry
	now         func() time.Time
}

type entry struct {
	store    *Store
	lastSeen time.Time
}

func NewRegistry(auth Authenticator, persistence Persistence) *Registry {
	return &Registry{
		auth:        auth,
		persistence: persistence,
		stores:      make(map[string]*entry),
		now:         time.Now,
	}
}

// Open 返回会话的 Store，首次打开时从持久化存储恢复，未登录的 Store 也会缓存，
// 只用于登录和注册
func (r *Registry) Open(ctx context.Context, sessionID string) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.stores[sessionID]; ok {
		e.lastSeen = r.now()
		return e.store, nil
	}
	s, err := NewStore(ctx, r.auth, r.persistence, WithKey(r.keyFor(sessionID)))
	if err != nil {
		return nil, err
	}
	r.stores[sessionID] = &entry{store: s, lastSeen: r.now()}
	return s, nil
}

// Lookup 返回已登录会话的 Store，会话不存在或已退出时返回 nil，
// 只有恢复出用户的 Store 才会缓存
func (r *Registry) Lookup(ctx context.Context, sessionID string) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.stores[sessionID]; ok {
		if !e.store.IsAuthenticated() {
			return nil, nil
		}
		e.lastSeen = r.now()
		return e.store, nil
	}
	s, err := NewStore(ctx, r.auth, r.persistence, WithKey(r.keyFor(sessionID)))
	if err != nil {
		return nil, err
	}
	if !s.IsAuthenticated() {
		return nil, nil
	}
	r.stores[sessionID] = &entry{store: s, lastSeen: r.now()}
	return s, nil
}

func (r *Registry) keyFor(sessionID string) string {
	if r.Prefix == "" || sessionID == "" {
		return KeyFor(sessionID)
	}
	return r.Prefix + ":" + sessionID
}

// Close 只释放内存中的 Store，不影响持久化记录
func (r *Registry) Close(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, sessionID)
}

// Sweep 释放未登录的 Store，以及 idle 内没有访问的会话。
// idle 不小于令牌有效期时，过期会话的令牌都已失效，持久化记录一并清除。
// 返回被释放的会话 ID
func (r *Registry) Sweep(ctx context.Context, idle time.Duration) []string {
	r.mu.Lock()
	now := r.now()
	var evicted []string
	var expired []*Store
	for sid, e := range r.stores {
		switch {
		case !e.store.IsAuthenticated():
		case idle > 0 && now.Sub(e.lastSeen) >= idle:
			expired = append(expired, e.store)
		default:
			continue
		}
		delete(r.stores, sid)
		evicted = append(evicted, sid)
	}
	r.mu.Unlock()

	for _, s := range expired {
		if err := s.Logout(ctx); err != nil {
			logger.Log.Warn("Failed to clear expired session", zap.String("key", s.Key()), zap.Error(err))
		}
	}
	if len(evicted) > 0 {
		logger.Log.Debug("Sessions swept", zap.Int("count", len(evicted)))
	}
	return evicted
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}
