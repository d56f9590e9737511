package session

import (
	"context"
	"edunexus_backend/internal/model"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Persistence 会话记录的键值存储，只保存用户资料，不保存密码哈希
type Persistence interface {
	// Load 记录不存在时返回 (nil, nil)
	Load(ctx context.Context, key string) (*model.User, error)
	Save(ctx context.Context, key string, user *model.User) error
	Clear(ctx context.Context, key string) error
}

type MemoryPersistence struct {
	mu      sync.RWMutex
	records map[string]model.User
}

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{records: make(map[string]model.User)}
}

func (p *MemoryPersistence) Load(_ context.Context, key string) (*model.User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	u, ok := p.records[key]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (p *MemoryPersistence) Save(_ context.Context, key string, user *model.User) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u := *user
	u.Password = ""
	p.records[key] = u
	return nil
}

func (p *MemoryPersistence) Clear(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.records, key)
	return nil
}

// RedisPersistence 以 JSON 保存会话，TTL 与 JWT 有效期一致
type RedisPersistence struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisPersistence(client *redis.Client, ttl time.Duration) *RedisPersistence {
	return &RedisPersistence{Client: client, TTL: ttl}
}

func (p *RedisPersistence) Load(ctx context.Context, key string) (*model.User, error) {
	raw, err := p.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var user model.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (p *RedisPersistence) Save(ctx context.Context, key string, user *model.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return p.Client.Set(ctx, key, raw, p.TTL).Err()
}

func (p *RedisPersistence) Clear(ctx context.Context, key string) error {
	return p.Client.Del(ctx, key).Err()
}
