// Package session 保存客户端会话的当前用户，登录状态持久化在固定键下，
// 重启后恢复，直到退出登录。
package session

import (
	"context"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/util"
	"edunexus_backend/pkg/logger"
	"edunexus_backend/pkg/monitoring"
	"sync"

	"go.uber.org/zap"
)

// DefaultKey 单会话场景下的持久化键
const DefaultKey = "edunexus-user"

// KeyFor 服务端多会话时每个会话一个键
func KeyFor(sessionID string) string {
	if sessionID == "" {
		return DefaultKey
	}
	return DefaultKey + ":" + sessionID
}

// Authenticator 校验凭据和注册账号
type Authenticator interface {
	Login(ctx context.Context, email, password string, role model.UserRole) (*model.User, error)
	Signup(ctx context.Context, name, email, password string, role model.UserRole) (*model.User, error)
}

const authAction = "auth"

type Store struct {
	mu          sync.RWMutex
	key         string
	auth        Authenticator
	persistence Persistence
	busy        *util.BusyGuard
	user        *model.User
}

type Option func(*Store)

func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// NewStore 创建时从持久化存储恢复已登录的用户
func NewStore(ctx context.Context, auth Authenticator, persistence Persistence, opts ...Option) (*Store, error) {
	s := &Store{
		key:         DefaultKey,
		auth:        auth,
		persistence: persistence,
		busy:        util.NewBusyGuard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	user, err := persistence.Load(ctx, s.key)
	if err != nil {
		return nil, err
	}
	if user != nil {
		logger.Log.Debug("Session restored", zap.String("key", s.key), zap.String("user_id", user.ID))
		s.user = user
	}
	return s, nil
}

func (s *Store) Key() string {
	return s.key
}

// Login 同一会话已有登录或注册在进行时返回 util.ErrBusy
func (s *Store) Login(ctx context.Context, email, password string, role model.UserRole) (*model.User, error) {
	release, ok := s.busy.TryAcquire(authAction)
	if !ok {
		monitoring.BusyRejections.WithLabelValues("login").Inc()
		return nil, util.ErrBusy
	}
	defer release()

	user, err := s.auth.Login(ctx, email, password, role)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, user)
}

func (s *Store) Signup(ctx context.Context, name, email, password string, role model.UserRole) (*model.User, error) {
	release, ok := s.busy.TryAcquire(authAction)
	if !ok {
		monitoring.BusyRejections.WithLabelValues("signup").Inc()
		return nil, util.ErrBusy
	}
	defer release()

	user, err := s.auth.Signup(ctx, name, email, password, role)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, user)
}

func (s *Store) establish(ctx context.Context, user *model.User) (*model.User, error) {
	if err := s.persistence.Save(ctx, s.key, user); err != nil {
		return nil, err
	}

	s.mu.Lock()
	u := *user
	u.Password = ""
	s.user = &u
	s.mu.Unlock()

	out := u
	return &out, nil
}

// Logout 清空内存中的用户和持久化记录
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	return s.persistence.Clear(ctx, s.key)
}

// User 返回当前用户的副本，未登录时为 nil
func (s *Store) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Store) IsAuthenticated() bool {
	return s.User() != nil
}
