package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"edunexus_backend/internal/model"
	"edunexus_backend/internal/util"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuth 接受固定账号；gate 非空时登录会阻塞直到 gate 关闭
type fakeAuth struct {
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
}

var alex = &model.User{ID: "student-1", Name: "Alex Johnson", Email: "alex@student.edu", Role: model.Student, Password: "hash"}

func (f *fakeAuth) Login(_ context.Context, email, password string, role model.UserRole) (*model.User, error) {
	if f.gate != nil {
		f.once.Do(func() { close(f.started) })
		<-f.gate
	}
	if email != alex.Email || password != "password" || role != alex.Role {
		return nil, util.NewInvalidCredentials()
	}
	u := *alex
	return &u, nil
}

func (f *fakeAuth) Signup(_ context.Context, name, email, _ string, role model.UserRole) (*model.User, error) {
	return &model.User{ID: model.NewID(), Name: name, Email: email, Role: role}, nil
}

func TestStore_LoginPersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersistence()

	s, err := NewStore(ctx, &fakeAuth{}, p)
	require.NoError(t, err)
	assert.False(t, s.IsAuthenticated())
	assert.Equal(t, DefaultKey, s.Key())

	u, err := s.Login(ctx, "alex@student.edu", "password", model.Student)
	require.NoError(t, err)
	assert.Equal(t, "student-1", u.ID)
	assert.Empty(t, u.Password)
	assert.True(t, s.IsAuthenticated())

	// 进程重启后恢复
	restored, err := NewStore(ctx, &fakeAuth{}, p)
	require.NoError(t, err)
	require.True(t, restored.IsAuthenticated())
	assert.Equal(t, "Alex Johnson", restored.User().Name)

	require.NoError(t, restored.Logout(ctx))
	assert.False(t, restored.IsAuthenticated())

	again, err := NewStore(ctx, &fakeAuth{}, p)
	require.NoError(t, err)
	assert.False(t, again.IsAuthenticated())
}

func TestStore_InvalidCredentials(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersistence()
	s, err := NewStore(ctx, &fakeAuth{}, p)
	require.NoError(t, err)

	tests := []struct {
		name, email, password string
		role                  model.UserRole
	}{
		{"wrong-password", "alex@student.edu", "nope", model.Student},
		{"unknown-email", "ghost@student.edu", "password", model.Student},
		{"wrong-role", "alex@student.edu", "password", model.Teacher},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Login(ctx, tt.email, tt.password, tt.role)
			var ae *util.AuthError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, util.InvalidCredentials, ae.Kind)
			assert.False(t, s.IsAuthenticated())

			stored, err := p.Load(ctx, DefaultKey)
			require.NoError(t, err)
			assert.Nil(t, stored)
		})
	}
}

func TestStore_BusyGuardRejectsSecondLogin(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{gate: make(chan struct{}), started: make(chan struct{})}
	s, err := NewStore(ctx, auth, NewMemoryPersistence())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Login(ctx, "alex@student.edu", "password", model.Student)
		done <- err
	}()
	<-auth.started

	_, err = s.Login(ctx, "alex@student.edu", "password", model.Student)
	assert.ErrorIs(t, err, util.ErrBusy)
	_, err = s.Signup(ctx, "Other", "other@student.edu", "secret1", model.Student)
	assert.ErrorIs(t, err, util.ErrBusy)

	close(auth.gate)
	require.NoError(t, <-done)
	assert.Equal(t, "student-1", s.User().ID)

	// 前一次完成后可以再次登录
	_, err = s.Login(ctx, "alex@student.edu", "password", model.Student)
	assert.NoError(t, err)
}

func TestStore_UserIsCopy(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(ctx, &fakeAuth{}, NewMemoryPersistence())
	require.NoError(t, err)
	_, err = s.Signup(ctx, "Nia", "nia@student.edu", "secret1", model.Student)
	require.NoError(t, err)

	u := s.User()
	u.Name = "changed"
	assert.Equal(t, "Nia", s.User().Name)
}

func TestRedisPersistence(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	p := NewRedisPersistence(client, time.Hour)
	key := KeyFor("sid-1")

	got, err := p.Load(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, p.Save(ctx, key, alex))
	assert.Equal(t, time.Hour, mr.TTL(key))
	assert.NotContains(t, mustGet(t, mr, key), "hash")

	got, err = p.Load(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, alex.ID, got.ID)
	assert.Equal(t, model.Student, got.Role)

	require.NoError(t, p.Clear(ctx, key))
	got, err = p.Load(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersistence()
	r := NewRegistry(&fakeAuth{}, p)

	assert.Equal(t, "edunexus-user", KeyFor(""))
	assert.Equal(t, "edunexus-user:abc", KeyFor("abc"))

	s1, err := r.Open(ctx, "abc")
	require.NoError(t, err)
	s2, err := r.Open(ctx, "abc")
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, "edunexus-user:abc", s1.Key())

	_, err = s1.Login(ctx, "alex@student.edu", "password", model.Student)
	require.NoError(t, err)

	other, err := r.Open(ctx, "xyz")
	require.NoError(t, err)
	assert.False(t, other.IsAuthenticated())

	r.Close("abc")
	assert.Equal(t, 1, r.Len())
	reopened, err := r.Open(ctx, "abc")
	require.NoError(t, err)
	assert.NotSame(t, s1, reopened)
	assert.True(t, reopened.IsAuthenticated())
}

func TestRegistryPrefix(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(&fakeAuth{}, NewMemoryPersistence())
	r.Prefix = "nexus"

	s, err := r.Open(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "nexus:abc", s.Key())
}

func TestRegistryLookup(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersistence()
	r := NewRegistry(&fakeAuth{}, p)

	// 未知会话和已退出的会话都不占用内存
	for i := 0; i < 50; i++ {
		s, err := r.Lookup(ctx, model.NewID())
		require.NoError(t, err)
		assert.Nil(t, s)
	}
	assert.Equal(t, 0, r.Len())

	s, err := r.Open(ctx, "abc")
	require.NoError(t, err)
	_, err = s.Login(ctx, "alex@student.edu", "password", model.Student)
	require.NoError(t, err)

	found, err := r.Lookup(ctx, "abc")
	require.NoError(t, err)
	assert.Same(t, s, found)

	require.NoError(t, s.Logout(ctx))
	found, err = r.Lookup(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, found)
	r.Close("abc")
	found, err = r.Lookup(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, found)
	assert.Equal(t, 0, r.Len())

	// 重启后从持久化记录恢复
	require.NoError(t, p.Save(ctx, KeyFor("xyz"), alex))
	found, err = r.Lookup(ctx, "xyz")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "student-1", found.User().ID)
	assert.Equal(t, 1, r.Len())
}

func TestRegistrySweep(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersistence()
	r := NewRegistry(&fakeAuth{}, p)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	active, err := r.Open(ctx, "active")
	require.NoError(t, err)
	_, err = active.Login(ctx, "alex@student.edu", "password", model.Student)
	require.NoError(t, err)

	idle, err := r.Open(ctx, "idle")
	require.NoError(t, err)
	_, err = idle.Login(ctx, "alex@student.edu", "password", model.Student)
	require.NoError(t, err)

	_, err = r.Open(ctx, "anonymous")
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())

	now = now.Add(2 * time.Hour)
	_, err = r.Lookup(ctx, "active")
	require.NoError(t, err)
	now = now.Add(time.Hour)

	evicted := r.Sweep(ctx, 2*time.Hour)
	assert.ElementsMatch(t, []string{"idle", "anonymous"}, evicted)
	assert.Equal(t, 1, r.Len())

	// 过期会话的持久化记录一并清除
	u, err := p.Load(ctx, KeyFor("idle"))
	require.NoError(t, err)
	assert.Nil(t, u)
	u, err = p.Load(ctx, KeyFor("active"))
	require.NoError(t, err)
	assert.NotNil(t, u)

	assert.Empty(t, r.Sweep(ctx, 2*time.Hour))
}
