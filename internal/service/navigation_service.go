package service

import (
	"context"
	"edunexus_backend/internal/composer"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/navigation"
	"edunexus_backend/internal/util"
	"sync"
)

// NavState 导航状态及当前页面的渲染信息
type NavState struct {
	State      navigation.Snapshot `json:"state"`
	Breadcrumb []navigation.Crumb  `json:"breadcrumb"`
	View       composer.View       `json:"view"`
}

// NavigationService 每个会话一台导航状态机。选择前校验实体存在、
// 属于当前选中的上一层，并且用户有权访问。
// mu 只保护 sessions，仓储查询期间只持有本会话的锁
type NavigationService struct {
	Access *AccessChecker

	mu       sync.Mutex
	sessions map[string]*sessionNav
}

type sessionNav struct {
	mu sync.Mutex
	m  *navigation.Machine
}

func NewNavigationService(access *AccessChecker) *NavigationService {
	return &NavigationService{
		Access:   access,
		sessions: make(map[string]*sessionNav),
	}
}

// lock 锁住会话的状态机并返回解锁函数。角色变化（重新登录）时重新开始
func (s *NavigationService) lock(sessionID string, role model.UserRole) (*navigation.Machine, func()) {
	s.mu.Lock()
	n, ok := s.sessions[sessionID]
	if !ok {
		n = &sessionNav{}
		s.sessions[sessionID] = n
	}
	s.mu.Unlock()

	n.mu.Lock()
	if n.m == nil || n.m.Role() != role {
		n.m = navigation.New(role, composer.Permits)
	}
	return n.m, n.mu.Unlock
}

func stateOf(m *navigation.Machine) NavState {
	snap := m.Snapshot()
	return NavState{
		State:      snap,
		Breadcrumb: m.Breadcrumb(),
		View:       composer.Compose(snap),
	}
}

func (s *NavigationService) State(sessionID string, user *model.User) NavState {
	m, unlock := s.lock(sessionID, user.Role)
	defer unlock()
	return stateOf(m)
}

func (s *NavigationService) SelectClassroom(ctx context.Context, sessionID string, user *model.User, classroomID string) (NavState, error) {
	m, unlock := s.lock(sessionID, user.Role)
	defer unlock()

	if classroomID != "" {
		if _, err := s.Access.ReadableClassroom(ctx, user, classroomID); err != nil {
			return stateOf(m), err
		}
	}
	err := m.SelectClassroom(classroomID)
	return stateOf(m), err
}

func (s *NavigationService) SelectSubject(ctx context.Context, sessionID string, user *model.User, subjectID string) (NavState, error) {
	m, unlock := s.lock(sessionID, user.Role)
	defer unlock()
	current := m.Snapshot()

	if subjectID != "" && current.ClassroomID != "" {
		subject, err := s.Access.Content.FindSubject(ctx, subjectID)
		if err != nil {
			return stateOf(m), err
		}
		if subject.ClassroomID != current.ClassroomID {
			return stateOf(m), util.NewNotFound("subject", subjectID)
		}
		if user.IsTeacher() {
			classroom, err := s.Access.Content.FindClassroom(ctx, current.ClassroomID)
			if err != nil {
				return stateOf(m), err
			}
			if !ManagesSubject(user, classroom, subjectID) {
				return stateOf(m), util.ErrPermissionDenied
			}
		}
	}
	err := m.SelectSubject(subjectID)
	return stateOf(m), err
}

func (s *NavigationService) SelectChapter(ctx context.Context, sessionID string, user *model.User, chapterID string) (NavState, error) {
	m, unlock := s.lock(sessionID, user.Role)
	defer unlock()
	current := m.Snapshot()

	if chapterID != "" && current.SubjectID != "" {
		chapter, err := s.Access.Content.FindChapter(ctx, chapterID)
		if err != nil {
			return stateOf(m), err
		}
		if chapter.SubjectID != current.SubjectID {
			return stateOf(m), util.NewNotFound("chapter", chapterID)
		}
	}
	err := m.SelectChapter(chapterID)
	return stateOf(m), err
}

// SelectSection 未知或无权访问的分区回落到笔记分区
func (s *NavigationService) SelectSection(sessionID string, user *model.User, raw string) (NavState, error) {
	m, unlock := s.lock(sessionID, user.Role)
	defer unlock()

	section, _ := navigation.ParseSection(raw)
	_, err := m.SelectSection(section)
	return stateOf(m), err
}

func (s *NavigationService) Back(sessionID string, user *model.User) NavState {
	m, unlock := s.lock(sessionID, user.Role)
	defer unlock()
	m.Back()
	return stateOf(m)
}

// Drop 退出登录或会话过期时丢弃会话的导航状态
func (s *NavigationService) Drop(sessionID string) {
	s.mu.Lock()
	n, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.m != nil {
		n.m.Reset()
	}
}

// Sessions 当前持有导航状态的会话数
func (s *NavigationService) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
