// Package navigation 班级 -> 科目 -> 章节 -> 分区 的导航状态机。
//
// 每一层最多选中一个实体；在第 L 层重新选择会清空所有更深层的选择，
// Back 每次只回退一层。Machine 本身不加锁，由调用方保证串行访问。
package navigation

import (
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/util"
	"strings"
)

type Level int

const (
	Dashboard Level = iota
	Classroom
	Subject
	Chapter
)

func (l Level) String() string {
	switch l {
	case Dashboard:
		return "dashboard"
	case Classroom:
		return "classroom"
	case Subject:
		return "subject"
	case Chapter:
		return "chapter"
	default:
		return "unknown"
	}
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Section 章节页内的分区
type Section string

const (
	SectionNotes     Section = "notes"
	SectionNotebook  Section = "notebook"
	SectionUpload    Section = "upload"
	SectionAsk       Section = "ask"
	SectionCommunity Section = "community"

	DefaultSection = SectionNotes
)

var sections = []Section{SectionNotes, SectionNotebook, SectionUpload, SectionAsk, SectionCommunity}

func (s Section) Valid() bool {
	for _, known := range sections {
		if s == known {
			return true
		}
	}
	return false
}

// ParseSection 不区分大小写，未知值返回 false
func ParseSection(raw string) (Section, bool) {
	s := Section(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// Policy 判断角色能否打开某个分区
type Policy func(role model.UserRole, section Section) bool

// AllowAll 不做角色限制
func AllowAll(model.UserRole, Section) bool { return true }

type Crumb struct {
	Level Level  `json:"level"`
	ID    string `json:"id"`
}

type Snapshot struct {
	Role        model.UserRole `json:"role"`
	Level       Level          `json:"level"`
	ClassroomID string         `json:"classroomId,omitempty"`
	SubjectID   string         `json:"subjectId,omitempty"`
	ChapterID   string         `json:"chapterId,omitempty"`
	Section     Section        `json:"section,omitempty"`
}

type Machine struct {
	role   model.UserRole
	policy Policy

	classroomID string
	subjectID   string
	chapterID   string
	section     Section
}

func New(role model.UserRole, policy Policy) *Machine {
	if policy == nil {
		policy = AllowAll
	}
	return &Machine{role: role, policy: policy}
}

func (m *Machine) Role() model.UserRole {
	return m.role
}

func (m *Machine) Level() Level {
	switch {
	case m.chapterID != "":
		return Chapter
	case m.subjectID != "":
		return Subject
	case m.classroomID != "":
		return Classroom
	default:
		return Dashboard
	}
}

// SelectClassroom 任何层级都可以切换班级
func (m *Machine) SelectClassroom(id string) error {
	if id == "" {
		return util.NewEmptyFieldError("classroomId")
	}
	m.classroomID = id
	m.clearBelow(Classroom)
	return nil
}

func (m *Machine) SelectSubject(id string) error {
	if id == "" {
		return util.NewEmptyFieldError("subjectId")
	}
	if m.classroomID == "" {
		return util.NewStateError("select_subject", m.Level().String())
	}
	m.subjectID = id
	m.clearBelow(Subject)
	return nil
}

// SelectChapter 进入章节后默认打开笔记分区
func (m *Machine) SelectChapter(id string) error {
	if id == "" {
		return util.NewEmptyFieldError("chapterId")
	}
	if m.subjectID == "" {
		return util.NewStateError("select_chapter", m.Level().String())
	}
	m.chapterID = id
	m.section = DefaultSection
	return nil
}

// SelectSection 未知或当前角色无权访问的分区回落到笔记分区，返回实际生效的分区
func (m *Machine) SelectSection(s Section) (Section, error) {
	if m.chapterID == "" {
		return "", util.NewStateError("select_section", m.Level().String())
	}
	if !s.Valid() || !m.policy(m.role, s) {
		s = DefaultSection
	}
	m.section = s
	return s, nil
}

// Back 回退一层并清空该层的选择，仪表盘上调用无效果
func (m *Machine) Back() Level {
	switch m.Level() {
	case Chapter:
		m.chapterID = ""
		m.section = ""
	case Subject:
		m.subjectID = ""
	case Classroom:
		m.classroomID = ""
	}
	return m.Level()
}

// Reset 退出登录时回到初始状态
func (m *Machine) Reset() {
	m.classroomID = ""
	m.clearBelow(Classroom)
}

func (m *Machine) clearBelow(l Level) {
	if l < Subject {
		m.subjectID = ""
	}
	if l < Chapter {
		m.chapterID = ""
		m.section = ""
	}
}

func (m *Machine) Breadcrumb() []Crumb {
	crumbs := []Crumb{{Level: Dashboard}}
	if m.classroomID != "" {
		crumbs = append(crumbs, Crumb{Level: Classroom, ID: m.classroomID})
	}
	if m.subjectID != "" {
		crumbs = append(crumbs, Crumb{Level: Subject, ID: m.subjectID})
	}
	if m.chapterID != "" {
		crumbs = append(crumbs, Crumb{Level: Chapter, ID: m.chapterID})
	}
	return crumbs
}

func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		Role:        m.role,
		Level:       m.Level(),
		ClassroomID: m.classroomID,
		SubjectID:   m.subjectID,
		ChapterID:   m.chapterID,
		Section:     m.section,
	}
}
