// Package composer 根据角色和导航状态决定可用的分区和操作。
// 角色 × 分区 的分派表在包初始化时建立一次，之后只读。
package composer

import (
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/navigation"
)

type Component string

const (
	None          Component = ""
	NotesList     Component = "notes_list"
	Notebook      Component = "notebook"
	StudentUpload Component = "student_upload"
	TeacherUpload Component = "teacher_upload"
	Ask           Component = "ask"
	Community     Component = "community"
)

type Action string

const (
	ActionCreateClassroom  Action = "create-classroom"
	ActionReviewApprovals  Action = "review-approvals"
	ActionAnswerQuestions  Action = "answer-questions"
	ActionJoinClassroom    Action = "join-classroom"
	ActionMyNotes          Action = "my-notes"
	ActionAddSubject       Action = "add-subject"
	ActionAssignTeacher    Action = "assign-teacher"
	ActionPostAnnouncement Action = "post-announcement"
	ActionAddChapter       Action = "add-chapter"
	ActionUploadNote       Action = "upload-note"
	ActionApproveNotes     Action = "approve-notes"
)

type Tab struct {
	Section   navigation.Section `json:"section"`
	Label     string             `json:"label"`
	Component Component          `json:"component"`
}

// View 前端渲染当前页面所需的信息
type View struct {
	Level     navigation.Level   `json:"level"`
	Section   navigation.Section `json:"section,omitempty"`
	Tabs      []Tab              `json:"tabs"`
	Actions   []Action           `json:"actions"`
	Component Component          `json:"component,omitempty"`
}

var (
	tabs = map[model.UserRole][]Tab{
		model.Teacher: {
			{navigation.SectionNotes, "Notes", NotesList},
			{navigation.SectionUpload, "Upload", TeacherUpload},
			{navigation.SectionNotebook, "Notebook", Notebook},
			{navigation.SectionCommunity, "Community", Community},
		},
		model.Student: {
			{navigation.SectionNotes, "Notes", NotesList},
			{navigation.SectionNotebook, "Notebook", Notebook},
			{navigation.SectionUpload, "Upload", StudentUpload},
			{navigation.SectionAsk, "Ask", Ask},
			{navigation.SectionCommunity, "Community", Community},
		},
	}

	dispatch = buildDispatch()

	actions = map[model.UserRole]map[navigation.Level][]Action{
		model.Teacher: {
			navigation.Dashboard: {ActionCreateClassroom, ActionReviewApprovals, ActionAnswerQuestions},
			navigation.Classroom: {ActionAddSubject, ActionAssignTeacher, ActionPostAnnouncement},
			navigation.Subject:   {ActionAddChapter},
			navigation.Chapter:   {ActionUploadNote, ActionAnswerQuestions, ActionApproveNotes},
		},
		model.Student: {
			navigation.Dashboard: {ActionJoinClassroom, ActionMyNotes},
		},
	}
)

func buildDispatch() map[model.UserRole]map[navigation.Section]Component {
	out := make(map[model.UserRole]map[navigation.Section]Component, len(tabs))
	for role, list := range tabs {
		m := make(map[navigation.Section]Component, len(list))
		for _, t := range list {
			m[t.Section] = t.Component
		}
		out[role] = m
	}
	return out
}

// Tabs 按展示顺序返回角色可用的分区，未知角色返回空
func Tabs(role model.UserRole) []Tab {
	return append([]Tab{}, tabs[role]...)
}

// Resolve 分区不在角色允许范围内时返回 (None, false)
func Resolve(role model.UserRole, section navigation.Section) (Component, bool) {
	c, ok := dispatch[role][section]
	if !ok {
		return None, false
	}
	return c, true
}

// Permits 满足 navigation.Policy
func Permits(role model.UserRole, section navigation.Section) bool {
	_, ok := Resolve(role, section)
	return ok
}

var _ navigation.Policy = Permits

func Compose(snap navigation.Snapshot) View {
	view := View{
		Level:   snap.Level,
		Tabs:    []Tab{},
		Actions: append([]Action{}, actions[snap.Role][snap.Level]...),
	}
	if snap.Level != navigation.Chapter {
		return view
	}

	view.Tabs = Tabs(snap.Role)
	if c, ok := Resolve(snap.Role, snap.Section); ok {
		view.Section = snap.Section
		view.Component = c
	}
	return view
}
