// Package visibility 笔记与提问的可见性过滤和审核/回答状态迁移。
// 包内函数都是纯函数，不访问存储，输入切片不会被修改。
package visibility

import (
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/util"
	"strings"
	"time"
)

// Viewer 当前查看内容的用户
type Viewer struct {
	ID   string
	Role model.UserRole
}

func ViewerOf(u *model.User) Viewer {
	if u == nil {
		return Viewer{}
	}
	return Viewer{ID: u.ID, Role: u.Role}
}

func (v Viewer) IsTeacher() bool {
	return v.Role == model.Teacher
}

// VisibleNotes 章节内对 viewer 可见的笔记：已发布的、自己写的，教师可见全部
func VisibleNotes(notes []model.Note, chapterID string, viewer Viewer) []model.Note {
	out := []model.Note{}
	for _, n := range notes {
		if n.ChapterID != chapterID {
			continue
		}
		if n.Published() || n.AuthorID == viewer.ID || viewer.IsTeacher() {
			out = append(out, n)
		}
	}
	return out
}

// VisibleQuestions 私有提问只对提问者和教师可见
func VisibleQuestions(questions []model.Question, chapterID string, viewer Viewer) []model.Question {
	out := []model.Question{}
	for _, q := range questions {
		if q.ChapterID != chapterID {
			continue
		}
		if q.Visibility == model.Public || q.AuthorID == viewer.ID || viewer.IsTeacher() {
			out = append(out, q)
		}
	}
	return out
}

// PublicAnsweredQA 社区页只展示公开且已回答的问题
func PublicAnsweredQA(questions []model.Question, chapterID string) []model.Question {
	out := []model.Question{}
	for _, q := range questions {
		if q.ChapterID == chapterID && q.Visibility == model.Public && q.Answered() {
			out = append(out, q)
		}
	}
	return out
}

func PendingApprovals(notes []model.Note) []model.Note {
	out := []model.Note{}
	for _, n := range notes {
		if n.Status == model.NotePending {
			out = append(out, n)
		}
	}
	return out
}

func UnansweredQuestions(questions []model.Question) []model.Question {
	out := []model.Question{}
	for _, q := range questions {
		if !q.Answered() {
			out = append(out, q)
		}
	}
	return out
}

// ApprovedNotes AI 助手可引用的笔记。学生的私有笔记不在范围内。
func ApprovedNotes(notes []model.Note, chapterID string) []model.Note {
	out := []model.Note{}
	for _, n := range notes {
		if n.ChapterID == chapterID && n.Published() {
			out = append(out, n)
		}
	}
	return out
}

func AuthoredBy(notes []model.Note, userID string) []model.Note {
	out := []model.Note{}
	for _, n := range notes {
		if n.AuthorID == userID {
			out = append(out, n)
		}
	}
	return out
}

// NewNote 按作者角色决定初始可见性和审核状态：
// 教师笔记直接公开发布；学生公开笔记待审核；学生私有笔记无需审核，仅作者可见。
func NewNote(author *model.User, chapter *model.Chapter, title, content string, vis model.Visibility, now time.Time) (model.Note, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" {
		return model.Note{}, util.NewEmptyFieldError("title")
	}
	if content == "" {
		return model.Note{}, util.NewEmptyFieldError("content")
	}
	if vis == "" {
		vis = model.Public
	}
	if !vis.Valid() {
		return model.Note{}, &util.ValidationError{Field: "visibility", Reason: util.InvalidValue}
	}

	note := model.Note{
		ID:          model.NewID(),
		Title:       title,
		Content:     content,
		ChapterID:   chapter.ID,
		ChapterName: chapter.Name,
		AuthorID:    author.ID,
		AuthorName:  author.Name,
		AuthorRole:  author.Role,
		CreatedAt:   now,
	}

	switch {
	case author.IsTeacher():
		note.Visibility = model.Public
		note.Status = model.NoteApproved
	case vis == model.Private:
		note.Visibility = model.Private
		note.Status = model.NoteApproved
	default:
		note.Visibility = model.Public
		note.Status = model.NotePending
	}
	return note, nil
}

func NewQuestion(author *model.User, chapter *model.Chapter, text string, vis model.Visibility, now time.Time) (model.Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Question{}, util.NewEmptyFieldError("text")
	}
	if vis == "" {
		vis = model.Public
	}
	if !vis.Valid() {
		return model.Question{}, &util.ValidationError{Field: "visibility", Reason: util.InvalidValue}
	}
	return model.Question{
		ID:         model.NewID(),
		Text:       text,
		ChapterID:  chapter.ID,
		AuthorID:   author.ID,
		AuthorName: author.Name,
		Visibility: vis,
		CreatedAt:  now,
	}, nil
}

// Approve 只允许 pending -> approved，其他状态返回 StateError 和原笔记
func Approve(note model.Note) (model.Note, error) {
	return decide(note, "approve", model.NoteApproved)
}

// Reject 只允许 pending -> rejected
func Reject(note model.Note) (model.Note, error) {
	return decide(note, "reject", model.NoteRejected)
}

func decide(note model.Note, op string, to model.NoteStatus) (model.Note, error) {
	if note.Status != model.NotePending {
		return note, util.NewStateError(op, string(note.Status))
	}
	note.Status = to
	return note, nil
}

// Answer 每个问题只能回答一次；空白答案返回 ValidationError 且不修改问题
func Answer(q model.Question, text, teacherName string, now time.Time) (model.Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return q, util.NewEmptyFieldError("answer")
	}
	if q.Answered() {
		return q, util.NewStateError("answer", "answered")
	}
	q.Answer = text
	q.AnsweredBy = teacherName
	q.AnsweredAt = &now
	return q, nil
}
