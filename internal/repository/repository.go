package repository

import (
	"context"
	"edunexus_backend/internal/model"
	"time"
)

// UserRepository 账号存储，邮箱不区分大小写
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	FindUser(ctx context.Context, id string) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

// ContentRepository 班级层级及其下所有内容的读写接口。
// 未知 ID 返回 util.NotFoundError；返回值都是副本，调用方修改不会影响存储。
type ContentRepository interface {
	ClassroomRepository
	NoteRepository
	QuestionRepository
	AnnouncementRepository
	ResourceRepository
}

type ClassroomRepository interface {
	CountClassrooms(ctx context.Context) (int64, error)
	// CreateClassroom 连同嵌套的科目、章节和授权一起写入
	CreateClassroom(ctx context.Context, classroom *model.Classroom) error
	FindClassroom(ctx context.Context, id string) (*model.Classroom, error)
	FindClassroomByCode(ctx context.Context, code string) (*model.Classroom, error)
	ListClassroomsByTeacher(ctx context.Context, teacherID string) ([]model.Classroom, error)
	ListClassroomsByIDs(ctx context.Context, ids []string) ([]model.Classroom, error)

	// AddSubject 追加到班级末尾，Position 由存储分配
	AddSubject(ctx context.Context, subject *model.Subject) error
	FindSubject(ctx context.Context, id string) (*model.Subject, error)
	// AddChapter 分配 Order = 当前章节数 + 1
	AddChapter(ctx context.Context, chapter *model.Chapter) error
	FindChapter(ctx context.Context, id string) (*model.Chapter, error)

	// ReplaceSubjectAccess 删除科目已有授权后写入新授权，并同步科目上的委派教师
	ReplaceSubjectAccess(ctx context.Context, access *model.SubjectTeacherAccess) error
	// RevokeSubjectAccess 科目没有授权时返回 false
	RevokeSubjectAccess(ctx context.Context, subjectID string) (bool, error)
	ListAccessByTeacher(ctx context.Context, teacherID string) ([]model.SubjectTeacherAccess, error)

	// Enroll 已加入时返回 false 且不修改人数
	Enroll(ctx context.Context, classroomID, studentID string, at time.Time) (bool, error)
	IsEnrolled(ctx context.Context, classroomID, studentID string) (bool, error)
	ListEnrollments(ctx context.Context, filter EnrollmentFilter) ([]model.Enrollment, error)
}

type NoteRepository interface {
	CreateNote(ctx context.Context, note *model.Note) error
	FindNote(ctx context.Context, id string) (*model.Note, error)
	// UpdateNoteStatus 仅当当前状态为 from 时改为 to，返回是否发生了修改
	UpdateNoteStatus(ctx context.Context, id string, from, to model.NoteStatus) (bool, error)
	ListNotes(ctx context.Context, filter NoteFilter) ([]model.Note, error)
}

type QuestionRepository interface {
	CreateQuestion(ctx context.Context, question *model.Question) error
	FindQuestion(ctx context.Context, id string) (*model.Question, error)
	// AnswerQuestion 仅当问题尚未回答时写入，返回是否写入
	AnswerQuestion(ctx context.Context, id, answer, answeredBy string, at time.Time) (bool, error)
	ListQuestions(ctx context.Context, filter QuestionFilter) ([]model.Question, error)
}

type AnnouncementRepository interface {
	CreateAnnouncement(ctx context.Context, announcement *model.Announcement) error
	// ListAnnouncements 按创建时间倒序
	ListAnnouncements(ctx context.Context, classroomID string) ([]model.Announcement, error)
}

type ResourceRepository interface {
	CreatePYQ(ctx context.Context, pyq *model.PYQ) error
	ListPYQs(ctx context.Context, chapterID string) ([]model.PYQ, error)
	CreateRecommendation(ctx context.Context, rec *model.Recommendation) error
	ListRecommendations(ctx context.Context) ([]model.Recommendation, error)
}

// NoteFilter 零值字段不参与过滤，结果按创建时间倒序
type NoteFilter struct {
	ChapterID  string
	ChapterIDs []string
	AuthorID   string
	Status     model.NoteStatus
}

func (f NoteFilter) match(n *model.Note) bool {
	if f.ChapterID != "" && n.ChapterID != f.ChapterID {
		return false
	}
	if f.ChapterIDs != nil && !contains(f.ChapterIDs, n.ChapterID) {
		return false
	}
	if f.AuthorID != "" && n.AuthorID != f.AuthorID {
		return false
	}
	if f.Status != "" && n.Status != f.Status {
		return false
	}
	return true
}

// QuestionFilter 零值字段不参与过滤，结果按创建时间倒序
type QuestionFilter struct {
	ChapterID  string
	ChapterIDs []string
	AuthorID   string
	Unanswered bool
}

func (f QuestionFilter) match(q *model.Question) bool {
	if f.ChapterID != "" && q.ChapterID != f.ChapterID {
		return false
	}
	if f.ChapterIDs != nil && !contains(f.ChapterIDs, q.ChapterID) {
		return false
	}
	if f.AuthorID != "" && q.AuthorID != f.AuthorID {
		return false
	}
	if f.Unanswered && q.Answered() {
		return false
	}
	return true
}

type EnrollmentFilter struct {
	ClassroomID string
	StudentID   string
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
