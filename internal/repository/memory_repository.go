package repository

import (
	"context"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/util"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepository 默认后端：进程内存储，进程退出即丢失。
// 所有读写都按值拷贝，外部拿到的切片和结构体可以随意修改。
type MemoryRepository struct {
	mu sync.RWMutex

	users           []model.User
	classrooms      []model.Classroom
	enrollments     []model.Enrollment
	notes           []model.Note
	questions       []model.Question
	announcements   []model.Announcement
	pyqs            []model.PYQ
	recommendations []model.Recommendation
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

var (
	_ UserRepository    = (*MemoryRepository)(nil)
	_ ContentRepository = (*MemoryRepository)(nil)
)

// ---- users ----

func (r *MemoryRepository) CreateUser(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range r.users {
		if u.Email == user.Email {
			return util.ErrEmailRegistered
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	r.users = append(r.users, *user)
	return nil
}

func (r *MemoryRepository) FindUser(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.ID == id {
			out := u
			return &out, nil
		}
	}
	return nil, util.NewNotFound("user", id)
}

func (r *MemoryRepository) FindUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, util.NewNotFound("user", email)
}

func (r *MemoryRepository) CountUsers(context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.users)), nil
}

// ---- classrooms ----

func (r *MemoryRepository) CountClassrooms(context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.classrooms)), nil
}

func (r *MemoryRepository) CreateClassroom(_ context.Context, classroom *model.Classroom) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.classrooms {
		if c.ID == classroom.ID {
			return &util.ValidationError{Field: "id", Reason: util.DuplicateValue}
		}
		if strings.EqualFold(c.Code, classroom.Code) {
			return &util.ValidationError{Field: "code", Reason: util.DuplicateValue}
		}
	}
	if classroom.CreatedAt.IsZero() {
		classroom.CreatedAt = time.Now()
	}
	for i := range classroom.Subjects {
		s := &classroom.Subjects[i]
		s.ClassroomID = classroom.ID
		s.Position = i + 1
		for j := range s.Chapters {
			s.Chapters[j].SubjectID = s.ID
			s.Chapters[j].Order = j + 1
		}
	}
	for i := range classroom.SubjectTeachers {
		classroom.SubjectTeachers[i].ClassroomID = classroom.ID
	}
	r.classrooms = append(r.classrooms, classroom.Clone())
	return nil
}

func (r *MemoryRepository) FindClassroom(_ context.Context, id string) (*model.Classroom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.classroomLocked(id)
	if !ok {
		return nil, util.NewNotFound("classroom", id)
	}
	out := r.snapshotLocked(c)
	return &out, nil
}

func (r *MemoryRepository) FindClassroomByCode(_ context.Context, code string) (*model.Classroom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.classrooms {
		if strings.EqualFold(r.classrooms[i].Code, code) {
			out := r.snapshotLocked(&r.classrooms[i])
			return &out, nil
		}
	}
	return nil, util.NewNotFound("classroom", code)
}

func (r *MemoryRepository) ListClassroomsByTeacher(_ context.Context, teacherID string) ([]model.Classroom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.Classroom{}
	for i := range r.classrooms {
		if r.classrooms[i].TeacherID == teacherID {
			out = append(out, r.snapshotLocked(&r.classrooms[i]))
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListClassroomsByIDs(_ context.Context, ids []string) ([]model.Classroom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.Classroom{}
	for i := range r.classrooms {
		if contains(ids, r.classrooms[i].ID) {
			out = append(out, r.snapshotLocked(&r.classrooms[i]))
		}
	}
	return out, nil
}

func (r *MemoryRepository) AddSubject(_ context.Context, subject *model.Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.classroomLocked(subject.ClassroomID)
	if !ok {
		return util.NewNotFound("classroom", subject.ClassroomID)
	}
	subject.Position = len(c.Subjects) + 1
	for j := range subject.Chapters {
		subject.Chapters[j].SubjectID = subject.ID
		subject.Chapters[j].Order = j + 1
	}
	c.Subjects = append(c.Subjects, subject.Clone())
	return nil
}

func (r *MemoryRepository) FindSubject(_ context.Context, id string) (*model.Subject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, s, ok := r.subjectLocked(id)
	if !ok {
		return nil, util.NewNotFound("subject", id)
	}
	out := s.Clone()
	r.countNotesLocked(out.Chapters)
	return &out, nil
}

func (r *MemoryRepository) AddChapter(_ context.Context, chapter *model.Chapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, s, ok := r.subjectLocked(chapter.SubjectID)
	if !ok {
		return util.NewNotFound("subject", chapter.SubjectID)
	}
	chapter.Order = len(s.Chapters) + 1
	chapter.NoteCount = 0
	s.Chapters = append(s.Chapters, *chapter)
	return nil
}

func (r *MemoryRepository) FindChapter(_ context.Context, id string) (*model.Chapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.chapterLocked(id)
	if !ok {
		return nil, util.NewNotFound("chapter", id)
	}
	out := []model.Chapter{*ch}
	r.countNotesLocked(out)
	return &out[0], nil
}

func (r *MemoryRepository) ReplaceSubjectAccess(_ context.Context, access *model.SubjectTeacherAccess) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, s, ok := r.subjectLocked(access.SubjectID)
	if !ok {
		return util.NewNotFound("subject", access.SubjectID)
	}
	access.ClassroomID = c.ID
	if access.GrantedAt.IsZero() {
		access.GrantedAt = time.Now()
	}

	grants := c.SubjectTeachers[:0]
	for _, g := range c.SubjectTeachers {
		if g.SubjectID != access.SubjectID {
			grants = append(grants, g)
		}
	}
	c.SubjectTeachers = append(grants, *access)
	s.AssignedTeacherID = access.TeacherID
	s.AssignedTeacherName = access.TeacherName
	return nil
}

func (r *MemoryRepository) RevokeSubjectAccess(_ context.Context, subjectID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, s, ok := r.subjectLocked(subjectID)
	if !ok {
		return false, util.NewNotFound("subject", subjectID)
	}
	removed := false
	grants := c.SubjectTeachers[:0]
	for _, g := range c.SubjectTeachers {
		if g.SubjectID == subjectID {
			removed = true
			continue
		}
		grants = append(grants, g)
	}
	c.SubjectTeachers = grants
	s.AssignedTeacherID = ""
	s.AssignedTeacherName = ""
	return removed, nil
}

func (r *MemoryRepository) ListAccessByTeacher(_ context.Context, teacherID string) ([]model.SubjectTeacherAccess, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.SubjectTeacherAccess{}
	for _, c := range r.classrooms {
		for _, g := range c.SubjectTeachers {
			if g.TeacherID == teacherID {
				out = append(out, g)
			}
		}
	}
	return out, nil
}

func (r *MemoryRepository) Enroll(_ context.Context, classroomID, studentID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.classroomLocked(classroomID)
	if !ok {
		return false, util.NewNotFound("classroom", classroomID)
	}
	for _, e := range r.enrollments {
		if e.ClassroomID == classroomID && e.StudentID == studentID {
			return false, nil
		}
	}
	r.enrollments = append(r.enrollments, model.Enrollment{ClassroomID: classroomID, StudentID: studentID, JoinedAt: at})
	c.StudentCount++
	return true, nil
}

func (r *MemoryRepository) IsEnrolled(_ context.Context, classroomID, studentID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.enrollments {
		if e.ClassroomID == classroomID && e.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) ListEnrollments(_ context.Context, filter EnrollmentFilter) ([]model.Enrollment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.Enrollment{}
	for _, e := range r.enrollments {
		if filter.ClassroomID != "" && e.ClassroomID != filter.ClassroomID {
			continue
		}
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// ---- notes ----

func (r *MemoryRepository) CreateNote(_ context.Context, note *model.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.chapterLocked(note.ChapterID); !ok {
		return util.NewNotFound("chapter", note.ChapterID)
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}
	r.notes = append(r.notes, *note)
	return nil
}

func (r *MemoryRepository) FindNote(_ context.Context, id string) (*model.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, n := range r.notes {
		if n.ID == id {
			out := n
			return &out, nil
		}
	}
	return nil, util.NewNotFound("note", id)
}

func (r *MemoryRepository) UpdateNoteStatus(_ context.Context, id string, from, to model.NoteStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.notes {
		if r.notes[i].ID != id {
			continue
		}
		if r.notes[i].Status != from {
			return false, nil
		}
		r.notes[i].Status = to
		return true, nil
	}
	return false, util.NewNotFound("note", id)
}

func (r *MemoryRepository) ListNotes(_ context.Context, filter NoteFilter) ([]model.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.Note{}
	for i := range r.notes {
		if filter.match(&r.notes[i]) {
			out = append(out, r.notes[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ---- questions ----

func (r *MemoryRepository) CreateQuestion(_ context.Context, question *model.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.chapterLocked(question.ChapterID); !ok {
		return util.NewNotFound("chapter", question.ChapterID)
	}
	if question.CreatedAt.IsZero() {
		question.CreatedAt = time.Now()
	}
	r.questions = append(r.questions, copyQuestion(*question))
	return nil
}

func (r *MemoryRepository) FindQuestion(_ context.Context, id string) (*model.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, q := range r.questions {
		if q.ID == id {
			out := copyQuestion(q)
			return &out, nil
		}
	}
	return nil, util.NewNotFound("question", id)
}

func (r *MemoryRepository) AnswerQuestion(_ context.Context, id, answer, answeredBy string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.questions {
		q := &r.questions[i]
		if q.ID != id {
			continue
		}
		if q.Answered() {
			return false, nil
		}
		q.Answer = answer
		q.AnsweredBy = answeredBy
		answeredAt := at
		q.AnsweredAt = &answeredAt
		return true, nil
	}
	return false, util.NewNotFound("question", id)
}

func (r *MemoryRepository) ListQuestions(_ context.Context, filter QuestionFilter) ([]model.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.Question{}
	for i := range r.questions {
		if filter.match(&r.questions[i]) {
			out = append(out, copyQuestion(r.questions[i]))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ---- announcements ----

func (r *MemoryRepository) CreateAnnouncement(_ context.Context, announcement *model.Announcement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.classroomLocked(announcement.ClassroomID); !ok {
		return util.NewNotFound("classroom", announcement.ClassroomID)
	}
	if announcement.CreatedAt.IsZero() {
		announcement.CreatedAt = time.Now()
	}
	r.announcements = append(r.announcements, *announcement)
	return nil
}

func (r *MemoryRepository) ListAnnouncements(_ context.Context, classroomID string) ([]model.Announcement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.Announcement{}
	for _, a := range r.announcements {
		if a.ClassroomID == classroomID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ---- resources ----

func (r *MemoryRepository) CreatePYQ(_ context.Context, pyq *model.PYQ) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pyqs = append(r.pyqs, *pyq)
	return nil
}

func (r *MemoryRepository) ListPYQs(_ context.Context, chapterID string) ([]model.PYQ, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.PYQ{}
	for _, p := range r.pyqs {
		if p.ChapterID == chapterID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *MemoryRepository) CreateRecommendation(_ context.Context, rec *model.Recommendation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recommendations = append(r.recommendations, *rec)
	return nil
}

func (r *MemoryRepository) ListRecommendations(context.Context) ([]model.Recommendation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Recommendation{}, r.recommendations...), nil
}

// ---- helpers，调用方必须持有锁 ----

func (r *MemoryRepository) classroomLocked(id string) (*model.Classroom, bool) {
	for i := range r.classrooms {
		if r.classrooms[i].ID == id {
			return &r.classrooms[i], true
		}
	}
	return nil, false
}

func (r *MemoryRepository) subjectLocked(id string) (*model.Classroom, *model.Subject, bool) {
	for i := range r.classrooms {
		if s, ok := r.classrooms[i].FindSubject(id); ok {
			return &r.classrooms[i], s, true
		}
	}
	return nil, nil, false
}

func (r *MemoryRepository) chapterLocked(id string) (*model.Chapter, bool) {
	for i := range r.classrooms {
		for j := range r.classrooms[i].Subjects {
			chapters := r.classrooms[i].Subjects[j].Chapters
			for k := range chapters {
				if chapters[k].ID == id {
					return &chapters[k], true
				}
			}
		}
	}
	return nil, false
}

func (r *MemoryRepository) snapshotLocked(c *model.Classroom) model.Classroom {
	out := c.Clone()
	for i := range out.Subjects {
		r.countNotesLocked(out.Subjects[i].Chapters)
	}
	return out
}

func (r *MemoryRepository) countNotesLocked(chapters []model.Chapter) {
	for i := range chapters {
		chapters[i].NoteCount = 0
		for j := range r.notes {
			if r.notes[j].ChapterID == chapters[i].ID && r.notes[j].Published() {
				chapters[i].NoteCount++
			}
		}
	}
}

func copyQuestion(q model.Question) model.Question {
	if q.AnsweredAt != nil {
		at := *q.AnsweredAt
		q.AnsweredAt = &at
	}
	return q
}
