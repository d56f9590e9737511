package seed

import (
	"context"
	_ "embed"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/repository"
	"edunexus_backend/internal/util"
	"edunexus_backend/pkg/logger"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

type Data struct {
	Users           []User           `yaml:"users"`
	Classrooms      []Classroom      `yaml:"classrooms"`
	Enrollments     []Enrollment     `yaml:"enrollments"`
	SubjectTeachers []Grant          `yaml:"subjectTeachers"`
	Notes           []Note           `yaml:"notes"`
	Questions       []Question       `yaml:"questions"`
	Announcements   []Announcement   `yaml:"announcements"`
	PYQs            []PYQ            `yaml:"pyqs"`
	Recommendations []Recommendation `yaml:"recommendations"`
}

type User struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Email    string         `yaml:"email"`
	Role     model.UserRole `yaml:"role"`
	Password string         `yaml:"password"`
}

type Classroom struct {
	ID           string    `yaml:"id"`
	Name         string    `yaml:"name"`
	Code         string    `yaml:"code"`
	TeacherID    string    `yaml:"teacherId"`
	StudentCount int       `yaml:"studentCount"`
	CreatedAt    time.Time `yaml:"createdAt"`
	Subjects     []Subject `yaml:"subjects"`
}

type Subject struct {
	ID       string    `yaml:"id"`
	Name     string    `yaml:"name"`
	Icon     string    `yaml:"icon"`
	Chapters []Chapter `yaml:"chapters"`
}

type Chapter struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type Enrollment struct {
	ClassroomID string    `yaml:"classroomId"`
	StudentID   string    `yaml:"studentId"`
	JoinedAt    time.Time `yaml:"joinedAt"`
}

type Grant struct {
	ID        string    `yaml:"id"`
	TeacherID string    `yaml:"teacherId"`
	SubjectID string    `yaml:"subjectId"`
	GrantedAt time.Time `yaml:"grantedAt"`
}

type Note struct {
	ID         string           `yaml:"id"`
	Title      string           `yaml:"title"`
	Content    string           `yaml:"content"`
	ChapterID  string           `yaml:"chapterId"`
	AuthorID   string           `yaml:"authorId"`
	Visibility model.Visibility `yaml:"visibility"`
	Status     model.NoteStatus `yaml:"status"`
	CreatedAt  time.Time        `yaml:"createdAt"`
}

type Question struct {
	ID         string           `yaml:"id"`
	Text       string           `yaml:"text"`
	ChapterID  string           `yaml:"chapterId"`
	AuthorID   string           `yaml:"authorId"`
	Visibility model.Visibility `yaml:"visibility"`
	Answer     string           `yaml:"answer"`
	AnsweredBy string           `yaml:"answeredBy"`
	CreatedAt  time.Time        `yaml:"createdAt"`
	AnsweredAt *time.Time       `yaml:"answeredAt"`
}

type Announcement struct {
	ID          string    `yaml:"id"`
	Title       string    `yaml:"title"`
	Content     string    `yaml:"content"`
	ClassroomID string    `yaml:"classroomId"`
	AuthorID    string    `yaml:"authorId"`
	CreatedAt   time.Time `yaml:"createdAt"`
}

type PYQ struct {
	ID        string `yaml:"id"`
	ChapterID string `yaml:"chapterId"`
	Question  string `yaml:"question"`
}

type Recommendation struct {
	ID        string                   `yaml:"id"`
	Title     string                   `yaml:"title"`
	Type      model.RecommendationType `yaml:"type"`
	URL       string                   `yaml:"url"`
	Thumbnail string                   `yaml:"thumbnail"`
}

// Default 内置演示数据，解析失败说明 fixtures.yaml 被改坏了
func Default() *Data {
	data, err := Load(defaultFixtures)
	if err != nil {
		panic(fmt.Sprintf("seed: embedded fixtures: %v", err))
	}
	return data
}

func Load(raw []byte) (*Data, error) {
	var data Data
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return &data, nil
}

// Validate 检查引用完整性
func (d *Data) Validate() error {
	users := map[string]model.UserRole{}
	for _, u := range d.Users {
		if u.ID == "" || u.Email == "" {
			return fmt.Errorf("user %q: id and email are required", u.ID)
		}
		if !u.Role.Valid() {
			return fmt.Errorf("user %q: invalid role %q", u.ID, u.Role)
		}
		users[u.ID] = u.Role
	}

	classrooms := map[string]bool{}
	subjects := map[string]bool{}
	chapters := map[string]bool{}
	for _, c := range d.Classrooms {
		if role, ok := users[c.TeacherID]; !ok || role != model.Teacher {
			return fmt.Errorf("classroom %q: owner %q is not a teacher", c.ID, c.TeacherID)
		}
		classrooms[c.ID] = true
		for _, s := range c.Subjects {
			subjects[s.ID] = true
			for _, ch := range s.Chapters {
				chapters[ch.ID] = true
			}
		}
	}

	for _, e := range d.Enrollments {
		if !classrooms[e.ClassroomID] || users[e.StudentID] != model.Student {
			return fmt.Errorf("enrollment %s/%s: unknown classroom or student", e.ClassroomID, e.StudentID)
		}
	}
	for _, g := range d.SubjectTeachers {
		if !subjects[g.SubjectID] || users[g.TeacherID] != model.Teacher {
			return fmt.Errorf("grant %q: unknown subject or teacher", g.ID)
		}
	}
	for _, n := range d.Notes {
		if !chapters[n.ChapterID] {
			return fmt.Errorf("note %q: unknown chapter %q", n.ID, n.ChapterID)
		}
		if _, ok := users[n.AuthorID]; !ok {
			return fmt.Errorf("note %q: unknown author %q", n.ID, n.AuthorID)
		}
		if !n.Visibility.Valid() {
			return fmt.Errorf("note %q: invalid visibility %q", n.ID, n.Visibility)
		}
	}
	for _, q := range d.Questions {
		if !chapters[q.ChapterID] {
			return fmt.Errorf("question %q: unknown chapter %q", q.ID, q.ChapterID)
		}
		if _, ok := users[q.AuthorID]; !ok {
			return fmt.Errorf("question %q: unknown author %q", q.ID, q.AuthorID)
		}
	}
	for _, a := range d.Announcements {
		if !classrooms[a.ClassroomID] {
			return fmt.Errorf("announcement %q: unknown classroom %q", a.ID, a.ClassroomID)
		}
	}
	for _, p := range d.PYQs {
		if !chapters[p.ChapterID] {
			return fmt.Errorf("pyq %q: unknown chapter %q", p.ID, p.ChapterID)
		}
	}
	return nil
}

// Apply 写入账号和内容，存储中已有数据的部分会被跳过
func Apply(ctx context.Context, data *Data, users repository.UserRepository, content repository.ContentRepository) error {
	if data == nil {
		return nil
	}

	names := make(map[string]*User, len(data.Users))
	for i := range data.Users {
		names[data.Users[i].ID] = &data.Users[i]
	}

	count, err := users.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		if err := applyUsers(ctx, data.Users, users); err != nil {
			return err
		}
	}

	count, err = content.CountClassrooms(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		logger.Log.Info("Content already present, skipping seed", zap.Int64("classrooms", count))
		return nil
	}
	if err := applyContent(ctx, data, names, content); err != nil {
		return err
	}

	logger.Log.Info("Seed data applied",
		zap.Int("users", len(data.Users)),
		zap.Int("classrooms", len(data.Classrooms)),
		zap.Int("notes", len(data.Notes)),
		zap.Int("questions", len(data.Questions)))
	return nil
}

func applyUsers(ctx context.Context, fixtures []User, users repository.UserRepository) error {
	for _, u := range fixtures {
		hashed, err := util.HashPassword(u.Password)
		if err != nil {
			return err
		}
		user := &model.User{
			ID:       u.ID,
			Name:     u.Name,
			Email:    u.Email,
			Password: hashed,
			Role:     u.Role,
		}
		if err := users.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}
	return nil
}

func applyContent(ctx context.Context, data *Data, users map[string]*User, content repository.ContentRepository) error {
	nameOf := func(id string) string {
		if u, ok := users[id]; ok {
			return u.Name
		}
		return ""
	}

	chapterNames := map[string]string{}
	for _, c := range data.Classrooms {
		classroom := &model.Classroom{
			ID:           c.ID,
			Name:         c.Name,
			Code:         c.Code,
			TeacherID:    c.TeacherID,
			TeacherName:  nameOf(c.TeacherID),
			StudentCount: c.StudentCount,
			CreatedAt:    c.CreatedAt,
		}
		for _, s := range c.Subjects {
			subject := model.Subject{ID: s.ID, Name: s.Name, Icon: s.Icon, ClassroomID: c.ID}
			for _, ch := range s.Chapters {
				subject.Chapters = append(subject.Chapters, model.Chapter{ID: ch.ID, Name: ch.Name, SubjectID: s.ID})
				chapterNames[ch.ID] = ch.Name
			}
			classroom.Subjects = append(classroom.Subjects, subject)
		}
		if err := content.CreateClassroom(ctx, classroom); err != nil {
			return fmt.Errorf("seed classroom %s: %w", c.ID, err)
		}
	}

	for _, e := range data.Enrollments {
		if _, err := content.Enroll(ctx, e.ClassroomID, e.StudentID, e.JoinedAt); err != nil {
			return fmt.Errorf("seed enrollment %s/%s: %w", e.ClassroomID, e.StudentID, err)
		}
	}

	for _, g := range data.SubjectTeachers {
		access := &model.SubjectTeacherAccess{
			ID:          g.ID,
			TeacherID:   g.TeacherID,
			TeacherName: nameOf(g.TeacherID),
			SubjectID:   g.SubjectID,
			GrantedAt:   g.GrantedAt,
		}
		if err := content.ReplaceSubjectAccess(ctx, access); err != nil {
			return fmt.Errorf("seed grant %s: %w", g.ID, err)
		}
	}

	for _, n := range data.Notes {
		note := &model.Note{
			ID:          n.ID,
			Title:       n.Title,
			Content:     n.Content,
			ChapterID:   n.ChapterID,
			ChapterName: chapterNames[n.ChapterID],
			AuthorID:    n.AuthorID,
			AuthorName:  nameOf(n.AuthorID),
			AuthorRole:  users[n.AuthorID].Role,
			Visibility:  n.Visibility,
			Status:      n.Status,
			CreatedAt:   n.CreatedAt,
		}
		if err := content.CreateNote(ctx, note); err != nil {
			return fmt.Errorf("seed note %s: %w", n.ID, err)
		}
	}

	for _, q := range data.Questions {
		question := &model.Question{
			ID:         q.ID,
			Text:       q.Text,
			ChapterID:  q.ChapterID,
			AuthorID:   q.AuthorID,
			AuthorName: nameOf(q.AuthorID),
			Visibility: q.Visibility,
			Answer:     q.Answer,
			AnsweredBy: q.AnsweredBy,
			CreatedAt:  q.CreatedAt,
			AnsweredAt: q.AnsweredAt,
		}
		if err := content.CreateQuestion(ctx, question); err != nil {
			return fmt.Errorf("seed question %s: %w", q.ID, err)
		}
	}

	for _, a := range data.Announcements {
		announcement := &model.Announcement{
			ID:          a.ID,
			Title:       a.Title,
			Content:     a.Content,
			ClassroomID: a.ClassroomID,
			AuthorID:    a.AuthorID,
			AuthorName:  nameOf(a.AuthorID),
			CreatedAt:   a.CreatedAt,
		}
		if err := content.CreateAnnouncement(ctx, announcement); err != nil {
			return fmt.Errorf("seed announcement %s: %w", a.ID, err)
		}
	}

	for _, p := range data.PYQs {
		if err := content.CreatePYQ(ctx, &model.PYQ{ID: p.ID, ChapterID: p.ChapterID, Question: p.Question}); err != nil {
			return fmt.Errorf("seed pyq %s: %w", p.ID, err)
		}
	}

	for _, r := range data.Recommendations {
		rec := &model.Recommendation{ID: r.ID, Title: r.Title, Type: r.Type, URL: r.URL, Thumbnail: r.Thumbnail}
		if err := content.CreateRecommendation(ctx, rec); err != nil {
			return fmt.Errorf("seed recommendation %s: %w", r.ID, err)
		}
	}
	return nil
}
