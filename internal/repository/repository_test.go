package repository_test

import (
	"context"
	"testing"
	"time"

	"edunexus_backend/internal/model"
	"edunexus_backend/internal/repository"
	"edunexus_backend/internal/seed"
	"edunexus_backend/internal/util"
	"edunexus_backend/pkg/database"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type store interface {
	repository.UserRepository
	repository.ContentRepository
}

func TestMain(m *testing.M) {
	util.PasswordCost = bcrypt.MinCost
	m.Run()
}

func newGormStore(t *testing.T) store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// 内存库每个连接各自独立
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return repository.NewGormRepository(db)
}

// forEachBackend 对两种后端运行同一组用例，数据来自内置种子
func forEachBackend(t *testing.T, fn func(t *testing.T, s store)) {
	backends := []struct {
		name string
		open func(t *testing.T) store
	}{
		{"memory", func(*testing.T) store { return repository.NewMemoryRepository() }},
		{"gorm", newGormStore},
	}

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			require.NoError(t, seed.Apply(context.Background(), seed.Default(), s, s))
			fn(t, s)
		})
	}
}

func TestUsers(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s store) {
		ctx := context.Background()

		u, err := s.FindUserByEmail(ctx, "ALEX@student.edu")
		require.NoError(t, err)
		assert.Equal(t, "student-1", u.ID)

		err = s.CreateUser(ctx, &model.User{ID: model.NewID(), Name: "Dup", Email: "alex@student.edu", Password: "x", Role: model.Student})
		assert.ErrorIs(t, err, util.ErrEmailRegistered)

		_, err = s.FindUser(ctx, "ghost")
		assert.True(t, util.IsNotFound(err))
	})
}

func TestClassroomTree(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s store) {
		ctx := context.Background()

		c, err := s.FindClassroom(ctx, "class-1")
		require.NoError(t, err)
		require.Len(t, c.Subjects, 3)
		assert.Equal(t, []string{"subj-1", "subj-2", "subj-3"}, []string{c.Subjects[0].ID, c.Subjects[1].ID, c.Subjects[2].ID})

		chapters := c.Subjects[0].Chapters
		require.Len(t, chapters, 4)
		for i, ch := range chapters {
			assert.Equal(t, i+1, ch.Order)
		}
		// note-1..3 已发布；note-4 私有、note-5 待审、note-6 已驳回
		assert.Equal(t, 3, chapters[0].NoteCount)
		assert.Equal(t, 0, chapters[1].NoteCount)

		byCode, err := s.FindClassroomByCode(ctx, "cs2024")
		require.NoError(t, err)
		assert.Equal(t, "class-1", byCode.ID)

		_, err = s.FindClassroom(ctx, "class-404")
		assert.True(t, util.IsNotFound(err))

		owned, err := s.ListClassroomsByTeacher(ctx, "teacher-2")
		require.NoError(t, err)
		require.Len(t, owned, 1)
		assert.Equal(t, "class-2", owned[0].ID)

		listed, err := s.ListClassroomsByIDs(ctx, []string{"class-2", "class-1"})
		require.NoError(t, err)
		assert.Len(t, listed, 2)
	})
}

func TestAddSubjectAndChapter(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s store) {
		ctx := context.Background()

		subject := &model.Subject{ID: model.NewID(), Name: "Operating Systems", ClassroomID: "class-1", Icon: "💻"}
		require.NoError(t, s.AddSubject(ctx, subject))
		assert.Equal(t, 4, subject.Position)

		first := &model.Chapter{ID: model.NewID(), Name: "Processes", SubjectID: subject.ID}
		require.NoError(t, s.AddChapter(ctx, first))
		second := &model.Chapter{ID: model.NewID(), Name: "Threads", SubjectID: subject.ID}
		require.NoError(t, s.AddChapter(ctx, second))
		assert.Equal(t, 1, first.Order)
		assert.Equal(t, 2, second.Order)

		got, err := s.FindSubject(ctx, subject.ID)
		require.NoError(t, err)
		require.Len(t, got.Chapters, 2)
		assert.Equal(t, "Threads", got.Chapters[1].Name)

		ch5 := &model.Chapter{ID: model.NewID(), Name: "Unit 5", SubjectID: "subj-1"}
		require.NoError(t, s.AddChapter(ctx, ch5))
		assert.Equal(t, 5, ch5.Order)

		err = s.AddChapter(ctx, &model.Chapter{ID: model.NewID(), Name: "x", SubjectID: "subj-404"})
		assert.True(t, util.IsNotFound(err))
		err = s.AddSubject(ctx, &model.Subject{ID: model.NewID(), Name: "x", ClassroomID: "class-404"})
		assert.True(t, util.IsNotFound(err))
	})
}

func TestSubjectAccessReplaces(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s store) {
		ctx := context.Background()

		require.NoError(t, s.ReplaceSubjectAccess(ctx, &model.SubjectTeacherAccess{
			ID: model.NewID(), TeacherID: "teacher-2", TeacherName: "Prof. John Smith", SubjectID: "subj-1",
		}))
		require.NoError(t, s.ReplaceSubjectAccess(ctx, &model.SubjectTeacherAccess{
			ID: model.NewID(), TeacherID: "teacher-3", TeacherName: "Guest", SubjectID: "subj-1",
		}))

		c, err := s.FindClassroom(ctx, "class-1")
		require.NoError(t, err)
		grants := 0
		for _, g := range c.SubjectTeachers {
			if g.SubjectID == "subj-1" {
				grants++
				assert.Equal(t, "teacher-3", g.TeacherID)
			}
		}
		assert.Equal(t, 1, grants)
		subj, _ := c.FindSubject("subj-1")
		assert.Equal(t, "teacher-3", subj.AssignedTeacherID)

		old, err := s.ListAccessByTeacher(ctx, "teacher-2")
		require.NoError(t, err)
		assert.Empty(t, old)

		removed, err := s.RevokeSubjectAccess(ctx, "subj-1")
		require.NoError(t, err)
		assert.True(t, removed)
		removed, err = s.RevokeSubjectAccess(ctx, "subj-1")
		require.NoError(t, err)
		assert.False(t, removed)

		subject, err := s.FindSubject(ctx, "subj-1")
		require.NoError(t, err)
		assert.Empty(t, subject.AssignedTeacherID)
		assert.Len(t, subject.Chapters, 4)
	})
}

func TestEnroll(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s store) {
		ctx := context.Background()

		joined, err := s.Enroll(ctx, "class-2", "student-2", time.Now())
		require.NoError(t, err)
		assert.True(t, joined)

		joined, err = s.Enroll(ctx, "class-2", "student-2", time.Now())
		require.NoError(t, err)
		assert.False(t, joined)

		c, err := s.FindClassroom(ctx, "class-2")
		require.NoError(t, err)
		assert.Equal(t, 33, c.StudentCount)

		ok, err := s.IsEnrolled(ctx, "class-2", "student-2")
		require.NoError(t, err)
		assert.True(t, ok)

		mine, err := s.ListEnrollments(ctx, repository.EnrollmentFilter{StudentID: "student-1"})
		require.NoError(t, err)
		assert.Len(t, mine, 2)

		_, err = s.Enroll(ctx, "class-404", "student-2", time.Now())
		assert.True(t, util.IsNotFound(err))
	})
}

func TestNoteStatusCompareAndSet(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s store) {
		ctx := context.Background()

		pending, err := s.ListNotes(ctx, repository.NoteFilter{Status: model.NotePending})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "note-5", pending[0].ID)

		changed, err := s.UpdateNoteStatus(ctx, "note-5", model.NotePending, model.NoteApproved)
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = s.UpdateNoteStatus(ctx, "note-5", model.NotePending, model.NoteRejected)
		require.NoError(t, err)
		assert.False(t, changed)

		note, err := s.FindNote(ctx, "note-5")
		require.NoError(t, err)
		assert.Equal(t, model.NoteApproved, note.Status)

		_, err = s.UpdateNoteStatus(ctx, "note-404", model.NotePending, model.NoteApproved)
		assert.True(t, util.IsNotFound(err))

		none, err := s.ListNotes(ctx, repository.NoteFilter{ChapterIDs: []string{}})
		require.NoError(t, err)
		assert.Empty(t, none)

		chapter, err := s.FindChapter(ctx, "ch-1")
		require.NoError(t, err)
		assert.Equal(t, 4, chapter.NoteCount)
	})
}

func TestAnswerQuestionOnce(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s store) {
		ctx := context.Background()

		open, err := s.ListQuestions(ctx, repository.QuestionFilter{ChapterID: "ch-1", Unanswered: true})
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, "q-4", open[0].ID)

		at := time.Date(2024, 1, 29, 10, 0, 0, 0, time.UTC)
		ok, err := s.AnswerQuestion(ctx, "q-4", "Use change control.", "Dr. Sarah Miller", at)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.AnswerQuestion(ctx, "q-4", "Second answer", "Prof. John Smith", at.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, ok)

		q, err := s.FindQuestion(ctx, "q-4")
		require.NoError(t, err)
		assert.Equal(t, "Use change control.", q.Answer)
		assert.Equal(t, "Dr. Sarah Miller", q.AnsweredBy)
		require.NotNil(t, q.AnsweredAt)
		assert.True(t, q.AnsweredAt.Equal(at))
	})
}

func TestAnnouncementsNewestFirst(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s store) {
		ctx := context.Background()

		require.NoError(t, s.CreateAnnouncement(ctx, &model.Announcement{
			ID: model.NewID(), Title: "Lab moved", Content: "Room 204", ClassroomID: "class-1",
			AuthorID: "teacher-1", AuthorName: "Dr. Sarah Miller",
		}))

		list, err := s.ListAnnouncements(ctx, "class-1")
		require.NoError(t, err)
		require.Len(t, list, 4)
		assert.Equal(t, "Lab moved", list[0].Title)
		assert.Equal(t, []string{"ann-1", "ann-2", "ann-3"}, []string{list[1].ID, list[2].ID, list[3].ID})

		err = s.CreateAnnouncement(ctx, &model.Announcement{ID: model.NewID(), Title: "x", Content: "y", ClassroomID: "class-404"})
		if _, isMemory := s.(*repository.MemoryRepository); isMemory {
			assert.True(t, util.IsNotFound(err))
		}
	})
}

func TestResources(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s store) {
		ctx := context.Background()

		pyqs, err := s.ListPYQs(ctx, "ch-1")
		require.NoError(t, err)
		assert.Len(t, pyqs, 5)

		recs, err := s.ListRecommendations(ctx)
		require.NoError(t, err)
		assert.Len(t, recs, 4)
	})
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	require.NoError(t, seed.Apply(ctx, seed.Default(), repo, repo))

	c, err := repo.FindClassroom(ctx, "class-1")
	require.NoError(t, err)
	c.Subjects[0].Name = "mutated"
	c.Subjects[0].Chapters[0].Name = "mutated"

	again, err := repo.FindClassroom(ctx, "class-1")
	require.NoError(t, err)
	assert.Equal(t, "Software Engineering & Testing", again.Subjects[0].Name)
	assert.Equal(t, "Unit 1: Software Development Life Cycle", again.Subjects[0].Chapters[0].Name)

	q, err := repo.FindQuestion(ctx, "q-1")
	require.NoError(t, err)
	*q.AnsweredAt = time.Time{}
	q2, err := repo.FindQuestion(ctx, "q-1")
	require.NoError(t, err)
	assert.False(t, q2.AnsweredAt.IsZero())
}
