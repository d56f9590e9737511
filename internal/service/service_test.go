package service

import (
	"context"
	"testing"

	"edunexus_backend/internal/model"
	"edunexus_backend/internal/repository"
	"edunexus_backend/internal/seed"
	"edunexus_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	util.PasswordCost = bcrypt.MinCost
	m.Run()
}

type fixture struct {
	repo       *repository.MemoryRepository
	access     *AccessChecker
	auth       *AuthService
	classrooms *ClassroomService
	notes      *NoteService
	questions  *QuestionService

	alex, emily, mike, sarah, john *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	require.NoError(t, seed.Apply(ctx, seed.Default(), repo, repo))

	access := NewAccessChecker(repo)
	storage := &StorageService{Provider: &LocalStorageProvider{Root: t.TempDir()}}
	f := &fixture{
		repo:       repo,
		access:     access,
		auth:       NewAuthService(repo),
		classrooms: NewClassroomService(repo, repo, access),
		notes:      NewNoteService(repo, access, storage),
		questions:  NewQuestionService(repo, access),
	}
	f.alex = f.user(t, "student-1")
	f.emily = f.user(t, "student-2")
	f.mike = f.user(t, "student-3")
	f.sarah = f.user(t, "teacher-1")
	f.john = f.user(t, "teacher-2")
	return f
}

func (f *fixture) user(t *testing.T, id string) *model.User {
	t.Helper()
	u, err := f.repo.FindUser(context.Background(), id)
	require.NoError(t, err)
	return u
}

func TestAuthService_Login(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.auth.Login(ctx, "Alex@Student.edu", "password", model.Student)
	require.NoError(t, err)
	assert.Equal(t, "student-1", u.ID)

	tests := []struct {
		name     string
		email    string
		password string
		role     model.UserRole
	}{
		{"wrong-password", "alex@student.edu", "nope", model.Student},
		{"unknown-email", "ghost@student.edu", "password", model.Student},
		{"role-mismatch", "alex@student.edu", "password", model.Teacher},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.auth.Login(ctx, tt.email, tt.password, tt.role)
			var authErr *util.AuthError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, util.InvalidCredentials, authErr.Kind)
		})
	}
}

func TestAuthService_Signup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		userName  string
		email     string
		password  string
		wantField string
	}{
		{"empty-name", " ", "new@student.edu", "secret1", "name"},
		{"empty-email", "New", "", "secret1", "email"},
		{"bad-email", "New", "not-an-email", "secret1", "email"},
		{"short-password", "New", "new@student.edu", "12345", "password"},
		{"duplicate-email", "New", "ALEX@student.edu", "secret1", "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.auth.Signup(ctx, tt.userName, tt.email, tt.password, model.Student)
			var ve *util.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}

	u, err := f.auth.Signup(ctx, "  Nora Lee ", "Nora@Student.edu", "secret1", model.Student)
	require.NoError(t, err)
	assert.Len(t, u.ID, 36)
	assert.Equal(t, "Nora Lee", u.Name)
	assert.Equal(t, "nora@student.edu", u.Email)
	assert.NotEqual(t, "secret1", u.Password)

	again, err := f.auth.Login(ctx, "nora@student.edu", "secret1", model.Student)
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
}

func TestClassroomCode(t *testing.T) {
	assert.Equal(t, "COMPUTAB", ClassroomCode("Computer Science 2024", "ab"))
	assert.Equal(t, "AI101X9", ClassroomCode("A.I. 101", "x9"))
	assert.Equal(t, "Q7", ClassroomCode("数学", "q7"))
}

func TestClassroomService_CreateAndJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.classrooms.suffix = func(int) string { return "Z1" }

	c, err := f.classrooms.Create(ctx, f.john, "  Data Mining ")
	require.NoError(t, err)
	assert.Equal(t, "DATAMIZ1", c.Code)
	assert.Equal(t, "Prof. John Smith", c.TeacherName)
	assert.Zero(t, c.StudentCount)

	_, err = f.classrooms.Create(ctx, f.john, "")
	assert.True(t, util.IsValidation(err))
	_, err = f.classrooms.Create(ctx, f.alex, "Mine")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	// 邀请码冲突后重试仍然冲突，最终返回重复错误
	_, err = f.classrooms.Create(ctx, f.john, "Data Mining")
	assert.True(t, util.IsValidation(err))

	joined, ok, err := f.classrooms.Join(ctx, f.mike, "datamiz1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, joined.StudentCount)

	_, ok, err = f.classrooms.Join(ctx, f.mike, "DATAMIZ1")
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := f.repo.FindClassroom(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.StudentCount)

	_, _, err = f.classrooms.Join(ctx, f.mike, "NOPE00")
	assert.True(t, util.IsNotFound(err))
	_, _, err = f.classrooms.Join(ctx, f.sarah, "CS2024")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	joinedList, err := f.classrooms.ListJoined(ctx, f.alex)
	require.NoError(t, err)
	assert.Len(t, joinedList, 2)
}

func TestClassroomService_SubjectsAndChapters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.classrooms.AddSubject(ctx, f.sarah, "class-1", "Operating Systems", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultSubjectIcon, s.Icon)

	_, err = f.classrooms.AddSubject(ctx, f.john, "class-1", "Hijack", "")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	ch1, err := f.classrooms.AddChapter(ctx, f.sarah, s.ID, "Unit 1: Processes")
	require.NoError(t, err)
	ch2, err := f.classrooms.AddChapter(ctx, f.sarah, s.ID, "Unit 2: Memory")
	require.NoError(t, err)
	assert.Equal(t, 1, ch1.Order)
	assert.Equal(t, 2, ch2.Order)

	// 授权教师可以在被委派的科目下加章节
	ch, err := f.classrooms.AddChapter(ctx, f.sarah, "subj-4", "Unit 5: Transformers")
	require.NoError(t, err)
	assert.Equal(t, 5, ch.Order)

	_, err = f.classrooms.AddChapter(ctx, f.john, s.ID, "Nope")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}

func TestClassroomService_GrantReplacesAndRevokes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	accessed, err := f.classrooms.ListAccessed(ctx, f.sarah)
	require.NoError(t, err)
	require.Len(t, accessed, 1)
	assert.Equal(t, "class-2", accessed[0].Classroom.ID)
	assert.Equal(t, "Machine Learning", accessed[0].SubjectName)

	_, err = f.classrooms.GrantSubject(ctx, f.john, "subj-4", "student-1")
	assert.True(t, util.IsValidation(err))
	_, err = f.classrooms.GrantSubject(ctx, f.sarah, "subj-4", "teacher-1")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	newcomer, err := f.auth.Signup(ctx, "Dr. Ada Byte", "ada@faculty.edu", "secret1", model.Teacher)
	require.NoError(t, err)

	grant, err := f.classrooms.GrantSubject(ctx, f.john, "subj-4", newcomer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Ada Byte", grant.TeacherName)

	subject, err := f.repo.FindSubject(ctx, "subj-4")
	require.NoError(t, err)
	assert.Equal(t, newcomer.ID, subject.AssignedTeacherID)

	// 原授权被替换
	_, err = f.access.ManagedChapter(ctx, f.sarah, "ch-13")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
	_, err = f.access.ManagedChapter(ctx, newcomer, "ch-13")
	assert.NoError(t, err)

	removed, err := f.classrooms.RevokeSubject(ctx, f.john, "subj-4")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = f.classrooms.RevokeSubject(ctx, f.john, "subj-4")
	require.NoError(t, err)
	assert.False(t, removed)

	subject, err = f.repo.FindSubject(ctx, "subj-4")
	require.NoError(t, err)
	assert.Empty(t, subject.AssignedTeacherName)
	assert.Len(t, subject.Chapters, 4)
}

func TestAccessChecker_ManageableChapters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids, err := f.access.ManageableChapterIDs(ctx, f.sarah)
	require.NoError(t, err)
	assert.Len(t, ids, 16)
	assert.Contains(t, ids, "ch-13")

	ids, err = f.access.ManageableChapterIDs(ctx, f.john)
	require.NoError(t, err)
	assert.Len(t, ids, 4)

	ids, err = f.access.ManageableChapterIDs(ctx, f.alex)
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)

	_, err = f.access.ReadableChapter(ctx, f.mike, "ch-13")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
	_, err = f.access.ReadableChapter(ctx, f.alex, "ch-13")
	assert.NoError(t, err)
	_, err = f.access.ReadableChapter(ctx, f.alex, "ch-404")
	assert.True(t, util.IsNotFound(err))
}
