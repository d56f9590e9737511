package service

import (
	"context"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/repository"
	"edunexus_backend/internal/util"
	"edunexus_backend/pkg/logger"
	"errors"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
)

const (
	codePrefixLength = 6
	codeSuffixLength = 2
	codeAlphabet     = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// 邀请码冲突时重新生成的次数
	codeAttempts = 5

	DefaultSubjectIcon = "📚"
)

type ClassroomService struct {
	Content repository.ContentRepository
	Users   repository.UserRepository
	Access  *AccessChecker
	now     func() time.Time
	suffix  func(n int) string
}

func NewClassroomService(content repository.ContentRepository, users repository.UserRepository, access *AccessChecker) *ClassroomService {
	return &ClassroomService{
		Content: content,
		Users:   users,
		Access:  access,
		now:     time.Now,
		suffix:  randomSuffix,
	}
}

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return string(b)
}

// ClassroomCode 名称去掉空白和符号后取前 6 位大写字母数字，再拼上随机后缀
func ClassroomCode(name, suffix string) string {
	var b strings.Builder
	for _, r := range name {
		if b.Len() >= codePrefixLength {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String() + strings.ToUpper(suffix)
}

func (s *ClassroomService) Create(ctx context.Context, teacher *model.User, name string) (*model.Classroom, error) {
	if !teacher.IsTeacher() {
		return nil, util.ErrPermissionDenied
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, util.NewEmptyFieldError("name")
	}

	var lastErr error
	for attempt := 0; attempt < codeAttempts; attempt++ {
		classroom := &model.Classroom{
			ID:          model.NewID(),
			Name:        name,
			Code:        ClassroomCode(name, s.suffix(codeSuffixLength)),
			TeacherID:   teacher.ID,
			TeacherName: teacher.Name,
			Subjects:    []model.Subject{},
			CreatedAt:   s.now(),
		}
		err := s.Content.CreateClassroom(ctx, classroom)
		if err == nil {
			logger.Log.Info("Classroom created",
				zap.String("classroom_id", classroom.ID),
				zap.String("code", classroom.Code),
				zap.String("teacher_id", teacher.ID))
			return classroom, nil
		}
		if !isDuplicateCode(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func isDuplicateCode(err error) bool {
	var ve *util.ValidationError
	return errors.As(err, &ve) && ve.Field == "code" && ve.Reason == util.DuplicateValue
}

func (s *ClassroomService) Get(ctx context.Context, user *model.User, id string) (*model.Classroom, error) {
	return s.Access.ReadableClassroom(ctx, user, id)
}

func (s *ClassroomService) ListOwned(ctx context.Context, teacher *model.User) ([]model.Classroom, error) {
	return s.Content.ListClassroomsByTeacher(ctx, teacher.ID)
}

// ListAccessed 通过科目授权看到的班级，每个授权一条
func (s *ClassroomService) ListAccessed(ctx context.Context, teacher *model.User) ([]model.AccessedClassroom, error) {
	grants, err := s.Content.ListAccessByTeacher(ctx, teacher.ID)
	if err != nil {
		return nil, err
	}
	out := []model.AccessedClassroom{}
	for _, g := range grants {
		classroom, err := s.Content.FindClassroom(ctx, g.ClassroomID)
		if err != nil {
			if util.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		entry := model.AccessedClassroom{Classroom: *classroom, SubjectID: g.SubjectID}
		if subject, ok := classroom.FindSubject(g.SubjectID); ok {
			entry.SubjectName = subject.Name
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *ClassroomService) ListJoined(ctx context.Context, student *model.User) ([]model.Classroom, error) {
	enrollments, err := s.Content.ListEnrollments(ctx, repository.EnrollmentFilter{StudentID: student.ID})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(enrollments))
	for i, e := range enrollments {
		ids[i] = e.ClassroomID
	}
	return s.Content.ListClassroomsByIDs(ctx, ids)
}

// Join 邀请码不区分大小写；已加入时 joined 为 false，人数不变
func (s *ClassroomService) Join(ctx context.Context, student *model.User, code string) (classroom *model.Classroom, joined bool, err error) {
	if student.IsTeacher() {
		return nil, false, util.ErrPermissionDenied
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, false, util.NewEmptyFieldError("code")
	}
	classroom, err = s.Content.FindClassroomByCode(ctx, code)
	if err != nil {
		return nil, false, err
	}
	joined, err = s.Content.Enroll(ctx, classroom.ID, student.ID, s.now())
	if err != nil {
		return nil, false, err
	}
	if joined {
		classroom.StudentCount++
		logger.Log.Info("Student joined classroom", zap.String("classroom_id", classroom.ID), zap.String("student_id", student.ID))
	}
	return classroom, joined, nil
}

// Students 班级名单，只对所有者开放
func (s *ClassroomService) Students(ctx context.Context, owner *model.User, classroomID string) ([]model.User, error) {
	if _, err := s.Access.OwnedClassroom(ctx, owner, classroomID); err != nil {
		return nil, err
	}
	enrollments, err := s.Content.ListEnrollments(ctx, repository.EnrollmentFilter{ClassroomID: classroomID})
	if err != nil {
		return nil, err
	}
	out := make([]model.User, 0, len(enrollments))
	for _, e := range enrollments {
		u, err := s.Users.FindUser(ctx, e.StudentID)
		if err != nil {
			if util.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}

func (s *ClassroomService) AddSubject(ctx context.Context, owner *model.User, classroomID, name, icon string) (*model.Subject, error) {
	if _, err := s.Access.OwnedClassroom(ctx, owner, classroomID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, util.NewEmptyFieldError("name")
	}
	icon = strings.TrimSpace(icon)
	if icon == "" {
		icon = DefaultSubjectIcon
	}

	subject := &model.Subject{
		ID:          model.NewID(),
		Name:        name,
		ClassroomID: classroomID,
		Icon:        icon,
		Chapters:    []model.Chapter{},
	}
	if err := s.Content.AddSubject(ctx, subject); err != nil {
		return nil, err
	}
	return subject, nil
}

// AddChapter 班级所有者或该科目的授权教师可以添加章节
func (s *ClassroomService) AddChapter(ctx context.Context, teacher *model.User, subjectID, name string) (*model.Chapter, error) {
	subject, err := s.Content.FindSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	classroom, err := s.Content.FindClassroom(ctx, subject.ClassroomID)
	if err != nil {
		return nil, err
	}
	if !ManagesSubject(teacher, classroom, subjectID) {
		return nil, util.ErrPermissionDenied
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, util.NewEmptyFieldError("name")
	}

	chapter := &model.Chapter{ID: model.NewID(), Name: name, SubjectID: subjectID}
	if err := s.Content.AddChapter(ctx, chapter); err != nil {
		return nil, err
	}
	return chapter, nil
}

// GrantSubject 把科目委派给另一名教师，替换该科目已有的授权
func (s *ClassroomService) GrantSubject(ctx context.Context, owner *model.User, subjectID, teacherID string) (*model.SubjectTeacherAccess, error) {
	subject, err := s.Content.FindSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Access.OwnedClassroom(ctx, owner, subject.ClassroomID); err != nil {
		return nil, err
	}

	teacherID = strings.TrimSpace(teacherID)
	if teacherID == "" {
		return nil, util.NewEmptyFieldError("teacherId")
	}
	if teacherID == owner.ID {
		return nil, &util.ValidationError{Field: "teacherId", Reason: util.InvalidValue}
	}
	grantee, err := s.Users.FindUser(ctx, teacherID)
	if err != nil {
		if util.IsNotFound(err) {
			return nil, &util.ValidationError{Field: "teacherId", Reason: util.InvalidValue, Err: err}
		}
		return nil, err
	}
	if !grantee.IsTeacher() {
		return nil, &util.ValidationError{Field: "teacherId", Reason: util.InvalidValue}
	}

	access := &model.SubjectTeacherAccess{
		ID:          model.NewID(),
		TeacherID:   grantee.ID,
		TeacherName: grantee.Name,
		SubjectID:   subjectID,
		ClassroomID: subject.ClassroomID,
		GrantedAt:   s.now(),
	}
	if err := s.Content.ReplaceSubjectAccess(ctx, access); err != nil {
		return nil, err
	}
	logger.Log.Info("Subject access granted",
		zap.String("subject_id", subjectID),
		zap.String("teacher_id", grantee.ID),
		zap.String("previous_teacher_id", subject.AssignedTeacherID))
	return access, nil
}

// RevokeSubject 只移除授权，科目下的内容保持不变
func (s *ClassroomService) RevokeSubject(ctx context.Context, owner *model.User, subjectID string) (bool, error) {
	subject, err := s.Content.FindSubject(ctx, subjectID)
	if err != nil {
		return false, err
	}
	if _, err := s.Access.OwnedClassroom(ctx, owner, subject.ClassroomID); err != nil {
		return false, err
	}
	return s.Content.RevokeSubjectAccess(ctx, subjectID)
}
