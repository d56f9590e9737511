package service

import (
	"context"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/repository"
	"edunexus_backend/internal/util"
)

// ChapterScope 章节及其所属科目和班级
type ChapterScope struct {
	Classroom *model.Classroom
	Subject   *model.Subject
	Chapter   *model.Chapter
}

// AccessChecker 判断用户对班级和章节的读写权限。
// 教师：班级所有者可管理整个班级，被授权的科目教师只能管理该科目。
// 学生：加入班级后可读。
type AccessChecker struct {
	Content repository.ContentRepository
}

func NewAccessChecker(content repository.ContentRepository) *AccessChecker {
	return &AccessChecker{Content: content}
}

func (a *AccessChecker) Scope(ctx context.Context, chapterID string) (*ChapterScope, error) {
	chapter, err := a.Content.FindChapter(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	subject, err := a.Content.FindSubject(ctx, chapter.SubjectID)
	if err != nil {
		return nil, err
	}
	classroom, err := a.Content.FindClassroom(ctx, subject.ClassroomID)
	if err != nil {
		return nil, err
	}
	return &ChapterScope{Classroom: classroom, Subject: subject, Chapter: chapter}, nil
}

// ManagesSubject 班级所有者或该科目的授权教师
func ManagesSubject(user *model.User, classroom *model.Classroom, subjectID string) bool {
	if !user.IsTeacher() {
		return false
	}
	if classroom.TeacherID == user.ID {
		return true
	}
	grant, ok := classroom.GrantFor(subjectID)
	return ok && grant.TeacherID == user.ID
}

// ManagesAnySubject 被授权管理班级中至少一个科目
func ManagesAnySubject(user *model.User, classroom *model.Classroom) bool {
	for _, s := range classroom.Subjects {
		if ManagesSubject(user, classroom, s.ID) {
			return true
		}
	}
	return false
}

func (a *AccessChecker) CanReadClassroom(ctx context.Context, user *model.User, classroom *model.Classroom) (bool, error) {
	if user == nil {
		return false, nil
	}
	if user.IsTeacher() {
		return classroom.TeacherID == user.ID || ManagesAnySubject(user, classroom), nil
	}
	return a.Content.IsEnrolled(ctx, classroom.ID, user.ID)
}

func (a *AccessChecker) CanReadChapter(ctx context.Context, user *model.User, scope *ChapterScope) (bool, error) {
	if user.IsTeacher() {
		return ManagesSubject(user, scope.Classroom, scope.Subject.ID), nil
	}
	return a.CanReadClassroom(ctx, user, scope.Classroom)
}

// ReadableChapter 无权访问时返回 util.ErrPermissionDenied
func (a *AccessChecker) ReadableChapter(ctx context.Context, user *model.User, chapterID string) (*ChapterScope, error) {
	scope, err := a.Scope(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	ok, err := a.CanReadChapter(ctx, user, scope)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrPermissionDenied
	}
	return scope, nil
}

func (a *AccessChecker) ManagedChapter(ctx context.Context, user *model.User, chapterID string) (*ChapterScope, error) {
	scope, err := a.Scope(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if !ManagesSubject(user, scope.Classroom, scope.Subject.ID) {
		return nil, util.ErrPermissionDenied
	}
	return scope, nil
}

// OwnedClassroom 只有班级所有者可以通过
func (a *AccessChecker) OwnedClassroom(ctx context.Context, user *model.User, classroomID string) (*model.Classroom, error) {
	classroom, err := a.Content.FindClassroom(ctx, classroomID)
	if err != nil {
		return nil, err
	}
	if !user.IsTeacher() || classroom.TeacherID != user.ID {
		return nil, util.ErrPermissionDenied
	}
	return classroom, nil
}

func (a *AccessChecker) ReadableClassroom(ctx context.Context, user *model.User, classroomID string) (*model.Classroom, error) {
	classroom, err := a.Content.FindClassroom(ctx, classroomID)
	if err != nil {
		return nil, err
	}
	ok, err := a.CanReadClassroom(ctx, user, classroom)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrPermissionDenied
	}
	return classroom, nil
}

// ManageableChapterIDs 教师可审核、可回答的所有章节。返回非 nil 切片，
// 空切片在仓库过滤中表示不匹配任何章节。
func (a *AccessChecker) ManageableChapterIDs(ctx context.Context, teacher *model.User) ([]string, error) {
	ids := []string{}
	if !teacher.IsTeacher() {
		return ids, nil
	}

	owned, err := a.Content.ListClassroomsByTeacher(ctx, teacher.ID)
	if err != nil {
		return nil, err
	}
	for _, c := range owned {
		for _, s := range c.Subjects {
			for _, ch := range s.Chapters {
				ids = append(ids, ch.ID)
			}
		}
	}

	grants, err := a.Content.ListAccessByTeacher(ctx, teacher.ID)
	if err != nil {
		return nil, err
	}
	for _, g := range grants {
		s, err := a.Content.FindSubject(ctx, g.SubjectID)
		if err != nil {
			if util.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		for _, ch := range s.Chapters {
			ids = append(ids, ch.ID)
		}
	}
	return ids, nil
}
