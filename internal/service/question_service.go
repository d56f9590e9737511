package service

import (
	"context"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/repository"
	"edunexus_backend/internal/util"
	"edunexus_backend/internal/visibility"
	"edunexus_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
)

type QuestionService struct {
	Content repository.ContentRepository
	Access  *AccessChecker
	now     func() time.Time
}

func NewQuestionService(content repository.ContentRepository, access *AccessChecker) *QuestionService {
	return &QuestionService{Content: content, Access: access, now: time.Now}
}

// Ask 学生在已加入班级的章节中提问，私有提问只有自己和教师能看到
func (s *QuestionService) Ask(ctx context.Context, student *model.User, chapterID, text string, vis model.Visibility) (*model.Question, error) {
	if student.IsTeacher() {
		return nil, util.ErrPermissionDenied
	}
	scope, err := s.Access.ReadableChapter(ctx, student, chapterID)
	if err != nil {
		return nil, err
	}
	q, err := visibility.NewQuestion(student, scope.Chapter, text, vis, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.Content.CreateQuestion(ctx, &q); err != nil {
		return nil, err
	}
	logger.Log.Info("Question asked",
		zap.String("question_id", q.ID),
		zap.String("chapter_id", chapterID),
		zap.String("visibility", string(q.Visibility)))
	return &q, nil
}

func (s *QuestionService) ListForChapter(ctx context.Context, viewer *model.User, chapterID string) ([]model.Question, error) {
	if _, err := s.Access.ReadableChapter(ctx, viewer, chapterID); err != nil {
		return nil, err
	}
	questions, err := s.Content.ListQuestions(ctx, repository.QuestionFilter{ChapterID: chapterID})
	if err != nil {
		return nil, err
	}
	return visibility.VisibleQuestions(questions, chapterID, visibility.ViewerOf(viewer)), nil
}

// Community 社区页只读展示的公开问答
func (s *QuestionService) Community(ctx context.Context, viewer *model.User, chapterID string) ([]model.Question, error) {
	if _, err := s.Access.ReadableChapter(ctx, viewer, chapterID); err != nil {
		return nil, err
	}
	questions, err := s.Content.ListQuestions(ctx, repository.QuestionFilter{ChapterID: chapterID})
	if err != nil {
		return nil, err
	}
	return visibility.PublicAnsweredQA(questions, chapterID), nil
}

// Unanswered 教师可回答章节内尚未回答的问题，含私有提问
func (s *QuestionService) Unanswered(ctx context.Context, teacher *model.User) ([]model.Question, error) {
	if !teacher.IsTeacher() {
		return nil, util.ErrPermissionDenied
	}
	chapterIDs, err := s.Access.ManageableChapterIDs(ctx, teacher)
	if err != nil {
		return nil, err
	}
	questions, err := s.Content.ListQuestions(ctx, repository.QuestionFilter{ChapterIDs: chapterIDs, Unanswered: true})
	if err != nil {
		return nil, err
	}
	return visibility.UnansweredQuestions(questions), nil
}

// Answer 空白答案和重复回答都是空操作，返回未修改的问题
func (s *QuestionService) Answer(ctx context.Context, teacher *model.User, questionID, text string) (*model.Question, error) {
	q, err := s.Content.FindQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Access.ManagedChapter(ctx, teacher, q.ChapterID); err != nil {
		return nil, err
	}

	answered, err := visibility.Answer(*q, text, teacher.Name, s.now())
	if err != nil {
		if util.IsValidation(err) || util.IsStateError(err) {
			logger.Log.Debug("Answer ignored", zap.String("question_id", questionID), zap.Error(err))
			return q, nil
		}
		return nil, err
	}

	written, err := s.Content.AnswerQuestion(ctx, questionID, answered.Answer, answered.AnsweredBy, *answered.AnsweredAt)
	if err != nil {
		return nil, err
	}
	if !written {
		return s.Content.FindQuestion(ctx, questionID)
	}
	logger.Log.Info("Question answered", zap.String("question_id", questionID), zap.String("teacher_id", teacher.ID))
	return &answered, nil
}
