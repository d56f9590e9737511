package service

import (
	"context"
	"edunexus_backend/internal/assistant"
	"edunexus_backend/internal/composer"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/navigation"
	"edunexus_backend/internal/repository"
	"edunexus_backend/internal/util"
	"edunexus_backend/internal/visibility"
	"edunexus_backend/pkg/logger"

	"go.uber.org/zap"
)

// ChapterView 章节页某个分区的内容，只填充当前组件需要的字段
type ChapterView struct {
	Chapter         *model.Chapter         `json:"chapter,omitempty"`
	Section         navigation.Section     `json:"section,omitempty"`
	Component       composer.Component     `json:"component"`
	Tabs            []composer.Tab         `json:"tabs"`
	Notes           []model.Note           `json:"notes,omitempty"`
	Questions       []model.Question       `json:"questions,omitempty"`
	Announcements   []model.Announcement   `json:"announcements,omitempty"`
	CommunityQA     []model.Question       `json:"communityQA,omitempty"`
	PYQs            []model.PYQ            `json:"pyqs,omitempty"`
	Recommendations []model.Recommendation `json:"recommendations,omitempty"`
	Transcript      []model.AIMessage      `json:"transcript,omitempty"`
}

type ChapterViewService struct {
	Content   repository.ContentRepository
	Access    *AccessChecker
	Notebooks *assistant.Notebooks
}

func NewChapterViewService(content repository.ContentRepository, access *AccessChecker, notebooks *assistant.Notebooks) *ChapterViewService {
	return &ChapterViewService{Content: content, Access: access, Notebooks: notebooks}
}

// Render 角色无权访问的分区和不存在的章节都渲染为空视图，不返回错误
func (s *ChapterViewService) Render(ctx context.Context, sessionID string, user *model.User, chapterID string, section navigation.Section) (*ChapterView, error) {
	view := &ChapterView{Component: composer.None, Tabs: composer.Tabs(user.Role)}

	scope, err := s.Access.ReadableChapter(ctx, user, chapterID)
	if err != nil {
		if util.IsNotFound(err) {
			logger.Log.Debug("Chapter view on missing entity", zap.String("chapter_id", chapterID), zap.Error(err))
			return view, nil
		}
		return nil, err
	}
	view.Chapter = scope.Chapter

	component, ok := composer.Resolve(user.Role, section)
	if !ok {
		return view, nil
	}
	view.Section = section
	view.Component = component

	viewer := visibility.ViewerOf(user)
	switch component {
	case composer.NotesList:
		notes, err := s.Content.ListNotes(ctx, repository.NoteFilter{ChapterID: chapterID})
		if err != nil {
			return nil, err
		}
		view.Notes = visibility.VisibleNotes(notes, chapterID, viewer)

	case composer.Notebook:
		notes, err := s.Content.ListNotes(ctx, repository.NoteFilter{ChapterID: chapterID, Status: model.NoteApproved})
		if err != nil {
			return nil, err
		}
		view.Notes = visibility.ApprovedNotes(notes, chapterID)
		if view.PYQs, err = s.Content.ListPYQs(ctx, chapterID); err != nil {
			return nil, err
		}
		if view.Recommendations, err = s.Content.ListRecommendations(ctx); err != nil {
			return nil, err
		}
		if s.Notebooks != nil {
			view.Transcript = s.Notebooks.Transcript(sessionID, chapterID)
		}

	case composer.StudentUpload, composer.TeacherUpload:
		notes, err := s.Content.ListNotes(ctx, repository.NoteFilter{ChapterID: chapterID, AuthorID: user.ID})
		if err != nil {
			return nil, err
		}
		view.Notes = visibility.AuthoredBy(notes, user.ID)

	case composer.Ask:
		questions, err := s.Content.ListQuestions(ctx, repository.QuestionFilter{ChapterID: chapterID})
		if err != nil {
			return nil, err
		}
		view.Questions = visibility.VisibleQuestions(questions, chapterID, viewer)

	case composer.Community:
		if view.Announcements, err = s.Content.ListAnnouncements(ctx, scope.Classroom.ID); err != nil {
			return nil, err
		}
		questions, err := s.Content.ListQuestions(ctx, repository.QuestionFilter{ChapterID: chapterID})
		if err != nil {
			return nil, err
		}
		view.CommunityQA = visibility.PublicAnsweredQA(questions, chapterID)
	}
	return view, nil
}
