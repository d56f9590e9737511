package service

import (
	"context"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/repository"
	"edunexus_backend/internal/util"
	"strings"
	"time"
)

// AnnouncementService 公告创建后不可修改
type AnnouncementService struct {
	Content repository.ContentRepository
	Access  *AccessChecker
	now     func() time.Time
}

func NewAnnouncementService(content repository.ContentRepository, access *AccessChecker) *AnnouncementService {
	return &AnnouncementService{Content: content, Access: access, now: time.Now}
}

func (s *AnnouncementService) Post(ctx context.Context, owner *model.User, classroomID, title, content string) (*model.Announcement, error) {
	if _, err := s.Access.OwnedClassroom(ctx, owner, classroomID); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" {
		return nil, util.NewEmptyFieldError("title")
	}
	if content == "" {
		return nil, util.NewEmptyFieldError("content")
	}

	a := &model.Announcement{
		ID:          model.NewID(),
		Title:       title,
		Content:     content,
		ClassroomID: classroomID,
		AuthorID:    owner.ID,
		AuthorName:  owner.Name,
		CreatedAt:   s.now(),
	}
	if err := s.Content.CreateAnnouncement(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// List 新的在前
func (s *AnnouncementService) List(ctx context.Context, viewer *model.User, classroomID string) ([]model.Announcement, error) {
	if _, err := s.Access.ReadableClassroom(ctx, viewer, classroomID); err != nil {
		return nil, err
	}
	return s.Content.ListAnnouncements(ctx, classroomID)
}
