package service

import (
	"context"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/repository"
	"edunexus_backend/internal/util"
	"edunexus_backend/internal/visibility"
	"edunexus_backend/pkg/logger"
	"edunexus_backend/pkg/monitoring"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
)

// posterOffset 视频封面取第一秒的画面
const posterOffset = "00:00:01"

var errAttachmentTooLarge = fmt.Errorf("file exceeds %d MB", util.MaxAttachmentSize>>20)

type NoteInput struct {
	Title      string
	Content    string
	Visibility model.Visibility
}

// Attachment 随笔记上传的文件
type Attachment struct {
	Filename string
	Reader   io.Reader
}

type NoteService struct {
	Content repository.ContentRepository
	Access  *AccessChecker
	Storage *StorageService
	busy    *util.BusyGuard
	now     func() time.Time
	poster  func(videoPath, posterPath, offset string) error
}

func NewNoteService(content repository.ContentRepository, access *AccessChecker, storage *StorageService) *NoteService {
	return &NoteService{
		Content: content,
		Access:  access,
		Storage: storage,
		busy:    util.NewBusyGuard(),
		now:     time.Now,
		poster:  util.GeneratePoster,
	}
}

// Create 教师只能在自己管理的章节上传；学生需要已加入班级。
// 同一用户在同一章节的上一次上传未完成时返回 util.ErrBusy。
func (s *NoteService) Create(ctx context.Context, author *model.User, chapterID string, in NoteInput, file *Attachment) (*model.Note, error) {
	release, ok := s.busy.TryAcquire("upload:" + author.ID + ":" + chapterID)
	if !ok {
		monitoring.BusyRejections.WithLabelValues("upload").Inc()
		return nil, util.ErrBusy
	}
	defer release()

	var (
		scope *ChapterScope
		err   error
	)
	if author.IsTeacher() {
		scope, err = s.Access.ManagedChapter(ctx, author, chapterID)
	} else {
		scope, err = s.Access.ReadableChapter(ctx, author, chapterID)
	}
	if err != nil {
		return nil, err
	}

	note, err := visibility.NewNote(author, scope.Chapter, in.Title, in.Content, in.Visibility, s.now())
	if err != nil {
		return nil, err
	}

	var stored []string
	if file != nil && s.Storage != nil {
		stored, err = s.attach(ctx, &note, file)
		if err != nil {
			return nil, err
		}
	}

	if err := s.Content.CreateNote(ctx, &note); err != nil {
		for _, key := range stored {
			if derr := s.Storage.Delete(ctx, key); derr != nil {
				logger.Log.Warn("Failed to remove orphaned attachment", zap.String("key", key), zap.Error(derr))
			}
		}
		return nil, err
	}

	monitoring.NotesCreated.WithLabelValues(string(note.AuthorRole), string(note.Visibility)).Inc()
	logger.Log.Info("Note created",
		zap.String("note_id", note.ID),
		zap.String("chapter_id", chapterID),
		zap.String("author_id", author.ID),
		zap.String("status", string(note.Status)))
	return &note, nil
}

// attach 先落到临时文件再上传，视频额外生成封面。封面失败不影响笔记创建。
func (s *NoteService) attach(ctx context.Context, note *model.Note, file *Attachment) ([]string, error) {
	tmp, err := os.CreateTemp("", "edunexus-upload-*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	n, err := io.Copy(tmp, io.LimitReader(file.Reader, util.MaxAttachmentSize+1))
	if err != nil {
		return nil, err
	}
	if n > util.MaxAttachmentSize {
		return nil, util.NewInvalidValueError("file", errAttachmentTooLarge)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	mimeType, err := util.ValidateMimeType(tmp, util.AllowedAttachmentTypes)
	if err != nil {
		return nil, util.NewInvalidValueError("file", err)
	}

	key := AttachmentKey(note.ChapterID, file.Filename)
	url, err := s.Storage.UploadFile(ctx, key, tmp.Name(), mimeType)
	if err != nil {
		return nil, fmt.Errorf("upload attachment: %w", err)
	}
	note.FileURL = url
	stored := []string{key}

	if util.IsVideo(mimeType) {
		posterPath := tmp.Name() + "-poster.jpg"
		defer os.Remove(posterPath)
		if err := s.poster(tmp.Name(), posterPath, posterOffset); err != nil {
			logger.Log.Warn("Poster generation failed", zap.String("key", key), zap.Error(err))
			return stored, nil
		}
		posterKey := PosterKey(key)
		posterURL, err := s.Storage.UploadFile(ctx, posterKey, posterPath, "image/jpeg")
		if err != nil {
			logger.Log.Warn("Poster upload failed", zap.String("key", posterKey), zap.Error(err))
			return stored, nil
		}
		note.PosterURL = posterURL
		stored = append(stored, posterKey)
	}
	return stored, nil
}

// ListForChapter 按查看者过滤后的章节笔记，新的在前
func (s *NoteService) ListForChapter(ctx context.Context, viewer *model.User, chapterID string) ([]model.Note, error) {
	if _, err := s.Access.ReadableChapter(ctx, viewer, chapterID); err != nil {
		return nil, err
	}
	notes, err := s.Content.ListNotes(ctx, repository.NoteFilter{ChapterID: chapterID})
	if err != nil {
		return nil, err
	}
	return visibility.VisibleNotes(notes, chapterID, visibility.ViewerOf(viewer)), nil
}

// Mine 用户自己上传的所有笔记，包括待审核和被拒绝的
func (s *NoteService) Mine(ctx context.Context, user *model.User) ([]model.Note, error) {
	notes, err := s.Content.ListNotes(ctx, repository.NoteFilter{AuthorID: user.ID})
	if err != nil {
		return nil, err
	}
	return visibility.AuthoredBy(notes, user.ID), nil
}

// PendingApprovals 教师可审核章节内的待审核笔记
func (s *NoteService) PendingApprovals(ctx context.Context, teacher *model.User) ([]model.Note, error) {
	if !teacher.IsTeacher() {
		return nil, util.ErrPermissionDenied
	}
	chapterIDs, err := s.Access.ManageableChapterIDs(ctx, teacher)
	if err != nil {
		return nil, err
	}
	notes, err := s.Content.ListNotes(ctx, repository.NoteFilter{ChapterIDs: chapterIDs, Status: model.NotePending})
	if err != nil {
		return nil, err
	}
	return visibility.PendingApprovals(notes), nil
}

func (s *NoteService) Approve(ctx context.Context, teacher *model.User, noteID string) (*model.Note, error) {
	return s.decide(ctx, teacher, noteID, "approved", visibility.Approve)
}

func (s *NoteService) Reject(ctx context.Context, teacher *model.User, noteID string) (*model.Note, error) {
	return s.decide(ctx, teacher, noteID, "rejected", visibility.Reject)
}

// decide 非 pending 的笔记按空操作处理，返回未修改的笔记
func (s *NoteService) decide(ctx context.Context, teacher *model.User, noteID, decision string, transition func(model.Note) (model.Note, error)) (*model.Note, error) {
	note, err := s.Content.FindNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Access.ManagedChapter(ctx, teacher, note.ChapterID); err != nil {
		return nil, err
	}

	next, err := transition(*note)
	if err != nil {
		var stateErr *util.StateError
		if errors.As(err, &stateErr) {
			logger.Log.Debug("Moderation ignored", zap.String("note_id", noteID), zap.Error(err))
			return note, nil
		}
		return nil, err
	}

	changed, err := s.Content.UpdateNoteStatus(ctx, noteID, note.Status, next.Status)
	if err != nil {
		return nil, err
	}
	if !changed {
		// 并发请求先一步完成了审核
		logger.Log.Debug("Moderation lost race", zap.String("note_id", noteID))
		return s.Content.FindNote(ctx, noteID)
	}

	monitoring.ModerationDecisions.WithLabelValues(decision).Inc()
	logger.Log.Info("Note moderated",
		zap.String("note_id", noteID),
		zap.String("decision", decision),
		zap.String("teacher_id", teacher.ID))
	return &next, nil
}
