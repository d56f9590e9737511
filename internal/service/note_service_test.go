package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"edunexus_backend/internal/model"
	"edunexus_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mp4Header 足以按 ftyp 识别为 video/mp4
var mp4Header = []byte("\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom")

func TestNoteService_CreationRule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	teacherNote, err := f.notes.Create(ctx, f.sarah, "ch-1", NoteInput{Title: "Sprint Planning", Content: "Plan.", Visibility: model.Private}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.Public, teacherNote.Visibility)
	assert.Equal(t, model.NoteApproved, teacherNote.Status)

	private, err := f.notes.Create(ctx, f.alex, "ch-1", NoteInput{Title: "Scratch", Content: "Mine only.", Visibility: model.Private}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.NoteApproved, private.Status)

	pending, err := f.notes.Create(ctx, f.alex, "ch-1", NoteInput{Title: "Kanban", Content: "Boards.", Visibility: model.Public}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.NotePending, pending.Status)

	forEmily, err := f.notes.ListForChapter(ctx, f.emily, "ch-1")
	require.NoError(t, err)
	titles := noteTitles(forEmily)
	assert.Contains(t, titles, "Sprint Planning")
	assert.NotContains(t, titles, "Scratch")
	assert.NotContains(t, titles, "Kanban")

	forAlex, err := f.notes.ListForChapter(ctx, f.alex, "ch-1")
	require.NoError(t, err)
	assert.Subset(t, noteTitles(forAlex), []string{"Scratch", "Kanban", "My SDLC Summary"})

	queue, err := f.notes.PendingApprovals(ctx, f.sarah)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Kanban", "DevOps Integration in SDLC"}, noteTitles(queue))

	mine, err := f.notes.Mine(ctx, f.alex)
	require.NoError(t, err)
	assert.Len(t, mine, 4)

	chapter, err := f.repo.FindChapter(ctx, "ch-1")
	require.NoError(t, err)
	assert.Equal(t, 4, chapter.NoteCount)
}

func TestNoteService_Permissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := NoteInput{Title: "T", Content: "C"}

	_, err := f.notes.Create(ctx, f.john, "ch-1", in, nil)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
	_, err = f.notes.Create(ctx, f.mike, "ch-13", in, nil)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
	_, err = f.notes.Create(ctx, f.sarah, "ch-13", in, nil)
	assert.NoError(t, err)
	_, err = f.notes.Create(ctx, f.alex, "ch-404", in, nil)
	assert.True(t, util.IsNotFound(err))
	_, err = f.notes.Create(ctx, f.alex, "ch-1", NoteInput{Title: " ", Content: "C"}, nil)
	assert.True(t, util.IsValidation(err))

	_, err = f.notes.Approve(ctx, f.john, "note-5")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
	_, err = f.notes.PendingApprovals(ctx, f.alex)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}

func TestNoteService_ModerationIsSingleShot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	approved, err := f.notes.Approve(ctx, f.sarah, "note-5")
	require.NoError(t, err)
	assert.Equal(t, model.NoteApproved, approved.Status)

	// 重复审核是空操作
	again, err := f.notes.Reject(ctx, f.sarah, "note-5")
	require.NoError(t, err)
	assert.Equal(t, model.NoteApproved, again.Status)

	rejected, err := f.notes.Approve(ctx, f.sarah, "note-6")
	require.NoError(t, err)
	assert.Equal(t, model.NoteRejected, rejected.Status)

	queue, err := f.notes.PendingApprovals(ctx, f.sarah)
	require.NoError(t, err)
	assert.Empty(t, queue)

	forEmily, err := f.notes.ListForChapter(ctx, f.emily, "ch-1")
	require.NoError(t, err)
	assert.Contains(t, noteTitles(forEmily), "DevOps Integration in SDLC")

	_, err = f.notes.Approve(ctx, f.sarah, "note-404")
	assert.True(t, util.IsNotFound(err))
}

func TestNoteService_Attachments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.notes.Storage.Provider.(*LocalStorageProvider).Root

	note, err := f.notes.Create(ctx, f.alex, "ch-1", NoteInput{Title: "Slides", Content: "See file."},
		&Attachment{Filename: "../../etc/My Notes!.txt", Reader: strings.NewReader("plain text notes")})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(note.FileURL, "/uploads/notes/ch-1/"))
	assert.True(t, strings.HasSuffix(note.FileURL, "-MyNotes.txt"))
	data, err := os.ReadFile(filepath.Join(root, strings.TrimPrefix(note.FileURL, "/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, "plain text notes", string(data))

	var posterCalls int
	f.notes.poster = func(videoPath, posterPath, offset string) error {
		posterCalls++
		assert.Equal(t, posterOffset, offset)
		return os.WriteFile(posterPath, []byte("jpeg"), 0644)
	}
	video, err := f.notes.Create(ctx, f.sarah, "ch-1", NoteInput{Title: "Lecture", Content: "Recording."},
		&Attachment{Filename: "lecture.mp4", Reader: bytes.NewReader(append(mp4Header, make([]byte, 64)...))})
	require.NoError(t, err)
	assert.Equal(t, 1, posterCalls)
	assert.True(t, strings.HasSuffix(video.PosterURL, "-poster.jpg"))

	_, err = f.notes.Create(ctx, f.alex, "ch-1", NoteInput{Title: "Bin", Content: "Binary."},
		&Attachment{Filename: "a.bin", Reader: bytes.NewReader([]byte{0x00, 0x01, 0x02, 0xff, 0xfe})})
	var ve *util.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "file", ve.Field)
}

func TestNoteService_UploadBusyGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	started := make(chan struct{})
	gate := make(chan struct{})
	f.notes.poster = func(_, posterPath, _ string) error {
		close(started)
		<-gate
		return os.WriteFile(posterPath, []byte("jpeg"), 0644)
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.notes.Create(ctx, f.sarah, "ch-1", NoteInput{Title: "Long", Content: "Upload."},
			&Attachment{Filename: "v.mp4", Reader: bytes.NewReader(mp4Header)})
		done <- err
	}()
	<-started

	_, err := f.notes.Create(ctx, f.sarah, "ch-1", NoteInput{Title: "Dup", Content: "Again."}, nil)
	assert.ErrorIs(t, err, util.ErrBusy)

	// 其他章节不受影响
	_, err = f.notes.Create(ctx, f.sarah, "ch-2", NoteInput{Title: "Other", Content: "Chapter."}, nil)
	assert.NoError(t, err)

	close(gate)
	require.NoError(t, <-done)
}

func noteTitles(notes []model.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Title
	}
	return out
}
