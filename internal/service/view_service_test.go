package service

import (
	"context"
	"testing"
	"time"

	"edunexus_backend/internal/assistant"
	"edunexus_backend/internal/composer"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/navigation"
	"edunexus_backend/internal/repository"
	"edunexus_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestChapterViewService_Render(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	notebooks := assistant.NewNotebooks(assistant.New(f.repo, assistant.NewRouter(assistant.NewExtractiveProvider())))
	views := NewChapterViewService(f.repo, f.access, notebooks)

	_, err := notebooks.Ask(ctx, "sid-1", "ch-1", "What does a Scrum Master do?")
	require.NoError(t, err)

	nb, err := views.Render(ctx, "sid-1", f.alex, "ch-1", navigation.SectionNotebook)
	require.NoError(t, err)
	assert.Equal(t, composer.Notebook, nb.Component)
	assert.ElementsMatch(t, []string{"Complete SDLC Overview", "Agile vs Waterfall Comparison", "Scrum Framework Deep Dive"}, noteTitles(nb.Notes))
	assert.Len(t, nb.PYQs, 5)
	assert.Len(t, nb.Recommendations, 4)
	assert.Len(t, nb.Transcript, 2)

	upload, err := views.Render(ctx, "sid-1", f.alex, "ch-1", navigation.SectionUpload)
	require.NoError(t, err)
	assert.Equal(t, composer.StudentUpload, upload.Component)
	assert.ElementsMatch(t, []string{"Scrum Framework Deep Dive", "My SDLC Summary"}, noteTitles(upload.Notes))

	teacherUpload, err := views.Render(ctx, "sid-2", f.sarah, "ch-1", navigation.SectionUpload)
	require.NoError(t, err)
	assert.Equal(t, composer.TeacherUpload, teacherUpload.Component)

	community, err := views.Render(ctx, "sid-2", f.emily, "ch-1", navigation.SectionCommunity)
	require.NoError(t, err)
	require.Len(t, community.Announcements, 3)
	assert.Equal(t, "ann-1", community.Announcements[0].ID)
	assert.Len(t, community.CommunityQA, 2)

	ask, err := views.Render(ctx, "sid-2", f.emily, "ch-1", navigation.SectionAsk)
	require.NoError(t, err)
	assert.Equal(t, composer.Ask, ask.Component)
	assert.Len(t, ask.Questions, 3)

	// 教师没有提问分区，渲染为空视图
	denied, err := views.Render(ctx, "sid-3", f.sarah, "ch-1", navigation.SectionAsk)
	require.NoError(t, err)
	assert.Equal(t, composer.None, denied.Component)
	assert.Empty(t, denied.Questions)
	assert.Len(t, denied.Tabs, 4)

	missing, err := views.Render(ctx, "sid-1", f.alex, "ch-404", navigation.SectionNotes)
	require.NoError(t, err)
	assert.Nil(t, missing.Chapter)
	assert.Equal(t, composer.None, missing.Component)

	_, err = views.Render(ctx, "sid-1", f.mike, "ch-13", navigation.SectionNotes)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}

func TestNavigationService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	nav := NewNavigationService(f.access)

	st := nav.State("s", f.alex)
	assert.Equal(t, navigation.Dashboard, st.State.Level)
	assert.Equal(t, []composer.Action{composer.ActionJoinClassroom, composer.ActionMyNotes}, st.View.Actions)

	_, err := nav.SelectSubject(ctx, "s", f.alex, "subj-1")
	assert.True(t, util.IsStateError(err))

	_, err = nav.SelectClassroom(ctx, "s", f.emily, "class-2")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	_, err = nav.SelectClassroom(ctx, "s", f.alex, "class-1")
	require.NoError(t, err)
	_, err = nav.SelectSubject(ctx, "s", f.alex, "subj-4")
	assert.True(t, util.IsNotFound(err))
	_, err = nav.SelectSubject(ctx, "s", f.alex, "subj-1")
	require.NoError(t, err)
	_, err = nav.SelectChapter(ctx, "s", f.alex, "ch-5")
	assert.True(t, util.IsNotFound(err))

	st, err = nav.SelectChapter(ctx, "s", f.alex, "ch-1")
	require.NoError(t, err)
	assert.Equal(t, navigation.Chapter, st.State.Level)
	assert.Equal(t, composer.NotesList, st.View.Component)
	assert.Len(t, st.Breadcrumb, 4)

	st, err = nav.SelectSection("s", f.alex, "ASK")
	require.NoError(t, err)
	assert.Equal(t, composer.Ask, st.View.Component)

	st = nav.Back("s", f.alex)
	assert.Equal(t, navigation.Subject, st.State.Level)
	assert.Empty(t, st.State.Section)

	// 重新选择班级会清空更深层的选择
	_, err = nav.SelectChapter(ctx, "s", f.alex, "ch-2")
	require.NoError(t, err)
	st, err = nav.SelectClassroom(ctx, "s", f.alex, "class-2")
	require.NoError(t, err)
	assert.Equal(t, navigation.Classroom, st.State.Level)
	assert.Empty(t, st.State.SubjectID)

	// 授权教师只能进入被委派的科目
	_, err = nav.SelectClassroom(ctx, "t", f.sarah, "class-2")
	require.NoError(t, err)
	_, err = nav.SelectSubject(ctx, "t", f.sarah, "subj-4")
	require.NoError(t, err)
	_, err = nav.SelectChapter(ctx, "t", f.sarah, "ch-13")
	require.NoError(t, err)
	st, err = nav.SelectSection("t", f.sarah, "ask")
	require.NoError(t, err)
	assert.Equal(t, navigation.SectionNotes, st.State.Section)

	nav.Drop("s")
	assert.Equal(t, navigation.Dashboard, nav.State("s", f.alex).State.Level)
}

// gatedContent FindSubject 阻塞到 gate 关闭
type gatedContent struct {
	repository.ContentRepository
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedContent) FindSubject(ctx context.Context, id string) (*model.Subject, error) {
	close(g.entered)
	<-g.gate
	return g.ContentRepository.FindSubject(ctx, id)
}

func TestNavigationService_SessionsDoNotBlockEachOther(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	content := &gatedContent{ContentRepository: f.repo, entered: make(chan struct{}), gate: make(chan struct{})}
	nav := NewNavigationService(NewAccessChecker(content))

	_, err := nav.SelectClassroom(ctx, "s", f.alex, "class-1")
	require.NoError(t, err)

	selected := make(chan error, 1)
	go func() {
		_, err := nav.SelectSubject(ctx, "s", f.alex, "subj-1")
		selected <- err
	}()
	<-content.entered

	done := make(chan NavState, 1)
	go func() {
		nav.State("t", f.emily)
		done <- nav.Back("t", f.emily)
	}()
	select {
	case st := <-done:
		assert.Equal(t, navigation.Dashboard, st.State.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("another session waited on a repository lookup")
	}
	assert.Equal(t, 2, nav.Sessions())

	close(content.gate)
	require.NoError(t, <-selected)
	assert.Equal(t, "subj-1", nav.State("s", f.alex).State.SubjectID)

	nav.Drop("s")
	nav.Drop("t")
	assert.Equal(t, 0, nav.Sessions())
}

func TestExportService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	export := NewExportService(f.repo, f.classrooms)

	name, buf, err := export.ClassroomWorkbook(ctx, f.sarah, "class-1")
	require.NoError(t, err)
	assert.Equal(t, "CS2024-export.xlsx", name)

	wb, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer wb.Close()

	notes, err := wb.GetRows(sheetNotes)
	require.NoError(t, err)
	assert.Len(t, notes, 7)
	assert.Equal(t, "Title", notes[0][2])

	questions, err := wb.GetRows(sheetQuestions)
	require.NoError(t, err)
	assert.Len(t, questions, 5)

	students, err := wb.GetRows(sheetStudents)
	require.NoError(t, err)
	assert.Len(t, students, 5)

	_, _, err = export.ClassroomWorkbook(ctx, f.sarah, "class-2")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}

func TestDashboardService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dash := NewDashboardService(f.classrooms, f.notes, f.questions)

	td, err := dash.Teacher(ctx, f.sarah)
	require.NoError(t, err)
	assert.Len(t, td.Classrooms, 1)
	assert.Len(t, td.AccessedClassrooms, 1)
	assert.Len(t, td.PendingApprovals, 1)
	assert.Len(t, td.Unanswered, 1)
	assert.Equal(t, composer.ActionCreateClassroom, td.Actions[0])

	sd, err := dash.Student(ctx, f.alex)
	require.NoError(t, err)
	assert.Len(t, sd.Classrooms, 2)
	assert.Len(t, sd.MyNotes, 2)
}
