package visibility

import (
	"testing"
	"time"

	"edunexus_backend/internal/model"
	"edunexus_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alex   = &model.User{ID: "student-1", Name: "Alex Johnson", Role: model.Student}
	emily  = &model.User{ID: "student-2", Name: "Emily Chen", Role: model.Student}
	sarah  = &model.User{ID: "teacher-1", Name: "Dr. Sarah Miller", Role: model.Teacher}
	ch1    = &model.Chapter{ID: "ch-1", Name: "Unit 1"}
	ch2    = &model.Chapter{ID: "ch-2", Name: "Unit 2"}
	stamp  = time.Date(2024, 1, 28, 9, 0, 0, 0, time.UTC)
	titles = func(notes []model.Note) []string {
		out := make([]string, len(notes))
		for i, n := range notes {
			out[i] = n.Title
		}
		return out
	}
)

func mustNote(t *testing.T, author *model.User, chapter *model.Chapter, title string, vis model.Visibility) model.Note {
	t.Helper()
	n, err := NewNote(author, chapter, title, title+" body", vis, stamp)
	require.NoError(t, err)
	return n
}

func TestNewNote_CreationRule(t *testing.T) {
	tests := []struct {
		name       string
		author     *model.User
		vis        model.Visibility
		wantVis    model.Visibility
		wantStatus model.NoteStatus
	}{
		{"teacher-public", sarah, model.Public, model.Public, model.NoteApproved},
		{"teacher-private-forced-public", sarah, model.Private, model.Public, model.NoteApproved},
		{"student-public-pending", alex, model.Public, model.Public, model.NotePending},
		{"student-private-no-approval", alex, model.Private, model.Private, model.NoteApproved},
		{"student-default-public", alex, "", model.Public, model.NotePending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := mustNote(t, tt.author, ch1, "X", tt.vis)
			assert.Equal(t, tt.wantVis, n.Visibility)
			assert.Equal(t, tt.wantStatus, n.Status)
			assert.Equal(t, tt.author.Role, n.AuthorRole)
			assert.Equal(t, "Unit 1", n.ChapterName)
			assert.NotEmpty(t, n.ID)
		})
	}
}

func TestNewNote_Validation(t *testing.T) {
	_, err := NewNote(alex, ch1, "  ", "body", model.Public, stamp)
	var ve *util.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "title", ve.Field)
	assert.Equal(t, util.EmptyRequiredField, ve.Reason)

	_, err = NewNote(alex, ch1, "t", "", model.Public, stamp)
	assert.True(t, util.IsValidation(err))

	_, err = NewNote(alex, ch1, "t", "c", "friends", stamp)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, util.InvalidValue, ve.Reason)
}

func TestVisibleNotes_NeverLeaksUnpublished(t *testing.T) {
	published := mustNote(t, sarah, ch1, "published", model.Public)
	pending := mustNote(t, alex, ch1, "pending", model.Public)
	private := mustNote(t, alex, ch1, "private", model.Private)
	rejected := mustNote(t, alex, ch1, "rejected", model.Public)
	rejected, err := Reject(rejected)
	require.NoError(t, err)
	other := mustNote(t, sarah, ch2, "other chapter", model.Public)

	notes := []model.Note{published, pending, private, rejected, other}

	assert.Equal(t, []string{"published"}, titles(VisibleNotes(notes, "ch-1", ViewerOf(emily))))
	assert.Equal(t, []string{"published", "pending", "private", "rejected"}, titles(VisibleNotes(notes, "ch-1", ViewerOf(alex))))
	assert.Len(t, VisibleNotes(notes, "ch-1", ViewerOf(sarah)), 4)

	for _, n := range VisibleNotes(notes, "ch-1", ViewerOf(emily)) {
		assert.True(t, n.Published() || n.AuthorID == emily.ID)
	}
}

func TestVisibleQuestions_PrivateAudience(t *testing.T) {
	q, err := NewQuestion(alex, ch1, "Is this on the quiz?", model.Private, stamp)
	require.NoError(t, err)
	pub, err := NewQuestion(emily, ch1, "What is Scrum?", model.Public, stamp)
	require.NoError(t, err)
	questions := []model.Question{q, pub}

	assert.Len(t, VisibleQuestions(questions, "ch-1", ViewerOf(alex)), 2)
	assert.Len(t, VisibleQuestions(questions, "ch-1", ViewerOf(sarah)), 2)

	forEmily := VisibleQuestions(questions, "ch-1", ViewerOf(emily))
	require.Len(t, forEmily, 1)
	assert.Equal(t, pub.ID, forEmily[0].ID)

	assert.Empty(t, VisibleQuestions(questions, "ch-2", ViewerOf(sarah)))
}

func TestApproveReject_SingleShot(t *testing.T) {
	pending := mustNote(t, alex, ch1, "X", model.Public)

	approved, err := Approve(pending)
	require.NoError(t, err)
	assert.Equal(t, model.NoteApproved, approved.Status)
	assert.Equal(t, model.NotePending, pending.Status, "input is not modified")

	again, err := Approve(approved)
	assert.True(t, util.IsStateError(err))
	assert.Equal(t, approved, again)

	back, err := Reject(approved)
	assert.True(t, util.IsStateError(err))
	assert.Equal(t, model.NoteApproved, back.Status)

	rejected, err := Reject(pending)
	require.NoError(t, err)
	_, err = Approve(rejected)
	assert.True(t, util.IsStateError(err))
}

func TestAnswer_OnceAndNonEmpty(t *testing.T) {
	q, err := NewQuestion(alex, ch1, "Why waterfall?", model.Public, stamp)
	require.NoError(t, err)

	same, err := Answer(q, "   ", "Dr. Sarah Miller", stamp)
	assert.True(t, util.IsValidation(err))
	assert.False(t, same.Answered())
	assert.Nil(t, same.AnsweredAt)

	answered, err := Answer(q, "Fixed scope.", "Dr. Sarah Miller", stamp)
	require.NoError(t, err)
	assert.Equal(t, "Fixed scope.", answered.Answer)
	assert.Equal(t, "Dr. Sarah Miller", answered.AnsweredBy)
	require.NotNil(t, answered.AnsweredAt)

	second, err := Answer(answered, "Changed my mind.", "Prof. John Smith", stamp.Add(time.Hour))
	assert.True(t, util.IsStateError(err))
	assert.Equal(t, "Fixed scope.", second.Answer)
	assert.Equal(t, stamp, *second.AnsweredAt)
}

func TestQueuesAndScopes(t *testing.T) {
	published := mustNote(t, sarah, ch1, "published", model.Public)
	pending := mustNote(t, alex, ch1, "pending", model.Public)
	private := mustNote(t, alex, ch1, "private", model.Private)
	notes := []model.Note{published, pending, private}

	assert.Equal(t, []string{"pending"}, titles(PendingApprovals(notes)))
	assert.Equal(t, []string{"published"}, titles(ApprovedNotes(notes, "ch-1")))
	assert.Equal(t, []string{"pending", "private"}, titles(AuthoredBy(notes, alex.ID)))

	open, _ := NewQuestion(alex, ch1, "open", model.Public, stamp)
	done, _ := NewQuestion(alex, ch1, "done", model.Public, stamp)
	done, _ = Answer(done, "yes", "Dr. Sarah Miller", stamp)
	secret, _ := NewQuestion(alex, ch1, "secret", model.Private, stamp)
	secret, _ = Answer(secret, "ok", "Dr. Sarah Miller", stamp)
	questions := []model.Question{open, done, secret}

	qa := PublicAnsweredQA(questions, "ch-1")
	require.Len(t, qa, 1)
	assert.Equal(t, "done", qa[0].Text)

	unanswered := UnansweredQuestions(questions)
	require.Len(t, unanswered, 1)
	assert.Equal(t, "open", unanswered[0].Text)
}

// 场景 A-E 在纯函数层面的对应
func TestScenarios(t *testing.T) {
	notes := []model.Note{}

	// A: 学生公开笔记进入待审核，其他学生不可见
	x := mustNote(t, alex, ch1, "X", model.Public)
	notes = append(notes, x)
	assert.Equal(t, []string{"X"}, titles(PendingApprovals(notes)))
	assert.Empty(t, VisibleNotes(notes, "ch-1", ViewerOf(emily)))

	// B: 审核通过后可见且离开队列
	approved, err := Approve(x)
	require.NoError(t, err)
	notes[0] = approved
	assert.Equal(t, []string{"X"}, titles(VisibleNotes(notes, "ch-1", ViewerOf(emily))))
	assert.Empty(t, PendingApprovals(notes))

	// C: 教师笔记无需审核
	notes = append(notes, mustNote(t, sarah, ch1, "Y", model.Public))
	assert.Contains(t, titles(VisibleNotes(notes, "ch-1", ViewerOf(emily))), "Y")
	assert.Empty(t, PendingApprovals(notes))

	// D: 私有提问
	q, err := NewQuestion(alex, ch1, "private q", model.Private, stamp)
	require.NoError(t, err)
	qs := []model.Question{q}
	assert.Len(t, VisibleQuestions(qs, "ch-1", ViewerOf(alex)), 1)
	assert.Len(t, VisibleQuestions(qs, "ch-1", ViewerOf(sarah)), 1)
	assert.Empty(t, VisibleQuestions(qs, "ch-1", ViewerOf(emily)))

	// E: 回答只生效一次
	a1, err := Answer(q, "answer", sarah.Name, stamp)
	require.NoError(t, err)
	a2, err := Answer(a1, "again", sarah.Name, stamp.Add(time.Minute))
	assert.True(t, util.IsStateError(err))
	assert.Equal(t, a1, a2)
}
