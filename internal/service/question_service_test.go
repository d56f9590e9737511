package service

import (
	"context"
	"testing"

	"edunexus_backend/internal/model"
	"edunexus_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionService_PrivateAudience(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.questions.Ask(ctx, f.alex, "ch-1", "  Will this be on the quiz? ", model.Private)
	require.NoError(t, err)
	assert.Equal(t, "Will this be on the quiz?", q.Text)

	visible := func(u *model.User) []string {
		qs, err := f.questions.ListForChapter(ctx, u, "ch-1")
		require.NoError(t, err)
		ids := make([]string, len(qs))
		for i, q := range qs {
			ids[i] = q.ID
		}
		return ids
	}
	assert.Contains(t, visible(f.alex), q.ID)
	assert.Contains(t, visible(f.sarah), q.ID)
	assert.NotContains(t, visible(f.emily), q.ID)
	assert.NotContains(t, visible(f.emily), "q-3")

	_, err = f.questions.Ask(ctx, f.sarah, "ch-1", "Teachers do not ask", model.Public)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
	_, err = f.questions.Ask(ctx, f.alex, "ch-1", "   ", model.Public)
	assert.True(t, util.IsValidation(err))
}

func TestQuestionService_AnswerOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	queue, err := f.questions.Unanswered(ctx, f.sarah)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "q-4", queue[0].ID)

	blank, err := f.questions.Answer(ctx, f.sarah, "q-4", "   ")
	require.NoError(t, err)
	assert.False(t, blank.Answered())

	answered, err := f.questions.Answer(ctx, f.sarah, "q-4", "Use change requests.")
	require.NoError(t, err)
	assert.Equal(t, "Use change requests.", answered.Answer)
	assert.Equal(t, "Dr. Sarah Miller", answered.AnsweredBy)
	require.NotNil(t, answered.AnsweredAt)

	second, err := f.questions.Answer(ctx, f.sarah, "q-4", "Something else.")
	require.NoError(t, err)
	assert.Equal(t, "Use change requests.", second.Answer)

	queue, err = f.questions.Unanswered(ctx, f.sarah)
	require.NoError(t, err)
	assert.Empty(t, queue)

	_, err = f.questions.Answer(ctx, f.john, "q-1", "Not my class.")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
	_, err = f.questions.Unanswered(ctx, f.alex)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	community, err := f.questions.Community(ctx, f.emily, "ch-1")
	require.NoError(t, err)
	ids := []string{}
	for _, q := range community {
		ids = append(ids, q.ID)
	}
	assert.ElementsMatch(t, []string{"q-1", "q-2", "q-4"}, ids)
}

func TestAnnouncementService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewAnnouncementService(f.repo, f.access)

	a, err := svc.Post(ctx, f.sarah, "class-1", "Midterm", "Next week.")
	require.NoError(t, err)

	list, err := svc.List(ctx, f.emily, "class-1")
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, a.ID, list[0].ID)

	_, err = svc.Post(ctx, f.sarah, "class-1", "", "body")
	assert.True(t, util.IsValidation(err))
	_, err = svc.Post(ctx, f.john, "class-1", "Hi", "body")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
	_, err = svc.List(ctx, f.mike, "class-2")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}
