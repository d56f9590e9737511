package navigation

import (
	"encoding/json"
	"testing"

	"edunexus_backend/internal/model"
	"edunexus_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func studentOnlyAsk(role model.UserRole, s Section) bool {
	return s != SectionAsk || role == model.Student
}

func deepMachine(t *testing.T, role model.UserRole) *Machine {
	t.Helper()
	m := New(role, studentOnlyAsk)
	require.NoError(t, m.SelectClassroom("class-1"))
	require.NoError(t, m.SelectSubject("subj-1"))
	require.NoError(t, m.SelectChapter("ch-1"))
	return m
}

func TestForwardTransitions(t *testing.T) {
	m := New(model.Student, studentOnlyAsk)
	assert.Equal(t, Dashboard, m.Level())

	require.NoError(t, m.SelectClassroom("class-1"))
	assert.Equal(t, Classroom, m.Level())
	require.NoError(t, m.SelectSubject("subj-1"))
	assert.Equal(t, Subject, m.Level())
	require.NoError(t, m.SelectChapter("ch-1"))
	assert.Equal(t, Chapter, m.Level())
	assert.Equal(t, SectionNotes, m.Snapshot().Section)

	assert.Equal(t, []Crumb{
		{Level: Dashboard},
		{Level: Classroom, ID: "class-1"},
		{Level: Subject, ID: "subj-1"},
		{Level: Chapter, ID: "ch-1"},
	}, m.Breadcrumb())
}

func TestInvalidTransitionsLeaveStateUnchanged(t *testing.T) {
	m := New(model.Student, nil)

	err := m.SelectSubject("subj-1")
	assert.True(t, util.IsStateError(err))
	err = m.SelectChapter("ch-1")
	assert.True(t, util.IsStateError(err))
	_, err = m.SelectSection(SectionAsk)
	assert.True(t, util.IsStateError(err))
	assert.Equal(t, Snapshot{Role: model.Student, Level: Dashboard}, m.Snapshot())

	require.NoError(t, m.SelectClassroom("class-1"))
	err = m.SelectChapter("ch-1")
	assert.True(t, util.IsStateError(err))
	assert.Equal(t, Classroom, m.Level())

	assert.True(t, util.IsValidation(m.SelectClassroom("")))
	assert.Equal(t, "class-1", m.Snapshot().ClassroomID)
}

func TestSelectingClearsDeeperLevels(t *testing.T) {
	m := deepMachine(t, model.Student)
	_, err := m.SelectSection(SectionAsk)
	require.NoError(t, err)

	require.NoError(t, m.SelectSubject("subj-2"))
	snap := m.Snapshot()
	assert.Equal(t, Subject, snap.Level)
	assert.Empty(t, snap.ChapterID)
	assert.Empty(t, snap.Section)

	m = deepMachine(t, model.Student)
	require.NoError(t, m.SelectClassroom("class-2"))
	snap = m.Snapshot()
	assert.Equal(t, Snapshot{Role: model.Student, Level: Classroom, ClassroomID: "class-2"}, snap)

	m = deepMachine(t, model.Student)
	_, err = m.SelectSection(SectionCommunity)
	require.NoError(t, err)
	require.NoError(t, m.SelectChapter("ch-2"))
	assert.Equal(t, SectionNotes, m.Snapshot().Section)
}

func TestBackPopsExactlyOneLevel(t *testing.T) {
	m := deepMachine(t, model.Teacher)
	_, err := m.SelectSection(SectionUpload)
	require.NoError(t, err)

	assert.Equal(t, Subject, m.Back())
	snap := m.Snapshot()
	assert.Equal(t, "subj-1", snap.SubjectID)
	assert.Empty(t, snap.ChapterID)
	assert.Empty(t, snap.Section)

	assert.Equal(t, Classroom, m.Back())
	assert.Equal(t, "class-1", m.Snapshot().ClassroomID)
	assert.Empty(t, m.Snapshot().SubjectID)

	assert.Equal(t, Dashboard, m.Back())
	assert.Equal(t, Dashboard, m.Back())
	assert.Equal(t, []Crumb{{Level: Dashboard}}, m.Breadcrumb())
}

func TestSelectSection_Fallback(t *testing.T) {
	tests := []struct {
		name string
		role model.UserRole
		in   Section
		want Section
	}{
		{"student-ask", model.Student, SectionAsk, SectionAsk},
		{"teacher-ask-not-permitted", model.Teacher, SectionAsk, SectionNotes},
		{"unknown", model.Student, Section("grades"), SectionNotes},
		{"teacher-community", model.Teacher, SectionCommunity, SectionCommunity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := deepMachine(t, tt.role)
			got, err := m.SelectSection(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, m.Snapshot().Section)
		})
	}
}

func TestResetAndParse(t *testing.T) {
	m := deepMachine(t, model.Student)
	m.Reset()
	assert.Equal(t, Snapshot{Role: model.Student, Level: Dashboard}, m.Snapshot())

	s, ok := ParseSection(" Notebook ")
	assert.True(t, ok)
	assert.Equal(t, SectionNotebook, s)
	_, ok = ParseSection("grades")
	assert.False(t, ok)

	raw, err := json.Marshal(m.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"level":"dashboard"`)
}
