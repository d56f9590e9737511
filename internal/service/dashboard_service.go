package service

import (
	"context"
	"edunexus_backend/internal/composer"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/navigation"
)

type DashboardService struct {
	Classrooms *ClassroomService
	Notes      *NoteService
	Questions  *QuestionService
}

func NewDashboardService(classrooms *ClassroomService, notes *NoteService, questions *QuestionService) *DashboardService {
	return &DashboardService{Classrooms: classrooms, Notes: notes, Questions: questions}
}

type TeacherDashboard struct {
	Actions            []composer.Action         `json:"actions"`
	Classrooms         []model.Classroom         `json:"classrooms"`
	AccessedClassrooms []model.AccessedClassroom `json:"accessedClassrooms"`
	PendingApprovals   []model.Note              `json:"pendingApprovals"`
	Unanswered         []model.Question          `json:"unansweredQuestions"`
}

type StudentDashboard struct {
	Actions    []composer.Action `json:"actions"`
	Classrooms []model.Classroom `json:"classrooms"`
	MyNotes    []model.Note      `json:"myNotes"`
}

func (s *DashboardService) Teacher(ctx context.Context, teacher *model.User) (*TeacherDashboard, error) {
	owned, err := s.Classrooms.ListOwned(ctx, teacher)
	if err != nil {
		return nil, err
	}
	accessed, err := s.Classrooms.ListAccessed(ctx, teacher)
	if err != nil {
		return nil, err
	}
	pending, err := s.Notes.PendingApprovals(ctx, teacher)
	if err != nil {
		return nil, err
	}
	unanswered, err := s.Questions.Unanswered(ctx, teacher)
	if err != nil {
		return nil, err
	}
	return &TeacherDashboard{
		Actions:            composer.Compose(navigation.Snapshot{Role: model.Teacher, Level: navigation.Dashboard}).Actions,
		Classrooms:         owned,
		AccessedClassrooms: accessed,
		PendingApprovals:   pending,
		Unanswered:         unanswered,
	}, nil
}

func (s *DashboardService) Student(ctx context.Context, student *model.User) (*StudentDashboard, error) {
	joined, err := s.Classrooms.ListJoined(ctx, student)
	if err != nil {
		return nil, err
	}
	mine, err := s.Notes.Mine(ctx, student)
	if err != nil {
		return nil, err
	}
	return &StudentDashboard{
		Actions:    composer.Compose(navigation.Snapshot{Role: model.Student, Level: navigation.Dashboard}).Actions,
		Classrooms: joined,
		MyNotes:    mine,
	}, nil
}
