package service

import (
	"bytes"
	"context"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/repository"
	"edunexus_backend/internal/util"

	"github.com/xuri/excelize/v2"
)

const (
	sheetNotes     = "Notes"
	sheetQuestions = "Questions"
	sheetStudents  = "Students"
)

// ExportService 导出班级笔记、提问和名单为 xlsx
type ExportService struct {
	Content    repository.ContentRepository
	Classrooms *ClassroomService
}

func NewExportService(content repository.ContentRepository, classrooms *ClassroomService) *ExportService {
	return &ExportService{Content: content, Classrooms: classrooms}
}

// ClassroomWorkbook 只有班级所有者可以导出，返回文件名和内容
func (s *ExportService) ClassroomWorkbook(ctx context.Context, owner *model.User, classroomID string) (string, *bytes.Buffer, error) {
	classroom, err := s.Classrooms.Access.OwnedClassroom(ctx, owner, classroomID)
	if err != nil {
		return "", nil, err
	}
	students, err := s.Classrooms.Students(ctx, owner, classroomID)
	if err != nil {
		return "", nil, err
	}

	chapterIDs := []string{}
	locations := map[string][2]string{}
	for _, subj := range classroom.Subjects {
		for _, ch := range subj.Chapters {
			chapterIDs = append(chapterIDs, ch.ID)
			locations[ch.ID] = [2]string{subj.Name, ch.Name}
		}
	}
	notes, err := s.Content.ListNotes(ctx, repository.NoteFilter{ChapterIDs: chapterIDs})
	if err != nil {
		return "", nil, err
	}
	questions, err := s.Content.ListQuestions(ctx, repository.QuestionFilter{ChapterIDs: chapterIDs})
	if err != nil {
		return "", nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetNotes); err != nil {
		return "", nil, err
	}
	rows := [][]interface{}{{"Subject", "Chapter", "Title", "Author", "Role", "Visibility", "Status", "Created"}}
	for _, n := range notes {
		loc := locations[n.ChapterID]
		rows = append(rows, []interface{}{loc[0], loc[1], n.Title, n.AuthorName, string(n.AuthorRole),
			string(n.Visibility), string(n.Status), n.CreatedAt.Format(util.TimeFormat)})
	}
	if err := writeRows(f, sheetNotes, rows); err != nil {
		return "", nil, err
	}

	if _, err := f.NewSheet(sheetQuestions); err != nil {
		return "", nil, err
	}
	rows = [][]interface{}{{"Subject", "Chapter", "Question", "Asked By", "Visibility", "Answer", "Answered By", "Created"}}
	for _, q := range questions {
		loc := locations[q.ChapterID]
		rows = append(rows, []interface{}{loc[0], loc[1], q.Text, q.AuthorName, string(q.Visibility),
			q.Answer, q.AnsweredBy, q.CreatedAt.Format(util.TimeFormat)})
	}
	if err := writeRows(f, sheetQuestions, rows); err != nil {
		return "", nil, err
	}

	if _, err := f.NewSheet(sheetStudents); err != nil {
		return "", nil, err
	}
	rows = [][]interface{}{{"Name", "Email"}}
	for _, u := range students {
		rows = append(rows, []interface{}{u.Name, u.Email})
	}
	if err := writeRows(f, sheetStudents, rows); err != nil {
		return "", nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", nil, err
	}
	return classroom.Code + "-export.xlsx", buf, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
