package repository

import (
	"context"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/util"
	"errors"
	"time"

	"gorm.io/gorm"
)

// GormRepository database.driver=mysql 时使用的持久化后端
type GormRepository struct {
	DB *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{DB: db}
}

var (
	_ UserRepository    = (*GormRepository)(nil)
	_ ContentRepository = (*GormRepository)(nil)
)

func notFound(err error, entity, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.NewNotFound(entity, id)
	}
	return err
}

func byPosition(tx *gorm.DB) *gorm.DB {
	return tx.Order("position ASC")
}

func (r *GormRepository) classroomQuery(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).
		Preload("Subjects", byPosition).
		Preload("Subjects.Chapters", byPosition).
		Preload("SubjectTeachers")
}

// fillNoteCounts 统计已发布笔记数，一次分组查询覆盖所有章节
func (r *GormRepository) fillNoteCounts(ctx context.Context, chapters ...*model.Chapter) error {
	if len(chapters) == 0 {
		return nil
	}
	ids := make([]string, len(chapters))
	for i, ch := range chapters {
		ids[i] = ch.ID
	}

	var rows []struct {
		ChapterID string
		Total     int
	}
	err := r.DB.WithContext(ctx).Model(&model.Note{}).
		Select("chapter_id, COUNT(*) AS total").
		Where("chapter_id IN ? AND visibility = ? AND status = ?", ids, model.Public, model.NoteApproved).
		Group("chapter_id").
		Scan(&rows).Error
	if err != nil {
		return err
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.ChapterID] = row.Total
	}
	for _, ch := range chapters {
		ch.NoteCount = counts[ch.ID]
	}
	return nil
}

func (r *GormRepository) fillClassroomCounts(ctx context.Context, classrooms ...*model.Classroom) error {
	var chapters []*model.Chapter
	for _, c := range classrooms {
		for i := range c.Subjects {
			for j := range c.Subjects[i].Chapters {
				chapters = append(chapters, &c.Subjects[i].Chapters[j])
			}
		}
	}
	return r.fillNoteCounts(ctx, chapters...)
}

func (r *GormRepository) CountClassrooms(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Classroom{}).Count(&count).Error
	return count, err
}

func (r *GormRepository) CreateClassroom(ctx context.Context, classroom *model.Classroom) error {
	if classroom.CreatedAt.IsZero() {
		classroom.CreatedAt = time.Now()
	}
	for i := range classroom.Subjects {
		s := &classroom.Subjects[i]
		s.ClassroomID = classroom.ID
		s.Position = i + 1
		for j := range s.Chapters {
			s.Chapters[j].SubjectID = s.ID
			s.Chapters[j].Order = j + 1
		}
	}

	err := r.DB.WithContext(ctx).Create(classroom).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &util.ValidationError{Field: "code", Reason: util.DuplicateValue, Err: err}
	}
	return err
}

func (r *GormRepository) FindClassroom(ctx context.Context, id string) (*model.Classroom, error) {
	var classroom model.Classroom
	if err := r.classroomQuery(ctx).First(&classroom, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "classroom", id)
	}
	if err := r.fillClassroomCounts(ctx, &classroom); err != nil {
		return nil, err
	}
	return &classroom, nil
}

func (r *GormRepository) FindClassroomByCode(ctx context.Context, code string) (*model.Classroom, error) {
	var classroom model.Classroom
	if err := r.classroomQuery(ctx).Where("UPPER(code) = UPPER(?)", code).First(&classroom).Error; err != nil {
		return nil, notFound(err, "classroom", code)
	}
	if err := r.fillClassroomCounts(ctx, &classroom); err != nil {
		return nil, err
	}
	return &classroom, nil
}

func (r *GormRepository) listClassrooms(ctx context.Context, query string, args ...interface{}) ([]model.Classroom, error) {
	var classrooms []model.Classroom
	err := r.classroomQuery(ctx).Where(query, args...).Order("created_at ASC").Find(&classrooms).Error
	if err != nil {
		return nil, err
	}
	ptrs := make([]*model.Classroom, len(classrooms))
	for i := range classrooms {
		ptrs[i] = &classrooms[i]
	}
	if err := r.fillClassroomCounts(ctx, ptrs...); err != nil {
		return nil, err
	}
	return classrooms, nil
}

func (r *GormRepository) ListClassroomsByTeacher(ctx context.Context, teacherID string) ([]model.Classroom, error) {
	return r.listClassrooms(ctx, "teacher_id = ?", teacherID)
}

func (r *GormRepository) ListClassroomsByIDs(ctx context.Context, ids []string) ([]model.Classroom, error) {
	if len(ids) == 0 {
		return []model.Classroom{}, nil
	}
	return r.listClassrooms(ctx, "id IN ?", ids)
}

func (r *GormRepository) AddSubject(ctx context.Context, subject *model.Subject) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Classroom{}).Where("id = ?", subject.ClassroomID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return util.NewNotFound("classroom", subject.ClassroomID)
		}
		if err := tx.Model(&model.Subject{}).Where("classroom_id = ?", subject.ClassroomID).Count(&count).Error; err != nil {
			return err
		}
		subject.Position = int(count) + 1
		for j := range subject.Chapters {
			subject.Chapters[j].SubjectID = subject.ID
			subject.Chapters[j].Order = j + 1
		}
		return tx.Create(subject).Error
	})
}

func (r *GormRepository) FindSubject(ctx context.Context, id string) (*model.Subject, error) {
	var subject model.Subject
	err := r.DB.WithContext(ctx).Preload("Chapters", byPosition).First(&subject, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "subject", id)
	}
	chapters := make([]*model.Chapter, len(subject.Chapters))
	for i := range subject.Chapters {
		chapters[i] = &subject.Chapters[i]
	}
	if err := r.fillNoteCounts(ctx, chapters...); err != nil {
		return nil, err
	}
	return &subject, nil
}

func (r *GormRepository) AddChapter(ctx context.Context, chapter *model.Chapter) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Subject{}).Where("id = ?", chapter.SubjectID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return util.NewNotFound("subject", chapter.SubjectID)
		}
		if err := tx.Model(&model.Chapter{}).Where("subject_id = ?", chapter.SubjectID).Count(&count).Error; err != nil {
			return err
		}
		chapter.Order = int(count) + 1
		chapter.NoteCount = 0
		return tx.Create(chapter).Error
	})
}

func (r *GormRepository) FindChapter(ctx context.Context, id string) (*model.Chapter, error) {
	var chapter model.Chapter
	if err := r.DB.WithContext(ctx).First(&chapter, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "chapter", id)
	}
	if err := r.fillNoteCounts(ctx, &chapter); err != nil {
		return nil, err
	}
	return &chapter, nil
}

func (r *GormRepository) ReplaceSubjectAccess(ctx context.Context, access *model.SubjectTeacherAccess) error {
	if access.GrantedAt.IsZero() {
		access.GrantedAt = time.Now()
	}
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subject model.Subject
		if err := tx.First(&subject, "id = ?", access.SubjectID).Error; err != nil {
			return notFound(err, "subject", access.SubjectID)
		}
		access.ClassroomID = subject.ClassroomID

		if err := tx.Where("subject_id = ?", access.SubjectID).Delete(&model.SubjectTeacherAccess{}).Error; err != nil {
			return err
		}
		if err := tx.Create(access).Error; err != nil {
			return err
		}
		return tx.Model(&model.Subject{}).Where("id = ?", subject.ID).Updates(map[string]interface{}{
			"assigned_teacher_id":   access.TeacherID,
			"assigned_teacher_name": access.TeacherName,
		}).Error
	})
}

func (r *GormRepository) RevokeSubjectAccess(ctx context.Context, subjectID string) (bool, error) {
	removed := false
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Subject{}).Where("id = ?", subjectID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return util.NewNotFound("subject", subjectID)
		}

		res := tx.Where("subject_id = ?", subjectID).Delete(&model.SubjectTeacherAccess{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected > 0

		return tx.Model(&model.Subject{}).Where("id = ?", subjectID).Updates(map[string]interface{}{
			"assigned_teacher_id":   "",
			"assigned_teacher_name": "",
		}).Error
	})
	return removed, err
}

func (r *GormRepository) ListAccessByTeacher(ctx context.Context, teacherID string) ([]model.SubjectTeacherAccess, error) {
	var grants []model.SubjectTeacherAccess
	err := r.DB.WithContext(ctx).Where("teacher_id = ?", teacherID).Order("granted_at ASC").Find(&grants).Error
	return grants, err
}

func (r *GormRepository) Enroll(ctx context.Context, classroomID, studentID string, at time.Time) (bool, error) {
	joined := false
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Classroom{}).Where("id = ?", classroomID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return util.NewNotFound("classroom", classroomID)
		}
		if err := tx.Model(&model.Enrollment{}).
			Where("classroom_id = ? AND student_id = ?", classroomID, studentID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		enrollment := model.Enrollment{ClassroomID: classroomID, StudentID: studentID, JoinedAt: at}
		if err := tx.Create(&enrollment).Error; err != nil {
			return err
		}
		joined = true
		return tx.Model(&model.Classroom{}).Where("id = ?", classroomID).
			Update("student_count", gorm.Expr("student_count + ?", 1)).Error
	})
	return joined, err
}

func (r *GormRepository) IsEnrolled(ctx context.Context, classroomID, studentID string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("classroom_id = ? AND student_id = ?", classroomID, studentID).
		Count(&count).Error
	return count > 0, err
}

func (r *GormRepository) ListEnrollments(ctx context.Context, filter EnrollmentFilter) ([]model.Enrollment, error) {
	query := r.DB.WithContext(ctx).Model(&model.Enrollment{})
	if filter.ClassroomID != "" {
		query = query.Where("classroom_id = ?", filter.ClassroomID)
	}
	if filter.StudentID != "" {
		query = query.Where("student_id = ?", filter.StudentID)
	}
	var enrollments []model.Enrollment
	err := query.Order("joined_at ASC").Find(&enrollments).Error
	return enrollments, err
}

func (r *GormRepository) CreateNote(ctx context.Context, note *model.Note) error {
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}
	return r.DB.WithContext(ctx).Create(note).Error
}

func (r *GormRepository) FindNote(ctx context.Context, id string) (*model.Note, error) {
	var note model.Note
	if err := r.DB.WithContext(ctx).First(&note, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "note", id)
	}
	return &note, nil
}

func (r *GormRepository) UpdateNoteStatus(ctx context.Context, id string, from, to model.NoteStatus) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.Note{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	// 区分笔记不存在和状态不符
	if _, err := r.FindNote(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *GormRepository) ListNotes(ctx context.Context, filter NoteFilter) ([]model.Note, error) {
	query := r.DB.WithContext(ctx).Model(&model.Note{})
	if filter.ChapterID != "" {
		query = query.Where("chapter_id = ?", filter.ChapterID)
	}
	if filter.ChapterIDs != nil {
		if len(filter.ChapterIDs) == 0 {
			return []model.Note{}, nil
		}
		query = query.Where("chapter_id IN ?", filter.ChapterIDs)
	}
	if filter.AuthorID != "" {
		query = query.Where("author_id = ?", filter.AuthorID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var notes []model.Note
	err := query.Order("created_at DESC").Find(&notes).Error
	return notes, err
}

func (r *GormRepository) CreateQuestion(ctx context.Context, question *model.Question) error {
	if question.CreatedAt.IsZero() {
		question.CreatedAt = time.Now()
	}
	return r.DB.WithContext(ctx).Create(question).Error
}

func (r *GormRepository) FindQuestion(ctx context.Context, id string) (*model.Question, error) {
	var question model.Question
	if err := r.DB.WithContext(ctx).First(&question, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "question", id)
	}
	return &question, nil
}

func (r *GormRepository) AnswerQuestion(ctx context.Context, id, answer, answeredBy string, at time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.Question{}).
		Where("id = ? AND (answer IS NULL OR answer = '')", id).
		Updates(map[string]interface{}{
			"answer":      answer,
			"answered_by": answeredBy,
			"answered_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	if _, err := r.FindQuestion(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *GormRepository) ListQuestions(ctx context.Context, filter QuestionFilter) ([]model.Question, error) {
	query := r.DB.WithContext(ctx).Model(&model.Question{})
	if filter.ChapterID != "" {
		query = query.Where("chapter_id = ?", filter.ChapterID)
	}
	if filter.ChapterIDs != nil {
		if len(filter.ChapterIDs) == 0 {
			return []model.Question{}, nil
		}
		query = query.Where("chapter_id IN ?", filter.ChapterIDs)
	}
	if filter.AuthorID != "" {
		query = query.Where("author_id = ?", filter.AuthorID)
	}
	if filter.Unanswered {
		query = query.Where("(answer IS NULL OR answer = '')")
	}

	var questions []model.Question
	err := query.Order("created_at DESC").Find(&questions).Error
	return questions, err
}

func (r *GormRepository) CreateAnnouncement(ctx context.Context, announcement *model.Announcement) error {
	if announcement.CreatedAt.IsZero() {
		announcement.CreatedAt = time.Now()
	}
	return r.DB.WithContext(ctx).Create(announcement).Error
}

func (r *GormRepository) ListAnnouncements(ctx context.Context, classroomID string) ([]model.Announcement, error) {
	var announcements []model.Announcement
	err := r.DB.WithContext(ctx).
		Where("classroom_id = ?", classroomID).
		Order("created_at DESC").
		Find(&announcements).Error
	return announcements, err
}

func (r *GormRepository) CreatePYQ(ctx context.Context, pyq *model.PYQ) error {
	return r.DB.WithContext(ctx).Create(pyq).Error
}

func (r *GormRepository) ListPYQs(ctx context.Context, chapterID string) ([]model.PYQ, error) {
	var pyqs []model.PYQ
	err := r.DB.WithContext(ctx).Where("chapter_id = ?", chapterID).Order("id ASC").Find(&pyqs).Error
	return pyqs, err
}

func (r *GormRepository) CreateRecommendation(ctx context.Context, rec *model.Recommendation) error {
	return r.DB.WithContext(ctx).Create(rec).Error
}

func (r *GormRepository) ListRecommendations(ctx context.Context) ([]model.Recommendation, error) {
	var recs []model.Recommendation
	err := r.DB.WithContext(ctx).Order("id ASC").Find(&recs).Error
	return recs, err
}
