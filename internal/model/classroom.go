package model

import (
	"time"
)

// Classroom 班级，由创建它的教师拥有，学生通过邀请码加入
type Classroom struct {
	ID              string                 `gorm:"primaryKey;size:64" json:"id"`
	Name            string                 `gorm:"size:200;not null" json:"name"`
	Code            string                 `gorm:"size:32;uniqueIndex;not null" json:"code"`
	TeacherID       string                 `gorm:"size:64;index;not null" json:"teacherId"`
	TeacherName     string                 `gorm:"size:100" json:"teacherName"`
	StudentCount    int                    `gorm:"default:0" json:"studentCount"`
	Subjects        []Subject              `gorm:"foreignKey:ClassroomID" json:"subjects"`
	SubjectTeachers []SubjectTeacherAccess `gorm:"foreignKey:ClassroomID" json:"subjectTeachers"`
	CreatedAt       time.Time              `json:"createdAt"`
}

func (Classroom) TableName() string {
	return "classrooms"
}

// Subject 班级下的科目，可委派给一名科目教师
type Subject struct {
	ID                  string    `gorm:"primaryKey;size:64" json:"id"`
	Name                string    `gorm:"size:200;not null" json:"name"`
	ClassroomID         string    `gorm:"size:64;index;not null" json:"classroomId"`
	Icon                string    `gorm:"size:16" json:"icon"`
	Position            int       `gorm:"not null;default:0" json:"-"`
	Chapters            []Chapter `gorm:"foreignKey:SubjectID" json:"chapters"`
	AssignedTeacherID   string    `gorm:"size:64" json:"assignedTeacherId,omitempty"`
	AssignedTeacherName string    `gorm:"size:100" json:"assignedTeacherName,omitempty"`
}

func (Subject) TableName() string {
	return "subjects"
}

// Chapter 科目下的章节，Order 在科目内从 1 开始连续编号
type Chapter struct {
	ID        string `gorm:"primaryKey;size:64" json:"id"`
	Name      string `gorm:"size:200;not null" json:"name"`
	SubjectID string `gorm:"size:64;index;not null" json:"subjectId"`
	NoteCount int    `gorm:"-" json:"noteCount"`
	Order     int    `gorm:"column:position;not null" json:"order"`
}

func (Chapter) TableName() string {
	return "chapters"
}

// SubjectTeacherAccess 科目教师授权，每个科目同一时间只有一条
type SubjectTeacherAccess struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	TeacherID   string    `gorm:"size:64;index;not null" json:"teacherId"`
	TeacherName string    `gorm:"size:100" json:"teacherName"`
	SubjectID   string    `gorm:"size:64;uniqueIndex;not null" json:"subjectId"`
	ClassroomID string    `gorm:"size:64;index;not null" json:"classroomId"`
	GrantedAt   time.Time `json:"grantedAt"`
}

func (SubjectTeacherAccess) TableName() string {
	return "subject_teacher_accesses"
}

// AccessedClassroom 被授权教师在仪表盘上看到的班级
type AccessedClassroom struct {
	Classroom   Classroom `json:"classroom"`
	SubjectID   string    `json:"subjectId"`
	SubjectName string    `json:"subjectName"`
}

type Enrollment struct {
	ClassroomID string    `gorm:"primaryKey;size:64" json:"classroomId"`
	StudentID   string    `gorm:"primaryKey;size:64" json:"studentId"`
	JoinedAt    time.Time `json:"joinedAt"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

// Clone 深拷贝，内存仓库读写都按值传递
func (c Classroom) Clone() Classroom {
	out := c
	out.Subjects = make([]Subject, len(c.Subjects))
	for i, s := range c.Subjects {
		out.Subjects[i] = s.Clone()
	}
	out.SubjectTeachers = append([]SubjectTeacherAccess(nil), c.SubjectTeachers...)
	return out
}

func (s Subject) Clone() Subject {
	out := s
	out.Chapters = append([]Chapter(nil), s.Chapters...)
	return out
}

// FindSubject 在班级内按 ID 查找科目
func (c *Classroom) FindSubject(id string) (*Subject, bool) {
	for i := range c.Subjects {
		if c.Subjects[i].ID == id {
			return &c.Subjects[i], true
		}
	}
	return nil, false
}

// GrantFor 返回科目当前的授权
func (c *Classroom) GrantFor(subjectID string) (*SubjectTeacherAccess, bool) {
	for i := range c.SubjectTeachers {
		if c.SubjectTeachers[i].SubjectID == subjectID {
			return &c.SubjectTeachers[i], true
		}
	}
	return nil, false
}
