package model

import (
	"time"
)

// Announcement 教师向班级发布的公告，创建后不可修改
type Announcement struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	ClassroomID string    `gorm:"size:64;index;not null" json:"classroomId"`
	AuthorID    string    `gorm:"size:64;not null" json:"authorId"`
	AuthorName  string    `gorm:"size:100" json:"authorName"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
}

func (Announcement) TableName() string {
	return "announcements"
}
