package model

import (
	"time"
)

// swagger:model Question
type Question struct {
	ID         string     `gorm:"primaryKey;size:64" json:"id"`
	Text       string     `gorm:"type:text;not null" json:"text"`
	ChapterID  string     `gorm:"size:64;index;not null" json:"chapterId"`
	AuthorID   string     `gorm:"size:64;index;not null" json:"authorId"`
	AuthorName string     `gorm:"size:100" json:"authorName"`
	Visibility Visibility `gorm:"size:16;not null" json:"visibility"`
	Answer     string     `gorm:"type:text" json:"answer,omitempty"`
	AnsweredBy string     `gorm:"size:100" json:"answeredBy,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	AnsweredAt *time.Time `json:"answeredAt,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

func (q *Question) Answered() bool {
	return q.Answer != ""
}
