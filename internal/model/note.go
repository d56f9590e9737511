package model

import (
	"time"
)

type NoteStatus string

const (
	NotePending  NoteStatus = "pending"
	NoteApproved NoteStatus = "approved"
	NoteRejected NoteStatus = "rejected"
)

// swagger:model Note
type Note struct {
	ID          string     `gorm:"primaryKey;size:64" json:"id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	ChapterID   string     `gorm:"size:64;index;not null" json:"chapterId"`
	ChapterName string     `gorm:"size:200" json:"chapterName"`
	AuthorID    string     `gorm:"size:64;index;not null" json:"authorId"`
	AuthorName  string     `gorm:"size:100" json:"authorName"`
	AuthorRole  UserRole   `gorm:"size:16;not null" json:"authorRole"`
	Visibility  Visibility `gorm:"size:16;not null" json:"visibility"`
	Status      NoteStatus `gorm:"size:16;index;not null" json:"status"`
	FileURL     string     `gorm:"size:512" json:"fileUrl,omitempty"`
	PosterURL   string     `gorm:"size:512" json:"posterUrl,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (Note) TableName() string {
	return "notes"
}

// Published 公开且已通过审核，计入章节笔记数
func (n *Note) Published() bool {
	return n.Visibility == Public && n.Status == NoteApproved
}
