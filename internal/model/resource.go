package model

// PYQ 往年真题
type PYQ struct {
	ID        string `gorm:"primaryKey;size:64" json:"id"`
	Question  string `gorm:"type:text;not null" json:"question"`
	ChapterID string `gorm:"size:64;index;not null" json:"chapterId"`
}

func (PYQ) TableName() string {
	return "pyqs"
}

type RecommendationType string

const (
	RecommendationVideo   RecommendationType = "video"
	RecommendationArticle RecommendationType = "article"
)

type Recommendation struct {
	ID        string             `gorm:"primaryKey;size:64" json:"id"`
	Title     string             `gorm:"size:255;not null" json:"title"`
	Type      RecommendationType `gorm:"size:16;not null" json:"type"`
	URL       string             `gorm:"size:512;not null" json:"url"`
	Thumbnail string             `gorm:"size:512" json:"thumbnail,omitempty"`
}

func (Recommendation) TableName() string {
	return "recommendations"
}
